package orchestrator

import (
	"fmt"
	"strings"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/workflow/quiz"
)

// RenderQuestion formats a quiz question as "Question X/Y: text" followed by
// numbered options.
func RenderQuestion(q domain.QuizQuestion, number, total int) string {
	parts := []string{fmt.Sprintf("Question %d/%d: %s", number, total, q.Text)}
	for i, opt := range q.Options {
		parts = append(parts, fmt.Sprintf("%d. %s", i+1, opt))
	}
	return strings.Join(parts, "\n\n")
}

// renderQuiz turns a quiz step into the reply shown to the user.
func renderQuiz(res quiz.Result) string {
	var parts []string
	if fb := strings.TrimSpace(res.Feedback); fb != "" {
		parts = append(parts, fb)
	}
	switch {
	case res.Status == domain.QuizCompleted:
		parts = append(parts, res.Summary)
	case res.Question != nil:
		parts = append(parts, RenderQuestion(*res.Question, res.Number, res.MaxQuestions))
	}
	return strings.Join(parts, "\n\n")
}
