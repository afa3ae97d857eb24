// Package prompts holds the instruction texts sent to the generation model.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/aretw0/lectern/pkg/domain"
)

//go:embed templates/*.tmpl
var files embed.FS

var templates = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		ParseFS(files, "templates/*.tmpl"),
)

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

func mustRender(name string, data any) string {
	s, err := render(name, data)
	if err != nil {
		panic(err)
	}
	return s
}

// QA is the conversational system instruction.
type QA struct {
	Narrative string
	History   string
}

func (p QA) String() string { return mustRender("qa", p) }

// QuizFirst asks for the opening question of a quiz.
type QuizFirst struct {
	Snippet      string
	MaxQuestions int
}

func (p QuizFirst) String() string { return mustRender("quiz_first", p) }

// QuizEvaluate grades an answer and asks for the next question or a summary.
type QuizEvaluate struct {
	Snippet      string
	Question     domain.QuizQuestion
	Answer       string
	History      []domain.QuizEntry
	Score        int
	Answered     int
	Number       int
	MaxQuestions int
}

func (p QuizEvaluate) String() string { return mustRender("quiz_evaluate", p) }

// Refine is the transcription editor contract.
func Refine() string { return mustRender("refine", nil) }

// RefineInput is the user message of a refine call.
type RefineInput struct {
	Question   string
	Transcript string
}

func (p RefineInput) String() string { return mustRender("refine_input", p) }

// Edit is the edit-application contract.
func Edit() string { return mustRender("edit", nil) }

// EditInput is the user message of an edit call.
type EditInput struct {
	Answer  string
	Command string
	Hint    string
}

func (p EditInput) String() string { return mustRender("edit_input", p) }

// Fidelity is the validator contract.
func Fidelity() string { return mustRender("fidelity", nil) }

// FidelityInput is the user message of a fidelity call.
type FidelityInput struct {
	Transcript string
	Answer     string
}

func (p FidelityInput) String() string { return mustRender("fidelity_input", p) }
