package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// QuestionOutput is the structured question the model must return.
type QuestionOutput struct {
	QuestionText string   `json:"question_text" validate:"required"`
	Options      []string `json:"options" validate:"min=2,max=5,dive,required"`
	CorrectIndex *int     `json:"correct_answer_index" validate:"required,min=0"`
	Explanation  string   `json:"explanation"`

	// Some models keep the longer field name from earlier prompt versions.
	LongExplanation string `json:"explanation_for_correct_answer"`
}

// EvaluationOutput is the structured grading the model must return.
type EvaluationOutput struct {
	Feedback     *string         `json:"feedback_for_user"`
	IsCorrect    *bool           `json:"is_correct"`
	NextQuestion *QuestionOutput `json:"next_question"`
	Complete     *bool           `json:"quiz_is_complete" validate:"required"`
	FinalSummary *string         `json:"final_summary"`
}

const questionSchema = `{"question_text": string, "options": [string] (2 to 5), "correct_answer_index": integer (0-based), "explanation": string}`

const evaluationSchema = `{"feedback_for_user": string, "is_correct": boolean, "quiz_is_complete": boolean, "next_question": ` +
	questionSchema + ` or null, "final_summary": string or null}`

func (q QuestionOutput) question() domain.QuizQuestion {
	explanation := q.Explanation
	if explanation == "" {
		explanation = q.LongExplanation
	}
	return domain.QuizQuestion{
		Text:         strings.TrimSpace(q.QuestionText),
		Options:      q.Options,
		CorrectIndex: *q.CorrectIndex,
		Explanation:  explanation,
	}
}

func (q QuestionOutput) check() error {
	if err := validate.Struct(q); err != nil {
		return err
	}
	if *q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("correct_answer_index %d out of range for %d options", *q.CorrectIndex, len(q.Options))
	}
	return nil
}

// ParseQuestion reads a question from raw model text.
func ParseQuestion(raw string) (domain.QuizQuestion, error) {
	var out QuestionOutput
	if err := decode(raw, &out); err != nil {
		return domain.QuizQuestion{}, err
	}
	if err := out.check(); err != nil {
		return domain.QuizQuestion{}, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	return out.question(), nil
}

// ParseEvaluation reads a grading from raw model text and checks that
// completion and the next question agree.
func ParseEvaluation(raw string) (EvaluationOutput, error) {
	var out EvaluationOutput
	if err := decode(raw, &out); err != nil {
		return out, err
	}
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}

	var problem error
	switch {
	case *out.Complete && out.NextQuestion != nil:
		problem = errors.New("next_question must be null when the quiz is complete")
	case *out.Complete && (out.FinalSummary == nil || strings.TrimSpace(*out.FinalSummary) == ""):
		problem = errors.New("final_summary is required when the quiz is complete")
	case !*out.Complete && out.NextQuestion == nil:
		problem = errors.New("next_question is required while the quiz continues")
	case out.NextQuestion != nil:
		problem = out.NextQuestion.check()
	}
	if problem != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, problem)
	}
	return out, nil
}

func decode(raw string, out any) error {
	if err := json.Unmarshal([]byte(extractJSON(raw)), out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	return nil
}

// extractJSON strips markdown code fences and any text around the outermost object.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
