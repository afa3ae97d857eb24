package domain

import (
	"fmt"
	"sort"
	"time"
)

// Workflow names an isolated checkpoint namespace.
type Workflow string

const (
	WorkflowOrchestrator Workflow = "orchestrator"
	WorkflowQA           Workflow = "qa"
	WorkflowQuiz         Workflow = "quiz"
	WorkflowAnswer       Workflow = "answer"
)

// Workflows lists every namespace in a stable order.
func Workflows() []Workflow {
	return []Workflow{WorkflowOrchestrator, WorkflowQA, WorkflowQuiz, WorkflowAnswer}
}

// ParseWorkflow validates a namespace name.
func ParseWorkflow(s string) (Workflow, error) {
	for _, w := range Workflows() {
		if string(w) == s {
			return w, nil
		}
	}
	return "", fmt.Errorf("unknown workflow %q", s)
}

// CheckpointVersion is the schema version stamped on every record.
const CheckpointVersion = 1

// Checkpoint is the durable envelope persisted by a StateStore.
// State holds the output of the codec: nested maps, lists and primitives only.
type Checkpoint struct {
	Workflow  Workflow       `json:"workflow"`
	SessionID string         `json:"session_id"`
	Version   int            `json:"version"`
	SavedAt   time.Time      `json:"saved_at"`
	State     map[string]any `json:"state"`
}

// Clone returns a deep copy of the record. Only durable values are copied
// structurally; anything else is shared.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	out := *c
	out.State = cloneMap(c.State)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// transitions is an allow-list of status changes.
type transitions[S ~string] map[S]map[S]struct{}

func (t transitions[S]) allows(from, to S) bool {
	next, ok := t[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

func (t transitions[S]) edges() []Edge {
	var out []Edge
	for from, next := range t {
		for to := range next {
			out = append(out, Edge{From: string(from), To: string(to)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Edge is one allowed status change.
type Edge struct {
	From, To string
}

// Lifecycle returns the allowed status changes of a workflow with a status machine.
func Lifecycle(w Workflow) (initial string, edges []Edge, err error) {
	switch w {
	case WorkflowQuiz:
		return string(QuizInitializing), quizTransitions.edges(), nil
	case WorkflowAnswer:
		return string(AnswerInitializing), answerTransitions.edges(), nil
	}
	return "", nil, fmt.Errorf("workflow %q has no status lifecycle", w)
}
