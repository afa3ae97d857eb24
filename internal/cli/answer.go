package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/lectern"
	"github.com/aretw0/lectern/internal/presentation/tui"
	"github.com/aretw0/lectern/pkg/domain"
)

// PrintAnswer prints the outcome of a refine, edit, or finalize call.
// Validation and model failures are shown as warnings, not returned.
func PrintAnswer(out io.Writer, res lectern.AnswerResult, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(out).Encode(res.State)
	}
	if res.Error != nil {
		fmt.Fprintln(out, tui.Warn(res.Error.Message))
		return nil
	}
	fmt.Fprintln(out, res.Answer)
	fmt.Fprintln(out, tui.Status("session %s, %s", res.SessionID, res.Status))
	return nil
}

// PrintAnswerState prints a stored answer session with its edit trail.
func PrintAnswerState(out io.Writer, state domain.AnswerState) {
	fmt.Fprintf(out, "Session:  %s\nStatus:   %s\n", state.SessionID, state.Status)
	if state.Question != "" {
		fmt.Fprintf(out, "Question: %s\n", state.Question)
	}
	fmt.Fprintf(out, "\n%s\n", state.RefinedAnswer)
	if state.FidelityScore != nil {
		fmt.Fprintf(out, "\nFidelity: %.2f\n", *state.FidelityScore)
	}
	for i, e := range state.EditHistory {
		fmt.Fprintf(out, "\nEdit %d: %s\n", i+1, e.Command)
	}
	fmt.Fprintln(out, tui.Status("iterations %d, model calls %d", state.Iterations, state.ModelCalls))
}
