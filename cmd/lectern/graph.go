package main

import (
	"fmt"

	"github.com/aretw0/lectern/internal/presentation/graph"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <quiz|answer>",
	Short: "Export a workflow lifecycle as a Mermaid diagram",
	Long: `Prints the status machine of the quiz or answer workflow as a Mermaid state diagram.
With --session the stored session's path and current status are highlighted.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(domain.WorkflowQuiz), string(domain.WorkflowAnswer)},
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := domain.ParseWorkflow(args[0])
		if err != nil {
			return err
		}
		initial, edges, err := domain.Lifecycle(w)
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if session, _ := cmd.Flags().GetString("session"); session != "" {
			if overlay, err = sessionOverlay(cmd, w, session); err != nil {
				return err
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(initial, edges, overlay))
		return nil
	},
}

func sessionOverlay(cmd *cobra.Command, w domain.Workflow, sessionID string) (*graph.Overlay, error) {
	rt, done, err := openRuntime(cmd)
	if err != nil {
		return nil, err
	}
	defer done()

	var found bool
	var overlay *graph.Overlay
	switch w {
	case domain.WorkflowQuiz:
		var q domain.QuizState
		q, found, err = rt.Tutor.Quiz(cmd.Context(), sessionID)
		overlay = graph.OverlayFromQuiz(q)
	case domain.WorkflowAnswer:
		var a domain.AnswerState
		a, found, err = rt.Tutor.Answer(cmd.Context(), sessionID)
		overlay = graph.OverlayFromAnswer(a)
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s session %q not found", w, sessionID)
	}
	return overlay, nil
}

func init() {
	graphCmd.Flags().StringP("session", "s", "", "Highlight a stored session")
	rootCmd.AddCommand(graphCmd)
}
