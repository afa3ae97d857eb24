package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/lectern"
	"github.com/aretw0/lectern/internal/cli"
	"github.com/spf13/cobra"
)

var refineCmd = &cobra.Command{
	Use:   "refine [transcript]...",
	Short: "Turn a spoken transcript into a written answer",
	Long: `Refines a transcript into a clear written answer without adding content.
The transcript is read from the arguments, or from stdin when none are given.
Without --session a new answer session is created and its id printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transcript := strings.Join(args, " ")
		if transcript == "" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			transcript = string(data)
		}
		session, _ := cmd.Flags().GetString("session")
		question, _ := cmd.Flags().GetString("question")

		rt, done, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer done()

		if transcript, err = cli.SanitizeInput(transcript, rt.Config.Input.MaxSize); err != nil {
			return err
		}
		res, err := rt.Tutor.Refine(cmd.Context(), lectern.RefineRequest{
			SessionID:  session,
			Question:   question,
			Transcript: transcript,
		})
		if err != nil {
			return err
		}
		return cli.PrintAnswer(cmd.OutOrStdout(), res, jsonOutput(cmd))
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <session-id> <command>...",
	Short: "Apply a spoken edit command to a refined answer",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, done, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer done()

		command, err := cli.SanitizeInput(strings.Join(args[1:], " "), rt.Config.Input.MaxSize)
		if err != nil {
			return err
		}
		res, err := rt.Tutor.Edit(cmd.Context(), lectern.EditRequest{
			SessionID: args[0],
			Command:   command,
		})
		if err != nil {
			return err
		}
		return cli.PrintAnswer(cmd.OutOrStdout(), res, jsonOutput(cmd))
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize <session-id>",
	Short: "Lock an answer against further changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, done, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer done()

		res, err := rt.Tutor.Finalize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return cli.PrintAnswer(cmd.OutOrStdout(), res, jsonOutput(cmd))
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Inspect answer-formulation sessions",
}

var answerShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the current answer, its fidelity score, and the edit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, done, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer done()

		state, found, err := rt.Tutor.Answer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("answer session %q not found", args[0])
		}
		if jsonOutput(cmd) {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		}
		cli.PrintAnswerState(cmd.OutOrStdout(), state)
		return nil
	},
}

func init() {
	refineCmd.Flags().StringP("session", "s", "", "Answer session id (default: a new one)")
	refineCmd.Flags().StringP("question", "q", "", "The question being answered")

	answerCmd.AddCommand(answerShowCmd)
	rootCmd.AddCommand(refineCmd, editCmd, finalizeCmd, answerCmd)
}
