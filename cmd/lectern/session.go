package main

import (
	"github.com/aretw0/lectern/internal/cli"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored sessions",
	Long:  `List, inspect, and remove checkpointed sessions of every workflow, or of one with --workflow.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, done, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer done()

		workflows, err := workflowFlag(cmd)
		if err != nil {
			return err
		}
		return cli.ListSessions(cmd.Context(), rt.Stores, workflows, cmd.OutOrStdout())
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the stored checkpoint of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, done, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer done()

		workflows, err := workflowFlag(cmd)
		if err != nil {
			return err
		}
		return cli.InspectSession(cmd.Context(), rt.Stores, workflows, args[0], cmd.OutOrStdout())
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, done, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer done()

		workflows, err := workflowFlag(cmd)
		if err != nil {
			return err
		}
		return cli.RemoveSessions(cmd.Context(), rt.Stores, workflows, args, cmd.OutOrStdout())
	},
}

func workflowFlag(cmd *cobra.Command) ([]domain.Workflow, error) {
	name, _ := cmd.Flags().GetString("workflow")
	return cli.ParseWorkflows(name)
}

func init() {
	sessionCmd.PersistentFlags().StringP("workflow", "w", "", "Restrict to one workflow (orchestrator, qa, quiz, answer)")

	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd, sessionInspectCmd, sessionRmCmd)
}
