package main

import (
	"os"
	"strings"

	"github.com/aretw0/lectern/internal/cli"
	"github.com/aretw0/lectern/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var turnCmd = &cobra.Command{
	Use:   "turn <text>...",
	Short: "Send one turn to a conversation and print the reply",
	Long: `Sends a single student turn. Use "start quiz" with --doc to begin a quiz,
and "stop quiz" to leave one. Omit the text on a new session to get the greeting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, done, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer done()

		return cli.RunTurn(cmd.Context(), rt, cmd.OutOrStdout(), strings.Join(args, " "), turnOptions(cmd))
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, done, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer done()

		opts := turnOptions(cmd)
		if !opts.JSON {
			tui.PrintBanner(cmd.OutOrStdout(), versionString())
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()
		in := cli.NewInterruptibleReader(os.Stdin, sigCtx.Done())
		return cli.Chat(sigCtx, rt, in, cmd.OutOrStdout(), opts)
	},
}

func turnOptions(cmd *cobra.Command) cli.TurnOptions {
	session, _ := cmd.Flags().GetString("session")
	doc, _ := cmd.Flags().GetString("doc")
	opts := cli.TurnOptions{
		SessionID:   session,
		DocumentRef: doc,
		JSON:        jsonOutput(cmd),
	}
	if !opts.JSON {
		opts.Render = tui.ForStdout()
	}
	return opts
}

func init() {
	for _, c := range []*cobra.Command{turnCmd, chatCmd} {
		c.Flags().StringP("session", "s", "default", "Conversation session id")
		c.Flags().StringP("doc", "d", "", "Document reference to ground the conversation")
		rootCmd.AddCommand(c)
	}
}
