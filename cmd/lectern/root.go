package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/lectern/internal/cli"
	"github.com/aretw0/lectern/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Lectern is a document-grounded tutoring assistant",
	Long: `Lectern answers questions about a study document, runs multiple choice quizzes on it,
and turns spoken answers into written ones. Every session is checkpointed and can be resumed.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to lectern.yaml (default: ./lectern.yaml when present)")
	rootCmd.PersistentFlags().String("store", "", "Override the store backend (memory, file, redis, sqlite, postgres)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log at debug level")
	rootCmd.PersistentFlags().Bool("json", false, "Print machine readable JSON")
}

// openRuntime loads the configuration and wires a Tutor. The returned func releases everything.
func openRuntime(cmd *cobra.Command) (*cli.Runtime, func(), error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if backend, _ := cmd.Flags().GetString("store"); backend != "" {
		cfg.Store.Backend = backend
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	debug, _ := cmd.Flags().GetBool("debug")
	logger, logCloser, err := cli.NewLogger(cfg.Log, debug)
	if err != nil {
		return nil, nil, err
	}

	rt, err := cli.Open(cmd.Context(), cfg, logger, nil)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}
	return rt, closeAll(rt, logCloser), nil
}

func closeAll(closers ...io.Closer) func() {
	return func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
