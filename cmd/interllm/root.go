package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set via ldflags at build time
var version = "dev"

var debugMode bool

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "interllm",
		Short: "Scenario orchestrator for LLM agents",
		Long: `interllm runs markdown-defined scenarios against an LLM agent.

The first scenario calibrates the prompt template, then the remaining
scenarios run sequentially with deterministic output filenames so that
interrupted runs can be resumed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Environment files are optional; a missing .env is not an error.
			_ = godotenv.Load()
			if debugMode {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newAggregateCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newLogsCommand())
	rootCmd.AddCommand(newBundleCommand())
	rootCmd.AddCommand(newProxyCommand())

	return rootCmd
}

func execute() error {
	return newRootCommand().Execute()
}
