package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/interllm/interllm/internal/config"
	"github.com/interllm/interllm/internal/reporting"
	"github.com/interllm/interllm/internal/scenario"
)

var (
	aggregateOutputDir   string
	aggregateResultsFile string
)

func newAggregateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate <scenarios.md>",
		Short: "Rebuild the master results file from existing outputs",
		Long: `Aggregate stitches per-scenario output files back into the master
results file, inserting a placeholder for any scenario whose output is
missing. It is safe to re-run at any time; the result depends only on the
scenario list and the files currently on disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := scenario.Parse(args[0])
			if err != nil {
				return err
			}

			resultsPath := aggregateResultsFile
			if resultsPath == "" {
				resultsPath = filepath.Join(aggregateOutputDir, config.DefaultResultsFile)
			}

			if err := reporting.Aggregate(scenarios, aggregateOutputDir, resultsPath); err != nil {
				return err
			}
			cmd.Printf("Aggregated %d scenario(s) into %s\n", len(scenarios), resultsPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&aggregateOutputDir, "output-dir", "outputs", "Directory containing scenario output files")
	cmd.Flags().StringVar(&aggregateResultsFile, "results-file", "", "Path for the master results file (default <output-dir>/"+config.DefaultResultsFile+")")

	return cmd
}
