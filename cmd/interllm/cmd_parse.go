package main

import (
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/interllm/interllm/internal/scenario"
)

var parseTodoFile string

func newParseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <scenarios.md>",
		Short: "Parse a scenario list without calling an agent",
		Long: `Parse extracts scenarios from a markdown scenario list and prints
what a run would execute, with the output filename each scenario maps to.
No agent is invoked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := scenario.Parse(args[0])
			if err != nil {
				return err
			}

			width := 0
			for _, sc := range scenarios {
				if w := runewidth.StringWidth(sc.DisplayTitle()); w > width {
					width = w
				}
			}

			cmd.Printf("%d scenario(s) in %s\n\n", len(scenarios), args[0])
			for _, sc := range scenarios {
				cmd.Printf("  %s  -> %s\n",
					runewidth.FillRight(sc.DisplayTitle(), width),
					scenario.OutputFilename(sc.Index))
			}

			if parseTodoFile != "" {
				if err := scenario.WriteIndex(scenarios, parseTodoFile); err != nil {
					return err
				}
				cmd.Printf("\nWrote scenario index to %s\n", parseTodoFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&parseTodoFile, "todo-file", "", "Also write the scenario index file to this path")

	return cmd
}
