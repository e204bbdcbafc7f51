package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/interllm/interllm/internal/validation"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <run.yaml>",
		Short: "Validate a run spec against its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issues, err := validation.ValidateRunSpecFile(args[0])
			if err != nil {
				return err
			}

			if len(issues) > 0 {
				for _, issue := range issues {
					cmd.PrintErrf("  %s\n", issue)
				}
				return fmt.Errorf("%s: %d validation issue(s)", args[0], len(issues))
			}

			cmd.Printf("%s is valid\n", args[0])
			return nil
		},
	}
}
