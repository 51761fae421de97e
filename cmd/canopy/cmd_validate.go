package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"canopy/internal/program"
)

// validateCmd checks a program definition file
var validateCmd = &cobra.Command{
	Use:   "validate <program.yaml>",
	Short: "Validate a program definition file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := program.Load(args[0])
		if err != nil {
			return err
		}
		res := program.Validate(p)
		if res.OK {
			fmt.Printf("program %q is valid (%d steps)\n", p.ID, len(p.Steps))
			return nil
		}
		for _, e := range res.Errors {
			fmt.Printf("  error: %s\n", e)
		}
		return fmt.Errorf("program %q failed validation with %d errors", p.ID, len(res.Errors))
	},
}
