package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"canopy/internal/engine"
	"canopy/internal/impact"
)

var initialSet []string

// planCmd creates a fresh run for a program
var planCmd = &cobra.Command{
	Use:   "plan <program-id>",
	Short: "Create a new run for a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		p, ok := lib.Get(args[0])
		if !ok {
			return fmt.Errorf("program %q not found in %s (have: %v)", args[0], cfg.ProgramsDir, lib.IDs())
		}

		state := engine.PlanRun(p, nil)
		if len(initialSet) > 0 {
			patches, err := parseSetFlags(initialSet)
			if err != nil {
				return err
			}
			if err := engine.ApplyPatches(state, patches); err != nil {
				return err
			}
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveRun(state); err != nil {
			return err
		}
		fmt.Printf("planned run %s for program %s (%d steps queued)\n",
			state.RunID, p.ID, len(state.Steps))
		return nil
	},
}

// runCmd executes one engine pass on a stored run
var runCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Execute one engine pass on a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		state, err := db.LoadRun(args[0])
		if err != nil {
			return err
		}
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		p, err := programForState(lib, state)
		if err != nil {
			return err
		}

		next := engine.StepExecution(cmd.Context(), state, p, builtinRegistry())
		refreshCards(next, p)
		if err := db.SaveRun(next); err != nil {
			return err
		}

		printState(next)
		if next.Status == engine.RunBlocked {
			fmt.Println()
			printCards(next.ActionCards)
		}
		return nil
	},
}

var resumeSet []string

// resumeCmd applies patches, requeues impacted steps, and runs a pass
var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Apply new values to a run and re-execute the affected steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patches, err := parseSetFlags(resumeSet)
		if err != nil {
			return err
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		state, err := db.LoadRun(args[0])
		if err != nil {
			return err
		}
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		p, err := programForState(lib, state)
		if err != nil {
			return err
		}

		if err := engine.ApplyPatches(state, patches); err != nil {
			return err
		}
		changed := make([]string, 0, len(patches))
		for _, patch := range patches {
			changed = append(changed, patch.Pointer)
		}
		if impacted := impact.StepIDs(p, changed); len(impacted) > 0 {
			engine.ResetSteps(state, impacted)
			fmt.Printf("requeued %d impacted steps: %v\n", len(impacted), impacted)
		}

		next := engine.StepExecution(cmd.Context(), state, p, builtinRegistry())
		refreshCards(next, p)
		if err := db.SaveRun(next); err != nil {
			return err
		}

		printState(next)
		if next.Status == engine.RunBlocked {
			fmt.Println()
			printCards(next.ActionCards)
		}
		return nil
	},
}

func init() {
	planCmd.Flags().StringArrayVar(&initialSet, "set", nil, "initial context value as /pointer=value")
	resumeCmd.Flags().StringArrayVar(&resumeSet, "set", nil, "context value as /pointer=value")
}
