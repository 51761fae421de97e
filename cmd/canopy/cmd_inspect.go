package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"canopy/internal/cards"
	"canopy/internal/impact"
)

// cardsCmd rebuilds and prints a run's action cards
var cardsCmd = &cobra.Command{
	Use:   "cards <run-id>",
	Short: "Show the action cards for a run",
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

		printCards(cards.NewBuilder(p, nil).Build(state))
		return nil
	},
}

var changedPointers []string

// impactCmd reports which steps a pointer change would invalidate
var impactCmd = &cobra.Command{
	Use:   "impact <program-id>",
	Short: "Show the steps impacted by changed pointers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		p, ok := lib.Get(args[0])
		if !ok {
			return fmt.Errorf("program %q not found in %s", args[0], cfg.ProgramsDir)
		}

		impacted := impact.StepIDs(p, changedPointers)
		if len(impacted) == 0 {
			fmt.Println("no impacted steps")
			return nil
		}
		for _, id := range impacted {
			fmt.Println(id)
		}
		return nil
	},
}

// runsCmd lists stored runs
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %-20s %-8s updated %s\n",
				r.RunID, r.ProgramID, r.Status, r.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	impactCmd.Flags().StringArrayVar(&changedPointers, "changed", nil, "changed pointer (repeatable)")
}
