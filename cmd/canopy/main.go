package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"canopy/internal/config"
	"canopy/internal/logging"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	cfg config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "canopy",
	Short: "canopy - decision-program execution engine",
	Long: `canopy runs declarative decision programs: fixed pipelines of agent
steps over a shared, pointer-addressed context.

Steps block when their required inputs are missing; blocked runs surface
action cards describing exactly what to supply, and impact analysis requeues
only the steps an input change actually affects.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := logging.Init(verbose || cfg.Logging.Verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "canopy.yaml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cardsCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
