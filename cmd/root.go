// =============================================================================
// Card Fee Reconciler - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (reconciler)
//   ├── processCmd (reconciler process)
//   ├── validateCmd (reconciler validate)
//   └── versionCmd (reconciler version)
//
// CONFIGURATION:
//   The root command owns the global flags (--config, --verbose). Each
//   subcommand calls setup() to load the configuration and build the logger.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/card-fee-reconciler/internal/config"
	"github.com/ginjaninja78/card-fee-reconciler/internal/logger"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file. Empty means built-in
// defaults.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Card Fee Reconciler - Check acquirer fees against the contracted schedule",
	Long: `Card Fee Reconciler matches every card sale against the fee rate that was in
force for its instrument and installment count on the sale date, then works
out what the net amount should have been and how much was withheld beyond it.

Key Features:
  - Reads sales and fee schedules from xlsx or delimited text
  - First-listed rate wins when validity windows overlap (and is reported)
  - Exact decimal arithmetic for every derived figure
  - Concurrent resolution for large ledgers
  - Styled xlsx output that never overwrites an earlier run

Example Usage:
  reconciler process --sales vendas.xlsx --rates taxas.xlsx
  reconciler process --sales vendas.xlsx --rates taxas.xlsx --skip-rows 2 --dry-run
  reconciler validate --sales vendas.xlsx --rates taxas.xlsx --error-log`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to a YAML configuration file (built-in defaults when empty)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// setup loads the configuration and builds the command's logger. Logs go to
// the command's stderr.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}

	log, err := logger.New(logger.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	return cfg, log, nil
}
