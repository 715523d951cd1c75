// =============================================================================
// Card Fee Reconciler - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   reconciler version
//
// OUTPUT:
//   Card Fee Reconciler
//   Version:    1.0.0
//   Build Date: 2026-01-01
//   Go Version: go1.24.11
//   Config:     built-in defaults
//   Strategy:   indexed
//   Date Order: dmy
//   Decimal:    ","
//
// The configuration lines show what a process run with the same flags would
// use, so a support request can quote them.
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/card-fee-reconciler/internal/config"
)

// These variables are set at build time using ldflags:
//   go build -ldflags "-X 'github.com/ginjaninja78/card-fee-reconciler/cmd.Version=1.0.0'"

// Version is the application version.
var Version = "1.0.0"

// BuildDate is the date the application was built.
var BuildDate = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version and effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		origin := cfgFile
		if origin == "" {
			origin = "built-in defaults"
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Card Fee Reconciler")
		fmt.Fprintf(out, "Version:    %s\n", Version)
		fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "Config:     %s\n", origin)
		fmt.Fprintf(out, "Strategy:   %s\n", cfg.Processing.Strategy)
		fmt.Fprintf(out, "Date Order: %s\n", cfg.Processing.DateOrder)
		fmt.Fprintf(out, "Decimal:    %q\n", cfg.Processing.DecimalSeparator)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
