// =============================================================================
// Card Fee Reconciler - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Card Fee Reconciler CLI application.
// It initializes the Cobra CLI framework and delegates command execution to
// the cmd package.
//
// USAGE:
//   reconciler process    - Resolve the fee rate of every sale and write the
//                           reconciliation spreadsheet
//   reconciler validate   - Load both tables and report fee schedule problems
//   reconciler version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Loader, resolver, formula pipeline, writer
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/card-fee-reconciler/cmd"
)

func main() {
	cmd.Execute()
}
