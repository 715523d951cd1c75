// =============================================================================
// Card Fee Reconciler - Validate Command
// =============================================================================
//
// This file defines the 'validate' command. It loads both tables exactly as
// 'process' would and reports what would keep sales from reconciling,
// without resolving or writing anything.
//
// COMMAND USAGE:
//   reconciler validate --sales FILE --rates FILE [--error-log]
//
// EXIT STATUS:
//   Non-zero when a table fails to load or the fee schedule has
//   error-severity diagnostics (records that can never match).
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/card-fee-reconciler/internal/loader"
	"github.com/ginjaninja78/card-fee-reconciler/internal/logger"
	"github.com/ginjaninja78/card-fee-reconciler/internal/validation"
	"github.com/ginjaninja78/card-fee-reconciler/internal/xlsxparser"
	"github.com/ginjaninja78/card-fee-reconciler/pkg/utils"
)

var (
	validateSales string
	validateRates string
	writeErrorLog bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the sales ledger and fee schedule without reconciling",
	Long: `The validate command loads both tables and reports:
  - overlapping validity windows (first listed record wins)
  - inverted windows, unreadable dates and installment counts
  - blank instrument identifiers and rates outside 0..100
  - sales rows with unreadable dates, installments or amounts

With --error-log the diagnostics are also written to a text file in the
configured output directory.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateSales, "sales", "", "Path to the sales ledger")
	validateCmd.Flags().StringVar(&validateRates, "rates", "", "Path to the fee schedule")
	validateCmd.Flags().BoolVar(&writeErrorLog, "error-log", false, "Write diagnostics to a log file in the output directory")

	validateCmd.MarkFlagRequired("sales")
	validateCmd.MarkFlagRequired("rates")
}

func runValidate(cmd *cobra.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ctx := logger.WithContext(cmd.Context(), log)
	l := loader.New(cfg)

	describeSheets(log, validateSales)
	sales, err := l.LoadSales(ctx, validateSales, loader.SalesOptionsFromConfig(cfg))
	if err != nil {
		return err
	}

	describeSheets(log, validateRates)
	rates, err := l.LoadRates(ctx, validateRates)
	if err != nil {
		return err
	}

	log.Debug().Int("sales", len(sales.Rows)).Int("rates", len(rates)).Msg("tables loaded")

	result := validation.ValidateRates(rates, cfg.Rates.Columns)
	result.Merge(validation.ValidateSales(sales))

	fmt.Fprintf(out, "Sales rows: %d\n", len(sales.Rows))
	fmt.Fprintf(out, "Rate rows:  %d\n\n", len(rates))
	fmt.Fprint(out, validation.FormatErrors(result.Errors))
	fmt.Fprintf(out, "\nErrors: %d  Warnings: %d\n", result.ErrorCount, result.WarningCount)

	if writeErrorLog && len(result.Errors) > 0 {
		if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
			return err
		}
		path, err := utils.WriteErrorLog(logEntries(result, validateSales, validateRates), cfg.Output.Dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Diagnostics logged to %s\n", path)
	}

	if !result.IsValid {
		return fmt.Errorf("fee schedule has %d record(s) that can never match", result.ErrorCount)
	}
	return nil
}

// describeSheets lists the sheets of a workbook at debug level.
func describeSheets(log zerolog.Logger, path string) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" && ext != ".xlsm" {
		return
	}
	names, err := xlsxparser.SheetNames(path)
	if err != nil {
		return
	}
	log.Debug().Str("path", path).Strs("sheets", names).Msg("workbook sheets")
}

// logEntries converts diagnostics to error log entries.
func logEntries(result *validation.Result, salesFile, ratesFile string) []utils.ErrorLogEntry {
	now := time.Now()
	entries := make([]utils.ErrorLogEntry, 0, len(result.Errors))
	for _, e := range result.Errors {
		file := ratesFile
		if e.Table == validation.TableSales {
			file = salesFile
		}
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:    now,
			FileName:     file,
			Table:        e.Table,
			Severity:     e.Severity,
			ErrorType:    e.Rule,
			ErrorMessage: e.Message,
			RowNumber:    e.Row,
			FieldName:    e.Field,
			FieldValue:   e.Value,
		})
	}
	return entries
}
