// =============================================================================
// Card Fee Reconciler - Process Command
// =============================================================================
//
// This file defines the 'process' command, the main command of the tool. It
// runs one reconciliation from the two source tables to the xlsx artifact.
//
// COMMAND USAGE:
//   reconciler process --sales FILE --rates FILE [flags]
//
// FLAGS:
//   --sales       : Sales ledger (.xlsx, .xlsm, .csv, .txt)
//   --rates       : Fee schedule (.xlsx, .xlsm, .csv, .txt)
//   --output-dir  : Directory for the artifact
//   --base-name   : Artifact file stem, suffixed with (N).xlsx
//   --skip-rows   : Leading sales rows to discard before the header
//   --row-cap     : Maximum number of sales rows to read (0 = all)
//   --workers     : Resolving goroutines (0 = one per CPU)
//   --strategy    : Resolver strategy, indexed or scan
//   --dry-run     : Reconcile and report without writing the artifact
//
// Flags override the matching configuration values.
//
// PROCESSING PIPELINE:
//   1. Load configuration and apply flag overrides
//   2. Load the sales ledger and the fee schedule
//   3. Resolve each sale's rate and derive the reconciliation figures
//   4. Write the artifact (unless --dry-run)
//   5. Print the summary, optionally write the summary file
//
// Ctrl-C cancels the run. A cancelled run writes nothing.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/card-fee-reconciler/internal/loader"
	"github.com/ginjaninja78/card-fee-reconciler/internal/reconciler"
	"github.com/ginjaninja78/card-fee-reconciler/internal/xlsxwriter"
	"github.com/ginjaninja78/card-fee-reconciler/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	salesPath string
	ratesPath string
	outputDir string
	baseName  string
	skipRows  int
	rowCap    int
	workers   int
	strategy  string
	dryRun    bool
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Reconcile a sales ledger against a fee schedule",
	Long: `The process command loads the sales ledger and the fee schedule, resolves the
rate in force for every sale and writes the reconciliation workbook.

For every sale the workbook adds the resolved rate and:
  - Valor Bruto-Líquido       gross - net
  - Comissão Aplicada (%)     (gross - net) * 100 / gross
  - Valor Líquido Contratado  (100 - rate) / 100 * gross
  - Diferença                 contracted net - net
  - Indébito                  the positive part of the difference

Sales without a matching rate are kept with the derived columns empty.
An existing workbook is never overwritten: the first free name
base(1).xlsx, base(2).xlsx, ... is used.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(processCmd)

	flags := processCmd.Flags()
	flags.StringVar(&salesPath, "sales", "", "Path to the sales ledger")
	flags.StringVar(&ratesPath, "rates", "", "Path to the fee schedule")
	flags.StringVar(&outputDir, "output-dir", "", "Directory for the output workbook")
	flags.StringVar(&baseName, "base-name", "", "Output file stem")
	flags.IntVar(&skipRows, "skip-rows", 0, "Leading sales rows to discard before the header row")
	flags.IntVar(&rowCap, "row-cap", 0, "Maximum number of sales rows to read (0 = all)")
	flags.IntVar(&workers, "workers", 0, "Resolving goroutines (0 = one per CPU)")
	flags.StringVar(&strategy, "strategy", "", "Resolver strategy: indexed or scan")
	flags.BoolVar(&dryRun, "dry-run", false, "Reconcile and report without writing the workbook")

	processCmd.MarkFlagRequired("sales")
	processCmd.MarkFlagRequired("rates")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command) error {
	startTime := time.Now()

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Output.Dir = outputDir
	}
	if flags.Changed("base-name") {
		cfg.Output.BaseName = baseName
	}
	if flags.Changed("skip-rows") {
		cfg.Sales.HeaderRowsToSkip = skipRows
	}
	if flags.Changed("row-cap") {
		cfg.Sales.RowCap = rowCap
	}
	if flags.Changed("workers") {
		cfg.Processing.Workers = workers
	}
	if flags.Changed("strategy") {
		cfg.Processing.Strategy = strategy
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	runID := uuid.NewString()
	log = log.With().Str("run_id", runID).Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Card Fee Reconciler ===")
	fmt.Fprintf(out, "Sales: %s\n", salesPath)
	fmt.Fprintf(out, "Rates: %s\n", ratesPath)

	engine := reconciler.NewEngine(loader.New(cfg), xlsxwriter.New(cfg.Output), log)

	result, err := engine.Run(ctx, reconciler.Request{
		SalesPath: salesPath,
		RatesPath: ratesPath,
		Sales:     loader.SalesOptionsFromConfig(cfg),
		BaseName:  cfg.Output.BaseName,
		Workers:   cfg.Processing.Workers,
		Strategy:  cfg.Processing.Strategy,
		DryRun:    dryRun,
		Progress:  progressLogger(log),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(out, "Run cancelled, nothing was written.")
		}
		log.Error().Err(err).Msg("reconciliation failed")
		return err
	}

	s := result.Stats
	fmt.Fprintln(out, "\n=== Reconciliation Complete ===")
	fmt.Fprintf(out, "Rate records:     %d\n", len(result.Rates))
	fmt.Fprintf(out, "Overlaps:         %d\n", len(result.Overlaps))
	fmt.Fprintf(out, "Sales rows:       %d\n", s.Rows)
	fmt.Fprintf(out, "Resolved:         %d\n", s.Resolved)
	fmt.Fprintf(out, "Unresolved:       %d\n", s.Unresolved)
	fmt.Fprintf(out, "Missing amount:   %d\n", s.MissingAmount)
	fmt.Fprintf(out, "Missing rate:     %d\n", s.MissingRate)
	fmt.Fprintf(out, "Zero gross:       %d\n", s.ZeroGross)
	fmt.Fprintf(out, "In shortfall:     %d\n", s.ShortfallRows)
	fmt.Fprintf(out, "Total shortfall:  %s\n", s.TotalShortfall.StringFixed(2))
	fmt.Fprintf(out, "Time elapsed:     %s\n", result.Duration)

	if dryRun {
		fmt.Fprintln(out, "\nDry run, no workbook written.")
		return nil
	}
	fmt.Fprintf(out, "\nSaved as: %s\n", result.OutputPath)

	if cfg.Output.WriteSummary {
		path, err := utils.WriteSummaryLog(utils.RunSummary{
			RunID:          runID,
			StartTime:      startTime,
			EndTime:        time.Now(),
			SalesFile:      salesPath,
			RatesFile:      ratesPath,
			OutputFile:     result.OutputPath,
			Strategy:       result.Strategy,
			Workers:        cfg.Processing.Workers,
			RateRecords:    len(result.Rates),
			Overlaps:       len(result.Overlaps),
			Rows:           s.Rows,
			Resolved:       s.Resolved,
			Unresolved:     s.Unresolved,
			MissingAmount:  s.MissingAmount,
			MissingRate:    s.MissingRate,
			ZeroGross:      s.ZeroGross,
			ShortfallRows:  s.ShortfallRows,
			TotalShortfall: s.TotalShortfall.StringFixed(2),
		}, cfg.Output.Dir)
		if err != nil {
			log.Warn().Err(err).Msg("failed to write run summary")
		} else {
			fmt.Fprintf(out, "Summary:  %s\n", path)
		}
	}

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// progressLogger logs progress at debug level in steps of roughly 10%.
func progressLogger(log zerolog.Logger) reconciler.ProgressFunc {
	next := 0
	return func(done, total int) {
		if done < next && done != total {
			return
		}
		next = done + max(total/10, 1)
		log.Debug().Int("done", done).Int("total", total).Msg("resolving")
	}
}
