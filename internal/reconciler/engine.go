// =============================================================================
// Card Fee Reconciler - Reconciliation Engine
// =============================================================================
//
// This module orchestrates one reconciliation run, from the two source tables
// to the written artifact.
//
// PIPELINE:
//   1. Load the sales ledger and the fee schedule
//   2. Build the rate resolver and report overlapping validity windows
//   3. Resolve and derive every sale (sharded over worker goroutines)
//   4. Summarize outcomes
//   5. Hand the ledger to the writer (skipped on dry runs)
//
// CONCURRENCY:
//   The sales rows are split into contiguous shards, one per worker. Workers
//   share the read-only resolver and each writes only its own slots of the
//   output slice. Cancellation is checked between rows; a cancelled run
//   returns no rows at all.
//
// =============================================================================

package reconciler

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/card-fee-reconciler/internal/loader"
	"github.com/ginjaninja78/card-fee-reconciler/internal/logger"
	"github.com/ginjaninja78/card-fee-reconciler/internal/resolver"
	"github.com/ginjaninja78/card-fee-reconciler/internal/types"
)

// maxLoggedOverlaps caps the per-pair warnings logged for one run. The full
// list is always available on the Result.
const maxLoggedOverlaps = 20

var errNoWriter = errors.New("no writer configured for a non-dry run")

// =============================================================================
// REQUEST AND RESULT
// =============================================================================

// Writer persists an enriched ledger and returns the path it chose.
type Writer interface {
	Write(ledger types.Ledger, baseName string) (string, error)
}

// ProgressFunc observes the number of rows processed so far. Calls are
// serialized and done never decreases.
type ProgressFunc func(done, total int)

// Request describes one run.
type Request struct {
	SalesPath string
	RatesPath string

	// Sales holds header-skip and row-cap settings for the sales table.
	Sales loader.SalesOptions

	// BaseName is the output file stem.
	BaseName string

	// Workers is the number of resolving goroutines. 0 means one per CPU.
	Workers int

	// Strategy names the resolver strategy.
	Strategy string

	// DryRun skips the writer.
	DryRun bool

	// Progress is optional.
	Progress ProgressFunc
}

// Result is the outcome of a successful run.
type Result struct {
	Ledger     types.Ledger
	Stats      Stats
	Rates      []types.RateRecord
	Overlaps   []resolver.Overlap
	Strategy   string
	OutputPath string
	Duration   time.Duration
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs reconciliations. It holds no per-run state and may be reused.
type Engine struct {
	loader *loader.Loader
	writer Writer
	log    zerolog.Logger
}

// NewEngine creates an engine. writer may be nil when only dry runs are made.
func NewEngine(l *loader.Loader, w Writer, log zerolog.Logger) *Engine {
	return &Engine{loader: l, writer: w, log: log}
}

// Run executes the pipeline. Load and write failures abort the run; per-row
// anomalies are absorbed into the data and counted in Result.Stats.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx = logger.WithContext(ctx, e.log)

	sales, err := e.loader.LoadSales(ctx, req.SalesPath, req.Sales)
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("path", req.SalesPath).Int("rows", len(sales.Rows)).Msg("loaded sales table")

	rates, err := e.loader.LoadRates(ctx, req.RatesPath)
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("path", req.RatesPath).Int("rows", len(rates)).Msg("loaded rate table")

	res, err := resolver.New(req.Strategy, rates)
	if err != nil {
		return nil, err
	}

	overlaps := resolver.FindOverlaps(rates)
	for i, o := range overlaps {
		if i == maxLoggedOverlaps {
			e.log.Warn().Int("remaining", len(overlaps)-i).Msg("further overlapping validity windows not logged")
			break
		}
		e.log.Warn().
			Str("instrument", o.Key.InstrumentID).
			Int("installments", o.Key.Installments).
			Int("first_row", o.First.Row).
			Int("second_row", o.Second.Row).
			Str("from", o.From.String()).
			Str("to", o.To.String()).
			Msg("overlapping validity windows, first listed row wins")
	}

	rows, err := e.Enrich(ctx, sales.Rows, res, req.Workers, req.Progress)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Ledger:   ledgerOf(sales, rows),
		Stats:    Summarize(rows),
		Rates:    rates,
		Overlaps: overlaps,
		Strategy: res.Name(),
	}

	e.log.Info().
		Int("rows", result.Stats.Rows).
		Int("resolved", result.Stats.Resolved).
		Int("unresolved", result.Stats.Unresolved).
		Int("missing_amount", result.Stats.MissingAmount).
		Int("missing_rate", result.Stats.MissingRate).
		Int("zero_gross", result.Stats.ZeroGross).
		Str("total_shortfall", result.Stats.TotalShortfall.StringFixed(2)).
		Msg("reconciliation complete")

	if !req.DryRun {
		if e.writer == nil {
			return nil, errNoWriter
		}
		path, err := e.writer.Write(result.Ledger, req.BaseName)
		if err != nil {
			return nil, err
		}
		result.OutputPath = path
		e.log.Info().Str("path", path).Msg("wrote reconciliation")
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Enrich resolves and derives every transaction, preserving input order.
// On cancellation it returns ctx.Err() and no rows.
func (e *Engine) Enrich(ctx context.Context, txs []types.TransactionRecord, res resolver.Resolver, workers int, progress ProgressFunc) ([]types.EnrichedTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]types.EnrichedTransaction, len(txs))
	if len(txs) == 0 {
		return out, nil
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(txs) {
		workers = len(txs)
	}

	report := e.observe(progress, len(txs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	shard := (len(txs) + workers - 1) / workers

	for lo := 0; lo < len(txs); lo += shard {
		hi := lo + shard
		if hi > len(txs) {
			hi = len(txs)
		}

		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				var rate *types.RateRecord
				if r, ok := res.Resolve(txs[i]); ok {
					rate = &r
				}
				out[i] = Derive(txs[i], rate)

				report(int(done.Add(1)))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// observe wraps a progress callback so that calls are serialized, counts
// never go backwards and a panicking callback cannot abort the run.
func (e *Engine) observe(progress ProgressFunc, total int) func(done int) {
	if progress == nil {
		return func(int) {}
	}

	var (
		mu     sync.Mutex
		last   int
		failed bool
	)

	return func(done int) {
		mu.Lock()
		defer mu.Unlock()

		if failed || done <= last {
			return
		}
		last = done

		defer func() {
			if r := recover(); r != nil {
				failed = true
				e.log.Warn().Interface("panic", r).Msg("progress reporting failed, continuing without it")
			}
		}()
		progress(done, total)
	}
}

// ledgerOf pairs the sales header with the enriched rows.
func ledgerOf(sales *types.SalesTable, rows []types.EnrichedTransaction) types.Ledger {
	return types.Ledger{
		Source:            sales.Source,
		Headers:           sales.Headers,
		SaleDateColumn:    sales.SaleDateColumn,
		InstallmentColumn: sales.InstallmentColumn,
		GrossColumn:       sales.GrossColumn,
		NetColumn:         sales.NetColumn,
		Rows:              rows,
	}
}
