// =============================================================================
// Card Fee Reconciler - Table Loader & Normalizer
// =============================================================================
//
// This module turns the two source tables into typed relations:
//   - sales ledger -> types.SalesTable of TransactionRecord
//   - fee schedule -> []types.RateRecord in source row order
//
// LOADING STEPS:
//   1. Pick a reader by extension (.xlsx/.xlsm -> excelize, .csv/.txt -> csv)
//   2. Discard leading header noise (sales only) and find the header row
//   3. Drop auto-generated columns (blank headers, "Unnamed: N", "Column_N")
//   4. Bind the configured header names to engine fields
//   5. Coerce every row leniently: bad dates, amounts and counts become
//      null markers instead of failing the load
//
// A table that cannot be read at all, has no header, or lacks a bound column
// fails with a LoadError naming the table. No partial rows are returned.
//
// =============================================================================

package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/card-fee-reconciler/internal/config"
	"github.com/ginjaninja78/card-fee-reconciler/internal/csvparser"
	"github.com/ginjaninja78/card-fee-reconciler/internal/logger"
	"github.com/ginjaninja78/card-fee-reconciler/internal/types"
	"github.com/ginjaninja78/card-fee-reconciler/internal/xlsxparser"
)

// unnamedHeader matches column names generated by spreadsheet tools and
// dataframe exports for columns that never had a header.
var unnamedHeader = regexp.MustCompile(`(?i)^(unnamed: ?\d+(_level_\d+)?|column_\d+)$`)

// =============================================================================
// LOADER
// =============================================================================

// Loader reads and normalizes source tables.
type Loader struct {
	cfg *config.Config
}

// SalesOptions carries the per-run loader settings the caller may override.
type SalesOptions struct {
	// HeaderRowsToSkip is the number of leading rows discarded before the
	// header row.
	HeaderRowsToSkip int

	// RowCap is the maximum number of data rows kept. 0 means no cap.
	RowCap int
}

// New creates a Loader bound to the configured column names.
func New(cfg *config.Config) *Loader {
	return &Loader{cfg: cfg}
}

// SalesOptionsFromConfig returns the configured sales options.
func SalesOptionsFromConfig(cfg *config.Config) SalesOptions {
	return SalesOptions{
		HeaderRowsToSkip: cfg.Sales.HeaderRowsToSkip,
		RowCap:           cfg.Sales.RowCap,
	}
}

// =============================================================================
// SALES TABLE
// =============================================================================

// LoadSales reads the sales ledger.
func (l *Loader) LoadSales(ctx context.Context, path string, opts SalesOptions) (*types.SalesTable, error) {
	if opts.HeaderRowsToSkip < 0 {
		return nil, loadError(TableSales, path, fmt.Errorf("header rows to skip must be non-negative, got %d", opts.HeaderRowsToSkip))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := readSource(path, l.cfg.Sales.Sheet, l.cfg.Sales.CSV)
	if err != nil {
		return nil, loadError(TableSales, path, err)
	}

	hdr, err := findHeader(table, opts.HeaderRowsToSkip)
	if err != nil {
		return nil, loadError(TableSales, path, err)
	}

	cols := l.cfg.Sales.Columns
	bound, err := hdr.bind(cols.InstrumentID, cols.SaleDate, cols.InstallmentCount, cols.GrossAmount, cols.NetAmount)
	if err != nil {
		return nil, loadError(TableSales, path, err)
	}
	instrument, saleDate, installments, gross, net := bound[0], bound[1], bound[2], bound[3], bound[4]

	log := logger.FromContext(ctx).With().Str("table", TableSales).Str("path", path).Logger()
	hdr.describe(log)

	sales := &types.SalesTable{
		Source:            path,
		Headers:           hdr.names,
		SaleDateColumn:    saleDate,
		InstallmentColumn: installments,
		GrossColumn:       gross,
		NetColumn:         net,
	}

	fold := l.cfg.Processing.FoldInstrumentCase
	order := l.cfg.Processing.DateOrder
	sep := l.cfg.Processing.DecimalSeparator
	blank := 0

	for i := hdr.row + 1; i < len(table.Rows); i++ {
		if opts.RowCap > 0 && len(sales.Rows) >= opts.RowCap {
			log.Debug().Int("row_cap", opts.RowCap).Int("ignored_rows", len(table.Rows)-i).Msg("row cap reached")
			break
		}

		cells, ok := hdr.project(table.Rows[i])
		if !ok {
			blank++
			continue
		}

		display := make([]string, len(cells))
		for j, c := range cells {
			display[j] = strings.TrimSpace(c.Display)
		}

		sales.Rows = append(sales.Rows, types.TransactionRecord{
			Row:              i + 1,
			InstrumentID:     normalizeInstrument(fieldOf(cells[instrument]).text, fold),
			SaleDate:         parseDate(fieldOf(cells[saleDate]), order),
			InstallmentCount: parseInt(fieldOf(cells[installments]), sep),
			GrossAmount:      parseDecimal(fieldOf(cells[gross]), sep),
			NetAmount:        parseDecimal(fieldOf(cells[net]), sep),
			Cells:            display,
		})
	}
	if blank > 0 {
		log.Debug().Int("rows", blank).Msg("skipped blank rows")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return sales, nil
}

// =============================================================================
// RATE TABLE
// =============================================================================

// LoadRates reads the fee schedule. Records keep the source row order, which
// is the tie-break order for overlapping validity windows.
func (l *Loader) LoadRates(ctx context.Context, path string) ([]types.RateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := readSource(path, l.cfg.Rates.Sheet, l.cfg.Rates.CSV)
	if err != nil {
		return nil, loadError(TableRates, path, err)
	}

	hdr, err := findHeader(table, 0)
	if err != nil {
		return nil, loadError(TableRates, path, err)
	}

	cols := l.cfg.Rates.Columns
	bound, err := hdr.bind(cols.InstrumentID, cols.InstallmentCount, cols.ValidFrom, cols.ValidTo, cols.RatePercent)
	if err != nil {
		return nil, loadError(TableRates, path, err)
	}
	instrument, installments, from, to, rate := bound[0], bound[1], bound[2], bound[3], bound[4]

	hdr.describe(logger.FromContext(ctx).With().Str("table", TableRates).Str("path", path).Logger())

	fold := l.cfg.Processing.FoldInstrumentCase
	order := l.cfg.Processing.DateOrder
	sep := l.cfg.Processing.DecimalSeparator

	var rates []types.RateRecord
	for i := hdr.row + 1; i < len(table.Rows); i++ {
		cells, ok := hdr.project(table.Rows[i])
		if !ok {
			continue
		}

		rates = append(rates, types.RateRecord{
			Row:              i + 1,
			InstrumentID:     normalizeInstrument(fieldOf(cells[instrument]).text, fold),
			InstallmentCount: parseInt(fieldOf(cells[installments]), sep),
			ValidFrom:        parseDate(fieldOf(cells[from]), order),
			ValidTo:          parseDate(fieldOf(cells[to]), order),
			RatePercent:      parseDecimal(fieldOf(cells[rate]), sep),
		})
	}

	return rates, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// readSource picks a reader by file extension.
func readSource(path, sheet string, csvSettings config.CSVSettings) (*xlsxparser.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return xlsxparser.ReadTable(path, sheet)
	case ".csv", ".txt":
		return csvparser.ReadTable(path, csvSettings)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// header is the kept part of a table's header row.
type header struct {
	// row is the index of the header row in the table.
	row int

	// names are the kept header names, in source order.
	names []string

	// keep maps each kept column to its source column index.
	keep []int

	// dropped lists the source column indexes of unnamed columns.
	dropped []int
}

// describe logs where the header was found and which columns were dropped.
func (h *header) describe(log zerolog.Logger) {
	event := log.Debug().Int("header_row", h.row+1).Strs("columns", h.names)
	if len(h.dropped) > 0 {
		letters := make([]string, 0, len(h.dropped))
		for _, col := range h.dropped {
			if name, err := excelize.ColumnNumberToName(col + 1); err == nil {
				letters = append(letters, name)
			}
		}
		event = event.Strs("dropped_columns", letters)
	}
	event.Msg("header bound")
}

// findHeader skips the given number of leading rows, then takes the first
// non-empty row as the header.
func findHeader(table *xlsxparser.Table, skip int) (*header, error) {
	for i := skip; i < len(table.Rows); i++ {
		if xlsxparser.IsRowEmpty(table.Rows[i]) {
			continue
		}

		hdr := &header{row: i}
		for col, cell := range table.Rows[i] {
			name := strings.TrimSpace(cell.Display)
			if isUnnamed(name) {
				hdr.dropped = append(hdr.dropped, col)
				continue
			}
			hdr.names = append(hdr.names, name)
			hdr.keep = append(hdr.keep, col)
		}

		if len(hdr.names) == 0 {
			return nil, ErrEmptySheet
		}
		return hdr, nil
	}

	return nil, ErrEmptySheet
}

// bind resolves header names to indexes into the kept columns. Exact matches
// win over case-insensitive ones. Every missing name is reported.
func (h *header) bind(names ...string) ([]int, error) {
	indexes := make([]int, len(names))
	var missing []string

	for i, want := range names {
		idx := h.lookup(want)
		if idx < 0 {
			missing = append(missing, fmt.Sprintf("%q", want))
		}
		indexes[i] = idx
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s (have: %s)", ErrMissingColumn, strings.Join(missing, ", "), strings.Join(h.names, ", "))
	}

	return indexes, nil
}

func (h *header) lookup(want string) int {
	want = strings.TrimSpace(want)
	for i, name := range h.names {
		if name == want {
			return i
		}
	}
	for i, name := range h.names {
		if strings.EqualFold(name, want) {
			return i
		}
	}
	return -1
}

// project keeps only named columns of a row. It reports false when every
// kept cell is empty.
func (h *header) project(row []xlsxparser.Cell) ([]xlsxparser.Cell, bool) {
	cells := make([]xlsxparser.Cell, len(h.keep))
	for i, col := range h.keep {
		if col < len(row) {
			cells[i] = row[col]
		}
	}
	if xlsxparser.IsRowEmpty(cells) {
		return nil, false
	}
	return cells, true
}

// isUnnamed reports whether a header is blank or auto-generated.
func isUnnamed(name string) bool {
	return name == "" || unnamedHeader.MatchString(name)
}
