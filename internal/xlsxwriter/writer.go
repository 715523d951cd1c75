// =============================================================================
// Card Fee Reconciler - XLSX Writer Module
// =============================================================================
//
// This module persists an enriched ledger as a single-sheet workbook.
//
// SHEET LAYOUT:
//   | sales columns ...       | Taxa | Valor Bruto-Líquido | Comissão ... |
//   | passthrough / typed     | rate | five derived figures, in order       |
//
//   - Header row: bold, centered, filled, fixed height
//   - A derived column named like a sales column gets a " (2)" suffix
//   - Sale-date column: real dates with the configured number format
//   - Bound numeric columns and derived figures: numbers, empty when null
//   - Other columns: numbers when the text is a plain number, else text
//   - Column width: longest rendered value + 2
//
// PERSISTENCE:
//   The workbook is saved to a temporary file in the target directory and
//   renamed into place, so a failed write never leaves a partial artifact
//   under the final name.
//
// =============================================================================

package xlsxwriter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/card-fee-reconciler/internal/config"
	"github.com/ginjaninja78/card-fee-reconciler/internal/types"
	"github.com/ginjaninja78/card-fee-reconciler/pkg/utils"
)

// Extension is the artifact file extension.
const Extension = ".xlsx"

// plainNumber matches passthrough text that is safe to store as a number.
// Leading zeros are kept as text so identifiers like "0412" survive.
var plainNumber = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?$`)

// =============================================================================
// WRITE ERROR
// =============================================================================

// WriteError reports that the artifact could not be persisted. Nothing is
// left under the target name when it is returned.
type WriteError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	if errors.Is(e.Err, fs.ErrPermission) {
		return fmt.Sprintf("cannot write %s: permission denied, close the file if it is open and try again: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// =============================================================================
// WRITER
// =============================================================================

// Writer writes ledgers as xlsx workbooks.
type Writer struct {
	Dir          string
	SheetName    string
	DateFormat   string
	HeaderFill   string
	HeaderHeight float64
	Columns      config.OutputColumns
}

// New creates a Writer from the output settings.
func New(cfg config.OutputSettings) *Writer {
	return &Writer{
		Dir:          cfg.Dir,
		SheetName:    cfg.SheetName,
		DateFormat:   cfg.DateFormat,
		HeaderFill:   cfg.HeaderFill,
		HeaderHeight: cfg.HeaderHeight,
		Columns:      cfg.Columns,
	}
}

// Write saves the ledger under the first free name base(N).xlsx in w.Dir and
// returns that path.
func (w *Writer) Write(ledger types.Ledger, baseName string) (string, error) {
	if err := utils.EnsureDir(w.Dir); err != nil {
		return "", &WriteError{Path: w.Dir, Err: err}
	}

	target := utils.NextAvailableName(w.Dir, baseName, Extension)

	f, err := w.build(ledger)
	if err != nil {
		return "", &WriteError{Path: target, Err: err}
	}
	defer f.Close()

	tmp := filepath.Join(w.Dir, ".~"+uuid.NewString()+Extension)
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return "", &WriteError{Path: target, Err: err}
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", &WriteError{Path: target, Err: err}
	}

	return target, nil
}

// =============================================================================
// SHEET CONSTRUCTION
// =============================================================================

// build lays out the whole workbook in memory.
func (w *Writer) build(ledger types.Ledger) (*excelize.File, error) {
	f := excelize.NewFile()

	sheet := w.SheetName
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}

	headers := headerRow(ledger.Headers, w.Columns.Names())
	widths := make([]int, len(headers))

	for col, name := range headers {
		if err := setCell(f, sheet, col, 1, name); err != nil {
			f.Close()
			return nil, err
		}
		widths[col] = utf8.RuneCountInString(name)
	}

	for i, row := range ledger.Rows {
		excelRow := i + 2

		for col := range ledger.Headers {
			value, text := w.sourceValue(ledger, row, col)
			if value == nil {
				continue
			}
			if err := setCell(f, sheet, col, excelRow, value); err != nil {
				f.Close()
				return nil, err
			}
			widths[col] = max(widths[col], utf8.RuneCountInString(text))
		}

		derived := []decimal.NullDecimal{
			row.ResolvedRatePercent,
			row.Retention,
			row.AppliedCommissionPercent,
			row.ContractedNetValue,
			row.Difference,
			row.Shortfall,
		}
		for j, d := range derived {
			if !d.Valid {
				continue
			}
			col := len(ledger.Headers) + j
			if err := setCell(f, sheet, col, excelRow, d.Decimal.InexactFloat64()); err != nil {
				f.Close()
				return nil, err
			}
			widths[col] = max(widths[col], len(d.Decimal.String()))
		}
	}

	if err := w.style(f, sheet, ledger, widths); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

// sourceValue returns the cell value for a sales column and the text its
// width is measured by. A nil value leaves the cell empty. Bound columns are
// rendered from the typed fields; unreadable values fall back to the source
// text.
func (w *Writer) sourceValue(ledger types.Ledger, row types.EnrichedTransaction, col int) (any, string) {
	switch {
	case col == ledger.SaleDateColumn && row.SaleDate.Valid:
		return row.SaleDate.Time, w.DateFormat
	case col == ledger.InstallmentColumn && row.InstallmentCount.Valid:
		return row.InstallmentCount.Int, strconv.Itoa(row.InstallmentCount.Int)
	case col == ledger.GrossColumn && row.GrossAmount.Valid:
		return row.GrossAmount.Decimal.InexactFloat64(), row.GrossAmount.Decimal.String()
	case col == ledger.NetColumn && row.NetAmount.Valid:
		return row.NetAmount.Decimal.InexactFloat64(), row.NetAmount.Decimal.String()
	}

	var text string
	if col < len(row.Cells) {
		text = row.Cells[col]
	}
	if text == "" {
		return nil, ""
	}
	if plainNumber.MatchString(text) {
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			return v, text
		}
	}
	return text, text
}

// style applies header emphasis, the sale-date number format and column
// widths.
func (w *Writer) style(f *excelize.File, sheet string, ledger types.Ledger, widths []int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{w.HeaderFill}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	last, err := excelize.CoordinatesToCellName(len(widths), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	if w.HeaderHeight > 0 {
		if err := f.SetRowHeight(sheet, 1, w.HeaderHeight); err != nil {
			return err
		}
	}

	if len(ledger.Rows) > 0 && ledger.SaleDateColumn >= 0 && ledger.SaleDateColumn < len(ledger.Headers) {
		dateFormat := w.DateFormat
		dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFormat})
		if err != nil {
			return fmt.Errorf("failed to create date style: %w", err)
		}
		top, err := excelize.CoordinatesToCellName(ledger.SaleDateColumn+1, 2)
		if err != nil {
			return err
		}
		bottom, err := excelize.CoordinatesToCellName(ledger.SaleDateColumn+1, len(ledger.Rows)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, top, bottom, dateStyle); err != nil {
			return err
		}
	}

	for col, width := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, min(float64(width+2), excelize.MaxColumnWidth)); err != nil {
			return err
		}
	}

	return nil
}

// headerRow appends the derived column names to the source headers. A derived
// name already used by an earlier header, ignoring case, gets the first free
// " (N)" suffix so every header in the sheet is distinct.
func headerRow(source, derived []string) []string {
	headers := make([]string, 0, len(source)+len(derived))
	used := make(map[string]bool, cap(headers))

	for _, name := range source {
		headers = append(headers, name)
		used[strings.ToLower(name)] = true
	}
	for _, name := range derived {
		unique := name
		for n := 2; used[strings.ToLower(unique)]; n++ {
			unique = fmt.Sprintf("%s (%d)", name, n)
		}
		headers = append(headers, unique)
		used[strings.ToLower(unique)] = true
	}
	return headers
}

// setCell writes value at the zero-based column and one-based row.
func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
