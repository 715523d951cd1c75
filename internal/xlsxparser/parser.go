// =============================================================================
// Card Fee Reconciler - XLSX Table Reader
// =============================================================================
//
// This module reads one worksheet of an XLSX workbook into a raw Table: a
// grid of cells, each carrying two renderings of the same value:
//   - Display : the value as Excel shows it (number formats applied)
//   - Raw     : the stored value (date cells arrive as serial numbers)
//   - Numeric : the cell is stored as a number, so Raw is canonical
//
// The loader parses typed fields from Raw and passes Display through to the
// output, so a sale-date column stored as 45361 can be read as 2024-03-10
// while free-text columns keep their on-screen form.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// =============================================================================
// TABLE STRUCTURE
// =============================================================================

// canonicalNumber matches the stored text of a numeric cell.
var canonicalNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

// Cell is a single worksheet value.
type Cell struct {
	Display string
	Raw     string

	// Numeric is set for cells stored as numbers. Text cells that happen to
	// hold digits, like "1.000", are not numeric.
	Numeric bool
}

// Table is a rectangular-ish grid of cells read from one source. Rows may
// have different lengths, as trailing empty cells are not stored.
type Table struct {
	// Source is the path the table was read from.
	Source string

	// Sheet is the worksheet name ("" for delimited sources).
	Sheet string

	// Rows holds every row of the sheet, header rows included.
	Rows [][]Cell
}

// Value returns the cell at (row, col), or an empty Cell when out of range.
func (t *Table) Value(row, col int) Cell {
	if row < 0 || row >= len(t.Rows) {
		return Cell{}
	}
	if col < 0 || col >= len(t.Rows[row]) {
		return Cell{}
	}
	return t.Rows[row][col]
}

// IsRowEmpty checks if a row contains only empty cells.
func IsRowEmpty(row []Cell) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell.Display) != "" || strings.TrimSpace(cell.Raw) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// READER FUNCTIONS
// =============================================================================

// ReadTable opens an XLSX workbook and reads one sheet.
//
// PARAMETERS:
//   - path:  The path to the workbook.
//   - sheet: The worksheet name. Empty selects the first sheet.
//
// RETURNS:
//   - The raw table.
//   - An error if the workbook cannot be opened or the sheet does not exist.
func ReadTable(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found (available: %s)", sheet, strings.Join(f.GetSheetList(), ", "))
	}

	display, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read raw rows: %w", err)
	}

	rows := mergeRows(display, raw)
	if err := markNumeric(f, sheet, rows); err != nil {
		return nil, err
	}

	return &Table{
		Source: path,
		Sheet:  sheet,
		Rows:   rows,
	}, nil
}

// markNumeric flags the cells stored as numbers. Only cells whose raw text
// looks like a number are looked up.
func markNumeric(f *excelize.File, sheet string, rows [][]Cell) error {
	for i, row := range rows {
		for j := range row {
			if !canonicalNumber.MatchString(row[j].Raw) {
				continue
			}
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			typ, err := f.GetCellType(sheet, name)
			if err != nil {
				return fmt.Errorf("failed to read cell type of %s: %w", name, err)
			}
			row[j].Numeric = typ == excelize.CellTypeNumber || typ == excelize.CellTypeUnset
		}
	}
	return nil
}

// SheetNames lists the worksheets of a workbook in tab order.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

// FromStrings builds a Table whose display and raw renderings are the same.
// Delimited sources and tests use it.
func FromStrings(source string, rows [][]string) *Table {
	return &Table{Source: source, Rows: mergeRows(rows, rows)}
}

// mergeRows zips the formatted and raw grids into cells.
func mergeRows(display, raw [][]string) [][]Cell {
	n := len(display)
	if len(raw) > n {
		n = len(raw)
	}

	rows := make([][]Cell, n)
	for i := 0; i < n; i++ {
		var d, r []string
		if i < len(display) {
			d = display[i]
		}
		if i < len(raw) {
			r = raw[i]
		}

		width := len(d)
		if len(r) > width {
			width = len(r)
		}

		cells := make([]Cell, width)
		for j := 0; j < width; j++ {
			if j < len(d) {
				cells[j].Display = d[j]
			}
			if j < len(r) {
				cells[j].Raw = r[j]
			}
		}
		rows[i] = cells
	}

	return rows
}
