package loader

import (
	"errors"
	"fmt"
)

// Table names used in LoadError.
const (
	TableSales = "sales"
	TableRates = "rates"
)

var (
	// ErrMissingColumn is returned when a bound header is not in the sheet.
	ErrMissingColumn = errors.New("required column not found")

	// ErrEmptySheet is returned when a sheet has no header row.
	ErrEmptySheet = errors.New("sheet has no header row")

	// ErrUnsupportedFormat is returned for file extensions the loader
	// cannot read.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// LoadError reports that a source table could not be loaded. It is fatal to
// the run and no rows from the table are returned.
type LoadError struct {
	// Table is TableSales or TableRates.
	Table string

	// Path is the source path.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s table %s: %v", e.Table, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

func loadError(table, path string, err error) error {
	return &LoadError{Table: table, Path: path, Err: err}
}
