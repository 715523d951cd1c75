// =============================================================================
// Card Fee Reconciler - Validation Engine
// =============================================================================
//
// This module produces diagnostics for the loaded tables. Diagnostics never
// stop a run: the engine resolves whatever it can and the validator explains
// why the rest could not be resolved.
//
// FEE SCHEDULE CHECKS:
//   - overlap:              two records for one key with intersecting windows
//   - inverted_window:      valid_from after valid_to (the record never applies)
//   - missing_date:         a bound date could not be read
//   - missing_installments: the installment count could not be read
//   - missing_instrument:   the instrument identifier is blank
//   - rate_out_of_range:    the rate is missing, negative or above 100
//
// SALES LEDGER CHECKS:
//   - missing_date, missing_installments, missing_amount
//
// SEVERITY:
//   "error" marks a record that can never match. "warning" marks a record
//   that may produce unexpected results. Neither is fatal.
//
// =============================================================================

package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/card-fee-reconciler/internal/config"
	"github.com/ginjaninja78/card-fee-reconciler/internal/resolver"
	"github.com/ginjaninja78/card-fee-reconciler/internal/types"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names.
const (
	RuleOverlap             = "overlap"
	RuleInvertedWindow      = "inverted_window"
	RuleMissingDate         = "missing_date"
	RuleMissingInstallments = "missing_installments"
	RuleMissingInstrument   = "missing_instrument"
	RuleRateOutOfRange      = "rate_out_of_range"
	RuleMissingAmount       = "missing_amount"
)

// Table names reported on each diagnostic.
const (
	TableSales = "sales"
	TableRates = "rates"
)

var maxRate = decimal.NewFromInt(100)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single diagnostic.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Table is the table the row belongs to.
	Table string

	// Row is the 1-based source row number.
	Row int

	// Field is the header name of the offending column.
	Field string

	// Value is the source value, when one is available.
	Value string

	// Rule is the check that fired.
	Rule string

	// Message is a human-readable explanation.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("[%s] %s row %d", strings.ToUpper(e.Severity), e.Table, e.Row)
	if e.Field != "" {
		msg += fmt.Sprintf(", field '%s'", e.Field)
	}
	msg += ": " + e.Message
	if e.Value != "" {
		msg += fmt.Sprintf(" (value: '%s')", e.Value)
	}
	return msg
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result contains the diagnostics of one or more checks.
type Result struct {
	// IsValid is true if there are no error-severity diagnostics.
	IsValid bool

	// Errors contains all diagnostics, including warnings. Each check
	// returns them ordered by row; Merge appends, so a merged result keeps
	// one table's diagnostics before the next.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	// RowsValidated is the number of records checked.
	RowsValidated int
}

func newResult(rows int) *Result {
	return &Result{IsValid: true, RowsValidated: rows}
}

func (r *Result) add(e *ValidationError) {
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
	} else {
		r.WarningCount++
	}
}

// Merge appends the diagnostics of other to r.
func (r *Result) Merge(other *Result) {
	for _, e := range other.Errors {
		r.add(e)
	}
	r.RowsValidated += other.RowsValidated
}

// =============================================================================
// FEE SCHEDULE
// =============================================================================

// ValidateRates checks the fee schedule. cols supplies the header names used
// in messages.
func ValidateRates(rates []types.RateRecord, cols config.RateColumns) *Result {
	result := newResult(len(rates))

	for _, r := range rates {
		if r.InstrumentID == "" {
			result.add(&ValidationError{
				Severity: SeverityWarning, Table: TableRates, Row: r.Row,
				Field: cols.InstrumentID, Rule: RuleMissingInstrument,
				Message: "instrument identifier is blank",
			})
		}
		if !r.InstallmentCount.Valid {
			result.add(&ValidationError{
				Severity: SeverityWarning, Table: TableRates, Row: r.Row,
				Field: cols.InstallmentCount, Rule: RuleMissingInstallments,
				Message: "installment count is missing or not a whole number, record never matches",
			})
		}
		if !r.ValidFrom.Valid {
			result.add(&ValidationError{
				Severity: SeverityWarning, Table: TableRates, Row: r.Row,
				Field: cols.ValidFrom, Rule: RuleMissingDate,
				Message: "start date is missing or unreadable, record never matches",
			})
		}
		if !r.ValidTo.Valid {
			result.add(&ValidationError{
				Severity: SeverityWarning, Table: TableRates, Row: r.Row,
				Field: cols.ValidTo, Rule: RuleMissingDate,
				Message: "end date is missing or unreadable, record never matches",
			})
		}
		if r.ValidFrom.Valid && r.ValidTo.Valid && r.ValidFrom.Time.After(r.ValidTo.Time) {
			result.add(&ValidationError{
				Severity: SeverityError, Table: TableRates, Row: r.Row,
				Field: cols.ValidFrom, Rule: RuleInvertedWindow,
				Value:   r.ValidFrom.String() + " > " + r.ValidTo.String(),
				Message: "validity window starts after it ends, record never matches",
			})
		}

		switch {
		case !r.RatePercent.Valid:
			result.add(&ValidationError{
				Severity: SeverityWarning, Table: TableRates, Row: r.Row,
				Field: cols.RatePercent, Rule: RuleRateOutOfRange,
				Message: "rate is missing or unreadable, matching sales get no derived values",
			})
		case r.RatePercent.Decimal.IsNegative() || r.RatePercent.Decimal.GreaterThan(maxRate):
			result.add(&ValidationError{
				Severity: SeverityWarning, Table: TableRates, Row: r.Row,
				Field: cols.RatePercent, Rule: RuleRateOutOfRange,
				Value:   r.RatePercent.Decimal.String(),
				Message: "rate is outside 0..100 percent",
			})
		}
	}

	for _, o := range resolver.FindOverlaps(rates) {
		result.add(&ValidationError{
			Severity: SeverityWarning, Table: TableRates, Row: o.Second.Row,
			Field: cols.ValidFrom, Rule: RuleOverlap,
			Value:   o.From.String() + ".." + o.To.String(),
			Message: fmt.Sprintf("window overlaps row %d for %s/%d installments, row %d wins",
				o.First.Row, o.Key.InstrumentID, o.Key.Installments, o.First.Row),
		})
	}

	sort.SliceStable(result.Errors, func(i, j int) bool {
		return result.Errors[i].Row < result.Errors[j].Row
	})

	return result
}

// =============================================================================
// SALES LEDGER
// =============================================================================

// ValidateSales checks the sales ledger for rows that cannot be reconciled.
func ValidateSales(sales *types.SalesTable) *Result {
	result := newResult(len(sales.Rows))

	field := func(col int) string {
		if col >= 0 && col < len(sales.Headers) {
			return sales.Headers[col]
		}
		return ""
	}
	value := func(tx types.TransactionRecord, col int) string {
		if col >= 0 && col < len(tx.Cells) {
			return tx.Cells[col]
		}
		return ""
	}

	for _, tx := range sales.Rows {
		if !tx.SaleDate.Valid {
			result.add(&ValidationError{
				Severity: SeverityWarning, Table: TableSales, Row: tx.Row,
				Field: field(sales.SaleDateColumn), Value: value(tx, sales.SaleDateColumn),
				Rule: RuleMissingDate, Message: "sale date is missing or unreadable, row stays unresolved",
			})
		}
		if !tx.InstallmentCount.Valid {
			result.add(&ValidationError{
				Severity: SeverityWarning, Table: TableSales, Row: tx.Row,
				Field: field(sales.InstallmentColumn), Value: value(tx, sales.InstallmentColumn),
				Rule: RuleMissingInstallments, Message: "installment count is missing or not a whole number, row stays unresolved",
			})
		}
		if !tx.GrossAmount.Valid {
			result.add(&ValidationError{
				Severity: SeverityWarning, Table: TableSales, Row: tx.Row,
				Field: field(sales.GrossColumn), Value: value(tx, sales.GrossColumn),
				Rule: RuleMissingAmount, Message: "gross amount is missing or unreadable",
			})
		}
		if !tx.NetAmount.Valid {
			result.add(&ValidationError{
				Severity: SeverityWarning, Table: TableSales, Row: tx.Row,
				Field: field(sales.NetColumn), Value: value(tx, sales.NetColumn),
				Rule: RuleMissingAmount, Message: "net amount is missing or unreadable",
			})
		}
	}

	return result
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats diagnostics for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d diagnostic(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}
