// =============================================================================
// Card Fee Reconciler - Shared Types
// =============================================================================
//
// This package contains the records that flow through the engine. They live
// here to avoid import cycles between:
//   - loader      (produces TransactionRecord and RateRecord)
//   - resolver    (matches a TransactionRecord to a RateRecord)
//   - reconciler  (derives EnrichedTransaction)
//   - xlsxwriter  (consumes Ledger)
//
// =============================================================================

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// NULLABLE VALUES
// =============================================================================

// NullDate is a calendar date that may be missing. Unparseable source cells
// load as an invalid NullDate, and invalid dates never satisfy an interval.
type NullDate struct {
	Time  time.Time
	Valid bool
}

// NewDate returns a valid NullDate truncated to midnight UTC.
func NewDate(year int, month time.Month, day int) NullDate {
	return NullDate{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

// DateOf returns a valid NullDate for the calendar day of t.
func DateOf(t time.Time) NullDate {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// String renders the date as YYYY-MM-DD, or an empty string when missing.
func (d NullDate) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format("2006-01-02")
}

// NullInt is an integer that may be missing.
type NullInt struct {
	Int   int
	Valid bool
}

// =============================================================================
// INPUT RECORDS
// =============================================================================

// TransactionRecord is one row of the sales ledger.
type TransactionRecord struct {
	// Row is the 1-based row number in the source sheet.
	Row int

	InstrumentID     string
	SaleDate         NullDate
	InstallmentCount NullInt
	GrossAmount      decimal.NullDecimal
	NetAmount        decimal.NullDecimal

	// Cells holds the display value of every kept source column, aligned
	// with SalesTable.Headers. The writer passes these through unchanged.
	Cells []string
}

// RateRecord is one row of the fee schedule. Rate records are never
// mutated after load.
type RateRecord struct {
	// Row is the 1-based row number in the source sheet. Row order is the
	// tie-break order when validity windows overlap.
	Row int

	InstrumentID     string
	InstallmentCount NullInt
	ValidFrom        NullDate
	ValidTo          NullDate
	RatePercent      decimal.NullDecimal
}

// Key returns the composite equality key of the record.
func (r RateRecord) Key() RateKey {
	return RateKey{InstrumentID: r.InstrumentID, Installments: r.InstallmentCount.Int}
}

// Covers reports whether date lies inside the inclusive validity window.
func (r RateRecord) Covers(date NullDate) bool {
	if !date.Valid || !r.ValidFrom.Valid || !r.ValidTo.Valid {
		return false
	}
	return !date.Time.Before(r.ValidFrom.Time) && !date.Time.After(r.ValidTo.Time)
}

// RateKey is the composite key a transaction and a rate must share.
type RateKey struct {
	InstrumentID string
	Installments int
}

// SalesTable is the typed sales relation together with the source header
// row, in source column order.
type SalesTable struct {
	Source  string
	Headers []string

	// SaleDateColumn, GrossColumn, NetColumn and InstallmentColumn are
	// indexes into Headers of the bound columns.
	SaleDateColumn    int
	InstallmentColumn int
	GrossColumn       int
	NetColumn         int

	Rows []TransactionRecord
}

// =============================================================================
// OUTPUT RECORDS
// =============================================================================

// Outcome explains how a row's derived fields were produced.
type Outcome int

const (
	// OutcomeResolved means a rate matched and the chain was computed.
	OutcomeResolved Outcome = iota

	// OutcomeUnresolved means no rate record satisfied the key and window.
	OutcomeUnresolved

	// OutcomeMissingAmount means a rate matched but the gross or net amount
	// could not be read, so the chain could not be computed.
	OutcomeMissingAmount

	// OutcomeMissingRate means the first matching rate record has no
	// readable rate percent.
	OutcomeMissingRate
)

// String returns a short label for logs and summaries.
func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeUnresolved:
		return "unresolved"
	case OutcomeMissingAmount:
		return "missing_amount"
	case OutcomeMissingRate:
		return "missing_rate"
	default:
		return "unknown"
	}
}

// EnrichedTransaction is a TransactionRecord extended with the resolved rate
// and the five derived figures, in dependency order.
type EnrichedTransaction struct {
	TransactionRecord

	Outcome Outcome

	// RateRow is the source row of the matched rate record, 0 when none.
	RateRow int

	ResolvedRatePercent      decimal.NullDecimal
	Retention                decimal.NullDecimal
	AppliedCommissionPercent decimal.NullDecimal
	ContractedNetValue       decimal.NullDecimal
	Difference               decimal.NullDecimal
	Shortfall                decimal.NullDecimal
}

// Ledger is the ordered output of a run: the sales header row and one
// enriched row per input row.
type Ledger struct {
	Source  string
	Headers []string

	// Bound column indexes into Headers, as in SalesTable. The writer
	// renders these from the typed fields instead of the display cells.
	SaleDateColumn    int
	InstallmentColumn int
	GrossColumn       int
	NetColumn         int

	Rows []EnrichedTransaction
}
