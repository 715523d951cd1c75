package reconciler

import (
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/card-fee-reconciler/internal/types"
)

var hundred = decimal.NewFromInt(100)

// Derive computes the reconciliation figures for one transaction from its
// resolved rate. rate is nil when the transaction is unresolved.
//
// The chain, in order:
//
//	retention            = gross - net
//	applied commission % = retention * 100 / gross      (null when gross == 0)
//	contracted net value = (100 - rate) / 100 * gross
//	difference           = contracted net value - net
//	shortfall            = max(difference, 0)
//
// Either every field is populated or every field is null, except that a zero
// gross amount nulls the applied commission alone.
func Derive(tx types.TransactionRecord, rate *types.RateRecord) types.EnrichedTransaction {
	out := types.EnrichedTransaction{TransactionRecord: tx}

	if rate == nil {
		out.Outcome = types.OutcomeUnresolved
		return out
	}

	out.RateRow = rate.Row
	if !rate.RatePercent.Valid {
		out.Outcome = types.OutcomeMissingRate
		return out
	}
	if !tx.GrossAmount.Valid || !tx.NetAmount.Valid {
		out.Outcome = types.OutcomeMissingAmount
		return out
	}

	gross := tx.GrossAmount.Decimal
	net := tx.NetAmount.Decimal
	ratePct := rate.RatePercent.Decimal

	retention := gross.Sub(net)
	contracted := hundred.Sub(ratePct).Div(hundred).Mul(gross)
	difference := contracted.Sub(net)
	shortfall := decimal.Max(difference, decimal.Zero)

	out.Outcome = types.OutcomeResolved
	out.ResolvedRatePercent = decimal.NewNullDecimal(ratePct)
	out.Retention = decimal.NewNullDecimal(retention)
	if !gross.IsZero() {
		out.AppliedCommissionPercent = decimal.NewNullDecimal(retention.Mul(hundred).Div(gross))
	}
	out.ContractedNetValue = decimal.NewNullDecimal(contracted)
	out.Difference = decimal.NewNullDecimal(difference)
	out.Shortfall = decimal.NewNullDecimal(shortfall)

	return out
}

// Stats aggregates per-row outcomes of a run.
type Stats struct {
	Rows          int
	Resolved      int
	Unresolved    int
	MissingAmount int
	MissingRate   int

	// ZeroGross counts resolved rows whose applied commission is null
	// because the gross amount is zero.
	ZeroGross int

	// ShortfallRows counts resolved rows with a positive shortfall.
	ShortfallRows  int
	TotalShortfall decimal.Decimal
}

// Summarize counts outcomes over enriched rows.
func Summarize(rows []types.EnrichedTransaction) Stats {
	s := Stats{Rows: len(rows), TotalShortfall: decimal.Zero}
	for _, r := range rows {
		switch r.Outcome {
		case types.OutcomeResolved:
			s.Resolved++
			if !r.AppliedCommissionPercent.Valid {
				s.ZeroGross++
			}
			if r.Shortfall.Decimal.IsPositive() {
				s.ShortfallRows++
				s.TotalShortfall = s.TotalShortfall.Add(r.Shortfall.Decimal)
			}
		case types.OutcomeUnresolved:
			s.Unresolved++
		case types.OutcomeMissingAmount:
			s.MissingAmount++
		case types.OutcomeMissingRate:
			s.MissingRate++
		}
	}
	return s
}
