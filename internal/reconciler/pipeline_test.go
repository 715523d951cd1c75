package reconciler

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/card-fee-reconciler/internal/types"
)

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func expectDecimal(t *testing.T, field string, got decimal.NullDecimal, want string) {
	t.Helper()
	if !got.Valid {
		t.Errorf("Expected %s = %s, got null", field, want)
		return
	}
	if !got.Decimal.Equal(decimal.RequireFromString(want)) {
		t.Errorf("Expected %s = %s, got %s", field, want, got.Decimal)
	}
}

func expectAllNull(t *testing.T, row types.EnrichedTransaction) {
	t.Helper()
	fields := map[string]decimal.NullDecimal{
		"resolved rate":      row.ResolvedRatePercent,
		"retention":          row.Retention,
		"applied commission": row.AppliedCommissionPercent,
		"contracted net":     row.ContractedNetValue,
		"difference":         row.Difference,
		"shortfall":          row.Shortfall,
	}
	for name, v := range fields {
		if v.Valid {
			t.Errorf("Expected %s to be null, got %s", name, v.Decimal)
		}
	}
}

func visaSale(gross, net string) types.TransactionRecord {
	return types.TransactionRecord{
		Row:              2,
		InstrumentID:     "VISA",
		SaleDate:         types.NewDate(2024, 3, 10),
		InstallmentCount: types.NullInt{Int: 3, Valid: true},
		GrossAmount:      dec(gross),
		NetAmount:        dec(net),
	}
}

func visaRate(pct string) *types.RateRecord {
	return &types.RateRecord{
		Row:              5,
		InstrumentID:     "VISA",
		InstallmentCount: types.NullInt{Int: 3, Valid: true},
		ValidFrom:        types.NewDate(2024, 1, 1),
		ValidTo:          types.NewDate(2024, 6, 30),
		RatePercent:      dec(pct),
	}
}

func TestDerive_ScenarioA(t *testing.T) {
	row := Derive(visaSale("1000.00", "950.00"), visaRate("4.5"))

	if row.Outcome != types.OutcomeResolved {
		t.Fatalf("Expected resolved, got %s", row.Outcome)
	}
	if row.RateRow != 5 {
		t.Errorf("Expected rate row 5, got %d", row.RateRow)
	}
	expectDecimal(t, "resolved rate", row.ResolvedRatePercent, "4.5")
	expectDecimal(t, "retention", row.Retention, "50.00")
	expectDecimal(t, "applied commission", row.AppliedCommissionPercent, "5.0")
	expectDecimal(t, "contracted net", row.ContractedNetValue, "955.00")
	expectDecimal(t, "difference", row.Difference, "5.00")
	expectDecimal(t, "shortfall", row.Shortfall, "5.00")
}

func TestDerive_ScenarioB_Unresolved(t *testing.T) {
	tx := visaSale("1000.00", "950.00")
	row := Derive(tx, nil)

	if row.Outcome != types.OutcomeUnresolved {
		t.Errorf("Expected unresolved, got %s", row.Outcome)
	}
	if row.RateRow != 0 {
		t.Errorf("Expected no rate row, got %d", row.RateRow)
	}
	if row.Row != tx.Row || row.InstrumentID != tx.InstrumentID {
		t.Error("Expected the source record to be carried through")
	}
	expectAllNull(t, row)
}

func TestDerive_ScenarioD_ZeroGross(t *testing.T) {
	row := Derive(visaSale("0", "10"), visaRate("2"))

	if row.Outcome != types.OutcomeResolved {
		t.Fatalf("Expected resolved, got %s", row.Outcome)
	}
	if row.AppliedCommissionPercent.Valid {
		t.Errorf("Expected applied commission to be null for zero gross, got %s", row.AppliedCommissionPercent.Decimal)
	}
	expectDecimal(t, "retention", row.Retention, "-10")
	expectDecimal(t, "contracted net", row.ContractedNetValue, "0")
	expectDecimal(t, "difference", row.Difference, "-10")
	expectDecimal(t, "shortfall", row.Shortfall, "0")
}

func TestDerive_NoShortfallWhenOverpaid(t *testing.T) {
	row := Derive(visaSale("1000", "980"), visaRate("3"))

	expectDecimal(t, "difference", row.Difference, "-10")
	expectDecimal(t, "shortfall", row.Shortfall, "0")
}

func TestDerive_MissingAmounts(t *testing.T) {
	tx := visaSale("1000", "950")
	tx.NetAmount = decimal.NullDecimal{}

	row := Derive(tx, visaRate("4.5"))
	if row.Outcome != types.OutcomeMissingAmount {
		t.Errorf("Expected missing amount, got %s", row.Outcome)
	}
	expectAllNull(t, row)

	tx = visaSale("1000", "950")
	tx.GrossAmount = decimal.NullDecimal{}
	row = Derive(tx, visaRate("4.5"))
	if row.Outcome != types.OutcomeMissingAmount {
		t.Errorf("Expected missing amount, got %s", row.Outcome)
	}
	expectAllNull(t, row)
}

func TestDerive_MissingRate(t *testing.T) {
	r := visaRate("4.5")
	r.RatePercent = decimal.NullDecimal{}

	row := Derive(visaSale("1000", "950"), r)
	if row.Outcome != types.OutcomeMissingRate {
		t.Errorf("Expected missing rate, got %s", row.Outcome)
	}
	if row.RateRow != 5 {
		t.Errorf("Expected the matched rate row to be recorded, got %d", row.RateRow)
	}
	expectAllNull(t, row)
}

// TestDerive_FormulaChain checks each figure against the ones it is
// defined from, over values that do not divide evenly.
func TestDerive_FormulaChain(t *testing.T) {
	cases := []struct{ gross, net, rate string }{
		{"1000.00", "950.00", "4.5"},
		{"333.33", "321.12", "3.19"},
		{"0.01", "0.01", "0"},
		{"87.90", "83.77", "100"},
		{"1500", "1400", "7.777"},
	}

	for _, c := range cases {
		row := Derive(visaSale(c.gross, c.net), visaRate(c.rate))
		gross := decimal.RequireFromString(c.gross)
		net := decimal.RequireFromString(c.net)
		pct := decimal.RequireFromString(c.rate)

		if !row.Retention.Decimal.Equal(gross.Sub(net)) {
			t.Errorf("%v: retention %s != gross - net", c, row.Retention.Decimal)
		}
		if !row.ContractedNetValue.Decimal.Equal(hundred.Sub(pct).Div(hundred).Mul(gross)) {
			t.Errorf("%v: contracted net %s does not follow the rate", c, row.ContractedNetValue.Decimal)
		}
		if !row.Difference.Decimal.Equal(row.ContractedNetValue.Decimal.Sub(net)) {
			t.Errorf("%v: difference %s != contracted - net", c, row.Difference.Decimal)
		}
		if !row.Shortfall.Decimal.Equal(decimal.Max(row.Difference.Decimal, decimal.Zero)) {
			t.Errorf("%v: shortfall %s != max(difference, 0)", c, row.Shortfall.Decimal)
		}
		if !row.AppliedCommissionPercent.Decimal.Equal(row.Retention.Decimal.Mul(hundred).Div(gross)) {
			t.Errorf("%v: commission %s != retention * 100 / gross", c, row.AppliedCommissionPercent.Decimal)
		}
	}
}

func TestSummarize(t *testing.T) {
	missing := visaSale("1000", "950")
	missing.GrossAmount = decimal.NullDecimal{}
	noRate := visaRate("1")
	noRate.RatePercent = decimal.NullDecimal{}

	rows := []types.EnrichedTransaction{
		Derive(visaSale("1000.00", "950.00"), visaRate("4.5")), // shortfall 5
		Derive(visaSale("200.00", "190.00"), visaRate("2")),    // shortfall 6
		Derive(visaSale("100", "99"), visaRate("2")),           // overpaid
		Derive(visaSale("0", "0"), visaRate("2")),              // zero gross
		Derive(visaSale("100", "90"), nil),
		Derive(missing, visaRate("2")),
		Derive(visaSale("100", "90"), noRate),
	}

	s := Summarize(rows)
	if s.Rows != 7 {
		t.Errorf("Expected 7 rows, got %d", s.Rows)
	}
	if s.Resolved != 4 || s.Unresolved != 1 || s.MissingAmount != 1 || s.MissingRate != 1 {
		t.Errorf("Unexpected outcome counts: %+v", s)
	}
	if s.ZeroGross != 1 {
		t.Errorf("Expected 1 zero gross row, got %d", s.ZeroGross)
	}
	if s.ShortfallRows != 2 {
		t.Errorf("Expected 2 shortfall rows, got %d", s.ShortfallRows)
	}
	if !s.TotalShortfall.Equal(decimal.NewFromInt(11)) {
		t.Errorf("Expected total shortfall 11, got %s", s.TotalShortfall)
	}
}
