package loader

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/card-fee-reconciler/internal/config"
	"github.com/ginjaninja78/card-fee-reconciler/internal/types"
	"github.com/ginjaninja78/card-fee-reconciler/internal/xlsxparser"
)

// Layouts tried for textual dates. Slash layouts are ordered by the
// configured date order.
var (
	isoLayouts = []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04:05",
		time.RFC3339,
	}
	dmyLayouts = []string{
		"02/01/2006",
		"2/1/2006",
		"02/01/2006 15:04:05",
		"02/01/2006 15:04",
		"2/1/2006 15:04:05",
		"2/1/2006 15:04",
		"02/01/06",
		"02-01-2006",
		"02.01.2006",
	}
	mdyLayouts = []string{
		"01/02/2006",
		"1/2/2006",
		"01/02/2006 15:04:05",
		"01/02/2006 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"01/02/06",
		"01-02-2006",
		"01.02.2006",
	}
)

// Excel serial numbers outside this range are not treated as dates. 1 is
// 1900-01-01 and 2958465 is 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// maxInstallments bounds a plausible installment count.
const maxInstallments = 999

// thousandsGrouped matches an integer written with one kind of group
// separator, e.g. "1.000" or "12,345,678". The separator is normalized to
// '.' before matching.
var thousandsGrouped = regexp.MustCompile(`^[1-9]\d{0,2}(\.\d{3})+$`)

// field is a source value ready for coercion. numeric marks a value stored
// as a number in a workbook: its text is canonical ("1440.5", "45361") and
// is never read with locale rules.
type field struct {
	text    string
	numeric bool
}

// fieldOf prefers the stored value of a cell, falling back to the formatted
// one.
func fieldOf(c xlsxparser.Cell) field {
	if raw := strings.TrimSpace(c.Raw); raw != "" {
		return field{text: raw, numeric: c.Numeric}
	}
	return field{text: strings.TrimSpace(c.Display)}
}

// parseDate reads a date leniently. Anything unparseable becomes an invalid
// NullDate. Serial numbers are only accepted from numeric workbook cells, so
// a text "2024" is not a day in 1905. Time of day is discarded so a window
// ending on a day covers the whole day.
func parseDate(f field, order string) types.NullDate {
	value := strings.TrimSpace(f.text)
	if value == "" {
		return types.NullDate{}
	}

	if f.numeric {
		serial, err := strconv.ParseFloat(value, 64)
		if err != nil || serial < minExcelSerial || serial > maxExcelSerial {
			return types.NullDate{}
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return types.NullDate{}
		}
		return types.DateOf(t)
	}

	layouts := dmyLayouts
	if order == config.DateOrderMDY {
		layouts = mdyLayouts
	}

	for _, group := range [][]string{isoLayouts, layouts} {
		for _, layout := range group {
			if t, err := time.Parse(layout, value); err == nil {
				return types.DateOf(t)
			}
		}
	}

	return types.NullDate{}
}

// parseDecimal reads a monetary or percentage value. Numeric workbook cells
// are parsed as they are stored. Text accepts a sign before or after a
// currency prefix, accounting parentheses, percent signs, thousands
// separators and either decimal mark. sep is the decimal mark assumed when
// the text alone cannot tell:
//
//	"1.234,56"   -> 1234.56
//	"1,234.56"   -> 1234.56
//	"R$ 1.000"   -> 1000 (sep ",")
//	"-R$ 5,00"   -> -5
//	"4,5%"       -> 4.5
func parseDecimal(f field, sep string) decimal.NullDecimal {
	if f.numeric {
		d, err := decimal.NewFromString(strings.TrimSpace(f.text))
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	}

	s := strings.ReplaceAll(strings.TrimSpace(f.text), "\u00a0", " ")

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s, neg := trimSign(s)
	negative = negative != neg

	for _, prefix := range []string{"R$", "$"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}
	if !neg {
		s, neg = trimSign(s)
		negative = negative != neg
	}

	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || strings.ContainsAny(s, "+-") {
		return decimal.NullDecimal{}
	}

	s, ok := normalizeSeparators(s, sep)
	if !ok {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	if negative {
		d = d.Neg()
	}

	return decimal.NewNullDecimal(d)
}

// trimSign strips one leading sign.
func trimSign(s string) (string, bool) {
	switch {
	case strings.HasPrefix(s, "-"):
		return strings.TrimSpace(s[1:]), true
	case strings.HasPrefix(s, "+"):
		return strings.TrimSpace(s[1:]), false
	}
	return s, false
}

// normalizeSeparators rewrites s with '.' as the only decimal mark and no
// group separators. When both marks appear the last one is the decimal
// mark. A mark repeated is a group separator. A single mark is decimal when
// it is sep, or when it does not split the digits into thousands groups.
func normalizeSeparators(s, sep string) (string, bool) {
	comma := strings.Count(s, ",")
	dot := strings.Count(s, ".")

	switch {
	case comma > 0 && dot > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			if comma > 1 {
				return "", false
			}
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1), true
		}
		if dot > 1 {
			return "", false
		}
		return strings.ReplaceAll(s, ",", ""), true
	case comma > 1:
		return strings.ReplaceAll(s, ",", ""), true
	case dot > 1:
		return strings.ReplaceAll(s, ".", ""), true
	case comma == 1:
		if sep != "," && thousandsGrouped.MatchString(strings.Replace(s, ",", ".", 1)) {
			return strings.Replace(s, ",", "", 1), true
		}
		return strings.Replace(s, ",", ".", 1), true
	case dot == 1:
		if sep != "." && thousandsGrouped.MatchString(s) {
			return strings.Replace(s, ".", "", 1), true
		}
		return s, true
	}
	return s, true
}

// parseInt reads an integral count. "3", "3.0" and "03" are all 3; "3.5",
// "3x" and counts outside 0..maxInstallments are missing.
func parseInt(f field, sep string) types.NullInt {
	d := parseDecimal(f, sep)
	if !d.Valid || !d.Decimal.Equal(d.Decimal.Truncate(0)) {
		return types.NullInt{}
	}
	if d.Decimal.IsNegative() || d.Decimal.GreaterThan(decimal.NewFromInt(maxInstallments)) {
		return types.NullInt{}
	}
	return types.NullInt{Int: int(d.Decimal.IntPart()), Valid: true}
}

// normalizeInstrument trims an instrument identifier and optionally folds
// its case.
func normalizeInstrument(value string, fold bool) string {
	value = strings.TrimSpace(value)
	if fold {
		value = strings.ToUpper(value)
	}
	return value
}
