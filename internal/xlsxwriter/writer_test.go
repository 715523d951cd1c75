package xlsxwriter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/card-fee-reconciler/internal/config"
	"github.com/ginjaninja78/card-fee-reconciler/internal/types"
)

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func testLedger() types.Ledger {
	resolved := types.EnrichedTransaction{
		TransactionRecord: types.TransactionRecord{
			Row:              2,
			InstrumentID:     "VISA",
			SaleDate:         types.NewDate(2024, 3, 10),
			InstallmentCount: types.NullInt{Int: 3, Valid: true},
			GrossAmount:      dec("1000.00"),
			NetAmount:        dec("950.00"),
			Cells:            []string{"VISA", "10/03/2024", "3", "1.000,00", "950,00", "0412"},
		},
		Outcome:                  types.OutcomeResolved,
		RateRow:                  5,
		ResolvedRatePercent:      dec("4.5"),
		Retention:                dec("50.00"),
		AppliedCommissionPercent: dec("5"),
		ContractedNetValue:       dec("955.00"),
		Difference:               dec("5.00"),
		Shortfall:                dec("5.00"),
	}
	unresolved := types.EnrichedTransaction{
		TransactionRecord: types.TransactionRecord{
			Row:          3,
			InstrumentID: "ELO",
			Cells:        []string{"ELO", "", "x", "", "", "77"},
		},
		Outcome: types.OutcomeUnresolved,
	}

	return types.Ledger{
		Source:            "vendas.xlsx",
		Headers:           []string{"Cartões", "Data", "Parcelas", "Valor Bruto", "Valor Líquido", "Código"},
		SaleDateColumn:    1,
		InstallmentColumn: 2,
		GrossColumn:       3,
		NetColumn:         4,
		Rows:              []types.EnrichedTransaction{resolved, unresolved},
	}
}

func newWriter(dir string) *Writer {
	out := config.Default().Output
	out.Dir = dir
	return New(out)
}

func raw(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("failed to read %s: %v", cell, err)
	}
	return v
}

func expectNumber(t *testing.T, f *excelize.File, sheet, cell string, want float64) {
	t.Helper()
	got, err := strconv.ParseFloat(raw(t, f, sheet, cell), 64)
	if err != nil {
		t.Errorf("Expected %s to hold a number, got %q", cell, raw(t, f, sheet, cell))
		return
	}
	if got != want {
		t.Errorf("Expected %s = %v, got %v", cell, want, got)
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(dir)

	path, err := w.Write(testLedger(), "planilha_calculo")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if path != filepath.Join(dir, "planilha_calculo(1).xlsx") {
		t.Errorf("Unexpected path %q", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	sheet := w.SheetName
	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != sheet {
		t.Errorf("Expected single sheet %q, got %v", sheet, sheets)
	}

	headers := map[string]string{
		"A1": "Cartões", "F1": "Código", "G1": "Taxa", "H1": "Valor Bruto-Líquido",
		"I1": "Comissão Aplicada (%)", "J1": "Valor Líquido Contratado", "K1": "Diferença", "L1": "Indébito",
	}
	for cell, want := range headers {
		if got := raw(t, f, sheet, cell); got != want {
			t.Errorf("Expected header %s = %q, got %q", cell, want, got)
		}
	}

	// Typed source columns.
	serial, err := strconv.ParseFloat(raw(t, f, sheet, "B2"), 64)
	if err != nil {
		t.Fatalf("Expected the sale date to be stored as a serial, got %q", raw(t, f, sheet, "B2"))
	}
	when, err := excelize.ExcelDateToTime(serial, false)
	if err != nil || when.Format("2006-01-02") != "2024-03-10" {
		t.Errorf("Expected sale date 2024-03-10, got %v (%v)", when, err)
	}
	expectNumber(t, f, sheet, "C2", 3)
	expectNumber(t, f, sheet, "D2", 1000)
	expectNumber(t, f, sheet, "E2", 950)
	if got := raw(t, f, sheet, "F2"); got != "0412" {
		t.Errorf("Expected leading zeros to be kept as text, got %q", got)
	}

	// Derived columns.
	for cell, want := range map[string]float64{"G2": 4.5, "H2": 50, "I2": 5, "J2": 955, "K2": 5, "L2": 5} {
		expectNumber(t, f, sheet, cell, want)
	}

	// Unresolved row: unreadable typed values fall back to text, nulls stay empty.
	if got := raw(t, f, sheet, "A3"); got != "ELO" {
		t.Errorf("Expected A3 = ELO, got %q", got)
	}
	if got := raw(t, f, sheet, "C3"); got != "x" {
		t.Errorf("Expected unreadable installments to be kept as text, got %q", got)
	}
	expectNumber(t, f, sheet, "F3", 77)
	for _, cell := range []string{"B3", "D3", "E3", "G3", "H3", "I3", "J3", "K3", "L3"} {
		if got := raw(t, f, sheet, cell); got != "" {
			t.Errorf("Expected %s to be empty, got %q", cell, got)
		}
	}

	width, err := f.GetColWidth(sheet, "I")
	if err != nil {
		t.Fatalf("GetColWidth failed: %v", err)
	}
	if width != float64(len([]rune("Comissão Aplicada (%)"))+2) {
		t.Errorf("Expected column I to fit its header, got width %v", width)
	}

	height, err := f.GetRowHeight(sheet, 1)
	if err != nil {
		t.Fatalf("GetRowHeight failed: %v", err)
	}
	if height != w.HeaderHeight {
		t.Errorf("Expected header height %v, got %v", w.HeaderHeight, height)
	}
}

func TestWrite_DerivedHeaderCollision(t *testing.T) {
	ledger := testLedger()
	ledger.Headers[5] = "taxa"

	w := newWriter(t.TempDir())
	path, err := w.Write(ledger, "planilha_calculo")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	if got := raw(t, f, w.SheetName, "F1"); got != "taxa" {
		t.Errorf("Expected the source header to be kept, got %q", got)
	}
	if got := raw(t, f, w.SheetName, "G1"); got != "Taxa (2)" {
		t.Errorf("Expected the derived rate header to be suffixed, got %q", got)
	}
}

func TestHeaderRow(t *testing.T) {
	got := headerRow([]string{"Taxa", "Taxa (2)", "Diferença"}, []string{"Taxa", "Diferença", "Indébito"})
	want := []string{"Taxa", "Taxa (2)", "Diferença", "Taxa (3)", "Diferença (2)", "Indébito"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestWrite_NextAvailableName(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(dir)

	first, err := w.Write(testLedger(), "planilha_calculo")
	if err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	second, err := w.Write(testLedger(), "planilha_calculo")
	if err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	if filepath.Base(first) != "planilha_calculo(1).xlsx" || filepath.Base(second) != "planilha_calculo(2).xlsx" {
		t.Errorf("Expected (1) then (2), got %s then %s", filepath.Base(first), filepath.Base(second))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only the two artifacts, got %v", names)
	}
}

func TestWrite_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "janeiro")

	path, err := newWriter(dir).Write(testLedger(), "planilha_calculo")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected %s to exist: %v", path, err)
	}
}

func TestWrite_EmptyLedger(t *testing.T) {
	ledger := testLedger()
	ledger.Rows = nil

	path, err := newWriter(t.TempDir()).Write(ledger, "vazio")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetList()[0])
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != 12 {
		t.Errorf("Expected only a 12-column header row, got %v", rows)
	}
}

func TestWrite_DirectoryError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write blocker: %v", err)
	}

	_, err := newWriter(filepath.Join(blocker, "sub")).Write(testLedger(), "planilha_calculo")

	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("Expected WriteError, got %v", err)
	}
}

func TestWriteError_Message(t *testing.T) {
	err := &WriteError{Path: "planilha_calculo(1).xlsx", Err: &fs.PathError{Op: "open", Path: "x", Err: fs.ErrPermission}}
	if !strings.Contains(err.Error(), "close the file") {
		t.Errorf("Expected a hint to close the file, got %q", err.Error())
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("Expected the cause to be unwrapped")
	}

	other := &WriteError{Path: "p", Err: errors.New("disk full")}
	if strings.Contains(other.Error(), "close the file") || !strings.Contains(other.Error(), "disk full") {
		t.Errorf("Unexpected message %q", other.Error())
	}
}
