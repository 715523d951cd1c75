package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
}

func TestNextAvailableName(t *testing.T) {
	dir := t.TempDir()

	first := NextAvailableName(dir, "planilha_calculo", ".xlsx")
	if filepath.Base(first) != "planilha_calculo(1).xlsx" {
		t.Errorf("Expected planilha_calculo(1).xlsx, got %s", filepath.Base(first))
	}

	touch(t, first)
	touch(t, filepath.Join(dir, "planilha_calculo(3).xlsx"))

	if got := filepath.Base(NextAvailableName(dir, "planilha_calculo", ".xlsx")); got != "planilha_calculo(2).xlsx" {
		t.Errorf("Expected the first free suffix (2), got %s", got)
	}

	// An unsuffixed file does not take a slot.
	touch(t, filepath.Join(dir, "outro.xlsx"))
	if got := filepath.Base(NextAvailableName(dir, "outro", ".xlsx")); got != "outro(1).xlsx" {
		t.Errorf("Expected outro(1).xlsx, got %s", got)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if !FileExists(dir) {
		t.Error("Expected directory to exist")
	}
	if err := EnsureDir(dir); err != nil {
		t.Errorf("Expected EnsureDir to be idempotent, got %v", err)
	}
}

func TestWriteErrorLog(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteErrorLog(nil, dir)
	if err != nil || path != "" {
		t.Errorf("Expected no log for no entries, got %q, %v", path, err)
	}

	entries := []ErrorLogEntry{
		{
			Timestamp:    time.Now(),
			FileName:     "taxas.xlsx",
			Table:        "rates",
			Severity:     "error",
			ErrorType:    "inverted_window",
			ErrorMessage: "validity window starts after it ends",
			RowNumber:    4,
			FieldName:    "Data Inicial",
			FieldValue:   "2024-05-01 > 2024-04-01",
		},
		{
			Timestamp:    time.Now(),
			FileName:     "vendas.xlsx",
			Severity:     "warning",
			ErrorType:    "missing_amount",
			ErrorMessage: "gross amount is missing",
		},
	}

	path, err = WriteErrorLog(entries, dir)
	if err != nil {
		t.Fatalf("WriteErrorLog failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "error_log_") || filepath.Ext(path) != ".txt" {
		t.Errorf("Unexpected log name %s", filepath.Base(path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	text := string(content)
	for _, want := range []string{"Total Entries: 2", "Entry #1", "Entry #2", "Row Number: 4", "Data Inicial", "missing_amount"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected log to contain %q", want)
		}
	}
	if strings.Count(text, "Row Number:") != 1 {
		t.Error("Expected the row number to be omitted when unknown")
	}
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

	summary := RunSummary{
		RunID:          "run-1",
		StartTime:      start,
		EndTime:        start.Add(1500 * time.Millisecond),
		SalesFile:      "vendas.xlsx",
		RatesFile:      "taxas.xlsx",
		OutputFile:     "planilha_calculo(1).xlsx",
		Strategy:       "indexed",
		Workers:        4,
		RateRecords:    12,
		Rows:           100,
		Resolved:       90,
		Unresolved:     10,
		ShortfallRows:  7,
		TotalShortfall: "42.10",
	}

	path, err := WriteSummaryLog(summary, dir)
	if err != nil {
		t.Fatalf("WriteSummaryLog failed: %v", err)
	}
	if filepath.Base(path) != "reconciliation_summary_20240310_093000(1).txt" {
		t.Errorf("Unexpected summary name %s", filepath.Base(path))
	}

	again, err := WriteSummaryLog(summary, dir)
	if err != nil {
		t.Fatalf("second WriteSummaryLog failed: %v", err)
	}
	if again == path {
		t.Error("Expected the second summary not to overwrite the first")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read summary: %v", err)
	}
	text := string(content)
	for _, want := range []string{"run-1", "Duration:       1.5s", "planilha_calculo(1).xlsx", "Resolved:           90", "Total Shortfall:    42.10"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected summary to contain %q", want)
		}
	}
}
