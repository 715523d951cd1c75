// =============================================================================
// Card Fee Reconciler - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the reconciler:
//   - Collision-free output naming (base(1).xlsx, base(2).xlsx, ...)
//   - Directory management
//   - Diagnostics log generation
//   - Run summary generation
//
// NAMING STRATEGY:
//   Existing artifacts are never overwritten. The first free numeric suffix
//   starting at 1 is used, so repeated runs in the same directory produce
//   planilha_calculo(1).xlsx, planilha_calculo(2).xlsx and so on.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// =============================================================================
// FILE NAMING
// =============================================================================

// NextAvailableName returns the first path of the form dir/base(N)ext, N >= 1,
// that does not exist yet.
//
// PARAMETERS:
//   - dir: The target directory.
//   - base: The file name stem (e.g., "planilha_calculo").
//   - ext: The extension including the dot (e.g., ".xlsx").
//
// EXAMPLE:
//   dir contains planilha_calculo(1).xlsx
//   NextAvailableName(dir, "planilha_calculo", ".xlsx")
//   -> dir/planilha_calculo(2).xlsx
//
// The check and the later create are not atomic. Two processes naming files
// in the same directory at the same moment can pick the same name.
func NextAvailableName(dir, base, ext string) string {
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s(%d)%s", base, n, ext))
		if !FileExists(candidate) {
			return candidate
		}
	}
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single diagnostics log entry.
type ErrorLogEntry struct {
	Timestamp    time.Time
	FileName     string
	Table        string
	Severity     string
	ErrorType    string
	ErrorMessage string
	RowNumber    int
	FieldName    string
	FieldValue   string
}

// WriteErrorLog writes diagnostics entries to a log file.
//
// PARAMETERS:
//   - entries: The entries to write.
//   - outputDir: The directory to write the log file.
//
// RETURNS:
//   - The path to the error log file, or "" when there is nothing to write.
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	timestamp := time.Now().Format("20060102_150405")
	logPath := NextAvailableName(outputDir, "error_log_"+timestamp, ".txt")

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "Card Fee Reconciler - Diagnostics Log\n"+
		"Generated: %s\n"+
		"Total Entries: %d\n"+
		"================================================================================\n\n",
		time.Now().Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Entry #%d\n"+
			"  Timestamp:  %s\n"+
			"  File:       %s\n"+
			"  Severity:   %s\n"+
			"  Type:       %s\n"+
			"  Message:    %s\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.FileName,
			entry.Severity,
			entry.ErrorType,
			entry.ErrorMessage)

		if entry.Table != "" {
			fmt.Fprintf(writer, "  Table:      %s\n", entry.Table)
		}
		if entry.RowNumber > 0 {
			fmt.Fprintf(writer, "  Row Number: %d\n", entry.RowNumber)
		}
		if entry.FieldName != "" {
			fmt.Fprintf(writer, "  Field:      %s\n", entry.FieldName)
		}
		if entry.FieldValue != "" {
			fmt.Fprintf(writer, "  Value:      %s\n", entry.FieldValue)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Diagnostics Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}

	return logPath, nil
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary contains summary information about one reconciliation run.
type RunSummary struct {
	RunID      string
	StartTime  time.Time
	EndTime    time.Time
	SalesFile  string
	RatesFile  string
	OutputFile string
	Strategy   string
	Workers    int

	RateRecords   int
	Overlaps      int
	Rows          int
	Resolved      int
	Unresolved    int
	MissingAmount int
	MissingRate   int
	ZeroGross     int
	ShortfallRows int

	// TotalShortfall is the formatted sum of all positive shortfalls.
	TotalShortfall string
}

// WriteSummaryLog writes a run summary to a text file.
//
// PARAMETERS:
//   - summary: The run summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, outputDir string) (string, error) {
	timestamp := summary.StartTime.Format("20060102_150405")
	summaryPath := NextAvailableName(outputDir, "reconciliation_summary_"+timestamp, ".txt")

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "Card Fee Reconciler - Run Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Sales File:     %s\n"+
		"  Rates File:     %s\n"+
		"  Output File:    %s\n"+
		"  Strategy:       %s\n"+
		"  Workers:        %d\n\n"+
		"Statistics:\n"+
		"  Rate Records:       %d\n"+
		"  Overlapping Pairs:  %d\n"+
		"  Sales Rows:         %d\n"+
		"  Resolved:           %d\n"+
		"  Unresolved:         %d\n"+
		"  Missing Amount:     %d\n"+
		"  Missing Rate:       %d\n"+
		"  Zero Gross:         %d\n"+
		"  Rows In Shortfall:  %d\n"+
		"  Total Shortfall:    %s\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.SalesFile,
		summary.RatesFile,
		summary.OutputFile,
		summary.Strategy,
		summary.Workers,
		summary.RateRecords,
		summary.Overlaps,
		summary.Rows,
		summary.Resolved,
		summary.Unresolved,
		summary.MissingAmount,
		summary.MissingRate,
		summary.ZeroGross,
		summary.ShortfallRows,
		summary.TotalShortfall)

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}
