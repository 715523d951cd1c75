// =============================================================================
// Card Fee Reconciler - CSV Table Reader
// =============================================================================
//
// This module reads delimited exports into the same raw Table the XLSX reader
// produces, so the loader does not care which format a ledger arrived in.
//
// FEATURES:
//   - Configurable delimiter (comma, semicolon, pipe, tab)
//   - Character-set decoding (UTF-8 with optional BOM, ISO-8859-1,
//     Windows-1252); Brazilian acquirer portals commonly export Latin-1
//   - Lenient quoting and ragged rows
//
// Display and raw renderings are identical for delimited sources.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/card-fee-reconciler/internal/config"
	"github.com/ginjaninja78/card-fee-reconciler/internal/xlsxparser"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ReadTable reads a delimited file and returns all rows, header included.
//
// PARAMETERS:
//   - filePath: The path to the file.
//   - settings: Delimiter and encoding settings.
//
// RETURNS:
//   - The raw table.
//   - An error if the file cannot be opened, decoded or parsed.
func ReadTable(filePath string, settings config.CSVSettings) (*xlsxparser.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	rows, err := Parse(file, settings)
	if err != nil {
		return nil, err
	}

	return xlsxparser.FromStrings(filePath, rows), nil
}

// Parse reads every record from r.
func Parse(r io.Reader, settings config.CSVSettings) ([][]string, error) {
	decoder, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, err
	}

	reader := transform.NewReader(bufio.NewReader(r), decoder.NewDecoder())

	csvReader := csv.NewReader(reader)
	configureReader(csvReader, settings)

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	return rows, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon", "SEMICOLON":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = []rune(settings.Delimiter)[0]
		} else {
			reader.Comma = ','
		}
	}

	// Allow variable number of fields per row.
	reader.FieldsPerRecord = -1

	// Allow lazy quotes (quotes that don't follow strict CSV rules).
	reader.LazyQuotes = true

	reader.TrimLeadingSpace = true
}

// decoderFor maps an encoding name to a decoder. UTF-8 input may carry a
// byte order mark, which is stripped.
func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.ReplaceAll(name, "_", "-")) {
	case "", "UTF-8", "UTF8":
		return unicode.UTF8BOM, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}
