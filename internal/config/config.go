// =============================================================================
// Card Fee Reconciler - Configuration Module
// =============================================================================
//
// This module is responsible for loading and validating the reconciler
// configuration. A single YAML file describes:
//   1. How to read the sales ledger (sheet, header noise, row cap, columns)
//   2. How to read the fee schedule (sheet, columns)
//   3. How to write the reconciliation artifact (directory, naming, styling)
//   4. Processing and logging settings
//
// Header names are configuration, not engine contract: every column the
// engine needs is bound here by name, so the same engine serves any layout
// of the source spreadsheets.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the complete reconciler configuration.
type Config struct {
	// Sales describes the transaction ledger source.
	Sales SalesSettings `yaml:"sales"`

	// Rates describes the fee schedule source.
	Rates RateSettings `yaml:"rates"`

	// Output describes the reconciliation artifact.
	Output OutputSettings `yaml:"output"`

	// Processing holds engine settings.
	Processing ProcessingSettings `yaml:"processing"`

	// Logging holds logger settings.
	Logging LoggingSettings `yaml:"logging"`
}

// SalesSettings describes how the sales table is read.
type SalesSettings struct {
	// Sheet is the worksheet to read. Empty means the first sheet.
	Sheet string `yaml:"sheet"`

	// HeaderRowsToSkip is the number of leading non-data rows discarded
	// before the header row. Some acquirer exports carry a title block.
	HeaderRowsToSkip int `yaml:"header_rows_to_skip"`

	// RowCap is the maximum number of sales rows to load. 0 means no cap.
	RowCap int `yaml:"row_cap"`

	// CSV holds settings used when the source is a delimited file.
	CSV CSVSettings `yaml:"csv"`

	// Columns binds engine fields to sales header names.
	Columns SalesColumns `yaml:"columns"`
}

// SalesColumns binds each transaction field to a header name.
type SalesColumns struct {
	InstrumentID     string `yaml:"instrument_id"`
	SaleDate         string `yaml:"sale_date"`
	InstallmentCount string `yaml:"installment_count"`
	GrossAmount      string `yaml:"gross_amount"`
	NetAmount        string `yaml:"net_amount"`
}

// RateSettings describes how the fee schedule is read.
type RateSettings struct {
	// Sheet is the worksheet to read. Empty means the first sheet.
	Sheet string `yaml:"sheet"`

	// CSV holds settings used when the source is a delimited file.
	CSV CSVSettings `yaml:"csv"`

	// Columns binds rate fields to header names.
	Columns RateColumns `yaml:"columns"`
}

// RateColumns binds each rate field to a header name.
type RateColumns struct {
	InstrumentID     string `yaml:"instrument_id"`
	InstallmentCount string `yaml:"installment_count"`
	ValidFrom        string `yaml:"valid_from"`
	ValidTo          string `yaml:"valid_to"`
	RatePercent      string `yaml:"rate_percent"`
}

// CSVSettings contains settings for parsing delimited sources.
type CSVSettings struct {
	// Delimiter is the field separator.
	// Common values: "," (comma), ";" (semicolon), "|" (pipe), "tab"
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the file.
	// Supported: "UTF-8", "ISO-8859-1", "Windows-1252"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// =============================================================================
// OUTPUT SETTINGS
// =============================================================================

// OutputSettings describes the reconciliation artifact.
type OutputSettings struct {
	// Dir is the directory where the artifact is written.
	// Default: "."
	Dir string `yaml:"dir"`

	// BaseName is the file name stem. The writer appends "(N).xlsx" with the
	// first N that does not collide with an existing file.
	// Default: "planilha_calculo"
	BaseName string `yaml:"base_name"`

	// SheetName is the name of the output worksheet.
	// Default: "Conciliacao"
	SheetName string `yaml:"sheet_name"`

	// DateFormat is the number format applied to the sale-date column.
	// Default: "dd/mm/yyyy"
	DateFormat string `yaml:"date_format"`

	// HeaderFill is the RGB fill color of the header row.
	// Default: "7FD4DE"
	HeaderFill string `yaml:"header_fill"`

	// HeaderHeight is the header row height in points.
	// Default: 48
	HeaderHeight float64 `yaml:"header_height"`

	// WriteSummary writes a plain-text run summary next to the artifact.
	WriteSummary bool `yaml:"write_summary"`

	// Columns names the appended columns.
	Columns OutputColumns `yaml:"columns"`
}

// OutputColumns names the resolved rate column and the five derived columns.
type OutputColumns struct {
	ResolvedRate       string `yaml:"resolved_rate"`
	Retention          string `yaml:"retention"`
	AppliedCommission  string `yaml:"applied_commission"`
	ContractedNetValue string `yaml:"contracted_net_value"`
	Difference         string `yaml:"difference"`
	Shortfall          string `yaml:"shortfall"`
}

// Names returns the appended column names in output order.
func (c OutputColumns) Names() []string {
	return []string{
		c.ResolvedRate,
		c.Retention,
		c.AppliedCommission,
		c.ContractedNetValue,
		c.Difference,
		c.Shortfall,
	}
}

// =============================================================================
// PROCESSING AND LOGGING SETTINGS
// =============================================================================

// Resolver strategy names.
const (
	StrategyIndexed = "indexed"
	StrategyScan    = "scan"
)

// Date orders for ambiguous textual dates such as 03/04/2024.
const (
	DateOrderDMY = "dmy"
	DateOrderMDY = "mdy"
)

// Decimal separators for textual amounts such as "1.234,56".
const (
	DecimalComma = ","
	DecimalPoint = "."
)

// ProcessingSettings holds engine settings.
type ProcessingSettings struct {
	// Workers is the number of goroutines resolving rows. 0 means one per CPU.
	Workers int `yaml:"workers"`

	// Strategy selects the resolver: "indexed" (bucketed by key) or "scan".
	// Both produce identical results.
	Strategy string `yaml:"strategy"`

	// DateOrder decides how ambiguous slash dates are read.
	// Default: "dmy"
	DateOrder string `yaml:"date_order"`

	// DecimalSeparator is the decimal mark of textual amounts. A lone mark
	// of the other kind is read as a thousands separator when it groups
	// digits in threes ("1.000" is one thousand under ",").
	// Default: ","
	DecimalSeparator string `yaml:"decimal_separator"`

	// FoldInstrumentCase upper-cases instrument identifiers on load so that
	// "Visa" in the ledger matches "VISA" in the fee schedule.
	FoldInstrumentCase bool `yaml:"fold_instrument_case"`
}

// LoggingSettings holds logger settings.
type LoggingSettings struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "console" for humans or "json".
	Format string `yaml:"format"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the configuration used when no file is given. The header
// names match the acquirer exports the tool was first written against.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	sc := &cfg.Sales.Columns
	setDefault(&sc.InstrumentID, "Cartões")
	setDefault(&sc.SaleDate, "Data")
	setDefault(&sc.InstallmentCount, "Parcelas")
	setDefault(&sc.GrossAmount, "Valor Bruto")
	setDefault(&sc.NetAmount, "Valor Líquido")

	rc := &cfg.Rates.Columns
	setDefault(&rc.InstrumentID, "Cartão")
	setDefault(&rc.InstallmentCount, "Parcelas")
	setDefault(&rc.ValidFrom, "Data Inicial")
	setDefault(&rc.ValidTo, "Data Final")
	setDefault(&rc.RatePercent, "Taxa")

	applyCSVDefaults(&cfg.Sales.CSV)
	applyCSVDefaults(&cfg.Rates.CSV)

	out := &cfg.Output
	setDefault(&out.Dir, ".")
	setDefault(&out.BaseName, "planilha_calculo")
	setDefault(&out.SheetName, "Conciliacao")
	setDefault(&out.DateFormat, "dd/mm/yyyy")
	setDefault(&out.HeaderFill, "7FD4DE")
	if out.HeaderHeight == 0 {
		out.HeaderHeight = 48
	}

	oc := &out.Columns
	setDefault(&oc.ResolvedRate, "Taxa")
	setDefault(&oc.Retention, "Valor Bruto-Líquido")
	setDefault(&oc.AppliedCommission, "Comissão Aplicada (%)")
	setDefault(&oc.ContractedNetValue, "Valor Líquido Contratado")
	setDefault(&oc.Difference, "Diferença")
	setDefault(&oc.Shortfall, "Indébito")

	setDefault(&cfg.Processing.Strategy, StrategyIndexed)
	setDefault(&cfg.Processing.DateOrder, DateOrderDMY)
	setDefault(&cfg.Processing.DecimalSeparator, DecimalComma)

	setDefault(&cfg.Logging.Level, "info")
	setDefault(&cfg.Logging.Format, "console")
}

func applyCSVDefaults(s *CSVSettings) {
	setDefault(&s.Delimiter, ",")
	setDefault(&s.Encoding, "UTF-8")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for values the engine cannot work with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Sales.HeaderRowsToSkip < 0 {
		errs = append(errs, fmt.Errorf("sales.header_rows_to_skip must be non-negative, got %d", c.Sales.HeaderRowsToSkip))
	}
	if c.Sales.RowCap < 0 {
		errs = append(errs, fmt.Errorf("sales.row_cap must be non-negative, got %d", c.Sales.RowCap))
	}
	if c.Processing.Workers < 0 {
		errs = append(errs, fmt.Errorf("processing.workers must be non-negative, got %d", c.Processing.Workers))
	}

	switch c.Processing.Strategy {
	case StrategyIndexed, StrategyScan:
	default:
		errs = append(errs, fmt.Errorf("processing.strategy %q is not one of %q, %q", c.Processing.Strategy, StrategyIndexed, StrategyScan))
	}

	switch c.Processing.DateOrder {
	case DateOrderDMY, DateOrderMDY:
	default:
		errs = append(errs, fmt.Errorf("processing.date_order %q is not one of %q, %q", c.Processing.DateOrder, DateOrderDMY, DateOrderMDY))
	}

	switch c.Processing.DecimalSeparator {
	case DecimalComma, DecimalPoint:
	default:
		errs = append(errs, fmt.Errorf("processing.decimal_separator %q is not one of %q, %q", c.Processing.DecimalSeparator, DecimalComma, DecimalPoint))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not supported", c.Logging.Level))
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not supported", c.Logging.Format))
	}

	if c.Output.HeaderHeight < 0 {
		errs = append(errs, fmt.Errorf("output.header_height must be non-negative"))
	}

	seen := make(map[string]bool)
	for _, name := range c.Output.Columns.Names() {
		if seen[name] {
			errs = append(errs, fmt.Errorf("output column name %q is used twice", name))
		}
		seen[name] = true
	}

	return errors.Join(errs...)
}
