// Package reporter renders income statements, invoice lists, sales
// indicators and balance sheets.
//
// Supported output formats:
//   - XLSX: the formatted Estado de Resultados workbook
//   - Console: fixed-width text for terminal display
//   - JSON: structured data with decimals as strings
//   - CSV: comma-separated rows for spreadsheet applications
//
// Example usage:
//
//	gen, err := reporter.NewReportGenerator(reporter.DefaultReportConfig())
//	path, err := gen.SaveStatement(stmt)
//
//	// Write an invoice export to any writer
//	cfg := reporter.DefaultReportConfig()
//	cfg.Format = reporter.FormatCSV
//	gen, err = reporter.NewReportGenerator(cfg)
//	err = gen.WriteInvoices(invoices, os.Stdout)
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"dataconta/internal/statement"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatXLSX    OutputFormat = "xlsx"
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// DefaultLocale drives thousands grouping in currency strings
const DefaultLocale = "es"

// StatementFilePrefix names saved statements, followed by the generation timestamp
const StatementFilePrefix = "estado_resultados"

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatXLSX, FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Extension returns the file extension used when saving the format
func (f OutputFormat) Extension() string {
	switch f {
	case FormatXLSX:
		return ".xlsx"
	case FormatJSON:
		return ".json"
	case FormatCSV:
		return ".csv"
	default:
		return ".txt"
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format    OutputFormat `mapstructure:"format" json:"format"`
	OutputDir string       `mapstructure:"output_dir" json:"output_dir"`
	Locale    string       `mapstructure:"locale" json:"locale"`

	CSVDelimiter rune `mapstructure:"-" json:"csv_delimiter"`

	// Timestamp stamps saved file names. Defaults to time.Now.
	Timestamp func() time.Time `mapstructure:"-" json:"-"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:       FormatXLSX,
		OutputDir:    "output",
		Locale:       DefaultLocale,
		CSVDelimiter: ',',
		Timestamp:    time.Now,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.Locale != "" {
		if _, err := language.Parse(c.Locale); err != nil {
			return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
		}
	}

	if c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' || c.CSVDelimiter == '\r' {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}

	return nil
}

// ReportGenerator renders reports in the configured format
type ReportGenerator struct {
	config  *ReportConfig
	printer *message.Printer
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	cfg := *config
	if cfg.Locale == "" {
		cfg.Locale = DefaultLocale
	}
	if cfg.CSVDelimiter == 0 {
		cfg.CSVDelimiter = ','
	}
	if cfg.Timestamp == nil {
		cfg.Timestamp = time.Now
	}

	return &ReportGenerator{
		config:  &cfg,
		printer: message.NewPrinter(language.Make(cfg.Locale)),
	}, nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// WriteStatement renders an income statement to writer
func (rg *ReportGenerator) WriteStatement(s *statement.IncomeStatement, writer io.Writer) error {
	if s == nil {
		return fmt.Errorf("income statement cannot be nil")
	}

	switch rg.config.Format {
	case FormatXLSX:
		return rg.writeStatementXLSX(s, writer)
	case FormatConsole:
		return rg.writeStatementText(s, writer)
	case FormatJSON:
		return writeJSON(writer, s)
	case FormatCSV:
		return rg.writeStatementCSV(s, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// StatementFileName returns the file name a statement generated at t is saved under
func (rg *ReportGenerator) StatementFileName(t time.Time) string {
	return fmt.Sprintf("%s_%s%s", StatementFilePrefix, t.Format("20060102_150405"), rg.config.Format.Extension())
}

// SaveStatement renders s into a new timestamped file under the output
// directory and returns its path
func (rg *ReportGenerator) SaveStatement(s *statement.IncomeStatement) (string, error) {
	path := filepath.Join(rg.config.OutputDir, rg.StatementFileName(rg.config.Timestamp()))
	if err := rg.saveStatementTo(s, path); err != nil {
		return "", err
	}
	return path, nil
}

// SaveStatementAs renders s into path, creating missing parent directories
func (rg *ReportGenerator) SaveStatementAs(s *statement.IncomeStatement, path string) error {
	if s == nil {
		return fmt.Errorf("income statement cannot be nil")
	}
	return rg.saveStatementTo(s, path)
}

func (rg *ReportGenerator) saveStatementTo(s *statement.IncomeStatement, path string) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return rg.WriteStatement(s, w)
	})
}

// writeFileAtomic renders into a temporary file next to path and renames it
// into place, so path is either complete or untouched
func writeFileAtomic(path string, render func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return classifyWriteError(path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return classifyWriteError(path, err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := render(tmp); err != nil {
		return classifyWriteError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return classifyWriteError(path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return classifyWriteError(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return classifyWriteError(path, err)
	}
	committed = true
	return nil
}

func writeJSON(writer io.Writer, v interface{}) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
