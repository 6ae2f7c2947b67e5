package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dataconta/internal/models"
	"dataconta/internal/puc"
	"dataconta/internal/statement"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

// Canonical column names of a line-item CSV
const (
	ColumnDate        = "date"
	ColumnCategory    = "category"
	ColumnAccountCode = "account_code"
	ColumnDescription = "description"
	ColumnValue       = "value"
)

var defaultAliases = map[string]string{
	"fecha":       ColumnDate,
	"categoria":   ColumnCategory,
	"categoría":   ColumnCategory,
	"seccion":     ColumnCategory,
	"sección":     ColumnCategory,
	"codigo":      ColumnAccountCode,
	"código":      ColumnAccountCode,
	"cuenta":      ColumnAccountCode,
	"codigo_puc":  ColumnAccountCode,
	"descripcion": ColumnDescription,
	"descripción": ColumnDescription,
	"concepto":    ColumnDescription,
	"valor":       ColumnValue,
	"monto":       ColumnValue,
	"amount":      ColumnValue,
}

var csvDateLayouts = []string{models.DateLayout, "02/01/2006", "2006/01/02"}

// CSVConfig holds CSV parsing settings
type CSVConfig struct {
	Delimiter     rune
	MaxErrors     int
	MaxFieldSize  int
	Strict        bool
	ColumnAliases map[string]string
}

// DefaultCSVConfig returns a configuration with sensible defaults
func DefaultCSVConfig() CSVConfig {
	return CSVConfig{
		Delimiter:    ',',
		MaxErrors:    50,
		MaxFieldSize: 4096,
	}
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	Encoding      string
	TotalLines    int
	RecordsParsed int
	RecordsValid  int
	OutOfPeriod   int
	Errors        []*apperrors.EnhancedParseError
}

// HasErrors returns true if there were any parsing errors
func (ps *ParseStats) HasErrors() bool {
	return len(ps.Errors) > 0
}

func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records (%d valid, %d outside period), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, ps.OutOfPeriod, len(ps.Errors))
}

// CSVSource reads categorized line items from a CSV export with the columns
// date, category or account_code, description and value
type CSVSource struct {
	path   string
	chart  *puc.Chart
	config CSVConfig
	logger logger.Logger
}

// NewCSVSource creates a source over the file at path
func NewCSVSource(path string, chart *puc.Chart, config CSVConfig) *CSVSource {
	if chart == nil {
		chart = puc.DefaultChart()
	}
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}

	log := logger.GetGlobalLogger().WithComponent("csv_source")
	log.WithFields(logger.Fields{
		"file_path":  path,
		"delimiter":  string(config.Delimiter),
		"max_errors": config.MaxErrors,
		"strict":     config.Strict,
	}).Debug("Created CSV source")

	return &CSVSource{path: path, chart: chart, config: config, logger: log}
}

func (s *CSVSource) Name() string { return "csv" }

// Fetch parses the file and keeps the rows dated inside period
func (s *CSVSource) Fetch(ctx context.Context, period models.PeriodRange) (statement.SourceData, error) {
	data, stats, err := s.Parse(ctx, period)
	if err != nil {
		return nil, err
	}
	if stats.HasErrors() {
		notify(ctx, false, fmt.Sprintf("%s: %d rows skipped because of parse errors", s.path, len(stats.Errors)))
	}
	return data, nil
}

// Parse is Fetch with parse statistics
func (s *CSVSource) Parse(ctx context.Context, period models.PeriodRange) (statement.SourceData, *ParseStats, error) {
	file, err := os.Open(s.path)
	if err != nil {
		s.logger.WithError(err).WithField("file_path", s.path).Error("Failed to open CSV file")
		if os.IsNotExist(err) {
			return nil, nil, apperrors.FileError(apperrors.CodeFileNotFound, s.path, err)
		}
		if os.IsPermission(err) {
			return nil, nil, apperrors.FileError(apperrors.CodeFilePermission, s.path, err)
		}
		return nil, nil, apperrors.FileError(apperrors.CodeDirectoryError, s.path, err)
	}
	defer file.Close()

	return s.parseReader(ctx, file, period)
}

func (s *CSVSource) parseReader(ctx context.Context, r io.Reader, period models.PeriodRange) (statement.SourceData, *ParseStats, error) {
	stats := &ParseStats{}

	decoded, charset, err := utf8Reader(r)
	if err != nil {
		return nil, nil, apperrors.EncodingError(s.path, 0, err).DataContaError
	}
	stats.Encoding = charset

	reader := csv.NewReader(decoded)
	reader.Comma = s.config.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	columns, err := s.readHeader(reader)
	if err != nil {
		return nil, nil, err
	}
	stats.TotalLines = 1

	collector := apperrors.NewParseErrorCollector(s.config.MaxErrors)
	agg := newAggregator(s.chart)

	for {
		if ctx.Err() != nil {
			return nil, nil, apperrors.InternalError(apperrors.CodeCancelled, "csv parsing", ctx.Err())
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		stats.TotalLines++
		line := stats.TotalLines

		if err != nil {
			perr := apperrors.NewEnhancedParseError(apperrors.CodeInvalidFormat,
				&apperrors.ParseContext{File: s.path, Line: line}, "malformed CSV row", err)
			if !s.collect(collector, stats, perr) {
				return nil, stats, s.abort(collector)
			}
			continue
		}

		if isEmptyRecord(record) {
			continue
		}
		stats.RecordsParsed++

		row, perr := s.parseRow(record, columns, line)
		if perr != nil {
			perr.WithLineContent(strings.Join(record, string(s.config.Delimiter)))
			if !s.collect(collector, stats, perr) {
				return nil, stats, s.abort(collector)
			}
			continue
		}

		if !period.Contains(row.date) {
			stats.OutOfPeriod++
			continue
		}

		stats.RecordsValid++
		agg.add(row.category, row.code, row.description, row.value)
	}

	if s.config.Strict && collector.HasErrors() {
		return nil, stats, s.abort(collector)
	}

	entry := s.logger.WithFields(logger.Fields{
		"file_path": s.path,
		"encoding":  stats.Encoding,
		"records":   stats.RecordsParsed,
		"valid":     stats.RecordsValid,
		"skipped":   stats.OutOfPeriod,
		"errors":    len(stats.Errors),
	})
	if stats.HasErrors() {
		entry.Warn("Parsed CSV with errors")
	} else {
		entry.Info("Parsed CSV")
	}

	return agg.data(), stats, nil
}

func (s *CSVSource) collect(c *apperrors.ParseErrorCollector, stats *ParseStats, err *apperrors.EnhancedParseError) bool {
	stats.Errors = append(stats.Errors, err)
	s.logger.WithField("line_number", err.Location.Line).WithError(err).Debug("Skipping invalid row")
	return c.Add(err)
}

// abort turns the collected row errors into the error Parse returns,
// carrying the per-code counts in its context
func (s *CSVSource) abort(c *apperrors.ParseErrorCollector) error {
	errs := c.GetErrors()
	summary := c.GetSummary()
	s.logger.WithFields(logger.Fields{
		"file_path":      s.path,
		"errors":         summary.Total,
		"errors_by_code": summary.ByCode,
	}).Error("Aborted CSV parsing")

	return errs[0].DataContaError.
		WithDetail(apperrors.FormatParseErrorsForUser(errs)).
		WithContext("row_errors", summary.Total).
		WithContext("errors_by_code", summary.ByCode)
}

// readHeader maps canonical column names onto record indices
func (s *CSVSource) readHeader(reader *csv.Reader) (map[string]int, error) {
	headers, err := reader.Read()
	if err == io.EOF {
		return nil, apperrors.DataValidationError(apperrors.CodeMissingField, "file_content", "empty", nil).
			WithSuggestion("Ensure the file contains a header row and data rows")
	}
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, s.path, 1, "headers", "", err).
			WithSuggestion("Check the file format and ensure it's a valid CSV")
	}

	columns := make(map[string]int, len(headers))
	actual := make([]string, 0, len(headers))
	for i, h := range headers {
		name := s.canonical(h)
		actual = append(actual, name)
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	_, hasCategory := columns[ColumnCategory]
	_, hasCode := columns[ColumnAccountCode]
	required := []string{ColumnDate, ColumnValue}
	if !hasCategory && !hasCode {
		required = append(required, ColumnAccountCode)
	}
	for _, col := range required {
		if _, ok := columns[col]; !ok {
			return nil, apperrors.MissingColumnError(s.path, required, actual).DataContaError
		}
	}

	return columns, nil
}

func (s *CSVSource) canonical(header string) string {
	name := strings.ToLower(strings.TrimSpace(header))
	name = strings.ReplaceAll(name, " ", "_")
	if alias, ok := s.config.ColumnAliases[name]; ok {
		return alias
	}
	if alias, ok := defaultAliases[name]; ok {
		return alias
	}
	return name
}

type csvRow struct {
	date        time.Time
	category    string
	code        string
	description string
	value       decimal.Decimal
}

func (s *CSVSource) parseRow(record []string, columns map[string]int, line int) (csvRow, *apperrors.EnhancedParseError) {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	for i, f := range record {
		if s.config.MaxFieldSize > 0 && len(f) > s.config.MaxFieldSize {
			perr := apperrors.NewEnhancedParseError(apperrors.CodeInvalidData,
				&apperrors.ParseContext{File: s.path, Line: line, Column: fmt.Sprintf("field_%d", i)},
				fmt.Sprintf("field exceeds maximum size of %d bytes", s.config.MaxFieldSize), nil)
			return csvRow{}, perr
		}
	}

	var row csvRow

	rawDate := field(ColumnDate)
	if rawDate == "" {
		return row, apperrors.EmptyValueError(s.path, line, ColumnDate)
	}
	date, ok := parseCSVDate(rawDate)
	if !ok {
		return row, apperrors.InvalidDateError(s.path, line, ColumnDate, rawDate)
	}
	row.date = date

	rawValue := field(ColumnValue)
	if rawValue == "" {
		return row, apperrors.EmptyValueError(s.path, line, ColumnValue)
	}
	value, err := parseAmount(rawValue)
	if err != nil {
		return row, apperrors.InvalidAmountError(s.path, line, ColumnValue, rawValue)
	}
	row.value = value

	row.code = field(ColumnAccountCode)
	if row.code != "" && puc.CheckCompliance(row.code) != nil {
		return row, apperrors.UnknownAccountError(s.path, line, ColumnAccountCode, row.code)
	}

	if key := strings.ToLower(field(ColumnCategory)); key != "" {
		if _, ok := statement.CategoryFromKey(key); !ok {
			perr := apperrors.NewEnhancedParseError(apperrors.CodeInvalidValue,
				&apperrors.ParseContext{File: s.path, Line: line, Column: ColumnCategory, Value: key,
					Expected: strings.Join(statement.RequiredKeys(), ", ")},
				fmt.Sprintf("unknown category '%s'", key), nil)
			return row, perr
		}
		row.category = key
	} else {
		if row.code == "" {
			return row, apperrors.EmptyValueError(s.path, line, ColumnAccountCode)
		}
		category, ok := s.chart.Classify(row.code)
		if !ok {
			return row, apperrors.UnknownAccountError(s.path, line, ColumnAccountCode, row.code)
		}
		row.category = category
	}

	row.description = field(ColumnDescription)
	return row, nil
}

func parseCSVDate(s string) (time.Time, bool) {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAmount accepts plain decimals and Colombian formatted amounts such as
// "$1.234.567,50" or "(1.000)". A lone dot followed by exactly three digits
// is read as a thousands separator.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", " ", "", "COP", "").Replace(s)
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
