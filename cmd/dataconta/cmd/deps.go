package cmd

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"dataconta/cmd/dataconta/config"
	"dataconta/internal/ledger"
	"dataconta/internal/models"
	"dataconta/internal/reporter"
	"dataconta/internal/siigo"
	"dataconta/internal/statement"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

// now is the clock of every command
var now = time.Now

func newSiigoClient() (*siigo.Client, error) {
	return siigo.NewClient(config.Siigo(settings), siigo.WithLogger(logger.GetGlobalLogger().WithComponent("siigo")))
}

// newLedgerSource returns the configured line-item source, wrapped with the
// demo fallback when enabled
func newLedgerSource() (ledger.Source, error) {
	src, err := config.Source(settings)
	if err != nil {
		return nil, err
	}

	if src.Type == config.SourceDemo {
		return ledger.DemoSource{}, nil
	}

	chart, err := src.Chart()
	if err != nil {
		return nil, err
	}

	var source ledger.Source
	switch src.Type {
	case config.SourceCSV:
		source = ledger.NewCSVSource(src.File, chart, config.CSV(settings))
	default:
		client, err := newSiigoClient()
		if err != nil {
			return nil, err
		}
		source = ledger.NewSiigoSource(client, chart)
	}

	if src.DemoFallback {
		source = ledger.NewFallbackSource(source)
	}
	return source, nil
}

// reportConfig returns the configured report settings, with format
// replaced when not empty
func reportConfig(format string) (*reporter.ReportConfig, error) {
	rc, err := config.Report(settings)
	if err != nil {
		return nil, err
	}
	if format != "" {
		rc.Format = reporter.OutputFormat(format)
	}
	rc.Timestamp = now
	if err := rc.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "format", format, err).
			WithSuggestion("use one of: xlsx, console, json, csv")
	}
	return rc, nil
}

// parsePeriod validates a --start/--end pair
func parsePeriod(start, end string) (models.PeriodRange, error) {
	s, e, err := statement.NewValidator(now).ParseDateRange(start, end)
	if err != nil {
		return models.PeriodRange{}, err
	}
	return statement.CurrentPeriod(s, e), nil
}

// createOutput opens path for writing, creating its directory. An empty
// path writes to fallback.
func createOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, apperrors.FileError(apperrors.CodeDirectoryError, filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
	}
	return f, f.Close, nil
}
