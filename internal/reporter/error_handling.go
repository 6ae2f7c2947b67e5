package reporter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"dataconta/internal/statement"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with output and format fallbacks
type SafeReportGenerator struct {
	*ReportGenerator
	logger      logger.Logger
	fallbackDir string
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig,
			"report",
			config,
			err,
		).WithSuggestion("Check the report format, locale and output directory")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
		fallbackDir:     os.TempDir(),
	}, nil
}

// SaveStatementSafely saves the statement to the output directory. When the
// directory cannot be written the report goes to the system temp directory;
// when the configured format fails to render, console text is saved instead.
func (srg *SafeReportGenerator) SaveStatementSafely(s *statement.IncomeStatement) (string, error) {
	if s == nil {
		return "", apperrors.DataValidationError(apperrors.CodeMissingField, "statement", nil, nil).
			WithSuggestion("Provide a generated income statement")
	}

	op := logger.NewOperationLogger("save_report", srg.logger.WithFields(logger.Fields{
		"format":     srg.config.Format,
		"output_dir": srg.config.OutputDir,
		"period":     s.Current.String(),
	}))

	path, err := srg.SaveStatement(s)
	if err == nil {
		op.WithField("path", path).Success("Report generation completed successfully")
		return path, nil
	}

	op.Warning(fmt.Sprintf("Primary report generation failed, attempting fallback: %v", err))

	switch {
	case srg.shouldAttemptOutputFallback(err):
		path, err = srg.saveWithOutputFallback(s, err)
	case srg.shouldAttemptFormatFallback(err):
		path, err = srg.saveWithFormatFallback(s, err)
	}
	if err != nil {
		op.Error(err, "Report generation failed")
		return "", err
	}
	op.WithField("path", path).WithField("fallback", true).Success("Report generation completed with fallback")
	return path, nil
}

func (srg *SafeReportGenerator) shouldAttemptOutputFallback(err error) bool {
	de, ok := apperrors.AsDataContaError(err)
	if !ok {
		return false
	}
	if de.Code != apperrors.CodeWritePermission && de.Code != apperrors.CodeDirectoryError {
		return false
	}
	return srg.fallbackDir != "" && filepath.Clean(srg.fallbackDir) != filepath.Clean(srg.config.OutputDir)
}

func (srg *SafeReportGenerator) saveWithOutputFallback(s *statement.IncomeStatement, originalErr error) (string, error) {
	backupPath := filepath.Join(srg.fallbackDir, srg.StatementFileName(srg.config.Timestamp()))

	srg.logger.WithFields(logger.Fields{
		"output_dir":  srg.config.OutputDir,
		"backup_file": backupPath,
	}).Info("Attempting output fallback")

	if err := srg.saveStatementTo(s, backupPath); err != nil {
		return "", apperrors.InternalError(
			apperrors.CodeUnexpectedError,
			"report_output_fallback",
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", originalErr, err),
		)
	}

	srg.logger.WithField("backup_file", backupPath).Warn("Report saved to fallback location")
	return backupPath, nil
}

func (srg *SafeReportGenerator) shouldAttemptFormatFallback(err error) bool {
	if de, ok := apperrors.AsDataContaError(err); ok && de.Code != apperrors.CodeRenderFailed {
		return false
	}
	return srg.config.Format != FormatConsole
}

func (srg *SafeReportGenerator) saveWithFormatFallback(s *statement.IncomeStatement, originalErr error) (string, error) {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return "", originalErr
	}

	path, err := fallbackGenerator.SaveStatement(s)
	if err != nil {
		return "", apperrors.InternalError(
			apperrors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}

	srg.logger.WithField("path", path).Warn("Report saved as console text using format fallback")
	return path, nil
}

// classifyWriteError maps an output failure to a rendering or directory error
func classifyWriteError(path string, err error) error {
	if _, ok := apperrors.AsDataContaError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS):
		return apperrors.RenderingError(apperrors.CodeWritePermission, path, err)
	case errors.Is(err, syscall.ENOTDIR) || errors.Is(err, syscall.EISDIR):
		return apperrors.FileError(apperrors.CodeDirectoryError, path, err).
			WithSuggestion("choose an --output-dir that is a writable directory")
	case isSpaceError(err):
		return apperrors.RenderingError(apperrors.CodeDiskFull, path, err)
	default:
		return apperrors.RenderingError(apperrors.CodeRenderFailed, path, err)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
