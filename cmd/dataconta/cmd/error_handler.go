package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	out     io.Writer
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a handler writing to out. verbose adds the
// technical detail and the underlying error.
func NewCLIErrorHandler(out io.Writer, verbose bool) *CLIErrorHandler {
	return &CLIErrorHandler{
		out:     out,
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: verbose,
	}
}

// Verbose reports whether --verbose was given on the last run
func Verbose() bool {
	return verbose || settings.GetBool("verbose")
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if de, ok := apperrors.AsDataContaError(err); ok {
		return h.handleDataContaError(de)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleDataContaError(err *apperrors.DataContaError) int {
	fmt.Fprintf(h.out, "Error [%s]: %s\n", err.ReportCode(), err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if h.verbose && err.Detail != "" {
		fmt.Fprintf(h.out, "\nDetail: %s\n", err.Detail)
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(h.out, "Cancelled\n")
		return 130
	case isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case isPermissionError(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have access\n")
		return 2
	case isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "Run 'dataconta --help' for usage\n")
	}
	return 1
}

// categoryHelp returns category-specific help text
func categoryHelp(category apperrors.ErrorCategory) string {
	switch category {
	case apperrors.CategoryDateRange:
		return `Date range help:
• Use YYYY-MM-DD dates, with --start before --end
• A period can span at most two years
• --comparison custom needs --compare-start and --compare-end`

	case apperrors.CategoryDataSource:
		return `Siigo API help:
• Run 'dataconta check-connection' to verify the credentials
• Check SIIGO_USER, SIIGO_ACCESS_KEY and PARTNER_ID
• Retry later if Siigo is rate limiting or unavailable
• Use --source csv with an exported file to work offline`

	case apperrors.CategoryDataValidation, apperrors.CategoryParse:
		return `Data help:
• Check that every account code is a numeric PUC code
• Amounts may use 1.234,56 or 1,234.56 grouping, without letters
• CSV files need fecha and valor columns plus cuenta or categoria`

	case apperrors.CategoryCalculation:
		return `Calculation help:
• Review the account classification with --chart
• Run without --strict to treat the sanity threshold as a warning`

	case apperrors.CategoryRendering, apperrors.CategoryFile:
		return `Output help:
• Check that the output directory exists and is writable
• Verify there is free disk space
• Try --format json or --format console`

	case apperrors.CategoryNormative:
		return `PUC help:
• Account codes must be numeric, at least two digits, classes 1 to 9
• Fix the chart override passed with --chart`

	case apperrors.CategoryConfiguration:
		return `Configuration help:
• Check your command-line flags and the --config file
• Environment variables use the DATACONTA_ prefix (DATACONTA_REPORT_FORMAT)
• Use 'dataconta <command> --help' to see all available options`

	default:
		return `For more help:
• Use 'dataconta --help' for general help
• Run again with --verbose for the underlying error`
	}
}

// Error detection helpers

func isFileNotFoundError(err error) bool {
	return errors.Is(err, os.ErrNotExist) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if errors.Is(err, syscall.ENOSPC) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "device full")
}
