package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups failures the way callers react to them
type ErrorCategory string

const (
	CategoryDateRange      ErrorCategory = "date_range"
	CategoryDataSource     ErrorCategory = "data_source"
	CategoryDataValidation ErrorCategory = "data_validation"
	CategoryCalculation    ErrorCategory = "calculation"
	CategoryRendering      ErrorCategory = "rendering"
	CategoryNormative      ErrorCategory = "normative"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Date range errors
	CodeInvalidDateFormat ErrorCode = "invalid_date_format"
	CodeStartNotBeforeEnd ErrorCode = "start_not_before_end"
	CodeRangeTooLong      ErrorCode = "range_too_long"
	CodeTooFarInFuture    ErrorCode = "too_far_in_future"
	CodeMissingComparison ErrorCode = "missing_comparison_dates"

	// Data source errors
	CodeConnectionFailed     ErrorCode = "connection_failed"
	CodeTimeout              ErrorCode = "timeout"
	CodeAuthenticationFailed ErrorCode = "authentication_failed"
	CodeRateLimited          ErrorCode = "rate_limited"
	CodeNotFound             ErrorCode = "not_found"
	CodeUpstreamError        ErrorCode = "upstream_error"
	CodeInvalidResponse      ErrorCode = "invalid_response"

	// Data validation errors
	CodeMissingSection ErrorCode = "missing_section"
	CodeInvalidAmount  ErrorCode = "invalid_amount"
	CodeMissingField   ErrorCode = "missing_field"
	CodeInvalidValue   ErrorCode = "invalid_value"

	// Calculation errors
	CodeNegativeTotal  ErrorCode = "negative_total"
	CodeSanityExceeded ErrorCode = "sanity_exceeded"

	// Rendering errors
	CodeWritePermission ErrorCode = "write_permission"
	CodeDiskFull        ErrorCode = "disk_full"
	CodeRenderFailed    ErrorCode = "render_failed"

	// Normative errors
	CodeInvalidAccountCode ErrorCode = "invalid_account_code"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeConfigConflict ErrorCode = "config_conflict"

	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"
	CodeDirectoryError ErrorCode = "directory_error"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"
	CodeEncodingError ErrorCode = "encoding_error"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
	CodeCancelled       ErrorCode = "cancelled"
)

// DataContaError is the base error type for all application errors
type DataContaError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Detail     string            `json:"detail,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *DataContaError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *DataContaError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *DataContaError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryDataValidation, CategoryNormative:
		return 3
	case CategoryConfiguration, CategoryDateRange:
		return 4
	case CategoryCalculation, CategoryRendering, CategoryInternal:
		return 5
	case CategoryDataSource:
		return 6
	default:
		return 1
	}
}

// ReportCode returns the ER_* code used by report consumers
func (e *DataContaError) ReportCode() string {
	switch e.Category {
	case CategoryDataSource:
		return "ER_SIIGO_API"
	case CategoryDataValidation, CategoryParse:
		return "ER_DATA_VALIDATION"
	case CategoryRendering:
		return "ER_EXCEL_GEN"
	case CategoryDateRange:
		return "ER_DATE_RANGE"
	case CategoryCalculation:
		return "ER_CALCULATION"
	case CategoryNormative:
		return "ER_NORMATIVE"
	case CategoryConfiguration:
		return "ER_CONFIG"
	case CategoryFile:
		return "ER_FILE"
	default:
		return "ER_UNEXPECTED"
	}
}

// HTTPStatus maps the error onto an HTTP status code
func (e *DataContaError) HTTPStatus() int {
	switch e.Category {
	case CategoryDateRange, CategoryConfiguration, CategoryNormative, CategoryParse:
		return http.StatusBadRequest
	case CategoryDataValidation, CategoryCalculation:
		return http.StatusUnprocessableEntity
	case CategoryDataSource:
		switch e.Code {
		case CodeTimeout:
			return http.StatusGatewayTimeout
		case CodeRateLimited:
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	case CategoryFile:
		if e.Code == CodeFileNotFound {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WithContext adds context information to the error
func (e *DataContaError) WithContext(key string, value interface{}) *DataContaError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *DataContaError) WithSuggestion(suggestion string) *DataContaError {
	e.Suggestion = suggestion
	return e
}

// WithDetail attaches technical detail meant for logs and verbose output
func (e *DataContaError) WithDetail(detail string) *DataContaError {
	e.Detail = detail
	return e
}

// New creates a new DataContaError
func New(category ErrorCategory, code ErrorCode, message string) *DataContaError {
	return &DataContaError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with DataContaError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *DataContaError {
	if err == nil {
		return nil
	}

	return &DataContaError{
		Category:   category,
		Code:       code,
		Message:    message,
		Detail:     err.Error(),
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *DataContaError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// DateRangeError creates an error for a rejected reporting period
func DateRangeError(code ErrorCode, start, end string, err error) *DataContaError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidDateFormat:
		message = fmt.Sprintf("invalid date format (start %q, end %q)", start, end)
		suggestion = "use the YYYY-MM-DD date format"
	case CodeStartNotBeforeEnd:
		message = fmt.Sprintf("start date %s must be before end date %s", start, end)
		suggestion = "swap the dates or pick a longer period"
	case CodeRangeTooLong:
		message = fmt.Sprintf("period %s - %s is too long (maximum 2 years)", start, end)
		suggestion = "split the report into periods of at most 730 days"
	case CodeTooFarInFuture:
		message = fmt.Sprintf("end date %s is too far in the future", end)
		suggestion = "use an end date at most 30 days from today"
	case CodeMissingComparison:
		message = "custom comparison requires both comparison dates"
		suggestion = "provide --compare-start and --compare-end"
	default:
		message = fmt.Sprintf("invalid period %s - %s", start, end)
		suggestion = "check the period dates"
	}

	return build(CategoryDateRange, code, message, err).
		WithSuggestion(suggestion).
		WithContext("start", start).
		WithContext("end", end)
}

// DataSourceError creates an error for a failing upstream accounting source
func DataSourceError(code ErrorCode, endpoint string, err error) *DataContaError {
	var message string
	var suggestion string

	switch code {
	case CodeConnectionFailed:
		message = fmt.Sprintf("could not connect to Siigo API at %s", endpoint)
		suggestion = "check network connectivity and the SIIGO_API_URL setting"
	case CodeTimeout:
		message = fmt.Sprintf("timeout waiting for Siigo API at %s", endpoint)
		suggestion = "try again later or increase the client timeout"
	case CodeAuthenticationFailed:
		message = "Siigo API credentials are invalid or expired"
		suggestion = "verify SIIGO_USER, SIIGO_ACCESS_KEY and PARTNER_ID"
	case CodeRateLimited:
		message = "Siigo API rate limit exceeded"
		suggestion = "wait a minute before retrying"
	case CodeNotFound:
		message = fmt.Sprintf("Siigo API resource not found: %s", endpoint)
		suggestion = "check that the endpoint is enabled for your Siigo plan"
	case CodeInvalidResponse:
		message = fmt.Sprintf("unexpected response from Siigo API at %s", endpoint)
		suggestion = "the upstream format may have changed; report it with the error details"
	default:
		message = fmt.Sprintf("Siigo API error at %s", endpoint)
		suggestion = "try again later"
	}

	return build(CategoryDataSource, code, message, err).
		WithSuggestion(suggestion).
		WithContext("endpoint", endpoint)
}

// DataValidationError creates an error for malformed accounting data
func DataValidationError(code ErrorCode, field string, value interface{}, err error) *DataContaError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingSection:
		message = fmt.Sprintf("section '%s' missing from accounting data", field)
		suggestion = "make sure the data source returns every statement section"
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "amounts must be plain decimal numbers (e.g. '1234.56')"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	default:
		message = fmt.Sprintf("invalid value in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(CategoryDataValidation, code, message, err).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// CalculationError creates an error raised by statement arithmetic checks
func CalculationError(code ErrorCode, concept string, value interface{}) *DataContaError {
	var message string
	var suggestion string

	switch code {
	case CodeNegativeTotal:
		message = fmt.Sprintf("%s total cannot be negative: %v", concept, value)
		suggestion = "review credit notes and reversing entries for the period"
	case CodeSanityExceeded:
		message = fmt.Sprintf("costs and expenses exceed three times revenue (%v)", value)
		suggestion = "verify the period data; run with --strict to treat this as fatal"
	default:
		message = fmt.Sprintf("calculation error in %s: %v", concept, value)
		suggestion = "review the accounting data"
	}

	return New(CategoryCalculation, code, message).
		WithSuggestion(suggestion).
		WithContext("concept", concept).
		WithContext("value", value)
}

// RenderingError creates an error raised while writing a report file
func RenderingError(code ErrorCode, path string, err error) *DataContaError {
	var message string
	var suggestion string

	switch code {
	case CodeWritePermission:
		message = fmt.Sprintf("no permission to write report at %s", path)
		suggestion = "choose another --output-dir or fix directory permissions"
	case CodeDiskFull:
		message = fmt.Sprintf("not enough disk space to write %s", path)
		suggestion = "free up disk space and try again"
	default:
		message = fmt.Sprintf("failed to render report %s", path)
		suggestion = "try again or use another output format"
	}

	return build(CategoryRendering, code, message, err).
		WithSuggestion(suggestion).
		WithContext("path", path)
}

// NormativeError creates an error for account codes outside the PUC
func NormativeError(code ErrorCode, accountCode string) *DataContaError {
	message := fmt.Sprintf("account code %q is not valid under the PUC", accountCode)
	return New(CategoryNormative, code, message).
		WithSuggestion("account codes must be numeric and start with a PUC class digit (1-9)").
		WithContext("account_code", accountCode)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *DataContaError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "set it with a flag, the config file or an environment variable"
	case CodeConfigConflict:
		message = fmt.Sprintf("configuration conflict with setting '%s': %v", setting, value)
		suggestion = "resolve the conflicting settings"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *DataContaError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
		suggestion = "verify the file integrity and try using a backup copy"
	default:
		message = fmt.Sprintf("directory error: %s", path)
		suggestion = "ensure the directory exists and is accessible"
	}

	return build(CategoryFile, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error
func ParseError(code ErrorCode, file string, line int, column string, value string, err error) *DataContaError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "check the data format and ensure it matches the expected structure"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the data format or remove the invalid entry"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in file %s at line %d", file, line)
		suggestion = "save the file as UTF-8 or Windows-1252"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	return build(CategoryParse, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column).
		WithContext("value", value)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *DataContaError {
	var message string
	var suggestion string

	switch code {
	case CodeCancelled:
		message = fmt.Sprintf("%s was cancelled", operation)
		suggestion = "run the command again"
	default:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	}

	return build(CategoryInternal, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// IsWarning reports whether the error is a non-fatal finding the caller may
// accept, such as the cost/revenue sanity check.
func IsWarning(err error) bool {
	e, ok := AsDataContaError(err)
	return ok && e.Category == CategoryCalculation && e.Code == CodeSanityExceeded
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*DataContaError     `json:"errors"`
	SampleErrors []*DataContaError     `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*DataContaError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if len(errs) == 0 {
		summary.Errors = []*DataContaError{}
		return summary
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// AsDataContaError extracts a DataContaError from an error chain
func AsDataContaError(err error) (*DataContaError, bool) {
	var appErr *DataContaError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCategory reports whether err carries the given category
func IsCategory(err error, category ErrorCategory) bool {
	e, ok := AsDataContaError(err)
	return ok && e.Category == category
}

// WrapIfNeeded wraps an error if it's not already a DataContaError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *DataContaError {
	if err == nil {
		return nil
	}

	if appErr, ok := AsDataContaError(err); ok {
		return appErr
	}

	return Wrap(err, category, code, message)
}
