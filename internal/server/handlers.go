package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"dataconta/internal/models"
	"dataconta/internal/reporter"
	"dataconta/internal/reports"
	"dataconta/internal/statement"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

const (
	contentTypeJSON = "application/json"
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	invoiceFilePrefix = "facturas"
	maxBodyBytes      = 1 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type statementParams struct {
	Start        string `json:"start" validate:"required,datetime=2006-01-02"`
	End          string `json:"end" validate:"required,datetime=2006-01-02"`
	Comparison   string `json:"comparison" validate:"omitempty,oneof=previous_period prior_year custom none"`
	CompareStart string `json:"compare_start" validate:"omitempty,datetime=2006-01-02"`
	CompareEnd   string `json:"compare_end" validate:"omitempty,datetime=2006-01-02"`
	Format       string `json:"format" validate:"omitempty,oneof=json xlsx"`
	Strict       bool   `json:"strict"`
}

type periodParams struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

type invoiceParams struct {
	Start  string `json:"start" validate:"required,datetime=2006-01-02"`
	End    string `json:"end" validate:"required,datetime=2006-01-02"`
	NIT    string `json:"nit" validate:"omitempty,max=20"`
	Format string `json:"format" validate:"omitempty,oneof=json csv xlsx"`
}

type balanceParams struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type errorResponse struct {
	Code       string `json:"code"`
	Category   string `json:"category"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   s.deps.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatementQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := statementParams{
		Start:        q.Get("start"),
		End:          q.Get("end"),
		Comparison:   q.Get("comparison"),
		CompareStart: q.Get("compare_start"),
		CompareEnd:   q.Get("compare_end"),
		Format:       q.Get("format"),
	}
	if raw := q.Get("strict"); raw != "" {
		strict, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, apperrors.DataValidationError(apperrors.CodeInvalidValue, "strict", raw, err))
			return
		}
		params.Strict = strict
	}
	s.serveStatement(w, r, params)
}

func (s *Server) handleStatementBody(w http.ResponseWriter, r *http.Request) {
	var params statementParams
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CategoryParse, apperrors.CodeInvalidFormat,
			"request body is not a valid income statement request").
			WithDetail(err.Error()).
			WithSuggestion(`send {"start": "YYYY-MM-DD", "end": "YYYY-MM-DD"}`))
		return
	}
	s.serveStatement(w, r, params)
}

func (s *Server) serveStatement(w http.ResponseWriter, r *http.Request, params statementParams) {
	if err := validate.Struct(params); err != nil {
		s.writeError(w, r, validationError(err, params.Start, params.End))
		return
	}

	result, err := s.deps.Statements.GenerateIncomeStatement(r.Context(), reports.Request{
		Start:        params.Start,
		End:          params.End,
		Mode:         statement.ComparisonMode(params.Comparison),
		CompareStart: params.CompareStart,
		CompareEnd:   params.CompareEnd,
		Strict:       params.Strict,
		SkipRender:   true,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("X-Report-ID", result.ID)

	if params.Format != string(reporter.FormatXLSX) {
		writeJSON(w, http.StatusOK, result)
		return
	}

	gen, err := s.generator(reporter.FormatXLSX)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := gen.WriteStatement(result.Statement, &buf); err != nil {
		s.writeError(w, r, apperrors.RenderingError(apperrors.CodeRenderFailed, "response", err))
		return
	}
	writeAttachment(w, contentTypeXLSX, gen.StatementFileName(s.deps.Now()), buf.Bytes())
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	params := periodParams{Start: r.URL.Query().Get("start"), End: r.URL.Query().Get("end")}
	period, err := s.period(params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	kpis, err := s.deps.KPIs.SalesKPIs(r.Context(), period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := invoiceParams{
		Start:  q.Get("start"),
		End:    q.Get("end"),
		NIT:    strings.TrimSpace(q.Get("nit")),
		Format: q.Get("format"),
	}
	if err := validate.Struct(params); err != nil {
		s.writeError(w, r, validationError(err, params.Start, params.End))
		return
	}
	period, err := s.period(periodParams{Start: params.Start, End: params.End})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var invoices []models.Invoice
	if params.NIT != "" {
		invoices, err = s.deps.Siigo.InvoicesForCustomer(r.Context(), period.Start(), period.End(), params.NIT)
	} else {
		invoices, err = s.deps.Siigo.Invoices(r.Context(), period.Start(), period.End())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	format := reporter.OutputFormat(params.Format)
	if format == "" {
		format = reporter.FormatJSON
	}
	gen, err := s.generator(format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := gen.WriteInvoices(invoices, &buf); err != nil {
		s.writeError(w, r, apperrors.RenderingError(apperrors.CodeRenderFailed, "response", err))
		return
	}

	switch format {
	case reporter.FormatJSON:
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	case reporter.FormatCSV:
		writeAttachment(w, contentTypeCSV, invoiceFileName(s.deps.Now(), format), buf.Bytes())
	default:
		writeAttachment(w, contentTypeXLSX, invoiceFileName(s.deps.Now(), format), buf.Bytes())
	}
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	params := balanceParams{Date: r.URL.Query().Get("date")}
	if err := validate.Struct(params); err != nil {
		s.writeError(w, r, validationError(err, params.Date, params.Date))
		return
	}

	date := models.Civil(s.deps.Now())
	if params.Date != "" {
		d, err := models.ParseDate(params.Date)
		if err != nil {
			s.writeError(w, r, apperrors.DateRangeError(apperrors.CodeInvalidDateFormat, params.Date, params.Date, err))
			return
		}
		date = d
	}

	tb, err := s.deps.Siigo.TrialBalance(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statement.BuildBalanceSheet(*tb))
}

// period validates a start/end pair into a labelled period
func (s *Server) period(params periodParams) (models.PeriodRange, error) {
	if err := validate.Struct(params); err != nil {
		return models.PeriodRange{}, validationError(err, params.Start, params.End)
	}
	start, end, err := s.validator.ParseDateRange(params.Start, params.End)
	if err != nil {
		return models.PeriodRange{}, err
	}
	return statement.CurrentPeriod(start, end), nil
}

func (s *Server) generator(format reporter.OutputFormat) (*reporter.ReportGenerator, error) {
	cfg := *s.deps.Report
	cfg.Format = format
	cfg.Timestamp = s.deps.Now
	gen, err := reporter.NewReportGenerator(&cfg)
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "report", nil, err)
	}
	return gen, nil
}

func invoiceFileName(t time.Time, format reporter.OutputFormat) string {
	return fmt.Sprintf("%s_%s%s", invoiceFilePrefix, t.Format("20060102_150405"), format.Extension())
}

// validationError turns the first failed field into a date range or data
// validation error
func validationError(err error, start, end string) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.DataValidationError(apperrors.CodeInvalidValue, "request", nil, err)
	}

	fe := fieldErrs[0]
	if fe.Tag() == "datetime" || (fe.Tag() == "required" && isDateField(fe.Field())) {
		return apperrors.DateRangeError(apperrors.CodeInvalidDateFormat, start, end, nil).
			WithContext("field", fe.Field())
	}
	return apperrors.DataValidationError(apperrors.CodeInvalidValue, fe.Field(), fe.Value(), nil).
		WithDetail(fe.Error())
}

func isDateField(name string) bool {
	switch name {
	case "start", "end", "compare_start", "compare_end", "date":
		return true
	}
	return false
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	de := apperrors.WrapIfNeeded(err, apperrors.CategoryInternal, apperrors.CodeUnexpectedError, "unexpected error")
	status := de.HTTPStatus()

	log := s.logger.WithError(err).WithFields(logger.Fields{
		"status":     status,
		"category":   de.Category,
		"code":       de.Code,
		"request_id": middleware.GetReqID(r.Context()),
	})
	if status >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Warn("Request rejected")
	}

	writeJSON(w, status, errorResponse{
		Code:       de.ReportCode(),
		Category:   string(de.Category),
		Reason:     string(de.Code),
		Message:    de.Message,
		Detail:     de.Detail,
		Suggestion: de.Suggestion,
		RequestID:  middleware.GetReqID(r.Context()),
	})
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithField("remote", r.RemoteAddr).Warn("Rate limit exceeded")
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Code:       "ER_RATE_LIMIT",
		Category:   "rate_limit",
		Reason:     string(apperrors.CodeRateLimited),
		Message:    "too many requests",
		Suggestion: "wait a minute before retrying",
		RequestID:  middleware.GetReqID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
