// Package server exposes income statements, sales indicators, invoices and
// balance sheets over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /api/v1/estado-resultados
//	POST /api/v1/estado-resultados
//	GET  /api/v1/kpis
//	GET  /api/v1/invoices
//	GET  /api/v1/balance
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"dataconta/internal/kpi"
	"dataconta/internal/models"
	"dataconta/internal/reporter"
	"dataconta/internal/reports"
	"dataconta/internal/statement"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

const (
	DefaultAddr      = ":8080"
	DefaultRateLimit = 60

	shutdownTimeout = 10 * time.Second
)

// Config holds HTTP listener settings
type Config struct {
	Addr string `mapstructure:"addr" validate:"required"`
	// RateLimit is the number of requests per minute allowed per client IP;
	// zero disables limiting
	RateLimit    int           `mapstructure:"rate_limit" validate:"min=0"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`
}

// DefaultConfig returns the listener settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Addr:         DefaultAddr,
		RateLimit:    DefaultRateLimit,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
}

// Validate reports an invalid listener setting as a configuration error
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "server", nil, err)
	}
	return nil
}

// StatementGenerator produces income statements
type StatementGenerator interface {
	GenerateIncomeStatement(ctx context.Context, req reports.Request) (*reports.Result, error)
}

// KPIProvider computes sales indicators for a period
type KPIProvider interface {
	SalesKPIs(ctx context.Context, period models.PeriodRange) (*kpi.SalesKPIs, error)
}

// SiigoAPI is the subset of the Siigo client the invoice and balance routes need
type SiigoAPI interface {
	Invoices(ctx context.Context, start, end time.Time) ([]models.Invoice, error)
	InvoicesForCustomer(ctx context.Context, start, end time.Time, identification string) ([]models.Invoice, error)
	TrialBalance(ctx context.Context, date time.Time) (*models.TrialBalance, error)
}

// Deps are the services behind the routes
type Deps struct {
	Statements StatementGenerator
	KPIs       KPIProvider
	Siigo      SiigoAPI
	// Report carries the locale and CSV delimiter of downloadable outputs
	Report *reporter.ReportConfig
	// Now is the clock used for date validation and file names
	Now func() time.Time
}

// Server serves the HTTP API
type Server struct {
	config    Config
	deps      Deps
	validator *statement.Validator
	logger    logger.Logger
	router    chi.Router
}

// New creates a Server and mounts its routes
func New(cfg Config, deps Deps) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Statements == nil || deps.KPIs == nil || deps.Siigo == nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "server.deps", nil,
			errors.New("statement, KPI and Siigo services are required"))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Report == nil {
		deps.Report = reporter.DefaultReportConfig()
	}

	s := &Server{
		config:    cfg,
		deps:      deps,
		validator: statement.NewValidator(deps.Now),
		logger:    logger.GetGlobalLogger().WithComponent("server"),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(s.logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealth)

	router.Route("/api/v1", func(r chi.Router) {
		if s.config.RateLimit > 0 {
			r.Use(httprate.Limit(s.config.RateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(s.writeRateLimited),
			))
		}

		r.Route("/estado-resultados", func(r chi.Router) {
			r.Get("/", s.handleStatementQuery)
			r.With(middleware.AllowContentType("application/json")).Post("/", s.handleStatementBody)
		})
		r.Get("/kpis", s.handleKPIs)
		r.Get("/invoices", s.handleInvoices)
		r.Get("/balance", s.handleBalance)
	})

	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.config.Addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "server.addr", s.config.Addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// requestLogger logs one line per request through the application logger
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				entry := log.WithFields(logger.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
					"request_id": middleware.GetReqID(r.Context()),
					"remote":     r.RemoteAddr,
				})
				if ww.Status() >= http.StatusInternalServerError {
					entry.Warn("HTTP request failed")
					return
				}
				entry.Info("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
