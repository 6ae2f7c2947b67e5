// Package reports orchestrates income statement generation: it validates the
// requested periods, fetches both datasets concurrently, checks them, builds
// the statement and renders it.
//
// Example usage:
//
//	svc := reports.NewService(source, renderer, nil)
//	svc.AddProgressCallback(func(p reports.Progress) {
//		fmt.Printf("%.0f%% %s\n", p.PercentComplete, p.CurrentStep)
//	})
//	result, err := svc.GenerateIncomeStatement(ctx, reports.Request{
//		Start: "2024-01-01",
//		End:   "2024-03-31",
//		Mode:  statement.PriorYear,
//	})
package reports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dataconta/internal/ledger"
	"dataconta/internal/models"
	"dataconta/internal/statement"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

const totalSteps = 5

// Renderer writes a finished statement somewhere and returns its location
type Renderer interface {
	SaveStatementSafely(s *statement.IncomeStatement) (string, error)
}

// Request selects the periods of one income statement
type Request struct {
	Start        string                   `json:"start"`
	End          string                   `json:"end"`
	Mode         statement.ComparisonMode `json:"comparison,omitempty"`
	CompareStart string                   `json:"compare_start,omitempty"`
	CompareEnd   string                   `json:"compare_end,omitempty"`

	// Strict turns the calculation sanity warning into a failure
	Strict bool `json:"strict"`
	// SkipRender returns the statement without saving a report file
	SkipRender bool `json:"-"`
}

func (r Request) periodRequest() statement.PeriodRequest {
	return statement.PeriodRequest{
		Start:        r.Start,
		End:          r.End,
		Mode:         r.Mode,
		CompareStart: r.CompareStart,
		CompareEnd:   r.CompareEnd,
	}
}

// Result is a generated income statement
type Result struct {
	ID         string                     `json:"report_id"`
	Statement  *statement.IncomeStatement `json:"estado_resultados"`
	OutputPath string                     `json:"output_path,omitempty"`
	Source     string                     `json:"source"`
	DemoData   bool                       `json:"demo_data"`
	Warnings   []string                   `json:"warnings,omitempty"`
	Duration   time.Duration              `json:"duration"`
}

// Progress reports how far a generation has gone
type Progress struct {
	ReportID           string        `json:"report_id"`
	TotalSteps         int           `json:"total_steps"`
	CompletedSteps     int           `json:"completed_steps"`
	CurrentStep        string        `json:"current_step"`
	PercentComplete    float64       `json:"percent_complete"`
	StartTime          time.Time     `json:"start_time"`
	ElapsedTime        time.Duration `json:"elapsed_time"`
	EstimatedRemaining time.Duration `json:"estimated_remaining"`
}

// ProgressCallback is called after every generation step
type ProgressCallback func(Progress)

// Service generates income statements
type Service struct {
	source    ledger.Source
	renderer  Renderer
	validator *statement.Validator
	now       func() time.Time
	logger    logger.Logger

	callbacksMu sync.RWMutex
	callbacks   []ProgressCallback
}

// NewService creates a Service. renderer may be nil when every request
// skips rendering; a nil clock means time.Now.
func NewService(source ledger.Source, renderer Renderer, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		source:    source,
		renderer:  renderer,
		validator: statement.NewValidator(now),
		now:       now,
		logger:    logger.GetGlobalLogger().WithComponent("reports"),
	}
}

// AddProgressCallback adds a progress callback function
func (s *Service) AddProgressCallback(callback ProgressCallback) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// GenerateIncomeStatement runs the full generation workflow
func (s *Service) GenerateIncomeStatement(ctx context.Context, req Request) (*Result, error) {
	result := &Result{ID: uuid.New().String(), Source: s.source.Name()}
	op := logger.NewOperationLogger("income_statement", s.logger.WithFields(logger.Fields{
		"report_id":  result.ID,
		"start":      req.Start,
		"end":        req.End,
		"comparison": req.Mode,
		"source":     result.Source,
	}))
	tracker := s.newTracker(result.ID, op)

	defer func() {
		result.Duration = s.now().Sub(tracker.progress.StartTime)
	}()

	// Step 1: periods
	tracker.update("Validating request", 0)
	current, comparison, err := s.validator.ResolvePeriods(req.periodRequest())
	if err != nil {
		op.Error(err, "Request validation failed")
		return nil, err
	}

	// Step 2: data
	tracker.update("Fetching accounting data", 1)
	ctx, notices := ledger.WithNotices(ctx)
	data, prior, err := s.fetch(ctx, current, comparison)
	if err != nil {
		op.Error(err, "Failed to fetch accounting data")
		return nil, wrapUnexpected(ctx, err)
	}
	result.DemoData = notices.Demo()
	result.Warnings = append(result.Warnings, notices.Messages()...)

	// Step 3: checks
	tracker.update("Validating data", 2)
	warnings, err := s.validate(op, data, prior, req.Strict)
	if err != nil {
		op.Error(err, "Accounting data failed validation")
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)

	// Step 4: statement
	tracker.update("Building statement", 3)
	stmt, err := statement.Build(current, comparison, data, prior, s.now())
	if err != nil {
		op.Error(err, "Failed to build statement")
		return nil, wrapUnexpected(ctx, err)
	}
	result.Statement = stmt

	// Step 5: output
	if !req.SkipRender {
		tracker.update("Rendering report", 4)
		if s.renderer == nil {
			err := apperrors.ConfigurationError(apperrors.CodeMissingConfig, "report.output_dir", nil, nil).
				WithSuggestion("Configure a report output before rendering")
			op.Error(err, "No renderer configured")
			return nil, err
		}
		path, err := s.renderer.SaveStatementSafely(stmt)
		if err != nil {
			op.Error(err, "Failed to render report")
			return nil, wrapUnexpected(ctx, err)
		}
		result.OutputPath = path
	}

	tracker.update("Completed", totalSteps)

	totals := stmt.Totals()
	op.WithField("period", current.String()).
		WithField("net_profit", totals.NetProfit().String()).
		WithField("demo_data", result.DemoData).
		WithField("warnings", len(result.Warnings)).
		WithField("output", result.OutputPath).
		Success("Income statement generated")

	return result, nil
}

// fetch loads the current and comparison datasets concurrently
func (s *Service) fetch(ctx context.Context, current models.PeriodRange, comparison *models.PeriodRange) (statement.SourceData, statement.SourceData, error) {
	var data, prior statement.SourceData

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data, err = s.source.Fetch(gctx, current)
		return err
	})
	if comparison != nil {
		g.Go(func() error {
			var err error
			prior, err = s.source.Fetch(gctx, *comparison)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return data, prior, nil
}

// validate checks required keys and totals of both datasets and returns the
// non-fatal warnings
func (s *Service) validate(op *logger.OperationLogger, data, prior statement.SourceData, strict bool) ([]string, error) {
	var warnings []string

	check := func(label string, d statement.SourceData) error {
		if d == nil {
			return nil
		}
		if err := statement.ValidateSourceData(d); err != nil {
			return err
		}
		err := statement.ValidateTotals(d.Totals())
		if err == nil {
			return nil
		}
		if apperrors.IsWarning(err) && !strict {
			op.Warning(fmt.Sprintf("Calculation sanity check exceeded for %s: %v", label, err))
			warnings = append(warnings, fmt.Sprintf("%s: %v", label, err))
			return nil
		}
		return err
	}

	if err := check("current period", data); err != nil {
		return nil, err
	}
	if err := check("comparison period", prior); err != nil {
		return nil, err
	}
	return warnings, nil
}

// wrapUnexpected keeps categorized errors and wraps the rest as internal
func wrapUnexpected(ctx context.Context, err error) error {
	if _, ok := apperrors.AsDataContaError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return apperrors.InternalError(apperrors.CodeCancelled, "generate_income_statement", err)
	}
	return apperrors.InternalError(apperrors.CodeUnexpectedError, "generate_income_statement", err)
}

type tracker struct {
	service  *Service
	op       *logger.OperationLogger
	progress Progress
}

func (s *Service) newTracker(id string, op *logger.OperationLogger) *tracker {
	return &tracker{
		service: s,
		op:      op,
		progress: Progress{
			ReportID:   id,
			TotalSteps: totalSteps,
			StartTime:  s.now(),
		},
	}
}

func (t *tracker) update(step string, completed int) {
	p := &t.progress
	elapsed := t.service.now().Sub(p.StartTime)

	if completed < p.TotalSteps {
		t.op.Step(step)
	}

	p.CurrentStep = step
	p.CompletedSteps = completed
	p.ElapsedTime = elapsed
	p.PercentComplete = float64(completed) / float64(p.TotalSteps) * 100

	p.EstimatedRemaining = 0
	if completed > 0 && completed < p.TotalSteps {
		avgTimePerStep := elapsed / time.Duration(completed)
		p.EstimatedRemaining = avgTimePerStep * time.Duration(p.TotalSteps-completed)
	}

	t.service.callbacksMu.RLock()
	callbacks := append([]ProgressCallback(nil), t.service.callbacks...)
	t.service.callbacksMu.RUnlock()

	for _, callback := range callbacks {
		callback(*p)
	}
}
