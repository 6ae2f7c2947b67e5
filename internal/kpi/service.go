package kpi

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"dataconta/internal/models"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=kpi

// InvoiceSource lists the sales invoices of a date range
type InvoiceSource interface {
	Invoices(ctx context.Context, start, end time.Time) ([]models.Invoice, error)
}

// Service computes indicators, caching them per period
type Service struct {
	source InvoiceSource
	cache  *Cache
	group  singleflight.Group
	now    func() time.Time
	logger logger.Logger
}

// NewService creates a service over source. cache may be nil.
func NewService(source InvoiceSource, cache *Cache) *Service {
	return &Service{
		source: source,
		cache:  cache,
		now:    time.Now,
		logger: logger.GetGlobalLogger().WithComponent("kpi"),
	}
}

// SalesKPIs returns the indicators of period. Concurrent calls for the same
// period share one computation.
func (s *Service) SalesKPIs(ctx context.Context, period models.PeriodRange) (*SalesKPIs, error) {
	key, err := s.cache.BuildKey(ctx, "dataconta", "kpi", "sales",
		period.Start().Format(models.DateLayout), period.End().Format(models.DateLayout))
	if err != nil {
		s.logger.WithError(err).Warn("KPI cache unavailable, computing without it")
		return s.compute(ctx, period)
	}

	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		var out SalesKPIs
		hit, err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
			return s.compute(ctx, period)
		})
		if err != nil {
			return nil, err
		}
		s.logger.WithFields(logger.Fields{"key": key, "cache_hit": hit}).Debug("Resolved sales KPIs")
		return &out, nil
	})

	select {
	case <-ctx.Done():
		return nil, apperrors.InternalError(apperrors.CodeCancelled, "sales KPIs", ctx.Err())
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*SalesKPIs), nil
	}
}

func (s *Service) compute(ctx context.Context, period models.PeriodRange) (*SalesKPIs, error) {
	invoices, err := s.source.Invoices(ctx, period.Start(), period.End())
	if err != nil {
		return nil, err
	}

	k := Calculate(invoices, period)
	k.CalculatedAt = s.now().UTC()

	s.logger.WithFields(logger.Fields{
		"period":   period.String(),
		"invoices": k.InvoiceCount,
		"clients":  k.ActiveClients,
		"status":   k.Status,
	}).Info("Calculated sales KPIs")
	return k, nil
}

// Invalidate drops every cached indicator set
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
