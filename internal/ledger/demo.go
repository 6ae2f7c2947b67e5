package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"dataconta/internal/models"
	"dataconta/internal/statement"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

type demoLine struct {
	category    statement.Category
	code        string
	description string
	value       int64
}

// Placeholder figures for demonstrations. They do not depend on the period.
var demoLines = []demoLine{
	{statement.Revenue, "4135", "Ventas de servicios", 45000000},
	{statement.Revenue, "4140", "Ventas de productos", 25000000},
	{statement.CostOfSales, "6135", "Costo de servicios", 18000000},
	{statement.CostOfSales, "6140", "Costo de productos", 12000000},
	{statement.AdminExpenses, "5105", "Gastos de personal administrativo", 8000000},
	{statement.AdminExpenses, "5115", "Servicios públicos", 1500000},
	{statement.SalesExpenses, "5205", "Gastos de personal de ventas", 4000000},
	{statement.SalesExpenses, "5210", "Publicidad y marketing", 2000000},
	{statement.OtherIncome, "4295", "Ingresos por intereses", 500000},
	{statement.OtherExpenses, "5295", "Gastos varios", 300000},
	{statement.FinancialExpenses, "5305", "Intereses sobre préstamos", 800000},
	{statement.Taxes, "5405", "Impuesto de renta", 2400000},
}

// DemoSource serves a fixed dataset. It is meant for demonstrations only.
type DemoSource struct{}

func (DemoSource) Name() string { return "demo" }

// Fetch returns the demo dataset for any period
func (DemoSource) Fetch(_ context.Context, _ models.PeriodRange) (statement.SourceData, error) {
	data := statement.EmptySourceData()
	for _, l := range demoLines {
		key := l.category.Key()
		data[key] = append(data[key], statement.SourceItem{
			AccountCode: l.code,
			Description: l.description,
			Value:       decimal.NewFromInt(l.value),
		})
	}
	return data, nil
}

// FallbackSource serves demo data when the primary source fails with a
// data-source error. Other failures are returned unchanged.
type FallbackSource struct {
	Primary Source
	Demo    Source
	logger  logger.Logger
}

// NewFallbackSource wraps primary with the built-in demo dataset
func NewFallbackSource(primary Source) *FallbackSource {
	return &FallbackSource{
		Primary: primary,
		Demo:    DemoSource{},
		logger:  logger.GetGlobalLogger().WithComponent("fallback_source"),
	}
}

func (f *FallbackSource) Name() string { return f.Primary.Name() }

func (f *FallbackSource) Fetch(ctx context.Context, period models.PeriodRange) (statement.SourceData, error) {
	data, err := f.Primary.Fetch(ctx, period)
	if err == nil || !apperrors.IsCategory(err, apperrors.CategoryDataSource) {
		return data, err
	}

	log := f.logger
	if log == nil {
		log = logger.GetGlobalLogger().WithComponent("fallback_source")
	}
	log.WithError(err).WithFields(logger.Fields{
		"source": f.Primary.Name(),
		"period": period.String(),
	}).Warn("Primary source failed, serving demo data")

	demo := f.Demo
	if demo == nil {
		demo = DemoSource{}
	}
	data, demoErr := demo.Fetch(ctx, period)
	if demoErr != nil {
		return nil, err
	}

	notify(ctx, true, fmt.Sprintf("period %s uses demo data because %s failed: %v", period.Label(), f.Primary.Name(), err))
	return data, nil
}
