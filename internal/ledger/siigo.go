package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"dataconta/internal/models"
	"dataconta/internal/puc"
	"dataconta/internal/statement"
	"dataconta/pkg/logger"
)

// Accounts the Siigo documents post to when they carry no account of their own
const (
	SalesAccount        = "4135"
	SalesReturnsAccount = "4175"
	VATPayableAccount   = "2408"
	CostOfSalesAccount  = "6135"
)

// SiigoAPI is the subset of the Siigo client the source needs
type SiigoAPI interface {
	Invoices(ctx context.Context, start, end time.Time) ([]models.Invoice, error)
	CreditNotes(ctx context.Context, start, end time.Time) ([]models.CreditNote, error)
	Purchases(ctx context.Context, start, end time.Time) ([]models.Purchase, error)
	JournalEntries(ctx context.Context, start, end time.Time) ([]models.JournalEntry, error)
}

// SiigoSource categorizes Siigo documents by PUC account
type SiigoSource struct {
	api    SiigoAPI
	chart  *puc.Chart
	logger logger.Logger
}

// NewSiigoSource creates a source over api. A nil chart uses the built-in PUC table.
func NewSiigoSource(api SiigoAPI, chart *puc.Chart) *SiigoSource {
	if chart == nil {
		chart = puc.DefaultChart()
	}
	return &SiigoSource{
		api:    api,
		chart:  chart,
		logger: logger.GetGlobalLogger().WithComponent("siigo_source"),
	}
}

func (s *SiigoSource) Name() string { return "siigo" }

// Fetch downloads the four document types of the period concurrently and
// aggregates them by account code
func (s *SiigoSource) Fetch(ctx context.Context, period models.PeriodRange) (statement.SourceData, error) {
	var (
		invoices    []models.Invoice
		creditNotes []models.CreditNote
		purchases   []models.Purchase
		journals    []models.JournalEntry
	)
	start, end := period.Start(), period.End()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		invoices, err = s.api.Invoices(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		creditNotes, err = s.api.CreditNotes(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		purchases, err = s.api.Purchases(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		journals, err = s.api.JournalEntries(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := newAggregator(s.chart)
	skipped := 0

	for _, inv := range invoices {
		if !inPeriod(period, inv.Date) {
			skipped++
			continue
		}
		agg.add(statement.Revenue.Key(), SalesAccount, "", inv.Subtotal())
		for _, tax := range inv.AllTaxes() {
			agg.add(statement.Taxes.Key(), VATPayableAccount, "IVA - "+tax.Name, tax.Value)
		}
	}

	for _, note := range creditNotes {
		if !inPeriod(period, note.Date) {
			skipped++
			continue
		}
		agg.add(statement.Revenue.Key(), SalesReturnsAccount, "", note.Total.Neg())
	}

	for _, p := range purchases {
		if !inPeriod(period, p.Date) {
			skipped++
			continue
		}
		for _, item := range p.Items {
			code := item.AccountCode()
			category, ok := s.chart.Classify(code)
			if !ok {
				code = CostOfSalesAccount
				category = statement.CostOfSales.Key()
			}
			agg.add(category, code, "", item.Value())
		}
	}

	for _, entry := range journals {
		if !inPeriod(period, entry.Date) {
			skipped++
			continue
		}
		for _, item := range entry.Items {
			category, ok := s.chart.Classify(item.Account.Code)
			if !ok {
				continue
			}
			agg.add(category, item.Account.Code, "", journalValue(item))
		}
	}

	s.logger.WithFields(logger.Fields{
		"period":       period.String(),
		"invoices":     len(invoices),
		"credit_notes": len(creditNotes),
		"purchases":    len(purchases),
		"journals":     len(journals),
		"skipped":      skipped,
	}).Info("Fetched Siigo documents")

	return agg.data(), nil
}

// journalValue signs a journal line so that it adds to its category total:
// credits increase income accounts, debits increase expense and cost accounts.
func journalValue(item models.JournalItem) decimal.Decimal {
	if puc.ClassOf(item.Account.Code) == puc.ClassIncome {
		if item.IsDebit() {
			return item.Value.Neg()
		}
		return item.Value
	}
	if item.IsDebit() {
		return item.Value
	}
	return item.Value.Neg()
}

func inPeriod(period models.PeriodRange, d models.Date) bool {
	return d.IsZero() || period.Contains(d.Time)
}
