// Package statement computes the Colombian Estado de Resultados (income
// statement) from categorized line items, optionally against a comparison
// period.
package statement

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"dataconta/internal/models"
)

// Category is one of the eight ordered sections of the income statement
type Category int

const (
	Revenue Category = iota
	CostOfSales
	AdminExpenses
	SalesExpenses
	OtherIncome
	OtherExpenses
	FinancialExpenses
	Taxes

	numCategories = int(Taxes) + 1
)

var categoryKeys = [numCategories]string{
	"ingresos",
	"costos",
	"gastos_admin",
	"gastos_ventas",
	"otros_ingresos",
	"otros_gastos",
	"gastos_financieros",
	"impuestos",
}

var categoryTitles = [numCategories]string{
	"INGRESOS OPERACIONALES",
	"COSTOS DE VENTAS",
	"GASTOS DE ADMINISTRACIÓN",
	"GASTOS DE VENTAS",
	"OTROS INGRESOS",
	"OTROS GASTOS",
	"GASTOS FINANCIEROS",
	"IMPUESTOS",
}

// Categories returns all categories in statement order
func Categories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// Key returns the source-data key of the category
func (c Category) Key() string {
	if !c.valid() {
		return ""
	}
	return categoryKeys[c]
}

// Title returns the Spanish section title
func (c Category) Title() string {
	if !c.valid() {
		return ""
	}
	return categoryTitles[c]
}

func (c Category) String() string {
	return c.Key()
}

func (c Category) valid() bool {
	return c >= 0 && int(c) < numCategories
}

// CategoryFromKey resolves a source-data key
func CategoryFromKey(key string) (Category, bool) {
	for i, k := range categoryKeys {
		if k == key {
			return Category(i), true
		}
	}
	return 0, false
}

// RequiredKeys lists the keys every source dataset must carry
func RequiredKeys() []string {
	return append([]string(nil), categoryKeys[:]...)
}

// LineItem is a single account line of the statement
type LineItem struct {
	AccountCode string
	Description string
	Current     decimal.Decimal
	Prior       *decimal.Decimal
}

// Variance returns current − prior, or nil without a prior value
func (li LineItem) Variance() *decimal.Decimal {
	return variance(li.Current, li.Prior)
}

// PercentVariance returns (current − prior) / |prior| × 100, or nil when
// prior is absent or zero
func (li LineItem) PercentVariance() *decimal.Decimal {
	return percentVariance(li.Current, li.Prior)
}

func variance(current decimal.Decimal, prior *decimal.Decimal) *decimal.Decimal {
	if prior == nil {
		return nil
	}
	v := current.Sub(*prior)
	return &v
}

func percentVariance(current decimal.Decimal, prior *decimal.Decimal) *decimal.Decimal {
	if prior == nil || prior.IsZero() {
		return nil
	}
	v := current.Sub(*prior).Mul(hundred).Div(prior.Abs())
	return &v
}

var hundred = decimal.NewFromInt(100)

// MarshalJSON writes amounts as decimal strings
func (li LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AccountCode     string  `json:"account_code"`
		Description     string  `json:"description"`
		Current         string  `json:"current_value"`
		Prior           *string `json:"prior_value"`
		Variance        *string `json:"variance"`
		PercentVariance *string `json:"percent_variance"`
	}{
		AccountCode:     li.AccountCode,
		Description:     li.Description,
		Current:         li.Current.String(),
		Prior:           decimalString(li.Prior),
		Variance:        decimalString(li.Variance()),
		PercentVariance: roundedString(li.PercentVariance(), 2),
	})
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func roundedString(d *decimal.Decimal, places int32) *string {
	if d == nil {
		return nil
	}
	s := d.Round(places).String()
	return &s
}

// IncomeStatement owns the ordered line items of every category
type IncomeStatement struct {
	Current     models.PeriodRange
	Comparison  *models.PeriodRange
	GeneratedAt time.Time

	items       [numCategories][]LineItem
	priorTotals *Totals
}

// NewIncomeStatement creates an empty statement for the given periods
func NewIncomeStatement(current models.PeriodRange, comparison *models.PeriodRange, generatedAt time.Time) *IncomeStatement {
	return &IncomeStatement{
		Current:     current,
		Comparison:  comparison,
		GeneratedAt: generatedAt,
	}
}

// Add appends an item to a category
func (s *IncomeStatement) Add(c Category, item LineItem) {
	if !c.valid() {
		return
	}
	s.items[c] = append(s.items[c], item)
}

// Items returns a copy of the items of a category
func (s *IncomeStatement) Items(c Category) []LineItem {
	if !c.valid() {
		return nil
	}
	return append([]LineItem(nil), s.items[c]...)
}

// Total sums the current value of a category
func (s *IncomeStatement) Total(c Category) decimal.Decimal {
	total := decimal.Zero
	if !c.valid() {
		return total
	}
	for _, item := range s.items[c] {
		total = total.Add(item.Current)
	}
	return total
}

// Totals returns the current-period aggregates
func (s *IncomeStatement) Totals() Totals {
	var t Totals
	for _, c := range Categories() {
		t.values[c] = s.Total(c)
	}
	return t
}

// PriorTotals returns the comparison-period aggregates, or nil without a comparison
func (s *IncomeStatement) PriorTotals() *Totals {
	if s.priorTotals == nil {
		return nil
	}
	t := *s.priorTotals
	return &t
}

// HasComparison reports whether the statement carries a comparison period
func (s *IncomeStatement) HasComparison() bool {
	return s.Comparison != nil
}

type sectionJSON struct {
	Key        string     `json:"key"`
	Title      string     `json:"title"`
	Items      []LineItem `json:"items"`
	Total      string     `json:"total"`
	PriorTotal *string    `json:"prior_total"`
}

// MarshalJSON writes the statement with decimals as strings
func (s *IncomeStatement) MarshalJSON() ([]byte, error) {
	prior := s.PriorTotals()
	sections := make([]sectionJSON, 0, numCategories)
	for _, c := range Categories() {
		items := s.Items(c)
		if items == nil {
			items = []LineItem{}
		}
		sec := sectionJSON{
			Key:   c.Key(),
			Title: c.Title(),
			Items: items,
			Total: s.Total(c).String(),
		}
		if prior != nil {
			v := prior.Of(c)
			sec.PriorTotal = decimalString(&v)
		}
		sections = append(sections, sec)
	}

	return json.Marshal(struct {
		Current     models.PeriodRange  `json:"current_period"`
		Comparison  *models.PeriodRange `json:"comparison_period"`
		GeneratedAt string              `json:"generated_at"`
		Sections    []sectionJSON       `json:"sections"`
		Totals      Totals              `json:"totals"`
		PriorTotals *Totals             `json:"prior_totals"`
	}{
		Current:     s.Current,
		Comparison:  s.Comparison,
		GeneratedAt: s.GeneratedAt.Format(time.RFC3339),
		Sections:    sections,
		Totals:      s.Totals(),
		PriorTotals: prior,
	})
}
