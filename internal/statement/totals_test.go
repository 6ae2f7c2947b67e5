package statement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"dataconta/internal/puc"
)

func TestTotals_ProfitCascade(t *testing.T) {
	tests := []struct {
		name   string
		values map[Category]decimal.Decimal
		gross  string
		net    string
	}{
		{"sample", map[Category]decimal.Decimal{
			Revenue: d("100"), CostOfSales: d("40"), AdminExpenses: d("10"), SalesExpenses: d("5"),
			OtherIncome: d("2"), OtherExpenses: d("1"), FinancialExpenses: d("3"), Taxes: d("8"),
		}, "60", "35"},
		{"empty", nil, "0", "0"},
		{"revenue only", map[Category]decimal.Decimal{Revenue: d("1000")}, "1000", "1000"},
		{"cost above revenue", map[Category]decimal.Decimal{Revenue: d("100"), CostOfSales: d("150.50")}, "-50.5", "-50.5"},
		{"cost only", map[Category]decimal.Decimal{CostOfSales: d("20"), Taxes: d("1")}, "-20", "-21"},
		{"fractional amounts", map[Category]decimal.Decimal{
			Revenue: d("1234567.89"), CostOfSales: d("234567.88"), AdminExpenses: d("0.01"),
			OtherIncome: d("10"), FinancialExpenses: d("9.99"), Taxes: d("100000"),
		}, "1000000.01", "900000.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := NewTotals(tt.values)

			assert.True(t, totals.GrossProfit().Add(totals.Of(CostOfSales)).Equal(totals.Of(Revenue)),
				"gross profit + cost of sales == revenue")
			assert.True(t, totals.OperatingProfit().Add(totals.OperatingExpenses()).Equal(totals.GrossProfit()))
			assert.True(t, totals.NetProfit().Add(totals.Of(Taxes)).Equal(totals.PreTaxProfit()))

			assert.True(t, totals.GrossProfit().Equal(d(tt.gross)), "gross %s", totals.GrossProfit())
			assert.True(t, totals.NetProfit().Equal(d(tt.net)), "net %s", totals.NetProfit())
		})
	}
}

func TestRequiredKeys_MatchChartCategories(t *testing.T) {
	assert.ElementsMatch(t, RequiredKeys(), puc.Categories())
}
