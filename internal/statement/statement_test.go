package statement

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataconta/internal/models"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func dp(v string) *decimal.Decimal {
	x := d(v)
	return &x
}

func sampleTotals() Totals {
	return NewTotals(map[Category]decimal.Decimal{
		Revenue:           d("100"),
		CostOfSales:       d("40"),
		AdminExpenses:     d("10"),
		SalesExpenses:     d("5"),
		OtherIncome:       d("2"),
		OtherExpenses:     d("1"),
		FinancialExpenses: d("3"),
		Taxes:             d("8"),
	})
}

func TestCategories(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 8)
	assert.Equal(t, Revenue, cats[0])
	assert.Equal(t, Taxes, cats[7])

	tests := []struct {
		category Category
		key      string
		title    string
	}{
		{Revenue, "ingresos", "INGRESOS OPERACIONALES"},
		{CostOfSales, "costos", "COSTOS DE VENTAS"},
		{AdminExpenses, "gastos_admin", "GASTOS DE ADMINISTRACIÓN"},
		{SalesExpenses, "gastos_ventas", "GASTOS DE VENTAS"},
		{OtherIncome, "otros_ingresos", "OTROS INGRESOS"},
		{OtherExpenses, "otros_gastos", "OTROS GASTOS"},
		{FinancialExpenses, "gastos_financieros", "GASTOS FINANCIEROS"},
		{Taxes, "impuestos", "IMPUESTOS"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.category.Key())
			assert.Equal(t, tt.title, tt.category.Title())
			c, ok := CategoryFromKey(tt.key)
			assert.True(t, ok)
			assert.Equal(t, tt.category, c)
		})
	}

	_, ok := CategoryFromKey("utilidades")
	assert.False(t, ok)
	assert.Equal(t, "", Category(42).Key())
}

func TestTotals_Cascade(t *testing.T) {
	totals := sampleTotals()

	assert.True(t, totals.GrossProfit().Equal(d("60")))
	assert.True(t, totals.OperatingExpenses().Equal(d("15")))
	assert.True(t, totals.OperatingProfit().Equal(d("45")))
	assert.True(t, totals.PreTaxProfit().Equal(d("43")))
	assert.True(t, totals.NetProfit().Equal(d("35")))

	require.NotNil(t, totals.GrossMargin())
	assert.True(t, totals.GrossMargin().Equal(d("60")))
	assert.True(t, totals.OperatingMargin().Equal(d("45")))
	assert.True(t, totals.PreTaxMargin().Equal(d("43")))
	assert.True(t, totals.NetMargin().Equal(d("35")))

	// gross profit + cost of sales always recovers revenue
	assert.True(t, totals.GrossProfit().Add(totals.Of(CostOfSales)).Equal(totals.Of(Revenue)))
}

func TestTotals_Margins(t *testing.T) {
	tests := []struct {
		name     string
		revenue  string
		cost     string
		expected *decimal.Decimal
	}{
		{"zero revenue", "0", "10", nil},
		{"one third", "3", "2", dp("33.33")},
		{"two thirds", "3", "1", dp("66.67")},
		{"half up", "8", "7", dp("12.5")},
		{"loss", "3", "5", dp("-66.67")},
		{"half away from zero", "200", "200.01", dp("-0.01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := NewTotals(map[Category]decimal.Decimal{Revenue: d(tt.revenue), CostOfSales: d(tt.cost)})
			got := totals.GrossMargin()
			if tt.expected == nil {
				assert.Nil(t, got)
				assert.Nil(t, totals.NetMargin())
				return
			}
			require.NotNil(t, got)
			assert.True(t, got.Equal(*tt.expected), "got %s want %s", got, tt.expected)
		})
	}
}

func TestLineItem_Variance(t *testing.T) {
	tests := []struct {
		name            string
		current         string
		prior           *decimal.Decimal
		variance        *decimal.Decimal
		percentVariance *decimal.Decimal
	}{
		{"growth", "110", dp("100"), dp("10"), dp("10")},
		{"decline", "75", dp("100"), dp("-25"), dp("-25")},
		{"negative prior", "-25", dp("-50"), dp("25"), dp("50")},
		{"zero prior", "10", dp("0"), dp("10"), nil},
		{"no prior", "10", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := LineItem{AccountCode: "4135", Current: d(tt.current), Prior: tt.prior}

			if tt.variance == nil {
				assert.Nil(t, item.Variance())
			} else {
				require.NotNil(t, item.Variance())
				assert.True(t, item.Variance().Equal(*tt.variance))
			}

			if tt.percentVariance == nil {
				assert.Nil(t, item.PercentVariance())
			} else {
				require.NotNil(t, item.PercentVariance())
				assert.True(t, item.PercentVariance().Equal(*tt.percentVariance), "got %s", item.PercentVariance())
			}
		})
	}
}

func TestLineItem_PercentVarianceExact(t *testing.T) {
	item := LineItem{Current: d("45000000"), Prior: dp("40000000")}
	want := d("45000000").Sub(d("40000000")).Mul(d("100")).Div(d("40000000"))
	assert.True(t, item.PercentVariance().Equal(want))
	assert.Equal(t, "12.5", item.PercentVariance().String())
}

func period(start, end string) models.PeriodRange {
	s, _ := models.ParseDate(start)
	e, _ := models.ParseDate(end)
	return CurrentPeriod(s, e)
}

func fullData(items map[string][]SourceItem) SourceData {
	data := EmptySourceData()
	for k, v := range items {
		data[k] = v
	}
	return data
}

func TestBuild(t *testing.T) {
	current := period("2024-03-01", "2024-03-31")
	comparison := PreviousPeriodOf(current)

	data := fullData(map[string][]SourceItem{
		"ingresos": {
			{AccountCode: "4135", Description: "Ventas de servicios", Value: d("45000000")},
			{AccountCode: "4140", Description: "Ventas de productos", Value: d("25000000")},
		},
		"costos": {
			{AccountCode: "6135", Description: "Costo de servicios", Value: d("18000000")},
		},
	})
	prior := fullData(map[string][]SourceItem{
		"ingresos": {
			{AccountCode: "4135", Description: "Ventas", Value: d("30000000")},
			{AccountCode: "4135", Description: "Ventas", Value: d("10000000")},
			{AccountCode: "4155", Description: "Arrendamientos", Value: d("1000000")},
		},
		"gastos_admin": {
			{AccountCode: "6135", Description: "same code, other category", Value: d("5")},
		},
	})

	generated := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	s, err := Build(current, &comparison, data, prior, generated)
	require.NoError(t, err)

	revenue := s.Items(Revenue)
	require.Len(t, revenue, 2)
	require.NotNil(t, revenue[0].Prior)
	assert.True(t, revenue[0].Prior.Equal(d("40000000")), "prior is the sum of same-code items")
	assert.Nil(t, revenue[1].Prior, "4140 has no prior match")

	costs := s.Items(CostOfSales)
	require.Len(t, costs, 1)
	assert.Nil(t, costs[0].Prior, "matching is per category")

	assert.True(t, s.Total(Revenue).Equal(d("70000000")))

	priorTotals := s.PriorTotals()
	require.NotNil(t, priorTotals)
	assert.True(t, priorTotals.Of(Revenue).Equal(d("41000000")))
	assert.True(t, priorTotals.Of(AdminExpenses).Equal(d("5")))

	// Items returns a copy
	revenue[0].Current = d("1")
	assert.True(t, s.Items(Revenue)[0].Current.Equal(d("45000000")))
}

func TestBuild_NoComparison(t *testing.T) {
	current := period("2024-03-01", "2024-03-31")
	data := fullData(map[string][]SourceItem{
		"ingresos": {{AccountCode: "4135", Value: d("100")}},
	})

	s, err := Build(current, nil, data, nil, time.Now())
	require.NoError(t, err)
	assert.False(t, s.HasComparison())
	assert.Nil(t, s.PriorTotals())
	assert.Nil(t, s.Items(Revenue)[0].Prior)
}

func TestBuild_MissingKey(t *testing.T) {
	data := EmptySourceData()
	delete(data, "impuestos")

	_, err := Build(period("2024-03-01", "2024-03-31"), nil, data, nil, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "impuestos")
}

func TestIncomeStatement_MarshalJSON(t *testing.T) {
	current := period("2024-01-01", "2024-01-31")
	s := NewIncomeStatement(current, nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	totals := sampleTotals()
	for _, c := range Categories() {
		s.Add(c, LineItem{AccountCode: "x", Description: c.Title(), Current: totals.Of(c)})
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var out struct {
		Current  map[string]string `json:"current_period"`
		Sections []struct {
			Key   string `json:"key"`
			Total string `json:"total"`
			Items []struct {
				Current string  `json:"current_value"`
				Prior   *string `json:"prior_value"`
			} `json:"items"`
		} `json:"sections"`
		Totals      map[string]*string `json:"totals"`
		PriorTotals *json.RawMessage   `json:"prior_totals"`
	}
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "2024-01-01", out.Current["start_date"])
	require.Len(t, out.Sections, 8)
	assert.Equal(t, "ingresos", out.Sections[0].Key)
	assert.Equal(t, "100", out.Sections[0].Total)
	assert.Nil(t, out.Sections[0].Items[0].Prior)
	assert.Equal(t, "35", *out.Totals["utilidad_neta"])
	assert.Equal(t, "60", *out.Totals["margen_bruto"])
	assert.Nil(t, out.PriorTotals)
}
