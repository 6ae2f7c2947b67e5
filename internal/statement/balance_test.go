package statement

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataconta/internal/models"
)

func TestBuildBalanceSheet(t *testing.T) {
	tb := models.TrialBalance{
		Date: models.NewDate(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)),
		Accounts: []models.TrialBalanceAccount{
			{Code: "11", Name: "Disponible", FinalBalance: d("1500")},
			{Code: "1105", Name: "Caja", FinalBalance: d("500")},
			{Code: "1110", Name: "Bancos", FinalBalance: d("1000")},
			{Code: "1305", Name: "Clientes", FinalBalance: d("700")},
			{Code: "2205", Name: "Proveedores", FinalBalance: d("400")},
			{Code: "3105", Name: "Capital", FinalBalance: d("1000")},
			{Code: "4135", Name: "Ventas", FinalBalance: d("2000")},
			{Code: "5105", Name: "Personal", FinalBalance: d("600")},
			{Code: "6135", Name: "Costo", FinalBalance: d("600")},
		},
	}

	b := BuildBalanceSheet(tb)

	assert.True(t, b.Assets.Total.Equal(d("2200")), "aggregate row 11 must not be double counted")
	assert.Len(t, b.Assets.Accounts, 3)
	assert.True(t, b.Liabilities.Total.Equal(d("400")))
	assert.True(t, b.Equity.Total.Equal(d("1000")))
	assert.True(t, b.PeriodResult.Equal(d("800")))
	assert.True(t, b.Balanced())
	assert.True(t, b.Difference().IsZero())

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "2024-12-31", out["date"])
	assert.Equal(t, true, out["cuadrado"])
	assert.Equal(t, "800", out["resultado_periodo"])
}

func TestBuildBalanceSheet_Unbalanced(t *testing.T) {
	b := BuildBalanceSheet(models.TrialBalance{
		Accounts: []models.TrialBalanceAccount{
			{Code: "1105", FinalBalance: d("100")},
			{Code: "2205", FinalBalance: d("90")},
		},
	})

	assert.False(t, b.Balanced())
	assert.True(t, b.Difference().Equal(d("10")))
}

func splitTrialBalance() models.TrialBalance {
	return models.TrialBalance{
		Date: models.NewDate(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)),
		Accounts: []models.TrialBalanceAccount{
			{Code: "1105", Name: "Caja", FinalBalance: d("300")},
			{Code: "1305", Name: "Clientes", FinalBalance: d("700")},
			{Code: "1524", Name: "Equipo de oficina", FinalBalance: d("1000")},
			{Code: "2205", Name: "Proveedores", FinalBalance: d("400")},
			{Code: "2505", Name: "Salarios por pagar largo plazo", FinalBalance: d("600")},
			{Code: "3105", Name: "Capital", FinalBalance: d("800")},
			{Code: "4135", Name: "Ventas", FinalBalance: d("500")},
			{Code: "5105", Name: "Personal", FinalBalance: d("300")},
		},
	}
}

func TestBuildBalanceSheet_CurrentSplit(t *testing.T) {
	b := BuildBalanceSheet(splitTrialBalance())

	tests := []struct {
		name       string
		section    BalanceSection
		current    string
		nonCurrent string
		total      string
	}{
		{"assets", b.Assets, "1000", "1000", "2000"},
		{"liabilities", b.Liabilities, "400", "600", "1000"},
		{"equity", b.Equity, "0", "0", "800"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.section.Current.Equal(d(tt.current)), "current %s", tt.section.Current)
			assert.True(t, tt.section.NonCurrent.Equal(d(tt.nonCurrent)), "non-current %s", tt.section.NonCurrent)
			assert.True(t, tt.section.Total.Equal(d(tt.total)), "total %s", tt.section.Total)
		})
	}

	assert.True(t, b.TotalEquity().Equal(d("1000")))
	assert.True(t, b.Balanced())
	assert.True(t, b.CurrentRatio().Equal(d("2.5")))
	assert.True(t, b.DebtRatio().Equal(d("0.5")))

	data, err := json.Marshal(b)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "2.5", out["ratio_liquidez"])
	assert.Equal(t, "0.5", out["ratio_endeudamiento"])
	assert.Equal(t, "1000", out["activo"].(map[string]interface{})["corriente"])
	assert.NotContains(t, out["patrimonio"], "corriente")
}

func TestBalanceSheet_Balanced_Tolerance(t *testing.T) {
	tests := []struct {
		name     string
		assets   string
		balanced bool
	}{
		{"exact", "1000", true},
		{"one cent over", "1000.01", true},
		{"one cent under", "999.99", true},
		{"sub-cent rounding", "1000.004", true},
		{"two cents over", "1000.02", false},
		{"two cents under", "999.98", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &BalanceSheet{
				Assets:       BalanceSection{Total: d(tt.assets)},
				Liabilities:  BalanceSection{Total: d("400")},
				Equity:       BalanceSection{Total: d("500")},
				PeriodResult: d("100"),
			}
			assert.Equal(t, tt.balanced, b.Balanced(), "difference %s", b.Difference())
		})
	}
}

func TestBalanceSheet_Ratios(t *testing.T) {
	tests := []struct {
		name               string
		currentAssets      string
		totalAssets        string
		currentLiabilities string
		totalLiabilities   string
		currentRatio       string
		debtRatio          string
	}{
		{"healthy", "1000", "2000", "400", "1000", "2.5", "0.5"},
		{"no current liabilities", "1000", "2000", "0", "600", "0", "0.3"},
		{"no assets", "0", "0", "100", "100", "0", "0"},
		{"repeating decimals", "100", "300", "300", "100", "0.3333", "0.3333"},
		{"over-leveraged", "50", "100", "100", "150", "0.5", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &BalanceSheet{
				Assets:      BalanceSection{Current: d(tt.currentAssets), Total: d(tt.totalAssets)},
				Liabilities: BalanceSection{Current: d(tt.currentLiabilities), Total: d(tt.totalLiabilities)},
			}
			assert.True(t, b.CurrentRatio().Equal(d(tt.currentRatio)), "current ratio %s", b.CurrentRatio())
			assert.True(t, b.DebtRatio().Equal(d(tt.debtRatio)), "debt ratio %s", b.DebtRatio())
		})
	}
}

func statementWithNetProfit(net string) *IncomeStatement {
	period := models.NewPeriodRange(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), "")
	s := NewIncomeStatement(period, nil, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	s.Add(Revenue, LineItem{AccountCode: "4135", Description: "Ventas", Current: d("1000")})
	s.Add(AdminExpenses, LineItem{AccountCode: "5105", Description: "Personal", Current: d("1000").Sub(d(net))})
	return s
}

func TestFinancialSummary(t *testing.T) {
	tests := []struct {
		name      string
		netProfit string
		coherent  bool
		roa       string
		roe       string
	}{
		{"matching result", "200", true, "10", "20"},
		{"within a cent", "199.995", true, "10", "20"},
		{"one cent off", "199.99", true, "10", "20"},
		{"off by more than a cent", "150", false, "7.5", "15"},
		{"loss", "-100", false, "-5", "-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFinancialSummary(statementWithNetProfit(tt.netProfit), BuildBalanceSheet(splitTrialBalance()))

			assert.True(t, f.NetProfit().Equal(d(tt.netProfit)))
			assert.Equal(t, tt.coherent, f.Coherent(), "difference %s", f.ResultDifference())
			assert.True(t, f.ROA().Equal(d(tt.roa)), "roa %s", f.ROA())
			assert.True(t, f.ROE().Equal(d(tt.roe)), "roe %s", f.ROE())
		})
	}
}

func TestFinancialSummary_ZeroDenominators(t *testing.T) {
	f := NewFinancialSummary(statementWithNetProfit("200"), BuildBalanceSheet(models.TrialBalance{}))

	assert.True(t, f.ROA().IsZero())
	assert.True(t, f.ROE().IsZero())
	assert.False(t, f.Coherent())

	data, err := json.Marshal(f)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "200", out["utilidad_neta"])
	assert.Equal(t, "20", out["margen_neto"])
	assert.Equal(t, false, out["coherente"])
	assert.Equal(t, "-200", out["diferencia_resultado"])
}
