package puc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dataconta/pkg/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code     string
		expected string
		ok       bool
	}{
		{"4135", "ingresos", true},
		{"413505", "ingresos", true},
		{"4210", "ingresos", true},
		{"4295", "otros_ingresos", true},
		{"429905", "otros_ingresos", true},
		{"6135", "costos", true},
		{"6205", "costos", true},
		{"5105", "gastos_admin", true},
		{"5205", "gastos_ventas", true},
		{"5295", "otros_gastos", true},
		{"5299", "otros_gastos", true},
		{"5305", "gastos_financieros", true},
		{"5405", "impuestos", true},
		{"1105", "", false},
		{"2408", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := Classify(tt.code)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		code     string
		expected AccountClass
	}{
		{"1105", ClassAsset},
		{"2408", ClassLiability},
		{"3105", ClassEquity},
		{"4135", ClassIncome},
		{"5105", ClassExpense},
		{"6135", ClassCostOfSales},
		{"7105", ClassProductionCost},
		{"8105", ClassMemorandum},
		{"9105", ClassMemorandum},
		{"0105", ClassUnknown},
		{"", ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassOf(tt.code))
		})
	}

	assert.True(t, ClassIncome.IsResult())
	assert.False(t, ClassEquity.IsResult())
	assert.Equal(t, "pasivo", ClassLiability.String())
}

func TestIsCurrent(t *testing.T) {
	tests := []struct {
		code     string
		expected bool
	}{
		{"1105", true},
		{"1205", true},
		{"1305", true},
		{"1435", false},
		{"1524", false},
		{"2105", true},
		{"2205", true},
		{"2365", false},
		{"2505", false},
		{"3105", false},
		{"1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsCurrent(tt.code))
		})
	}
}

func TestCheckCompliance(t *testing.T) {
	tests := []struct {
		code        string
		expectError bool
	}{
		{"4135", false},
		{"41", false},
		{"4", true},
		{"", true},
		{"41A5", true},
		{"0135", true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := CheckCompliance(tt.code)
			if !tt.expectError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNormative))
		})
	}
}

func TestAccountName(t *testing.T) {
	name, ok := AccountName("413505")
	assert.True(t, ok)
	assert.Equal(t, "Comercio al por mayor y al por menor", name)

	name, ok = AccountName("2408")
	assert.True(t, ok)
	assert.Equal(t, "IVA por pagar", name)

	_, ok = AccountName("41")
	assert.False(t, ok)
}

func TestLoadChart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chart.yaml")
	content := `categories:
  otros_ingresos: ["4210", "4295"]
accounts:
  "4135": Venta de software
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	chart, err := LoadChart(path)
	require.NoError(t, err)

	category, ok := chart.Classify("4210")
	assert.True(t, ok)
	assert.Equal(t, "otros_ingresos", category)

	// 4299 was dropped from otros_ingresos by the override
	category, _ = chart.Classify("4299")
	assert.Equal(t, "ingresos", category)

	name, _ := chart.AccountName("4135")
	assert.Equal(t, "Venta de software", name)
	name, _ = chart.AccountName("2408")
	assert.Equal(t, "IVA por pagar", name)
}

func TestLoadChartErrors(t *testing.T) {
	_, err := LoadChart(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryFile))

	tests := []struct {
		name     string
		content  string
		category apperrors.ErrorCategory
	}{
		{"bad yaml", "categories: [", apperrors.CategoryConfiguration},
		{"unknown category", "categories:\n  utilidades: [\"36\"]\n", apperrors.CategoryConfiguration},
		{"bad prefix", "categories:\n  ingresos: [\"4X\"]\n", apperrors.CategoryNormative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChart([]byte(tt.content), "inline")
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, tt.category), "got %v", err)
		})
	}
}
