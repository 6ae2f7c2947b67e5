package statement

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Totals holds the category totals of one period and derives the
// cascading profit lines and margins from them
type Totals struct {
	values [numCategories]decimal.Decimal
}

// NewTotals builds Totals from per-category amounts; missing categories are zero
func NewTotals(values map[Category]decimal.Decimal) Totals {
	var t Totals
	for c, v := range values {
		if c.valid() {
			t.values[c] = v
		}
	}
	return t
}

// Of returns the total of a category
func (t Totals) Of(c Category) decimal.Decimal {
	if !c.valid() {
		return decimal.Zero
	}
	return t.values[c]
}

// GrossProfit = revenue − cost of sales
func (t Totals) GrossProfit() decimal.Decimal {
	return t.Of(Revenue).Sub(t.Of(CostOfSales))
}

// OperatingExpenses = admin + sales expenses
func (t Totals) OperatingExpenses() decimal.Decimal {
	return t.Of(AdminExpenses).Add(t.Of(SalesExpenses))
}

// OperatingProfit = gross profit − operating expenses
func (t Totals) OperatingProfit() decimal.Decimal {
	return t.GrossProfit().Sub(t.OperatingExpenses())
}

// PreTaxProfit = operating profit + other income − other expenses − financial expenses
func (t Totals) PreTaxProfit() decimal.Decimal {
	return t.OperatingProfit().
		Add(t.Of(OtherIncome)).
		Sub(t.Of(OtherExpenses)).
		Sub(t.Of(FinancialExpenses))
}

// NetProfit = pre-tax profit − taxes
func (t Totals) NetProfit() decimal.Decimal {
	return t.PreTaxProfit().Sub(t.Of(Taxes))
}

// GrossMargin returns gross profit as a percentage of revenue
func (t Totals) GrossMargin() *decimal.Decimal { return t.margin(t.GrossProfit()) }

// OperatingMargin returns operating profit as a percentage of revenue
func (t Totals) OperatingMargin() *decimal.Decimal { return t.margin(t.OperatingProfit()) }

// PreTaxMargin returns pre-tax profit as a percentage of revenue
func (t Totals) PreTaxMargin() *decimal.Decimal { return t.margin(t.PreTaxProfit()) }

// NetMargin returns net profit as a percentage of revenue
func (t Totals) NetMargin() *decimal.Decimal { return t.margin(t.NetProfit()) }

// margin is nil on zero revenue and rounded half away from zero to two places
func (t Totals) margin(profit decimal.Decimal) *decimal.Decimal {
	revenue := t.Of(Revenue)
	if revenue.IsZero() {
		return nil
	}
	m := profit.Mul(hundred).DivRound(revenue, 2)
	return &m
}

// MarshalJSON writes every total, profit line and margin as decimal strings
func (t Totals) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, numCategories+9)
	for _, c := range Categories() {
		out[c.Key()] = t.Of(c).String()
	}
	out["utilidad_bruta"] = t.GrossProfit().String()
	out["gastos_operacionales"] = t.OperatingExpenses().String()
	out["utilidad_operacional"] = t.OperatingProfit().String()
	out["utilidad_antes_impuestos"] = t.PreTaxProfit().String()
	out["utilidad_neta"] = t.NetProfit().String()
	out["margen_bruto"] = decimalString(t.GrossMargin())
	out["margen_operacional"] = decimalString(t.OperatingMargin())
	out["margen_antes_impuestos"] = decimalString(t.PreTaxMargin())
	out["margen_neto"] = decimalString(t.NetMargin())
	return json.Marshal(out)
}
