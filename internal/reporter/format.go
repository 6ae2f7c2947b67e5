package reporter

import (
	"github.com/shopspring/decimal"

	"dataconta/internal/statement"
)

// currency formats d rounded to whole pesos with locale grouping,
// e.g. $1.234.567 or -$1.234.567
func (rg *ReportGenerator) currency(d decimal.Decimal) string {
	v := d.Round(0).IntPart()
	if v < 0 {
		return "-$" + rg.printer.Sprintf("%d", -v)
	}
	return "$" + rg.printer.Sprintf("%d", v)
}

func (rg *ReportGenerator) optionalCurrency(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return rg.currency(*d)
}

// percent formats a variance with one decimal. nil renders empty.
func percent(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(1) + "%"
}

func marginPercent(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2) + "%"
}

type rowKind int

const (
	rowSection rowKind = iota
	rowItem
	rowTotal
	rowProfit
	rowNet
	rowMargin
	rowBlank
)

// row is one line of the rendered statement, shared by every format
type row struct {
	kind    rowKind
	label   string
	code    string
	current decimal.Decimal
	prior   *decimal.Decimal
	margin  *decimal.Decimal
}

func (r row) variance() *decimal.Decimal {
	return statement.LineItem{Current: r.current, Prior: r.prior}.Variance()
}

func (r row) percentVariance() *decimal.Decimal {
	return statement.LineItem{Current: r.current, Prior: r.prior}.PercentVariance()
}

func (r row) hasAmounts() bool {
	switch r.kind {
	case rowItem, rowTotal, rowProfit, rowNet:
		return true
	default:
		return false
	}
}

// layoutStatement orders sections, subtotals, profit lines and margins in
// the Colombian presentation
func layoutStatement(s *statement.IncomeStatement) []row {
	cur := s.Totals()
	prior := s.PriorTotals()

	priorOf := func(f func(statement.Totals) decimal.Decimal) *decimal.Decimal {
		if prior == nil {
			return nil
		}
		v := f(*prior)
		return &v
	}
	categoryTotal := func(c statement.Category) func(statement.Totals) decimal.Decimal {
		return func(t statement.Totals) decimal.Decimal { return t.Of(c) }
	}

	var rows []row
	section := func(c statement.Category) {
		rows = append(rows, row{kind: rowSection, label: c.Title()})
		for _, item := range s.Items(c) {
			rows = append(rows, row{
				kind:    rowItem,
				label:   "  " + item.Description,
				code:    item.AccountCode,
				current: item.Current,
				prior:   item.Prior,
			})
		}
	}
	total := func(kind rowKind, label string, f func(statement.Totals) decimal.Decimal) {
		rows = append(rows, row{kind: kind, label: label, current: f(cur), prior: priorOf(f)})
	}
	margin := func(label string, m *decimal.Decimal) {
		if m != nil {
			rows = append(rows, row{kind: rowMargin, label: label, margin: m})
		}
		rows = append(rows, row{kind: rowBlank})
	}
	blank := func() { rows = append(rows, row{kind: rowBlank}) }

	section(statement.Revenue)
	total(rowTotal, "TOTAL INGRESOS OPERACIONALES", categoryTotal(statement.Revenue))
	blank()

	section(statement.CostOfSales)
	total(rowTotal, "TOTAL COSTOS DE VENTAS", categoryTotal(statement.CostOfSales))
	blank()

	total(rowProfit, "UTILIDAD BRUTA", statement.Totals.GrossProfit)
	margin("Margen Bruto %", cur.GrossMargin())

	section(statement.AdminExpenses)
	section(statement.SalesExpenses)
	total(rowTotal, "TOTAL GASTOS OPERACIONALES", statement.Totals.OperatingExpenses)
	blank()

	total(rowProfit, "UTILIDAD OPERACIONAL", statement.Totals.OperatingProfit)
	margin("Margen Operacional %", cur.OperatingMargin())

	section(statement.OtherIncome)
	section(statement.OtherExpenses)
	section(statement.FinancialExpenses)
	total(rowProfit, "UTILIDAD ANTES DE IMPUESTOS", statement.Totals.PreTaxProfit)
	margin("Margen Antes de Impuestos %", cur.PreTaxMargin())

	section(statement.Taxes)
	total(rowTotal, "TOTAL IMPUESTOS", categoryTotal(statement.Taxes))
	blank()

	total(rowNet, "UTILIDAD NETA", statement.Totals.NetProfit)
	if m := cur.NetMargin(); m != nil {
		rows = append(rows, row{kind: rowMargin, label: "Margen Neto %", margin: m})
	}

	return rows
}

// optionalString renders d as a plain decimal, rounded when places >= 0
func optionalString(d *decimal.Decimal, places int32) string {
	if d == nil {
		return ""
	}
	if places >= 0 {
		return d.Round(places).String()
	}
	return d.String()
}
