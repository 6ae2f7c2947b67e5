package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"dataconta/internal/kpi"
	"dataconta/internal/puc"
	"dataconta/internal/statement"
)

const maxListedClients = 10

// WriteKPIs renders sales indicators. Only json and console are supported;
// other formats fall back to console.
func (rg *ReportGenerator) WriteKPIs(k *kpi.SalesKPIs, writer io.Writer) error {
	if k == nil {
		return fmt.Errorf("sales KPIs cannot be nil")
	}
	if rg.config.Format == FormatJSON {
		return writeJSON(writer, k)
	}
	return rg.writeKPIsText(k, writer)
}

func (rg *ReportGenerator) writeKPIsText(k *kpi.SalesKPIs, writer io.Writer) error {
	ew := &errWriter{w: writer}

	ew.printf("=== INDICADORES DE VENTAS ===\n")
	ew.printf("Período:            %s\n", k.Period.Label())
	ew.printf("Estado:             %s\n\n", k.Status)

	if k.Status == kpi.StatusNoData {
		ew.printf("No hay facturas de venta en el período\n")
		return ew.err
	}

	ew.printf("Ventas totales:     %s\n", rg.currency(k.TotalSales))
	ew.printf("Facturas:           %d\n", k.InvoiceCount)
	ew.printf("Ticket promedio:    %s\n", rg.currency(k.AverageTicket))
	ew.printf("Clientes activos:   %d\n", k.ActiveClients)
	ew.printf("Venta máxima:       %s\n", rg.currency(k.MaxClientSales))
	ew.printf("Venta mínima:       %s\n", rg.currency(k.MinClientSales))
	if k.TopClient != nil {
		ew.printf("Cliente principal:  %s (%s)", k.TopClient.Name, k.TopClient.NIT)
		if k.TopClientShare != nil {
			ew.printf(" %s%%", k.TopClientShare.StringFixed(2))
		}
		ew.printf("\n")
	}
	ew.printf("Distribución:       %s\n\n", k.Distribution)

	ew.printf("=== VENTAS POR CLIENTE ===\n")
	for i, c := range k.Clients {
		if i >= maxListedClients {
			ew.printf("  ... y %d más\n", len(k.Clients)-maxListedClients)
			break
		}
		ew.printf("  %d. %-30s %-12s %16s %4d facturas %7s%%\n",
			i+1, truncate(c.Name, 30), c.NIT, rg.currency(c.Total), c.InvoiceCount, c.Share.StringFixed(2))
	}

	return ew.err
}

// WriteBalance renders a balance sheet as json or console text
func (rg *ReportGenerator) WriteBalance(b *statement.BalanceSheet, writer io.Writer) error {
	if b == nil {
		return fmt.Errorf("balance sheet cannot be nil")
	}
	if rg.config.Format == FormatJSON {
		return writeJSON(writer, b)
	}

	ew := &errWriter{w: writer}
	ew.printf("ESTADO DE SITUACIÓN FINANCIERA\n")
	ew.printf("Corte: %s\n\n", b.Date.Format("02/01/2006"))

	rg.writeBalanceBody(ew, b)
	return ew.err
}

func (rg *ReportGenerator) writeBalanceBody(ew *errWriter, b *statement.BalanceSheet) {
	for _, sec := range []statement.BalanceSection{b.Assets, b.Liabilities, b.Equity} {
		ew.printf("=== %s ===\n", sec.Title)
		for _, acc := range sec.Accounts {
			ew.printf("  %-10s %-37s %*s\n", acc.Code, truncate(acc.Name, 37), amountWidth, rg.currency(acc.FinalBalance))
		}
		if sec.Class != puc.ClassEquity {
			ew.printf("  %-48s %*s\n", "Corriente", amountWidth, rg.currency(sec.Current))
			ew.printf("  %-48s %*s\n", "No corriente", amountWidth, rg.currency(sec.NonCurrent))
		}
		ew.printf("%-50s %*s\n\n", "TOTAL "+sec.Title, amountWidth, rg.currency(sec.Total))
	}

	ew.printf("%-50s %*s\n", "RESULTADO DEL PERÍODO", amountWidth, rg.currency(b.PeriodResult))
	if b.Balanced() {
		ew.printf("Ecuación patrimonial: CUADRA\n")
	} else {
		ew.printf("Ecuación patrimonial: DESCUADRE DE %s\n", rg.currency(b.Difference()))
	}
	ew.printf("Razón corriente: %s  Endeudamiento: %s%%\n",
		b.CurrentRatio().StringFixed(2), b.DebtRatio().Mul(decimal.NewFromInt(100)).StringFixed(2))
}

// WriteFinancialSummary renders a balance sheet together with the
// indicators that combine it with the income statement of the period
func (rg *ReportGenerator) WriteFinancialSummary(f *statement.FinancialSummary, writer io.Writer) error {
	if f == nil || f.Statement == nil || f.Balance == nil {
		return fmt.Errorf("financial summary cannot be nil")
	}
	if rg.config.Format == FormatJSON {
		return writeJSON(writer, f)
	}

	ew := &errWriter{w: writer}
	ew.printf("ESTADO DE SITUACIÓN FINANCIERA\n")
	ew.printf("Corte: %s\n\n", f.Balance.Date.Format("02/01/2006"))
	rg.writeBalanceBody(ew, f.Balance)

	ew.printf("\n=== INDICADORES %s ===\n", strings.ToUpper(f.Statement.Current.String()))
	ew.printf("%-50s %*s\n", "Utilidad neta", amountWidth, rg.currency(f.NetProfit()))
	ew.printf("%-50s %*s\n", "ROA", amountWidth, f.ROA().StringFixed(2)+"%")
	ew.printf("%-50s %*s\n", "ROE", amountWidth, f.ROE().StringFixed(2)+"%")
	if f.Coherent() {
		ew.printf("Coherencia con el estado de resultados: OK\n")
	} else {
		ew.printf("Coherencia con el estado de resultados: DIFERENCIA DE %s\n", rg.currency(f.ResultDifference()))
	}

	return ew.err
}
