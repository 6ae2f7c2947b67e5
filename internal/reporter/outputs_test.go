package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dataconta/internal/kpi"
	"dataconta/internal/models"
	"dataconta/internal/statement"
)

func sampleInvoices() []models.Invoice {
	return []models.Invoice{
		{
			Name:     "FV-1-1001",
			Date:     models.NewDate(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
			Customer: models.Customer{Identification: "800197268", CheckDigit: "4", Name: []string{"Distribuciones", "Caribe"}},
			Taxes:    []models.Tax{{Name: "IVA 19%", Value: d("190000")}},
			Total:    d("1190000"),
		},
		{
			Number:   1002,
			Date:     models.NewDate(time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)),
			Customer: models.Customer{Identification: "800.197.268", CheckDigit: "5", CommercialName: "Caribe Sucursal"},
			Total:    d("500000"),
		},
	}
}

func TestNewInvoiceRow(t *testing.T) {
	invoices := sampleInvoices()

	first := NewInvoiceRow(invoices[0])
	assert.Equal(t, "2024-03-05", first.Date)
	assert.Equal(t, "FV-1-1001", first.Number)
	assert.Equal(t, "800197268", first.CustomerNIT)
	assert.Equal(t, "Distribuciones Caribe", first.CustomerName)
	assert.True(t, first.NITValid)
	assert.True(t, first.Subtotal.Equal(d("1000000")))
	assert.True(t, first.Taxes.Equal(d("190000")))

	second := NewInvoiceRow(invoices[1])
	assert.Equal(t, "1002", second.Number)
	assert.Equal(t, "800197268", second.CustomerNIT)
	assert.Equal(t, "Caribe Sucursal", second.CustomerName)
	assert.False(t, second.NITValid)
	assert.True(t, second.Taxes.IsZero())
}

func TestWriteInvoices_CSV(t *testing.T) {
	gen := newGenerator(t, FormatCSV)

	var buf bytes.Buffer
	require.NoError(t, gen.WriteInvoices(sampleInvoices(), &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, invoiceColumns, records[0])
	assert.Equal(t, []string{"2024-03-05", "FV-1-1001", "800197268", "Distribuciones Caribe", "SI", "1000000.00", "190000.00", "1190000.00"}, records[1])
	assert.Equal(t, "NO", records[2][4])
}

func TestWriteInvoices_CSVDelimiter(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Format = FormatCSV
	cfg.CSVDelimiter = ';'
	gen, err := NewReportGenerator(cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gen.WriteInvoices(nil, &buf))
	assert.Equal(t, "fecha;numero;cliente_nit;cliente_nombre;nit_valido;subtotal;impuestos;total\n", buf.String())
}

func TestWriteInvoices_XLSX(t *testing.T) {
	gen := newGenerator(t, FormatXLSX)

	var buf bytes.Buffer
	require.NoError(t, gen.WriteInvoices(sampleInvoices(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(InvoiceSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, invoiceColumns, rows[0])
	assert.Equal(t, []string{"2024-03-05", "FV-1-1001", "800197268", "Distribuciones Caribe", "SI"}, rows[1][:5])
	assert.Equal(t, "1190000", rows[1][7])
}

func TestWriteInvoices_JSONAndConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newGenerator(t, FormatJSON).WriteInvoices(sampleInvoices(), &buf))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "800197268", decoded[0]["cliente_nit"])
	assert.Equal(t, true, decoded[0]["nit_valido"])
	assert.Equal(t, "1190000", decoded[0]["total"])

	buf.Reset()
	require.NoError(t, newGenerator(t, FormatConsole).WriteInvoices(sampleInvoices(), &buf))
	out := buf.String()
	assert.Contains(t, out, "Total facturas: 2")
	assert.Contains(t, out, "[NIT inválido]")
	assert.Contains(t, out, "Total facturado: $1.690.000")
}

func TestWriteKPIs(t *testing.T) {
	period := models.NewPeriodRange(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		"Marzo 2024",
	)
	k := kpi.Calculate(sampleInvoices(), period)

	var buf bytes.Buffer
	require.NoError(t, newGenerator(t, FormatConsole).WriteKPIs(k, &buf))
	out := buf.String()
	assert.Contains(t, out, "=== INDICADORES DE VENTAS ===")
	assert.Contains(t, out, "Ventas totales:     $1.690.000")
	assert.Contains(t, out, "Clientes activos:   1")
	assert.Contains(t, out, "muy_concentrada")
	assert.Contains(t, out, "100.00%")

	buf.Reset()
	require.NoError(t, newGenerator(t, FormatJSON).WriteKPIs(k, &buf))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ACTIVO", decoded["estado_sistema"])
	assert.Equal(t, "muy_concentrada", decoded["distribucion_ventas"])

	buf.Reset()
	require.NoError(t, newGenerator(t, FormatXLSX).WriteKPIs(kpi.Calculate(nil, period), &buf))
	assert.Contains(t, buf.String(), "SIN_DATOS")
	assert.Contains(t, buf.String(), "No hay facturas de venta en el período")

	assert.Error(t, newGenerator(t, FormatJSON).WriteKPIs(nil, &buf))
}

func TestWriteBalance(t *testing.T) {
	tb := models.TrialBalance{
		Date: models.NewDate(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)),
		Accounts: []models.TrialBalanceAccount{
			{Code: "1110", Name: "Bancos", FinalBalance: d("2500000")},
			{Code: "2205", Name: "Proveedores", FinalBalance: d("1000000")},
			{Code: "3105", Name: "Capital suscrito y pagado", FinalBalance: d("1000000")},
			{Code: "4135", Name: "Comercio", FinalBalance: d("500000")},
		},
	}
	b := statement.BuildBalanceSheet(tb)

	var buf bytes.Buffer
	require.NoError(t, newGenerator(t, FormatConsole).WriteBalance(b, &buf))
	out := buf.String()
	assert.Contains(t, out, "Corte: 31/12/2024")
	assert.Contains(t, out, "=== ACTIVO ===")
	assert.Contains(t, out, "$2.500.000")
	assert.Contains(t, out, "RESULTADO DEL PERÍODO")
	assert.Contains(t, out, "CUADRA")

	buf.Reset()
	require.NoError(t, newGenerator(t, FormatJSON).WriteBalance(b, &buf))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, true, decoded["cuadrado"])

	assert.Error(t, newGenerator(t, FormatJSON).WriteBalance(nil, &buf))
}

func TestWriteFinancialSummary(t *testing.T) {
	tb := models.TrialBalance{
		Date: models.NewDate(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)),
		Accounts: []models.TrialBalanceAccount{
			{Code: "1110", Name: "Bancos", FinalBalance: d("2000000")},
			{Code: "1524", Name: "Equipo de oficina", FinalBalance: d("2000000")},
			{Code: "2205", Name: "Proveedores", FinalBalance: d("1000000")},
			{Code: "3105", Name: "Capital suscrito y pagado", FinalBalance: d("2000000")},
			{Code: "4135", Name: "Comercio", FinalBalance: d("1000000")},
		},
	}
	period := models.NewPeriodRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), "")
	st := statement.NewIncomeStatement(period, nil, generatedAt)
	st.Add(statement.Revenue, statement.LineItem{AccountCode: "4135", Description: "Comercio", Current: d("1000000")})
	f := statement.NewFinancialSummary(st, statement.BuildBalanceSheet(tb))

	var buf bytes.Buffer
	require.NoError(t, newGenerator(t, FormatConsole).WriteFinancialSummary(f, &buf))
	out := buf.String()
	assert.Contains(t, out, "Corriente")
	assert.Contains(t, out, "Razón corriente: 2.00  Endeudamiento: 25.00%")
	assert.Contains(t, out, "25.00%", "ROA")
	assert.Contains(t, out, "33.33%", "ROE")
	assert.Contains(t, out, "Coherencia con el estado de resultados: OK")

	buf.Reset()
	require.NoError(t, newGenerator(t, FormatJSON).WriteFinancialSummary(f, &buf))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, true, decoded["coherente"])
	assert.Equal(t, "25", decoded["roa"])

	assert.Error(t, newGenerator(t, FormatJSON).WriteFinancialSummary(nil, &buf))
}
