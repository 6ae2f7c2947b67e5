package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dataconta/internal/models"
	"dataconta/internal/statement"
	apperrors "dataconta/pkg/errors"
)

var generatedAt = time.Date(2024, 4, 1, 8, 30, 15, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func item(code, desc, value string) statement.SourceItem {
	return statement.SourceItem{AccountCode: code, Description: desc, Value: d(value)}
}

func sampleStatement(t *testing.T, withComparison bool) *statement.IncomeStatement {
	t.Helper()

	data := statement.EmptySourceData()
	data["ingresos"] = []statement.SourceItem{item("4135", "Comercio al por mayor y menor", "70000000")}
	data["costos"] = []statement.SourceItem{item("6135", "Costo de ventas", "30000000")}
	data["gastos_admin"] = []statement.SourceItem{item("5105", "Gastos de personal", "9500000")}
	data["gastos_ventas"] = []statement.SourceItem{item("5205", "Gastos de personal ventas", "6000000")}
	data["otros_ingresos"] = []statement.SourceItem{item("4210", "Financieros", "500000")}
	data["otros_gastos"] = []statement.SourceItem{item("5315", "Gastos extraordinarios", "300000")}
	data["gastos_financieros"] = []statement.SourceItem{item("5305", "Financieros", "800000")}
	data["impuestos"] = []statement.SourceItem{item("2408", "IVA por pagar", "2400000")}

	current := models.NewPeriodRange(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		"Marzo 2024",
	)

	var comparison *models.PeriodRange
	var prior statement.SourceData
	if withComparison {
		p := models.NewPeriodRange(
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			"Febrero 2024",
		)
		comparison = &p
		prior = statement.EmptySourceData()
		prior["ingresos"] = []statement.SourceItem{item("4135", "Comercio al por mayor y menor", "60000000")}
		prior["costos"] = []statement.SourceItem{item("6135", "Costo de ventas", "28000000")}
	}

	s, err := statement.Build(current, comparison, data, prior, generatedAt)
	require.NoError(t, err)
	return s
}

func newGenerator(t *testing.T, format OutputFormat) *ReportGenerator {
	t.Helper()
	cfg := DefaultReportConfig()
	cfg.Format = format
	cfg.OutputDir = t.TempDir()
	cfg.Timestamp = func() time.Time { return generatedAt }
	gen, err := NewReportGenerator(cfg)
	require.NoError(t, err)
	return gen
}

func TestReportConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ReportConfig)
		expectError bool
	}{
		{name: "default config", mutate: func(*ReportConfig) {}},
		{name: "console format", mutate: func(c *ReportConfig) { c.Format = FormatConsole }},
		{name: "invalid format", mutate: func(c *ReportConfig) { c.Format = "pdf" }, expectError: true},
		{name: "empty format", mutate: func(c *ReportConfig) { c.Format = "" }, expectError: true},
		{name: "bad locale", mutate: func(c *ReportConfig) { c.Locale = "not a locale!" }, expectError: true},
		{name: "quote delimiter", mutate: func(c *ReportConfig) { c.CSVDelimiter = '"' }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultReportConfig()
			tt.mutate(cfg)

			gen, err := NewReportGenerator(cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, gen)
		})
	}
}

func TestNewReportGenerator_Defaults(t *testing.T) {
	gen, err := NewReportGenerator(&ReportConfig{Format: FormatJSON})
	require.NoError(t, err)

	cfg := gen.GetConfiguration()
	assert.Equal(t, DefaultLocale, cfg.Locale)
	assert.Equal(t, ',', cfg.CSVDelimiter)
	assert.NotNil(t, cfg.Timestamp)
}

func TestCurrency(t *testing.T) {
	gen := newGenerator(t, FormatConsole)

	tests := []struct {
		value  string
		expect string
	}{
		{"1234567", "$1.234.567"},
		{"-1234567", "-$1.234.567"},
		{"1234567.5", "$1.234.568"},
		{"100000", "$100.000"},
		{"999", "$999"},
		{"0", "$0"},
		{"-0.4", "$0"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expect, gen.currency(d(tt.value)))
		})
	}
}

func TestPercent(t *testing.T) {
	v := d("16.6666")
	assert.Equal(t, "16.7%", percent(&v))
	neg := d("-32.8125")
	assert.Equal(t, "-32.8%", percent(&neg))
	assert.Equal(t, "", percent(nil))
	margin := d("57.1")
	assert.Equal(t, "57.10%", marginPercent(&margin))
}

func TestLayoutStatement(t *testing.T) {
	rows := layoutStatement(sampleStatement(t, true))

	var labels []string
	for _, r := range rows {
		if r.kind == rowTotal || r.kind == rowProfit || r.kind == rowNet || r.kind == rowMargin {
			labels = append(labels, r.label)
		}
	}
	assert.Equal(t, []string{
		"TOTAL INGRESOS OPERACIONALES",
		"TOTAL COSTOS DE VENTAS",
		"UTILIDAD BRUTA",
		"Margen Bruto %",
		"TOTAL GASTOS OPERACIONALES",
		"UTILIDAD OPERACIONAL",
		"Margen Operacional %",
		"UTILIDAD ANTES DE IMPUESTOS",
		"Margen Antes de Impuestos %",
		"TOTAL IMPUESTOS",
		"UTILIDAD NETA",
		"Margen Neto %",
	}, labels)

	last := rows[len(rows)-2]
	require.Equal(t, rowNet, last.kind)
	assert.True(t, last.current.Equal(d("21500000")))
	require.NotNil(t, last.prior)
	assert.True(t, last.prior.Equal(d("32000000")))
}

func TestLayoutStatement_ZeroRevenueOmitsMargins(t *testing.T) {
	s, err := statement.Build(models.NewPeriodRange(generatedAt, generatedAt, "x"), nil, statement.EmptySourceData(), nil, generatedAt)
	require.NoError(t, err)

	for _, r := range layoutStatement(s) {
		assert.NotEqual(t, rowMargin, r.kind, r.label)
		if r.hasAmounts() {
			assert.Nil(t, r.prior)
		}
	}
}

func findRow(rows [][]string, label string) []string {
	for _, r := range rows {
		if len(r) > 0 && r[0] == label {
			return r
		}
	}
	return nil
}

func TestWriteStatement_XLSX(t *testing.T) {
	gen := newGenerator(t, FormatXLSX)

	var buf bytes.Buffer
	require.NoError(t, gen.WriteStatement(sampleStatement(t, true), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(StatementSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "ESTADO DE RESULTADOS", title)

	period, _ := f.GetCellValue(StatementSheet, "A3")
	assert.Equal(t, "Período: Marzo 2024", period)
	comparison, _ := f.GetCellValue(StatementSheet, "A4")
	assert.Equal(t, "Comparación: Febrero 2024", comparison)

	merged, err := f.GetMergeCells(StatementSheet)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "A1", merged[0].GetStartAxis())
	assert.Equal(t, "E1", merged[0].GetEndAxis())

	width, err := f.GetColWidth(StatementSheet, "A")
	require.NoError(t, err)
	assert.Equal(t, 50.0, width)
	width, _ = f.GetColWidth(StatementSheet, "E")
	assert.Equal(t, 20.0, width)

	rows, err := f.GetRows(StatementSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"CONCEPTO", "PERÍODO ACTUAL", "PERÍODO ANTERIOR", "VARIACIÓN $", "VARIACIÓN %"}, rows[5])

	sales := findRow(rows, "  Comercio al por mayor y menor")
	require.NotNil(t, sales)
	assert.Equal(t, []string{"  Comercio al por mayor y menor", "$70.000.000", "$60.000.000", "$10.000.000", "16.7%"}, sales)

	gross := findRow(rows, "UTILIDAD BRUTA")
	require.NotNil(t, gross)
	assert.Equal(t, []string{"UTILIDAD BRUTA", "$40.000.000", "$32.000.000", "$8.000.000", "25.0%"}, gross)

	net := findRow(rows, "UTILIDAD NETA")
	require.NotNil(t, net)
	assert.Equal(t, []string{"UTILIDAD NETA", "$21.500.000", "$32.000.000", "-$10.500.000", "-32.8%"}, net)

	margin := findRow(rows, "Margen Bruto %")
	require.NotNil(t, margin)
	assert.Equal(t, "57.14%", margin[1])

	// profit lines and the final result carry different highlights
	grossRow, netRow := 0, 0
	for i, r := range rows {
		switch {
		case len(r) > 0 && r[0] == "UTILIDAD BRUTA":
			grossRow = i + 1
		case len(r) > 0 && r[0] == "UTILIDAD NETA":
			netRow = i + 1
		}
	}
	grossStyle, err := f.GetCellStyle(StatementSheet, "A"+strconv.Itoa(grossRow))
	require.NoError(t, err)
	netStyle, err := f.GetCellStyle(StatementSheet, "A"+strconv.Itoa(netRow))
	require.NoError(t, err)
	assert.NotEqual(t, grossStyle, netStyle)
}

func TestWriteStatement_XLSXWithoutComparison(t *testing.T) {
	gen := newGenerator(t, FormatXLSX)

	var buf bytes.Buffer
	require.NoError(t, gen.WriteStatement(sampleStatement(t, false), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	comparison, _ := f.GetCellValue(StatementSheet, "A4")
	assert.Empty(t, comparison)

	rows, err := f.GetRows(StatementSheet)
	require.NoError(t, err)
	net := findRow(rows, "UTILIDAD NETA")
	require.NotNil(t, net)
	require.GreaterOrEqual(t, len(net), 2)
	assert.Equal(t, "$21.500.000", net[1])
	for _, cell := range net[2:] {
		assert.Empty(t, cell)
	}
}

func TestWriteStatement_Console(t *testing.T) {
	gen := newGenerator(t, FormatConsole)

	var buf bytes.Buffer
	require.NoError(t, gen.WriteStatement(sampleStatement(t, true), &buf))
	out := buf.String()

	expected := []string{
		"ESTADO DE RESULTADOS",
		"Período: Marzo 2024",
		"Comparación: Febrero 2024",
		"Generado: 2024-04-01T08:30:15Z",
		"=== INGRESOS OPERACIONALES ===",
		"=== GASTOS FINANCIEROS ===",
		"TOTAL GASTOS OPERACIONALES",
		"UTILIDAD NETA",
		"$21.500.000",
		"-$10.500.000",
		"Margen Neto %",
		"30.71%",
	}
	for _, e := range expected {
		assert.Contains(t, out, e)
	}
}

func TestWriteStatement_JSON(t *testing.T) {
	gen := newGenerator(t, FormatJSON)

	var buf bytes.Buffer
	require.NoError(t, gen.WriteStatement(sampleStatement(t, true), &buf))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	sections, ok := decoded["sections"].([]interface{})
	require.True(t, ok)
	assert.Len(t, sections, 8)
	assert.NotNil(t, decoded["prior_totals"])
}

func TestWriteStatement_CSV(t *testing.T) {
	gen := newGenerator(t, FormatCSV)

	var buf bytes.Buffer
	require.NoError(t, gen.WriteStatement(sampleStatement(t, true), &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"concepto", "codigo", "periodo_actual", "periodo_anterior", "variacion", "variacion_pct"}, records[0])
	assert.Contains(t, records, []string{"Comercio al por mayor y menor", "4135", "70000000", "60000000", "10000000", "16.67"})
	assert.Contains(t, records, []string{"Gastos de personal", "5105", "9500000", "", "", ""})
	assert.Contains(t, records, []string{"Margen Neto %", "", "30.71", "", "", ""})
}

func TestWriteStatement_Nil(t *testing.T) {
	gen := newGenerator(t, FormatJSON)
	assert.Error(t, gen.WriteStatement(nil, &bytes.Buffer{}))
}

func TestSaveStatement(t *testing.T) {
	tests := []struct {
		format   OutputFormat
		fileName string
	}{
		{FormatXLSX, "estado_resultados_20240401_083015.xlsx"},
		{FormatConsole, "estado_resultados_20240401_083015.txt"},
		{FormatJSON, "estado_resultados_20240401_083015.json"},
		{FormatCSV, "estado_resultados_20240401_083015.csv"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			gen := newGenerator(t, tt.format)
			gen.config.OutputDir = filepath.Join(gen.config.OutputDir, "nested", "reports")

			path, err := gen.SaveStatement(sampleStatement(t, false))
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(gen.config.OutputDir, tt.fileName), path)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}
}

func TestSaveStatement_OpensAsWorkbook(t *testing.T) {
	gen := newGenerator(t, FormatXLSX)

	path, err := gen.SaveStatement(sampleStatement(t, true))
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{StatementSheet}, f.GetSheetList())
}

func TestSaveStatementAs(t *testing.T) {
	gen := newGenerator(t, FormatJSON)
	path := filepath.Join(t.TempDir(), "custom", "marzo.json")

	require.NoError(t, gen.SaveStatementAs(sampleStatement(t, false), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sections"`)

	assert.Error(t, gen.SaveStatementAs(nil, path))
}

func TestSafeReportGenerator_OutputFallback(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	cfg := DefaultReportConfig()
	cfg.OutputDir = filepath.Join(blocker, "reports")
	cfg.Timestamp = func() time.Time { return generatedAt }

	srg, err := NewSafeReportGenerator(cfg, nil)
	require.NoError(t, err)
	srg.fallbackDir = filepath.Join(base, "fallback")

	path, err := srg.SaveStatementSafely(sampleStatement(t, false))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "fallback", "estado_resultados_20240401_083015.xlsx"), path)
	assert.FileExists(t, path)
}

func TestSafeReportGenerator_DirectoryError(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := DefaultReportConfig()
	cfg.OutputDir = filepath.Join(blocker, "reports")

	gen, err := NewReportGenerator(cfg)
	require.NoError(t, err)

	_, err = gen.SaveStatement(sampleStatement(t, false))
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryFile))
}

func TestSafeReportGenerator_InvalidConfig(t *testing.T) {
	_, err := NewSafeReportGenerator(&ReportConfig{Format: "pdf"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfiguration))
}

func TestSafeReportGenerator_NilStatement(t *testing.T) {
	srg, err := NewSafeReportGenerator(nil, nil)
	require.NoError(t, err)

	_, err = srg.SaveStatementSafely(nil)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDataValidation))
}

func TestClassifyWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect apperrors.ErrorCode
	}{
		{"permission", &os.PathError{Op: "open", Path: "/x", Err: os.ErrPermission}, apperrors.CodeWritePermission},
		{"disk full", &os.PathError{Op: "write", Path: "/x", Err: errString("no space left on device")}, apperrors.CodeDiskFull},
		{"other", errString("boom"), apperrors.CodeRenderFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyWriteError("/x", tt.err)
			de, ok := apperrors.AsDataContaError(err)
			require.True(t, ok)
			assert.Equal(t, tt.expect, de.Code)
		})
	}

	already := apperrors.InternalError(apperrors.CodeUnexpectedError, "op", nil)
	assert.Same(t, already, classifyWriteError("/x", already))
}

type errString string

func (e errString) Error() string { return string(e) }

func TestFormatExtension(t *testing.T) {
	assert.Equal(t, ".xlsx", FormatXLSX.Extension())
	assert.Equal(t, ".txt", FormatConsole.Extension())
	assert.True(t, strings.HasPrefix(newGenerator(t, FormatJSON).StatementFileName(generatedAt), StatementFilePrefix))
}
