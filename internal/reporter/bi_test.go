package reporter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataconta/internal/bi"
	"dataconta/internal/models"
	"dataconta/pkg/logger"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func biInvoices() []models.Invoice {
	customer := models.Customer{Identification: "800197268", Name: []string{"Comercializadora Andina SAS"}}
	date := models.NewDate(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	transfer := models.Payment{ID: 5636, Name: "Transferencia"}
	return []models.Invoice{
		{
			ID: "inv-1", Date: date, Customer: customer, Seller: 629,
			Items:    []models.InvoiceItem{{Code: "SRV-01", Description: "Consultoría contable", Quantity: d("1.5"), Price: d("1000000")}},
			Taxes:    []models.Tax{{Value: d("285000")}},
			Total:    d("1785000"),
			Payments: []models.Payment{transfer},
		},
		{
			ID: "inv-2", Date: date, Customer: customer, Seller: 629,
			Items:    []models.InvoiceItem{{Code: "SRV-01", Description: "Consultoría contable", Quantity: d("2"), Price: d("1000000")}},
			Total:    d("2000000"),
			Payments: []models.Payment{transfer},
		},
	}
}

func TestWriteStarSchema(t *testing.T) {
	gen := newGenerator(t, FormatCSV)
	dir := filepath.Join(t.TempDir(), "bi")

	paths, err := gen.WriteStarSchema(bi.Build(biInvoices()), dir)
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{
		FactInvoicesFile, DimClientsFile, DimSellersFile, DimProductsFile, DimPaymentsFile, DimDatesFile,
	}, names)

	facts := readCSV(t, filepath.Join(dir, FactInvoicesFile))
	require.Len(t, facts, 3)
	assert.Equal(t, "factura_id", facts[0][0])
	assert.Len(t, facts[0], 16)
	assert.Equal(t, []string{"inv-1", "2024-03-04", "800197268", "629", "SRV-01", "1,50", "1000000,00"}, facts[1][:7])
	assert.Equal(t, "1500000,00", facts[1][8])
	assert.Equal(t, "285000,00", facts[1][12])
	assert.Equal(t, "2", facts[2][5], "whole quantities have no decimals")

	for _, file := range []string{DimClientsFile, DimSellersFile, DimProductsFile, DimPaymentsFile, DimDatesFile} {
		rows := readCSV(t, filepath.Join(dir, file))
		assert.Len(t, rows, 2, "%s holds the header and one deduplicated row", file)
	}

	dates := readCSV(t, filepath.Join(dir, DimDatesFile))
	assert.Equal(t, []string{"2024-03-04", "2024", "3", "4", "1", "Marzo", "Lunes"}, dates[1])

	leftovers, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriteStarSchema_Delimiter(t *testing.T) {
	gen := newGenerator(t, FormatCSV)
	gen.config.CSVDelimiter = ';'
	dir := t.TempDir()

	_, err := gen.WriteStarSchema(bi.Build(biInvoices()), dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, DimProductsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "SRV-01;Consultoría contable;Servicios;1000000,00")

	_, err = gen.WriteStarSchema(nil, dir)
	assert.Error(t, err)
}

func TestWriteFileAtomic_FailureLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reporte.json")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	err := writeFileAtomic(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("render failed")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is removed")

	require.NoError(t, writeFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "complete")
		return err
	}))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "complete", string(data))
}

func TestSafeReportGenerator_LogsOperation(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewWithWriter(&buf, &logger.Config{Level: logger.InfoLevel, Format: logger.JSONFormat, Output: logger.StderrOutput})
	require.NoError(t, err)

	cfg := DefaultReportConfig()
	cfg.Format = FormatJSON
	cfg.OutputDir = t.TempDir()
	cfg.Timestamp = func() time.Time { return generatedAt }

	srg, err := NewSafeReportGenerator(cfg, log)
	require.NoError(t, err)

	path, err := srg.SaveStatementSafely(sampleStatement(t, false))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"operation":"save_report"`)
	assert.Contains(t, out, `"status":"success"`)
	assert.Contains(t, out, filepath.Base(path))
}
