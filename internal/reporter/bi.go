package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"dataconta/internal/bi"
)

// Star-schema file names, as loaded by the Power BI model
const (
	FactInvoicesFile = "fact_invoices.csv"
	DimClientsFile   = "dim_clients.csv"
	DimSellersFile   = "dim_sellers.csv"
	DimProductsFile  = "dim_products.csv"
	DimPaymentsFile  = "dim_payments.csv"
	DimDatesFile     = "dim_dates.csv"
)

type biTable struct {
	name    string
	headers []string
	rows    [][]string
}

// WriteStarSchema writes the fact and dimension tables of schema as CSV
// files under dir and returns their paths in table order. Amounts use a
// comma as decimal separator.
func (rg *ReportGenerator) WriteStarSchema(schema *bi.Schema, dir string) ([]string, error) {
	if schema == nil {
		return nil, fmt.Errorf("star schema cannot be nil")
	}

	paths := make([]string, 0, 6)
	for _, table := range starSchemaTables(schema) {
		path := filepath.Join(dir, table.name)
		err := writeFileAtomic(path, func(w io.Writer) error {
			return rg.writeCSVTable(w, table.headers, table.rows)
		})
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (rg *ReportGenerator) writeCSVTable(w io.Writer, headers []string, rows [][]string) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = rg.config.CSVDelimiter

	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	if err := csvWriter.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

func starSchemaTables(s *bi.Schema) []biTable {
	facts := make([][]string, 0, len(s.Facts))
	for _, f := range s.Facts {
		facts = append(facts, []string{
			f.InvoiceID, f.Date, f.ClientID, f.SellerID, f.ProductCode,
			biQuantity(f.Quantity), biAmount(f.Price), biAmount(f.Discount), biAmount(f.LineTotal),
			f.PaymentID,
			biAmount(f.Subtotal), biAmount(f.DiscountTotal), biAmount(f.Taxes), biAmount(f.Total),
			f.Status, f.Observations,
		})
	}

	clients := make([][]string, 0, len(s.Clients))
	for _, c := range s.Clients {
		clients = append(clients, []string{c.ID, c.Identification, c.Name, c.Email, c.Type, c.Regime})
	}

	sellers := make([][]string, 0, len(s.Sellers))
	for _, v := range s.Sellers {
		sellers = append(sellers, []string{v.ID, v.Name, v.Zone})
	}

	products := make([][]string, 0, len(s.Products))
	for _, p := range s.Products {
		products = append(products, []string{p.Code, p.Description, p.Category, biAmount(p.StandardPrice)})
	}

	payments := make([][]string, 0, len(s.Payments))
	for _, p := range s.Payments {
		payments = append(payments, []string{p.ID, p.Name, p.Category})
	}

	dates := make([][]string, 0, len(s.Dates))
	for _, d := range s.Dates {
		dates = append(dates, []string{
			d.Date, strconv.Itoa(d.Year), strconv.Itoa(d.Month), strconv.Itoa(d.Day),
			strconv.Itoa(d.Quarter), d.MonthName, d.DayName,
		})
	}

	return []biTable{
		{FactInvoicesFile, []string{
			"factura_id", "fecha", "cliente_id", "vendedor_id", "producto_codigo",
			"producto_cantidad", "producto_precio", "producto_descuento", "producto_total",
			"pago_id", "subtotal", "descuento_total", "impuestos", "total", "estado", "observaciones",
		}, facts},
		{DimClientsFile, []string{"cliente_id", "identificacion", "nombre", "email", "tipo_cliente", "regimen"}, clients},
		{DimSellersFile, []string{"vendedor_id", "nombre", "zona"}, sellers},
		{DimProductsFile, []string{"producto_codigo", "descripcion", "categoria", "precio_estandar"}, products},
		{DimPaymentsFile, []string{"pago_id", "nombre", "categoria"}, payments},
		{DimDatesFile, []string{"fecha", "año", "mes", "dia", "trimestre", "nombre_mes", "nombre_dia"}, dates},
	}
}

// biAmount formats d with two decimals and a decimal comma
func biAmount(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// biQuantity drops the decimals of whole quantities
func biQuantity(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String()
	}
	return biAmount(d)
}
