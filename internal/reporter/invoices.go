package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"dataconta/internal/models"
)

// InvoiceSheet is the worksheet of an invoice export
const InvoiceSheet = "Facturas"

var invoiceColumns = []string{
	"fecha", "numero", "cliente_nit", "cliente_nombre", "nit_valido", "subtotal", "impuestos", "total",
}

// InvoiceRow is the flattened export view of a sales invoice
type InvoiceRow struct {
	Date         string          `json:"fecha"`
	Number       string          `json:"numero"`
	CustomerNIT  string          `json:"cliente_nit"`
	CustomerName string          `json:"cliente_nombre"`
	NITValid     bool            `json:"nit_valido"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Taxes        decimal.Decimal `json:"impuestos"`
	Total        decimal.Decimal `json:"total"`
}

// NewInvoiceRow flattens inv
func NewInvoiceRow(inv models.Invoice) InvoiceRow {
	number := inv.Name
	if number == "" && inv.Number != 0 {
		number = strconv.Itoa(inv.Number)
	}

	var date string
	if !inv.Date.IsZero() {
		date = inv.Date.Format(models.DateLayout)
	}

	return InvoiceRow{
		Date:         date,
		Number:       number,
		CustomerNIT:  models.NormalizeNIT(inv.Customer.Identification),
		CustomerName: inv.Customer.DisplayName(),
		NITValid:     models.ValidateNIT(inv.Customer.Identification, inv.Customer.CheckDigit),
		Subtotal:     inv.Subtotal(),
		Taxes:        inv.TaxTotal(),
		Total:        inv.Total,
	}
}

func invoiceRows(invoices []models.Invoice) []InvoiceRow {
	rows := make([]InvoiceRow, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, NewInvoiceRow(inv))
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "SI"
	}
	return "NO"
}

// WriteInvoices renders an invoice list in the configured format
func (rg *ReportGenerator) WriteInvoices(invoices []models.Invoice, writer io.Writer) error {
	rows := invoiceRows(invoices)

	switch rg.config.Format {
	case FormatCSV:
		return rg.writeInvoicesCSV(rows, writer)
	case FormatXLSX:
		return rg.writeInvoicesXLSX(rows, writer)
	case FormatJSON:
		return writeJSON(writer, rows)
	case FormatConsole:
		return rg.writeInvoicesText(rows, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) writeInvoicesCSV(rows []InvoiceRow, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if err := csvWriter.Write(invoiceColumns); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.Date,
			r.Number,
			r.CustomerNIT,
			r.CustomerName,
			yesNo(r.NITValid),
			r.Subtotal.StringFixed(2),
			r.Taxes.StringFixed(2),
			r.Total.StringFixed(2),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write invoice record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func (rg *ReportGenerator) writeInvoicesXLSX(rows []InvoiceRow, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = InvoiceSheet
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 10, Bold: true, Color: colorAccent},
		Fill:      solidFill(colorHeader),
		Border:    thinBorder,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	// built-in format 4 is #,##0.00
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4, Border: thinBorder})
	if err != nil {
		return err
	}

	for i, h := range invoiceColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := setStyledCell(f, sheet, cell, h, headerStyle); err != nil {
			return err
		}
	}

	for i, r := range rows {
		line := i + 2
		values := []interface{}{
			r.Date,
			r.Number,
			r.CustomerNIT,
			r.CustomerName,
			yesNo(r.NITValid),
			r.Subtotal.InexactFloat64(),
			r.Taxes.InexactFloat64(),
			r.Total.InexactFloat64(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, line)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		from, _ := excelize.CoordinatesToCellName(6, line)
		to, _ := excelize.CoordinatesToCellName(8, line)
		if err := f.SetCellStyle(sheet, from, to, amountStyle); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "C", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "D", "D", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "E", "H", 16); err != nil {
		return err
	}

	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (rg *ReportGenerator) writeInvoicesText(rows []InvoiceRow, writer io.Writer) error {
	ew := &errWriter{w: writer}

	ew.printf("=== FACTURAS DE VENTA ===\n")
	ew.printf("Total facturas: %d\n\n", len(rows))

	total := decimal.Zero
	for i, r := range rows {
		flag := ""
		if !r.NITValid {
			flag = " [NIT inválido]"
		}
		ew.printf("  %d. %s %-12s %-14s %-30s %16s%s\n",
			i+1, r.Date, r.Number, r.CustomerNIT, truncate(r.CustomerName, 30), rg.currency(r.Total), flag)
		total = total.Add(r.Total)
	}

	ew.printf("\nTotal facturado: %s\n", rg.currency(total))
	return ew.err
}
