package reporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"dataconta/internal/statement"
)

// StatementSheet is the worksheet holding the income statement
const StatementSheet = "Estado de Resultados"

const (
	colorNavy   = "1F4E79"
	colorHeader = "E7EDF5"
	colorProfit = "D9E2F3"
	colorWhite  = "FFFFFF"
	colorAccent = "2F5597"
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
}

func solidFill(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
}

type workbookStyles struct {
	title, subtitle, header, section int
	label, amount                    int
	totalLabel, totalAmount          int
	profitLabel, profitAmount        int
	netLabel, netAmount              int
}

func newWorkbookStyles(f *excelize.File) (*workbookStyles, error) {
	var s workbookStyles
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{
			Font:      &excelize.Font{Family: "Arial", Size: 16, Bold: true, Color: colorWhite},
			Fill:      solidFill(colorNavy),
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}},
		{&s.subtitle, &excelize.Style{
			Font: &excelize.Font{Family: "Arial", Size: 12, Bold: true, Color: colorNavy},
		}},
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Family: "Arial", Size: 11, Bold: true, Color: colorAccent},
			Fill:      solidFill(colorHeader),
			Border:    thinBorder,
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}},
		{&s.section, &excelize.Style{
			Font: &excelize.Font{Family: "Arial", Size: 11, Bold: true, Color: colorAccent},
		}},
		{&s.label, &excelize.Style{
			Font:   &excelize.Font{Family: "Arial", Size: 10},
			Border: thinBorder,
		}},
		{&s.amount, &excelize.Style{
			Font:      &excelize.Font{Family: "Arial", Size: 10},
			Border:    thinBorder,
			Alignment: &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		}},
		{&s.totalLabel, &excelize.Style{
			Font:   &excelize.Font{Family: "Arial", Size: 10, Bold: true},
			Border: thinBorder,
		}},
		{&s.totalAmount, &excelize.Style{
			Font:      &excelize.Font{Family: "Arial", Size: 10, Bold: true},
			Border:    thinBorder,
			Alignment: &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		}},
		{&s.profitLabel, &excelize.Style{
			Font:   &excelize.Font{Family: "Arial", Size: 10, Bold: true},
			Fill:   solidFill(colorProfit),
			Border: thinBorder,
		}},
		{&s.profitAmount, &excelize.Style{
			Font:      &excelize.Font{Family: "Arial", Size: 10, Bold: true},
			Fill:      solidFill(colorProfit),
			Border:    thinBorder,
			Alignment: &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		}},
		{&s.netLabel, &excelize.Style{
			Font:   &excelize.Font{Family: "Arial", Size: 12, Bold: true, Color: colorWhite},
			Fill:   solidFill(colorNavy),
			Border: thinBorder,
		}},
		{&s.netAmount, &excelize.Style{
			Font:      &excelize.Font{Family: "Arial", Size: 12, Bold: true, Color: colorWhite},
			Fill:      solidFill(colorNavy),
			Border:    thinBorder,
			Alignment: &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		}},
	}

	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return nil, fmt.Errorf("failed to create workbook style: %w", err)
		}
		*d.dst = id
	}
	return &s, nil
}

func (rg *ReportGenerator) writeStatementXLSX(s *statement.IncomeStatement, writer io.Writer) error {
	f, err := rg.statementWorkbook(s)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// statementWorkbook lays out the statement on a single styled sheet
func (rg *ReportGenerator) statementWorkbook(s *statement.IncomeStatement) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", StatementSheet); err != nil {
		f.Close()
		return nil, err
	}

	if err := rg.fillStatementSheet(f, s); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (rg *ReportGenerator) fillStatementSheet(f *excelize.File, s *statement.IncomeStatement) error {
	const sheet = StatementSheet

	styles, err := newWorkbookStyles(f)
	if err != nil {
		return err
	}

	if err := f.SetColWidth(sheet, "A", "A", 50); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "E", 20); err != nil {
		return err
	}

	// Title band
	if err := f.MergeCell(sheet, "A1", "E1"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, "A1", "ESTADO DE RESULTADOS"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "E1", styles.title); err != nil {
		return err
	}

	// Period header
	if err := setStyledCell(f, sheet, "A3", "Período: "+s.Current.Label(), styles.subtitle); err != nil {
		return err
	}
	if s.Comparison != nil {
		if err := setStyledCell(f, sheet, "A4", "Comparación: "+s.Comparison.Label(), styles.subtitle); err != nil {
			return err
		}
	}

	line := 6
	headers := []string{"CONCEPTO", "PERÍODO ACTUAL", "PERÍODO ANTERIOR", "VARIACIÓN $", "VARIACIÓN %"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, line)
		if err := setStyledCell(f, sheet, cell, h, styles.header); err != nil {
			return err
		}
	}
	line++

	for _, r := range layoutStatement(s) {
		if err := rg.writeStatementRow(f, styles, line, r); err != nil {
			return err
		}
		line++
	}

	return nil
}

func (rg *ReportGenerator) writeStatementRow(f *excelize.File, styles *workbookStyles, line int, r row) error {
	const sheet = StatementSheet
	cell := func(col string) string { return fmt.Sprintf("%s%d", col, line) }

	switch r.kind {
	case rowBlank:
		return nil
	case rowSection:
		return setStyledCell(f, sheet, cell("A"), r.label, styles.section)
	case rowMargin:
		if err := setStyledCell(f, sheet, cell("A"), r.label, styles.totalLabel); err != nil {
			return err
		}
		return setStyledCell(f, sheet, cell("B"), marginPercent(r.margin), styles.totalAmount)
	}

	labelStyle, amountStyle := styles.label, styles.amount
	switch r.kind {
	case rowTotal:
		labelStyle, amountStyle = styles.totalLabel, styles.totalAmount
	case rowProfit:
		labelStyle, amountStyle = styles.profitLabel, styles.profitAmount
	case rowNet:
		labelStyle, amountStyle = styles.netLabel, styles.netAmount
	}

	values := []string{
		r.label,
		rg.currency(r.current),
		rg.optionalCurrency(r.prior),
		rg.optionalCurrency(r.variance()),
		percent(r.percentVariance()),
	}
	for i, v := range values {
		style := amountStyle
		if i == 0 {
			style = labelStyle
		}
		name, _ := excelize.CoordinatesToCellName(i+1, line)
		if err := setStyledCell(f, sheet, name, v, style); err != nil {
			return err
		}
	}
	return nil
}

func setStyledCell(f *excelize.File, sheet, cell string, value interface{}, style int) error {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}
