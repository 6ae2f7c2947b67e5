package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"dataconta/internal/statement"
)

const (
	conceptWidth = 50
	amountWidth  = 18
	pctWidth     = 10
)

// writeStatementText generates a human-readable console statement
func (rg *ReportGenerator) writeStatementText(s *statement.IncomeStatement, writer io.Writer) error {
	ew := &errWriter{w: writer}
	compare := s.HasComparison()

	ew.printf("ESTADO DE RESULTADOS\n")
	ew.printf("Período: %s\n", s.Current.Label())
	if compare {
		ew.printf("Comparación: %s\n", s.Comparison.Label())
	}
	ew.printf("Generado: %s\n\n", s.GeneratedAt.Format(time.RFC3339))

	ew.printf("%-*s %*s", conceptWidth, "CONCEPTO", amountWidth, "PERÍODO ACTUAL")
	if compare {
		ew.printf(" %*s %*s %*s", amountWidth, "PERÍODO ANTERIOR", amountWidth, "VARIACIÓN $", pctWidth, "VARIACIÓN %")
	}
	ew.printf("\n")

	for _, r := range layoutStatement(s) {
		switch r.kind {
		case rowBlank:
			ew.printf("\n")
		case rowSection:
			ew.printf("=== %s ===\n", r.label)
		case rowMargin:
			ew.printf("%-*s %*s\n", conceptWidth, r.label, amountWidth, marginPercent(r.margin))
		default:
			if r.kind == rowNet {
				ew.printf("%s\n", strings.Repeat("=", conceptWidth+amountWidth+1))
			}
			ew.printf("%-*s %*s", conceptWidth, truncate(r.label, conceptWidth), amountWidth, rg.currency(r.current))
			if compare {
				ew.printf(" %*s %*s %*s",
					amountWidth, rg.optionalCurrency(r.prior),
					amountWidth, rg.optionalCurrency(r.variance()),
					pctWidth, percent(r.percentVariance()))
			}
			ew.printf("\n")
		}
	}

	return ew.err
}

// writeStatementCSV writes one record per statement line with plain decimal amounts
func (rg *ReportGenerator) writeStatementCSV(s *statement.IncomeStatement, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	headers := []string{"concepto", "codigo", "periodo_actual", "periodo_anterior", "variacion", "variacion_pct"}
	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range layoutStatement(s) {
		var record []string
		switch r.kind {
		case rowBlank, rowSection:
			continue
		case rowMargin:
			record = []string{r.label, "", r.margin.StringFixed(2), "", "", ""}
		default:
			record = []string{
				strings.TrimSpace(r.label),
				r.code,
				r.current.String(),
				optionalString(r.prior, -1),
				optionalString(r.variance(), -1),
				optionalString(r.percentVariance(), 2),
			}
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write statement record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// errWriter keeps the first write error so formatted output can be
// written without checking every call
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
