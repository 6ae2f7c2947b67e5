package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"dataconta/internal/models"
	"dataconta/internal/reporter"
	"dataconta/pkg/logger"
)

// invoiceFilePrefix names xlsx exports saved without --output-file
const invoiceFilePrefix = "facturas"

var (
	invoiceStart      string
	invoiceEnd        string
	invoiceNIT        string
	invoiceFormat     string
	invoiceOutputFile string
)

var invoicesCmd = &cobra.Command{
	Use:     "invoices",
	Aliases: []string{"facturas"},
	Short:   "List or export the sales invoices of a period",
	Long: `List the Siigo sales invoices of a period, optionally for one customer.

Each row shows the customer NIT and whether its check digit (DIAN modulo 11)
is valid. Spreadsheets without --output-file are saved in the output directory.

Examples:
  dataconta invoices --start 2024-03-01 --end 2024-03-31
  dataconta invoices --start 2024-03-01 --end 2024-03-31 --nit 900123456
  dataconta invoices --start 2024-03-01 --end 2024-03-31 --format csv --output-file facturas.csv`,
	RunE: runInvoices,
}

func init() {
	rootCmd.AddCommand(invoicesCmd)

	invoicesCmd.Flags().StringVar(&invoiceStart, "start", "", "period start date (YYYY-MM-DD, required)")
	invoicesCmd.Flags().StringVar(&invoiceEnd, "end", "", "period end date (YYYY-MM-DD, required)")
	invoicesCmd.Flags().StringVar(&invoiceNIT, "nit", "", "only invoices of this customer identification")
	invoicesCmd.Flags().StringVarP(&invoiceFormat, "format", "f", string(reporter.FormatConsole), "output format: console, json, csv, xlsx")
	invoicesCmd.Flags().StringVarP(&invoiceOutputFile, "output-file", "o", "", "output file path (default: stdout)")
	invoicesCmd.Flags().String("output-dir", "output", "directory for xlsx exports without --output-file")

	invoicesCmd.MarkFlagRequired("start")
	invoicesCmd.MarkFlagRequired("end")

	bindConfigKey(invoicesCmd.Flags(), "output-dir", "report.output_dir")
}

func runInvoices(cmd *cobra.Command, _ []string) error {
	if err := checkFormat(invoiceFormat, reporter.FormatConsole, reporter.FormatJSON, reporter.FormatCSV, reporter.FormatXLSX); err != nil {
		return err
	}
	period, err := parsePeriod(invoiceStart, invoiceEnd)
	if err != nil {
		return err
	}
	rc, err := reportConfig(invoiceFormat)
	if err != nil {
		return err
	}
	gen, err := reporter.NewReportGenerator(rc)
	if err != nil {
		return err
	}

	client, err := newSiigoClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var invoices []models.Invoice
	if invoiceNIT != "" {
		invoices, err = client.InvoicesForCustomer(ctx, period.Start(), period.End(), invoiceNIT)
	} else {
		invoices, err = client.Invoices(ctx, period.Start(), period.End())
	}
	if err != nil {
		return err
	}

	path := invoiceOutputFile
	if path == "" && rc.Format == reporter.FormatXLSX {
		path = filepath.Join(rc.OutputDir, fmt.Sprintf("%s_%s%s",
			invoiceFilePrefix, now().Format("20060102_150405"), rc.Format.Extension()))
	}

	out, closeOut, err := createOutput(path, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := gen.WriteInvoices(invoices, out); err != nil {
		closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}

	logger.GetGlobalLogger().WithComponent("cli").WithFields(logger.Fields{
		"invoices": len(invoices),
		"period":   period.String(),
	}).Info("Invoices exported")
	if path != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d facturas exportadas a %s\n", len(invoices), path)
	}
	return nil
}
