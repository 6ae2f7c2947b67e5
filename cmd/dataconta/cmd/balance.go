package cmd

import (
	"github.com/spf13/cobra"

	"dataconta/internal/models"
	"dataconta/internal/reporter"
	"dataconta/internal/statement"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

var (
	balanceDate        string
	balanceFormat      string
	balanceResultsFrom string
)

var balanceCmd = &cobra.Command{
	Use:     "balance",
	Aliases: []string{"balance-general"},
	Short:   "Build the balance sheet from the Siigo trial balance",
	Long: `Build the balance sheet (Estado de Situación Financiera) at a cut-off date
from the Siigo trial balance and check the accounting equation
Activo = Pasivo + Patrimonio + Resultado del período.

With --results-from the income statement from that date to the cut-off is
built too, and the report adds ROA, ROE and a check that the balance period
result matches the statement net profit.

Examples:
  dataconta balance
  dataconta balance --date 2024-03-31 --format json
  dataconta balance --date 2024-03-31 --results-from 2024-01-01`,
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVar(&balanceDate, "date", "", "cut-off date (YYYY-MM-DD, default: today)")
	balanceCmd.Flags().StringVarP(&balanceFormat, "format", "f", string(reporter.FormatConsole), "output format: console, json")
	balanceCmd.Flags().StringVar(&balanceResultsFrom, "results-from", "", "start of the income statement period to check against (YYYY-MM-DD)")
}

func runBalance(cmd *cobra.Command, _ []string) error {
	if err := checkFormat(balanceFormat, reporter.FormatConsole, reporter.FormatJSON); err != nil {
		return err
	}

	date := models.Civil(now())
	if balanceDate != "" {
		d, err := models.ParseDate(balanceDate)
		if err != nil {
			return apperrors.DateRangeError(apperrors.CodeInvalidDateFormat, balanceDate, balanceDate, err)
		}
		date = d
	}

	rc, err := reportConfig(balanceFormat)
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
	tb, err := client.TrialBalance(cmd.Context(), date)
	if err != nil {
		return err
	}
	sheet := statement.BuildBalanceSheet(*tb)
	if balanceResultsFrom == "" {
		return gen.WriteBalance(sheet, cmd.OutOrStdout())
	}

	period, err := parsePeriod(balanceResultsFrom, date.Format(models.DateLayout))
	if err != nil {
		return err
	}
	source, err := newLedgerSource()
	if err != nil {
		return err
	}
	data, err := source.Fetch(cmd.Context(), period)
	if err != nil {
		return err
	}
	st, err := statement.Build(period, nil, data, nil, now())
	if err != nil {
		return err
	}

	summary := statement.NewFinancialSummary(st, sheet)
	if !summary.Coherent() {
		logger.GetGlobalLogger().WithComponent("cli").WithFields(logger.Fields{
			"period":     period.String(),
			"difference": summary.ResultDifference().String(),
		}).Warn("Balance period result does not match the income statement")
	}
	return gen.WriteFinancialSummary(summary, cmd.OutOrStdout())
}
