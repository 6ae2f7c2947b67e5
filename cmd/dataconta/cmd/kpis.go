package cmd

import (
	"github.com/spf13/cobra"

	"dataconta/cmd/dataconta/config"
	"dataconta/internal/kpi"
	"dataconta/internal/reporter"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

var (
	kpiStart  string
	kpiEnd    string
	kpiFormat string
)

var kpisCmd = &cobra.Command{
	Use:   "kpis",
	Short: "Compute sales indicators from the invoices of a period",
	Long: `Compute sales indicators (total sales, average ticket, sales per customer
and concentration of the top customer) from the Siigo invoices of a period.

Results are cached in Redis when cache.addr (or REDIS_ADDR) is configured.

Examples:
  dataconta kpis --start 2024-01-01 --end 2024-03-31
  dataconta kpis --start 2024-01-01 --end 2024-03-31 --format json`,
	RunE: runKPIs,
}

func init() {
	rootCmd.AddCommand(kpisCmd)

	kpisCmd.Flags().StringVar(&kpiStart, "start", "", "period start date (YYYY-MM-DD, required)")
	kpisCmd.Flags().StringVar(&kpiEnd, "end", "", "period end date (YYYY-MM-DD, required)")
	kpisCmd.Flags().StringVarP(&kpiFormat, "format", "f", string(reporter.FormatConsole), "output format: console, json")

	kpisCmd.MarkFlagRequired("start")
	kpisCmd.MarkFlagRequired("end")
}

func runKPIs(cmd *cobra.Command, _ []string) error {
	if err := checkFormat(kpiFormat, reporter.FormatConsole, reporter.FormatJSON); err != nil {
		return err
	}
	period, err := parsePeriod(kpiStart, kpiEnd)
	if err != nil {
		return err
	}
	rc, err := reportConfig(kpiFormat)
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
	cache := kpi.NewCacheFromConfig(config.Cache(settings))
	defer func() {
		if err := cache.Close(); err != nil {
			logger.GetGlobalLogger().WithComponent("cli").WithError(err).Warn("Failed to close cache")
		}
	}()

	k, err := kpi.NewService(client, cache).SalesKPIs(cmd.Context(), period)
	if err != nil {
		return err
	}
	return gen.WriteKPIs(k, cmd.OutOrStdout())
}

// checkFormat rejects formats a command cannot render
func checkFormat(format string, allowed ...reporter.OutputFormat) error {
	for _, f := range allowed {
		if reporter.OutputFormat(format) == f {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, f := range allowed {
		names[i] = string(f)
	}
	return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "format", format, nil).
		WithContext("allowed", names)
}
