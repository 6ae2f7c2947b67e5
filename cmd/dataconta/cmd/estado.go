package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"dataconta/cmd/dataconta/config"
	"dataconta/internal/reporter"
	"dataconta/internal/reports"
	"dataconta/internal/statement"
	"dataconta/pkg/logger"
)

// Flags for the estado-resultados command
var (
	estadoStart      string
	estadoEnd        string
	comparison       string
	compareStart     string
	compareEnd       string
	estadoOutputFile string
	strict           bool
	showProgress     bool
)

// estadoCmd represents the estado-resultados command
var estadoCmd = &cobra.Command{
	Use:     "estado-resultados",
	Aliases: []string{"estado", "income-statement"},
	Short:   "Generate the Estado de Resultados of a period",
	Long: `Generate the income statement (Estado de Resultados) of a period and
compare it with a previous one.

The comparison period is derived from --comparison:
  previous_period  the same number of days right before the period (default)
  prior_year       the same dates one year earlier
  custom           --compare-start and --compare-end
  none             no comparison columns

Examples:
  # First quarter against the last quarter of the previous year
  dataconta estado-resultados --start 2024-01-01 --end 2024-03-31

  # Against the same quarter of 2023, as JSON
  dataconta estado-resultados --start 2024-01-01 --end 2024-03-31 \
    --comparison prior_year --format json --output-file q1.json

  # From an exported line-item CSV instead of the Siigo API
  dataconta estado-resultados --start 2024-01-01 --end 2024-03-31 \
    --source csv --source-file movimientos.csv --format console`,
	RunE: runEstado,
}

func init() {
	rootCmd.AddCommand(estadoCmd)

	flags := estadoCmd.Flags()

	// Period flags
	flags.StringVar(&estadoStart, "start", "", "period start date (YYYY-MM-DD, required)")
	flags.StringVar(&estadoEnd, "end", "", "period end date (YYYY-MM-DD, required)")
	flags.StringVar(&comparison, "comparison", string(statement.PreviousPeriod), "comparison: previous_period, prior_year, custom, none")
	flags.StringVar(&compareStart, "compare-start", "", "comparison start date for --comparison custom")
	flags.StringVar(&compareEnd, "compare-end", "", "comparison end date for --comparison custom")

	// Output flags
	flags.StringP("format", "f", string(reporter.FormatXLSX), "output format: xlsx, console, json, csv")
	flags.String("output-dir", "output", "directory for timestamped reports")
	flags.StringVarP(&estadoOutputFile, "output-file", "o", "", "write the report to this file instead")

	// Source flags
	flags.String("source", "siigo", "data source: siigo, csv, demo")
	flags.String("source-file", "", "line-item CSV for --source csv")
	flags.String("chart", "", "YAML chart of accounts override")
	flags.Bool("allow-demo-fallback", false, "serve flagged demo data when the data source fails")

	flags.BoolVar(&strict, "strict", false, "fail when totals exceed the sanity threshold")
	flags.BoolVar(&showProgress, "progress", false, "show progress indicators")

	estadoCmd.MarkFlagRequired("start")
	estadoCmd.MarkFlagRequired("end")

	bindConfigKey(flags, "format", "report.format")
	bindConfigKey(flags, "output-dir", "report.output_dir")
	bindConfigKey(flags, "source", "source.type")
	bindConfigKey(flags, "source-file", "source.file")
	bindConfigKey(flags, "chart", "puc.chart")
	bindConfigKey(flags, "allow-demo-fallback", "source.demo_fallback")
}

func runEstado(cmd *cobra.Command, _ []string) error {
	mode, err := statement.ParseComparisonMode(comparison)
	if err != nil {
		return err
	}

	source, err := newLedgerSource()
	if err != nil {
		return err
	}

	rc, err := reportConfig("")
	if err != nil {
		return err
	}
	renderer, err := statementRenderer(rc, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	service := reports.NewService(source, renderer, now)
	if showProgress {
		stderr := cmd.ErrOrStderr()
		service.AddProgressCallback(func(p reports.Progress) {
			fmt.Fprintf(stderr, "\r[%d/%d] %-28s (%.1f%% complete)",
				p.CompletedSteps, p.TotalSteps, p.CurrentStep, p.PercentComplete)
			if p.CompletedSteps == p.TotalSteps {
				fmt.Fprintln(stderr)
			}
		})
	}

	result, err := service.GenerateIncomeStatement(cmd.Context(), reports.Request{
		Start:        estadoStart,
		End:          estadoEnd,
		Mode:         mode,
		CompareStart: compareStart,
		CompareEnd:   compareEnd,
		Strict:       strict,
	})
	if err != nil {
		if showProgress {
			fmt.Fprintln(cmd.ErrOrStderr())
		}
		return err
	}

	stderr := cmd.ErrOrStderr()
	if result.DemoData || result.Source == config.SourceDemo {
		fmt.Fprintln(stderr, "ATENCIÓN: el reporte contiene DATOS DE DEMOSTRACIÓN, no información contable real.")
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(stderr, "Advertencia: %s\n", w)
	}
	if result.OutputPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Reporte generado: %s\n", result.OutputPath)
	}

	logger.GetGlobalLogger().WithComponent("cli").WithFields(logger.Fields{
		"report_id": result.ID,
		"duration":  result.Duration.String(),
	}).Debug("Command completed")
	return nil
}

// statementRenderer picks where the statement goes: the --output-file path,
// stdout for console output, or a timestamped file with fallbacks
func statementRenderer(rc *reporter.ReportConfig, stdout io.Writer) (reports.Renderer, error) {
	if estadoOutputFile == "" && rc.Format != reporter.FormatConsole {
		safe, err := reporter.NewSafeReportGenerator(rc, logger.GetGlobalLogger())
		if err != nil {
			return nil, err
		}
		return safe, nil
	}

	gen, err := reporter.NewReportGenerator(rc)
	if err != nil {
		return nil, err
	}
	if estadoOutputFile != "" {
		return pathRenderer{gen: gen, path: estadoOutputFile}, nil
	}
	return writerRenderer{gen: gen, w: stdout}, nil
}

type pathRenderer struct {
	gen  *reporter.ReportGenerator
	path string
}

func (r pathRenderer) SaveStatementSafely(s *statement.IncomeStatement) (string, error) {
	if err := r.gen.SaveStatementAs(s, r.path); err != nil {
		return "", err
	}
	return r.path, nil
}

type writerRenderer struct {
	gen *reporter.ReportGenerator
	w   io.Writer
}

func (r writerRenderer) SaveStatementSafely(s *statement.IncomeStatement) (string, error) {
	return "", r.gen.WriteStatement(s, r.w)
}
