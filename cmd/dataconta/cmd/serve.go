package cmd

import (
	"github.com/spf13/cobra"

	"dataconta/cmd/dataconta/config"
	"dataconta/internal/kpi"
	"dataconta/internal/reports"
	"dataconta/internal/server"
	"dataconta/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reports over HTTP",
	Long: `Serve the income statement, sales indicators, invoices and balance sheet
as a JSON API under /api/v1, with per-IP rate limiting.

Examples:
  dataconta serve
  dataconta serve --addr 127.0.0.1:9090 --rate-limit 120
  curl 'localhost:8080/api/v1/estado-resultados?start=2024-01-01&end=2024-03-31'`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", server.DefaultAddr, "listen address")
	serveCmd.Flags().Int("rate-limit", server.DefaultRateLimit, "requests per minute per client IP (0 disables)")
	serveCmd.Flags().String("source", "siigo", "statement data source: siigo, csv, demo")
	serveCmd.Flags().String("source-file", "", "line-item CSV for --source csv")
	serveCmd.Flags().Bool("allow-demo-fallback", false, "serve flagged demo data when the data source fails")

	bindConfigKey(serveCmd.Flags(), "addr", "server.addr")
	bindConfigKey(serveCmd.Flags(), "rate-limit", "server.rate_limit")
	bindConfigKey(serveCmd.Flags(), "source", "source.type")
	bindConfigKey(serveCmd.Flags(), "source-file", "source.file")
	bindConfigKey(serveCmd.Flags(), "allow-demo-fallback", "source.demo_fallback")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Server(settings)
	if err != nil {
		return err
	}
	rc, err := config.Report(settings)
	if err != nil {
		return err
	}

	source, err := newLedgerSource()
	if err != nil {
		return err
	}
	client, err := newSiigoClient()
	if err != nil {
		return err
	}

	cache := kpi.NewCacheFromConfig(config.Cache(settings))
	log := logger.GetGlobalLogger().WithComponent("cli")
	defer func() {
		if err := cache.Close(); err != nil {
			log.WithError(err).Warn("Failed to close cache")
		}
	}()

	srv, err := server.New(cfg, server.Deps{
		Statements: reports.NewService(source, nil, now),
		KPIs:       kpi.NewService(client, cache),
		Siigo:      client,
		Report:     rc,
		Now:        now,
	})
	if err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"addr":       cfg.Addr,
		"rate_limit": cfg.RateLimit,
		"source":     source.Name(),
		"cache":      cache.Enabled(),
	}).Info("Starting DataConta API")
	return srv.ListenAndServe(cmd.Context())
}
