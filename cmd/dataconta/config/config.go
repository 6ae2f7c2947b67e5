// Package config layers DataConta settings with viper and builds the typed
// configuration of every component.
//
// Precedence, highest first: command-line flags, environment variables
// (DATACONTA_ prefix, plus the historical SIIGO_* names), the --config file,
// then defaults. A .env file in the working directory is loaded into the
// environment before anything is read.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"dataconta/internal/kpi"
	"dataconta/internal/ledger"
	"dataconta/internal/puc"
	"dataconta/internal/reporter"
	"dataconta/internal/server"
	"dataconta/internal/siigo"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

// EnvPrefix prefixes every environment variable derived from a config key
const EnvPrefix = "DATACONTA"

// Source types
const (
	SourceSiigo = "siigo"
	SourceCSV   = "csv"
	SourceDemo  = "demo"
)

// legacyEnv maps config keys to the environment variable names used by
// existing DataConta deployments
var legacyEnv = map[string]string{
	"siigo.base_url":    "SIIGO_API_URL",
	"siigo.username":    "SIIGO_USER",
	"siigo.access_key":  "SIIGO_ACCESS_KEY",
	"siigo.partner_id":  "PARTNER_ID",
	"report.output_dir": "OUTPUT_DIR",
	"cache.addr":        "REDIS_ADDR",
}

// LoadDotEnv loads environment variables from the given files, or .env when
// none is given. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "dotenv", f, err).
				WithSuggestion("fix the syntax of the .env file (KEY=value per line)")
		}
	}
	return nil
}

// Init sets defaults and environment bindings on v and reads cfgFile when given
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, key, nil, err)
		}
	}

	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return apperrors.FileError(apperrors.CodeFileNotFound, cfgFile, err)
		}
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "config", cfgFile, err).
			WithSuggestion("check the syntax of the configuration file (yaml, toml or json)")
	}
	return nil
}

// SetDefaults registers the default value of every known key
func SetDefaults(v *viper.Viper) {
	sc := siigo.DefaultConfig()
	v.SetDefault("siigo.base_url", sc.BaseURL)
	v.SetDefault("siigo.username", "")
	v.SetDefault("siigo.access_key", "")
	v.SetDefault("siigo.partner_id", sc.PartnerID)
	v.SetDefault("siigo.timeout", sc.Timeout)
	v.SetDefault("siigo.page_size", sc.PageSize)
	v.SetDefault("siigo.page_delay", sc.PageDelay)

	rc := reporter.DefaultReportConfig()
	v.SetDefault("report.format", string(rc.Format))
	v.SetDefault("report.output_dir", rc.OutputDir)
	v.SetDefault("report.locale", rc.Locale)
	v.SetDefault("report.csv_delimiter", string(rc.CSVDelimiter))

	v.SetDefault("source.type", SourceSiigo)
	v.SetDefault("source.file", "")
	v.SetDefault("source.demo_fallback", false)
	v.SetDefault("source.csv_max_errors", ledger.DefaultCSVConfig().MaxErrors)
	v.SetDefault("source.csv_strict", false)
	v.SetDefault("puc.chart", "")

	v.SetDefault("cache.addr", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", kpi.DefaultCacheTTL)

	srv := server.DefaultConfig()
	v.SetDefault("server.addr", srv.Addr)
	v.SetDefault("server.rate_limit", srv.RateLimit)
	v.SetDefault("server.read_timeout", srv.ReadTimeout)
	v.SetDefault("server.write_timeout", srv.WriteTimeout)

	lc := logger.DefaultConfig()
	v.SetDefault("log.level", string(lc.Level))
	v.SetDefault("log.format", string(lc.Format))
	// reports may go to stdout, so logs default to stderr
	v.SetDefault("log.output", string(logger.StderrOutput))
	v.SetDefault("log.file", "")
	v.SetDefault("verbose", false)
}

// Siigo returns the API client settings. The client validates them.
func Siigo(v *viper.Viper) siigo.Config {
	return siigo.Config{
		BaseURL:   v.GetString("siigo.base_url"),
		Username:  v.GetString("siigo.username"),
		AccessKey: v.GetString("siigo.access_key"),
		PartnerID: v.GetString("siigo.partner_id"),
		Timeout:   v.GetDuration("siigo.timeout"),
		PageSize:  v.GetInt("siigo.page_size"),
		PageDelay: v.GetDuration("siigo.page_delay"),
	}
}

// Report returns the validated report settings
func Report(v *viper.Viper) (*reporter.ReportConfig, error) {
	cfg := reporter.DefaultReportConfig()
	cfg.Format = reporter.OutputFormat(strings.ToLower(v.GetString("report.format")))
	cfg.OutputDir = v.GetString("report.output_dir")
	cfg.Locale = v.GetString("report.locale")

	delim := v.GetString("report.csv_delimiter")
	if utf8.RuneCountInString(delim) != 1 {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "report.csv_delimiter", delim, nil).
			WithSuggestion("use a single character such as ',' or ';'")
	}
	cfg.CSVDelimiter, _ = utf8.DecodeRuneInString(delim)

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "report", cfg.Format, err)
	}
	return cfg, nil
}

// Cache returns the Redis settings of the KPI cache
func Cache(v *viper.Viper) kpi.CacheConfig {
	return kpi.CacheConfig{
		Addr:     v.GetString("cache.addr"),
		Password: v.GetString("cache.password"),
		DB:       v.GetInt("cache.db"),
		TTL:      v.GetDuration("cache.ttl"),
	}
}

// Server returns the validated HTTP listener settings
func Server(v *viper.Viper) (server.Config, error) {
	cfg := server.Config{
		Addr:         v.GetString("server.addr"),
		RateLimit:    v.GetInt("server.rate_limit"),
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
	}
	if err := cfg.Validate(); err != nil {
		return server.Config{}, err
	}
	return cfg, nil
}

// Logger returns the validated logger settings. verbose forces debug level
// and log.file switches output to that file.
func Logger(v *viper.Viper) (*logger.Config, error) {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.Level(strings.ToLower(v.GetString("log.level")))
	cfg.Format = logger.Format(strings.ToLower(v.GetString("log.format")))
	cfg.Output = logger.Output(strings.ToLower(v.GetString("log.output")))

	if v.GetBool("verbose") {
		cfg.Level = logger.DebugLevel
	}
	if file := v.GetString("log.file"); file != "" {
		cfg.Output = logger.FileOutput
		cfg.File = file
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "log", nil, err).
			WithSuggestion("levels: debug, info, warn, error; formats: text, json")
	}
	return cfg, nil
}

// SourceConfig selects where accounting data comes from
type SourceConfig struct {
	Type         string
	File         string
	DemoFallback bool
	ChartFile    string
}

// Source returns the validated data source settings
func Source(v *viper.Viper) (SourceConfig, error) {
	cfg := SourceConfig{
		Type:         strings.ToLower(v.GetString("source.type")),
		File:         v.GetString("source.file"),
		DemoFallback: v.GetBool("source.demo_fallback"),
		ChartFile:    v.GetString("puc.chart"),
	}

	switch cfg.Type {
	case SourceSiigo, SourceDemo:
	case SourceCSV:
		if cfg.File == "" {
			return SourceConfig{}, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "source.file", nil, nil).
				WithSuggestion("pass --source-file with the path of the line-item CSV")
		}
	default:
		return SourceConfig{}, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "source.type", cfg.Type, nil).
			WithSuggestion("use one of: siigo, csv, demo")
	}
	return cfg, nil
}

// Chart returns the PUC chart, applying the configured override file
func (c SourceConfig) Chart() (*puc.Chart, error) {
	if c.ChartFile == "" {
		return puc.DefaultChart(), nil
	}
	return puc.LoadChart(c.ChartFile)
}

// CSV returns the CSV parsing settings of the line-item source
func CSV(v *viper.Viper) ledger.CSVConfig {
	cfg := ledger.DefaultCSVConfig()
	if n := v.GetInt("source.csv_max_errors"); n > 0 {
		cfg.MaxErrors = n
	}
	cfg.Strict = v.GetBool("source.csv_strict")
	return cfg
}
