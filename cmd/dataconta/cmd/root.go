package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dataconta/cmd/dataconta/config"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
	logFile   string

	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// settings holds the layered configuration of the running command
	settings = viper.New()
)

// configKeyAnnotation marks flags that override a config key
const configKeyAnnotation = "dataconta_config_key"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dataconta",
	Short: "Estado de Resultados from Siigo accounting data",
	Long: `DataConta builds the Colombian income statement (Estado de Resultados)
from Siigo accounting data, compares it against a previous period and renders
it as a spreadsheet, JSON or console text. It also lists invoices, computes
sales indicators, builds the balance sheet and serves everything over HTTP.

Credentials are read from SIIGO_USER, SIIGO_ACCESS_KEY and PARTNER_ID (or the
DATACONTA_SIIGO_* variables), a .env file, or the --config file.

Examples:
  dataconta estado-resultados --start 2024-01-01 --end 2024-03-31
  dataconta estado-resultados --start 2024-01-01 --end 2024-03-31 --comparison prior_year --format json
  dataconta invoices --start 2024-03-01 --end 2024-03-31 --format csv --output-file facturas.csv
  dataconta serve --addr :8080`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initSettings,
}

// Execute runs the command tree with ctx. This is called by main.main().
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	bindConfigKey(rootCmd.PersistentFlags(), "verbose", "verbose")
	bindConfigKey(rootCmd.PersistentFlags(), "log-level", "log.level")
	bindConfigKey(rootCmd.PersistentFlags(), "log-format", "log.format")
	bindConfigKey(rootCmd.PersistentFlags(), "log-file", "log.file")
}

// bindConfigKey makes flag name override key when set on the command line
func bindConfigKey(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

// initSettings loads .env, defaults, environment and the config file, binds
// the flags of the executing command and installs the global logger
func initSettings(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	v := viper.New()
	if err := config.Init(v, cfgFile); err != nil {
		return err
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[configKeyAnnotation]
		if !ok || len(keys) == 0 || bindErr != nil {
			return
		}
		if err := v.BindPFlag(keys[0], f); err != nil {
			bindErr = apperrors.ConfigurationError(apperrors.CodeInvalidConfig, keys[0], f.Name, err)
		}
	})
	if bindErr != nil {
		return bindErr
	}
	settings = v

	lc, err := config.Logger(v)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(lc)
	if err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "log", lc.File, err)
	}
	logger.SetGlobalLogger(log)

	if used := v.ConfigFileUsed(); used != "" {
		log.WithField("config", used).Debug("Using config file")
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
