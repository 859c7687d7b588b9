package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurou927/pg-composer/internal/config"
	"github.com/hurou927/pg-composer/internal/logger"
)

var (
	cfgPath   string
	logLevel  string
	logFormat string
	cfg       *config.Config
	log       *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pg-composer",
	Short: "Compose relational queries over PostgreSQL record types",
	Long: `pg-composer loads record types and their relationships from a YAML config (or
introspects them from PostgreSQL), composes queries as chains of commands and
renders them into parameterized SQL. Domain queries such as
posts(status: "open") { comments { author } } are compiled into joins.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgPath == "" {
			return fmt.Errorf("--config is required")
		}
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		log, err = logger.New(cfg.Log.Format, cfg.Log.Level)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (required)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error or none (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
