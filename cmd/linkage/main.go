package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jward/linkage"
	"github.com/jward/linkage/internal/config"
)

var (
	flagConfig      string
	flagDB          string
	flagCorpus      string
	flagVerbose     bool
	flagMetricsFile string
	flagFormat      string
)

var (
	cfg    *config.Config
	logger = zap.NewNop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "linkage",
	Short:         "Link per-project fact bundles into one cross-project symbol graph",
	Long:          "Linkage imports fact bundles of platform libraries, archives and source projects into a SQLite symbol store, resolving every name to the project that defines it.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = c
		l, err := buildLogger(cfg.Log, flagVerbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .linkage/linkage.db)")
	rootCmd.PersistentFlags().StringVar(&flagCorpus, "corpus", "", "directory holding one fact bundle per project")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus metrics to this file after the command")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")

	rootCmd.AddCommand(initializeCmd)
	rootCmd.AddCommand(platformCmd)
	rootCmd.AddCommand(archivesCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(queryCmd)
}

// loadConfig reads the config file and environment, then applies the
// persistent flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		c.DB = flagDB
	}
	if flags.Changed("corpus") {
		c.Corpus = flagCorpus
	}
	if flags.Changed("metrics-file") {
		c.MetricsFile = flagMetricsFile
	}
	return c, nil
}

func buildLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if strings.EqualFold(lc.Format, "console") {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	level := lc.Level
	if verbose {
		level = "debug"
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

// openImporter opens the configured database, creating its directory.
func openImporter(opts ...linkage.Option) (*linkage.Importer, error) {
	if dir := filepath.Dir(cfg.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	opts = append([]linkage.Option{linkage.WithLogger(logger)}, opts...)
	imp, err := linkage.New(cfg.DB, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return imp, nil
}
