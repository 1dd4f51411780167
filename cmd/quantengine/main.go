package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/quantengine/config"
	"github.com/alejandrodnm/quantengine/internal/adapters/storage"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

// app es el estado compartido por los subcomandos tras cargar la config.
type app struct {
	configPath string
	verbose    bool
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "quantengine",
		Short: "SMA crossover backtester and live/paper trading loop",
		Long: `quantengine generates long/flat SMA crossover signals, backtests them over
historical bars and runs a polling trading loop under daily risk limits.

Examples:
  quantengine backtest --file data/eurusd_h1.csv --fast 10 --slow 30
  quantengine sweep --file data/eurusd_h1.csv --top 5
  quantengine live
  quantengine report --days 7`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "config/config.yaml", "path to config file (empty = defaults + env)")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "set log level to debug")
	root.PersistentFlags().StringVar(&a.logFormat, "format", "", "log format: text|json (overrides config)")

	root.AddCommand(
		newBacktestCmd(a),
		newSweepCmd(a),
		newLiveCmd(a),
		newReportCmd(a),
		newRunsCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config %q: %w", a.configPath, err)
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	a.cfg = cfg
	a.logger = setupLogger(cfg.Log, logOut)
	return nil
}

func (a *app) openJournal() (*storage.SQLiteJournal, error) {
	j, err := storage.NewSQLiteJournal(a.cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage %q: %w", a.cfg.Storage.DSN, err)
	}
	return j, nil
}

func setupLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
