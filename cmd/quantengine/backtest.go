package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alejandrodnm/quantengine/internal/adapters/history"
	"github.com/alejandrodnm/quantengine/internal/adapters/notify"
	"github.com/alejandrodnm/quantengine/internal/backtest"
	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/strategy"
	"github.com/spf13/cobra"
)

type backtestFlags struct {
	file   string
	symbol string
	column string
	cash   float64
	size   float64
	noSave bool
}

func (f *backtestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "path to OHLCV CSV (time,open,high,low,close,volume) (required)")
	cmd.Flags().StringVarP(&f.symbol, "symbol", "s", "", "symbol label stored with the run (default: file name)")
	cmd.Flags().StringVar(&f.column, "column", "", "price column (default from config)")
	cmd.Flags().Float64Var(&f.cash, "cash", 0, "initial cash (default from config)")
	cmd.Flags().Float64Var(&f.size, "size", 0, "position size multiplier (default from config)")
	cmd.MarkFlagRequired("file")
}

// backtester carga el CSV y construye el simulador con los overrides de flags.
func (f *backtestFlags) backtester(a *app) (*backtest.Backtester, error) {
	bars, err := history.LoadCSV(f.file, history.Options{})
	if err != nil {
		return nil, err
	}
	cfg := backtest.Config{
		PriceColumn:  a.cfg.Backtest.PriceColumn,
		InitialCash:  a.cfg.Backtest.InitialCash,
		PositionSize: a.cfg.Backtest.PositionSize,
	}
	if f.column != "" {
		cfg.PriceColumn = f.column
	}
	if f.cash != 0 {
		cfg.InitialCash = f.cash
	}
	if f.size != 0 {
		cfg.PositionSize = f.size
	}
	return backtest.NewBacktester(bars, cfg)
}

func (f *backtestFlags) label() string {
	if f.symbol != "" {
		return f.symbol
	}
	return strings.TrimSuffix(filepath.Base(f.file), filepath.Ext(f.file))
}

// buildStrategy registra las reglas disponibles con los parámetros dados y
// devuelve la configurada.
func buildStrategy(name string, p strategy.SMAParams) (strategy.Strategy, error) {
	sma, err := strategy.NewSMACrossover(p)
	if err != nil {
		return nil, err
	}
	reg := strategy.NewRegistry()
	reg.Register(sma)
	s, ok := reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrConfiguration, name)
	}
	return s, nil
}

func newBacktestCmd(a *app) *cobra.Command {
	var (
		flags      backtestFlags
		fast, slow int
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest the SMA crossover over a CSV of bars",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := a.cfg.SMAParams()
			if fast > 0 {
				p.Fast = fast
			}
			if slow > 0 {
				p.Slow = slow
			}
			s, err := buildStrategy(a.cfg.Strategy.Name, p)
			if err != nil {
				return err
			}
			bt, err := flags.backtester(a)
			if err != nil {
				return err
			}
			res, err := bt.Run(s.Signals)
			if err != nil {
				return err
			}
			run := bt.NewRun(flags.label(), filepath.Base(flags.file), p, res)
			notify.NewConsoleWriter(cmd.OutOrStdout(), a.verbose).PrintBacktest(run)

			if flags.noSave {
				return nil
			}
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			defer j.Close()
			if err := j.SaveBacktestRun(cmd.Context(), run); err != nil {
				return fmt.Errorf("save run: %w", err)
			}
			a.logger.Info("backtest saved", "run_id", run.RunID, "dsn", a.cfg.Storage.DSN)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&fast, "fast", 0, "fast SMA window (default from config)")
	cmd.Flags().IntVar(&slow, "slow", 0, "slow SMA window (default from config)")
	cmd.Flags().BoolVar(&flags.noSave, "no-save", false, "do not store the run in the journal")
	return cmd
}

func newSweepCmd(a *app) *cobra.Command {
	var (
		flags    backtestFlags
		fastGrid []int
		slowGrid []int
		workers  int
		top      int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Backtest a grid of SMA windows in parallel and rank them by return",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(fastGrid) == 0 {
				fastGrid = a.cfg.Backtest.FastGrid
			}
			if len(slowGrid) == 0 {
				slowGrid = a.cfg.Backtest.SlowGrid
			}
			if workers <= 0 {
				workers = a.cfg.Backtest.Workers
			}
			grid := backtest.Grid(fastGrid, slowGrid)
			if len(grid) == 0 {
				return fmt.Errorf("sweep: no valid fast<slow combination in %v x %v", fastGrid, slowGrid)
			}
			bt, err := flags.backtester(a)
			if err != nil {
				return err
			}
			a.logger.Info("sweep starting", "combinations", len(grid), "workers", workers)
			results, err := bt.Sweep(cmd.Context(), grid, workers)
			if err != nil {
				return err
			}
			notify.NewConsoleWriter(cmd.OutOrStdout(), a.verbose).PrintSweep(results, top)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntSliceVar(&fastGrid, "fast-grid", nil, "fast windows to try (default from config)")
	cmd.Flags().IntSliceVar(&slowGrid, "slow-grid", nil, "slow windows to try (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel backtests (default from config)")
	cmd.Flags().IntVar(&top, "top", 10, "rows to print (0 = all)")
	return cmd
}
