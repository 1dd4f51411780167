package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/alejandrodnm/quantengine/internal/adapters/bridge"
	"github.com/alejandrodnm/quantengine/internal/adapters/history"
	"github.com/alejandrodnm/quantengine/internal/adapters/notify"
	"github.com/alejandrodnm/quantengine/internal/adapters/replay"
	"github.com/alejandrodnm/quantengine/internal/application/engine"
	"github.com/alejandrodnm/quantengine/internal/application/engine/live"
	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/ledger"
	"github.com/alejandrodnm/quantengine/internal/ports"
	"github.com/spf13/cobra"
)

const liveAbortWindow = 5 * time.Second

func newLiveCmd(a *app) *cobra.Command {
	var cycles int
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Run the polling trading loop (paper by default)",
		Long: `Runs the trading loop against the HTTP bridge, or against the replay broker
when broker.replay.files is configured. With broker.paper_mode=false orders are
sent to the broker for real.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cycles > 0 {
				a.cfg.Loop.MaxCycles = cycles
			}
			return a.runLive(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&cycles, "cycles", 0, "stop after N cycles (default from config, 0 = unbounded)")
	return cmd
}

func (a *app) runLive(ctx context.Context, out io.Writer) error {
	cfg := a.cfg
	symbols := cfg.Strategy.Symbols

	var (
		broker ports.Broker
		clock  engine.Clock = engine.SystemClock{}
	)
	if len(cfg.Broker.Replay.Files) > 0 {
		rb, err := a.replayBroker()
		if err != nil {
			return err
		}
		broker, clock = rb, rb
		symbols = slices.Sorted(maps.Keys(cfg.Broker.Replay.Files))
		a.logger.Info("live: replaying history", "symbols", symbols, "steps", rb.Remaining())
	} else {
		broker = bridge.NewClient(cfg.Broker.BridgeURL,
			bridge.WithToken(cfg.Broker.BridgeToken),
			bridge.WithLogger(a.logger),
		)
	}

	var executor ports.OrderExecutor
	var book *ledger.Ledger
	if cfg.IsPaper() {
		book = ledger.New(cfg.Broker.InitialBalance, ledger.WithClock(clock.Now))
		executor = live.NewPaperExecutor(book)
	} else {
		if len(cfg.Broker.Replay.Files) == 0 && !confirmLive(ctx, out, symbols, cfg.Risk.RiskPerTradePercent, cfg.Risk.MaxPositions) {
			a.logger.Info("live trading aborted by user")
			return nil
		}
		executor = live.NewBrokerExecutor(broker)
	}

	journal, err := a.openJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	var sink ports.EventSink = notify.NewConsoleWriter(out, a.verbose)
	if cfg.Log.Format == "json" {
		sink = notify.NewLogSink(a.logger)
	}

	strat, err := buildStrategy(cfg.Strategy.Name, cfg.SMAParams())
	if err != nil {
		return err
	}

	eng, err := live.New(broker, executor, live.Config{
		Symbols:       symbols,
		Timeframe:     cfg.Strategy.Timeframe,
		Bars:          cfg.Strategy.Bars,
		Params:        cfg.SMAParams(),
		MinConfidence: cfg.Strategy.MinConfidence,
		PollInterval:  cfg.PollInterval(),
		Limits:        cfg.RiskLimits(),
		Deviation:     cfg.Broker.Deviation,
		MaxCycles:     cfg.Loop.MaxCycles,
		StopFile:      cfg.Loop.StopFile,
	},
		live.WithClock(clock),
		live.WithLogger(a.logger),
		live.WithJournal(journal),
		live.WithEventSink(sink),
		live.WithStrategy(strat),
	)
	if err != nil {
		return err
	}

	a.logger.Info("live: starting",
		"mode", executor.Mode(),
		"symbols", symbols,
		"timeframe", cfg.Strategy.Timeframe,
		"poll", cfg.PollInterval(),
	)
	if err := eng.Run(ctx); err != nil {
		return err
	}

	if book != nil {
		st := book.State()
		fmt.Fprintf(out, "\npaper equity %.2f → %.2f (%d fills, %d open)\n",
			st.StartingEquity, st.CurrentEquity, len(book.Trades()), book.OpenCount())
	}
	a.logger.Info("live: stopped cleanly")
	return nil
}

func (a *app) replayBroker() (*replay.Broker, error) {
	rc := a.cfg.Broker.Replay
	data := make(map[string]domain.Bars, len(rc.Files))
	for sym, path := range rc.Files {
		bars, err := history.LoadCSV(path, history.Options{})
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", sym, err)
		}
		data[sym] = bars
	}
	return replay.New(data, replay.Config{
		InitialBalance: a.cfg.Broker.InitialBalance,
		Spread:         rc.Spread,
		Point:          rc.Point,
		Warmup:         rc.Warmup,
	})
}

// confirmLive avisa de que se enviarán órdenes reales y deja una ventana para
// abortar con Ctrl+C.
func confirmLive(ctx context.Context, out io.Writer, symbols []string, riskPct float64, maxPositions int) bool {
	fmt.Fprintf(out, "\n⚠️  LIVE TRADING MODE: REAL ORDERS WILL BE SENT\n")
	fmt.Fprintf(out, "   Symbols: %v | Risk/trade: %.2f%% | Max positions: %d\n", symbols, riskPct, maxPositions)
	fmt.Fprintf(out, "   Press Ctrl+C within %s to abort...\n\n", liveAbortWindow)

	abortTimer := time.NewTimer(liveAbortWindow)
	defer abortTimer.Stop()
	select {
	case <-abortTimer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
