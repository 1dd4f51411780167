package live_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/quantengine/internal/application/engine/live"
	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/ledger"
	"github.com/alejandrodnm/quantengine/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func barsFrom(closes ...float64) domain.Bars {
	bars := make(domain.Bars, len(closes))
	first := t0.Add(-time.Duration(len(closes)) * 5 * time.Minute)
	for i, c := range closes {
		bars[i] = domain.PriceBar{Time: first.Add(time.Duration(i) * 5 * time.Minute), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

// fast=2/slow=4 cruza al alza en la última vela: BUY con confianza 0.25/12.
func crossUpBars() domain.Bars { return barsFrom(10, 10, 10, 10, 9, 8, 12) }

// Sin cruce en la última vela: HOLD.
func holdBars() domain.Bars { return barsFrom(10, 11, 12, 13, 14, 15, 16, 17) }

func baseConfig(symbols ...string) live.Config {
	return live.Config{
		Symbols:       symbols,
		Timeframe:     "M5",
		Params:        strategy.SMAParams{Fast: 2, Slow: 4},
		MinConfidence: 0.01,
		PollInterval:  60 * time.Second,
		Limits: domain.RiskLimits{
			MaxDailyLoss:         100,
			MaxDailyProfit:       250,
			MaxPositions:         5,
			RiskPerTradePercent:  1,
			StopLossPips:         20,
			TakeProfitPips:       30,
			TrailingStartPips:    10,
			MaxConsecutiveLosses: 3,
		},
	}
}

type harness struct {
	broker  *mockBroker
	ledger  *ledger.Ledger
	sink    *recordingSink
	journal *mockJournal
	clock   *fakeClock
	engine  *live.Engine
}

func newHarness(t *testing.T, cfg live.Config, mutate ...func(*harness)) *harness {
	t.Helper()
	h := &harness{
		broker:  newMockBroker(),
		sink:    &recordingSink{},
		journal: newMockJournal(),
		clock:   &fakeClock{now: t0},
	}
	h.ledger = ledger.New(10_000, ledger.WithClock(h.clock.Now))
	for _, sym := range cfg.Symbols {
		h.broker.infos[sym] = domain.SymbolInfo{Symbol: sym, Point: 0.01, VolumeMin: 0.01, VolumeStep: 0.01}
	}
	for _, m := range mutate {
		m(h)
	}
	eng, err := live.New(h.broker, live.NewPaperExecutor(h.ledger), cfg,
		live.WithClock(h.clock),
		live.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		live.WithJournal(h.journal),
		live.WithEventSink(h.sink),
	)
	require.NoError(t, err)
	h.engine = eng
	return h
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := baseConfig("EURX")
	cfg.Params = strategy.SMAParams{Fast: 4, Slow: 2}
	_, err := live.New(newMockBroker(), live.NewPaperExecutor(ledger.New(1)), cfg)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = live.New(newMockBroker(), live.NewPaperExecutor(ledger.New(1)), baseConfig())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRunCycle_PaperBuy(t *testing.T) {
	h := newHarness(t, baseConfig("EURX"))
	h.broker.rates["EURX"] = crossUpBars()
	h.broker.ticks["EURX"] = domain.Tick{Symbol: "EURX", Bid: 11.9, Ask: 12.1}

	sum := h.engine.RunCycle(context.Background(), 1)

	assert.Equal(t, 1, sum.SymbolsOK)
	assert.Equal(t, 1, sum.OrdersPlaced)
	assert.False(t, sum.Skipped)

	pos, ok := h.ledger.Position("EURX")
	require.True(t, ok)
	assert.Equal(t, domain.SideBuy, pos.Side)
	// 10000 × 1% / (20 pips × 0.1)
	assert.InDelta(t, 50.0, pos.Volume, 1e-9)
	assert.Equal(t, 12.1, pos.EntryPrice)

	assert.Equal(t, []domain.EventKind{
		domain.EventSignalComputed,
		domain.EventOrderPlaced,
		domain.EventCycleComplete,
	}, h.sink.kinds())
	assert.Equal(t, domain.DirectionBuy, h.sink.events[0].Direction)
	assert.InDelta(t, 0.25/12, h.sink.events[0].Confidence, 1e-9)

	require.Len(t, h.journal.trades, 1)
	assert.Equal(t, domain.ModePaper, h.journal.trades[0].Mode)
	require.NotEmpty(t, h.journal.dailies)
	assert.Equal(t, 1, h.journal.dailies[len(h.journal.dailies)-1].Trades)

	st, ok := h.engine.SymbolState("EURX")
	require.True(t, ok)
	assert.Equal(t, crossUpBars()[6].Time, st.LastSignalTime)
}

func TestRunCycle_HoldAndLowConfidenceSkip(t *testing.T) {
	h := newHarness(t, baseConfig("EURX"))
	h.broker.rates["EURX"] = holdBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 16.9, Ask: 17.1}

	sum := h.engine.RunCycle(context.Background(), 1)
	assert.Zero(t, sum.OrdersPlaced)
	assert.Equal(t, []domain.EventKind{domain.EventSignalComputed, domain.EventCycleComplete}, h.sink.kinds())

	cfg := baseConfig("EURX")
	cfg.MinConfidence = 0.5
	h = newHarness(t, cfg)
	h.broker.rates["EURX"] = crossUpBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 11.9, Ask: 12.1}

	sum = h.engine.RunCycle(context.Background(), 1)
	assert.Zero(t, sum.OrdersPlaced)
	assert.Zero(t, h.ledger.OpenCount())
}

func TestRunCycle_SameBarNotTradedTwice(t *testing.T) {
	h := newHarness(t, baseConfig("EURX"))
	h.broker.rates["EURX"] = crossUpBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 11.9, Ask: 12.1}

	h.engine.RunCycle(context.Background(), 1)
	sum := h.engine.RunCycle(context.Background(), 2)

	assert.Zero(t, sum.OrdersPlaced)
	pos, _ := h.ledger.Position("EURX")
	assert.InDelta(t, 50.0, pos.Volume, 1e-9)
}

func TestRunCycle_MaxPositionsRejects(t *testing.T) {
	cfg := baseConfig("EURX")
	cfg.Limits.MaxPositions = 1
	h := newHarness(t, cfg)
	_, err := h.ledger.Execute("OTHER", domain.SideBuy, 1, 5)
	require.NoError(t, err)
	h.broker.ticks["OTHER"] = domain.Tick{Bid: 5, Ask: 5}
	h.broker.rates["EURX"] = crossUpBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 11.9, Ask: 12.1}

	sum := h.engine.RunCycle(context.Background(), 1)

	assert.Equal(t, 1, sum.Rejections)
	assert.Zero(t, sum.OrdersPlaced)
	assert.Equal(t, 1, h.sink.count(domain.EventRiskRejected))
	_, ok := h.ledger.Position("EURX")
	assert.False(t, ok)
}

func TestRunCycle_DailyLossRejects(t *testing.T) {
	h := newHarness(t, baseConfig("EURX"))
	h.broker.rates["EURX"] = holdBars()
	h.broker.ticks["LOSER"] = domain.Tick{Bid: 50, Ask: 50}
	h.engine.RunCycle(context.Background(), 1)

	// pérdida realizada de 150 después de anclar el día
	_, err := h.ledger.Execute("LOSER", domain.SideBuy, 10, 65)
	require.NoError(t, err)
	_, err = h.ledger.ClosePosition("LOSER", 50)
	require.NoError(t, err)

	h.broker.rates["EURX"] = crossUpBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 11.9, Ask: 12.1}
	sum := h.engine.RunCycle(context.Background(), 2)

	assert.Equal(t, 1, sum.Rejections)
	assert.InDelta(t, -150, sum.DailyPnL, 1e-9)
	require.Equal(t, 1, h.sink.count(domain.EventRiskRejected))
	for _, ev := range h.sink.events {
		if ev.Kind == domain.EventRiskRejected {
			assert.Contains(t, ev.Reason, "daily pnl")
		}
	}
}

func TestRunCycle_SymbolFailuresAreIsolated(t *testing.T) {
	h := newHarness(t, baseConfig("BAD", "PANIC", "EMPTY", "EURX"))
	h.broker.ratesErr["BAD"] = errNoData
	h.broker.panicSymbol = "PANIC"
	h.broker.rates["EURX"] = crossUpBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 11.9, Ask: 12.1}

	sum := h.engine.RunCycle(context.Background(), 1)

	assert.Equal(t, 3, sum.SymbolErrors)
	assert.Equal(t, 1, sum.SymbolsOK)
	assert.Equal(t, 1, sum.OrdersPlaced)
}

func TestRunCycle_AccountUnavailableSkips(t *testing.T) {
	h := newHarness(t, baseConfig("EURX"))
	h.broker.acctErr = errors.New("terminal offline")
	h.broker.rates["EURX"] = crossUpBars()

	sum := h.engine.RunCycle(context.Background(), 1)

	assert.True(t, sum.Skipped)
	assert.Zero(t, sum.SymbolsOK)
	assert.Equal(t, []domain.EventKind{domain.EventCycleComplete}, h.sink.kinds())
}

func TestManage_StopLossClosesAndCountsLoss(t *testing.T) {
	h := newHarness(t, baseConfig("EURX"))
	_, err := h.ledger.Execute("EURX", domain.SideBuy, 1, 100)
	require.NoError(t, err)
	h.broker.rates["EURX"] = holdBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 97.9, Ask: 98.1}

	sum := h.engine.RunCycle(context.Background(), 1)

	assert.Equal(t, 1, sum.PositionsClosed)
	assert.Zero(t, h.ledger.OpenCount())
	assert.InDelta(t, 10_000-2.1, h.ledger.Equity(), 1e-9)

	st, _ := h.engine.SymbolState("EURX")
	assert.Equal(t, 1, st.ConsecutiveLosses)
	assert.Equal(t, 1, h.journal.states["EURX"].ConsecutiveLosses)

	var closed domain.Event
	for _, ev := range h.sink.events {
		if ev.Kind == domain.EventPositionClosed {
			closed = ev
		}
	}
	assert.Equal(t, "stop_loss", closed.Reason)
	assert.InDelta(t, -2.1, closed.PnL, 1e-9)
}

func TestManage_TakeProfitResetsLosses(t *testing.T) {
	h := newHarness(t, baseConfig("EURX"))
	h.journal.states["EURX"] = domain.SymbolState{ConsecutiveLosses: 2}
	_, err := h.ledger.Execute("EURX", domain.SideSell, 1, 100)
	require.NoError(t, err)
	h.broker.rates["EURX"] = holdBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 96.8, Ask: 96.9}

	cfg := baseConfig("EURX")
	cfg.MaxCycles = 1
	eng, err := live.New(h.broker, live.NewPaperExecutor(h.ledger), cfg,
		live.WithClock(h.clock),
		live.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		live.WithJournal(h.journal),
		live.WithEventSink(h.sink),
	)
	require.NoError(t, err)
	require.NoError(t, eng.Run(context.Background()))

	assert.Zero(t, h.ledger.OpenCount())
	assert.InDelta(t, 10_000+3.1, h.ledger.Equity(), 1e-9)
	st, _ := eng.SymbolState("EURX")
	assert.Zero(t, st.ConsecutiveLosses)
}

func TestManage_TrailingStopRatchetsThenCloses(t *testing.T) {
	h := newHarness(t, baseConfig("EURX"))
	_, err := h.ledger.Execute("EURX", domain.SideBuy, 1, 100)
	require.NoError(t, err)
	h.broker.rates["EURX"] = holdBars()

	// +15 pips: fija el stop en entrada + max(20/2, 7.5) = 10 pips
	h.broker.ticks["EURX"] = domain.Tick{Bid: 101.5, Ask: 101.6}
	sum := h.engine.RunCycle(context.Background(), 1)
	assert.Equal(t, 1, sum.StopsModified)
	pos, _ := h.ledger.Position("EURX")
	assert.InDelta(t, 101.0, pos.StopLoss, 1e-9)

	// +12 pips: mismo stop, no se mueve
	h.broker.ticks["EURX"] = domain.Tick{Bid: 101.2, Ask: 101.3}
	sum = h.engine.RunCycle(context.Background(), 2)
	assert.Zero(t, sum.StopsModified)
	pos, _ = h.ledger.Position("EURX")
	assert.InDelta(t, 101.0, pos.StopLoss, 1e-9)

	// el precio cruza el stop: cierre con beneficio
	h.broker.ticks["EURX"] = domain.Tick{Bid: 100.95, Ask: 101.05}
	sum = h.engine.RunCycle(context.Background(), 3)
	assert.Equal(t, 1, sum.PositionsClosed)
	assert.InDelta(t, 10_000+0.95, h.ledger.Equity(), 1e-9)

	var reasons []string
	for _, ev := range h.sink.events {
		if ev.Kind == domain.EventPositionClosed {
			reasons = append(reasons, ev.Reason)
		}
	}
	assert.Equal(t, []string{"trailing_stop"}, reasons)
}

func TestManage_TrailingStopSellNeverLoosens(t *testing.T) {
	h := newHarness(t, baseConfig("EURX"))
	_, err := h.ledger.Execute("EURX", domain.SideSell, 1, 100)
	require.NoError(t, err)
	h.broker.rates["EURX"] = holdBars()

	h.broker.ticks["EURX"] = domain.Tick{Bid: 98.0, Ask: 98.1}
	h.engine.RunCycle(context.Background(), 1)
	pos, _ := h.ledger.Position("EURX")
	// +19 pips: lock max(10, 9.5) = 10 → 99.0
	assert.InDelta(t, 99.0, pos.StopLoss, 1e-9)

	// +25 pips: lock 12.5 → 98.75, más ajustado
	h.broker.ticks["EURX"] = domain.Tick{Bid: 97.4, Ask: 97.5}
	h.engine.RunCycle(context.Background(), 2)
	pos, _ = h.ledger.Position("EURX")
	assert.InDelta(t, 98.75, pos.StopLoss, 1e-9)

	// retrocede a +15 pips: el stop no se afloja
	h.broker.ticks["EURX"] = domain.Tick{Bid: 98.4, Ask: 98.5}
	h.engine.RunCycle(context.Background(), 3)
	pos, _ = h.ledger.Position("EURX")
	assert.InDelta(t, 98.75, pos.StopLoss, 1e-9)
}

func TestRun_BoundedCyclesAndCadence(t *testing.T) {
	cfg := baseConfig("EURX")
	cfg.MaxCycles = 3
	h := newHarness(t, cfg)
	h.broker.rates["EURX"] = holdBars()
	h.broker.onAccount = func() { h.clock.now = h.clock.now.Add(15 * time.Second) }

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, 1, h.broker.connects)
	assert.Equal(t, 1, h.broker.disconnects)
	assert.Equal(t, 3, h.broker.acctCalls)
	assert.Equal(t, []time.Duration{45 * time.Second, 45 * time.Second}, h.clock.sleeps)
	assert.Equal(t, live.StateDisconnected, h.engine.State())
	assert.Equal(t, 3, h.sink.count(domain.EventCycleComplete))
}

func TestRun_SlowCycleSleepsAtLeastOneSecond(t *testing.T) {
	cfg := baseConfig("EURX")
	cfg.MaxCycles = 2
	h := newHarness(t, cfg)
	h.broker.rates["EURX"] = holdBars()
	h.broker.onAccount = func() { h.clock.now = h.clock.now.Add(90 * time.Second) }

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, []time.Duration{time.Second}, h.clock.sleeps)
}

func TestRun_ConnectFailureIsFatal(t *testing.T) {
	h := newHarness(t, baseConfig("EURX"))
	h.broker.connectErr = errors.New("bad login")

	err := h.engine.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionConnect)
	assert.Zero(t, h.broker.acctCalls)
	assert.Zero(t, h.broker.disconnects)
}

func TestRun_CancelReleasesSession(t *testing.T) {
	h := newHarness(t, baseConfig("EURX"))
	h.broker.rates["EURX"] = holdBars()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.clock.onSleep = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	require.NoError(t, h.engine.Run(ctx))
	assert.Equal(t, 2, h.broker.acctCalls)
	assert.Equal(t, 1, h.broker.disconnects)
}

func TestRun_StopFileEndsLoop(t *testing.T) {
	stop := filepath.Join(t.TempDir(), "STOP")
	require.NoError(t, os.WriteFile(stop, nil, 0o644))

	cfg := baseConfig("EURX")
	cfg.StopFile = stop
	h := newHarness(t, cfg)
	h.broker.rates["EURX"] = holdBars()

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 1, h.broker.acctCalls)
	assert.NoFileExists(t, stop)
}

func TestRun_CooldownLiftsOnNewDay(t *testing.T) {
	cfg := baseConfig("EURX")
	cfg.MaxCycles = 2
	h := newHarness(t, cfg, func(h *harness) {
		h.clock.now = time.Date(2024, 6, 3, 23, 59, 30, 0, time.UTC)
		h.journal.states["EURX"] = domain.SymbolState{
			ConsecutiveLosses: 3,
			UpdatedAt:         time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC),
		}
	})
	h.broker.rates["EURX"] = crossUpBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 11.9, Ask: 12.1}

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, 1, h.sink.count(domain.EventRiskRejected))
	assert.Equal(t, 1, h.sink.count(domain.EventOrderPlaced))
	st, _ := h.engine.SymbolState("EURX")
	assert.Zero(t, st.ConsecutiveLosses)
}

func TestRun_StaleLossCounterResetOnRestore(t *testing.T) {
	cfg := baseConfig("EURX")
	cfg.MaxCycles = 1
	h := newHarness(t, cfg, func(h *harness) {
		h.clock.now = time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)
		h.journal.states["EURX"] = domain.SymbolState{
			ConsecutiveLosses: 3,
			UpdatedAt:         time.Date(2024, 6, 3, 21, 30, 0, 0, time.UTC),
		}
	})
	h.broker.rates["EURX"] = crossUpBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 11.9, Ask: 12.1}

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Zero(t, h.sink.count(domain.EventRiskRejected))
	assert.Equal(t, 1, h.sink.count(domain.EventOrderPlaced))
	saved := h.journal.states["EURX"]
	assert.Zero(t, saved.ConsecutiveLosses)
	assert.True(t, saved.UpdatedAt.Equal(time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)), "state saved with the loop clock")
}

func TestRun_SameDayLossCounterKeptOnRestore(t *testing.T) {
	cfg := baseConfig("EURX")
	cfg.MaxCycles = 1
	h := newHarness(t, cfg, func(h *harness) {
		h.clock.now = time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)
		h.journal.states["EURX"] = domain.SymbolState{
			ConsecutiveLosses: 3,
			UpdatedAt:         time.Date(2024, 6, 4, 0, 15, 0, 0, time.UTC),
		}
	})
	h.broker.rates["EURX"] = crossUpBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 11.9, Ask: 12.1}

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, 1, h.sink.count(domain.EventRiskRejected))
	assert.Zero(t, h.sink.count(domain.EventOrderPlaced))
	st, _ := h.engine.SymbolState("EURX")
	assert.Equal(t, 3, st.ConsecutiveLosses)
}

func TestRun_JournalFailuresDoNotStopLoop(t *testing.T) {
	cfg := baseConfig("EURX")
	cfg.MaxCycles = 1
	h := newHarness(t, cfg)
	h.journal.saveErr = errors.New("disk full")
	h.broker.rates["EURX"] = crossUpBars()
	h.broker.ticks["EURX"] = domain.Tick{Bid: 11.9, Ask: 12.1}

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 1, h.ledger.OpenCount())
}
