package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/quantengine/internal/application/engine"
	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/ports"
	"github.com/alejandrodnm/quantengine/internal/risk"
	"github.com/alejandrodnm/quantengine/internal/strategy"
)

const (
	defaultBars         = 500
	defaultPollInterval = 60 * time.Second
	defaultDeviation    = 20
	minSleep            = time.Second
	orderComment        = "quantengine"
)

// State is the connection state of the loop.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnected    State = "CONNECTED"
)

// Config holds configuration for the live trading loop.
type Config struct {
	Symbols       []string
	Timeframe     string
	Bars          int
	Params        strategy.SMAParams
	MinConfidence float64
	PollInterval  time.Duration
	Limits        domain.RiskLimits
	Deviation     int
	MaxCycles     int    // 0 runs until ctx is cancelled
	StopFile      string // optional; its presence ends the loop after the current cycle
}

// Engine polls the broker, turns fresh bars into signals and executes them
// under the risk gate. It owns the symbol states and the daily anchor; all
// mutation happens on the goroutine that calls Run.
type Engine struct {
	broker   ports.Broker
	executor ports.OrderExecutor
	journal  ports.TradeJournal
	sink     ports.EventSink
	strategy strategy.Strategy
	gate     risk.Gate
	clock    engine.Clock
	log      *slog.Logger
	cfg      Config

	state   State
	symbols map[string]*domain.SymbolState
	anchor  risk.DayAnchor
	day     domain.DailySummary
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(c engine.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

func WithJournal(j ports.TradeJournal) Option { return func(e *Engine) { e.journal = j } }

func WithEventSink(s ports.EventSink) Option { return func(e *Engine) { e.sink = s } }

// WithStrategy replaces the SMA crossover built from Config.Params.
func WithStrategy(s strategy.Strategy) Option { return func(e *Engine) { e.strategy = s } }

// New validates the configuration and builds a disconnected engine.
func New(broker ports.Broker, executor ports.OrderExecutor, cfg Config, opts ...Option) (*Engine, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("live.New: %w: no symbols", domain.ErrConfiguration)
	}
	if cfg.Bars <= 0 {
		cfg.Bars = defaultBars
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Deviation <= 0 {
		cfg.Deviation = defaultDeviation
	}
	cfg.Timeframe = engine.NormalizeTimeframe(cfg.Timeframe)

	e := &Engine{
		broker:   broker,
		executor: executor,
		gate:     risk.NewGate(cfg.Limits),
		clock:    engine.SystemClock{},
		log:      slog.Default(),
		cfg:      cfg,
		state:    StateDisconnected,
		symbols:  make(map[string]*domain.SymbolState, len(cfg.Symbols)),
	}
	for _, o := range opts {
		o(e)
	}
	if e.strategy == nil {
		s, err := strategy.NewSMACrossover(cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("live.New: %w", err)
		}
		e.strategy = s
	}
	for _, sym := range cfg.Symbols {
		e.symbols[sym] = &domain.SymbolState{}
	}
	return e, nil
}

// State reports whether the broker session is held.
func (e *Engine) State() State {
	return e.state
}

// SymbolState returns a copy of the counters for symbol.
func (e *Engine) SymbolState(symbol string) (domain.SymbolState, bool) {
	st, ok := e.symbols[symbol]
	if !ok {
		return domain.SymbolState{}, false
	}
	return *st, true
}

// Run connects, cycles until ctx is cancelled, MaxCycles is reached or the
// stop file appears, and always releases the session. A connect failure is
// fatal and returned wrapped in ErrSessionConnect.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.broker.Connect(ctx); err != nil {
		return fmt.Errorf("live.Run: %w: %w", domain.ErrSessionConnect, err)
	}
	e.state = StateConnected
	e.log.Info("live: connected", "mode", e.executor.Mode(), "symbols", e.cfg.Symbols, "timeframe", e.cfg.Timeframe)
	if bar := engine.TimeframeDuration(e.cfg.Timeframe); e.cfg.PollInterval > bar {
		e.log.Warn("live: polling slower than the bar timeframe, bars will be skipped", "poll", e.cfg.PollInterval, "bar", bar)
	}

	defer func() {
		if err := e.broker.Disconnect(context.WithoutCancel(ctx)); err != nil {
			e.log.Warn("live: disconnect failed", "err", err)
		}
		e.state = StateDisconnected
		e.log.Info("live: disconnected")
	}()

	e.restoreSymbolStates(ctx)

	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			e.log.Info("live: stopped (signal)", "total_cycles", cycle-1)
			return nil
		}

		start := e.clock.Now()
		e.runCycleSafe(ctx, cycle)

		if e.cfg.MaxCycles > 0 && cycle >= e.cfg.MaxCycles {
			e.log.Info("live: max cycles reached", "total_cycles", cycle)
			return nil
		}
		if e.stopRequested() {
			e.log.Info("live: stop file detected, shutting down", "file", e.cfg.StopFile, "total_cycles", cycle)
			return nil
		}

		wait := max(minSleep, e.cfg.PollInterval-e.clock.Now().Sub(start))
		if err := e.clock.Sleep(ctx, wait); err != nil {
			e.log.Info("live: stopped", "reason", err, "total_cycles", cycle)
			return nil
		}
	}
}

func (e *Engine) stopRequested() bool {
	if e.cfg.StopFile == "" {
		return false
	}
	if _, err := os.Stat(e.cfg.StopFile); err != nil {
		return false
	}
	if err := os.Remove(e.cfg.StopFile); err != nil {
		e.log.Warn("live: remove stop file", "err", err)
	}
	return true
}

// runCycleSafe keeps a panic inside one cycle from ending the loop.
func (e *Engine) runCycleSafe(ctx context.Context, cycle int) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("live: cycle panicked", "cycle", cycle, "panic", r)
		}
	}()
	e.RunCycle(ctx, cycle)
}

// RunCycle executes one polling cycle: every whitelisted symbol goes through
// fetch, signal, gate, size and execute, then open positions are managed.
func (e *Engine) RunCycle(ctx context.Context, cycle int) domain.CycleSummary {
	now := e.clock.Now()
	sum := domain.CycleSummary{Cycle: cycle, StartedAt: now}

	acct, err := e.broker.AccountInfo(ctx)
	if err != nil {
		e.log.Error("live: account info unavailable, skipping cycle", "cycle", cycle, "err", err)
		sum.Skipped = true
		sum.Duration = e.clock.Now().Sub(now)
		e.emit(ctx, domain.Event{Kind: domain.EventCycleComplete, Time: now, Cycle: cycle, Reason: "account unavailable"})
		return sum
	}

	dailyPnL := e.observeDay(ctx, now, e.executor.Equity(ctx, acct))

	for _, sym := range e.cfg.Symbols {
		if err := e.processSymbolSafe(ctx, cycle, sym, acct, dailyPnL, &sum); err != nil {
			sum.SymbolErrors++
			if errors.Is(err, domain.ErrDataUnavailable) {
				e.log.Warn("live: symbol skipped", "cycle", cycle, "symbol", sym, "err", err)
			} else {
				e.log.Error("live: symbol failed", "cycle", cycle, "symbol", sym, "err", err)
			}
			continue
		}
		sum.SymbolsOK++
	}

	e.managePositions(ctx, cycle, &sum)

	sum.Equity = e.executor.Equity(ctx, acct)
	sum.DailyPnL = sum.Equity - e.anchor.StartEquity()
	sum.Duration = e.clock.Now().Sub(now)
	e.saveDaily(ctx, sum.Equity)

	e.log.Info("live: cycle complete",
		"cycle", cycle,
		"symbols_ok", sum.SymbolsOK,
		"symbol_errors", sum.SymbolErrors,
		"orders", sum.OrdersPlaced,
		"orders_failed", sum.OrdersFailed,
		"rejections", sum.Rejections,
		"closed", sum.PositionsClosed,
		"stops_moved", sum.StopsModified,
		"equity", fmt.Sprintf("%.2f", sum.Equity),
		"daily_pnl", fmt.Sprintf("%.2f", sum.DailyPnL),
		"duration", sum.Duration,
	)
	e.emit(ctx, domain.Event{Kind: domain.EventCycleComplete, Time: now, Cycle: cycle, PnL: sum.DailyPnL, Price: sum.Equity})
	return sum
}

// observeDay returns today's PnL. When the UTC day rolls, the per-symbol loss
// counters and the daily trade tally start over.
func (e *Engine) observeDay(ctx context.Context, now time.Time, equity float64) float64 {
	prev := e.anchor.Day()
	pnl := e.anchor.Observe(now, equity)
	if !e.anchor.Day().Equal(prev) {
		if !prev.IsZero() {
			e.log.Info("live: new trading day", "day", e.anchor.Day().Format("2006-01-02"), "start_equity", equity)
			for sym, st := range e.symbols {
				st.ConsecutiveLosses = 0
				e.saveSymbolState(ctx, sym, *st)
			}
		}
		e.day = domain.DailySummary{
			Date:        e.anchor.Day(),
			Mode:        e.executor.Mode(),
			StartEquity: equity,
			EndEquity:   equity,
		}
	}
	return pnl
}

func (e *Engine) emit(ctx context.Context, ev domain.Event) {
	if e.sink == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = e.clock.Now()
	}
	e.sink.Emit(ctx, ev)
}
