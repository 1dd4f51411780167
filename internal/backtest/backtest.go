// Package backtest replays a price series against a signal series and reports
// performance. Runs are pure: a Backtester can be shared across goroutines.
package backtest

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/strategy"
)

// Config holds the simulation parameters.
type Config struct {
	PriceColumn  string
	InitialCash  float64
	PositionSize float64 // fraction of equity exposed per unit of signal
}

// DefaultConfig simulates full exposure on close prices.
func DefaultConfig(initialCash float64) Config {
	return Config{
		PriceColumn:  domain.ColumnClose,
		InitialCash:  initialCash,
		PositionSize: 1,
	}
}

// SignalFunc turns a price column into one signal per bar. It must not look
// ahead: signal i may only depend on prices[:i+1].
type SignalFunc func(prices []float64) []domain.SignalValue

// Backtester is bound to one immutable price series.
type Backtester struct {
	bars   domain.Bars
	prices []float64
	cfg    Config
}

// NewBacktester validates the input before any computation runs: a missing or
// non-numeric price column fails with ErrSchema and an empty series with
// ErrEmptyInput.
func NewBacktester(bars domain.Bars, cfg Config) (*Backtester, error) {
	if cfg.PriceColumn == "" {
		cfg.PriceColumn = domain.ColumnClose
	}
	if cfg.PositionSize == 0 {
		cfg.PositionSize = 1
	}
	if !(cfg.InitialCash > 0) || math.IsInf(cfg.InitialCash, 0) {
		return nil, fmt.Errorf("backtest.NewBacktester: %w: initial cash %v", domain.ErrConfiguration, cfg.InitialCash)
	}
	if !(cfg.PositionSize > 0) || math.IsInf(cfg.PositionSize, 0) {
		return nil, fmt.Errorf("backtest.NewBacktester: %w: position size %v", domain.ErrConfiguration, cfg.PositionSize)
	}

	prices, err := bars.Column(cfg.PriceColumn)
	if err != nil {
		return nil, fmt.Errorf("backtest.NewBacktester: %w", err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("backtest.NewBacktester: %w: no bars", domain.ErrEmptyInput)
	}
	if err := bars.Validate(); err != nil {
		return nil, fmt.Errorf("backtest.NewBacktester: %w", err)
	}
	return &Backtester{bars: bars, prices: prices, cfg: cfg}, nil
}

// Run computes signals with fn and simulates them.
func (b *Backtester) Run(fn SignalFunc) (domain.BacktestResult, error) {
	prices := append([]float64(nil), b.prices...)
	return b.Simulate(fn(prices))
}

// Simulate replays an explicit signal series. A shorter series is padded with
// flat; a longer one is a schema error. Values outside [-1, 1] fail with
// ErrRange and are never clamped.
func (b *Backtester) Simulate(signals []domain.SignalValue) (domain.BacktestResult, error) {
	n := len(b.prices)
	if len(signals) > n {
		return domain.BacktestResult{}, fmt.Errorf("backtest.Simulate: %w: %d signals for %d bars", domain.ErrSchema, len(signals), n)
	}
	sig := make([]float64, n)
	for i, s := range signals {
		v := float64(s)
		if math.IsNaN(v) || v < -1 || v > 1 {
			return domain.BacktestResult{}, fmt.Errorf("backtest.Simulate: %w: signal %v at bar %d", domain.ErrRange, v, i)
		}
		sig[i] = v
	}

	res := domain.BacktestResult{
		StrategyReturns:   make([]float64, n),
		CumulativeReturns: make([]float64, n),
		EquityCurve:       make([]float64, n),
	}

	var (
		growth  = 1.0
		cum     float64
		peak    float64
		entries int
		wins    int
	)
	for i := 0; i < n; i++ {
		var ret, pos, prevPos float64
		if i > 0 {
			ret = pctChange(b.prices[i-1], b.prices[i])
			// one-bar lag: decide at close, fill on the next bar
			pos = sig[i-1]
			if sig[i] != sig[i-1] {
				res.Trades++
			}
		}
		if i > 1 {
			prevPos = sig[i-2]
		}

		sr := pos * ret * b.cfg.PositionSize
		res.StrategyReturns[i] = sr

		cum += sr
		res.CumulativeReturns[i] = cum

		growth *= 1 + sr
		eq := b.cfg.InitialCash * growth
		res.EquityCurve[i] = eq

		if eq > peak {
			peak = eq
		}
		if dd := eq/peak - 1; dd < res.MaxDrawdown {
			res.MaxDrawdown = dd
		}

		if i > 0 && pos != 0 && prevPos == 0 {
			entries++
			if sr > 0 {
				wins++
			}
		}
	}

	if entries > 0 {
		res.WinRate = float64(wins) / float64(entries)
	}
	res.FinalCash = res.EquityCurve[n-1]
	res.TotalReturn = res.FinalCash/b.cfg.InitialCash - 1
	return res, nil
}

// pctChange returns 0 when the previous price is zero.
func pctChange(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return cur/prev - 1
}

// RunSMACrossover backtests the SMA crossover rule on close prices.
func RunSMACrossover(bars domain.Bars, p strategy.SMAParams, initialCash float64) (domain.BacktestResult, error) {
	s, err := strategy.NewSMACrossover(p)
	if err != nil {
		return domain.BacktestResult{}, fmt.Errorf("backtest.RunSMACrossover: %w", err)
	}
	bt, err := NewBacktester(bars, DefaultConfig(initialCash))
	if err != nil {
		return domain.BacktestResult{}, fmt.Errorf("backtest.RunSMACrossover: %w", err)
	}
	return bt.Run(s.Signals)
}
