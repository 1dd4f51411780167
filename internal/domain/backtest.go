package domain

import "time"

// BacktestResult is the read-only output of one backtest run.
type BacktestResult struct {
	TotalReturn       float64
	StrategyReturns   []float64 // per-bar strategy return
	CumulativeReturns []float64 // running simple sum of StrategyReturns
	EquityCurve       []float64 // compounded, scaled by initial cash
	Trades            int
	WinRate           float64
	MaxDrawdown       float64 // <= 0
	FinalCash         float64
}

// BacktestRun is a persisted backtest summary.
type BacktestRun struct {
	RunID       string
	CreatedAt   time.Time
	Symbol      string
	Dataset     string
	PriceColumn string
	FastWindow  int
	SlowWindow  int
	Bars        int
	Start       time.Time
	End         time.Time
	InitialCash float64
	Result      BacktestResult
}

// SweepResult pairs a parameter combination with its backtest result.
type SweepResult struct {
	FastWindow int
	SlowWindow int
	Result     BacktestResult
}
