package domain

import "time"

// EventKind clasifica los eventos estructurados que emite el loop live.
type EventKind string

const (
	EventSignalComputed EventKind = "signal_computed"
	EventOrderPlaced    EventKind = "order_placed"
	EventOrderFailed    EventKind = "order_failed"
	EventPositionClosed EventKind = "position_closed"
	EventStopModified   EventKind = "stop_modified"
	EventRiskRejected   EventKind = "risk_rejected"
	EventCycleComplete  EventKind = "cycle_complete"
)

// Event es un evento del loop para logging/persistencia externa.
type Event struct {
	Kind       EventKind
	Time       time.Time
	Cycle      int
	Symbol     string
	Direction  Direction
	Side       Side
	Confidence float64
	Volume     float64
	Price      float64
	PnL        float64
	Reason     string
}

// CycleSummary resume un ciclo de polling.
type CycleSummary struct {
	Cycle           int
	StartedAt       time.Time
	Duration        time.Duration
	Skipped         bool // cuenta no disponible
	SymbolsOK       int
	SymbolErrors    int
	OrdersPlaced    int
	OrdersFailed    int
	Rejections      int
	PositionsClosed int
	StopsModified   int
	Equity          float64
	DailyPnL        float64
}

// DailySummary es el snapshot diario persistido por el journal.
type DailySummary struct {
	Date        time.Time
	Mode        TradeMode
	StartEquity float64
	EndEquity   float64
	Trades      int
	Wins        int
	Losses      int
	RealizedPnL float64
}
