package domain

import "time"

// Side es el lado de una orden o posición.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	// SideClose solo aparece en TradeRecord para cierres forzados.
	SideClose Side = "CLOSE"
)

// Valid indica si el lado es operable (BUY o SELL).
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Direction devuelve +1 para BUY y -1 para SELL.
func (s Side) Direction() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// Opposite devuelve el lado contrario.
func (s Side) Opposite() Side {
	if s == SideSell {
		return SideBuy
	}
	return SideSell
}

// Position es la posición abierta de un símbolo en el ledger.
// StopLoss es el stop protectivo en precio (0 = sin stop); solo se ajusta hacia
// el lado del beneficio.
type Position struct {
	Symbol     string
	Side       Side
	Volume     float64
	EntryPrice float64
	OpenTime   time.Time
	StopLoss   float64
}

// UnrealizedPnL calcula el PnL latente a un precio dado.
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Side.Direction() * p.Volume
}

// TradeMode distingue fills simulados de órdenes reales en el journal.
type TradeMode string

const (
	ModePaper TradeMode = "paper"
	ModeLive  TradeMode = "live"
)

// TradeRecord es una entrada inmutable del log de operaciones del ledger.
type TradeRecord struct {
	ID          string
	Time        time.Time
	Mode        TradeMode
	Symbol      string
	Side        Side
	Volume      float64
	FillPrice   float64
	RealizedPnL float64
	EquityAfter float64
}

// EquityState resume la cuenta simulada.
type EquityState struct {
	StartingEquity float64
	CurrentEquity  float64
	RealizedPnL    []float64
}
