package domain

import "time"

// SignalValue es la postura del backtester: 1 long, 0 flat, -1 short (reservado).
type SignalValue float64

const (
	SignalShort SignalValue = -1
	SignalFlat  SignalValue = 0
	SignalLong  SignalValue = 1
)

// Direction es la llamada direccional del camino live.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// Side devuelve el lado de orden correspondiente. HOLD no tiene lado.
func (d Direction) Side() (Side, bool) {
	switch d {
	case DirectionBuy:
		return SideBuy, true
	case DirectionSell:
		return SideSell, true
	}
	return "", false
}

// LiveSignal es el resultado de evaluar el cruce de medias sobre la última vela.
type LiveSignal struct {
	Symbol     string
	Direction  Direction
	Confidence float64
	FastSMA    float64
	SlowSMA    float64
	Close      float64
	BarTime    time.Time
}
