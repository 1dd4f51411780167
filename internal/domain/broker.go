package domain

import "time"

// AccountInfo es el snapshot de cuenta que devuelve el broker.
type AccountInfo struct {
	Login    int64
	Currency string
	Equity   float64
	Balance  float64
}

// Tick es la última cotización de un símbolo.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

// MarkPrice es el precio al que se valora (o cierra) una posición:
// BUY se cierra vendiendo al bid, SELL comprando al ask.
func (t Tick) MarkPrice(side Side) float64 {
	if side == SideSell {
		return t.Ask
	}
	return t.Bid
}

// EntryPrice es el precio al que se abre en ese lado.
func (t Tick) EntryPrice(side Side) float64 {
	if side == SideSell {
		return t.Bid
	}
	return t.Ask
}

// SymbolInfo contiene las restricciones de volumen y el tamaño de punto del broker.
type SymbolInfo struct {
	Symbol     string
	Point      float64
	VolumeMin  float64
	VolumeStep float64
}

// BrokerPosition es una posición abierta reportada por el broker.
type BrokerPosition struct {
	ID           int64
	Symbol       string
	Side         Side
	Volume       float64
	PriceOpen    float64
	PriceCurrent float64
	StopLoss     float64 // 0 = sin stop
	TakeProfit   float64
	OpenTime     time.Time
}

// OrderRequest se envía al broker para abrir una orden a mercado.
type OrderRequest struct {
	Symbol    string
	Side      Side
	Volume    float64
	Price     float64 // 0 = a mercado
	Deviation int
	Comment   string
}

// RetcodeDone es el código de éxito de una orden.
const RetcodeDone = 10009

// OrderResult es la respuesta del broker a SendOrder / ClosePosition / ModifyStop.
type OrderResult struct {
	Retcode   int
	OrderID   string
	FillPrice float64
	Profit    float64
	Comment   string
}

// OK indica si la orden se ejecutó.
func (r OrderResult) OK() bool {
	return r.Retcode == RetcodeDone
}
