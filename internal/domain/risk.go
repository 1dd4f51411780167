package domain

import "time"

// RiskLimits es la configuración inmutable del Risk Gate y del Position Sizer.
type RiskLimits struct {
	MaxDailyLoss         float64 // en moneda de la cuenta
	MaxDailyProfit       float64
	MaxPositions         int
	RiskPerTradePercent  float64 // 1.0 = 1%
	StopLossPips         float64
	TakeProfitPips       float64
	TrailingStartPips    float64
	MaxConsecutiveLosses int
}

// SymbolState son los contadores por símbolo que usa el Risk Gate.
// Persisten entre ciclos durante la vida del loop.
type SymbolState struct {
	ConsecutiveLosses int
	LastSignalTime    time.Time
	UpdatedAt         time.Time // último guardado en el journal; cero si nunca se guardó
}

// RecordClose actualiza el contador de pérdidas consecutivas tras un cierre.
// Una pérdida lo incrementa; una ganancia lo resetea. PnL 0 no lo cambia.
func (s *SymbolState) RecordClose(pnl float64) {
	switch {
	case pnl < 0:
		s.ConsecutiveLosses++
	case pnl > 0:
		s.ConsecutiveLosses = 0
	}
}
