package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Columnas de precio soportadas por Bars.Column.
const (
	ColumnOpen   = "open"
	ColumnHigh   = "high"
	ColumnLow    = "low"
	ColumnClose  = "close"
	ColumnVolume = "volume"
)

// PriceBar es una vela OHLCV. Inmutable una vez cargada.
type PriceBar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Bars es una secuencia ordenada de velas con timestamps estrictamente crecientes.
type Bars []PriceBar

// Validate comprueba que los timestamps sean estrictamente crecientes (sin duplicados).
func (b Bars) Validate() error {
	for i := 1; i < len(b); i++ {
		if !b[i].Time.After(b[i-1].Time) {
			return fmt.Errorf("%w: bar %d time %s not after %s",
				ErrSchema, i, b[i].Time.Format(time.RFC3339), b[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Column devuelve una copia de la columna numérica pedida.
// Falla con ErrSchema si la columna no existe o contiene valores no finitos.
func (b Bars) Column(name string) ([]float64, error) {
	var pick func(PriceBar) float64
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ColumnOpen:
		pick = func(p PriceBar) float64 { return p.Open }
	case ColumnHigh:
		pick = func(p PriceBar) float64 { return p.High }
	case ColumnLow:
		pick = func(p PriceBar) float64 { return p.Low }
	case ColumnClose:
		pick = func(p PriceBar) float64 { return p.Close }
	case ColumnVolume:
		pick = func(p PriceBar) float64 { return p.Volume }
	default:
		return nil, fmt.Errorf("%w: price column %q not found", ErrSchema, name)
	}

	out := make([]float64, len(b))
	for i, bar := range b {
		v := pick(bar)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: price column %q is not numeric at bar %d", ErrSchema, name, i)
		}
		out[i] = v
	}
	return out, nil
}

// Closes es un atajo para la columna close.
func (b Bars) Closes() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.Close
	}
	return out
}

// Last devuelve la última vela, o false si la serie está vacía.
func (b Bars) Last() (PriceBar, bool) {
	if len(b) == 0 {
		return PriceBar{}, false
	}
	return b[len(b)-1], true
}
