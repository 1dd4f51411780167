package strategy

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/markcheno/go-talib"
)

// SMACrossoverName es el nombre con el que se registra la estrategia.
const SMACrossoverName = "sma_crossover"

// SMAParams son las ventanas del cruce de medias. Fast debe ser menor que Slow.
type SMAParams struct {
	Fast int `yaml:"fast"`
	Slow int `yaml:"slow"`
}

// Validate devuelve ErrConfiguration si las ventanas no cumplen 0 < fast < slow.
func (p SMAParams) Validate() error {
	if p.Fast <= 0 || p.Slow <= 0 {
		return fmt.Errorf("%w: sma windows must be positive (fast=%d slow=%d)", domain.ErrConfiguration, p.Fast, p.Slow)
	}
	if p.Fast >= p.Slow {
		return fmt.Errorf("%w: fast window %d must be smaller than slow window %d", domain.ErrConfiguration, p.Fast, p.Slow)
	}
	return nil
}

// SMA devuelve la media móvil simple de values con la misma longitud que la
// entrada. Mientras haya menos de window puntos, la ventana se reduce a los
// puntos disponibles (media expandida).
func SMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 0 || len(values) == 0 {
		return out
	}

	warmup := min(window-1, len(values))
	var sum float64
	for i := 0; i < warmup; i++ {
		sum += values[i]
		out[i] = sum / float64(i+1)
	}
	if len(values) < window {
		return out
	}

	// talib deja a cero el lookback; solo copiamos desde la primera ventana completa.
	full := talib.Sma(values, window)
	copy(out[window-1:], full[window-1:])
	return out
}

// GenerateSignal devuelve 1 cuando la media rápida supera a la lenta y 0 en otro
// caso, para cada vela incluida la fase de calentamiento.
func GenerateSignal(values []float64, p SMAParams) ([]domain.SignalValue, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("strategy.GenerateSignal: %w", err)
	}
	return crossover(SMA(values, p.Fast), SMA(values, p.Slow)), nil
}

// crossTolerance es la diferencia relativa bajo la cual fast y slow se
// consideran iguales: las sumas móviles derivan unos ulps en series planas.
const crossTolerance = 1e-12

func crossover(fast, slow []float64) []domain.SignalValue {
	out := make([]domain.SignalValue, len(fast))
	for i := range fast {
		if fastAbove(fast[i], slow[i]) {
			out[i] = domain.SignalLong
		}
	}
	return out
}

func fastAbove(fast, slow float64) bool {
	return fast-slow > crossTolerance*math.Max(math.Abs(fast), math.Abs(slow))
}

// ComputeLiveSignal compara la señal de la última vela con la anterior:
// sube → BUY, baja → SELL, igual → HOLD. La confianza es |fast-slow|/close en la
// última vela; con close == 0 se fija a 0.
func ComputeLiveSignal(values []float64, p SMAParams) (domain.LiveSignal, error) {
	if err := p.Validate(); err != nil {
		return domain.LiveSignal{}, fmt.Errorf("strategy.ComputeLiveSignal: %w", err)
	}
	if len(values) == 0 {
		return domain.LiveSignal{}, fmt.Errorf("strategy.ComputeLiveSignal: %w: no prices", domain.ErrEmptyInput)
	}

	fast := SMA(values, p.Fast)
	slow := SMA(values, p.Slow)
	signals := crossover(fast, slow)

	last := len(values) - 1
	sig := domain.LiveSignal{
		Direction: domain.DirectionHold,
		FastSMA:   fast[last],
		SlowSMA:   slow[last],
		Close:     values[last],
	}
	if last > 0 {
		switch {
		case signals[last] > signals[last-1]:
			sig.Direction = domain.DirectionBuy
		case signals[last] < signals[last-1]:
			sig.Direction = domain.DirectionSell
		}
	}
	if values[last] != 0 {
		sig.Confidence = math.Abs(fast[last]-slow[last]) / math.Abs(values[last])
	}
	return sig, nil
}

// SMACrossover implementa Strategy con el cruce de medias simples.
type SMACrossover struct {
	params SMAParams
}

// NewSMACrossover valida las ventanas y crea la estrategia.
func NewSMACrossover(p SMAParams) (*SMACrossover, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("strategy.NewSMACrossover: %w", err)
	}
	return &SMACrossover{params: p}, nil
}

// Name implementa Strategy.
func (s *SMACrossover) Name() string {
	return SMACrossoverName
}

// Params devuelve las ventanas configuradas.
func (s *SMACrossover) Params() SMAParams {
	return s.params
}

// Signals implementa Strategy.
func (s *SMACrossover) Signals(values []float64) []domain.SignalValue {
	return crossover(SMA(values, s.params.Fast), SMA(values, s.params.Slow))
}

// Evaluate implementa Strategy sobre la columna close.
func (s *SMACrossover) Evaluate(symbol string, bars domain.Bars) (domain.LiveSignal, error) {
	sig, err := ComputeLiveSignal(bars.Closes(), s.params)
	if err != nil {
		return domain.LiveSignal{}, err
	}
	sig.Symbol = symbol
	if last, ok := bars.Last(); ok {
		sig.BarTime = last.Time
	}
	return sig, nil
}
