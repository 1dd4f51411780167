package strategy

import (
	"github.com/alejandrodnm/quantengine/internal/domain"
)

// Strategy define el contrato de una regla de señales. La misma regla alimenta
// el backtester (serie completa) y el loop live (llamada direccional).
type Strategy interface {
	// Name devuelve el identificador único de la estrategia.
	Name() string

	// Signals devuelve una señal por vela, sin look-ahead: la señal i solo
	// depende de values[:i+1].
	Signals(values []float64) []domain.SignalValue

	// Evaluate calcula la llamada direccional sobre la última vela.
	Evaluate(symbol string, bars domain.Bars) (domain.LiveSignal, error)
}

// Registry mantiene las estrategias disponibles indexadas por nombre.
type Registry map[string]Strategy

// NewRegistry crea un registry vacío.
func NewRegistry() Registry {
	return make(Registry)
}

// Register añade una estrategia al registry.
func (r Registry) Register(s Strategy) {
	r[s.Name()] = s
}

// Get devuelve la estrategia por nombre.
func (r Registry) Get(name string) (Strategy, bool) {
	s, ok := r[name]
	return s, ok
}
