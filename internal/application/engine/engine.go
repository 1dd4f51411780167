package engine

import (
	"context"
	"strings"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
)

// DefaultTimeframe se usa cuando el timeframe configurado no se reconoce.
const DefaultTimeframe = "M5"

var timeframes = map[string]time.Duration{
	"M1":  time.Minute,
	"M5":  5 * time.Minute,
	"M15": 15 * time.Minute,
	"M30": 30 * time.Minute,
	"H1":  time.Hour,
	"H4":  4 * time.Hour,
}

// NormalizeTimeframe devuelve el código de timeframe soportado, o M5.
func NormalizeTimeframe(tf string) string {
	tf = strings.ToUpper(strings.TrimSpace(tf))
	if _, ok := timeframes[tf]; ok {
		return tf
	}
	return DefaultTimeframe
}

// TimeframeDuration devuelve la duración de una vela del timeframe.
func TimeframeDuration(tf string) time.Duration {
	return timeframes[NormalizeTimeframe(tf)]
}

// Clock abstrae el tiempo del loop para poder testearlo sin esperas reales.
type Clock interface {
	Now() time.Time
	// Sleep bloquea d o hasta que ctx se cancele; en ese caso devuelve ctx.Err().
	// Cualquier error termina el loop sin fallo.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock es el reloj real.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PipMove devuelve los pips a favor (positivo) o en contra (negativo) de una
// posición abierta en entry y valorada a mark.
func PipMove(side domain.Side, entry, mark, pipValue float64) float64 {
	if pipValue <= 0 {
		return 0
	}
	return (mark - entry) * side.Direction() / pipValue
}

// TruncateStr trunca un string a maxLen caracteres añadiendo "..." si es necesario.
func TruncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
