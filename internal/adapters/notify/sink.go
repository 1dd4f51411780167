package notify

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/ports"
)

var (
	_ ports.EventSink = (*LogSink)(nil)
	_ ports.EventSink = Multi(nil)
)

// LogSink vuelca cada evento como un registro slog estructurado.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink crea un LogSink. Con l == nil usa slog.Default().
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{log: l}
}

func (s *LogSink) Emit(ctx context.Context, ev domain.Event) {
	level := slog.LevelInfo
	switch ev.Kind {
	case domain.EventSignalComputed:
		level = slog.LevelDebug
	case domain.EventOrderFailed:
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("kind", string(ev.Kind)),
		slog.Int("cycle", ev.Cycle),
	}
	if ev.Symbol != "" {
		attrs = append(attrs, slog.String("symbol", ev.Symbol))
	}
	if ev.Direction != "" {
		attrs = append(attrs, slog.String("direction", string(ev.Direction)), slog.Float64("confidence", ev.Confidence))
	}
	if ev.Side != "" {
		attrs = append(attrs, slog.String("side", string(ev.Side)))
	}
	if ev.Volume != 0 {
		attrs = append(attrs, slog.Float64("volume", ev.Volume))
	}
	if ev.Price != 0 {
		attrs = append(attrs, slog.Float64("price", ev.Price))
	}
	if ev.PnL != 0 {
		attrs = append(attrs, slog.Float64("pnl", ev.PnL))
	}
	if ev.Reason != "" {
		attrs = append(attrs, slog.String("reason", ev.Reason))
	}
	s.log.LogAttrs(ctx, level, "event", attrs...)
}

// Multi reenvía cada evento a todos los sinks.
type Multi []ports.EventSink

func (m Multi) Emit(ctx context.Context, ev domain.Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}
