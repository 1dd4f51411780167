package ports

import (
	"context"

	"github.com/alejandrodnm/quantengine/internal/domain"
)

// EventSink recibe los eventos estructurados del loop live.
// Las implementaciones no deben bloquear el ciclo.
type EventSink interface {
	Emit(ctx context.Context, ev domain.Event)
}
