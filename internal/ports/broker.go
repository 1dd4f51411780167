package ports

import (
	"context"

	"github.com/alejandrodnm/quantengine/internal/domain"
)

// Broker es la capacidad de brokerage que consume el core.
// Cualquier método salvo Connect puede fallar transitoriamente; el loop lo trata
// como "dato no disponible este ciclo".
type Broker interface {
	// Connect adquiere la sesión. Un error aquí es fatal y aborta el arranque.
	Connect(ctx context.Context) error

	// Disconnect libera la sesión. Se llama siempre al salir del loop.
	Disconnect(ctx context.Context) error

	AccountInfo(ctx context.Context) (domain.AccountInfo, error)
	Positions(ctx context.Context) ([]domain.BrokerPosition, error)
	SymbolTick(ctx context.Context, symbol string) (domain.Tick, error)
	SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error)

	// Rates devuelve las últimas count velas en orden cronológico.
	Rates(ctx context.Context, symbol, timeframe string, count int) (domain.Bars, error)

	SendOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
	ModifyStop(ctx context.Context, positionID int64, stop float64) (domain.OrderResult, error)
	ClosePosition(ctx context.Context, pos domain.BrokerPosition) (domain.OrderResult, error)
}
