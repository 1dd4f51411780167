package ports

import (
	"context"

	"github.com/alejandrodnm/quantengine/internal/domain"
)

// OrderExecutor places and manages orders for the live loop. There are two
// implementations: a paper executor backed by the in-memory ledger and a broker
// executor that sends real orders.
type OrderExecutor interface {
	// Mode reports whether fills are simulated or real.
	Mode() domain.TradeMode

	// Execute places a market order. A non-success broker retcode is returned
	// as an error and must be treated as a no-op for this attempt.
	Execute(ctx context.Context, req domain.OrderRequest) (domain.TradeRecord, error)

	// OpenPositions returns the currently open positions across all symbols.
	OpenPositions(ctx context.Context) ([]domain.BrokerPosition, error)

	// ClosePosition closes pos at price. The returned record carries the
	// realized PnL.
	ClosePosition(ctx context.Context, pos domain.BrokerPosition, price float64) (domain.TradeRecord, error)

	// ModifyStop moves the protective stop of pos.
	ModifyStop(ctx context.Context, pos domain.BrokerPosition, stop float64) error

	// Equity returns the equity used for daily PnL accounting.
	Equity(ctx context.Context, acct domain.AccountInfo) float64
}
