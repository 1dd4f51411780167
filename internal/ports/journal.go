package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
)

// TradeJournal persiste el log de operaciones, los resúmenes diarios y los
// resultados de backtest.
type TradeJournal interface {
	SaveTrade(ctx context.Context, rec domain.TradeRecord) error
	GetTrades(ctx context.Context, from, to time.Time) ([]domain.TradeRecord, error)

	SaveDaily(ctx context.Context, d domain.DailySummary) error
	GetDailies(ctx context.Context, mode domain.TradeMode) ([]domain.DailySummary, error)

	SaveSymbolState(ctx context.Context, symbol string, st domain.SymbolState) error
	LoadSymbolStates(ctx context.Context) (map[string]domain.SymbolState, error)

	SaveBacktestRun(ctx context.Context, run domain.BacktestRun) error
	GetBacktestRun(ctx context.Context, runID string) (domain.BacktestRun, error)
	ListBacktestRuns(ctx context.Context, limit int) ([]domain.BacktestRun, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
