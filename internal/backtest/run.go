package backtest

import (
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/strategy"
	"github.com/oklog/ulid/v2"
)

// NewRun wraps a result into a journal entry with a time-sortable run ID.
func (b *Backtester) NewRun(symbol, dataset string, p strategy.SMAParams, res domain.BacktestResult) domain.BacktestRun {
	now := time.Now().UTC()
	run := domain.BacktestRun{
		RunID:       ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		CreatedAt:   now,
		Symbol:      symbol,
		Dataset:     dataset,
		PriceColumn: b.cfg.PriceColumn,
		FastWindow:  p.Fast,
		SlowWindow:  p.Slow,
		Bars:        len(b.bars),
		InitialCash: b.cfg.InitialCash,
		Result:      res,
	}
	if len(b.bars) > 0 {
		run.Start = b.bars[0].Time
		run.End = b.bars[len(b.bars)-1].Time
	}
	return run
}
