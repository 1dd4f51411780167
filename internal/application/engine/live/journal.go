package live

import (
	"context"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/risk"
)

// Journal writes are best-effort: a failure is logged and the loop carries on.

func (e *Engine) recordTrade(ctx context.Context, rec domain.TradeRecord) {
	if rec.RealizedPnL != 0 || rec.Side == domain.SideClose {
		switch {
		case rec.RealizedPnL > 0:
			e.day.Wins++
		case rec.RealizedPnL < 0:
			e.day.Losses++
		}
		e.day.RealizedPnL += rec.RealizedPnL
	}
	e.day.Trades++

	if e.journal == nil {
		return
	}
	if err := e.journal.SaveTrade(ctx, rec); err != nil {
		e.log.Warn("live: failed to save trade", "symbol", rec.Symbol, "err", err)
	}
}

func (e *Engine) saveDaily(ctx context.Context, equity float64) {
	e.day.EndEquity = equity
	if e.journal == nil || e.day.Date.IsZero() {
		return
	}
	if err := e.journal.SaveDaily(ctx, e.day); err != nil {
		e.log.Warn("live: failed to save daily summary", "err", err)
	}
}

func (e *Engine) saveSymbolState(ctx context.Context, symbol string, st domain.SymbolState) {
	if e.journal == nil {
		return
	}
	st.UpdatedAt = e.clock.Now()
	if err := e.journal.SaveSymbolState(ctx, symbol, st); err != nil {
		e.log.Warn("live: failed to save symbol state", "symbol", symbol, "err", err)
	}
}

// restoreSymbolStates loads counters saved by a previous run for whitelisted
// symbols only. Loss counters saved before today's UTC day start over.
func (e *Engine) restoreSymbolStates(ctx context.Context) {
	if e.journal == nil {
		return
	}
	saved, err := e.journal.LoadSymbolStates(ctx)
	if err != nil {
		e.log.Warn("live: failed to load symbol states", "err", err)
		return
	}
	today := risk.TradingDay(e.clock.Now())
	for sym, st := range saved {
		if cur, ok := e.symbols[sym]; ok {
			if !st.UpdatedAt.IsZero() && st.UpdatedAt.Before(today) && st.ConsecutiveLosses > 0 {
				e.log.Info("live: stale loss counter reset", "symbol", sym, "losses", st.ConsecutiveLosses, "saved_at", st.UpdatedAt)
				st.ConsecutiveLosses = 0
			}
			*cur = st
			e.log.Info("live: symbol state restored", "symbol", sym, "losses", st.ConsecutiveLosses)
		}
	}
}
