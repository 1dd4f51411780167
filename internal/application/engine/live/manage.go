package live

import (
	"context"
	"fmt"
	"math"

	"github.com/alejandrodnm/quantengine/internal/application/engine"
	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/risk"
)

// Close reasons.
const (
	reasonStopLoss     = "stop_loss"
	reasonTakeProfit   = "take_profit"
	reasonTrailingStop = "trailing_stop"
)

// managePositions runs every cycle, even when new entries were rejected.
func (e *Engine) managePositions(ctx context.Context, cycle int, sum *domain.CycleSummary) {
	positions, err := e.executor.OpenPositions(ctx)
	if err != nil {
		e.log.Warn("live: positions unavailable, skipping management", "cycle", cycle, "err", err)
		return
	}
	for _, pos := range positions {
		if err := e.managePositionSafe(ctx, cycle, pos, sum); err != nil {
			e.log.Warn("live: manage position", "symbol", pos.Symbol, "err", err)
		}
	}
}

func (e *Engine) managePositionSafe(ctx context.Context, cycle int, pos domain.BrokerPosition, sum *domain.CycleSummary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("live.managePosition: panic: %v", r)
		}
	}()
	return e.managePosition(ctx, cycle, pos, sum)
}

// managePosition closes on a stop-loss, take-profit or crossed protective stop;
// otherwise, once past the trailing threshold, ratchets the stop to lock in
// max(SL/2, half the move) pips. The stop never loosens and never passes the
// current mark.
func (e *Engine) managePosition(ctx context.Context, cycle int, pos domain.BrokerPosition, sum *domain.CycleSummary) error {
	tick, err := e.broker.SymbolTick(ctx, pos.Symbol)
	if err != nil {
		return fmt.Errorf("live.managePosition: tick: %w: %w", domain.ErrDataUnavailable, err)
	}
	info := e.symbolInfo(ctx, pos.Symbol)
	pv := risk.PipValue(info.Point)
	mark := tick.MarkPrice(pos.Side)
	pips := engine.PipMove(pos.Side, pos.PriceOpen, mark, pv)
	l := e.cfg.Limits

	var reason string
	switch {
	case l.StopLossPips > 0 && pips <= -l.StopLossPips:
		reason = reasonStopLoss
	case l.TakeProfitPips > 0 && pips >= l.TakeProfitPips:
		reason = reasonTakeProfit
	case stopCrossed(pos, mark):
		reason = reasonTrailingStop
	}
	if reason != "" {
		return e.closePosition(ctx, cycle, pos, mark, pips, reason, sum)
	}

	if l.TrailingStartPips <= 0 || pips < l.TrailingStartPips {
		return nil
	}
	lock := math.Min(pips, math.Max(l.StopLossPips/2, pips*0.5))
	stop := pos.PriceOpen + lock*pv*pos.Side.Direction()
	if !tighter(pos, stop) {
		return nil
	}
	if err := e.executor.ModifyStop(ctx, pos, stop); err != nil {
		return fmt.Errorf("live.managePosition: modify stop: %w", err)
	}
	sum.StopsModified++
	e.log.Info("live: stop updated", "symbol", pos.Symbol, "stop", stop, "pips", fmt.Sprintf("%.1f", pips))
	e.emit(ctx, domain.Event{
		Kind:   domain.EventStopModified,
		Cycle:  cycle,
		Symbol: pos.Symbol,
		Side:   pos.Side,
		Volume: pos.Volume,
		Price:  stop,
	})
	return nil
}

func (e *Engine) closePosition(ctx context.Context, cycle int, pos domain.BrokerPosition, mark, pips float64, reason string, sum *domain.CycleSummary) error {
	rec, err := e.executor.ClosePosition(ctx, pos, mark)
	if err != nil {
		return fmt.Errorf("live.closePosition: %s: %w", reason, err)
	}

	if st, ok := e.symbols[pos.Symbol]; ok {
		st.RecordClose(rec.RealizedPnL)
		e.saveSymbolState(ctx, pos.Symbol, *st)
	}
	sum.PositionsClosed++
	e.log.Info("live: position closed",
		"symbol", pos.Symbol,
		"reason", reason,
		"pips", fmt.Sprintf("%.1f", pips),
		"pnl", fmt.Sprintf("%.2f", rec.RealizedPnL),
	)
	e.emit(ctx, domain.Event{
		Kind:   domain.EventPositionClosed,
		Cycle:  cycle,
		Symbol: pos.Symbol,
		Side:   pos.Side,
		Volume: pos.Volume,
		Price:  rec.FillPrice,
		PnL:    rec.RealizedPnL,
		Reason: reason,
	})
	e.recordTrade(ctx, rec)
	return nil
}

func stopCrossed(pos domain.BrokerPosition, mark float64) bool {
	if pos.StopLoss <= 0 {
		return false
	}
	if pos.Side == domain.SideSell {
		return mark >= pos.StopLoss
	}
	return mark <= pos.StopLoss
}

func tighter(pos domain.BrokerPosition, stop float64) bool {
	if pos.Side == domain.SideSell {
		return pos.StopLoss == 0 || stop < pos.StopLoss
	}
	return stop > pos.StopLoss
}
