package live

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/quantengine/internal/application/engine"
	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/risk"
)

const maxReasonLen = 160

// processSymbolSafe turns a panic in one symbol into an error so the rest of
// the cycle still runs.
func (e *Engine) processSymbolSafe(ctx context.Context, cycle int, symbol string, acct domain.AccountInfo, dailyPnL float64, sum *domain.CycleSummary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("live.processSymbol: panic: %v", r)
		}
	}()
	return e.processSymbol(ctx, cycle, symbol, acct, dailyPnL, sum)
}

// processSymbol runs FETCH → SIGNAL → GATE → SIZE → EXECUTE for one symbol.
// Order failures are counted and logged but are not symbol errors.
func (e *Engine) processSymbol(ctx context.Context, cycle int, symbol string, acct domain.AccountInfo, dailyPnL float64, sum *domain.CycleSummary) error {
	bars, err := e.broker.Rates(ctx, symbol, e.cfg.Timeframe, e.cfg.Bars)
	if err != nil {
		return fmt.Errorf("live.processSymbol: rates: %w: %w", domain.ErrDataUnavailable, err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("live.processSymbol: %w: no rates for %s", domain.ErrDataUnavailable, symbol)
	}

	sig, err := e.strategy.Evaluate(symbol, bars)
	if err != nil {
		return fmt.Errorf("live.processSymbol: signal: %w", err)
	}
	e.log.Info("live: signal",
		"symbol", symbol,
		"direction", sig.Direction,
		"confidence", fmt.Sprintf("%.3f", sig.Confidence),
	)
	e.emit(ctx, domain.Event{
		Kind:       domain.EventSignalComputed,
		Cycle:      cycle,
		Symbol:     symbol,
		Direction:  sig.Direction,
		Confidence: sig.Confidence,
		Price:      sig.Close,
	})

	side, tradable := sig.Direction.Side()
	if !tradable || sig.Confidence < e.cfg.MinConfidence {
		return nil
	}

	st := e.symbols[symbol]
	if !sig.BarTime.IsZero() && !sig.BarTime.After(st.LastSignalTime) {
		e.log.Debug("live: signal already acted on", "symbol", symbol, "bar", sig.BarTime)
		return nil
	}

	positions, err := e.executor.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("live.processSymbol: positions: %w: %w", domain.ErrDataUnavailable, err)
	}
	decision := e.gate.Evaluate(risk.Snapshot{
		DailyPnL:      dailyPnL,
		OpenPositions: len(positions),
		Symbol:        *st,
	})
	if !decision.Allowed {
		sum.Rejections++
		e.log.Info("live: risk gate blocked new trade", "symbol", symbol, "codes", decision.Codes(), "reason", decision.Reason())
		e.emit(ctx, domain.Event{
			Kind:      domain.EventRiskRejected,
			Cycle:     cycle,
			Symbol:    symbol,
			Direction: sig.Direction,
			Reason:    decision.Reason(),
		})
		return nil
	}

	tick, err := e.broker.SymbolTick(ctx, symbol)
	if err != nil {
		return fmt.Errorf("live.processSymbol: tick: %w: %w", domain.ErrDataUnavailable, err)
	}
	info := e.symbolInfo(ctx, symbol)

	balance := acct.Balance
	if balance <= 0 {
		balance = e.executor.Equity(ctx, acct)
	}
	volume, err := risk.Size(risk.SizeInput{
		Balance:      balance,
		RiskPercent:  e.cfg.Limits.RiskPerTradePercent,
		StopLossPips: e.cfg.Limits.StopLossPips,
		PipValue:     risk.PipValue(info.Point),
		MinVolume:    info.VolumeMin,
		VolumeStep:   info.VolumeStep,
	})
	if err != nil {
		return fmt.Errorf("live.processSymbol: size: %w", err)
	}

	req := domain.OrderRequest{
		Symbol:    symbol,
		Side:      side,
		Volume:    volume,
		Price:     tick.EntryPrice(side),
		Deviation: e.cfg.Deviation,
		Comment:   orderComment,
	}
	rec, err := e.executor.Execute(ctx, req)
	if err != nil {
		sum.OrdersFailed++
		e.log.Error("live: order failed", "symbol", symbol, "side", side, "volume", volume, "err", err)
		e.emit(ctx, domain.Event{
			Kind:   domain.EventOrderFailed,
			Cycle:  cycle,
			Symbol: symbol,
			Side:   side,
			Volume: volume,
			Price:  req.Price,
			Reason: engine.TruncateStr(err.Error(), maxReasonLen),
		})
		return nil
	}

	st.LastSignalTime = sig.BarTime
	if rec.RealizedPnL != 0 {
		st.RecordClose(rec.RealizedPnL)
	}
	e.saveSymbolState(ctx, symbol, *st)

	sum.OrdersPlaced++
	e.log.Info("live: order placed",
		"mode", rec.Mode,
		"symbol", symbol,
		"side", side,
		"volume", volume,
		"price", rec.FillPrice,
	)
	e.emit(ctx, domain.Event{
		Kind:       domain.EventOrderPlaced,
		Cycle:      cycle,
		Symbol:     symbol,
		Direction:  sig.Direction,
		Side:       side,
		Confidence: sig.Confidence,
		Volume:     volume,
		Price:      rec.FillPrice,
		PnL:        rec.RealizedPnL,
	})
	e.recordTrade(ctx, rec)
	return nil
}

// symbolInfo falls back to default constraints when the broker has none.
func (e *Engine) symbolInfo(ctx context.Context, symbol string) domain.SymbolInfo {
	info, err := e.broker.SymbolInfo(ctx, symbol)
	if err != nil {
		e.log.Debug("live: symbol info unavailable, using defaults", "symbol", symbol, "err", err)
		info = domain.SymbolInfo{Symbol: symbol}
	}
	if info.VolumeMin <= 0 {
		info.VolumeMin = risk.DefaultMinVolume
	}
	if info.VolumeStep <= 0 {
		info.VolumeStep = risk.DefaultVolumeStep
	}
	return info
}
