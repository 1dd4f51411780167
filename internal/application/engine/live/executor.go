package live

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/ledger"
	"github.com/alejandrodnm/quantengine/internal/ports"
	"github.com/google/uuid"
)

var (
	_ ports.OrderExecutor = (*PaperExecutor)(nil)
	_ ports.OrderExecutor = (*BrokerExecutor)(nil)
)

// PaperExecutor fills every order against an in-memory ledger.
type PaperExecutor struct {
	ledger *ledger.Ledger
}

// NewPaperExecutor wraps l; the ledger must not be shared with other writers.
func NewPaperExecutor(l *ledger.Ledger) *PaperExecutor {
	return &PaperExecutor{ledger: l}
}

// Ledger exposes the underlying ledger for reporting.
func (p *PaperExecutor) Ledger() *ledger.Ledger {
	return p.ledger
}

func (p *PaperExecutor) Mode() domain.TradeMode {
	return domain.ModePaper
}

func (p *PaperExecutor) Execute(_ context.Context, req domain.OrderRequest) (domain.TradeRecord, error) {
	rec, err := p.ledger.Execute(req.Symbol, req.Side, req.Volume, req.Price)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("live.PaperExecutor.Execute: %w", err)
	}
	return rec, nil
}

func (p *PaperExecutor) OpenPositions(_ context.Context) ([]domain.BrokerPosition, error) {
	positions := p.ledger.Positions()
	out := make([]domain.BrokerPosition, len(positions))
	for i, pos := range positions {
		out[i] = domain.BrokerPosition{
			Symbol:    pos.Symbol,
			Side:      pos.Side,
			Volume:    pos.Volume,
			PriceOpen: pos.EntryPrice,
			StopLoss:  pos.StopLoss,
			OpenTime:  pos.OpenTime,
		}
	}
	return out, nil
}

func (p *PaperExecutor) ClosePosition(_ context.Context, pos domain.BrokerPosition, price float64) (domain.TradeRecord, error) {
	if _, ok := p.ledger.Position(pos.Symbol); !ok {
		return domain.TradeRecord{}, fmt.Errorf("live.PaperExecutor.ClosePosition: %w: no position for %s", domain.ErrInvalidOrder, pos.Symbol)
	}
	if _, err := p.ledger.ClosePosition(pos.Symbol, price); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("live.PaperExecutor.ClosePosition: %w", err)
	}
	rec, _ := p.ledger.LastTrade()
	return rec, nil
}

func (p *PaperExecutor) ModifyStop(_ context.Context, pos domain.BrokerPosition, stop float64) error {
	if !p.ledger.SetStop(pos.Symbol, stop) {
		return fmt.Errorf("live.PaperExecutor.ModifyStop: %w: no position for %s", domain.ErrInvalidOrder, pos.Symbol)
	}
	return nil
}

// Equity is the ledger equity; the broker account is ignored in paper mode.
func (p *PaperExecutor) Equity(_ context.Context, _ domain.AccountInfo) float64 {
	return p.ledger.Equity()
}

// BrokerExecutor sends real orders through the broker.
type BrokerExecutor struct {
	broker ports.Broker
	now    func() time.Time
}

func NewBrokerExecutor(b ports.Broker) *BrokerExecutor {
	return &BrokerExecutor{broker: b, now: func() time.Time { return time.Now().UTC() }}
}

func (b *BrokerExecutor) Mode() domain.TradeMode {
	return domain.ModeLive
}

// Execute sends a market order. A non-success retcode is ErrOrderRejected.
func (b *BrokerExecutor) Execute(ctx context.Context, req domain.OrderRequest) (domain.TradeRecord, error) {
	if !req.Side.Valid() || req.Volume <= 0 {
		return domain.TradeRecord{}, fmt.Errorf("live.BrokerExecutor.Execute: %w: side=%s volume=%v", domain.ErrInvalidOrder, req.Side, req.Volume)
	}
	res, err := b.broker.SendOrder(ctx, req)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("live.BrokerExecutor.Execute: %w", err)
	}
	if !res.OK() {
		return domain.TradeRecord{}, fmt.Errorf("live.BrokerExecutor.Execute: %w: retcode %d: %s", domain.ErrOrderRejected, res.Retcode, res.Comment)
	}

	price := res.FillPrice
	if price == 0 {
		price = req.Price
	}
	return b.record(ctx, res.OrderID, req.Symbol, req.Side, req.Volume, price, 0), nil
}

func (b *BrokerExecutor) OpenPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	return b.broker.Positions(ctx)
}

// ClosePosition closes at market. The broker-reported profit wins over the
// locally estimated one.
func (b *BrokerExecutor) ClosePosition(ctx context.Context, pos domain.BrokerPosition, price float64) (domain.TradeRecord, error) {
	res, err := b.broker.ClosePosition(ctx, pos)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("live.BrokerExecutor.ClosePosition: %w", err)
	}
	if !res.OK() {
		return domain.TradeRecord{}, fmt.Errorf("live.BrokerExecutor.ClosePosition: %w: retcode %d: %s", domain.ErrOrderRejected, res.Retcode, res.Comment)
	}

	fill := res.FillPrice
	if fill == 0 {
		fill = price
	}
	pnl := res.Profit
	if pnl == 0 {
		pnl = (fill - pos.PriceOpen) * pos.Side.Direction() * pos.Volume
	}
	return b.record(ctx, res.OrderID, pos.Symbol, domain.SideClose, pos.Volume, fill, pnl), nil
}

func (b *BrokerExecutor) ModifyStop(ctx context.Context, pos domain.BrokerPosition, stop float64) error {
	res, err := b.broker.ModifyStop(ctx, pos.ID, stop)
	if err != nil {
		return fmt.Errorf("live.BrokerExecutor.ModifyStop: %w", err)
	}
	if !res.OK() {
		return fmt.Errorf("live.BrokerExecutor.ModifyStop: %w: retcode %d: %s", domain.ErrOrderRejected, res.Retcode, res.Comment)
	}
	return nil
}

func (b *BrokerExecutor) Equity(_ context.Context, acct domain.AccountInfo) float64 {
	return acct.Equity
}

// record stamps the account equity after the fill; when the account cannot be
// read the field stays at zero.
func (b *BrokerExecutor) record(ctx context.Context, orderID, symbol string, side domain.Side, volume, price, pnl float64) domain.TradeRecord {
	if orderID == "" {
		orderID = uuid.New().String()
	}
	rec := domain.TradeRecord{
		ID:          orderID,
		Time:        b.now(),
		Mode:        domain.ModeLive,
		Symbol:      symbol,
		Side:        side,
		Volume:      volume,
		FillPrice:   price,
		RealizedPnL: pnl,
	}
	if acct, err := b.broker.AccountInfo(ctx); err == nil {
		rec.EquityAfter = acct.Equity
	}
	return rec
}
