// Package ledger tracks simulated equity and open positions as fills are
// applied. It backs the paper executor of the live loop; the backtester follows
// the same accounting in vectorized form.
package ledger

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/google/uuid"
)

// Volumes below this are treated as fully consumed.
const volumeEpsilon = 1e-9

// Ledger holds at most one position per symbol and an append-only trade log.
// Equity only moves when PnL is realized. Not safe for concurrent use.
type Ledger struct {
	startingEquity float64
	equity         float64
	realized       []float64
	positions      map[string]*domain.Position
	trades         []domain.TradeRecord
	mode           domain.TradeMode
	now            func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for trade timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithMode sets the mode stamped on trade records. Defaults to paper.
func WithMode(m domain.TradeMode) Option {
	return func(l *Ledger) { l.mode = m }
}

// New creates a flat ledger.
func New(startingEquity float64, opts ...Option) *Ledger {
	l := &Ledger{
		startingEquity: startingEquity,
		equity:         startingEquity,
		positions:      make(map[string]*domain.Position),
		mode:           domain.ModePaper,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// Execute applies a fill. Same-side fills scale in at the volume-weighted entry;
// opposite-side fills close up to the held volume and open any leftover on the
// new side at the fill price.
func (l *Ledger) Execute(symbol string, side domain.Side, volume, price float64) (domain.TradeRecord, error) {
	if symbol == "" {
		return domain.TradeRecord{}, fmt.Errorf("ledger.Execute: %w: empty symbol", domain.ErrInvalidOrder)
	}
	if !side.Valid() {
		return domain.TradeRecord{}, fmt.Errorf("ledger.Execute: %w: side %q", domain.ErrInvalidOrder, side)
	}
	if !(volume > 0) || math.IsInf(volume, 0) {
		return domain.TradeRecord{}, fmt.Errorf("ledger.Execute: %w: volume %v", domain.ErrInvalidOrder, volume)
	}
	if !validPrice(price) {
		return domain.TradeRecord{}, fmt.Errorf("ledger.Execute: %w: price %v", domain.ErrInvalidOrder, price)
	}

	var pnl float64
	pos, ok := l.positions[symbol]
	switch {
	case !ok:
		l.open(symbol, side, volume, price)

	case pos.Side == side:
		total := pos.Volume + volume
		pos.EntryPrice = (pos.EntryPrice*pos.Volume + price*volume) / total
		pos.Volume = total

	default:
		closed := math.Min(pos.Volume, volume)
		pnl = (price - pos.EntryPrice) * pos.Side.Direction() * closed
		l.realize(pnl)

		remaining := pos.Volume - closed
		leftover := volume - closed
		if remaining > volumeEpsilon {
			pos.Volume = remaining
		} else {
			delete(l.positions, symbol)
			if leftover > volumeEpsilon {
				l.open(symbol, side, leftover, price)
			}
		}
	}

	return l.record(symbol, side, volume, price, pnl), nil
}

// ClosePosition force-closes the symbol's position at price and returns the
// realized PnL. Closing a symbol with no position returns 0 and records nothing.
func (l *Ledger) ClosePosition(symbol string, price float64) (float64, error) {
	pos, ok := l.positions[symbol]
	if !ok {
		return 0, nil
	}
	if !validPrice(price) {
		return 0, fmt.Errorf("ledger.ClosePosition: %w: price %v", domain.ErrInvalidOrder, price)
	}

	pnl := pos.UnrealizedPnL(price)
	l.realize(pnl)
	delete(l.positions, symbol)
	l.record(symbol, domain.SideClose, pos.Volume, price, pnl)
	return pnl, nil
}

// SetStop stores the protective stop of an open position. Returns false when
// the symbol is flat.
func (l *Ledger) SetStop(symbol string, stop float64) bool {
	pos, ok := l.positions[symbol]
	if !ok {
		return false
	}
	pos.StopLoss = stop
	return true
}

// UnrealizedPnL is a pure query; 0 when the symbol is flat.
func (l *Ledger) UnrealizedPnL(symbol string, price float64) float64 {
	pos, ok := l.positions[symbol]
	if !ok {
		return 0
	}
	return pos.UnrealizedPnL(price)
}

// Position returns a copy of the symbol's open position.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions sorted by symbol.
func (l *Ledger) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// OpenCount is the number of symbols with an open position.
func (l *Ledger) OpenCount() int {
	return len(l.positions)
}

// Equity is starting equity plus all realized PnL.
func (l *Ledger) Equity() float64 {
	return l.equity
}

// State returns a snapshot of the equity accounting.
func (l *Ledger) State() domain.EquityState {
	return domain.EquityState{
		StartingEquity: l.startingEquity,
		CurrentEquity:  l.equity,
		RealizedPnL:    append([]float64(nil), l.realized...),
	}
}

// Trades returns a copy of the trade log in insertion order.
func (l *Ledger) Trades() []domain.TradeRecord {
	return append([]domain.TradeRecord(nil), l.trades...)
}

// LastTrade returns the most recent trade record.
func (l *Ledger) LastTrade() (domain.TradeRecord, bool) {
	if len(l.trades) == 0 {
		return domain.TradeRecord{}, false
	}
	return l.trades[len(l.trades)-1], true
}

func (l *Ledger) open(symbol string, side domain.Side, volume, price float64) {
	l.positions[symbol] = &domain.Position{
		Symbol:     symbol,
		Side:       side,
		Volume:     volume,
		EntryPrice: price,
		OpenTime:   l.now(),
	}
}

func (l *Ledger) realize(pnl float64) {
	l.equity += pnl
	l.realized = append(l.realized, pnl)
}

func (l *Ledger) record(symbol string, side domain.Side, volume, price, pnl float64) domain.TradeRecord {
	rec := domain.TradeRecord{
		ID:          uuid.New().String(),
		Time:        l.now(),
		Mode:        l.mode,
		Symbol:      symbol,
		Side:        side,
		Volume:      volume,
		FillPrice:   price,
		RealizedPnL: pnl,
		EquityAfter: l.equity,
	}
	l.trades = append(l.trades, rec)
	return rec
}
