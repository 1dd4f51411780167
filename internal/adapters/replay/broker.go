// Package replay implementa un broker offline que reproduce velas históricas.
//
// El Broker hace también de reloj del loop: Now devuelve el timestamp de la
// vela actual y Sleep avanza una vela en vez de dormir. Así el loop live
// recorre un histórico completo en segundos con la misma lógica que en real.
package replay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/ports"
	"github.com/google/uuid"
)

// ErrExhausted lo devuelve Sleep cuando no quedan velas por reproducir.
var ErrExhausted = errors.New("replay: history exhausted")

// Config define la cuenta simulada y el símbolo sintético.
type Config struct {
	InitialBalance float64
	Currency       string
	Spread         float64 // ask - bid, en precio
	Point          float64
	VolumeMin      float64
	VolumeStep     float64
	// Warmup son las velas visibles antes del primer ciclo.
	Warmup int
}

func (c *Config) setDefaults() {
	if c.InitialBalance <= 0 {
		c.InitialBalance = 10000
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if c.Point <= 0 {
		c.Point = 0.00001
	}
	if c.VolumeMin <= 0 {
		c.VolumeMin = 0.01
	}
	if c.VolumeStep <= 0 {
		c.VolumeStep = 0.01
	}
	if c.Warmup < 1 {
		c.Warmup = 1
	}
}

var _ ports.Broker = (*Broker)(nil)

// Broker sirve velas de un histórico cargado y ejecuta órdenes al precio de la
// cotización actual. Las posiciones son independientes (hedging).
type Broker struct {
	cfg      Config
	history  map[string]domain.Bars
	timeline []time.Time
	cursor   int

	mu        sync.Mutex
	connected bool
	balance   float64
	positions []domain.BrokerPosition
	nextID    int64
}

// New crea un Broker a partir de las series por símbolo. Todas las series se
// validan; el reloj arranca en la vela Warmup de la línea temporal común.
func New(history map[string]domain.Bars, cfg Config) (*Broker, error) {
	cfg.setDefaults()
	if len(history) == 0 {
		return nil, fmt.Errorf("replay.New: %w: no symbols", domain.ErrEmptyInput)
	}
	seen := make(map[int64]time.Time)
	for sym, bars := range history {
		if len(bars) == 0 {
			return nil, fmt.Errorf("replay.New: %w: %s has no bars", domain.ErrEmptyInput, sym)
		}
		if err := bars.Validate(); err != nil {
			return nil, fmt.Errorf("replay.New: %s: %w", sym, err)
		}
		for _, b := range bars {
			seen[b.Time.UnixNano()] = b.Time
		}
	}
	timeline := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		timeline = append(timeline, t)
	}
	slices.SortFunc(timeline, func(a, b time.Time) int { return a.Compare(b) })

	return &Broker{
		cfg:      cfg,
		history:  history,
		timeline: timeline,
		cursor:   min(cfg.Warmup, len(timeline)) - 1,
		balance:  cfg.InitialBalance,
		nextID:   1,
	}, nil
}

// Remaining devuelve cuántas veces más puede avanzar el reloj.
func (b *Broker) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timeline) - 1 - b.cursor
}

// --- engine.Clock ---

// Now devuelve el timestamp de la vela actual.
func (b *Broker) Now() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeline[b.cursor]
}

// Sleep avanza una vela. Devuelve ErrExhausted al final del histórico.
func (b *Broker) Sleep(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cursor >= len(b.timeline)-1 {
		return ErrExhausted
	}
	b.cursor++
	return nil
}

// --- ports.Broker ---

func (b *Broker) Connect(_ context.Context) error {
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	return nil
}

func (b *Broker) Disconnect(_ context.Context) error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

// AccountInfo valora las posiciones abiertas a la cotización actual.
func (b *Broker) AccountInfo(_ context.Context) (domain.AccountInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	equity := b.balance
	for _, p := range b.positions {
		if tick, err := b.tickLocked(p.Symbol); err == nil {
			equity += profit(p, tick.MarkPrice(p.Side))
		}
	}
	return domain.AccountInfo{Login: 1, Currency: b.cfg.Currency, Equity: equity, Balance: b.balance}, nil
}

// Positions devuelve copias con PriceCurrent actualizado.
func (b *Broker) Positions(_ context.Context) ([]domain.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.BrokerPosition, 0, len(b.positions))
	for _, p := range b.positions {
		if tick, err := b.tickLocked(p.Symbol); err == nil {
			p.PriceCurrent = tick.MarkPrice(p.Side)
		}
		out = append(out, p)
	}
	return out, nil
}

func (b *Broker) SymbolTick(_ context.Context, symbol string) (domain.Tick, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tickLocked(symbol)
}

func (b *Broker) SymbolInfo(_ context.Context, symbol string) (domain.SymbolInfo, error) {
	if _, ok := b.history[symbol]; !ok {
		return domain.SymbolInfo{}, fmt.Errorf("replay.SymbolInfo: %w: unknown symbol %s", domain.ErrDataUnavailable, symbol)
	}
	return domain.SymbolInfo{
		Symbol:     symbol,
		Point:      b.cfg.Point,
		VolumeMin:  b.cfg.VolumeMin,
		VolumeStep: b.cfg.VolumeStep,
	}, nil
}

// Rates devuelve las últimas count velas visibles. El timeframe se ignora: el
// histórico ya viene en su resolución.
func (b *Broker) Rates(_ context.Context, symbol, _ string, count int) (domain.Bars, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	visible := b.visibleLocked(symbol)
	if len(visible) == 0 {
		return nil, fmt.Errorf("replay.Rates: %w: no bars for %s", domain.ErrDataUnavailable, symbol)
	}
	if count > 0 && len(visible) > count {
		visible = visible[len(visible)-count:]
	}
	return slices.Clone(visible), nil
}

// SendOrder abre una posición nueva a la cotización actual.
func (b *Broker) SendOrder(_ context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return domain.OrderResult{Retcode: retcodeNoConnection, Comment: "not connected"}, nil
	}
	if !req.Side.Valid() || req.Volume <= 0 {
		return domain.OrderResult{Retcode: retcodeInvalid, Comment: "invalid request"}, nil
	}
	tick, err := b.tickLocked(req.Symbol)
	if err != nil {
		return domain.OrderResult{}, err
	}
	price := tick.EntryPrice(req.Side)
	b.positions = append(b.positions, domain.BrokerPosition{
		ID:           b.nextID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Volume:       req.Volume,
		PriceOpen:    price,
		PriceCurrent: tick.MarkPrice(req.Side),
		OpenTime:     tick.Time,
	})
	b.nextID++
	return domain.OrderResult{Retcode: domain.RetcodeDone, OrderID: uuid.NewString(), FillPrice: price}, nil
}

func (b *Broker) ModifyStop(_ context.Context, positionID int64, stop float64) (domain.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(positionID)
	if i < 0 {
		return domain.OrderResult{Retcode: retcodeInvalid, Comment: "position not found"}, nil
	}
	b.positions[i].StopLoss = stop
	return domain.OrderResult{Retcode: domain.RetcodeDone}, nil
}

// ClosePosition cierra al precio de marca y acredita el beneficio al balance.
func (b *Broker) ClosePosition(_ context.Context, pos domain.BrokerPosition) (domain.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(pos.ID)
	if i < 0 {
		return domain.OrderResult{Retcode: retcodeInvalid, Comment: "position not found"}, nil
	}
	p := b.positions[i]
	tick, err := b.tickLocked(p.Symbol)
	if err != nil {
		return domain.OrderResult{}, err
	}
	price := tick.MarkPrice(p.Side)
	pnl := profit(p, price)
	b.balance += pnl
	b.positions = slices.Delete(b.positions, i, i+1)
	return domain.OrderResult{Retcode: domain.RetcodeDone, OrderID: uuid.NewString(), FillPrice: price, Profit: pnl}, nil
}

// --- helpers internos ---

const (
	retcodeInvalid      = 10013
	retcodeNoConnection = 10031
)

// visibleLocked devuelve las velas del símbolo con Time <= reloj actual.
func (b *Broker) visibleLocked(symbol string) domain.Bars {
	bars := b.history[symbol]
	now := b.timeline[b.cursor]
	n, _ := slices.BinarySearchFunc(bars, now, func(bar domain.PriceBar, t time.Time) int {
		if bar.Time.After(t) {
			return 1
		}
		return -1
	})
	return bars[:n]
}

func (b *Broker) tickLocked(symbol string) (domain.Tick, error) {
	last, ok := b.visibleLocked(symbol).Last()
	if !ok {
		return domain.Tick{}, fmt.Errorf("replay.SymbolTick: %w: no quote for %s", domain.ErrDataUnavailable, symbol)
	}
	half := b.cfg.Spread / 2
	return domain.Tick{Symbol: symbol, Bid: last.Close - half, Ask: last.Close + half, Time: last.Time}, nil
}

func (b *Broker) indexLocked(id int64) int {
	return slices.IndexFunc(b.positions, func(p domain.BrokerPosition) bool { return p.ID == id })
}

func profit(p domain.BrokerPosition, price float64) float64 {
	return (price - p.PriceOpen) * p.Side.Direction() * p.Volume
}
