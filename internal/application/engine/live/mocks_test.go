package live_test

import (
	"context"
	"errors"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
)

var errNoData = errors.New("no data")

type mockBroker struct {
	connectErr   error
	connects     int
	disconnects  int
	acct         domain.AccountInfo
	acctErr      error
	acctCalls    int
	onAccount    func()
	rates        map[string]domain.Bars
	ratesErr     map[string]error
	panicSymbol  string
	ticks        map[string]domain.Tick
	infos        map[string]domain.SymbolInfo
	positions    []domain.BrokerPosition
	sendResult   domain.OrderResult
	sent         []domain.OrderRequest
	closeResult  domain.OrderResult
	closed       []domain.BrokerPosition
	modifyResult domain.OrderResult
	stops        map[int64]float64
}

func newMockBroker() *mockBroker {
	return &mockBroker{
		acct:         domain.AccountInfo{Equity: 10_000, Balance: 10_000},
		rates:        make(map[string]domain.Bars),
		ratesErr:     make(map[string]error),
		ticks:        make(map[string]domain.Tick),
		infos:        make(map[string]domain.SymbolInfo),
		sendResult:   domain.OrderResult{Retcode: domain.RetcodeDone},
		closeResult:  domain.OrderResult{Retcode: domain.RetcodeDone},
		modifyResult: domain.OrderResult{Retcode: domain.RetcodeDone},
		stops:        make(map[int64]float64),
	}
}

func (m *mockBroker) Connect(_ context.Context) error {
	m.connects++
	return m.connectErr
}

func (m *mockBroker) Disconnect(_ context.Context) error {
	m.disconnects++
	return nil
}

func (m *mockBroker) AccountInfo(_ context.Context) (domain.AccountInfo, error) {
	m.acctCalls++
	if m.onAccount != nil {
		m.onAccount()
	}
	if m.acctErr != nil {
		return domain.AccountInfo{}, m.acctErr
	}
	return m.acct, nil
}

func (m *mockBroker) Positions(_ context.Context) ([]domain.BrokerPosition, error) {
	return m.positions, nil
}

func (m *mockBroker) SymbolTick(_ context.Context, symbol string) (domain.Tick, error) {
	t, ok := m.ticks[symbol]
	if !ok {
		return domain.Tick{}, errNoData
	}
	return t, nil
}

func (m *mockBroker) SymbolInfo(_ context.Context, symbol string) (domain.SymbolInfo, error) {
	info, ok := m.infos[symbol]
	if !ok {
		return domain.SymbolInfo{}, errNoData
	}
	return info, nil
}

func (m *mockBroker) Rates(_ context.Context, symbol, _ string, _ int) (domain.Bars, error) {
	if symbol == m.panicSymbol {
		panic("rates exploded")
	}
	if err := m.ratesErr[symbol]; err != nil {
		return nil, err
	}
	return m.rates[symbol], nil
}

func (m *mockBroker) SendOrder(_ context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	m.sent = append(m.sent, req)
	res := m.sendResult
	if res.FillPrice == 0 {
		res.FillPrice = req.Price
	}
	return res, nil
}

func (m *mockBroker) ModifyStop(_ context.Context, positionID int64, stop float64) (domain.OrderResult, error) {
	m.stops[positionID] = stop
	return m.modifyResult, nil
}

func (m *mockBroker) ClosePosition(_ context.Context, pos domain.BrokerPosition) (domain.OrderResult, error) {
	m.closed = append(m.closed, pos)
	return m.closeResult, nil
}

type fakeClock struct {
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if c.onSleep != nil {
		c.onSleep(len(c.sleeps))
	}
	return ctx.Err()
}

type recordingSink struct {
	events []domain.Event
}

func (s *recordingSink) Emit(_ context.Context, ev domain.Event) {
	s.events = append(s.events, ev)
}

func (s *recordingSink) kinds() []domain.EventKind {
	out := make([]domain.EventKind, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Kind
	}
	return out
}

func (s *recordingSink) count(kind domain.EventKind) int {
	n := 0
	for _, ev := range s.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type mockJournal struct {
	trades  []domain.TradeRecord
	dailies []domain.DailySummary
	states  map[string]domain.SymbolState
	saveErr error
}

func newMockJournal() *mockJournal {
	return &mockJournal{states: make(map[string]domain.SymbolState)}
}

func (j *mockJournal) SaveTrade(_ context.Context, rec domain.TradeRecord) error {
	if j.saveErr != nil {
		return j.saveErr
	}
	j.trades = append(j.trades, rec)
	return nil
}

func (j *mockJournal) GetTrades(_ context.Context, _, _ time.Time) ([]domain.TradeRecord, error) {
	return j.trades, nil
}

func (j *mockJournal) SaveDaily(_ context.Context, d domain.DailySummary) error {
	j.dailies = append(j.dailies, d)
	return nil
}

func (j *mockJournal) GetDailies(_ context.Context, _ domain.TradeMode) ([]domain.DailySummary, error) {
	return j.dailies, nil
}

func (j *mockJournal) SaveSymbolState(_ context.Context, symbol string, st domain.SymbolState) error {
	j.states[symbol] = st
	return nil
}

func (j *mockJournal) LoadSymbolStates(_ context.Context) (map[string]domain.SymbolState, error) {
	out := make(map[string]domain.SymbolState, len(j.states))
	for k, v := range j.states {
		out[k] = v
	}
	return out, nil
}

func (j *mockJournal) SaveBacktestRun(_ context.Context, _ domain.BacktestRun) error { return nil }

func (j *mockJournal) GetBacktestRun(_ context.Context, _ string) (domain.BacktestRun, error) {
	return domain.BacktestRun{}, nil
}

func (j *mockJournal) ListBacktestRuns(_ context.Context, _ int) ([]domain.BacktestRun, error) {
	return nil, nil
}

func (j *mockJournal) Close() error { return nil }
