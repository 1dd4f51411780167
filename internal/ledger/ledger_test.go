package ledger_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newLedger() *ledger.Ledger {
	return ledger.New(10_000, ledger.WithClock(func() time.Time { return fixedNow }))
}

func sumRealized(trades []domain.TradeRecord) float64 {
	var s float64
	for _, t := range trades {
		s += t.RealizedPnL
	}
	return s
}

func TestExecute_OpensPosition(t *testing.T) {
	l := newLedger()
	rec, err := l.Execute("EURUSD", domain.SideBuy, 1, 1.10)
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, fixedNow, rec.Time)
	assert.Equal(t, domain.ModePaper, rec.Mode)
	assert.Zero(t, rec.RealizedPnL)
	assert.Equal(t, 10_000.0, rec.EquityAfter)

	pos, ok := l.Position("EURUSD")
	require.True(t, ok)
	assert.Equal(t, domain.SideBuy, pos.Side)
	assert.Equal(t, 1.0, pos.Volume)
	assert.Equal(t, 1.10, pos.EntryPrice)
	assert.Equal(t, fixedNow, pos.OpenTime)
}

func TestExecute_RoundTripRestoresEquity(t *testing.T) {
	l := newLedger()
	_, err := l.Execute("EURUSD", domain.SideBuy, 2.5, 1.2345)
	require.NoError(t, err)
	_, err = l.Execute("EURUSD", domain.SideSell, 2.5, 1.2345)
	require.NoError(t, err)

	assert.Equal(t, 10_000.0, l.Equity())
	assert.Zero(t, l.OpenCount())
	_, ok := l.Position("EURUSD")
	assert.False(t, ok)
	assert.Len(t, l.Trades(), 2)
}

func TestExecute_ScaleInEquivalence(t *testing.T) {
	a := newLedger()
	_, err := a.Execute("XAU", domain.SideSell, 1, 100)
	require.NoError(t, err)
	_, err = a.Execute("XAU", domain.SideSell, 3, 120)
	require.NoError(t, err)

	b := newLedger()
	_, err = b.Execute("XAU", domain.SideSell, 4, (1*100.0+3*120.0)/4)
	require.NoError(t, err)

	pa, _ := a.Position("XAU")
	pb, _ := b.Position("XAU")
	assert.InDelta(t, pb.EntryPrice, pa.EntryPrice, 1e-9)
	assert.InDelta(t, pb.Volume, pa.Volume, 1e-9)
	assert.Equal(t, pb.Side, pa.Side)
	assert.Equal(t, a.Equity(), b.Equity())
}

func TestExecute_PartialClose(t *testing.T) {
	l := newLedger()
	_, err := l.Execute("EURUSD", domain.SideBuy, 3, 100)
	require.NoError(t, err)

	rec, err := l.Execute("EURUSD", domain.SideSell, 1, 110)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, rec.RealizedPnL, 1e-9)
	assert.InDelta(t, 10_010.0, rec.EquityAfter, 1e-9)

	pos, ok := l.Position("EURUSD")
	require.True(t, ok)
	assert.Equal(t, domain.SideBuy, pos.Side)
	assert.InDelta(t, 2.0, pos.Volume, 1e-9)
	assert.Equal(t, 100.0, pos.EntryPrice)
}

func TestExecute_FlipOpensLeftover(t *testing.T) {
	l := newLedger()
	_, err := l.Execute("EURUSD", domain.SideSell, 1, 100)
	require.NoError(t, err)

	rec, err := l.Execute("EURUSD", domain.SideBuy, 3, 90)
	require.NoError(t, err)
	// short de 100 a 90: +10 por unidad
	assert.InDelta(t, 10.0, rec.RealizedPnL, 1e-9)

	pos, ok := l.Position("EURUSD")
	require.True(t, ok)
	assert.Equal(t, domain.SideBuy, pos.Side)
	assert.InDelta(t, 2.0, pos.Volume, 1e-9)
	assert.Equal(t, 90.0, pos.EntryPrice)
}

func TestExecute_InvalidOrders(t *testing.T) {
	l := newLedger()
	cases := []struct {
		name   string
		symbol string
		side   domain.Side
		volume float64
		price  float64
	}{
		{"bad side", "EURUSD", domain.Side("HOLD"), 1, 1},
		{"close side", "EURUSD", domain.SideClose, 1, 1},
		{"zero volume", "EURUSD", domain.SideBuy, 0, 1},
		{"negative volume", "EURUSD", domain.SideBuy, -1, 1},
		{"zero price", "EURUSD", domain.SideBuy, 1, 0},
		{"empty symbol", "", domain.SideBuy, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Execute(tc.symbol, tc.side, tc.volume, tc.price)
			assert.ErrorIs(t, err, domain.ErrInvalidOrder)
		})
	}
	assert.Empty(t, l.Trades())
	assert.Zero(t, l.OpenCount())
}

func TestClosePosition(t *testing.T) {
	l := newLedger()
	_, err := l.Execute("EURUSD", domain.SideSell, 2, 50)
	require.NoError(t, err)

	pnl, err := l.ClosePosition("EURUSD", 55)
	require.NoError(t, err)
	assert.InDelta(t, -10.0, pnl, 1e-9)
	assert.InDelta(t, 9_990.0, l.Equity(), 1e-9)
	assert.Zero(t, l.OpenCount())

	trades := l.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, domain.SideClose, trades[1].Side)
	assert.Equal(t, 2.0, trades[1].Volume)
}

func TestClosePosition_FlatIsNoop(t *testing.T) {
	l := newLedger()
	pnl, err := l.ClosePosition("EURUSD", 1)
	require.NoError(t, err)
	assert.Zero(t, pnl)
	assert.Empty(t, l.Trades())
}

func TestUnrealizedPnL_DoesNotTouchEquity(t *testing.T) {
	l := newLedger()
	_, err := l.Execute("EURUSD", domain.SideBuy, 2, 10)
	require.NoError(t, err)

	assert.InDelta(t, 4.0, l.UnrealizedPnL("EURUSD", 12), 1e-9)
	assert.Zero(t, l.UnrealizedPnL("GBPUSD", 12))
	assert.Equal(t, 10_000.0, l.Equity())
}

func TestEquityMatchesTradeLog(t *testing.T) {
	l := newLedger()
	steps := []struct {
		symbol string
		side   domain.Side
		volume float64
		price  float64
	}{
		{"A", domain.SideBuy, 1, 10},
		{"B", domain.SideSell, 2, 20},
		{"A", domain.SideBuy, 1, 12},
		{"A", domain.SideSell, 3, 15},
		{"B", domain.SideBuy, 1, 18},
		{"A", domain.SideBuy, 0.5, 14},
	}
	for _, s := range steps {
		_, err := l.Execute(s.symbol, s.side, s.volume, s.price)
		require.NoError(t, err)
		assert.InDelta(t, 10_000+sumRealized(l.Trades()), l.Equity(), 1e-9)
	}
	_, err := l.ClosePosition("B", 19)
	require.NoError(t, err)

	st := l.State()
	assert.Equal(t, 10_000.0, st.StartingEquity)
	assert.InDelta(t, 10_000+sumRealized(l.Trades()), st.CurrentEquity, 1e-9)

	var fromHistory float64
	for _, p := range st.RealizedPnL {
		fromHistory += p
	}
	assert.InDelta(t, st.CurrentEquity-st.StartingEquity, fromHistory, 1e-9)
	assert.Len(t, l.Trades(), len(steps)+1)
}

func TestPositions_ReturnsCopiesSorted(t *testing.T) {
	l := newLedger()
	_, _ = l.Execute("ZZZ", domain.SideBuy, 1, 1)
	_, _ = l.Execute("AAA", domain.SideBuy, 1, 1)

	ps := l.Positions()
	require.Len(t, ps, 2)
	assert.Equal(t, "AAA", ps[0].Symbol)
	assert.Equal(t, "ZZZ", ps[1].Symbol)

	ps[0].Volume = 99
	pos, _ := l.Position("AAA")
	assert.Equal(t, 1.0, pos.Volume)
}

func TestSetStop(t *testing.T) {
	l := newLedger()
	assert.False(t, l.SetStop("EURUSD", 1.0))

	_, _ = l.Execute("EURUSD", domain.SideBuy, 1, 1.1)
	assert.True(t, l.SetStop("EURUSD", 1.105))
	pos, _ := l.Position("EURUSD")
	assert.Equal(t, 1.105, pos.StopLoss)
}

func TestWithMode(t *testing.T) {
	l := ledger.New(100, ledger.WithMode(domain.ModeLive))
	rec, err := l.Execute("X", domain.SideBuy, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeLive, rec.Mode)
}

func TestLastTrade(t *testing.T) {
	l := newLedger()
	_, ok := l.LastTrade()
	assert.False(t, ok)

	_, _ = l.Execute("X", domain.SideBuy, 1, 10)
	_, _ = l.ClosePosition("X", 12)
	last, ok := l.LastTrade()
	require.True(t, ok)
	assert.Equal(t, domain.SideClose, last.Side)
	assert.InDelta(t, 2.0, last.RealizedPnL, 1e-9)
}
