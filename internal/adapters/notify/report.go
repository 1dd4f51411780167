package notify

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// TradeStats agrega el log de operaciones. Solo las filas con PnL realizado
// distinto de 0 cuentan como cierres.
type TradeStats struct {
	Fills       int
	Closes      int
	Wins        int
	Losses      int
	RealizedPnL float64
	BestTrade   float64
	WorstTrade  float64
}

// WinRate devuelve wins / closes, 0 sin cierres.
func (s TradeStats) WinRate() float64 {
	if s.Closes == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Closes)
}

// ComputeTradeStats resume un slice de TradeRecord.
func ComputeTradeStats(trades []domain.TradeRecord) TradeStats {
	var s TradeStats
	s.Fills = len(trades)
	for _, t := range trades {
		if t.RealizedPnL == 0 {
			continue
		}
		s.Closes++
		s.RealizedPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		if s.Closes == 1 {
			s.BestTrade, s.WorstTrade = t.RealizedPnL, t.RealizedPnL
			continue
		}
		s.BestTrade = max(s.BestTrade, t.RealizedPnL)
		s.WorstTrade = min(s.WorstTrade, t.RealizedPnL)
	}
	return s
}

// PrintTradeReport imprime el informe del periodo: totales, operaciones y
// resúmenes diarios.
func (c *Console) PrintTradeReport(from, to time.Time, trades []domain.TradeRecord, dailies []domain.DailySummary) {
	fmt.Fprintf(c.out, "\n=== TRADE REPORT %s → %s ===\n", from.Format("2006-01-02"), to.Format("2006-01-02"))

	s := ComputeTradeStats(trades)
	fmt.Fprintf(c.out, "  Fills:        %d\n", s.Fills)
	fmt.Fprintf(c.out, "  Closes:       %d (W:%d L:%d, win rate %s)\n", s.Closes, s.Wins, s.Losses, pct(s.WinRate()))
	fmt.Fprintf(c.out, "  Realized PnL: %+.2f\n", s.RealizedPnL)
	if s.Closes > 0 {
		fmt.Fprintf(c.out, "  Best / worst: %+.2f / %+.2f\n", s.BestTrade, s.WorstTrade)
	}

	if len(trades) > 0 {
		fmt.Fprintln(c.out)
		table := tablewriter.NewWriter(c.out)
		table.Header("Time", "Mode", "Symbol", "Side", "Volume", "Price", "PnL", "Equity")
		for _, t := range trades {
			table.Append(
				t.Time.Format("2006-01-02 15:04:05"),
				string(t.Mode),
				t.Symbol,
				string(t.Side),
				fmt.Sprintf("%.2f", t.Volume),
				fmt.Sprintf("%.5f", t.FillPrice),
				fmt.Sprintf("%+.2f", t.RealizedPnL),
				fmt.Sprintf("%.2f", t.EquityAfter),
			)
		}
		table.Render()
	}

	c.PrintDailies(dailies)
}

// PrintDailies imprime una fila por día.
func (c *Console) PrintDailies(dailies []domain.DailySummary) {
	if len(dailies) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n── DAILY (%d days) ──\n", len(dailies))
	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Mode", "Start", "End", "Trades", "W", "L", "PnL")
	for _, d := range dailies {
		table.Append(
			d.Date.Format("2006-01-02"),
			string(d.Mode),
			fmt.Sprintf("%.2f", d.StartEquity),
			fmt.Sprintf("%.2f", d.EndEquity),
			fmt.Sprintf("%d", d.Trades),
			fmt.Sprintf("%d", d.Wins),
			fmt.Sprintf("%d", d.Losses),
			fmt.Sprintf("%+.2f", d.RealizedPnL),
		)
	}
	table.Render()
}
