package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/ports"
	"github.com/olekukonko/tablewriter"
)

var _ ports.EventSink = (*Console)(nil)

// Console imprime resultados de backtest, informes y eventos del loop.
type Console struct {
	out     io.Writer
	verbose bool
}

// NewConsole crea un Console que escribe a stdout.
// En modo verbose también imprime los eventos signal_computed.
func NewConsole(verbose bool) *Console {
	return &Console{out: os.Stdout, verbose: verbose}
}

// NewConsoleWriter crea un Console para tests.
func NewConsoleWriter(w io.Writer, verbose bool) *Console {
	return &Console{out: w, verbose: verbose}
}

// Emit imprime una línea compacta por evento.
func (c *Console) Emit(_ context.Context, ev domain.Event) {
	if ev.Kind == domain.EventSignalComputed && !c.verbose {
		return
	}
	fmt.Fprintln(c.out, formatEvent(ev))
}

func formatEvent(ev domain.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] #%d %-15s", ev.Time.Format("15:04:05"), ev.Cycle, ev.Kind)
	if ev.Symbol != "" {
		fmt.Fprintf(&sb, " %s", ev.Symbol)
	}
	switch ev.Kind {
	case domain.EventSignalComputed:
		fmt.Fprintf(&sb, " %s conf=%.4f", ev.Direction, ev.Confidence)
	case domain.EventOrderPlaced:
		fmt.Fprintf(&sb, " %s vol=%.2f @%.5f", ev.Side, ev.Volume, ev.Price)
	case domain.EventPositionClosed:
		fmt.Fprintf(&sb, " %s vol=%.2f @%.5f pnl=%+.2f", ev.Side, ev.Volume, ev.Price, ev.PnL)
	case domain.EventStopModified:
		fmt.Fprintf(&sb, " sl=%.5f", ev.Price)
	case domain.EventCycleComplete:
		fmt.Fprintf(&sb, " daily_pnl=%+.2f", ev.PnL)
	}
	if ev.Reason != "" {
		fmt.Fprintf(&sb, " (%s)", ev.Reason)
	}
	return sb.String()
}

// PrintBacktest imprime el resumen de un run.
func (c *Console) PrintBacktest(run domain.BacktestRun) {
	r := run.Result
	fmt.Fprintf(c.out, "\n=== BACKTEST %s ===\n", run.RunID)
	if run.Dataset != "" {
		fmt.Fprintf(c.out, "  Dataset: %s (%d bars", run.Dataset, run.Bars)
		if !run.Start.IsZero() {
			fmt.Fprintf(c.out, ", %s → %s", run.Start.Format("2006-01-02 15:04"), run.End.Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(c.out, ")")
	}
	fmt.Fprintf(c.out, "  SMA %d/%d on %s\n\n", run.FastWindow, run.SlowWindow, run.PriceColumn)

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Initial cash", fmt.Sprintf("%.2f", run.InitialCash))
	table.Append("Final cash", fmt.Sprintf("%.2f", r.FinalCash))
	table.Append("Total return", pct(r.TotalReturn))
	table.Append("Trades", fmt.Sprintf("%d", r.Trades))
	table.Append("Win rate", pct(r.WinRate))
	table.Append("Max drawdown", pct(r.MaxDrawdown))
	table.Render()
}

// PrintSweep imprime el ranking de combinaciones, limitado a top (0 = todas).
func (c *Console) PrintSweep(results []domain.SweepResult, top int) {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "no sweep results")
		return
	}
	if top > 0 && len(results) > top {
		results = results[:top]
	}

	fmt.Fprintf(c.out, "\n=== SWEEP (top %d) ===\n", len(results))
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Fast", "Slow", "Return", "Trades", "Win rate", "Max DD", "Final cash")
	for i, s := range results {
		r := s.Result
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", s.FastWindow),
			fmt.Sprintf("%d", s.SlowWindow),
			pct(r.TotalReturn),
			fmt.Sprintf("%d", r.Trades),
			pct(r.WinRate),
			pct(r.MaxDrawdown),
			fmt.Sprintf("%.2f", r.FinalCash),
		)
	}
	table.Render()
}

// PrintRuns lista runs guardados en el journal.
func (c *Console) PrintRuns(runs []domain.BacktestRun) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "no backtest runs stored")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Run", "Created", "Dataset", "SMA", "Return", "Trades", "Max DD")
	for _, run := range runs {
		table.Append(
			run.RunID,
			run.CreatedAt.Format("2006-01-02 15:04"),
			run.Dataset,
			fmt.Sprintf("%d/%d", run.FastWindow, run.SlowWindow),
			pct(run.Result.TotalReturn),
			fmt.Sprintf("%d", run.Result.Trades),
			pct(run.Result.MaxDrawdown),
		)
	}
	table.Render()
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
