package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
)

// SaveDaily hace upsert del resumen del día para el modo dado.
func (j *SQLiteJournal) SaveDaily(ctx context.Context, d domain.DailySummary) error {
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO daily_summaries
			(date, mode, start_equity, end_equity, trades, wins, losses, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, mode) DO UPDATE SET
			end_equity   = excluded.end_equity,
			trades       = excluded.trades,
			wins         = excluded.wins,
			losses       = excluded.losses,
			realized_pnl = excluded.realized_pnl
	`,
		d.Date.UTC().Format(time.DateOnly), string(d.Mode), d.StartEquity, d.EndEquity,
		d.Trades, d.Wins, d.Losses, d.RealizedPnL,
	); err != nil {
		return fmt.Errorf("storage.SaveDaily: upsert %s: %w", d.Date.Format(time.DateOnly), err)
	}
	return nil
}

// GetDailies devuelve los resúmenes diarios del modo, del más antiguo al más reciente.
func (j *SQLiteJournal) GetDailies(ctx context.Context, mode domain.TradeMode) ([]domain.DailySummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, mode, start_equity, end_equity, trades, wins, losses, realized_pnl
		FROM daily_summaries
		WHERE mode = ?
		ORDER BY date ASC
	`, string(mode))
	if err != nil {
		return nil, fmt.Errorf("storage.GetDailies: query: %w", err)
	}
	defer rows.Close()

	var out []domain.DailySummary
	for rows.Next() {
		var d domain.DailySummary
		var date, m string
		if err := rows.Scan(&date, &m, &d.StartEquity, &d.EndEquity,
			&d.Trades, &d.Wins, &d.Losses, &d.RealizedPnL); err != nil {
			return nil, fmt.Errorf("storage.GetDailies: scan row: %w", err)
		}
		d.Date, _ = time.Parse(time.DateOnly, date)
		d.Mode = domain.TradeMode(m)
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveSymbolState persiste los contadores del símbolo si cambiaron desde la
// última escritura.
func (j *SQLiteJournal) SaveSymbolState(ctx context.Context, symbol string, st domain.SymbolState) error {
	j.mu.Lock()
	prev, ok := j.states[symbol]
	j.mu.Unlock()
	if ok && prev.ConsecutiveLosses == st.ConsecutiveLosses && prev.LastSignalTime.Equal(st.LastSignalTime) {
		return nil
	}

	updated := st.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO symbol_states (symbol, consecutive_losses, last_signal_time, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			consecutive_losses = excluded.consecutive_losses,
			last_signal_time   = excluded.last_signal_time,
			updated_at         = excluded.updated_at
	`, symbol, st.ConsecutiveLosses, formatTS(st.LastSignalTime), formatTS(updated)); err != nil {
		return fmt.Errorf("storage.SaveSymbolState: upsert %s: %w", symbol, err)
	}

	j.mu.Lock()
	j.states[symbol] = st
	j.mu.Unlock()
	return nil
}

// LoadSymbolStates devuelve todos los estados guardados indexados por símbolo.
func (j *SQLiteJournal) LoadSymbolStates(ctx context.Context) (map[string]domain.SymbolState, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT symbol, consecutive_losses, last_signal_time, updated_at FROM symbol_states`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadSymbolStates: query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.SymbolState)
	for rows.Next() {
		var sym, last, updated string
		var st domain.SymbolState
		if err := rows.Scan(&sym, &st.ConsecutiveLosses, &last, &updated); err != nil {
			return nil, fmt.Errorf("storage.LoadSymbolStates: scan row: %w", err)
		}
		st.LastSignalTime = parseTS(last)
		st.UpdatedAt = parseTS(updated)
		out[sym] = st
	}
	return out, rows.Err()
}
