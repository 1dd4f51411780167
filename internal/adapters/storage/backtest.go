package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alejandrodnm/quantengine/internal/domain"
)

// ErrRunNotFound se devuelve cuando no existe el run pedido.
var ErrRunNotFound = errors.New("backtest run not found")

const runColumns = `run_id, created_at, symbol, dataset, price_column, fast_window, slow_window,
	bars, start_ts, end_ts, initial_cash, total_return, trades, win_rate, max_drawdown,
	final_cash, equity_curve`

// SaveBacktestRun persiste el resumen de un backtest. Las series por vela no se
// guardan salvo la curva de equity.
func (j *SQLiteJournal) SaveBacktestRun(ctx context.Context, run domain.BacktestRun) error {
	curve, err := json.Marshal(run.Result.EquityCurve)
	if err != nil {
		return fmt.Errorf("storage.SaveBacktestRun: encode curve: %w", err)
	}
	r := run.Result
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, formatTS(run.CreatedAt), run.Symbol, run.Dataset, run.PriceColumn,
		run.FastWindow, run.SlowWindow, run.Bars, formatTS(run.Start), formatTS(run.End),
		run.InitialCash, r.TotalReturn, r.Trades, r.WinRate, r.MaxDrawdown, r.FinalCash,
		string(curve),
	); err != nil {
		return fmt.Errorf("storage.SaveBacktestRun: insert %s: %w", run.RunID, err)
	}
	return nil
}

// GetBacktestRun devuelve un run por ID o ErrRunNotFound.
func (j *SQLiteJournal) GetBacktestRun(ctx context.Context, runID string) (domain.BacktestRun, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetBacktestRun: %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetBacktestRun: %w", err)
	}
	return run, nil
}

// ListBacktestRuns devuelve los últimos runs, los más recientes primero.
func (j *SQLiteJournal) ListBacktestRuns(ctx context.Context, limit int) ([]domain.BacktestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM backtest_runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListBacktestRuns: query: %w", err)
	}
	defer rows.Close()

	var out []domain.BacktestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListBacktestRuns: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.BacktestRun, error) {
	var run domain.BacktestRun
	var created, start, end, curve string
	r := &run.Result
	if err := row.Scan(&run.RunID, &created, &run.Symbol, &run.Dataset, &run.PriceColumn,
		&run.FastWindow, &run.SlowWindow, &run.Bars, &start, &end, &run.InitialCash,
		&r.TotalReturn, &r.Trades, &r.WinRate, &r.MaxDrawdown, &r.FinalCash, &curve); err != nil {
		return domain.BacktestRun{}, err
	}
	run.CreatedAt = parseTS(created)
	run.Start = parseTS(start)
	run.End = parseTS(end)
	if err := json.Unmarshal([]byte(curve), &r.EquityCurve); err != nil {
		return domain.BacktestRun{}, fmt.Errorf("decode curve of %s: %w", run.RunID, err)
	}
	return run, nil
}
