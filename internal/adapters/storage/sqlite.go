package storage

// sqlite.go: journal de operaciones en SQLite.
//
// Tablas:
//   - `trades`: log append-only de fills y cierres (paper y live).
//   - `daily_summaries`: UNA fila por (día, modo), UPSERT en cada ciclo.
//   - `symbol_states`: contadores del Risk Gate por símbolo. Cache en memoria:
//     solo se escribe si el estado cambió.
//   - `backtest_runs`: resumen de cada backtest con su curva de equity.
//   - Prune automático al arrancar: backtest_runs > 90d.

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id           TEXT PRIMARY KEY,
    ts           TEXT NOT NULL,
    mode         TEXT NOT NULL,
    symbol       TEXT NOT NULL,
    side         TEXT NOT NULL,
    volume       REAL NOT NULL,
    fill_price   REAL NOT NULL,
    realized_pnl REAL NOT NULL DEFAULT 0,
    equity_after REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS daily_summaries (
    date         TEXT NOT NULL,
    mode         TEXT NOT NULL,
    start_equity REAL NOT NULL DEFAULT 0,
    end_equity   REAL NOT NULL DEFAULT 0,
    trades       INTEGER NOT NULL DEFAULT 0,
    wins         INTEGER NOT NULL DEFAULT 0,
    losses       INTEGER NOT NULL DEFAULT 0,
    realized_pnl REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (date, mode)
);

CREATE TABLE IF NOT EXISTS symbol_states (
    symbol             TEXT PRIMARY KEY,
    consecutive_losses INTEGER NOT NULL DEFAULT 0,
    last_signal_time   TEXT NOT NULL DEFAULT '',
    updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_runs (
    run_id       TEXT PRIMARY KEY,
    created_at   TEXT NOT NULL,
    symbol       TEXT NOT NULL DEFAULT '',
    dataset      TEXT NOT NULL DEFAULT '',
    price_column TEXT NOT NULL,
    fast_window  INTEGER NOT NULL,
    slow_window  INTEGER NOT NULL,
    bars         INTEGER NOT NULL,
    start_ts     TEXT NOT NULL DEFAULT '',
    end_ts       TEXT NOT NULL DEFAULT '',
    initial_cash REAL NOT NULL,
    total_return REAL NOT NULL,
    trades       INTEGER NOT NULL,
    win_rate     REAL NOT NULL,
    max_drawdown REAL NOT NULL,
    final_cash   REAL NOT NULL,
    equity_curve TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_trades_ts     ON trades(ts);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_runs_created  ON backtest_runs(created_at DESC);
`

const retentionRuns = 90 * 24 * time.Hour

// tsLayout es el formato de todas las columnas de tiempo: ordenable como texto.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ ports.TradeJournal = (*SQLiteJournal)(nil)

// SQLiteJournal implementa ports.TradeJournal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db     *sql.DB
	states map[string]domain.SymbolState // símbolo → último estado guardado
	mu     sync.Mutex
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada.
// Aplica el schema, limpia runs antiguos y precarga la cache de símbolos.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{
		db:     db,
		states: make(map[string]domain.SymbolState),
	}
	j.pruneOld(context.Background())
	j.warmCache(context.Background())
	return j, nil
}

// SaveTrade añade una fila al log de operaciones. Reinsertar el mismo ID falla.
func (j *SQLiteJournal) SaveTrade(ctx context.Context, rec domain.TradeRecord) error {
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO trades (id, ts, mode, symbol, side, volume, fill_price, realized_pnl, equity_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, formatTS(rec.Time), string(rec.Mode), rec.Symbol, string(rec.Side),
		rec.Volume, rec.FillPrice, rec.RealizedPnL, rec.EquityAfter,
	); err != nil {
		return fmt.Errorf("storage.SaveTrade: insert %s: %w", rec.ID, err)
	}
	return nil
}

// GetTrades devuelve las operaciones en [from, to] en orden cronológico.
func (j *SQLiteJournal) GetTrades(ctx context.Context, from, to time.Time) ([]domain.TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, ts, mode, symbol, side, volume, fill_price, realized_pnl, equity_after
		FROM trades
		WHERE ts BETWEEN ? AND ?
		ORDER BY ts ASC, rowid ASC
	`, formatTS(from), formatTS(to))
	if err != nil {
		return nil, fmt.Errorf("storage.GetTrades: query: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var ts, mode, side string
		if err := rows.Scan(&rec.ID, &ts, &mode, &rec.Symbol, &side,
			&rec.Volume, &rec.FillPrice, &rec.RealizedPnL, &rec.EquityAfter); err != nil {
			return nil, fmt.Errorf("storage.GetTrades: scan row: %w", err)
		}
		rec.Time = parseTS(ts)
		rec.Mode = domain.TradeMode(mode)
		rec.Side = domain.Side(side)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// --- helpers internos ---

func formatTS(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(tsLayout, s)
	return t
}

// pruneOld elimina runs de backtest antiguos para mantener la DB ligera.
func (j *SQLiteJournal) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns)
	j.db.ExecContext(ctx, `DELETE FROM backtest_runs WHERE created_at < ?`, formatTS(cutoff))
}

// warmCache precarga los estados de símbolo, evitando escrituras redundantes
// en el primer ciclo tras un reinicio.
func (j *SQLiteJournal) warmCache(ctx context.Context) {
	states, err := j.LoadSymbolStates(ctx)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	for sym, st := range states {
		j.states[sym] = st
	}
}
