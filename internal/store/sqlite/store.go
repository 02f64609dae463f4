// Package sqlite persists strategies, signals, and paper trades.
//
// A single Store satisfies the StrategyStore, SignalStore, and
// PaperTradeStore ports. The paper_trades table carries a UNIQUE index on
// signal_id — the storage half of the "at most one trade per signal"
// invariant.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signal-enginev1/internal/model"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // e.g. "data/signals.db"
}

// Store is a SQLite-backed implementation of the storage ports.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens (or creates) the database with WAL mode and the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer keeps SQLite happy under WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS strategies (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		category    TEXT,
		timeframe   TEXT,
		symbols     TEXT,
		indicators  TEXT NOT NULL,
		entry_rules TEXT NOT NULL,
		trailing_stop_pct REAL NOT NULL DEFAULT 0,
		is_active   INTEGER NOT NULL DEFAULT 1,
		created_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS signals (
		id            TEXT PRIMARY KEY,
		pair          TEXT NOT NULL,
		strategy_id   TEXT NOT NULL,
		strategy_name TEXT,
		direction     TEXT NOT NULL,
		entry         REAL NOT NULL,
		entry_type    TEXT NOT NULL,
		stop_loss     REAL NOT NULL,
		take_profit   REAL NOT NULL,
		trailing_stop REAL NOT NULL DEFAULT 0,
		timeframe     TEXT NOT NULL,
		status        TEXT NOT NULL,
		close_reason  TEXT,
		pnl           REAL NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL,
		activated_at  INTEGER,
		closed_at     INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status);
	CREATE INDEX IF NOT EXISTS idx_signals_dup
		ON signals(strategy_id, pair, direction, created_at);

	CREATE TABLE IF NOT EXISTS paper_trades (
		id            TEXT PRIMARY KEY,
		signal_id     TEXT NOT NULL,
		symbol        TEXT NOT NULL,
		direction     TEXT NOT NULL,
		entry_price   REAL NOT NULL,
		quantity      REAL NOT NULL,
		leverage      REAL NOT NULL DEFAULT 1,
		stop_loss     REAL,
		take_profit   REAL,
		trailing_stop REAL,
		status        TEXT NOT NULL,
		exit_price    REAL,
		pnl           REAL,
		pnl_percent   REAL,
		exit_reason   TEXT,
		opened_at     INTEGER NOT NULL,
		closed_at     INTEGER
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_signal ON paper_trades(signal_id);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ── StrategyStore ──

// LoadActiveStrategies returns all active strategies, with their indicator
// and rule definitions decoded from JSON columns.
func (s *Store) LoadActiveStrategies(ctx context.Context) ([]model.Strategy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, timeframe, symbols, indicators, entry_rules, trailing_stop_pct, is_active
		 FROM strategies WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("load strategies: %w", err)
	}
	defer rows.Close()

	var strategies []model.Strategy
	for rows.Next() {
		var st model.Strategy
		var category, timeframe, symbols sql.NullString
		var indicators, entryRules string
		var active int
		if err := rows.Scan(&st.ID, &st.Name, &category, &timeframe, &symbols,
			&indicators, &entryRules, &st.TrailingStopPct, &active); err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		st.Category = category.String
		st.Timeframe = timeframe.String
		if symbols.String != "" {
			st.Symbols = strings.Split(symbols.String, ",")
		}
		st.IsActive = active == 1

		if err := json.Unmarshal([]byte(indicators), &st.Indicators); err != nil {
			log.Printf("[sqlite] strategy %s: bad indicators JSON, skipping: %v", st.ID, err)
			continue
		}
		if err := json.Unmarshal([]byte(entryRules), &st.EntryRules); err != nil {
			log.Printf("[sqlite] strategy %s: bad rules JSON, skipping: %v", st.ID, err)
			continue
		}
		strategies = append(strategies, st)
	}
	return strategies, rows.Err()
}

// SaveStrategy inserts or replaces a strategy definition.
func (s *Store) SaveStrategy(ctx context.Context, st model.Strategy) error {
	indicators, err := json.Marshal(st.Indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}
	rules, err := json.Marshal(st.EntryRules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	active := 0
	if st.IsActive {
		active = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO strategies (id, name, category, timeframe, symbols, indicators, entry_rules, trailing_stop_pct, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Category, st.Timeframe, strings.Join(st.Symbols, ","),
		string(indicators), string(rules), st.TrailingStopPct, active)
	if err != nil {
		return fmt.Errorf("save strategy %s: %w", st.ID, err)
	}
	return nil
}

// ── SignalStore ──

func (s *Store) CreateSignal(ctx context.Context, sig *model.Signal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (id, pair, strategy_id, strategy_name, direction, entry, entry_type,
			stop_loss, take_profit, trailing_stop, timeframe, status, created_at, activated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Pair, sig.StrategyID, sig.StrategyName, string(sig.Direction),
		sig.Entry, string(sig.EntryType), sig.StopLoss, sig.TakeProfit, sig.TrailingStop,
		sig.Timeframe, string(sig.Status), sig.CreatedAt, nullInt(sig.ActivatedAt))
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

const signalColumns = `id, pair, strategy_id, strategy_name, direction, entry, entry_type,
	stop_loss, take_profit, trailing_stop, timeframe, status, close_reason, pnl,
	created_at, activated_at, closed_at`

func (s *Store) GetSignals(ctx context.Context) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("get signals: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

func (s *Store) GetSignalsByStatus(ctx context.Context, status model.SignalStatus) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE status = ? ORDER BY created_at ASC`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("get signals by status: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

func (s *Store) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get signal: %w", err)
	}
	defer rows.Close()

	signals, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, nil
	}
	return &signals[0], nil
}

func scanSignals(rows *sql.Rows) ([]model.Signal, error) {
	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		var strategyName, closeReason sql.NullString
		var activatedAt, closedAt sql.NullInt64
		if err := rows.Scan(&sig.ID, &sig.Pair, &sig.StrategyID, &strategyName,
			&sig.Direction, &sig.Entry, &sig.EntryType, &sig.StopLoss, &sig.TakeProfit,
			&sig.TrailingStop, &sig.Timeframe, &sig.Status, &closeReason, &sig.PnL,
			&sig.CreatedAt, &activatedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.StrategyName = strategyName.String
		sig.CloseReason = model.CloseReason(closeReason.String)
		sig.ActivatedAt = activatedAt.Int64
		sig.ClosedAt = closedAt.Int64
		out = append(out, sig)
	}
	return out, rows.Err()
}

// UpdateSignalStatus moves a signal forward. The status guard in the WHERE
// clause keeps transitions one-directional even under concurrent writers.
func (s *Store) UpdateSignalStatus(ctx context.Context, id string, status model.SignalStatus, at int64) error {
	var res sql.Result
	var err error
	if status == model.StatusActive {
		res, err = s.db.ExecContext(ctx,
			`UPDATE signals SET status = ?, activated_at = ? WHERE id = ? AND status = 'PENDING'`,
			string(status), at, id)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE signals SET status = ? WHERE id = ? AND status != 'CLOSED'`,
			string(status), id)
	}
	if err != nil {
		return fmt.Errorf("update signal status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("signal %s: no transition to %s applied", id, status)
	}
	return nil
}

func (s *Store) UpdateSignalRiskLevels(ctx context.Context, id string, stopLoss float64, takeProfit *float64) error {
	var err error
	if takeProfit != nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE signals SET stop_loss = ?, take_profit = ? WHERE id = ? AND status != 'CLOSED'`,
			stopLoss, *takeProfit, id)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE signals SET stop_loss = ? WHERE id = ? AND status != 'CLOSED'`,
			stopLoss, id)
	}
	if err != nil {
		return fmt.Errorf("update signal risk levels: %w", err)
	}
	return nil
}

func (s *Store) CloseSignal(ctx context.Context, id string, reason model.CloseReason, pnl float64, at int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET status = 'CLOSED', close_reason = ?, pnl = ?, closed_at = ?
		 WHERE id = ? AND status != 'CLOSED'`,
		string(reason), pnl, at, id)
	if err != nil {
		return fmt.Errorf("close signal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("signal %s: already closed", id)
	}
	return nil
}

func (s *Store) HasRecentSignal(ctx context.Context, strategyID, symbol string, dir model.Direction, sinceCandleTime int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM signals
		 WHERE strategy_id = ? AND pair = ? AND direction = ? AND created_at >= ?
		 LIMIT 1`,
		strategyID, symbol, string(dir), sinceCandleTime).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return true, nil
}

func (s *Store) CleanupOldSignals(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM signals WHERE status = 'CLOSED' AND closed_at IS NOT NULL AND closed_at < ?`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup signals: %w", err)
	}
	return res.RowsAffected()
}

// ── PaperTradeStore ──

func (s *Store) CreatePaperTrade(ctx context.Context, t *model.PaperTrade) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO paper_trades (id, signal_id, symbol, direction, entry_price, quantity,
			leverage, stop_loss, take_profit, trailing_stop, status, opened_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SignalID, t.Symbol, string(t.Direction), t.EntryPrice, t.Quantity,
		t.Leverage, t.StopLoss, t.TakeProfit, t.TrailingStop, string(t.Status), t.OpenedAt)
	if err != nil {
		return fmt.Errorf("insert paper trade: %w", err)
	}
	return nil
}

func (s *Store) GetPaperTradeBySignal(ctx context.Context, signalID string) (*model.PaperTrade, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, signal_id, symbol, direction, entry_price, quantity, leverage,
			stop_loss, take_profit, trailing_stop, status, exit_price, pnl, pnl_percent,
			exit_reason, opened_at, closed_at
		 FROM paper_trades WHERE signal_id = ?`, signalID)

	var t model.PaperTrade
	var exitPrice, pnl, pnlPercent sql.NullFloat64
	var exitReason sql.NullString
	var closedAt sql.NullInt64
	err := row.Scan(&t.ID, &t.SignalID, &t.Symbol, &t.Direction, &t.EntryPrice,
		&t.Quantity, &t.Leverage, &t.StopLoss, &t.TakeProfit, &t.TrailingStop,
		&t.Status, &exitPrice, &pnl, &pnlPercent, &exitReason, &t.OpenedAt, &closedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get paper trade: %w", err)
	}
	t.ExitPrice = exitPrice.Float64
	t.PnL = pnl.Float64
	t.PnLPercent = pnlPercent.Float64
	t.ExitReason = model.CloseReason(exitReason.String)
	t.ClosedAt = closedAt.Int64
	return &t, nil
}

// CloseOpenPaperTrade settles the OPEN trade for a signal. The status guard
// makes a repeated close a no-op rather than a rewrite.
func (s *Store) CloseOpenPaperTrade(ctx context.Context, signalID string, exitPrice, pnl, pnlPercent float64, reason model.CloseReason, at int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE paper_trades
		 SET status = 'CLOSED', exit_price = ?, pnl = ?, pnl_percent = ?, exit_reason = ?, closed_at = ?
		 WHERE signal_id = ? AND status = 'OPEN'`,
		exitPrice, pnl, pnlPercent, string(reason), at, signalID)
	if err != nil {
		return false, fmt.Errorf("close paper trade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetPaperTrades returns the last limit trades, newest first.
func (s *Store) GetPaperTrades(ctx context.Context, limit int) ([]model.PaperTrade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, signal_id, symbol, direction, entry_price, quantity, leverage,
			stop_loss, take_profit, trailing_stop, status, exit_price, pnl, pnl_percent,
			exit_reason, opened_at, closed_at
		 FROM paper_trades ORDER BY opened_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get paper trades: %w", err)
	}
	defer rows.Close()

	var out []model.PaperTrade
	for rows.Next() {
		var t model.PaperTrade
		var exitPrice, pnl, pnlPercent sql.NullFloat64
		var exitReason sql.NullString
		var closedAt sql.NullInt64
		if err := rows.Scan(&t.ID, &t.SignalID, &t.Symbol, &t.Direction, &t.EntryPrice,
			&t.Quantity, &t.Leverage, &t.StopLoss, &t.TakeProfit, &t.TrailingStop,
			&t.Status, &exitPrice, &pnl, &pnlPercent, &exitReason, &t.OpenedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("scan paper trade: %w", err)
		}
		t.ExitPrice = exitPrice.Float64
		t.PnL = pnl.Float64
		t.PnLPercent = pnlPercent.Float64
		t.ExitReason = model.CloseReason(exitReason.String)
		t.ClosedAt = closedAt.Int64
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
