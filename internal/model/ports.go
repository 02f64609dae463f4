package model

import "context"

// ── Collaborator Port Interfaces ──
// These interfaces decouple the engine from concrete market-data and storage
// implementations (Binance, SQLite, Redis). Each implementation satisfies one
// or more of these interfaces.

// MarketDataProvider supplies candle windows for strategy evaluation.
type MarketDataProvider interface {
	// GetCandles returns up to limit candles for symbol/timeframe, ordered
	// ascending by time. May return an empty slice on upstream failure.
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
}

// PriceCache is the push-based latest-price store fed by a streaming client.
type PriceCache interface {
	// SetLastPrice records the most recent traded price for a symbol.
	SetLastPrice(ctx context.Context, symbol string, price float64) error

	// GetLastPrice returns the cached price. ok is false when no fresh
	// price is available for the symbol.
	GetLastPrice(ctx context.Context, symbol string) (price float64, ok bool, err error)
}

// StrategyStore loads strategy definitions.
type StrategyStore interface {
	// LoadActiveStrategies returns all strategies with IsActive set.
	LoadActiveStrategies(ctx context.Context) ([]Strategy, error)
}

// SignalStore persists signals and answers duplicate-suppression queries.
type SignalStore interface {
	CreateSignal(ctx context.Context, sig *Signal) error
	GetSignals(ctx context.Context) ([]Signal, error)
	GetSignalsByStatus(ctx context.Context, status SignalStatus) ([]Signal, error)
	GetSignal(ctx context.Context, id string) (*Signal, error)

	// UpdateSignalStatus moves a signal to status, stamping activatedAt when
	// the new status is ACTIVE.
	UpdateSignalStatus(ctx context.Context, id string, status SignalStatus, at int64) error

	// UpdateSignalRiskLevels rewrites stopLoss and, when non-nil, takeProfit.
	UpdateSignalRiskLevels(ctx context.Context, id string, stopLoss float64, takeProfit *float64) error

	// CloseSignal marks a signal CLOSED with the given reason and
	// direction-adjusted percent PnL.
	CloseSignal(ctx context.Context, id string, reason CloseReason, pnl float64, at int64) error

	// HasRecentSignal reports whether a signal exists for the tuple with
	// CreatedAt >= sinceCandleTime.
	HasRecentSignal(ctx context.Context, strategyID, symbol string, dir Direction, sinceCandleTime int64) (bool, error)

	// CleanupOldSignals deletes CLOSED signals older than retentionDays.
	// Returns the number of rows removed.
	CleanupOldSignals(ctx context.Context, retentionDays int) (int64, error)
}

// PaperTradeStore persists simulated trades tied 1:1 to signals.
type PaperTradeStore interface {
	// CreatePaperTrade inserts a new trade. Fails if a trade already exists
	// for the same signal (unique signal_id).
	CreatePaperTrade(ctx context.Context, t *PaperTrade) error

	// GetPaperTradeBySignal returns the trade for a signal, or nil when none
	// exists.
	GetPaperTradeBySignal(ctx context.Context, signalID string) (*PaperTrade, error)

	// CloseOpenPaperTrade closes the OPEN trade for a signal. Returns false
	// with nil error when no open trade matched (already closed or never
	// opened) — the status guard that makes close idempotent.
	CloseOpenPaperTrade(ctx context.Context, signalID string, exitPrice, pnl, pnlPercent float64, reason CloseReason, at int64) (bool, error)
}
