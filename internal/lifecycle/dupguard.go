package lifecycle

import (
	"context"
	"log"

	"signal-enginev1/internal/model"
)

// DefaultLookbackCandles is how many candles back (in candle-time, not
// wall-clock) the guard searches for an identical signal tuple.
const DefaultLookbackCandles = 1

// DupGuard suppresses repeated signal creation for the same
// (strategy, symbol, direction) tuple within a lookback window.
type DupGuard struct {
	signals  model.SignalStore
	lookback int // candles
}

// NewDupGuard creates a guard over the given signal store.
// lookbackCandles <= 0 selects DefaultLookbackCandles.
func NewDupGuard(signals model.SignalStore, lookbackCandles int) *DupGuard {
	if lookbackCandles <= 0 {
		lookbackCandles = DefaultLookbackCandles
	}
	return &DupGuard{signals: signals, lookback: lookbackCandles}
}

// IsDuplicate reports whether a signal for the tuple already exists with
// creation time at or after candleTime − lookback. The lookback is
// lookbackCandles × the timeframe's candle duration (unknown timeframes
// default to one hour).
//
// On a storage error the guard fails open: it logs and permits creation,
// preferring a possible duplicate over silently dropping signal generation.
func (g *DupGuard) IsDuplicate(ctx context.Context, strategyID, symbol string, dir model.Direction, timeframe string, candleTime int64) bool {
	since := candleTime - int64(g.lookback)*model.TimeframeSeconds(timeframe)

	dup, err := g.signals.HasRecentSignal(ctx, strategyID, symbol, dir, since)
	if err != nil {
		log.Printf("[dupguard] check failed for %s/%s/%s, failing open: %v", strategyID, symbol, dir, err)
		return false
	}
	return dup
}
