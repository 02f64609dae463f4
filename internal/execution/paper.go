// Package execution simulates trade execution for signals.
//
// The PaperEngine reacts to signal lifecycle transitions: it opens a
// simulated trade when a signal becomes ACTIVE and closes it when the signal
// becomes CLOSED. Both operations are idempotent — an open looks up the
// existing trade by signal id before inserting, and a close only touches the
// OPEN trade — so retried or duplicated lifecycle events cannot create a
// second position or a second close.
package execution

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"signal-enginev1/internal/metrics"
	"signal-enginev1/internal/model"
)

const (
	defaultQuantity = 1.0
	defaultLeverage = 1.0
)

// PaperEngine opens and closes simulated trades tied 1:1 to signals.
// It implements lifecycle.TransitionListener.
type PaperEngine struct {
	trades   model.PaperTradeStore
	quantity float64
	leverage float64
	met      *metrics.Metrics // nil disables instrumentation

	now func() int64
}

// SetMetrics attaches trade counters. Pass nil to disable.
func (e *PaperEngine) SetMetrics(m *metrics.Metrics) {
	e.met = m
}

// NewPaperEngine creates a paper execution engine. quantity/leverage <= 0
// select defaults.
func NewPaperEngine(trades model.PaperTradeStore, quantity, leverage float64) *PaperEngine {
	if quantity <= 0 {
		quantity = defaultQuantity
	}
	if leverage <= 0 {
		leverage = defaultLeverage
	}
	return &PaperEngine{
		trades:   trades,
		quantity: quantity,
		leverage: leverage,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// Open opens a paper trade for an ACTIVE signal. If a trade already exists
// for the signal it is returned unchanged — no duplicate is created.
func (e *PaperEngine) Open(ctx context.Context, sig *model.Signal) (*model.PaperTrade, error) {
	existing, err := e.trades.GetPaperTradeBySignal(ctx, sig.ID)
	if err != nil {
		return nil, fmt.Errorf("paper open lookup for %s: %w", sig.ID, err)
	}
	if existing != nil {
		return existing, nil
	}

	trade := &model.PaperTrade{
		ID:           uuid.NewString(),
		SignalID:     sig.ID,
		Symbol:       sig.Pair,
		Direction:    sig.Direction,
		EntryPrice:   sig.Entry,
		Quantity:     e.quantity,
		Leverage:     e.leverage,
		StopLoss:     sig.StopLoss,
		TakeProfit:   sig.TakeProfit,
		TrailingStop: sig.TrailingStop,
		Status:       model.TradeOpen,
		OpenedAt:     e.now(),
	}
	if err := e.trades.CreatePaperTrade(ctx, trade); err != nil {
		// A concurrent open may have won the unique signal_id race; surface
		// the stored trade instead of the error.
		if stored, lookupErr := e.trades.GetPaperTradeBySignal(ctx, sig.ID); lookupErr == nil && stored != nil {
			return stored, nil
		}
		return nil, fmt.Errorf("paper open for %s: %w", sig.ID, err)
	}

	if e.met != nil {
		e.met.TradesOpened.Inc()
	}
	log.Printf("[paper] opened %s %s qty=%.4f entry=%.5f signal=%s",
		trade.Direction, trade.Symbol, trade.Quantity, trade.EntryPrice, sig.ID)
	return trade, nil
}

// Close closes the OPEN trade for a signal at exitPrice. When no open trade
// exists (never opened, or already closed) it is a no-op.
func (e *PaperEngine) Close(ctx context.Context, sig *model.Signal, exitPrice float64, reason model.CloseReason) error {
	trade, err := e.trades.GetPaperTradeBySignal(ctx, sig.ID)
	if err != nil {
		return fmt.Errorf("paper close lookup for %s: %w", sig.ID, err)
	}
	if trade == nil || trade.Status != model.TradeOpen {
		return nil
	}

	pnl := (exitPrice - trade.EntryPrice) * trade.Quantity
	if trade.Direction == model.DirectionSell {
		pnl = (trade.EntryPrice - exitPrice) * trade.Quantity
	}
	pnlPercent := pnl / (trade.EntryPrice * trade.Quantity) * 100

	closed, err := e.trades.CloseOpenPaperTrade(ctx, sig.ID, exitPrice, pnl, pnlPercent, reason, e.now())
	if err != nil {
		return fmt.Errorf("paper close for %s: %w", sig.ID, err)
	}
	if !closed {
		// Lost the race to another close — already settled.
		return nil
	}

	if e.met != nil {
		e.met.TradesClosed.Inc()
	}
	log.Printf("[paper] closed %s %s exit=%.5f pnl=%.4f (%.2f%%) reason=%s signal=%s",
		trade.Direction, trade.Symbol, exitPrice, pnl, pnlPercent, reason, sig.ID)
	return nil
}

// SignalActivated implements lifecycle.TransitionListener.
func (e *PaperEngine) SignalActivated(ctx context.Context, sig *model.Signal) {
	if _, err := e.Open(ctx, sig); err != nil {
		log.Printf("[paper] open failed for signal %s: %v", sig.ID, err)
	}
}

// SignalClosed implements lifecycle.TransitionListener.
func (e *PaperEngine) SignalClosed(ctx context.Context, sig *model.Signal, exitPrice float64) {
	if err := e.Close(ctx, sig, exitPrice, sig.CloseReason); err != nil {
		log.Printf("[paper] close failed for signal %s: %v", sig.ID, err)
	}
}
