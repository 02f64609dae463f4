// Package lifecycle owns the signal state machine.
//
// States run one-directional: PENDING → ACTIVE → CLOSED. MARKET entries skip
// PENDING. The Manager is the sole writer of signal status; side effects such
// as paper trade opens/closes are delegated to registered TransitionListeners
// so their retry policy stays observable and deliberate.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"signal-enginev1/internal/model"
)

// StopBuffer is the protective margin applied beyond the triggering candle's
// wick when deriving the initial stop-loss (0.1%).
const StopBuffer = 0.001

// riskRewardRatio fixes take-profit distance at twice the stop distance.
const riskRewardRatio = 2.0

// PriceSource supplies the best-available current price for a symbol.
type PriceSource interface {
	// LastPrice returns the latest price. ok is false when no fresh price
	// could be obtained; the caller skips the signal for this tick.
	LastPrice(ctx context.Context, symbol string) (price float64, ok bool)
}

// TransitionListener is notified synchronously after a lifecycle transition
// has been persisted. Implementations must be idempotent: a transition may be
// re-delivered if a later write fails and the signal is re-evaluated.
type TransitionListener interface {
	SignalActivated(ctx context.Context, sig *model.Signal)
	SignalClosed(ctx context.Context, sig *model.Signal, exitPrice float64)
}

// Manager drives signals through their lifecycle.
type Manager struct {
	signals   model.SignalStore
	prices    PriceSource
	listeners []TransitionListener

	now func() int64
}

// NewManager creates a lifecycle manager.
func NewManager(signals model.SignalStore, prices PriceSource) *Manager {
	return &Manager{
		signals: signals,
		prices:  prices,
		now:     func() int64 { return time.Now().Unix() },
	}
}

// AddListener registers a transition listener. Not safe to call after the
// engine has started.
func (m *Manager) AddListener(l TransitionListener) {
	m.listeners = append(m.listeners, l)
}

// CreateParams carries everything needed to open a new signal.
type CreateParams struct {
	Pair         string
	StrategyID   string
	StrategyName string
	Direction    model.Direction
	Entry        float64
	EntryType    model.EntryType
	Timeframe    string
	Trigger      model.Candle // the bar that fired the entry rule
	TrailingStop float64      // distance; 0 disables the ratchet
}

// RiskLevels derives the initial stop-loss and take-profit for a signal.
// The stop sits beyond the triggering candle's wick with the protective
// buffer; the take-profit enforces risk:reward 1:2.
func RiskLevels(dir model.Direction, entry float64, trigger model.Candle) (stopLoss, takeProfit float64) {
	if dir == model.DirectionBuy {
		stopLoss = trigger.Low * (1 - StopBuffer)
		risk := entry - stopLoss
		takeProfit = entry + riskRewardRatio*risk
		return stopLoss, takeProfit
	}
	stopLoss = trigger.High * (1 + StopBuffer)
	risk := stopLoss - entry
	takeProfit = entry - riskRewardRatio*risk
	return stopLoss, takeProfit
}

// CreateSignal persists a new signal. MARKET entries become ACTIVE
// immediately (and listeners are notified); LIMIT/STOP entries start PENDING.
// CreatedAt is the triggering candle's time so duplicate suppression works in
// candle-time.
func (m *Manager) CreateSignal(ctx context.Context, p CreateParams) (*model.Signal, error) {
	stopLoss, takeProfit := RiskLevels(p.Direction, p.Entry, p.Trigger)

	sig := &model.Signal{
		ID:           uuid.NewString(),
		Pair:         p.Pair,
		StrategyID:   p.StrategyID,
		StrategyName: p.StrategyName,
		Direction:    p.Direction,
		Entry:        p.Entry,
		EntryType:    p.EntryType,
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
		TrailingStop: p.TrailingStop,
		Timeframe:    p.Timeframe,
		Status:       model.StatusPending,
		CreatedAt:    p.Trigger.Time,
	}
	if p.EntryType == model.EntryMarket {
		sig.Status = model.StatusActive
		sig.ActivatedAt = m.now()
	}

	if err := m.signals.CreateSignal(ctx, sig); err != nil {
		return nil, fmt.Errorf("create signal %s %s: %w", p.Pair, p.Direction, err)
	}
	log.Printf("[lifecycle] signal created: %s %s %s entry=%.5f sl=%.5f tp=%.5f (%s)",
		sig.Pair, sig.Direction, sig.EntryType, sig.Entry, sig.StopLoss, sig.TakeProfit, sig.StrategyName)

	if sig.Status == model.StatusActive {
		m.notifyActivated(ctx, sig)
	}
	return sig, nil
}

// ProcessPending checks a PENDING signal's entry trigger against the current
// price. When no price is obtainable the signal is left untouched this tick.
func (m *Manager) ProcessPending(ctx context.Context, sig *model.Signal) error {
	price, ok := m.prices.LastPrice(ctx, sig.Pair)
	if !ok {
		return nil
	}

	if !entryTriggered(sig, price) {
		return nil
	}

	at := m.now()
	if err := m.signals.UpdateSignalStatus(ctx, sig.ID, model.StatusActive, at); err != nil {
		return fmt.Errorf("activate signal %s: %w", sig.ID, err)
	}
	sig.Status = model.StatusActive
	sig.ActivatedAt = at
	log.Printf("[lifecycle] signal activated: %s %s %s at %.5f", sig.Pair, sig.Direction, sig.EntryType, price)

	m.notifyActivated(ctx, sig)
	return nil
}

// entryTriggered implements the PENDING → ACTIVE trigger table. A MARKET
// signal found PENDING activates immediately.
func entryTriggered(sig *model.Signal, price float64) bool {
	switch sig.EntryType {
	case model.EntryLimit:
		if sig.Direction == model.DirectionBuy {
			return price <= sig.Entry
		}
		return price >= sig.Entry
	case model.EntryStop:
		if sig.Direction == model.DirectionBuy {
			return price >= sig.Entry
		}
		return price <= sig.Entry
	}
	return true
}

// ProcessActive evaluates an ACTIVE signal against the current price:
// take-profit first, then stop-loss, then the trailing-stop ratchet. Closure
// takes priority; the ratchet never fires in a closing tick.
func (m *Manager) ProcessActive(ctx context.Context, sig *model.Signal) error {
	price, ok := m.prices.LastPrice(ctx, sig.Pair)
	if !ok {
		return nil
	}

	buy := sig.Direction == model.DirectionBuy

	if (buy && price >= sig.TakeProfit) || (!buy && price <= sig.TakeProfit) {
		return m.closeAtPrice(ctx, sig, price, model.CloseTakeProfit)
	}
	if (buy && price <= sig.StopLoss) || (!buy && price >= sig.StopLoss) {
		return m.closeAtPrice(ctx, sig, price, model.CloseStopLoss)
	}

	if sig.TrailingStop > 0 {
		return m.ratchetStop(ctx, sig, price)
	}
	return nil
}

// ratchetStop tightens the stop-loss in the trade's favor, never loosening.
func (m *Manager) ratchetStop(ctx context.Context, sig *model.Signal, price float64) error {
	var candidate float64
	if sig.Direction == model.DirectionBuy {
		candidate = price - sig.TrailingStop
		if candidate <= sig.StopLoss {
			return nil
		}
	} else {
		candidate = price + sig.TrailingStop
		if candidate >= sig.StopLoss {
			return nil
		}
	}

	if err := m.signals.UpdateSignalRiskLevels(ctx, sig.ID, candidate, nil); err != nil {
		return fmt.Errorf("ratchet stop for %s: %w", sig.ID, err)
	}
	log.Printf("[lifecycle] trailing stop ratcheted: %s %s %.5f -> %.5f",
		sig.Pair, sig.Direction, sig.StopLoss, candidate)
	sig.StopLoss = candidate
	return nil
}

// Close closes a signal for a non-price reason (MANUAL or TIMEOUT). The exit
// price is still real: best-available current price, falling back to the
// entry when no price is obtainable.
func (m *Manager) Close(ctx context.Context, signalID string, reason model.CloseReason) error {
	sig, err := m.signals.GetSignal(ctx, signalID)
	if err != nil {
		return fmt.Errorf("close signal %s: %w", signalID, err)
	}
	if sig == nil || sig.Status == model.StatusClosed {
		return nil
	}

	price, ok := m.prices.LastPrice(ctx, sig.Pair)
	if !ok {
		price = sig.Entry
	}
	return m.closeAtPrice(ctx, sig, price, reason)
}

func (m *Manager) closeAtPrice(ctx context.Context, sig *model.Signal, exitPrice float64, reason model.CloseReason) error {
	pnl := (exitPrice - sig.Entry) / sig.Entry * 100
	if sig.Direction == model.DirectionSell {
		pnl = -pnl
	}

	at := m.now()
	if err := m.signals.CloseSignal(ctx, sig.ID, reason, pnl, at); err != nil {
		return fmt.Errorf("close signal %s (%s): %w", sig.ID, reason, err)
	}
	sig.Status = model.StatusClosed
	sig.CloseReason = reason
	sig.PnL = pnl
	sig.ClosedAt = at
	log.Printf("[lifecycle] signal closed: %s %s reason=%s exit=%.5f pnl=%.2f%%",
		sig.Pair, sig.Direction, reason, exitPrice, pnl)

	m.notifyClosed(ctx, sig, exitPrice)
	return nil
}

func (m *Manager) notifyActivated(ctx context.Context, sig *model.Signal) {
	for _, l := range m.listeners {
		l.SignalActivated(ctx, sig)
	}
}

func (m *Manager) notifyClosed(ctx context.Context, sig *model.Signal, exitPrice float64) {
	for _, l := range m.listeners {
		l.SignalClosed(ctx, sig, exitPrice)
	}
}
