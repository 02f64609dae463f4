package notification

import (
	"context"
	"fmt"

	"signal-enginev1/internal/model"
)

// SignalAlerter turns lifecycle transitions into alerts. It implements
// lifecycle.TransitionListener so the manager drives it directly.
type SignalAlerter struct {
	notifier Notifier
}

// NewSignalAlerter wraps a notifier (typically a Multi).
func NewSignalAlerter(n Notifier) *SignalAlerter {
	return &SignalAlerter{notifier: n}
}

// SignalActivated announces a signal going live.
func (a *SignalAlerter) SignalActivated(ctx context.Context, sig *model.Signal) {
	alert := Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("Signal active: %s %s", sig.Pair, sig.Direction),
		Message: fmt.Sprintf("%s (%s)\nEntry: %.5f\nStop: %.5f\nTarget: %.5f",
			sig.StrategyName, sig.Timeframe, sig.Entry, sig.StopLoss, sig.TakeProfit),
		Signal: &SignalContext{
			Event:     "activated",
			Pair:      sig.Pair,
			Direction: string(sig.Direction),
			Strategy:  sig.StrategyName,
			Timeframe: sig.Timeframe,
			Entry:     sig.Entry,
		},
	}
	a.notifier.Send(ctx, alert)
}

// SignalClosed announces a close with its outcome.
func (a *SignalAlerter) SignalClosed(ctx context.Context, sig *model.Signal, exitPrice float64) {
	level := AlertInfo
	if sig.CloseReason == model.CloseStopLoss {
		level = AlertWarning
	}
	alert := Alert{
		Level: level,
		Title: fmt.Sprintf("Signal closed: %s %s (%s)", sig.Pair, sig.Direction, sig.CloseReason),
		Message: fmt.Sprintf("%s\nEntry: %.5f\nExit: %.5f\nPnL: %+.2f%%",
			sig.StrategyName, sig.Entry, exitPrice, sig.PnL),
		Signal: &SignalContext{
			Event:      "closed",
			Pair:       sig.Pair,
			Direction:  string(sig.Direction),
			Strategy:   sig.StrategyName,
			Timeframe:  sig.Timeframe,
			Entry:      sig.Entry,
			Exit:       exitPrice,
			PnLPercent: sig.PnL,
		},
	}
	a.notifier.Send(ctx, alert)
}
