// Package notification delivers signal alerts to external channels
// (Telegram, webhooks) and adapts lifecycle transitions into alerts.
package notification

import (
	"context"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// SignalContext carries the structured signal fields behind an alert, so
// backends can do better than a flat text blob. Exit and PnLPercent are only
// meaningful for close events.
type SignalContext struct {
	Event      string  `json:"event"` // "activated" or "closed"
	Pair       string  `json:"pair"`
	Direction  string  `json:"direction"`
	Strategy   string  `json:"strategy"`
	Timeframe  string  `json:"timeframe,omitempty"`
	Entry      float64 `json:"entry"`
	Exit       float64 `json:"exit,omitempty"`
	PnLPercent float64 `json:"pnl_percent,omitempty"`
}

// Alert represents a notification to be sent. Signal is set when the alert
// originates from a signal lifecycle transition; operational alerts leave it
// nil.
type Alert struct {
	Level   AlertLevel     `json:"level"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Signal  *SignalContext `json:"signal,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans one alert out to several backends. Delivery failures are logged
// per backend so one broken channel never blocks the others.
type Multi struct {
	backends []Notifier
}

// NewMulti builds a fan-out notifier.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	for _, n := range m.backends {
		if err := n.Send(ctx, alert); err != nil {
			log.Printf("[notify] delivery failed: %v", err)
		}
	}
	return nil
}
