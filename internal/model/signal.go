package model

import "encoding/json"

// SignalStatus is the lifecycle state of a signal. Transitions are
// one-directional: PENDING → ACTIVE → CLOSED (MARKET entries skip PENDING).
type SignalStatus string

const (
	StatusPending SignalStatus = "PENDING"
	StatusActive  SignalStatus = "ACTIVE"
	StatusClosed  SignalStatus = "CLOSED"
)

// EntryType determines how a signal enters the market.
type EntryType string

const (
	EntryMarket EntryType = "MARKET"
	EntryLimit  EntryType = "LIMIT"
	EntryStop   EntryType = "STOP"
)

// CloseReason records why a signal was closed.
type CloseReason string

const (
	CloseTakeProfit CloseReason = "TP"
	CloseStopLoss   CloseReason = "SL"
	CloseManual     CloseReason = "MANUAL"
	CloseTimeout    CloseReason = "TIMEOUT"
)

// Signal is a proposed or live trade recommendation produced by a strategy.
// CreatedAt is the candle time of the triggering bar (epoch seconds), which
// is what duplicate suppression is measured against.
type Signal struct {
	ID           string       `json:"id"`
	Pair         string       `json:"pair"`
	StrategyID   string       `json:"strategy_id"`
	StrategyName string       `json:"strategy_name"`
	Direction    Direction    `json:"direction"`
	Entry        float64      `json:"entry"`
	EntryType    EntryType    `json:"entry_type"`
	StopLoss     float64      `json:"stop_loss"`
	TakeProfit   float64      `json:"take_profit"`
	TrailingStop float64      `json:"trailing_stop"` // distance; 0 = disabled
	Timeframe    string       `json:"timeframe"`
	Status       SignalStatus `json:"status"`
	CloseReason  CloseReason  `json:"close_reason,omitempty"`
	PnL          float64      `json:"pnl"` // percent move, direction-adjusted
	CreatedAt    int64        `json:"created_at"`
	ActivatedAt  int64        `json:"activated_at,omitempty"`
	ClosedAt     int64        `json:"closed_at,omitempty"`
}

// JSON returns the JSON-encoded signal (ignoring errors for hot-path usage).
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
