package model

// TradeStatus is the state of a paper trade.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// PaperTrade is a simulated position mirroring a signal's lifecycle.
// There is at most one per signal, enforced by a uniqueness constraint on
// SignalID in the store.
type PaperTrade struct {
	ID           string      `json:"id"`
	SignalID     string      `json:"signal_id"`
	Symbol       string      `json:"symbol"`
	Direction    Direction   `json:"direction"`
	EntryPrice   float64     `json:"entry_price"`
	Quantity     float64     `json:"quantity"`
	Leverage     float64     `json:"leverage"`
	StopLoss     float64     `json:"stop_loss"`
	TakeProfit   float64     `json:"take_profit"`
	TrailingStop float64     `json:"trailing_stop"`
	Status       TradeStatus `json:"status"`
	ExitPrice    float64     `json:"exit_price,omitempty"`
	PnL          float64     `json:"pnl,omitempty"`
	PnLPercent   float64     `json:"pnl_percent,omitempty"`
	ExitReason   CloseReason `json:"exit_reason,omitempty"`
	OpenedAt     int64       `json:"opened_at"`
	ClosedAt     int64       `json:"closed_at,omitempty"`
}
