package model

import "encoding/json"

// Candle represents one OHLCV bar for a symbol on a given timeframe.
// Time is the bucket start in epoch seconds (UTC). Windows returned by a
// MarketDataProvider are ordered ascending by Time.
type Candle struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Time      int64   `json:"time"` // epoch seconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Closes extracts the closing prices of a candle window, in order.
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i := range candles {
		closes[i] = candles[i].Close
	}
	return closes
}
