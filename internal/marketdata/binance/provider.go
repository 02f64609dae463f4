// Package binance adapts the Binance REST and websocket APIs to the engine's
// market-data ports.
package binance

import (
	"context"
	"fmt"
	"strconv"

	gobinance "github.com/adshao/go-binance/v2"

	"signal-enginev1/internal/model"
)

// intervals maps engine timeframes to Binance kline intervals.
var intervals = map[string]string{
	"M1":  "1m",
	"M5":  "5m",
	"M15": "15m",
	"M30": "30m",
	"H1":  "1h",
	"H4":  "4h",
	"D1":  "1d",
	"W1":  "1w",
}

// Provider fetches candle windows from the Binance REST API.
type Provider struct {
	client *gobinance.Client
}

// NewProvider builds a Provider. Keys may be empty for public endpoints.
func NewProvider(apiKey, secretKey string) *Provider {
	return &Provider{client: gobinance.NewClient(apiKey, secretKey)}
}

// GetCandles returns up to limit closed candles for symbol/timeframe,
// ascending by open time.
func (p *Provider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	interval, ok := intervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("binance: unsupported timeframe %q", timeframe)
	}

	klines, err := p.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := toCandle(symbol, timeframe, k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func toCandle(symbol, timeframe string, k *gobinance.Kline) (model.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("binance: bad open %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("binance: bad high %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("binance: bad low %q: %w", k.Low, err)
	}
	closePx, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("binance: bad close %q: %w", k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("binance: bad volume %q: %w", k.Volume, err)
	}

	return model.Candle{
		Symbol:    symbol,
		Timeframe: timeframe,
		Time:      k.OpenTime / 1000,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
	}, nil
}
