// Package oracle resolves the best-available current price for a symbol.
//
// It prefers the push-based latest-price cache fed by the streaming client;
// when the cache has no fresh entry it pulls a single recent candle from the
// market data provider and uses its close. Either path may come up empty —
// "no price" is an expected outcome callers must handle by skipping, not an
// error.
package oracle

import (
	"context"
	"log"

	"signal-enginev1/internal/model"
)

// fallbackTimeframe is the granularity pulled when the cache misses.
const fallbackTimeframe = "M1"

// Oracle is the price source used by the lifecycle manager.
type Oracle struct {
	cache model.PriceCache // may be nil when no push cache is configured
	md    model.MarketDataProvider
}

// New creates an Oracle. cache may be nil; the Oracle then always pulls.
func New(cache model.PriceCache, md model.MarketDataProvider) *Oracle {
	return &Oracle{cache: cache, md: md}
}

// LastPrice implements lifecycle.PriceSource.
func (o *Oracle) LastPrice(ctx context.Context, symbol string) (float64, bool) {
	if o.cache != nil {
		price, ok, err := o.cache.GetLastPrice(ctx, symbol)
		if err != nil {
			log.Printf("[oracle] price cache read for %s: %v", symbol, err)
		} else if ok {
			return price, true
		}
	}

	candles, err := o.md.GetCandles(ctx, symbol, fallbackTimeframe, 1)
	if err != nil {
		log.Printf("[oracle] candle pull for %s: %v", symbol, err)
		return 0, false
	}
	if len(candles) == 0 {
		return 0, false
	}

	price := candles[len(candles)-1].Close
	if o.cache != nil {
		// Warm the cache so the next tick hits the fast path.
		if err := o.cache.SetLastPrice(ctx, symbol, price); err != nil {
			log.Printf("[oracle] price cache warm for %s: %v", symbol, err)
		}
	}
	return price, true
}
