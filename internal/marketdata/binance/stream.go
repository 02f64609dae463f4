package binance

import (
	"context"
	"log"
	"strconv"
	"time"

	gobinance "github.com/adshao/go-binance/v2"

	"signal-enginev1/internal/model"
)

const reconnectDelay = 5 * time.Second

// Stream subscribes to the combined aggTrade websocket feed and pushes every
// traded price into the cache. It reconnects on stream failure until the
// context is cancelled.
type Stream struct {
	symbols []string
	cache   model.PriceCache
}

// NewStream builds a Stream feeding cache with prices for symbols.
func NewStream(symbols []string, cache model.PriceCache) *Stream {
	return &Stream{symbols: symbols, cache: cache}
}

// Run blocks until ctx is cancelled, reconnecting whenever the upstream
// stream drops.
func (s *Stream) Run(ctx context.Context) {
	for {
		doneC, stopC, err := gobinance.WsCombinedAggTradeServe(s.symbols, s.handle(ctx), s.handleErr)
		if err != nil {
			log.Printf("[stream] connect failed: %v (retrying in %s)", err, reconnectDelay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
				continue
			}
		}

		log.Printf("[stream] connected, %d symbols", len(s.symbols))

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
			log.Printf("[stream] disconnected, reconnecting in %s", reconnectDelay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}
}

func (s *Stream) handle(ctx context.Context) gobinance.WsAggTradeHandler {
	return func(event *gobinance.WsAggTradeEvent) {
		price, err := strconv.ParseFloat(event.Price, 64)
		if err != nil {
			log.Printf("[stream] %s: bad price %q: %v", event.Symbol, event.Price, err)
			return
		}
		if err := s.cache.SetLastPrice(ctx, event.Symbol, price); err != nil {
			log.Printf("[stream] %s: cache write failed: %v", event.Symbol, err)
		}
	}
}

func (s *Stream) handleErr(err error) {
	log.Printf("[stream] ws error: %v", err)
}
