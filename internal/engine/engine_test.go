package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"signal-enginev1/internal/lifecycle"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/strategy"
)

// ────────────────────────────────────────────────────────────
// Fakes
// ────────────────────────────────────────────────────────────

type fakeMarketData struct {
	windows map[string][]model.Candle // key: symbol+"/"+timeframe
	failFor string                    // symbol whose fetches error out
}

func (m *fakeMarketData) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	if symbol == m.failFor {
		return nil, errors.New("upstream down")
	}
	return m.windows[symbol+"/"+timeframe], nil
}

type fakeStrategyStore struct {
	strategies []model.Strategy
	err        error
}

func (s *fakeStrategyStore) LoadActiveStrategies(ctx context.Context) ([]model.Strategy, error) {
	return s.strategies, s.err
}

type memSignalStore struct {
	signals map[string]*model.Signal
	order   []string
}

func newMemSignalStore() *memSignalStore {
	return &memSignalStore{signals: make(map[string]*model.Signal)}
}

func (s *memSignalStore) CreateSignal(ctx context.Context, sig *model.Signal) error {
	cp := *sig
	s.signals[sig.ID] = &cp
	s.order = append(s.order, sig.ID)
	return nil
}

func (s *memSignalStore) GetSignals(ctx context.Context) ([]model.Signal, error) {
	var out []model.Signal
	for _, id := range s.order {
		out = append(out, *s.signals[id])
	}
	return out, nil
}

func (s *memSignalStore) GetSignalsByStatus(ctx context.Context, status model.SignalStatus) ([]model.Signal, error) {
	var out []model.Signal
	for _, id := range s.order {
		if s.signals[id].Status == status {
			out = append(out, *s.signals[id])
		}
	}
	return out, nil
}

func (s *memSignalStore) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	if sig, ok := s.signals[id]; ok {
		cp := *sig
		return &cp, nil
	}
	return nil, nil
}

func (s *memSignalStore) UpdateSignalStatus(ctx context.Context, id string, status model.SignalStatus, at int64) error {
	sig := s.signals[id]
	sig.Status = status
	if status == model.StatusActive {
		sig.ActivatedAt = at
	}
	return nil
}

func (s *memSignalStore) UpdateSignalRiskLevels(ctx context.Context, id string, stopLoss float64, takeProfit *float64) error {
	sig := s.signals[id]
	sig.StopLoss = stopLoss
	if takeProfit != nil {
		sig.TakeProfit = *takeProfit
	}
	return nil
}

func (s *memSignalStore) CloseSignal(ctx context.Context, id string, reason model.CloseReason, pnl float64, at int64) error {
	sig := s.signals[id]
	sig.Status = model.StatusClosed
	sig.CloseReason = reason
	sig.PnL = pnl
	sig.ClosedAt = at
	return nil
}

// HasRecentSignal mirrors the SQL store's candle-time comparison.
func (s *memSignalStore) HasRecentSignal(ctx context.Context, strategyID, symbol string, dir model.Direction, since int64) (bool, error) {
	for _, sig := range s.signals {
		if sig.StrategyID == strategyID && sig.Pair == symbol && sig.Direction == dir && sig.CreatedAt >= since {
			return true, nil
		}
	}
	return false, nil
}

func (s *memSignalStore) CleanupOldSignals(ctx context.Context, retentionDays int) (int64, error) {
	return 0, nil
}

type fakePrices struct {
	price float64
	ok    bool
}

func (p *fakePrices) LastPrice(ctx context.Context, symbol string) (float64, bool) {
	return p.price, p.ok
}

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

// flatWindow builds n candles at a constant price, one hour apart, ending at
// endTime.
func flatWindow(symbol, tf string, n int, price float64, endTime int64) []model.Candle {
	out := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		t := endTime - int64(n-1-i)*3600
		out[i] = model.Candle{
			Symbol: symbol, Timeframe: tf, Time: t,
			Open: price, High: price, Low: price, Close: price, Volume: 1,
		}
	}
	return out
}

// alwaysBuy fires on every window with at least the minimum candles: closes
// are positive, so CLOSE > 0 always holds.
func alwaysBuy(id, name, tf string) model.Strategy {
	return model.Strategy{
		ID:        id,
		Name:      name,
		Timeframe: tf,
		EntryRules: []model.EntryRule{
			model.ThresholdRule(model.CondGreaterThan, "CLOSE", 0, model.DirectionBuy),
		},
		IsActive: true,
	}
}

func newTestEngine(cfg Config, md model.MarketDataProvider, strats model.StrategyStore,
	signals model.SignalStore, prices lifecycle.PriceSource) *Engine {
	manager := lifecycle.NewManager(signals, prices)
	guard := lifecycle.NewDupGuard(signals, lifecycle.DefaultLookbackCandles)
	runner := strategy.NewRunner(2 * time.Second)
	return New(cfg, md, strats, signals, runner, guard, manager, nil, nil)
}

// ────────────────────────────────────────────────────────────
// Generation pass
// ────────────────────────────────────────────────────────────

func TestPassGeneratesMarketSignalAtLastClose(t *testing.T) {
	const endTime = int64(1_700_000_000)
	md := &fakeMarketData{windows: map[string][]model.Candle{
		"BTCUSDT/H1": flatWindow("BTCUSDT", "H1", 60, 100, endTime),
	}}
	store := newMemSignalStore()
	eng := newTestEngine(
		Config{Symbols: []string{"BTCUSDT"}, Timeframes: []string{"H1"}},
		md, &fakeStrategyStore{strategies: []model.Strategy{alwaysBuy("s1", "Always Buy", "H1")}},
		store, &fakePrices{},
	)

	stats := eng.TriggerScan(context.Background())

	if stats.SignalsGenerated != 1 {
		t.Fatalf("SignalsGenerated = %d, want 1", stats.SignalsGenerated)
	}
	if stats.StrategiesEvaluated != 1 || stats.SymbolsProcessed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	signals, _ := store.GetSignals(context.Background())
	if len(signals) != 1 {
		t.Fatalf("stored %d signals, want 1", len(signals))
	}
	sig := signals[0]
	if sig.Status != model.StatusActive {
		t.Errorf("market signal status = %s, want ACTIVE", sig.Status)
	}
	if sig.Entry != 100 {
		t.Errorf("entry = %v, want last close 100", sig.Entry)
	}
	if sig.CreatedAt != endTime {
		t.Errorf("CreatedAt = %d, want trigger candle time %d", sig.CreatedAt, endTime)
	}
	if sig.TakeProfit <= sig.Entry || sig.StopLoss >= sig.Entry {
		t.Errorf("risk levels inverted: sl=%v entry=%v tp=%v", sig.StopLoss, sig.Entry, sig.TakeProfit)
	}
}

func TestSecondPassSuppressedByDuplicateGuard(t *testing.T) {
	const endTime = int64(1_700_000_000)
	md := &fakeMarketData{windows: map[string][]model.Candle{
		"BTCUSDT/H1": flatWindow("BTCUSDT", "H1", 60, 100, endTime),
	}}
	store := newMemSignalStore()
	eng := newTestEngine(
		Config{Symbols: []string{"BTCUSDT"}, Timeframes: []string{"H1"}},
		md, &fakeStrategyStore{strategies: []model.Strategy{alwaysBuy("s1", "Always Buy", "H1")}},
		store, &fakePrices{},
	)

	eng.TriggerScan(context.Background())
	stats := eng.TriggerScan(context.Background())

	if stats.SignalsGenerated != 0 {
		t.Fatalf("second pass generated %d signals, want 0", stats.SignalsGenerated)
	}
	if stats.DuplicatesBlocked != 1 {
		t.Errorf("DuplicatesBlocked = %d, want 1", stats.DuplicatesBlocked)
	}
	if signals, _ := store.GetSignals(context.Background()); len(signals) != 1 {
		t.Errorf("stored %d signals after two passes, want 1", len(signals))
	}
}

func TestNewCandlePermitsNextSignal(t *testing.T) {
	const endTime = int64(1_700_000_000)
	md := &fakeMarketData{windows: map[string][]model.Candle{
		"BTCUSDT/H1": flatWindow("BTCUSDT", "H1", 60, 100, endTime),
	}}
	store := newMemSignalStore()
	eng := newTestEngine(
		Config{Symbols: []string{"BTCUSDT"}, Timeframes: []string{"H1"}},
		md, &fakeStrategyStore{strategies: []model.Strategy{alwaysBuy("s1", "Always Buy", "H1")}},
		store, &fakePrices{},
	)
	eng.TriggerScan(context.Background())

	// Two bars later the lookback window has moved past the first signal.
	md.windows["BTCUSDT/H1"] = flatWindow("BTCUSDT", "H1", 60, 100, endTime+2*3600)
	stats := eng.TriggerScan(context.Background())

	if stats.SignalsGenerated != 1 {
		t.Fatalf("pass on fresh candle generated %d signals, want 1", stats.SignalsGenerated)
	}
}

func TestFetchFailureIsolatedPerSymbol(t *testing.T) {
	const endTime = int64(1_700_000_000)
	md := &fakeMarketData{
		windows: map[string][]model.Candle{
			"ETHUSDT/H1": flatWindow("ETHUSDT", "H1", 60, 2000, endTime),
		},
		failFor: "BTCUSDT",
	}
	store := newMemSignalStore()
	eng := newTestEngine(
		Config{Symbols: []string{"BTCUSDT", "ETHUSDT"}, Timeframes: []string{"H1"}},
		md, &fakeStrategyStore{strategies: []model.Strategy{alwaysBuy("s1", "Always Buy", "H1")}},
		store, &fakePrices{},
	)

	stats := eng.TriggerScan(context.Background())

	if len(stats.Errors) != 1 {
		t.Fatalf("Errors = %v, want 1 entry", stats.Errors)
	}
	if !strings.Contains(stats.Errors[0], "BTCUSDT") || !strings.Contains(stats.Errors[0], "candle fetch failed") {
		t.Errorf("diagnostic missing context: %q", stats.Errors[0])
	}
	if stats.SignalsGenerated != 1 {
		t.Errorf("SignalsGenerated = %d, want 1 (ETHUSDT unaffected)", stats.SignalsGenerated)
	}
	if stats.SymbolsProcessed != 2 {
		t.Errorf("SymbolsProcessed = %d, want 2", stats.SymbolsProcessed)
	}
}

func TestStrategyTimeframeFilter(t *testing.T) {
	const endTime = int64(1_700_000_000)
	md := &fakeMarketData{windows: map[string][]model.Candle{
		"BTCUSDT/H4": flatWindow("BTCUSDT", "H4", 60, 100, endTime),
	}}
	store := newMemSignalStore()
	eng := newTestEngine(
		Config{Symbols: []string{"BTCUSDT"}, Timeframes: []string{"H4"}},
		md, &fakeStrategyStore{strategies: []model.Strategy{alwaysBuy("s1", "H1 Only", "H1")}},
		store, &fakePrices{},
	)

	stats := eng.TriggerScan(context.Background())

	if stats.StrategiesEvaluated != 0 {
		t.Errorf("StrategiesEvaluated = %d, want 0 for mismatched timeframe", stats.StrategiesEvaluated)
	}
	if stats.SignalsGenerated != 0 {
		t.Errorf("SignalsGenerated = %d, want 0", stats.SignalsGenerated)
	}
}

func TestQuietStrategyStillCountedAsEvaluated(t *testing.T) {
	const endTime = int64(1_700_000_000)
	md := &fakeMarketData{windows: map[string][]model.Candle{
		"BTCUSDT/H1": flatWindow("BTCUSDT", "H1", 60, 100, endTime),
	}}
	store := newMemSignalStore()

	// A rule no realistic close satisfies: evaluated every pass, never fires.
	quiet := model.Strategy{
		ID:        "s1",
		Name:      "Moonshot Only",
		Timeframe: "H1",
		EntryRules: []model.EntryRule{
			model.ThresholdRule(model.CondGreaterThan, "CLOSE", 1e9, model.DirectionBuy),
		},
		IsActive: true,
	}
	eng := newTestEngine(
		Config{Symbols: []string{"BTCUSDT"}, Timeframes: []string{"H1"}},
		md, &fakeStrategyStore{strategies: []model.Strategy{quiet}},
		store, &fakePrices{},
	)

	stats := eng.TriggerScan(context.Background())

	if stats.StrategiesEvaluated != 1 {
		t.Errorf("StrategiesEvaluated = %d, want 1", stats.StrategiesEvaluated)
	}
	if stats.SignalsGenerated != 0 {
		t.Errorf("SignalsGenerated = %d, want 0", stats.SignalsGenerated)
	}
}

func TestStrategyTrailingPctSetsSignalDistance(t *testing.T) {
	const endTime = int64(1_700_000_000)
	md := &fakeMarketData{windows: map[string][]model.Candle{
		"BTCUSDT/H1": flatWindow("BTCUSDT", "H1", 60, 100, endTime),
	}}
	store := newMemSignalStore()
	strat := alwaysBuy("s1", "Always Buy", "H1")
	strat.TrailingStopPct = 2
	eng := newTestEngine(
		Config{Symbols: []string{"BTCUSDT"}, Timeframes: []string{"H1"}},
		md, &fakeStrategyStore{strategies: []model.Strategy{strat}},
		store, &fakePrices{},
	)

	eng.TriggerScan(context.Background())

	signals, _ := store.GetSignals(context.Background())
	if len(signals) != 1 {
		t.Fatalf("stored %d signals, want 1", len(signals))
	}
	// 2% of the 100 entry close.
	if signals[0].TrailingStop != 2 {
		t.Errorf("TrailingStop = %v, want 2", signals[0].TrailingStop)
	}
}

func TestStrategyLoadFailureCountsError(t *testing.T) {
	store := newMemSignalStore()
	eng := newTestEngine(
		Config{Symbols: []string{"BTCUSDT"}, Timeframes: []string{"H1"}},
		&fakeMarketData{}, &fakeStrategyStore{err: errors.New("db locked")},
		store, &fakePrices{},
	)

	stats := eng.TriggerScan(context.Background())

	if len(stats.Errors) != 1 {
		t.Fatalf("Errors = %v, want 1 entry", stats.Errors)
	}
	if !strings.Contains(stats.Errors[0], "db locked") {
		t.Errorf("diagnostic lost the cause: %q", stats.Errors[0])
	}
	if eng.Status().LastRun == nil {
		t.Error("LastRun not recorded after failed pass")
	}
}

// ────────────────────────────────────────────────────────────
// Monitor tick
// ────────────────────────────────────────────────────────────

func TestMonitorActivatesBeforeClosingButNotSameTick(t *testing.T) {
	store := newMemSignalStore()
	prices := &fakePrices{price: 103, ok: true}
	eng := newTestEngine(
		Config{Symbols: []string{"BTCUSDT"}, Timeframes: []string{"H1"}},
		&fakeMarketData{}, &fakeStrategyStore{}, store, prices,
	)

	// A pending limit buy at 105 with TP 102: price 103 activates it
	// immediately (103 <= 105) and already sits past the take-profit.
	store.CreateSignal(context.Background(), &model.Signal{
		ID: "sig-1", Pair: "BTCUSDT", StrategyID: "s1",
		Direction: model.DirectionBuy, Entry: 105, EntryType: model.EntryLimit,
		StopLoss: 95, TakeProfit: 102, Timeframe: "H1",
		Status: model.StatusPending, CreatedAt: 1_700_000_000,
	})

	eng.monitorTick(context.Background())

	sig, _ := store.GetSignal(context.Background(), "sig-1")
	if sig.Status != model.StatusActive {
		t.Fatalf("after first tick status = %s, want ACTIVE (never CLOSED same tick)", sig.Status)
	}

	eng.monitorTick(context.Background())

	sig, _ = store.GetSignal(context.Background(), "sig-1")
	if sig.Status != model.StatusClosed {
		t.Fatalf("after second tick status = %s, want CLOSED", sig.Status)
	}
	if sig.CloseReason != model.CloseTakeProfit {
		t.Errorf("close reason = %s, want TP", sig.CloseReason)
	}

}

func TestMonitorNoPriceLeavesSignalsUntouched(t *testing.T) {
	store := newMemSignalStore()
	eng := newTestEngine(
		Config{Symbols: []string{"BTCUSDT"}, Timeframes: []string{"H1"}},
		&fakeMarketData{}, &fakeStrategyStore{}, store, &fakePrices{ok: false},
	)
	store.CreateSignal(context.Background(), &model.Signal{
		ID: "sig-1", Pair: "BTCUSDT", Direction: model.DirectionBuy,
		Entry: 100, EntryType: model.EntryMarket, StopLoss: 95, TakeProfit: 110,
		Timeframe: "H1", Status: model.StatusActive, CreatedAt: 1_700_000_000,
	})

	eng.monitorTick(context.Background())

	sig, _ := store.GetSignal(context.Background(), "sig-1")
	if sig.Status != model.StatusActive {
		t.Errorf("status = %s, want ACTIVE when no price is available", sig.Status)
	}
}

// ────────────────────────────────────────────────────────────
// Scheduler state
// ────────────────────────────────────────────────────────────

func TestStartStopIdempotent(t *testing.T) {
	store := newMemSignalStore()
	eng := newTestEngine(
		Config{
			Symbols: []string{"BTCUSDT"}, Timeframes: []string{"H1"},
			ScanInterval: time.Hour, MonitorInterval: time.Hour, RetentionInterval: time.Hour,
		},
		&fakeMarketData{}, &fakeStrategyStore{}, store, &fakePrices{},
	)

	ctx := context.Background()
	eng.Start(ctx)
	eng.Start(ctx) // no-op
	if !eng.Status().Running {
		t.Fatal("engine not running after Start")
	}

	eng.Stop()
	eng.Stop() // no-op
	if eng.Status().Running {
		t.Fatal("engine still running after Stop")
	}
}
