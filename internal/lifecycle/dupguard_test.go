package lifecycle

import (
	"context"
	"testing"

	"signal-enginev1/internal/model"
)

// recordingSignalStore captures the sinceCandleTime the guard queries with.
type recordingSignalStore struct {
	fakeSignalStore
	lastSince int64
}

func (s *recordingSignalStore) HasRecentSignal(ctx context.Context, strategyID, symbol string, dir model.Direction, since int64) (bool, error) {
	s.lastSince = since
	return s.fakeSignalStore.HasRecentSignal(ctx, strategyID, symbol, dir, since)
}

func TestDupGuard_LookbackWindowInCandleTime(t *testing.T) {
	store := &recordingSignalStore{fakeSignalStore: *newFakeSignalStore()}
	g := NewDupGuard(store, 1)

	candleTime := int64(1700000000)
	g.IsDuplicate(context.Background(), "s1", "EURUSD", model.DirectionBuy, "H1", candleTime)

	// One H1 candle back: 3600 seconds.
	if want := candleTime - 3600; store.lastSince != want {
		t.Fatalf("since: got %d, want %d", store.lastSince, want)
	}

	// Unknown timeframe defaults to one hour.
	g.IsDuplicate(context.Background(), "s1", "EURUSD", model.DirectionBuy, "H7", candleTime)
	if want := candleTime - 3600; store.lastSince != want {
		t.Fatalf("unknown tf since: got %d, want %d", store.lastSince, want)
	}

	// H4 scales the window.
	g.IsDuplicate(context.Background(), "s1", "EURUSD", model.DirectionBuy, "H4", candleTime)
	if want := candleTime - 14400; store.lastSince != want {
		t.Fatalf("H4 since: got %d, want %d", store.lastSince, want)
	}
}

func TestDupGuard_SuppressesInsideWindow(t *testing.T) {
	store := newFakeSignalStore()
	store.recent = true
	g := NewDupGuard(store, 0)

	if !g.IsDuplicate(context.Background(), "s1", "EURUSD", model.DirectionBuy, "H1", 1700000000) {
		t.Fatalf("existing signal inside window not suppressed")
	}
}

func TestDupGuard_PermitsOutsideWindow(t *testing.T) {
	store := newFakeSignalStore()
	store.recent = false
	g := NewDupGuard(store, 0)

	if g.IsDuplicate(context.Background(), "s1", "EURUSD", model.DirectionBuy, "H1", 1700000000) {
		t.Fatalf("signal outside window wrongly suppressed")
	}
}

// timedStore answers HasRecentSignal from a single stored creation time,
// matching the store query createdAt >= since.
type timedStore struct {
	fakeSignalStore
	createdAt int64
}

func (s *timedStore) HasRecentSignal(ctx context.Context, strategyID, symbol string, dir model.Direction, since int64) (bool, error) {
	return s.createdAt >= since, nil
}

func TestDupGuard_WindowBoundaries(t *testing.T) {
	createdAt := int64(1700000000)
	store := &timedStore{createdAt: createdAt}
	g := NewDupGuard(store, 1)

	lookback := model.TimeframeSeconds("H1")

	// Just inside the window: suppressed.
	if !g.IsDuplicate(context.Background(), "s1", "EURUSD", model.DirectionBuy, "H1", createdAt+lookback-1) {
		t.Fatalf("request at T+lookback-1 not suppressed")
	}
	// Just outside: permitted.
	if g.IsDuplicate(context.Background(), "s1", "EURUSD", model.DirectionBuy, "H1", createdAt+lookback+1) {
		t.Fatalf("request at T+lookback+1 wrongly suppressed")
	}
}

func TestDupGuard_FailsOpenOnStorageError(t *testing.T) {
	store := newFakeSignalStore()
	store.recentErr = errStorage
	g := NewDupGuard(store, 0)

	if g.IsDuplicate(context.Background(), "s1", "EURUSD", model.DirectionBuy, "H1", 1700000000) {
		t.Fatalf("guard must fail open on storage error")
	}
}
