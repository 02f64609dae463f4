package execution

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"signal-enginev1/internal/metrics"
	"signal-enginev1/internal/model"
)

// fakeTradeStore enforces the unique-signal constraint in memory.
type fakeTradeStore struct {
	bySignal map[string]*model.PaperTrade
	failNext bool
}

func newFakeTradeStore() *fakeTradeStore {
	return &fakeTradeStore{bySignal: make(map[string]*model.PaperTrade)}
}

func (s *fakeTradeStore) CreatePaperTrade(ctx context.Context, t *model.PaperTrade) error {
	if s.failNext {
		s.failNext = false
		return errors.New("storage unavailable")
	}
	if _, exists := s.bySignal[t.SignalID]; exists {
		return errors.New("UNIQUE constraint failed: paper_trades.signal_id")
	}
	cp := *t
	s.bySignal[t.SignalID] = &cp
	return nil
}

func (s *fakeTradeStore) GetPaperTradeBySignal(ctx context.Context, signalID string) (*model.PaperTrade, error) {
	if t, ok := s.bySignal[signalID]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeTradeStore) CloseOpenPaperTrade(ctx context.Context, signalID string, exitPrice, pnl, pnlPercent float64, reason model.CloseReason, at int64) (bool, error) {
	t, ok := s.bySignal[signalID]
	if !ok || t.Status != model.TradeOpen {
		return false, nil
	}
	t.Status = model.TradeClosed
	t.ExitPrice = exitPrice
	t.PnL = pnl
	t.PnLPercent = pnlPercent
	t.ExitReason = reason
	t.ClosedAt = at
	return true, nil
}

func buySignal() *model.Signal {
	return &model.Signal{
		ID: "sig-1", Pair: "EURUSD", Direction: model.DirectionBuy,
		Entry: 100, StopLoss: 95, TakeProfit: 110,
		Status: model.StatusActive, CloseReason: model.CloseTakeProfit,
	}
}

func TestOpen_IdempotentBySignal(t *testing.T) {
	store := newFakeTradeStore()
	e := NewPaperEngine(store, 2, 1)
	e.now = func() int64 { return 1700000000 }

	sig := buySignal()
	first, err := e.Open(context.Background(), sig)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	second, err := e.Open(context.Background(), sig)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("trade ids differ across opens: %s vs %s", first.ID, second.ID)
	}
	if len(store.bySignal) != 1 {
		t.Fatalf("stored trades: got %d, want 1", len(store.bySignal))
	}
	if first.EntryPrice != 100 || first.Quantity != 2 {
		t.Errorf("trade fields: entry=%.2f qty=%.2f", first.EntryPrice, first.Quantity)
	}
	if first.StopLoss != 95 || first.TakeProfit != 110 {
		t.Errorf("risk levels not copied: sl=%.2f tp=%.2f", first.StopLoss, first.TakeProfit)
	}
}

func TestClose_BuyPnL(t *testing.T) {
	store := newFakeTradeStore()
	e := NewPaperEngine(store, 3, 1)

	sig := buySignal()
	if _, err := e.Open(context.Background(), sig); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := e.Close(context.Background(), sig, 104, model.CloseTakeProfit); err != nil {
		t.Fatalf("close: %v", err)
	}

	trade := store.bySignal["sig-1"]
	if trade.Status != model.TradeClosed {
		t.Fatalf("status: got %s, want CLOSED", trade.Status)
	}
	if math.Abs(trade.PnL-12) > 1e-9 { // (104-100) * 3
		t.Errorf("pnl: got %.4f, want 12", trade.PnL)
	}
	if math.Abs(trade.PnLPercent-4) > 1e-9 {
		t.Errorf("pnl percent: got %.4f, want 4", trade.PnLPercent)
	}
	if trade.ExitReason != model.CloseTakeProfit {
		t.Errorf("exit reason: got %s", trade.ExitReason)
	}
}

func TestClose_SellPnLInverts(t *testing.T) {
	store := newFakeTradeStore()
	e := NewPaperEngine(store, 2, 1)

	sig := buySignal()
	sig.Direction = model.DirectionSell
	if _, err := e.Open(context.Background(), sig); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := e.Close(context.Background(), sig, 97, model.CloseTakeProfit); err != nil {
		t.Fatalf("close: %v", err)
	}

	trade := store.bySignal["sig-1"]
	if math.Abs(trade.PnL-6) > 1e-9 { // (100-97) * 2
		t.Errorf("sell pnl: got %.4f, want 6", trade.PnL)
	}
	if math.Abs(trade.PnLPercent-3) > 1e-9 {
		t.Errorf("sell pnl percent: got %.4f, want 3", trade.PnLPercent)
	}
}

func TestClose_NoOpenTradeIsNoop(t *testing.T) {
	store := newFakeTradeStore()
	e := NewPaperEngine(store, 1, 1)

	if err := e.Close(context.Background(), buySignal(), 104, model.CloseManual); err != nil {
		t.Fatalf("close without trade: %v", err)
	}
}

func TestClose_SecondCloseDoesNotRewrite(t *testing.T) {
	store := newFakeTradeStore()
	e := NewPaperEngine(store, 1, 1)

	sig := buySignal()
	if _, err := e.Open(context.Background(), sig); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := e.Close(context.Background(), sig, 104, model.CloseTakeProfit); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := e.Close(context.Background(), sig, 90, model.CloseStopLoss); err != nil {
		t.Fatalf("second close: %v", err)
	}

	trade := store.bySignal["sig-1"]
	if trade.ExitPrice != 104 || trade.ExitReason != model.CloseTakeProfit {
		t.Fatalf("second close rewrote the trade: exit=%.2f reason=%s", trade.ExitPrice, trade.ExitReason)
	}
}

func TestOpen_RecoversFromUniqueRace(t *testing.T) {
	store := newFakeTradeStore()
	e := NewPaperEngine(store, 1, 1)

	sig := buySignal()
	// Simulate a racing open that committed first.
	winner := &model.PaperTrade{ID: "winner", SignalID: sig.ID, Status: model.TradeOpen}
	store.bySignal[sig.ID] = winner

	got, err := e.Open(context.Background(), sig)
	if err != nil {
		t.Fatalf("open after race: %v", err)
	}
	if got.ID != "winner" {
		t.Fatalf("race recovery returned %s, want winner", got.ID)
	}
}

func TestTradeCountersTrackOpensAndCloses(t *testing.T) {
	store := newFakeTradeStore()
	e := NewPaperEngine(store, 1, 1)
	met := metrics.NewMetrics()
	e.SetMetrics(met)
	ctx := context.Background()

	sig := buySignal()
	if _, err := e.Open(ctx, sig); err != nil {
		t.Fatalf("open: %v", err)
	}
	// Idempotent re-open must not count again.
	if _, err := e.Open(ctx, sig); err != nil {
		t.Fatalf("re-open: %v", err)
	}
	if got := testutil.ToFloat64(met.TradesOpened); got != 1 {
		t.Errorf("trades opened counter = %v, want 1", got)
	}

	if err := e.Close(ctx, sig, 104, model.CloseTakeProfit); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Second close loses the status race and must not count.
	if err := e.Close(ctx, sig, 90, model.CloseStopLoss); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if got := testutil.ToFloat64(met.TradesClosed); got != 1 {
		t.Errorf("trades closed counter = %v, want 1", got)
	}
}

func TestListenerHooksAreIdempotent(t *testing.T) {
	store := newFakeTradeStore()
	e := NewPaperEngine(store, 1, 1)
	ctx := context.Background()

	sig := buySignal()
	e.SignalActivated(ctx, sig)
	e.SignalActivated(ctx, sig)
	if len(store.bySignal) != 1 {
		t.Fatalf("duplicate activation created %d trades", len(store.bySignal))
	}

	e.SignalClosed(ctx, sig, 104)
	e.SignalClosed(ctx, sig, 90)
	if store.bySignal["sig-1"].ExitPrice != 104 {
		t.Fatalf("duplicate close rewrote exit price")
	}
}
