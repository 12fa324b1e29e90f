package ledger

import (
	"testing"
	"time"

	"arbdesk/internal/model"
)

func ratePtr(v float64) *float64 { return &v }

func btcDraft() Draft {
	return Draft{
		Token: "BTC",
		Legs: []model.PositionLeg{
			{ID: "l1", Exchange: "X", Side: model.SideLong, Quantity: 1, Leverage: 2, EntryPrice: 50000, EntryTime: time.Now().UTC()},
		},
		NotionalValue: 50000,
	}
}

func TestBook_AddAndGet(t *testing.T) {
	b := New(nil)
	id := b.AddPosition(btcDraft())
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	p, ok := b.Position(id)
	if !ok {
		t.Fatal("position not found after add")
	}
	if p.Status != model.StatusOpen {
		t.Errorf("expected open, got %s", p.Status)
	}
	if p.ClosedAt != nil {
		t.Error("new position should have nil ClosedAt")
	}
	if p.OpenedAt.IsZero() {
		t.Error("OpenedAt not set")
	}
	if len(p.Legs) != 1 || p.Legs[0].Exchange != "X" {
		t.Errorf("legs not preserved: %+v", p.Legs)
	}
}

func TestBook_IDsUnique(t *testing.T) {
	b := New(nil)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := b.AddPosition(btcDraft())
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestBook_ClosePosition(t *testing.T) {
	b := New(nil)
	id := b.AddPosition(btcDraft())

	if !b.ClosePosition(id) {
		t.Fatal("expected close to succeed")
	}
	p, _ := b.Position(id)
	if p.Status != model.StatusClosed {
		t.Errorf("expected closed, got %s", p.Status)
	}
	if p.ClosedAt == nil {
		t.Fatal("ClosedAt should be set")
	}
	if p.ClosedAt.Before(p.OpenedAt) {
		t.Error("ClosedAt before OpenedAt")
	}

	// Second close and unknown id are no-ops.
	if b.ClosePosition(id) {
		t.Error("closing an already-closed position should be a no-op")
	}
	if b.ClosePosition("nope") {
		t.Error("closing an unknown id should be a no-op")
	}
}

func TestBook_Filters(t *testing.T) {
	b := New(nil)
	btc := b.AddPosition(btcDraft())
	eth := b.AddPosition(Draft{
		Token: "ETH",
		Legs: []model.PositionLeg{
			{ID: "l1", Exchange: "Y", Side: model.SideShort, Quantity: 5, Leverage: 1, EntryPrice: 3000, EntryTime: time.Now().UTC()},
		},
		NotionalValue: 15000,
	})
	b.ClosePosition(btc)

	if got := b.OpenPositions(); len(got) != 1 || got[0].ID != eth {
		t.Errorf("open positions: got %+v", got)
	}
	if got := b.ClosedPositions(); len(got) != 1 || got[0].ID != btc {
		t.Errorf("closed positions: got %+v", got)
	}
	if got := b.TokenPositions("BTC"); len(got) != 1 || got[0].ID != btc {
		t.Errorf("token positions: got %+v", got)
	}
	if got := b.TokenPositions("DOGE"); len(got) != 0 {
		t.Errorf("expected no DOGE positions, got %d", len(got))
	}
}

func TestBook_RefreshPnl_CacheConsistency(t *testing.T) {
	b := New(nil)
	priced := b.AddPosition(btcDraft())
	unpriced := b.AddPosition(Draft{
		Token: "DOGE",
		Legs: []model.PositionLeg{
			{ID: "l1", Exchange: "X", Side: model.SideLong, Quantity: 100, Leverage: 1, EntryPrice: 0.1, EntryTime: time.Now().UTC()},
		},
		NotionalValue: 10,
	})
	toClose := b.AddPosition(btcDraft())

	prices := model.PriceMap{"BTC": 51000}
	rates := model.FundingRateMap{"BTC": {"X": ratePtr(10)}}

	b.RefreshPnl(prices, rates)
	if _, ok := b.CachedPnl(priced); !ok {
		t.Error("priced open position should be cached")
	}
	if _, ok := b.CachedPnl(unpriced); ok {
		t.Error("unpriced position should not be cached")
	}
	if _, ok := b.CachedPnl(toClose); !ok {
		t.Error("second BTC position should be cached")
	}

	// Closing keeps the stale entry until the next refresh drops it.
	b.ClosePosition(toClose)
	if _, ok := b.CachedPnl(toClose); !ok {
		t.Error("cache entry should survive until next refresh")
	}
	b.RefreshPnl(prices, rates)
	if _, ok := b.CachedPnl(toClose); ok {
		t.Error("closed position must be dropped on refresh")
	}
	if _, ok := b.CachedPnl(priced); !ok {
		t.Error("open priced position must remain cached after refresh")
	}
}

func TestBook_RefreshAndSnapshot_Consistent(t *testing.T) {
	b := New(nil)
	id := b.AddPosition(btcDraft())

	open, cache := b.RefreshAndSnapshot(model.PriceMap{"BTC": 50500}, nil)
	if len(open) != 1 || open[0].ID != id {
		t.Fatalf("expected one open position, got %+v", open)
	}
	v, ok := cache[id]
	if !ok {
		t.Fatal("snapshot cache missing entry")
	}
	if v.UnrealizedPnl <= 0 {
		t.Errorf("expected positive unrealized on price rise, got %v", v.UnrealizedPnl)
	}
}

func TestBook_Clear(t *testing.T) {
	b := New(nil)
	id := b.AddPosition(btcDraft())
	b.RefreshPnl(model.PriceMap{"BTC": 51000}, nil)

	b.Clear()
	if len(b.Snapshot()) != 0 {
		t.Error("positions should be wiped")
	}
	if _, ok := b.CachedPnl(id); ok {
		t.Error("cache should be wiped")
	}
}

func TestBook_SnapshotRestore(t *testing.T) {
	b := New(nil)
	a := b.AddPosition(btcDraft())
	c := b.AddPosition(btcDraft())
	b.ClosePosition(c)

	snap := b.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 positions in snapshot, got %d", len(snap))
	}

	restored := New(nil)
	restored.Restore(snap)
	if got := restored.OpenPositions(); len(got) != 1 || got[0].ID != a {
		t.Errorf("restored open positions wrong: %+v", got)
	}
	if got := restored.ClosedPositions(); len(got) != 1 || got[0].ID != c {
		t.Errorf("restored closed positions wrong: %+v", got)
	}
}
