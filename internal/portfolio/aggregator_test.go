package portfolio

import (
	"math"
	"testing"
	"time"

	"arbdesk/internal/model"
)

func openPosition(id, token string, legs []model.PositionLeg, notional float64) model.Position {
	return model.Position{
		ID:            id,
		Token:         token,
		Legs:          legs,
		NotionalValue: notional,
		Status:        model.StatusOpen,
		OpenedAt:      time.Now().UTC().Add(-time.Hour),
	}
}

func TestSummarize_CachedOnlyTotals(t *testing.T) {
	open := []model.Position{
		openPosition("a", "BTC", nil, 50000),
		openPosition("b", "ETH", nil, 15000),
		openPosition("c", "SOL", nil, 2000), // no cache entry
	}
	cache := map[string]model.PositionPnl{
		"a": {PositionID: "a", TotalPnl: 900, UnrealizedPnl: 1000, FundingPnl: -100},
		"b": {PositionID: "b", TotalPnl: -50, UnrealizedPnl: -30, FundingPnl: -20},
	}
	lookup := func(id string) (model.PositionPnl, bool) {
		v, ok := cache[id]
		return v, ok
	}

	entries, s := Summarize(open, lookup)

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[2].Pnl != nil {
		t.Error("uncached position should have nil pnl in its entry")
	}
	if s.OpenPositionCount != 3 {
		t.Errorf("open count should include uncached positions, got %d", s.OpenPositionCount)
	}
	if s.TotalPnl != 850 {
		t.Errorf("total pnl: expected 850, got %v", s.TotalPnl)
	}
	if s.TotalUnrealizedPnl != 970 {
		t.Errorf("total unrealized: expected 970, got %v", s.TotalUnrealizedPnl)
	}
	if s.TotalFundingPnl != -120 {
		t.Errorf("total funding: expected -120, got %v", s.TotalFundingPnl)
	}
	if s.TotalNotional != 65000 {
		t.Errorf("total notional should cover cached positions only: expected 65000, got %v", s.TotalNotional)
	}
	wantPct := 850.0 / 65000.0 * 100.0
	if math.Abs(s.TotalPnlPercent-wantPct) > 1e-9 {
		t.Errorf("total pct: expected %v, got %v", wantPct, s.TotalPnlPercent)
	}
}

func TestSummarize_ZeroNotional(t *testing.T) {
	open := []model.Position{openPosition("a", "BTC", nil, 0)}
	cache := map[string]model.PositionPnl{"a": {PositionID: "a", TotalPnl: 10}}
	_, s := Summarize(open, func(id string) (model.PositionPnl, bool) {
		v, ok := cache[id]
		return v, ok
	})

	if s.TotalPnlPercent != 0 || s.TotalFundingPnlPercent != 0 || s.TotalUnrealizedPnlPercent != 0 {
		t.Errorf("zero notional must yield zero percents, got %+v", s)
	}
	if math.IsNaN(s.TotalPnlPercent) || math.IsInf(s.TotalPnlPercent, 0) {
		t.Error("non-finite percentage leaked through")
	}
}

func TestSummarize_Empty(t *testing.T) {
	entries, s := Summarize(nil, func(string) (model.PositionPnl, bool) {
		return model.PositionPnl{}, false
	})
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
	if s.OpenPositionCount != 0 || s.TotalPnl != 0 {
		t.Errorf("expected zero summary, got %+v", s)
	}
}

func TestExposure_EntryPriceFraming(t *testing.T) {
	open := []model.Position{
		openPosition("a", "ETH", []model.PositionLeg{
			{Side: model.SideLong, Quantity: 10, Leverage: 5, EntryPrice: 3000},
			{Side: model.SideShort, Quantity: 10, Leverage: 5, EntryPrice: 3010},
		}, 60100),
		openPosition("b", "BTC", []model.PositionLeg{
			{Side: model.SideLong, Quantity: 1, Leverage: 2, EntryPrice: 50000},
		}, 50000),
	}

	long, short, net := Exposure(open)
	// Entry-price notional, unleveraged: leverage never enters exposure.
	if long != 80000 {
		t.Errorf("long exposure: expected 80000, got %v", long)
	}
	if short != 30100 {
		t.Errorf("short exposure: expected 30100, got %v", short)
	}
	if net != long-short {
		t.Errorf("net must be long-short, got %v", net)
	}
}
