package history

import (
	"math"
	"testing"
	"time"

	"arbdesk/internal/ledger"
	"arbdesk/internal/model"
)

// staticFeed supplies fixed market inputs.
type staticFeed struct {
	prices model.PriceMap
	rates  model.FundingRateMap
}

func (f *staticFeed) Prices() model.PriceMap             { return f.prices }
func (f *staticFeed) FundingRates() model.FundingRateMap { return f.rates }

func newTestBook(t *testing.T) (*ledger.Book, string) {
	t.Helper()
	b := ledger.New(nil)
	id := b.AddPosition(ledger.Draft{
		Token: "BTC",
		Legs: []model.PositionLeg{
			{ID: "l1", Exchange: "X", Side: model.SideLong, Quantity: 2, Leverage: 3, EntryPrice: 50000, EntryTime: time.Now().UTC()},
			{ID: "l2", Exchange: "Y", Side: model.SideShort, Quantity: 1, Leverage: 3, EntryPrice: 50100, EntryTime: time.Now().UTC()},
		},
		NotionalValue: 150100,
	})
	return b, id
}

func TestRecorder_RecordsPoint(t *testing.T) {
	book, _ := newTestBook(t)
	series := NewSeries()
	feed := &staticFeed{prices: model.PriceMap{"BTC": 51000}}
	rec := NewRecorder(book, series, feed, nil, RecorderConfig{Interval: 30 * time.Second})

	now := time.Now().UTC()
	point, ok := rec.Record(now)
	if !ok {
		t.Fatal("expected a point to be recorded")
	}
	if series.Len() != 1 {
		t.Fatalf("expected 1 stored point, got %d", series.Len())
	}
	if point.Timestamp != now.UnixMilli() {
		t.Errorf("timestamp: expected %d, got %d", now.UnixMilli(), point.Timestamp)
	}
	if point.TimeLabel == "" {
		t.Error("time label not set")
	}
	if point.PositionCount != 1 {
		t.Errorf("position count: expected 1, got %d", point.PositionCount)
	}

	// Exposure accumulates entry notional by leg side, unleveraged.
	if math.Abs(point.LongExposure-100000) > 1e-9 {
		t.Errorf("long exposure: expected 100000, got %v", point.LongExposure)
	}
	if math.Abs(point.ShortExposure-50100) > 1e-9 {
		t.Errorf("short exposure: expected 50100, got %v", point.ShortExposure)
	}
	if point.NetPosition != point.LongExposure-point.ShortExposure {
		t.Errorf("net position must be long-short, got %v", point.NetPosition)
	}

	// Conservation carries through the aggregate.
	if math.Abs(point.NetPnl-(point.UnrealizedPnl+point.FundingPnl)) > 1e-9 {
		t.Errorf("net != unrealized+funding: %+v", point)
	}
}

func TestRecorder_MinimumSpacingGuard(t *testing.T) {
	book, _ := newTestBook(t)
	series := NewSeries()
	feed := &staticFeed{prices: model.PriceMap{"BTC": 51000}}
	rec := NewRecorder(book, series, feed, nil, RecorderConfig{Interval: 30 * time.Second})

	t0 := time.Now().UTC()
	if _, ok := rec.Record(t0); !ok {
		t.Fatal("first record should succeed")
	}
	if _, ok := rec.Record(t0.Add(5 * time.Second)); ok {
		t.Error("record within 5s of a 30s interval must be rejected")
	}
	if _, ok := rec.Record(t0.Add(29 * time.Second)); !ok {
		t.Error("record at interval-1s boundary should be accepted")
	}
	if series.Len() != 2 {
		t.Errorf("expected 2 points, got %d", series.Len())
	}
}

func TestRecorder_SkipsWithoutOpenPositions(t *testing.T) {
	book := ledger.New(nil)
	series := NewSeries()
	feed := &staticFeed{prices: model.PriceMap{"BTC": 51000}}
	rec := NewRecorder(book, series, feed, nil, RecorderConfig{})

	if _, ok := rec.Record(time.Now().UTC()); ok {
		t.Error("recording with no open positions must be skipped")
	}
	if series.Len() != 0 {
		t.Errorf("no point should be stored, got %d", series.Len())
	}
}

func TestRecorder_RefreshesCache(t *testing.T) {
	book, id := newTestBook(t)
	series := NewSeries()
	feed := &staticFeed{prices: model.PriceMap{"BTC": 51000}}
	rec := NewRecorder(book, series, feed, nil, RecorderConfig{})

	if _, ok := book.CachedPnl(id); ok {
		t.Fatal("cache should start empty")
	}
	if _, ok := rec.Record(time.Now().UTC()); !ok {
		t.Fatal("expected record to succeed")
	}
	if _, ok := book.CachedPnl(id); !ok {
		t.Error("recording pass must refresh the pnl cache")
	}
}

func TestRecorder_UnpricedPortfolioStillRecords(t *testing.T) {
	// Open positions exist but none can be valued: the point records with
	// zero totals rather than being dropped.
	book, _ := newTestBook(t)
	series := NewSeries()
	feed := &staticFeed{} // no prices at all
	rec := NewRecorder(book, series, feed, nil, RecorderConfig{})

	point, ok := rec.Record(time.Now().UTC())
	if !ok {
		t.Fatal("expected a point even when nothing is priceable")
	}
	if point.NetPnl != 0 || point.UnrealizedPnl != 0 || point.FundingPnl != 0 {
		t.Errorf("unpriced positions must contribute zero, got %+v", point)
	}
	if point.PositionCount != 1 {
		t.Errorf("position count still covers open positions, got %d", point.PositionCount)
	}
}
