package history

import (
	"context"
	"log"
	"sync"
	"time"

	"arbdesk/internal/bus"
	"arbdesk/internal/ledger"
	"arbdesk/internal/model"
	"arbdesk/internal/portfolio"
)

const (
	// DefaultInterval is the recording period.
	DefaultInterval = 30 * time.Second
	// DefaultRetention is how long recorded points are kept.
	DefaultRetention = 168 * time.Hour
	// DefaultPruneEvery is the period of the independent pruning task.
	DefaultPruneEvery = 24 * time.Hour
)

// MarketData supplies the latest prices and funding rates synchronously at
// the moment of recording. Staleness is the supplier's concern.
type MarketData interface {
	Prices() model.PriceMap
	FundingRates() model.FundingRateMap
}

// RecorderConfig configures the recorder. Zero values take the defaults.
type RecorderConfig struct {
	Interval   time.Duration
	Retention  time.Duration
	PruneEvery time.Duration
}

// Recorder periodically snapshots aggregate portfolio PNL into the series.
// Recording and pruning run as two independently cancellable loops tied to
// process lifetime.
type Recorder struct {
	book   *ledger.Book
	series *Series
	feed   MarketData
	events *bus.FanOut // optional

	interval   time.Duration
	retention  time.Duration
	pruneEvery time.Duration

	// OnRecorded, OnSkipped, and OnPruned are optional observation hooks.
	OnRecorded func(model.PnlDataPoint)
	OnSkipped  func()
	OnPruned   func(removed int)

	mu           sync.Mutex
	lastRecorded time.Time
}

// NewRecorder creates a recorder over the given book, series, and feed.
func NewRecorder(book *ledger.Book, series *Series, feed MarketData, events *bus.FanOut, cfg RecorderConfig) *Recorder {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.PruneEvery <= 0 {
		cfg.PruneEvery = DefaultPruneEvery
	}
	return &Recorder{
		book:       book,
		series:     series,
		feed:       feed,
		events:     events,
		interval:   cfg.Interval,
		retention:  cfg.Retention,
		pruneEvery: cfg.PruneEvery,
	}
}

// Record performs one recording pass at the given instant: refresh the PNL
// cache from the feed, derive exposures and totals from the same snapshot,
// and append one data point.
//
// Returns false without recording when there are no open positions, or when
// less than interval-1s has elapsed since the last recorded point. The
// spacing guard serializes overlapping triggers; it is the sole
// backpressure mechanism here.
func (r *Recorder) Record(now time.Time) (model.PnlDataPoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastRecorded.IsZero() && now.Sub(r.lastRecorded) < r.interval-time.Second {
		return model.PnlDataPoint{}, false
	}

	open, cache := r.book.RefreshAndSnapshot(r.feed.Prices(), r.feed.FundingRates())
	if len(open) == 0 {
		return model.PnlDataPoint{}, false
	}

	long, short, net := portfolio.Exposure(open)
	_, summary := portfolio.Summarize(open, func(id string) (model.PositionPnl, bool) {
		v, ok := cache[id]
		return v, ok
	})

	point := model.PnlDataPoint{
		Timestamp:     now.UnixMilli(),
		TimeLabel:     now.Format("15:04:05"),
		UnrealizedPnl: summary.TotalUnrealizedPnl,
		FundingPnl:    summary.TotalFundingPnl,
		NetPnl:        summary.TotalPnl,
		LongExposure:  long,
		ShortExposure: short,
		NetPosition:   net,
		PositionCount: summary.OpenPositionCount,
	}
	r.series.Append(point)
	r.lastRecorded = now

	if r.events != nil {
		p := point
		r.events.Publish(bus.Event{Type: bus.EventPointRecorded, Point: &p})
	}
	if r.OnRecorded != nil {
		r.OnRecorded(point)
	}
	return point, true
}

// Run records on the configured interval until ctx is cancelled. A failed
// pass is logged and never aborts subsequent ticks.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.safeRecord()
		}
	}
}

// RunPruner prunes aged points on its own schedule until ctx is cancelled.
// It operates only on the series, never on positions or cache.
func (r *Recorder) RunPruner(ctx context.Context) {
	ticker := time.NewTicker(r.pruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := r.series.PruneOlderThan(time.Now().Add(-r.retention))
			if removed > 0 {
				log.Printf("[history] pruned %d points older than %v", removed, r.retention)
			}
			if r.OnPruned != nil {
				r.OnPruned(removed)
			}
		}
	}
}

// safeRecord isolates one pass so a programming error in a single tick
// cannot kill the recording loop.
func (r *Recorder) safeRecord() {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[history] recording pass panicked: %v", rec)
		}
	}()
	if _, ok := r.Record(time.Now().UTC()); ok {
		log.Printf("[history] recorded pnl point (%d total)", r.series.Len())
	} else if r.OnSkipped != nil {
		r.OnSkipped()
	}
}
