// Package ledger owns the authoritative position set and the per-position
// PNL cache. All state lives behind one RWMutex; the cache is rebuilt as a
// single atomic replace so readers never observe a partially-refreshed view.
package ledger

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbdesk/internal/bus"
	"arbdesk/internal/model"
	"arbdesk/internal/pnl"
)

// Draft holds the caller-supplied fields for a new position. The book
// assigns id, timestamps, and status. Leg consistency is not validated
// (e.g. two long legs on the same exchange are accepted); known gap.
type Draft struct {
	Token         string              `json:"token"`
	Legs          []model.PositionLeg `json:"legs"`
	NotionalValue float64             `json:"notional_value"`
	Notes         string              `json:"notes,omitempty"`
}

// Book is the position ledger plus its PNL cache.
type Book struct {
	mu        sync.RWMutex
	positions map[string]*model.Position
	order     []string // insertion order for stable listings
	cache     map[string]model.PositionPnl

	events *bus.FanOut // optional; nil disables notifications
}

// New creates an empty Book. The bus may be nil.
func New(events *bus.FanOut) *Book {
	return &Book{
		positions: make(map[string]*model.Position),
		cache:     make(map[string]model.PositionPnl),
		events:    events,
	}
}

// newID builds a process-lifetime-unique position id: millis + random suffix.
func newID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()[:8]
}

// AddPosition appends a new open position and returns its id.
func (b *Book) AddPosition(d Draft) string {
	now := time.Now().UTC()
	id := newID(now)

	legs := make([]model.PositionLeg, len(d.Legs))
	copy(legs, d.Legs)

	p := &model.Position{
		ID:            id,
		Token:         d.Token,
		Legs:          legs,
		NotionalValue: d.NotionalValue,
		Status:        model.StatusOpen,
		OpenedAt:      now,
		Notes:         d.Notes,
	}

	b.mu.Lock()
	b.positions[id] = p
	b.order = append(b.order, id)
	b.mu.Unlock()

	b.publish(bus.Event{Type: bus.EventPositionOpened, PositionID: id})
	return id
}

// ClosePosition marks a position closed. No-op if the id is unknown or the
// position is already closed. The cached PNL entry survives until the next
// refresh drops it.
func (b *Book) ClosePosition(id string) bool {
	b.mu.Lock()
	p, ok := b.positions[id]
	if !ok || !p.IsOpen() {
		b.mu.Unlock()
		return false
	}
	now := time.Now().UTC()
	p.Status = model.StatusClosed
	p.ClosedAt = &now
	b.mu.Unlock()

	b.publish(bus.Event{Type: bus.EventPositionClosed, PositionID: id})
	return true
}

// Position returns a copy of the position with the given id.
func (b *Book) Position(id string) (model.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[id]
	if !ok {
		return model.Position{}, false
	}
	return *p, true
}

// OpenPositions returns copies of all open positions in insertion order.
func (b *Book) OpenPositions() []model.Position {
	return b.filter(func(p *model.Position) bool { return p.IsOpen() })
}

// ClosedPositions returns copies of all closed positions in insertion order.
func (b *Book) ClosedPositions() []model.Position {
	return b.filter(func(p *model.Position) bool { return !p.IsOpen() })
}

// TokenPositions returns copies of all positions for a token, open or closed.
func (b *Book) TokenPositions(token string) []model.Position {
	return b.filter(func(p *model.Position) bool { return p.Token == token })
}

// filter evaluates fresh on every call; position counts are small enough
// that no incremental index is kept.
func (b *Book) filter(keep func(*model.Position) bool) []model.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make([]model.Position, 0, len(b.order))
	for _, id := range b.order {
		if p := b.positions[id]; p != nil && keep(p) {
			result = append(result, *p)
		}
	}
	return result
}

// Clear wipes the position set and the cache. Reserved for reset flows.
func (b *Book) Clear() {
	b.mu.Lock()
	b.positions = make(map[string]*model.Position)
	b.order = nil
	b.cache = make(map[string]model.PositionPnl)
	b.mu.Unlock()

	b.publish(bus.Event{Type: bus.EventBookCleared})
}

// RefreshPnl rebuilds the PNL cache from scratch against the supplied market
// inputs. Open positions without a current price get no entry; entries for
// closed positions are dropped. Full replace, never an incremental merge.
func (b *Book) RefreshPnl(prices model.PriceMap, rates model.FundingRateMap) {
	b.RefreshAndSnapshot(prices, rates)
}

// RefreshAndSnapshot rebuilds the cache and returns copies of the open
// positions together with the fresh cache, all read at one consistent
// instant under the write lock. The recorder uses this to compute exposures
// and PNL totals without interleaved mutation.
func (b *Book) RefreshAndSnapshot(prices model.PriceMap, rates model.FundingRateMap) ([]model.Position, map[string]model.PositionPnl) {
	now := time.Now().UTC()

	b.mu.Lock()
	fresh := make(map[string]model.PositionPnl, len(b.cache))
	open := make([]model.Position, 0, len(b.order))
	for _, id := range b.order {
		p := b.positions[id]
		if p == nil || !p.IsOpen() {
			continue
		}
		open = append(open, *p)
		if result, ok := pnl.Calculate(p, prices, rates, now); ok {
			fresh[id] = result
		}
	}
	b.cache = fresh
	b.mu.Unlock()

	b.publish(bus.Event{Type: bus.EventCacheRefreshed})

	cp := make(map[string]model.PositionPnl, len(fresh))
	for id, v := range fresh {
		cp[id] = v
	}
	return open, cp
}

// CachedPnl returns the cached valuation for a position. Pure lookup; never
// triggers a recompute.
func (b *Book) CachedPnl(id string) (model.PositionPnl, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.cache[id]
	return v, ok
}

// Snapshot returns copies of all positions (open and closed) in insertion
// order, for persistence.
func (b *Book) Snapshot() []model.Position {
	return b.filter(func(*model.Position) bool { return true })
}

// Restore replaces the position set from a persisted snapshot. The cache
// starts empty and fills on the next refresh.
func (b *Book) Restore(positions []model.Position) {
	b.mu.Lock()
	b.positions = make(map[string]*model.Position, len(positions))
	b.order = make([]string, 0, len(positions))
	b.cache = make(map[string]model.PositionPnl)
	for i := range positions {
		p := positions[i]
		b.positions[p.ID] = &p
		b.order = append(b.order, p.ID)
	}
	b.mu.Unlock()
}

func (b *Book) publish(ev bus.Event) {
	if b.events != nil {
		b.events.Publish(ev)
	}
}
