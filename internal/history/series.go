// Package history records portfolio PNL samples into an append-only,
// prunable time series and serves chart-ready slices of it.
package history

import (
	"math"
	"sync"
	"time"

	"arbdesk/internal/model"
)

// Range selects the chart lookback window.
type Range string

const (
	Range1h  Range = "1h"
	Range4h  Range = "4h"
	Range24h Range = "24h"
	Range7d  Range = "7d"
	RangeAll Range = "all"
)

// maxChartPoints caps the number of points returned to chart consumers.
const maxChartPoints = 100

// Series is the append-only portfolio PNL time series. Appends and prunes
// never touch positions or cache; the series is exclusively owned here.
type Series struct {
	mu     sync.RWMutex
	points []model.PnlDataPoint
}

// NewSeries creates an empty series.
func NewSeries() *Series {
	return &Series{points: make([]model.PnlDataPoint, 0, 512)}
}

// Append adds one data point. Points arrive in insertion order, so
// timestamps are non-decreasing by construction.
func (s *Series) Append(p model.PnlDataPoint) {
	s.mu.Lock()
	s.points = append(s.points, p)
	s.mu.Unlock()
}

// Points returns a copy of the full series.
func (s *Series) Points() []model.PnlDataPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.PnlDataPoint, len(s.points))
	copy(cp, s.points)
	return cp
}

// Len returns the number of stored points.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Last returns the most recent point, if any.
func (s *Series) Last() (model.PnlDataPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.points) == 0 {
		return model.PnlDataPoint{}, false
	}
	return s.points[len(s.points)-1], true
}

// Restore replaces the series contents from a persisted snapshot.
func (s *Series) Restore(points []model.PnlDataPoint) {
	s.mu.Lock()
	s.points = make([]model.PnlDataPoint, len(points))
	copy(s.points, points)
	s.mu.Unlock()
}

// PruneOlderThan removes points strictly older than cutoff and returns how
// many were removed. Points at or after the cutoff are never touched.
func (s *Series) PruneOlderThan(cutoff time.Time) int {
	cutoffMs := cutoff.UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()

	keepFrom := 0
	for keepFrom < len(s.points) && s.points[keepFrom].Timestamp < cutoffMs {
		keepFrom++
	}
	if keepFrom == 0 {
		return 0
	}
	kept := make([]model.PnlDataPoint, len(s.points)-keepFrom)
	copy(kept, s.points[keepFrom:])
	s.points = kept
	return keepFrom
}

// ChartData returns the points within the requested lookback window,
// downsampled by fixed stride to at most 100 points. The most recent point
// is always included even if the stride would skip it.
func (s *Series) ChartData(r Range, now time.Time) []model.PnlDataPoint {
	window, bounded := lookback(r)

	s.mu.RLock()
	var filtered []model.PnlDataPoint
	if !bounded {
		filtered = make([]model.PnlDataPoint, len(s.points))
		copy(filtered, s.points)
	} else {
		cutoffMs := now.Add(-window).UnixMilli()
		for _, p := range s.points {
			if p.Timestamp >= cutoffMs {
				filtered = append(filtered, p)
			}
		}
	}
	s.mu.RUnlock()

	return downsample(filtered, maxChartPoints)
}

// lookback maps a Range to its window. Unknown ranges fall back to 24h.
func lookback(r Range) (time.Duration, bool) {
	switch r {
	case Range1h:
		return time.Hour, true
	case Range4h:
		return 4 * time.Hour, true
	case Range24h:
		return 24 * time.Hour, true
	case Range7d:
		return 7 * 24 * time.Hour, true
	case RangeAll:
		return 0, false
	default:
		return 24 * time.Hour, true
	}
}

// downsample keeps every stride-th point (stride = ceil(n/max)) and forces
// inclusion of the final point.
func downsample(points []model.PnlDataPoint, max int) []model.PnlDataPoint {
	n := len(points)
	if n <= max {
		return points
	}
	stride := int(math.Ceil(float64(n) / float64(max)))
	out := make([]model.PnlDataPoint, 0, max)
	for i := 0; i < n; i += stride {
		out = append(out, points[i])
	}
	if out[len(out)-1].Timestamp != points[n-1].Timestamp {
		if len(out) < max {
			out = append(out, points[n-1])
		} else {
			out[len(out)-1] = points[n-1]
		}
	}
	return out
}
