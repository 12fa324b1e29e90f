package history

import (
	"testing"
	"time"

	"arbdesk/internal/model"
)

func pointAt(ts time.Time) model.PnlDataPoint {
	return model.PnlDataPoint{
		Timestamp: ts.UnixMilli(),
		TimeLabel: ts.Format("15:04:05"),
		NetPnl:    float64(ts.UnixMilli() % 1000),
	}
}

func fillSeries(s *Series, n int, start time.Time, step time.Duration) {
	for i := 0; i < n; i++ {
		s.Append(pointAt(start.Add(time.Duration(i) * step)))
	}
}

func TestSeries_AppendMonotonic(t *testing.T) {
	s := NewSeries()
	start := time.Now().UTC().Add(-time.Hour)
	fillSeries(s, 50, start, 30*time.Second)

	points := s.Points()
	if len(points) != 50 {
		t.Fatalf("expected 50 points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].Timestamp < points[i-1].Timestamp {
			t.Fatalf("timestamps decreased at %d: %d < %d", i, points[i].Timestamp, points[i-1].Timestamp)
		}
	}
}

func TestSeries_PruneOlderThan(t *testing.T) {
	s := NewSeries()
	now := time.Now().UTC()
	fillSeries(s, 10, now.Add(-10*time.Hour), time.Hour) // t-10h .. t-1h

	cutoff := now.Add(-5 * time.Hour)
	removed := s.PruneOlderThan(cutoff)
	if removed != 5 {
		t.Errorf("expected 5 removed, got %d", removed)
	}
	for _, p := range s.Points() {
		if p.Timestamp < cutoff.UnixMilli() {
			t.Errorf("point older than cutoff survived: %d", p.Timestamp)
		}
	}

	// A second prune with the same cutoff removes nothing.
	if removed := s.PruneOlderThan(cutoff); removed != 0 {
		t.Errorf("expected idempotent prune, removed %d", removed)
	}
}

func TestSeries_ChartData_RangeFilter(t *testing.T) {
	s := NewSeries()
	now := time.Now().UTC()
	fillSeries(s, 48, now.Add(-48*time.Hour), time.Hour) // hourly, 2 days

	got := s.ChartData(Range4h, now)
	if len(got) == 0 || len(got) > 5 {
		t.Fatalf("4h window over hourly points: expected ~4 points, got %d", len(got))
	}
	cutoff := now.Add(-4 * time.Hour).UnixMilli()
	for _, p := range got {
		if p.Timestamp < cutoff {
			t.Errorf("point outside 4h window: %d", p.Timestamp)
		}
	}

	if all := s.ChartData(RangeAll, now); len(all) != 48 {
		t.Errorf("all range: expected 48 points, got %d", len(all))
	}
}

func TestSeries_ChartData_DownsampleBound(t *testing.T) {
	s := NewSeries()
	now := time.Now().UTC()
	fillSeries(s, 937, now.Add(-6*24*time.Hour), time.Minute)

	got := s.ChartData(Range7d, now)
	if len(got) > 100 {
		t.Fatalf("downsample bound violated: %d points", len(got))
	}
	last, _ := s.Last()
	if got[len(got)-1].Timestamp != last.Timestamp {
		t.Error("most recent point must always be included")
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp <= got[i-1].Timestamp {
			t.Fatal("downsampled points must stay ordered")
		}
	}
}

func TestSeries_ChartData_DownsampleBoundWhenStrideFills(t *testing.T) {
	// n=200 gives stride 2 and exactly 100 sampled points, none of which is
	// the final point. Forcing the last point must replace the tail sample,
	// not grow the slice past the cap.
	cases := []int{101, 199, 200, 300, 1000}
	for _, n := range cases {
		s := NewSeries()
		now := time.Now().UTC()
		fillSeries(s, n, now.Add(-time.Duration(n)*time.Second), time.Second)

		got := s.ChartData(RangeAll, now)
		if len(got) > 100 {
			t.Errorf("n=%d: downsample bound violated, got %d points", n, len(got))
		}
		last, _ := s.Last()
		if got[len(got)-1].Timestamp != last.Timestamp {
			t.Errorf("n=%d: most recent point missing from chart", n)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Timestamp <= got[i-1].Timestamp {
				t.Fatalf("n=%d: downsampled points out of order at %d", n, i)
			}
		}
	}
}

func TestSeries_ChartData_UnknownRangeDefaults(t *testing.T) {
	s := NewSeries()
	now := time.Now().UTC()
	fillSeries(s, 72, now.Add(-72*time.Hour), time.Hour)

	got := s.ChartData(Range("bogus"), now)
	cutoff := now.Add(-24 * time.Hour).UnixMilli()
	for _, p := range got {
		if p.Timestamp < cutoff {
			t.Errorf("unknown range should fall back to 24h, saw point at %d", p.Timestamp)
		}
	}
}

func TestSeries_Restore(t *testing.T) {
	s := NewSeries()
	now := time.Now().UTC()
	persisted := []model.PnlDataPoint{pointAt(now.Add(-time.Minute)), pointAt(now)}

	s.Restore(persisted)
	if s.Len() != 2 {
		t.Fatalf("expected 2 points after restore, got %d", s.Len())
	}
	last, ok := s.Last()
	if !ok || last.Timestamp != now.UnixMilli() {
		t.Errorf("last point wrong after restore: %+v", last)
	}
}
