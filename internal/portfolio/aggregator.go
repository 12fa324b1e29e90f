// Package portfolio derives portfolio-level totals and exposures from the
// open-position set and the PNL cache.
//
// Everything here is a pure derivation: safe to recompute on every state
// change, no side effects, no feedback into the ledger.
package portfolio

import "arbdesk/internal/model"

// Entry pairs an open position with its cached valuation, if one exists.
type Entry struct {
	Position model.Position     `json:"position"`
	Pnl      *model.PositionPnl `json:"pnl,omitempty"` // nil when not cached
}

// Summary holds portfolio-level totals over the open-position set.
// Monetary totals sum only positions that have a cache entry; an uncached
// position contributes zero but still counts in OpenPositionCount.
type Summary struct {
	TotalPnl                  float64 `json:"total_pnl"`
	TotalFundingPnl           float64 `json:"total_funding_pnl"`
	TotalUnrealizedPnl        float64 `json:"total_unrealized_pnl"`
	TotalNotional             float64 `json:"total_notional"` // cached positions only
	TotalPnlPercent           float64 `json:"total_pnl_percent"`
	TotalFundingPnlPercent    float64 `json:"total_funding_pnl_percent"`
	TotalUnrealizedPnlPercent float64 `json:"total_unrealized_pnl_percent"`
	OpenPositionCount         int     `json:"open_position_count"`
}

// Summarize derives entries and totals from open positions and a cache
// lookup. Percent fields are 0 when total notional is 0.
func Summarize(open []model.Position, cached func(id string) (model.PositionPnl, bool)) ([]Entry, Summary) {
	entries := make([]Entry, 0, len(open))
	var s Summary
	s.OpenPositionCount = len(open)

	for i := range open {
		e := Entry{Position: open[i]}
		if v, ok := cached(open[i].ID); ok {
			p := v
			e.Pnl = &p
			s.TotalPnl += v.TotalPnl
			s.TotalFundingPnl += v.FundingPnl
			s.TotalUnrealizedPnl += v.UnrealizedPnl
			s.TotalNotional += open[i].NotionalValue
		}
		entries = append(entries, e)
	}

	if s.TotalNotional > 0 {
		s.TotalPnlPercent = s.TotalPnl / s.TotalNotional * 100.0
		s.TotalFundingPnlPercent = s.TotalFundingPnl / s.TotalNotional * 100.0
		s.TotalUnrealizedPnlPercent = s.TotalUnrealizedPnl / s.TotalNotional * 100.0
	}
	return entries, s
}

// Exposure accumulates per-leg entry notional (quantity * entry price) into
// long and short exposure. Entry price, not current price: exposure is a
// capital-at-risk figure fixed at entry.
func Exposure(open []model.Position) (long, short, net float64) {
	for i := range open {
		for j := range open[i].Legs {
			leg := &open[i].Legs[j]
			if leg.Side == model.SideLong {
				long += leg.BaseNotional()
			} else {
				short += leg.BaseNotional()
			}
		}
	}
	return long, short, long - short
}
