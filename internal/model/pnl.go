package model

import "time"

// PositionPnl is a cached mark-to-market valuation of one open position.
// Always reconstructible from the position plus current market inputs;
// never persisted on its own.
type PositionPnl struct {
	PositionID           string  `json:"position_id"`
	UnrealizedPnl        float64 `json:"unrealized_pnl"` // USD
	UnrealizedPnlPercent float64 `json:"unrealized_pnl_percent"`
	FundingPnl           float64 `json:"funding_pnl"` // USD
	FundingPnlPercent    float64 `json:"funding_pnl_percent"`
	TotalPnl             float64 `json:"total_pnl"`
	TotalPnlPercent      float64 `json:"total_pnl_percent"`
	CurrentValue         float64 `json:"current_value"` // USD
	TimeHeldMs           int64   `json:"time_held_ms"`
}

// PnlDataPoint is one immutable sample in the portfolio history series.
type PnlDataPoint struct {
	Timestamp     int64   `json:"timestamp"` // unix millis, assigned at insert
	TimeLabel     string  `json:"time_label"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	FundingPnl    float64 `json:"funding_pnl"`
	NetPnl        float64 `json:"net_pnl"`
	LongExposure  float64 `json:"long_exposure"`
	ShortExposure float64 `json:"short_exposure"`
	NetPosition   float64 `json:"net_position"` // long - short
	PositionCount int     `json:"position_count"`
}

// Time returns the sample timestamp as a time.Time.
func (p *PnlDataPoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}
