package model

import "time"

// Side is the direction of a single position leg.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// PositionStatus tracks whether a position is open or closed.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// PositionLeg is one exchange-side of a position. Immutable once created.
type PositionLeg struct {
	ID               string    `json:"id"`
	Exchange         string    `json:"exchange"`
	Side             Side      `json:"side"`
	Quantity         float64   `json:"quantity"` // base units, unleveraged
	Leverage         float64   `json:"leverage"` // multiplier, >= 1
	EntryPrice       float64   `json:"entry_price"`
	EntryFundingRate float64   `json:"entry_funding_rate"` // APR %, informational only
	EntryTime        time.Time `json:"entry_time"`
}

// BaseNotional returns quantity * entry price in USD.
func (l *PositionLeg) BaseNotional() float64 {
	return l.Quantity * l.EntryPrice
}

// LeveragedNotional returns the funding-exposed notional in USD.
func (l *PositionLeg) LeveragedNotional() float64 {
	return l.BaseNotional() * l.Leverage
}

// Position is one logical trade, possibly spanning multiple exchanges.
// Legs are ordered and immutable; a closed position is immutable except
// for the closing transition itself.
type Position struct {
	ID            string         `json:"id"`
	Token         string         `json:"token"`
	Legs          []PositionLeg  `json:"legs"`
	NotionalValue float64        `json:"notional_value"` // USD, fixed at creation
	Status        PositionStatus `json:"status"`
	OpenedAt      time.Time      `json:"opened_at"`
	ClosedAt      *time.Time     `json:"closed_at,omitempty"` // nil while open
	Notes         string         `json:"notes,omitempty"`
}

// IsOpen reports whether the position is still open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}
