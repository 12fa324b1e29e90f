// Package pnl values multi-leg, multi-exchange, leveraged positions against
// current prices and funding rates.
//
// Unrealized PNL is computed on the unleveraged quantity: quantity already
// represents the held position size regardless of margin used. Funding PNL
// accrues continuously on the leveraged notional, modeled as 3 settlements
// per day (8h periods) with fractional periods, longs paying positive rates
// and shorts receiving them.
package pnl

import (
	"time"

	"arbdesk/internal/model"
)

const (
	// FundingPeriodHours is the modeled settlement interval, uniform across
	// exchanges regardless of their actual interval.
	FundingPeriodHours = 8.0

	// periodsPerYear converts an APR percentage to a per-period rate:
	// 3 settlements/day * 365 days.
	periodsPerYear = 365.0 * 3.0
)

// Calculate values one position against current market inputs.
// Returns ok=false when the position is not open or no current price exists
// for its token — a position is never valued against a stale or zero price.
// Missing funding rates contribute zero for that leg. Never panics.
func Calculate(p *model.Position, prices model.PriceMap, rates model.FundingRateMap, now time.Time) (model.PositionPnl, bool) {
	if p == nil || !p.IsOpen() {
		return model.PositionPnl{}, false
	}
	currentPrice, ok := prices[p.Token]
	if !ok {
		return model.PositionPnl{}, false
	}

	var unrealized, funding, currentValue float64
	hoursHeld := now.Sub(p.OpenedAt).Hours()

	for i := range p.Legs {
		leg := &p.Legs[i]
		currentValue += leg.Quantity * currentPrice

		if leg.Side == model.SideLong {
			unrealized += (currentPrice - leg.EntryPrice) * leg.Quantity
		} else {
			unrealized += (leg.EntryPrice - currentPrice) * leg.Quantity
		}

		rate, has := rates.Rate(p.Token, leg.Exchange)
		if !has {
			continue
		}
		ratePerPeriod := (rate / 100.0) / periodsPerYear
		periodsElapsed := hoursHeld / FundingPeriodHours
		multiplier := -1.0 // longs pay positive funding
		if leg.Side == model.SideShort {
			multiplier = 1.0
		}
		funding += ratePerPeriod * leg.LeveragedNotional() * periodsElapsed * multiplier
	}

	total := unrealized + funding
	result := model.PositionPnl{
		PositionID:    p.ID,
		UnrealizedPnl: unrealized,
		FundingPnl:    funding,
		TotalPnl:      total,
		CurrentValue:  currentValue,
		TimeHeldMs:    now.Sub(p.OpenedAt).Milliseconds(),
	}
	// Percentages are relative to capital committed at creation, not live
	// notional. A degenerate notional yields 0%, never NaN/Inf.
	if p.NotionalValue > 0 {
		result.UnrealizedPnlPercent = unrealized / p.NotionalValue * 100.0
		result.FundingPnlPercent = funding / p.NotionalValue * 100.0
		result.TotalPnlPercent = total / p.NotionalValue * 100.0
	}
	return result, true
}
