// Package feed holds the latest known market inputs: current prices and
// funding rates per token/exchange. External collaborators push updates in;
// the ledger and recorder read snapshots out synchronously.
package feed

import (
	"sync"

	"arbdesk/internal/model"
)

// Feed is a latest-value cache of market inputs.
type Feed struct {
	mu     sync.RWMutex
	prices model.PriceMap
	rates  model.FundingRateMap
}

// New creates an empty Feed.
func New() *Feed {
	return &Feed{
		prices: make(model.PriceMap),
		rates:  make(model.FundingRateMap),
	}
}

// SetPrice records the current USD price for a token.
func (f *Feed) SetPrice(token string, price float64) {
	f.mu.Lock()
	f.prices[token] = price
	f.mu.Unlock()
}

// SetFundingRate records the current APR funding rate for (token, exchange).
// A nil rate records explicit absence.
func (f *Feed) SetFundingRate(token, exchange string, rate *float64) {
	f.mu.Lock()
	if f.rates[token] == nil {
		f.rates[token] = make(map[string]*float64)
	}
	f.rates[token][exchange] = rate
	f.mu.Unlock()
}

// Prices returns a snapshot of current prices.
func (f *Feed) Prices() model.PriceMap {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cp := make(model.PriceMap, len(f.prices))
	for k, v := range f.prices {
		cp[k] = v
	}
	return cp
}

// FundingRates returns a snapshot of current funding rates.
func (f *Feed) FundingRates() model.FundingRateMap {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cp := make(model.FundingRateMap, len(f.rates))
	for token, byExchange := range f.rates {
		inner := make(map[string]*float64, len(byExchange))
		for ex, r := range byExchange {
			if r == nil {
				inner[ex] = nil
				continue
			}
			v := *r
			inner[ex] = &v
		}
		cp[token] = inner
	}
	return cp
}
