package model

// PriceMap maps token symbol -> current USD price.
type PriceMap map[string]float64

// FundingRateMap maps token symbol -> exchange name -> funding rate as
// annualized percentage (APR). A nil entry means no rate is available for
// that exchange; that is data absence, not an error.
type FundingRateMap map[string]map[string]*float64

// Rate returns the funding rate for (token, exchange) and whether one exists.
func (m FundingRateMap) Rate(token, exchange string) (float64, bool) {
	byExchange, ok := m[token]
	if !ok {
		return 0, false
	}
	r, ok := byExchange[exchange]
	if !ok || r == nil {
		return 0, false
	}
	return *r, true
}
