package feed

import "testing"

func TestFeed_SnapshotsAreCopies(t *testing.T) {
	f := New()
	rate := 12.5
	f.SetPrice("BTC", 50000)
	f.SetFundingRate("BTC", "X", &rate)

	prices := f.Prices()
	rates := f.FundingRates()
	prices["BTC"] = 1
	*rates["BTC"]["X"] = 99

	if f.Prices()["BTC"] != 50000 {
		t.Error("price snapshot must not alias internal state")
	}
	if *f.FundingRates()["BTC"]["X"] != 12.5 {
		t.Error("rate snapshot must not alias internal state")
	}
}

func TestFeed_NilRateMeansAbsent(t *testing.T) {
	f := New()
	f.SetFundingRate("BTC", "X", nil)

	if _, ok := f.FundingRates().Rate("BTC", "X"); ok {
		t.Error("nil rate must read as absent")
	}
	if _, ok := f.FundingRates().Rate("BTC", "unknown"); ok {
		t.Error("unknown exchange must read as absent")
	}
}

func TestSimulator_SeedsAllPairs(t *testing.T) {
	f := New()
	NewSimulator(f, SimConfig{
		Tokens:    []string{"BTC", "ETH"},
		Exchanges: []string{"a", "b"},
		Seed:      42,
	})

	prices := f.Prices()
	rates := f.FundingRates()
	for _, tok := range []string{"BTC", "ETH"} {
		if prices[tok] <= 0 {
			t.Errorf("token %s: no seeded price", tok)
		}
		for _, ex := range []string{"a", "b"} {
			if _, ok := rates.Rate(tok, ex); !ok {
				t.Errorf("(%s, %s): no seeded funding rate", tok, ex)
			}
		}
	}
}
