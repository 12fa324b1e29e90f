package feed

import (
	"context"
	"log"
	"math/rand"
	"time"
)

// SimConfig configures the random-walk simulator used in SIM_MODE, where the
// service runs without real exchange connectivity.
type SimConfig struct {
	Tokens    []string // token symbols to simulate
	Exchanges []string // exchange names carrying funding rates
	Tick      time.Duration
	Seed      int64
}

// Simulator drives a Feed with random-walk prices and funding rates.
type Simulator struct {
	feed *Feed
	cfg  SimConfig
	rng  *rand.Rand

	prices map[string]float64
	rates  map[string]map[string]float64
}

// NewSimulator seeds initial prices per token and APR rates per exchange.
func NewSimulator(f *Feed, cfg SimConfig) *Simulator {
	if cfg.Tick <= 0 {
		cfg.Tick = 2 * time.Second
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	s := &Simulator{
		feed:   f,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		prices: make(map[string]float64),
		rates:  make(map[string]map[string]float64),
	}
	for _, tok := range cfg.Tokens {
		s.prices[tok] = 100 + s.rng.Float64()*50000
		s.rates[tok] = make(map[string]float64)
		for _, ex := range cfg.Exchanges {
			// APR % roughly in [-15, +25), skewed positive like real perps
			s.rates[tok][ex] = s.rng.Float64()*40 - 15
		}
	}
	s.push()
	return s
}

// Run advances the walk every tick until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	log.Printf("[feed] simulator running: %d tokens, %d exchanges, tick=%v",
		len(s.cfg.Tokens), len(s.cfg.Exchanges), s.cfg.Tick)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.step()
			s.push()
		}
	}
}

func (s *Simulator) step() {
	for tok := range s.prices {
		// +/-0.25% per tick
		s.prices[tok] *= 1 + (s.rng.Float64()-0.5)*0.005
		for ex := range s.rates[tok] {
			s.rates[tok][ex] += (s.rng.Float64() - 0.5) * 0.5
		}
	}
}

func (s *Simulator) push() {
	for tok, price := range s.prices {
		s.feed.SetPrice(tok, price)
		for ex, r := range s.rates[tok] {
			rate := r
			s.feed.SetFundingRate(tok, ex, &rate)
		}
	}
}
