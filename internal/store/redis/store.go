// Package redis persists the position set and the PNL history series as
// versioned JSON documents under distinct namespace keys, and publishes
// recorded data points for live consumers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"arbdesk/internal/model"
)

const (
	// SchemaVersion tags persisted documents for forward-compatible migration.
	SchemaVersion = 1

	keyPositions = "arbdesk:positions"
	keyHistory   = "arbdesk:pnl_history"

	// PointChannel carries each recorded data point via PubSub.
	PointChannel = "pub:pnl:point"
)

// Config configures the Redis store.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Store reads and writes the durable state documents.
type Store struct {
	client *goredis.Client

	// OnWriteDur observes document write latency, when set.
	OnWriteDur func(time.Duration)
}

// positionsDoc is the persisted shape of the position set.
type positionsDoc struct {
	Version   int              `json:"version"`
	SavedAt   time.Time        `json:"saved_at"`
	Positions []model.Position `json:"positions"`
}

// historyDoc is the persisted shape of the PNL history series.
type historyDoc struct {
	Version int                  `json:"version"`
	SavedAt time.Time            `json:"saved_at"`
	Points  []model.PnlDataPoint `json:"points"`
}

// New creates a Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{client: client}, nil
}

// Client returns the underlying client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// SaveBook persists the full position set.
func (s *Store) SaveBook(ctx context.Context, positions []model.Position) error {
	doc := positionsDoc{Version: SchemaVersion, SavedAt: time.Now().UTC(), Positions: positions}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}
	start := time.Now()
	if err := s.client.Set(ctx, keyPositions, data, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", keyPositions, err)
	}
	if s.OnWriteDur != nil {
		s.OnWriteDur(time.Since(start))
	}
	return nil
}

// LoadBook reads the persisted position set. Returns (nil, nil) when no
// document exists.
func (s *Store) LoadBook(ctx context.Context) ([]model.Position, error) {
	data, err := s.client.Get(ctx, keyPositions).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", keyPositions, err)
	}
	var doc positionsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal positions: %w", err)
	}
	if doc.Version != SchemaVersion {
		return nil, fmt.Errorf("positions schema version %d, want %d", doc.Version, SchemaVersion)
	}
	return doc.Positions, nil
}

// SaveHistory persists the full PNL history series.
func (s *Store) SaveHistory(ctx context.Context, points []model.PnlDataPoint) error {
	doc := historyDoc{Version: SchemaVersion, SavedAt: time.Now().UTC(), Points: points}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	start := time.Now()
	if err := s.client.Set(ctx, keyHistory, data, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", keyHistory, err)
	}
	if s.OnWriteDur != nil {
		s.OnWriteDur(time.Since(start))
	}
	return nil
}

// LoadHistory reads the persisted series. Returns (nil, nil) when no
// document exists.
func (s *Store) LoadHistory(ctx context.Context) ([]model.PnlDataPoint, error) {
	data, err := s.client.Get(ctx, keyHistory).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", keyHistory, err)
	}
	var doc historyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	if doc.Version != SchemaVersion {
		return nil, fmt.Errorf("history schema version %d, want %d", doc.Version, SchemaVersion)
	}
	return doc.Points, nil
}

// PublishPoint pushes one recorded data point to live subscribers.
func (s *Store) PublishPoint(ctx context.Context, p model.PnlDataPoint) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal point: %w", err)
	}
	return s.client.Publish(ctx, PointChannel, data).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
