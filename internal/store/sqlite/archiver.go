// Package sqlite archives recorded PNL data points off the hot path, with
// batched transactional inserts and age-based pruning. The archive also
// serves as the history restore source when Redis is cold.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"arbdesk/internal/model"
)

const (
	defaultBatchSize  = 50
	defaultFlushDelay = 500 * time.Millisecond
)

// ArchiverConfig configures the SQLite archiver.
type ArchiverConfig struct {
	DBPath string // e.g. "data/arbdesk.db"
}

// Archiver is a single-writer SQLite store for PNL data points.
type Archiver struct {
	db *sql.DB

	// OnCommit observes batch commit latency, when set.
	OnCommit func(time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (a *Archiver) DB() *sql.DB { return a.db }

// New opens the database in WAL mode and ensures the schema.
func New(cfg ArchiverConfig) (*Archiver, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Archiver{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pnl_points (
			ts             INTEGER PRIMARY KEY,
			time_label     TEXT    NOT NULL,
			unrealized_pnl REAL    NOT NULL,
			funding_pnl    REAL    NOT NULL,
			net_pnl        REAL    NOT NULL,
			long_exposure  REAL    NOT NULL,
			short_exposure REAL    NOT NULL,
			net_position   REAL    NOT NULL,
			position_count INTEGER NOT NULL
		);
	`)
	return err
}

// Run reads data points from pointCh and inserts them in batched
// transactions. Flushes every batchSize points or every flushDelay,
// whichever comes first. Blocks until ctx is cancelled or pointCh closes.
func (a *Archiver) Run(ctx context.Context, pointCh <-chan model.PnlDataPoint) {
	batch := make([]model.PnlDataPoint, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := a.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case p, ok := <-pointCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, p)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (a *Archiver) insertBatch(points []model.PnlDataPoint) error {
	start := time.Now()
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO pnl_points
			(ts, time_label, unrealized_pnl, funding_pnl, net_pnl, long_exposure, short_exposure, net_position, position_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		_, err := stmt.Exec(p.Timestamp, p.TimeLabel, p.UnrealizedPnl, p.FundingPnl,
			p.NetPnl, p.LongExposure, p.ShortExposure, p.NetPosition, p.PositionCount)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if a.OnCommit != nil {
		a.OnCommit(time.Since(start))
	}
	return nil
}

// LoadSince returns archived points at or after cutoff in timestamp order.
func (a *Archiver) LoadSince(cutoff time.Time) ([]model.PnlDataPoint, error) {
	rows, err := a.db.Query(`
		SELECT ts, time_label, unrealized_pnl, funding_pnl, net_pnl, long_exposure, short_exposure, net_position, position_count
		FROM pnl_points WHERE ts >= ? ORDER BY ts ASC
	`, cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("sqlite query pnl_points: %w", err)
	}
	defer rows.Close()

	var points []model.PnlDataPoint
	for rows.Next() {
		var p model.PnlDataPoint
		if err := rows.Scan(&p.Timestamp, &p.TimeLabel, &p.UnrealizedPnl, &p.FundingPnl,
			&p.NetPnl, &p.LongExposure, &p.ShortExposure, &p.NetPosition, &p.PositionCount); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// PruneBefore deletes points older than cutoff and returns the count removed.
func (a *Archiver) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := a.db.Exec(`DELETE FROM pnl_points WHERE ts < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (a *Archiver) Close() error {
	return a.db.Close()
}
