package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"arbdesk/config"
	"arbdesk/internal/bus"
	"arbdesk/internal/feed"
	"arbdesk/internal/gateway"
	"arbdesk/internal/history"
	"arbdesk/internal/ledger"
	"arbdesk/internal/logger"
	"arbdesk/internal/metrics"
	"arbdesk/internal/model"
	redisstore "arbdesk/internal/store/redis"
	sqlitestore "arbdesk/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[arbdesk] starting...")

	cfg := config.Load()
	slogger := logger.Init("arbdesk", logger.ParseLevel(cfg.LogLevel))

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Event bus ----
	events := bus.New(256)
	events.OnDrop = func(subscriberIdx int) {
		prom.BusDropsTotal.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
	}

	// ---- Core state ----
	book := ledger.New(events)
	series := history.NewSeries()

	// ---- SQLite archive (off hot path) ----
	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		log.Fatalf("[arbdesk] create data dir: %v", err)
	}
	archiver, err := sqlitestore.New(sqlitestore.ArchiverConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[arbdesk] sqlite init failed: %v", err)
	}
	defer archiver.Close()
	archiver.OnCommit = func(d time.Duration) {
		prom.SQLiteCommitDur.Observe(d.Seconds())
	}
	health.SetSQLiteOK(true)

	// ---- Redis store ----
	var store *redisstore.Store
	store, err = redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[arbdesk] WARNING: redis init failed: %v (continuing without redis)", err)
		store = nil
		health.SetRedisConnected(false)
	} else {
		store.OnWriteDur = func(d time.Duration) {
			prom.RedisWriteDur.Observe(d.Seconds())
		}
		health.SetRedisConnected(true)
	}

	// ---- Restore durable state ----
	restore(ctx, store, archiver, book, series, cfg.HistoryRetention)

	// ---- Liveness checks ----
	if store != nil {
		health.StartLivenessChecker(ctx, store.Client(), archiver.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, archiver.DB(), 10*time.Second)
	}

	// ---- Market data feed ----
	f := feed.New()
	if cfg.SimMode {
		sim := feed.NewSimulator(f, feed.SimConfig{
			Tokens:    splitCSV(cfg.SimTokens),
			Exchanges: splitCSV(cfg.SimExchanges),
		})
		go sim.Run(ctx)
	} else {
		log.Println("[arbdesk] no market feed configured; prices/rates must be pushed externally (set SIM_MODE=true for demo)")
	}

	// ---- Recorder + pruner ----
	recorder := history.NewRecorder(book, series, f, events, history.RecorderConfig{
		Interval:   cfg.RecordInterval,
		Retention:  cfg.HistoryRetention,
		PruneEvery: cfg.PruneInterval,
	})
	recorder.OnRecorded = func(p model.PnlDataPoint) {
		prom.RecordingsTotal.Inc()
		prom.HistoryPoints.Set(float64(series.Len()))
		prom.OpenPositions.Set(float64(p.PositionCount))
		prom.PortfolioPnl.Set(p.NetPnl)
		prom.NetExposure.Set(p.NetPosition)
		health.SetRecorderOK(true)
		health.SetLastRecordedAt(p.Time())
	}
	recorder.OnSkipped = func() {
		prom.RecordingsSkipped.Inc()
	}
	recorder.OnPruned = func(removed int) {
		prom.PrunedPoints.Add(float64(removed))
		prom.HistoryPoints.Set(float64(series.Len()))
	}
	go recorder.Run(ctx)
	go recorder.RunPruner(ctx)
	health.SetRecorderOK(true)

	// ---- Responsive cache refresh between recordings ----
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				book.RefreshPnl(f.Prices(), f.FundingRates())
				prom.CacheRefreshDur.Observe(time.Since(start).Seconds())
			}
		}
	}()

	// ---- Persistence subscribers ----
	if store != nil {
		go store.Run(ctx, events.Subscribe(), book, series)
	}

	pointCh := make(chan model.PnlDataPoint, 256)
	go func() {
		sub := events.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if ev.Type == bus.EventPointRecorded && ev.Point != nil {
					select {
					case pointCh <- *ev.Point:
					default:
					}
				}
			}
		}
	}()
	go archiver.Run(ctx, pointCh)

	go func() {
		ticker := time.NewTicker(cfg.PruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := archiver.PruneBefore(time.Now().Add(-cfg.HistoryRetention))
				if err != nil {
					log.Printf("[arbdesk] sqlite prune error: %v", err)
				} else if removed > 0 {
					log.Printf("[arbdesk] sqlite pruned %d archived points", removed)
				}
			}
		}
	}()

	// ---- Gateway ----
	hub := gateway.NewHub(book, series)
	hub.OnClientCount = func(n int) {
		prom.WSClientsGauge.Set(float64(n))
	}
	go hub.Run(ctx, events.Subscribe())

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, book, series, cfg.AdminTOTPSecret, time.Now())
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		log.Printf("[arbdesk] http listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[arbdesk] http server error: %v", err)
		}
	}()

	slogger.Info("arbdesk ready",
		slog.String("http", cfg.HTTPAddr),
		slog.String("metrics", cfg.MetricsAddr),
		slog.Duration("record_interval", cfg.RecordInterval),
		slog.Duration("retention", cfg.HistoryRetention),
		slog.Bool("sim_mode", cfg.SimMode),
	)

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[arbdesk] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Final save so nothing recorded since the last event write is lost.
	if store != nil {
		if err := store.SaveBook(shutdownCtx, book.Snapshot()); err != nil {
			log.Printf("[arbdesk] final book save: %v", err)
		}
		if err := store.SaveHistory(shutdownCtx, series.Points()); err != nil {
			log.Printf("[arbdesk] final history save: %v", err)
		}
		store.Close()
	}

	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	events.Close()

	log.Println("[arbdesk] shutdown complete.")
}

// restore loads positions and history from Redis, falling back to the SQLite
// archive for history when Redis has nothing.
func restore(ctx context.Context, store *redisstore.Store, archiver *sqlitestore.Archiver, book *ledger.Book, series *history.Series, retention time.Duration) {
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if store != nil {
		if positions, err := store.LoadBook(loadCtx); err != nil {
			log.Printf("[arbdesk] restore positions: %v", err)
		} else if len(positions) > 0 {
			book.Restore(positions)
			log.Printf("[arbdesk] restored %d positions from redis", len(positions))
		}
		if points, err := store.LoadHistory(loadCtx); err != nil {
			log.Printf("[arbdesk] restore history: %v", err)
		} else if len(points) > 0 {
			series.Restore(points)
			log.Printf("[arbdesk] restored %d history points from redis", len(points))
			return
		}
	}

	if points, err := archiver.LoadSince(time.Now().Add(-retention)); err != nil {
		log.Printf("[arbdesk] restore history from sqlite: %v", err)
	} else if len(points) > 0 {
		series.Restore(points)
		log.Printf("[arbdesk] restored %d history points from sqlite archive", len(points))
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
