package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the PNL engine.
type Metrics struct {
	RecordingsTotal   prometheus.Counter
	RecordingsSkipped prometheus.Counter
	PrunedPoints      prometheus.Counter
	CacheRefreshDur   prometheus.Histogram
	RedisWriteDur     prometheus.Histogram
	SQLiteCommitDur   prometheus.Histogram

	OpenPositions  prometheus.Gauge
	HistoryPoints  prometheus.Gauge
	PortfolioPnl   prometheus.Gauge
	NetExposure    prometheus.Gauge
	BusDropsTotal  *prometheus.CounterVec // labels: subscriber
	WSClientsGauge prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbdesk_recordings_total",
			Help: "Total PNL history points recorded",
		}),
		RecordingsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbdesk_recordings_skipped_total",
			Help: "Recording passes skipped (no open positions or spacing guard)",
		}),
		PrunedPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbdesk_pruned_points_total",
			Help: "History points removed by the retention pruner",
		}),
		CacheRefreshDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbdesk_cache_refresh_duration_seconds",
			Help:    "PNL cache full-replace rebuild latency",
			Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1},
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbdesk_redis_write_duration_seconds",
			Help:    "Redis document write latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbdesk_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbdesk_open_positions",
			Help: "Number of open positions",
		}),
		HistoryPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbdesk_history_points",
			Help: "Number of stored PNL history points",
		}),
		PortfolioPnl: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbdesk_portfolio_pnl_usd",
			Help: "Latest recorded total portfolio PNL in USD",
		}),
		NetExposure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbdesk_net_exposure_usd",
			Help: "Latest recorded net position (long - short exposure) in USD",
		}),
		BusDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbdesk_bus_drops_total",
			Help: "Events dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		WSClientsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbdesk_ws_clients",
			Help: "Connected WebSocket clients",
		}),
	}

	prometheus.MustRegister(
		m.RecordingsTotal,
		m.RecordingsSkipped,
		m.PrunedPoints,
		m.CacheRefreshDur,
		m.RedisWriteDur,
		m.SQLiteCommitDur,
		m.OpenPositions,
		m.HistoryPoints,
		m.PortfolioPnl,
		m.NetExposure,
		m.BusDropsTotal,
		m.WSClientsGauge,
	)

	return m
}
