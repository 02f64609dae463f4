// Package metrics exposes Prometheus metrics and a health endpoint for the
// signal engine.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	GenerationPasses    prometheus.Counter
	GenerationDur       prometheus.Histogram
	GenerationErrors    prometheus.Counter
	StrategiesEvaluated prometheus.Counter
	SignalsGenerated    *prometheus.CounterVec // labels: strategy
	DuplicatesBlocked   prometheus.Counter

	MonitorTicks   prometheus.Counter
	MonitorErrors  prometheus.Counter
	PendingSignals prometheus.Gauge
	ActiveSignals  prometheus.Gauge
	SignalsClosed  *prometheus.CounterVec // labels: reason

	TradesOpened  prometheus.Counter
	TradesClosed  prometheus.Counter
	SignalsPurged prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		GenerationPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_generation_passes_total",
			Help: "Total signal generation passes",
		}),
		GenerationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_generation_duration_seconds",
			Help:    "Signal generation pass duration",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		GenerationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_generation_errors_total",
			Help: "Errors during signal generation (per symbol/timeframe unit)",
		}),
		StrategiesEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_strategies_evaluated_total",
			Help: "Strategy evaluations across all passes",
		}),
		SignalsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_signals_generated_total",
			Help: "Signals generated (by strategy)",
		}, []string{"strategy"}),
		DuplicatesBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_duplicates_blocked_total",
			Help: "Signals suppressed by the duplicate guard",
		}),

		MonitorTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_monitor_ticks_total",
			Help: "Total lifecycle monitor ticks",
		}),
		MonitorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_monitor_errors_total",
			Help: "Errors while monitoring individual signals",
		}),
		PendingSignals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_pending_signals",
			Help: "Signals currently in PENDING state",
		}),
		ActiveSignals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_active_signals",
			Help: "Signals currently in ACTIVE state",
		}),
		SignalsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_signals_closed_total",
			Help: "Signals closed (by reason: TP, SL, MANUAL, TIMEOUT)",
		}, []string{"reason"}),

		TradesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_paper_trades_opened_total",
			Help: "Paper trades opened",
		}),
		TradesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_paper_trades_closed_total",
			Help: "Paper trades closed",
		}),
		SignalsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_signals_purged_total",
			Help: "Closed signals deleted by the retention task",
		}),
	}

	prometheus.MustRegister(
		m.GenerationPasses,
		m.GenerationDur,
		m.GenerationErrors,
		m.StrategiesEvaluated,
		m.SignalsGenerated,
		m.DuplicatesBlocked,
		m.MonitorTicks,
		m.MonitorErrors,
		m.PendingSignals,
		m.ActiveSignals,
		m.SignalsClosed,
		m.TradesOpened,
		m.TradesClosed,
		m.SignalsPurged,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	EngineRunning  bool      `json:"engine_running"`
	LastPassAt     time.Time `json:"last_pass_at"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetEngineRunning(v bool) {
	h.mu.Lock()
	h.EngineRunning = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastPassAt(t time.Time) {
	h.mu.Lock()
	h.LastPassAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	} else if !h.RedisConnected {
		// Prices fall back to REST pulls without Redis.
		overallStatus = "degraded"
	}

	passAge := ""
	if !h.LastPassAt.IsZero() {
		passAge = time.Since(h.LastPassAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		EngineRunning   bool    `json:"engine_running"`
		LastPassAt      string  `json:"last_pass_at"`
		PassAge         string  `json:"pass_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		EngineRunning:   h.EngineRunning,
		LastPassAt:      h.LastPassAt.Format(time.RFC3339),
		PassAge:         passAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Serve runs an HTTP server exposing /metrics and /healthz.
func Serve(ctx context.Context, addr string, health *HealthStatus) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[metrics] serving on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("[metrics] server error: %v", err)
	}
}
