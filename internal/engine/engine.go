// Package engine runs the signal generation and lifecycle scheduler.
//
// Two independent loops drive the system: a slow generation loop that scans
// every configured symbol/timeframe against the active strategies, and a fast
// monitor loop that walks PENDING and ACTIVE signals against live prices. A
// third, much slower loop purges old closed signals.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"signal-enginev1/internal/lifecycle"
	"signal-enginev1/internal/metrics"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/strategy"
)

// Config holds the scheduler knobs.
type Config struct {
	Symbols           []string
	Timeframes        []string
	CandleLimit       int           // candles fetched per scan unit
	ScanInterval      time.Duration // generation loop period
	MonitorInterval   time.Duration // lifecycle loop period
	RetentionInterval time.Duration // retention loop period
	RetentionDays     int
}

// Defaults fills zero-valued fields.
func (c *Config) Defaults() {
	if len(c.Symbols) == 0 {
		c.Symbols = []string{"BTCUSDT"}
	}
	if len(c.Timeframes) == 0 {
		c.Timeframes = model.DefaultTimeframes
	}
	if c.CandleLimit == 0 {
		c.CandleLimit = 200
	}
	if c.ScanInterval == 0 {
		c.ScanInterval = 5 * time.Minute
	}
	if c.MonitorInterval == 0 {
		c.MonitorInterval = 3 * time.Second
	}
	if c.RetentionInterval == 0 {
		c.RetentionInterval = time.Hour
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = 30
	}
}

// RunStats summarizes one generation pass. Errors carries the per-item
// diagnostic messages collected during the pass; the count is len(Errors).
type RunStats struct {
	Timestamp           time.Time `json:"timestamp"`
	SymbolsProcessed    int       `json:"symbols_processed"`
	StrategiesEvaluated int       `json:"strategies_evaluated"`
	SignalsGenerated    int       `json:"signals_generated"`
	DuplicatesBlocked   int       `json:"duplicates_blocked"`
	Errors              []string  `json:"errors"`
	ExecutionTimeMs     int64     `json:"execution_time_ms"`
}

func (s *RunStats) addError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// Status is a snapshot of the scheduler state.
type Status struct {
	Running bool      `json:"running"`
	LastRun *RunStats `json:"last_run,omitempty"`
}

// Engine owns the scheduler loops and the per-pass pipeline.
type Engine struct {
	cfg        Config
	md         model.MarketDataProvider
	strategies model.StrategyStore
	signals    model.SignalStore
	runner     *strategy.Runner
	guard      *lifecycle.DupGuard
	manager    *lifecycle.Manager
	met        *metrics.Metrics // nil disables instrumentation
	health     *metrics.HealthStatus

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastRun *RunStats
}

// New wires an Engine. met and health may be nil.
func New(cfg Config, md model.MarketDataProvider, strategies model.StrategyStore,
	signals model.SignalStore, runner *strategy.Runner, guard *lifecycle.DupGuard,
	manager *lifecycle.Manager, met *metrics.Metrics, health *metrics.HealthStatus) *Engine {
	cfg.Defaults()
	return &Engine{
		cfg:        cfg,
		md:         md,
		strategies: strategies,
		signals:    signals,
		runner:     runner,
		guard:      guard,
		manager:    manager,
		met:        met,
		health:     health,
	}
}

// Start launches the loops. A second Start while running is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		log.Printf("[engine] start ignored: already running")
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	if e.health != nil {
		e.health.SetEngineRunning(true)
	}

	e.wg.Add(3)
	go e.generationLoop(loopCtx)
	go e.monitorLoop(loopCtx)
	go e.retentionLoop(loopCtx)

	log.Printf("[engine] started: %d symbols, %v timeframes, scan every %s, monitor every %s",
		len(e.cfg.Symbols), e.cfg.Timeframes, e.cfg.ScanInterval, e.cfg.MonitorInterval)
}

// Stop halts the loops and waits for in-flight passes to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	if e.health != nil {
		e.health.SetEngineRunning(false)
	}
	log.Printf("[engine] stopped")
}

// Status returns the current scheduler snapshot.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{Running: e.running, LastRun: e.lastRun}
}

// TriggerScan runs one generation pass immediately, outside the ticker.
func (e *Engine) TriggerScan(ctx context.Context) RunStats {
	return e.runPass(ctx)
}

func (e *Engine) generationLoop(ctx context.Context) {
	defer e.wg.Done()

	// First pass straight away rather than waiting out a full interval.
	e.runPass(ctx)

	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runPass(ctx)
		}
	}
}

func (e *Engine) monitorLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.monitorTick(ctx)
		}
	}
}

func (e *Engine) retentionLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.RetentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.purgeOldSignals(ctx)
		}
	}
}

func (e *Engine) purgeOldSignals(ctx context.Context) {
	n, err := e.signals.CleanupOldSignals(ctx, e.cfg.RetentionDays)
	if err != nil {
		log.Printf("[engine] retention sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[engine] retention: purged %d closed signals older than %d days", n, e.cfg.RetentionDays)
		if e.met != nil {
			e.met.SignalsPurged.Add(float64(n))
		}
	}
}
