package engine

import (
	"context"
	"log"
	"time"

	"signal-enginev1/internal/lifecycle"
	"signal-enginev1/internal/model"
)

// runPass executes one full generation pass: every configured symbol and
// timeframe is scanned against every active strategy. Failures are isolated
// per symbol/timeframe unit so one bad fetch never aborts the pass; a panic
// anywhere in the pipeline is caught and counted.
func (e *Engine) runPass(ctx context.Context) (stats RunStats) {
	start := time.Now()
	stats.Timestamp = start

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[engine] generation pass panic recovered: %v", r)
			stats.addError("pass panic: %v", r)
		}
		stats.ExecutionTimeMs = time.Since(start).Milliseconds()
		e.recordPass(&stats)
	}()

	strategies, err := e.strategies.LoadActiveStrategies(ctx)
	if err != nil {
		log.Printf("[engine] loading strategies failed: %v", err)
		stats.addError("loading strategies failed: %v", err)
		return stats
	}
	if len(strategies) == 0 {
		log.Printf("[engine] no active strategies, skipping pass")
		return stats
	}

	for _, symbol := range e.cfg.Symbols {
		if ctx.Err() != nil {
			return stats
		}
		stats.SymbolsProcessed++
		for _, tf := range e.cfg.Timeframes {
			e.scanUnit(ctx, symbol, tf, strategies, &stats)
		}
	}

	log.Printf("[engine] pass done: %d symbols, %d evaluations, %d signals, %d duplicates, %d errors in %dms",
		stats.SymbolsProcessed, stats.StrategiesEvaluated, stats.SignalsGenerated,
		stats.DuplicatesBlocked, len(stats.Errors), time.Since(start).Milliseconds())
	return stats
}

// scanUnit evaluates all strategies against one symbol/timeframe window.
func (e *Engine) scanUnit(ctx context.Context, symbol, tf string, strategies []model.Strategy, stats *RunStats) {
	candles, err := e.md.GetCandles(ctx, symbol, tf, e.cfg.CandleLimit)
	if err != nil {
		log.Printf("[engine] %s %s: candle fetch failed: %v", symbol, tf, err)
		stats.addError("%s %s: candle fetch failed: %v", symbol, tf, err)
		if e.met != nil {
			e.met.GenerationErrors.Inc()
		}
		return
	}
	if len(candles) == 0 {
		return
	}
	trigger := candles[len(candles)-1]

	for _, strat := range strategies {
		if strat.Timeframe != "" && strat.Timeframe != tf {
			continue
		}

		results, skipped, err := e.runner.Run(ctx, strat, candles, symbol)
		if err != nil {
			log.Printf("[engine] %s %s %s: evaluation failed: %v", strat.Name, symbol, tf, err)
			stats.addError("%s %s %s: evaluation failed: %v", strat.Name, symbol, tf, err)
			if e.met != nil {
				e.met.GenerationErrors.Inc()
			}
			continue
		}
		if skipped {
			// Out of scope or not enough candles.
			continue
		}
		stats.StrategiesEvaluated++
		if e.met != nil {
			e.met.StrategiesEvaluated.Inc()
		}

		for _, res := range results {
			if !res.Triggered {
				continue
			}
			e.emitSignal(ctx, strat, symbol, tf, res.Direction, trigger, stats)
		}
	}
}

func (e *Engine) emitSignal(ctx context.Context, strat model.Strategy, symbol, tf string,
	dir model.Direction, trigger model.Candle, stats *RunStats) {

	if e.guard.IsDuplicate(ctx, strat.ID, symbol, dir, tf, trigger.Time) {
		stats.DuplicatesBlocked++
		if e.met != nil {
			e.met.DuplicatesBlocked.Inc()
		}
		return
	}

	var trailing float64
	if strat.TrailingStopPct > 0 {
		trailing = trigger.Close * strat.TrailingStopPct / 100
	}

	_, err := e.manager.CreateSignal(ctx, lifecycle.CreateParams{
		Pair:         symbol,
		StrategyID:   strat.ID,
		StrategyName: strat.Name,
		Direction:    dir,
		Entry:        trigger.Close,
		EntryType:    model.EntryMarket,
		Timeframe:    tf,
		Trigger:      trigger,
		TrailingStop: trailing,
	})
	if err != nil {
		log.Printf("[engine] %s %s: signal persist failed: %v", symbol, dir, err)
		stats.addError("%s %s: signal persist failed: %v", symbol, dir, err)
		if e.met != nil {
			e.met.GenerationErrors.Inc()
		}
		return
	}

	stats.SignalsGenerated++
	if e.met != nil {
		e.met.SignalsGenerated.WithLabelValues(strat.Name).Inc()
	}
}

func (e *Engine) recordPass(stats *RunStats) {
	e.mu.Lock()
	e.lastRun = stats
	e.mu.Unlock()

	if e.met != nil {
		e.met.GenerationPasses.Inc()
		e.met.GenerationDur.Observe(float64(stats.ExecutionTimeMs) / 1000.0)
	}
	if e.health != nil {
		e.health.SetLastPassAt(stats.Timestamp)
	}
}
