// Package strategy runs strategy definitions against candle windows.
//
// The Runner applies every entry rule of one strategy to one window, bounded
// by configuration ceilings and a wall-clock budget. Strategies react to the
// newest bar only: rules are evaluated at the latest index.
package strategy

import (
	"context"
	"fmt"
	"time"

	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/rule"
)

// Safety ceilings. A strategy declaring more than these is rejected outright
// rather than evaluated — protects a pass from pathological configurations.
const (
	MaxIndicators = 10
	MaxEntryRules = 10

	// MinCandles is the minimum window length worth evaluating; shorter
	// windows cannot warm up the default indicator set.
	MinCandles = 50
)

const defaultTimeout = 5 * time.Second

// Runner evaluates strategies under a per-strategy time budget.
type Runner struct {
	timeout time.Duration
}

// NewRunner creates a Runner. timeout <= 0 selects the default budget.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{timeout: timeout}
}

// Run evaluates one strategy against one candle window for the given symbol.
// It returns the triggered rule results (possibly empty). Skips — out-of-scope
// symbol, ceiling violations, short windows — report skipped=true with nil
// error, so callers can tell an untriggered evaluation from no evaluation at
// all. Exceeding the time budget returns an error; the caller records it as
// a per-strategy failure and continues the pass.
func (r *Runner) Run(ctx context.Context, strat model.Strategy, candles []model.Candle, symbol string) (results []rule.Result, skipped bool, err error) {
	if !strat.InScope(symbol) {
		return nil, true, nil
	}
	if len(strat.Indicators) > MaxIndicators || len(strat.EntryRules) > MaxEntryRules {
		return nil, true, nil
	}
	if len(candles) < MinCandles {
		return nil, true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type evalOut struct {
		results []rule.Result
	}
	done := make(chan evalOut, 1)
	go func() {
		done <- evalOut{results: evaluate(strat, candles)}
	}()

	select {
	case out := <-done:
		return out.results, false, nil
	case <-ctx.Done():
		// The evaluation goroutine is left to finish on its own; its result
		// is discarded.
		return nil, false, fmt.Errorf("strategy %s: evaluation timed out after %v", strat.ID, r.timeout)
	}
}

// evaluate computes every declared indicator once, then applies every entry
// rule at the latest index.
func evaluate(strat model.Strategy, candles []model.Candle) []rule.Result {
	closes := model.Closes(candles)

	series := make(map[string]map[string][]float64, len(strat.Indicators))
	for _, spec := range strat.Indicators {
		series[spec.Key()] = indicator.Compute(spec, closes)
	}

	var triggered []rule.Result
	for _, er := range strat.EntryRules {
		res := rule.Evaluate(er, series, closes)
		if !res.Triggered {
			continue
		}
		res.StrategyID = strat.ID
		res.StrategyName = strat.Name
		triggered = append(triggered, res)
	}
	return triggered
}
