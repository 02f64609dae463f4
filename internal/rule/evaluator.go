// Package rule evaluates a single strategy entry rule against computed
// indicator series and the raw candle window.
//
// Evaluation is side-effect-free and deterministic: the same rule, series map
// and closes always produce the same Result. Unresolvable operands or missing
// values yield a non-signal Result with a diagnostic reason, never an error.
package rule

import (
	"fmt"
	"strings"

	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/model"
)

// Result is the outcome of evaluating one entry rule.
type Result struct {
	Triggered    bool
	Direction    model.Direction
	Reason       string
	StrategyID   string
	StrategyName string
}

func noSignal(reason string) Result {
	return Result{Reason: reason}
}

// resolveSeries maps an operand name to a series:
//  1. the literal key "CLOSE" maps to closing prices;
//  2. a direct match against an indicator's "main" sub-series;
//  3. a composite key ("indicator_subkey") splits on the last separator to
//     address multi-output indicators like "BOLLINGER_BANDS_20_upper".
//
// Returns nil when the operand cannot be resolved.
func resolveSeries(key string, series map[string]map[string][]float64, closes []float64) []float64 {
	if key == "CLOSE" {
		return closes
	}
	if sub, ok := series[key]; ok {
		if main, ok := sub["main"]; ok {
			return main
		}
	}
	if i := strings.LastIndex(key, "_"); i > 0 {
		base, subKey := key[:i], key[i+1:]
		if sub, ok := series[base]; ok {
			if s, ok := sub[subKey]; ok {
				return s
			}
		}
	}
	return nil
}

// Evaluate applies one entry rule at the latest index of the window.
func Evaluate(r model.EntryRule, series map[string]map[string][]float64, closes []float64) Result {
	if len(closes) == 0 {
		return noSignal("empty candle window")
	}
	latest := len(closes) - 1

	switch r.Condition {
	case model.CondCrossover, model.CondCrossunder:
		s1 := resolveSeries(r.Indicator1, series, closes)
		s2 := resolveSeries(r.Indicator2, series, closes)
		if s1 == nil || s2 == nil {
			return noSignal("missing indicator data")
		}

		cross := indicator.DetectCrossover(s1, s2, latest)
		if r.Condition == model.CondCrossover && cross == indicator.CrossUp {
			return Result{
				Triggered: true,
				Direction: r.Direction,
				Reason:    fmt.Sprintf("%s crossed above %s", r.Indicator1, r.Indicator2),
			}
		}
		if r.Condition == model.CondCrossunder && cross == indicator.CrossDown {
			return Result{
				Triggered: true,
				Direction: r.Direction,
				Reason:    fmt.Sprintf("%s crossed below %s", r.Indicator1, r.Indicator2),
			}
		}
		return noSignal("no crossover detected")

	case model.CondGreaterThan, model.CondLessThan:
		s1 := resolveSeries(r.Indicator1, series, closes)
		if s1 == nil || indicator.IsMissing(s1[latest]) {
			return noSignal("missing indicator data")
		}
		current := s1[latest]

		var target float64
		if r.Indicator2 != "" {
			s2 := resolveSeries(r.Indicator2, series, closes)
			if s2 == nil || indicator.IsMissing(s2[latest]) {
				return noSignal("missing comparison data")
			}
			target = s2[latest]
		} else if r.Value != nil {
			target = *r.Value
		}

		if r.Condition == model.CondGreaterThan && current > target {
			return Result{
				Triggered: true,
				Direction: r.Direction,
				Reason:    fmt.Sprintf("%s (%.2f) > %.2f", r.Indicator1, current, target),
			}
		}
		if r.Condition == model.CondLessThan && current < target {
			return Result{
				Triggered: true,
				Direction: r.Direction,
				Reason:    fmt.Sprintf("%s (%.2f) < %.2f", r.Indicator1, current, target),
			}
		}
		return noSignal("condition not met")
	}

	return noSignal("unknown condition")
}
