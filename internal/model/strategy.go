package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Direction is the trade direction proposed by an entry rule.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// RuleCondition identifies the kind of entry condition.
type RuleCondition string

const (
	CondCrossover   RuleCondition = "crossover"
	CondCrossunder  RuleCondition = "crossunder"
	CondGreaterThan RuleCondition = "greater_than"
	CondLessThan    RuleCondition = "less_than"
)

// IndicatorSpec declares one indicator a strategy wants computed.
type IndicatorSpec struct {
	Type   string  `json:"type"`    // "SMA", "EMA", "RSI", "BOLLINGER_BANDS"
	Period int     `json:"period"`  // 0 = indicator default
	StdDev float64 `json:"std_dev"` // Bollinger only; 0 = default 2
}

// Key returns the lookup key the strategy runner stores this indicator's
// series under: "TYPE_period", or "TYPE_default" when no period is set.
func (s IndicatorSpec) Key() string {
	if s.Period <= 0 {
		return s.Type + "_default"
	}
	return s.Type + "_" + strconv.Itoa(s.Period)
}

// EntryRule is one entry condition of a strategy. Crossover conditions
// compare Indicator1 against Indicator2; threshold conditions compare
// Indicator1 against either Indicator2 or the literal Value (mutually
// exclusive, enforced by Validate).
type EntryRule struct {
	Condition  RuleCondition `json:"condition"`
	Indicator1 string        `json:"indicator1"`
	Indicator2 string        `json:"indicator2,omitempty"`
	Value      *float64      `json:"value,omitempty"`
	Direction  Direction     `json:"direction"`
}

// CrossRule builds a crossover/crossunder rule.
func CrossRule(cond RuleCondition, ind1, ind2 string, dir Direction) EntryRule {
	return EntryRule{Condition: cond, Indicator1: ind1, Indicator2: ind2, Direction: dir}
}

// ThresholdRule builds a greater_than/less_than rule against a literal value.
func ThresholdRule(cond RuleCondition, ind1 string, value float64, dir Direction) EntryRule {
	return EntryRule{Condition: cond, Indicator1: ind1, Value: &value, Direction: dir}
}

// Validate checks the rule is well-formed for its condition kind.
func (r EntryRule) Validate() error {
	if r.Direction != DirectionBuy && r.Direction != DirectionSell {
		return fmt.Errorf("rule: invalid direction %q", r.Direction)
	}
	if r.Indicator1 == "" {
		return fmt.Errorf("rule: missing indicator1")
	}
	switch r.Condition {
	case CondCrossover, CondCrossunder:
		if r.Indicator2 == "" {
			return fmt.Errorf("rule: %s requires indicator2", r.Condition)
		}
		if r.Value != nil {
			return fmt.Errorf("rule: %s does not take a literal value", r.Condition)
		}
	case CondGreaterThan, CondLessThan:
		if r.Indicator2 != "" && r.Value != nil {
			return fmt.Errorf("rule: indicator2 and value are mutually exclusive")
		}
		if r.Indicator2 == "" && r.Value == nil {
			return fmt.Errorf("rule: %s requires indicator2 or value", r.Condition)
		}
	default:
		return fmt.Errorf("rule: unknown condition %q", r.Condition)
	}
	return nil
}

// Strategy is an immutable strategy definition for one evaluation pass.
type Strategy struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Timeframe  string          `json:"timeframe"` // "" = run on any scanned timeframe
	Symbols    []string        `json:"symbols"`   // empty = all symbols
	Indicators []IndicatorSpec `json:"indicators"`
	EntryRules []EntryRule     `json:"entry_rules"`
	// TrailingStopPct is the trailing-stop distance as a percent of the entry
	// price. 0 leaves signals without a trailing stop.
	TrailingStopPct float64 `json:"trailing_stop_pct"`
	IsActive        bool    `json:"is_active"`
}

// normalizeSymbol strips separators and case so "EUR/USD", "eur-usd" and
// "EURUSD" all compare equal.
func normalizeSymbol(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

// InScope reports whether the strategy should run for the given symbol.
// An empty symbol list means the strategy runs everywhere.
func (s *Strategy) InScope(symbol string) bool {
	if len(s.Symbols) == 0 {
		return true
	}
	want := normalizeSymbol(symbol)
	for _, sym := range s.Symbols {
		if normalizeSymbol(sym) == want {
			return true
		}
	}
	return false
}
