package sqlite

import (
	"context"
	"fmt"
	"log"

	"signal-enginev1/internal/model"
)

// builtinStrategies are the stock strategies installed on first run.
func builtinStrategies() []model.Strategy {
	return []model.Strategy{
		{
			ID:        "builtin-ma-crossover",
			Name:      "MA Crossover",
			Category:  "trend",
			Timeframe: "H1",
			Indicators: []model.IndicatorSpec{
				{Type: "EMA", Period: 9},
				{Type: "EMA", Period: 21},
			},
			EntryRules: []model.EntryRule{
				model.CrossRule(model.CondCrossover, "EMA_9", "EMA_21", model.DirectionBuy),
				model.CrossRule(model.CondCrossunder, "EMA_9", "EMA_21", model.DirectionSell),
			},
			IsActive: true,
		},
		{
			ID:        "builtin-rsi-divergence",
			Name:      "RSI Divergence",
			Category:  "momentum",
			Timeframe: "H1",
			Indicators: []model.IndicatorSpec{
				{Type: "RSI", Period: 14},
			},
			EntryRules: []model.EntryRule{
				model.ThresholdRule(model.CondLessThan, "RSI_14", 30, model.DirectionBuy),
				model.ThresholdRule(model.CondGreaterThan, "RSI_14", 70, model.DirectionSell),
			},
			IsActive: true,
		},
		{
			ID:        "builtin-momentum-breakout",
			Name:      "Momentum Breakout",
			Category:  "volatility",
			Timeframe: "H4",
			Indicators: []model.IndicatorSpec{
				{Type: "BOLLINGER_BANDS", Period: 20, StdDev: 2},
			},
			EntryRules: []model.EntryRule{
				model.CrossRule(model.CondCrossover, "CLOSE", "BOLLINGER_BANDS_20_upper", model.DirectionBuy),
				model.CrossRule(model.CondCrossunder, "CLOSE", "BOLLINGER_BANDS_20_lower", model.DirectionSell),
			},
			// Breakouts ride the move: trail the stop 1.5% behind price.
			TrailingStopPct: 1.5,
			IsActive:        true,
		},
	}
}

// SeedBuiltinStrategies installs the stock strategies when the strategies
// table is empty. Existing rows, including edited copies of the built-ins,
// are left alone.
func (s *Store) SeedBuiltinStrategies(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM strategies`).Scan(&count); err != nil {
		return fmt.Errorf("count strategies: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, st := range builtinStrategies() {
		if err := s.SaveStrategy(ctx, st); err != nil {
			return err
		}
	}
	log.Printf("[sqlite] seeded %d built-in strategies", len(builtinStrategies()))
	return nil
}
