package indicator

import "signal-enginev1/internal/model"

// Default parameters used when a spec omits them.
const (
	defaultSMAPeriod = 20
	defaultEMAPeriod = 20
	defaultRSIPeriod = 14
	defaultBBPeriod  = 20
	defaultBBStdDev  = 2.0
)

// Compute dispatches an indicator spec to its implementation and returns the
// named sub-series map: single-output indicators yield {"main": ...},
// Bollinger Bands yield {"upper", "middle", "lower"}. Unknown types return an
// all-missing main series so one bad indicator never aborts a strategy pass.
func Compute(spec model.IndicatorSpec, closes []float64) map[string][]float64 {
	switch spec.Type {
	case "SMA":
		return map[string][]float64{"main": SMA(closes, periodOr(spec.Period, defaultSMAPeriod))}
	case "EMA":
		return map[string][]float64{"main": EMA(closes, periodOr(spec.Period, defaultEMAPeriod))}
	case "RSI":
		return map[string][]float64{"main": RSI(closes, periodOr(spec.Period, defaultRSIPeriod))}
	case "BOLLINGER_BANDS":
		sd := spec.StdDev
		if sd <= 0 {
			sd = defaultBBStdDev
		}
		bands := BollingerBands(closes, periodOr(spec.Period, defaultBBPeriod), sd)
		return map[string][]float64{
			"upper":  bands.Upper,
			"middle": bands.Middle,
			"lower":  bands.Lower,
		}
	}
	return map[string][]float64{"main": missingSeries(len(closes))}
}

func periodOr(period, fallback int) int {
	if period <= 0 {
		return fallback
	}
	return period
}
