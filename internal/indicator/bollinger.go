package indicator

import "math"

// Bands holds the three Bollinger Band series.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// BollingerBands calculates Bollinger Bands: middle = SMA(period), upper and
// lower = middle ± stdDev × population standard deviation of the same window.
// Missing-data policy follows SMA.
func BollingerBands(data []float64, period int, stdDev float64) Bands {
	middle := SMA(data, period)
	upper := missingSeries(len(data))
	lower := missingSeries(len(data))

	for i := range data {
		if IsMissing(middle[i]) {
			continue
		}
		mean := middle[i]
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := data[j] - mean
			variance += d * d
		}
		variance /= float64(period)
		sd := math.Sqrt(variance)
		upper[i] = mean + sd*stdDev
		lower[i] = mean - sd*stdDev
	}
	return Bands{Upper: upper, Middle: middle, Lower: lower}
}
