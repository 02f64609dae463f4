package indicator

import "math"

// EMA calculates the Exponential Moving Average of a series with multiplier
// 2/(period+1), seeded by the SMA of the first period available values.
// Indices before the seed are missing. A missing input after the seed leaves
// that index missing and carries the previous EMA forward.
func EMA(data []float64, period int) []float64 {
	if period <= 0 || period > len(data) {
		return missingSeries(len(data))
	}

	out := missingSeries(len(data))
	multiplier := 2.0 / float64(period+1)
	seeded := false
	prev := 0.0

	for i, price := range data {
		if !seeded {
			if i >= period-1 && windowComplete(data, i-period+1, i+1) {
				sum := 0.0
				for j := i - period + 1; j <= i; j++ {
					sum += data[j]
				}
				prev = sum / float64(period)
				out[i] = prev
				seeded = true
			}
			continue
		}
		if math.IsNaN(price) {
			continue
		}
		prev = (price-prev)*multiplier + prev
		out[i] = prev
	}
	return out
}
