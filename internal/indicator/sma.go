package indicator

// SMA calculates the Simple Moving Average of a series.
//
// Each index holds the average of the trailing period values, but only when
// all period values are present; the leading period-1 indices and any window
// touched by missing data are missing.
func SMA(data []float64, period int) []float64 {
	if period <= 0 || period > len(data) {
		return missingSeries(len(data))
	}

	out := missingSeries(len(data))
	for i := period - 1; i < len(data); i++ {
		if !windowComplete(data, i-period+1, i+1) {
			continue
		}
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += data[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}
