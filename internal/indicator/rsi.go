package indicator

// RSI calculates the Relative Strength Index over closing prices using
// Wilder's smoothing method.
//
// Seed: average gain/loss over the first period deltas. Subsequent averages:
// avg = (avg*(period-1) + current) / period. When avgLoss is zero the ratio
// is treated as infinite and RSI is 100. The first period indices are
// missing.
func RSI(closes []float64, period int) []float64 {
	if period <= 0 || period >= len(closes) {
		return missingSeries(len(closes))
	}

	out := missingSeries(len(closes))

	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
