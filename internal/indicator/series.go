// Package indicator provides technical indicator calculations over candle
// windows.
//
// All indicators are pure functions: they take a numeric series (or candle
// window) and return a derived series of the same length, indexed in parallel
// with the input. Values that cannot be computed yet — leading warmup indices,
// or windows touched by missing data — are marked missing (NaN) rather than
// zero, so downstream rule evaluation can tell "no value" from "value 0".
package indicator

import "math"

// Missing is the marker for an absent series value.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether a series value is absent.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// missingSeries returns a series of n missing values.
func missingSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// windowComplete reports whether data[from:to] contains no missing values.
func windowComplete(data []float64, from, to int) bool {
	for i := from; i < to; i++ {
		if math.IsNaN(data[i]) {
			return false
		}
	}
	return true
}
