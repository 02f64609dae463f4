package indicator

// Cross is the result of crossover detection between two series.
type Cross string

const (
	CrossUp   Cross = "up"
	CrossDown Cross = "down"
	CrossNone Cross = "none"
)

// DetectCrossover reports whether series a crossed series b between
// index-1 and index: CrossUp when a moved from below to above, CrossDown for
// the mirror. Returns CrossNone when index < 1, either series is too short,
// or any of the four compared values is missing.
func DetectCrossover(a, b []float64, index int) Cross {
	if index < 1 || index >= len(a) || index >= len(b) {
		return CrossNone
	}

	curA, curB := a[index], b[index]
	prevA, prevB := a[index-1], b[index-1]
	if IsMissing(curA) || IsMissing(curB) || IsMissing(prevA) || IsMissing(prevB) {
		return CrossNone
	}

	if prevA < prevB && curA > curB {
		return CrossUp
	}
	if prevA > prevB && curA < curB {
		return CrossDown
	}
	return CrossNone
}
