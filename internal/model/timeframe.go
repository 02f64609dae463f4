package model

// timeframeSeconds maps timeframe codes to the length of one candle in seconds.
var timeframeSeconds = map[string]int64{
	"M1":  60,
	"M5":  300,
	"M15": 900,
	"M30": 1800,
	"H1":  3600,
	"H4":  14400,
	"D1":  86400,
	"W1":  604800,
}

// DefaultTimeframes is the pair of timeframes scanned when the user has not
// configured favorites.
var DefaultTimeframes = []string{"H1", "H4"}

// TimeframeSeconds returns the candle duration in seconds for a timeframe
// code. Unknown codes default to one hour.
func TimeframeSeconds(tf string) int64 {
	if s, ok := timeframeSeconds[tf]; ok {
		return s
	}
	return 3600
}

// KnownTimeframe reports whether tf is a recognized timeframe code.
func KnownTimeframe(tf string) bool {
	_, ok := timeframeSeconds[tf]
	return ok
}
