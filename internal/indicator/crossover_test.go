package indicator

import (
	"testing"

	"signal-enginev1/internal/model"
)

func TestDetectCrossover_Up(t *testing.T) {
	// Close moves 47→52 across an SMA sitting at 48→49.
	closes := []float64{47, 52}
	sma := []float64{48, 49}

	if got := DetectCrossover(closes, sma, 1); got != CrossUp {
		t.Errorf("DetectCrossover: got %q, want %q", got, CrossUp)
	}
	if got := DetectCrossover(sma, closes, 1); got != CrossDown {
		t.Errorf("mirror: got %q, want %q", got, CrossDown)
	}
}

func TestDetectCrossover_NoneAtIndexZero(t *testing.T) {
	a := []float64{1, 2}
	b := []float64{2, 1}
	if got := DetectCrossover(a, b, 0); got != CrossNone {
		t.Errorf("index 0: got %q, want none", got)
	}
	if got := DetectCrossover(a, b, 5); got != CrossNone {
		t.Errorf("out of range: got %q, want none", got)
	}
}

func TestDetectCrossover_MissingValues(t *testing.T) {
	// Any missing value among the four comparisons suppresses the cross,
	// even if the remaining values would imply one.
	cases := []struct {
		name string
		a, b []float64
	}{
		{"prev a missing", []float64{Missing(), 52}, []float64{48, 49}},
		{"prev b missing", []float64{47, 52}, []float64{Missing(), 49}},
		{"cur a missing", []float64{47, Missing()}, []float64{48, 49}},
		{"cur b missing", []float64{47, 52}, []float64{48, Missing()}},
	}
	for _, tc := range cases {
		if got := DetectCrossover(tc.a, tc.b, 1); got != CrossNone {
			t.Errorf("%s: got %q, want none", tc.name, got)
		}
	}
}

func TestDetectCrossover_Touching(t *testing.T) {
	// Equality at either bar is not a cross.
	a := []float64{48, 52}
	b := []float64{48, 49}
	if got := DetectCrossover(a, b, 1); got != CrossNone {
		t.Errorf("equal prev: got %q, want none", got)
	}
}

func TestCompute_UnknownTypeAllMissing(t *testing.T) {
	closes := []float64{1, 2, 3}
	out := Compute(model.IndicatorSpec{Type: "ICHIMOKU"}, closes)

	main, ok := out["main"]
	if !ok {
		t.Fatalf("unknown indicator: missing main series")
	}
	if len(main) != len(closes) {
		t.Fatalf("unknown indicator: len=%d, want %d", len(main), len(closes))
	}
	for i, v := range main {
		if !IsMissing(v) {
			t.Errorf("unknown indicator main[%d]: got %.4f, want missing", i, v)
		}
	}
}

func TestCompute_BollingerSubSeries(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}
	out := Compute(model.IndicatorSpec{Type: "BOLLINGER_BANDS", Period: 20, StdDev: 2}, closes)

	for _, key := range []string{"upper", "middle", "lower"} {
		s, ok := out[key]
		if !ok {
			t.Fatalf("bollinger: missing %q series", key)
		}
		if IsMissing(s[24]) {
			t.Errorf("bollinger %s[24]: want a value", key)
		}
	}
	if out["upper"][24] < out["middle"][24] || out["middle"][24] < out["lower"][24] {
		t.Errorf("bollinger band ordering violated: %v >= %v >= %v wanted",
			out["upper"][24], out["middle"][24], out["lower"][24])
	}
}
