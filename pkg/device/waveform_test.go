package device

import (
	"math"
	"testing"
)

func TestEvaluatePulseSegments(t *testing.T) {
	// v1=0, v2=5, delay=1, rise=0.5, fall=0.5, pWidth=2, period=0 (one-shot)
	const v1, v2, delay, rise, fall, pWidth, period = 0.0, 5.0, 1.0, 0.5, 0.5, 2.0, 0.0

	cases := []struct {
		name string
		t    float64
		want float64
	}{
		{"before delay", 0.5, v1},
		{"start of rise", 1.0, v1},
		{"mid rise", 1.25, 2.5},
		{"end of rise / start plateau", 1.5, v2},
		{"mid plateau", 2.5, v2},
		{"mid fall", 3.75, 2.5},
		{"after fall", 4.5, v1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := evaluatePulse(c.t, v1, v2, delay, rise, fall, pWidth, period)
			if math.Abs(got-c.want) > 1e-9 {
				t.Errorf("evaluatePulse(%v) = %v, want %v", c.t, got, c.want)
			}
		})
	}
}

func TestEvaluatePulsePeriodic(t *testing.T) {
	const v1, v2, delay, rise, fall, pWidth, period = 0.0, 1.0, 0.0, 0.1, 0.1, 0.3, 1.0

	a := evaluatePulse(0.25, v1, v2, delay, rise, fall, pWidth, period)
	b := evaluatePulse(1.25, v1, v2, delay, rise, fall, pWidth, period)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("waveform should repeat every period: t=0.25 -> %v, t=1.25 -> %v", a, b)
	}
}

func TestEvaluatePulseZeroRiseFallIsAStep(t *testing.T) {
	got := evaluatePulse(1.0, 0, 5, 1.0, 0, 0, 2.0, 0)
	if got != 5 {
		t.Errorf("zero-rise-time pulse at the rise instant = %v, want v2=5", got)
	}
}

func TestEvaluatePWLInterpolatesAndClamps(t *testing.T) {
	times := []float64{0, 1, 3}
	values := []float64{0, 10, 0}

	cases := []struct {
		t    float64
		want float64
	}{
		{-1, 0},  // before first breakpoint: clamp to first value
		{0, 0},   // exactly on first breakpoint
		{0.5, 5}, // halfway through the first segment
		{1, 10},  // exactly on second breakpoint
		{2, 5},   // halfway through the second segment
		{3, 0},   // exactly on last breakpoint
		{10, 0},  // after last breakpoint: clamp to last value
	}

	for _, c := range cases {
		got := evaluatePWL(c.t, times, values)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("evaluatePWL(%v) = %v, want %v", c.t, got, c.want)
		}
	}
}
