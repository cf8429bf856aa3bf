package analysis

import (
	"math"
	"testing"
)

// TestDCSweepVoltageDividerTracksSourceLinearly sweeps the source of a
// resistive divider and checks the midpoint voltage scales linearly with it
// at every step, not just a single operating point.
func TestDCSweepVoltageDividerTracksSourceLinearly(t *testing.T) {
	src := "Swept divider\n" +
		"V1 1 0 DC 0\n" +
		"R1 1 2 1k\n" +
		"R2 2 0 1k\n" +
		".dc V1 0 10 1\n"

	ckt, _ := buildCircuit(t, src)

	dc := NewDCSweep([]string{"V1"}, []float64{0}, []float64{10}, []float64{1})
	if err := dc.Setup(ckt); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if err := dc.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	results := dc.GetResults()
	sweep := results["SWEEP1"]
	v2 := results["V(2)"]
	if len(sweep) == 0 || len(sweep) != len(v2) {
		t.Fatalf("SWEEP1/V(2) length mismatch: %d vs %d", len(sweep), len(v2))
	}

	for i, sourceVal := range sweep {
		want := sourceVal * 0.5
		if got := v2[i]; math.Abs(got-want) > 1e-6 {
			t.Errorf("at V1=%v: V(2) = %v, want %v", sourceVal, got, want)
		}
	}
}
