package analysis

import (
	"math"
	"testing"
)

// TestTransientRCChargingMatchesExponential drives a series RC from a DC
// source through a switched topology approximated by starting from a
// zero initial condition and letting trapezoidal integration settle the
// capacitor voltage toward the source value along the textbook charging
// curve v(t) = V*(1-exp(-t/RC)).
func TestTransientRCChargingMatchesExponential(t *testing.T) {
	const (
		v    = 5.0
		r    = 1000.0
		c    = 1e-6
		tau  = r * c // 1ms
		tStep = tau / 20
		tStop = 5 * tau
	)

	src := "RC charging\n" +
		"V1 1 0 DC 5\n" +
		"R1 1 2 1k\n" +
		"C1 2 0 1u\n" +
		".tran 50u 5m uic\n"

	ckt, _ := buildCircuit(t, src)

	tr := NewTransient(0, tStop, tStep, 0, true) // uic: skip the OP solve, start at v(0)=0
	if err := tr.Setup(ckt); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if err := tr.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	results := tr.GetResults()
	v2 := results["V(2)"]
	if len(v2) == 0 {
		t.Fatalf("missing V(2) in results: %v", results)
	}

	want := v * (1 - math.Exp(-tStop/tau))
	got := v2[len(v2)-1]
	if math.Abs(got-want) > 0.05*v {
		t.Errorf("V(2) at t=5*tau = %v, want ~%v (within 5%% of source)", got, want)
	}
}
