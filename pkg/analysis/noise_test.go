package analysis

import (
	"math"
	"testing"

	"github.com/spicekernel/engine/internal/consts"
)

// TestNoiseReportsResistorThermalPSD builds a single biased resistor and
// checks the reported generator PSD against the textbook 4*k*T*G formula,
// the same thermal-noise formula pkg/device.ResistorNoise computes.
func TestNoiseReportsResistorThermalPSD(t *testing.T) {
	src := "Noise on a resistor\n" +
		"V1 1 0 DC 5\n" +
		"R1 1 0 1k\n" +
		".noise DEC 3 1 1meg\n"

	ckt, _ := buildCircuitComplex(t, src, true)

	n := NewNoise(1, 1e6, 3, "DEC")
	if err := n.Setup(ckt); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if err := n.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	results := n.GetResults()
	psd, ok := results["NOISE(R1)"]
	if !ok || len(psd) == 0 {
		t.Fatalf("missing NOISE(R1) in results: %v", results)
	}

	want := 4.0 * consts.BOLTZMANN * n.Config.Temperature * (1.0 / 1000.0)
	for i, got := range psd {
		if math.Abs(got-want) > want*1e-6 {
			t.Errorf("NOISE(R1)[%d] = %v, want %v (frequency-independent thermal noise)", i, got, want)
		}
	}
}

// TestNoiseFrequencyAxisMatchesRequestedSweep checks generateFrequencyPoints'
// DEC spacing lands on the requested start/stop bounds.
func TestNoiseFrequencyAxisMatchesRequestedSweep(t *testing.T) {
	src := "Noise sweep\n" +
		"V1 1 0 DC 5\n" +
		"R1 1 0 1k\n" +
		".noise DEC 3 1 1meg\n"

	ckt, _ := buildCircuitComplex(t, src, true)

	n := NewNoise(1, 1e6, 3, "DEC")
	if err := n.Setup(ckt); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}

	if len(n.frequencies) != 3 {
		t.Fatalf("len(frequencies) = %d, want 3", len(n.frequencies))
	}
	if math.Abs(n.frequencies[0]-1) > 1e-9 {
		t.Errorf("frequencies[0] = %v, want 1", n.frequencies[0])
	}
	if math.Abs(n.frequencies[2]-1e6) > 1 {
		t.Errorf("frequencies[2] = %v, want 1e6", n.frequencies[2])
	}
}
