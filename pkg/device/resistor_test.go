package device

import (
	"math"
	"testing"

	"github.com/spicekernel/engine/internal/consts"
	"github.com/spicekernel/engine/pkg/behavior"
	"github.com/spicekernel/engine/pkg/matrix"
)

func TestResistorConductanceAtNominalTemperature(t *testing.T) {
	r := NewResistor("R1", []string{"1", "0"}, 1000.0)

	if got, want := r.Temp.Conductance(), 1e-3; math.Abs(got-want) > 1e-12 {
		t.Errorf("Conductance() = %v, want %v", got, want)
	}
}

func TestResistorTemperatureCoefficients(t *testing.T) {
	r := NewResistor("R1", []string{"1", "0"}, 1000.0)
	r.Params.Get("tc1").SetGiven(0.01) // 1%/K
	r.Params.Get("tc2").SetGiven(0)

	tnom := r.Params.Get("tnom").Value()
	if err := r.Temp.Temperature(tnom + 10); err != nil {
		t.Fatalf("Temperature() error: %v", err)
	}

	want := 1.0 / (1000.0 * 1.1) // R(T) = R0*(1+tc1*dT) = 1000*(1+0.01*10)
	if got := r.Temp.Conductance(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Conductance() after +10K = %v, want %v", got, want)
	}
}

// TestResistorStampSolvesOhmsLaw stamps a single resistor between node 1 and
// ground, injects a known current at node 1, and checks the solved node
// voltage against V = I*R rather than poking at matrix internals directly.
func TestResistorStampSolvesOhmsLaw(t *testing.T) {
	r := NewResistor("R1", []string{"1", "0"}, 100.0)
	r.Load.Nodes = []int{1, 0}

	m := matrix.NewMatrix(1, false)
	status := &CircuitStatus{Temp: 300.15}
	if err := r.Stamp(m, status); err != nil {
		t.Fatalf("Stamp() error: %v", err)
	}

	const injected = 0.01 // 10mA
	m.AddRHS(1, injected)

	if err := m.Solve(); err != nil {
		t.Fatalf("Solve() error: %v", err)
	}

	want := injected * 100.0
	if got := m.Solution()[1]; math.Abs(got-want) > 1e-9 {
		t.Errorf("V(1) = %v, want %v (I*R)", got, want)
	}
}

func TestResistorBehaviorFactoryWiresNoise(t *testing.T) {
	values := map[string]float64{"R1": 2000.0}
	factory := NewResistorBehaviorFactory(values)

	inst, err := factory("R1", []int{1, 0})
	if err != nil {
		t.Fatalf("factory() error: %v", err)
	}
	rb, ok := inst.(*ResistorBehavior)
	if !ok {
		t.Fatalf("factory() returned %T, want *ResistorBehavior", inst)
	}

	var _ behavior.NoiseBehavior = rb // compile-time capability check

	status := &behavior.CircuitStatus{Temp: 300.15}
	psd := rb.CalculateNoise(status)

	g := 1.0 / 2000.0
	want := 4.0 * consts.BOLTZMANN * status.Temp * g
	if math.Abs(psd-want) > 1e-30 {
		t.Errorf("CalculateNoise() = %v, want %v", psd, want)
	}
}

func TestResistorNoiseScalesWithConductance(t *testing.T) {
	lo := NewResistor("Rlo", []string{"1", "0"}, 1e6)
	hi := NewResistor("Rhi", []string{"1", "0"}, 1e3)

	noiseLo := &ResistorNoise{Temp: lo.Temp}
	noiseHi := &ResistorNoise{Temp: hi.Temp}
	status := &behavior.CircuitStatus{Temp: 300.15}

	if noiseLo.CalculateNoise(status) >= noiseHi.CalculateNoise(status) {
		t.Errorf("a larger resistance (smaller G) should have lower thermal noise PSD")
	}
}
