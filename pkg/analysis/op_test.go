package analysis

import (
	"math"
	"testing"

	"github.com/spicekernel/engine/pkg/circuit"
	"github.com/spicekernel/engine/pkg/netlist"
)

// buildCircuit parses a netlist and wires it the way cmd/main.go does:
// parse, assign node/branch maps, then build and stamp every device. It also
// installs the parsed .model cards with SetModels, which cmd/main.go does
// not call.
func buildCircuit(t *testing.T, src string) (*circuit.Circuit, *netlist.Circuit) {
	t.Helper()
	return buildCircuitComplex(t, src, false)
}

// buildCircuitComplex is buildCircuit but lets the caller request a
// complex-valued matrix, the way cmd/main.go does for AC/Noise analyses
// (circuit.NewWithComplex rather than circuit.New).
func buildCircuitComplex(t *testing.T, src string, isComplex bool) (*circuit.Circuit, *netlist.Circuit) {
	t.Helper()

	parsed, err := netlist.Parse(src)
	if err != nil {
		t.Fatalf("netlist.Parse() error: %v", err)
	}

	ckt := circuit.NewWithComplex(parsed.Title, isComplex)
	if err := ckt.AssignNodeBranchMaps(parsed.Elements); err != nil {
		t.Fatalf("AssignNodeBranchMaps() error: %v", err)
	}
	ckt.CreateMatrix()
	ckt.SetModels(parsed.Models)
	if err := ckt.SetupDevices(parsed.Elements); err != nil {
		t.Fatalf("SetupDevices() error: %v", err)
	}

	return ckt, parsed
}

// TestOperatingPointVoltageDivider checks a plain resistive divider: a 10V
// source across two 1k resistors in series should put 5V on the midpoint.
func TestOperatingPointVoltageDivider(t *testing.T) {
	src := "Voltage divider\n" +
		"V1 1 0 DC 10\n" +
		"R1 1 2 1k\n" +
		"R2 2 0 1k\n" +
		".op\n"

	ckt, _ := buildCircuit(t, src)

	op := NewOP()
	if err := op.Setup(ckt); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if err := op.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	results := op.GetResults()
	v2, ok := results["V(2)"]
	if !ok || len(v2) == 0 {
		t.Fatalf("missing V(2) in results: %v", results)
	}

	const want = 5.0
	if got := v2[0]; math.Abs(got-want) > 1e-6 {
		t.Errorf("V(2) = %v, want %v", got, want)
	}
}

// TestOperatingPointUnequalDivider checks the divider formula for an
// asymmetric ratio, not just the 50% midpoint case.
func TestOperatingPointUnequalDivider(t *testing.T) {
	src := "Unequal divider\n" +
		"V1 1 0 DC 9\n" +
		"R1 1 2 2k\n" +
		"R2 2 0 1k\n" +
		".op\n"

	ckt, _ := buildCircuit(t, src)

	op := NewOP()
	if err := op.Setup(ckt); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if err := op.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	results := op.GetResults()
	v2 := results["V(2)"]
	if len(v2) == 0 {
		t.Fatalf("missing V(2) in results: %v", results)
	}

	want := 9.0 * (1000.0 / (2000.0 + 1000.0)) // 3V
	if got := v2[0]; math.Abs(got-want) > 1e-6 {
		t.Errorf("V(2) = %v, want %v", got, want)
	}
}
