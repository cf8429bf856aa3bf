package device

import (
	"fmt"

	"github.com/spicekernel/engine/pkg/matrix"
)

// Switch is a voltage-controlled switch with hysteresis: the controlling
// voltage vc = V(nc+)-V(nc-) must cross Vt+Vh to turn on and Vt-Vh to turn
// off, so a controlling voltage sitting exactly at Vt does not chatter.
// On/off resistances are used directly as the stamped conductance — no
// exponential branch, so it never needs junction-voltage limiting.
type Switch struct {
	BaseDevice

	Vt  float64
	Vh  float64
	Ron float64
	Roff float64

	on        bool // state as of the last Accept
	iterState bool // tentative state during the current Newton iteration
}

var _ Device = (*Switch)(nil)
var _ NonLinear = (*Switch)(nil)
var _ TimeDependent = (*Switch)(nil)
var _ ACElement = (*Switch)(nil)

func NewSwitch(name string, nodeNames []string, vt, vh, ron, roff float64) *Switch {
	if len(nodeNames) != 4 {
		panic(fmt.Sprintf("switch %s: requires exactly 4 nodes (n+, n-, nc+, nc-)", name))
	}
	return &Switch{
		BaseDevice: BaseDevice{
			Name:      name,
			Nodes:     make([]int, len(nodeNames)),
			NodeNames: nodeNames,
		},
		Vt:   vt,
		Vh:   vh,
		Ron:  ron,
		Roff: roff,
	}
}

func (s *Switch) GetType() string { return "S" }

// controlVoltage reads vc from the last solved node values.
func (s *Switch) controlVoltage(voltages []float64) float64 {
	ncp, ncm := s.Nodes[2], s.Nodes[3]
	var vp, vm float64
	if ncp != 0 && ncp < len(voltages) {
		vp = voltages[ncp]
	}
	if ncm != 0 && ncm < len(voltages) {
		vm = voltages[ncm]
	}
	return vp - vm
}

// UpdateVoltages recomputes the tentative on/off state from the controlling
// voltage using the hysteresis band [Vt-Vh, Vt+Vh]; inside the band the
// previous accepted state is kept, so the switch cannot chatter within one
// Newton iteration either.
func (s *Switch) UpdateVoltages(voltages []float64) error {
	vc := s.controlVoltage(voltages)
	switch {
	case vc >= s.Vt+s.Vh:
		s.iterState = true
	case vc <= s.Vt-s.Vh:
		s.iterState = false
	default:
		s.iterState = s.on
	}
	return nil
}

func (s *Switch) conductance() float64 {
	if s.iterState {
		return 1.0 / s.Ron
	}
	return 1.0 / s.Roff
}

// LoadConductance and LoadCurrent let Switch satisfy device.NonLinear so the
// Newton loop calls UpdateVoltages every iteration, keeping iterState current
// even though the present voltage-only convergence test doesn't check it.
func (s *Switch) LoadConductance(m matrix.DeviceMatrix) error {
	n1, n2 := s.Nodes[0], s.Nodes[1]
	stampConductance(m, n1, n2, s.conductance())
	return nil
}

func (s *Switch) LoadCurrent(m matrix.DeviceMatrix) error { return nil }

func (s *Switch) Stamp(m matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(s.Nodes) != 4 {
		return fmt.Errorf("switch %s: requires exactly 4 nodes", s.Name)
	}
	n1, n2 := s.Nodes[0], s.Nodes[1]
	stampConductance(m, n1, n2, s.conductance())
	return nil
}

func (s *Switch) StampAC(m matrix.DeviceMatrix, status *CircuitStatus) error {
	n1, n2 := s.Nodes[0], s.Nodes[1]
	stampComplexConductance(m, n1, n2, s.conductance(), 0)
	return nil
}

// IsConvergent reports whether the tentative state matches the last
// accepted state — a state flip means the circuit has not yet settled on
// which branch it is operating in. No analysis driver calls it: their
// Newton loops test node voltages only.
func (s *Switch) IsConvergent(reltol, abstol, vntol float64) bool {
	return s.iterState == s.on
}

// Accept commits the tentative state as the new accepted state. UpdateState
// calls it once per accepted transient timepoint, after the Newton solver
// has converged. It takes the device package's CircuitStatus, so Switch
// does not satisfy behavior.AcceptBehavior.
func (s *Switch) Accept(status *CircuitStatus) error {
	s.on = s.iterState
	return nil
}

func (s *Switch) SetTimeStep(dt float64, status *CircuitStatus) {}

func (s *Switch) UpdateState(voltages []float64, status *CircuitStatus) {
	s.Accept(status)
}

func (s *Switch) CalculateLTE(voltages map[string]float64, status *CircuitStatus) float64 {
	return 0
}
