package device

import (
	"math"

	"github.com/spicekernel/engine/pkg/matrix"
	"github.com/spicekernel/engine/pkg/state"
)

// Inductor mirrors Capacitor's companion-model machinery with the branch
// current (the MNA extra unknown at branchIdx) as the state variable
// instead of a node voltage: v = L di/dt becomes a branch equation stamped
// with the same Gear/Trapezoidal formula pkg/state.Slot/pkg/integrate
// drive for Capacitor. voltage0/1 are tracked separately only to satisfy
// InductorComponent (mutual.go's coupling reads GetCurrent(); nothing
// currently reads the voltage getters, but the interface requires them).
type Inductor struct {
	BaseDevice
	slot      *state.Slot
	branchIdx int
	voltage0  float64
	voltage1  float64

	pending     bool
	pendingTime float64
	haveCoeffs  bool
	coeffDt     float64
	geq, ceq    float64
}

var _ TimeDependent = (*Inductor)(nil)

func NewInductor(name string, nodeNames []string, value float64) *Inductor {
	return &Inductor{
		BaseDevice: BaseDevice{
			Name:      name,
			Value:     value,
			Nodes:     make([]int, len(nodeNames)),
			NodeNames: nodeNames,
		},
		slot: state.NewSlot(6),
	}
}

func (l *Inductor) GetType() string { return "L" }

func (l *Inductor) SetTimeStep(dt float64, status *CircuitStatus) { status.TimeStep = dt }

func (l *Inductor) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	n1, n2 := l.Nodes[0], l.Nodes[1]
	bIdx := l.branchIdx

	switch status.Mode {
	case ACAnalysis:
		omega := 2 * math.Pi * status.Frequency
		if n1 != 0 {
			matrix.AddComplexElement(n1, n1, 0, omega*l.Value)
			if n2 != 0 {
				matrix.AddComplexElement(n1, n2, 0, -omega*l.Value)
			}
		}
		if n2 != 0 {
			matrix.AddComplexElement(n2, n2, 0, omega*l.Value)
			if n1 != 0 {
				matrix.AddComplexElement(n2, n1, 0, -omega*l.Value)
			}
		}

	default:
		if n1 != 0 {
			matrix.AddElement(n1, bIdx, -1)
			matrix.AddElement(bIdx, n1, -1)
		}
		if n2 != 0 {
			matrix.AddElement(n2, bIdx, 1)
			matrix.AddElement(bIdx, n2, 1)
		}

		dt := status.TimeStep
		if dt <= 0 {
			dt = 1e-9
		}

		// Open a slot for the unknown branch current at this timepoint by
		// shifting the accepted history back one place, same protocol as
		// Capacitor; the placeholder cancels out of RHSCurrent exactly.
		if !l.pending || status.Time != l.pendingTime {
			l.slot.Value.Push(status.Time, l.slot.Value.At(0))
			l.pending = true
			l.pendingTime = status.Time
			l.haveCoeffs = false
		}

		if !l.haveCoeffs || dt != l.coeffDt {
			order := status.Order
			if order < 1 {
				order = 1
			}
			l.slot.Integrate(integrationMethodFor(status.Method), order, dt)
			rawCoeff := l.slot.Jacobian(1.0)
			placeholder := l.slot.Value.At(0)
			l.geq = l.Value * rawCoeff
			l.ceq = l.Value * l.slot.RHSCurrent(rawCoeff, placeholder)
			l.coeffDt = dt
			l.haveCoeffs = true
		}

		matrix.AddElement(bIdx, bIdx, -l.geq)
		matrix.AddRHS(bIdx, l.ceq)
	}

	return nil
}

// UpdateState commits the converged branch current for this timepoint.
func (l *Inductor) UpdateState(voltages []float64, status *CircuitStatus) {
	v1 := 0.0
	if l.Nodes[0] != 0 {
		v1 = voltages[l.Nodes[0]]
	}
	v2 := 0.0
	if l.Nodes[1] != 0 {
		v2 = voltages[l.Nodes[1]]
	}
	l.voltage1 = l.voltage0
	l.voltage0 = v1 - v2

	i := 0.0
	bIdx := l.branchIdx
	if bIdx > 0 && bIdx < len(voltages) {
		i = voltages[bIdx]
	}
	l.slot.Value.Seed(status.Time, i)
	l.pending = false
}

// CalculateLTE reuses the derivative the last Stamp call's Integrate
// already computed for this timepoint.
func (l *Inductor) CalculateLTE(voltages map[string]float64, status *CircuitStatus) float64 {
	return math.Abs(l.Value * l.slot.Derivative())
}

func (l *Inductor) GetCurrent() float64 { return l.slot.Value.At(0) }

func (l *Inductor) GetPreviousCurrent() float64 { return l.slot.Value.At(1) }

func (l *Inductor) GetVoltage() float64 { return l.voltage0 }

func (l *Inductor) GetPreviousVoltage() float64 { return l.voltage1 }

// BranchIndex getter
func (l *Inductor) BranchIndex() int {
	return l.branchIdx
}

// BranchIndex setter
func (l *Inductor) SetBranchIndex(idx int) {
	l.branchIdx = idx
}
