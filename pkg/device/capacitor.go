package device

import (
	"math"

	"github.com/spicekernel/engine/pkg/integrate"
	"github.com/spicekernel/engine/pkg/matrix"
	"github.com/spicekernel/engine/pkg/state"
)

// Capacitor stamps a Norton-equivalent companion model each transient
// timestep: a conductance geq in parallel with a current source ceq, both
// derived from the active integration formula (backward Euler/Gear or
// trapezoidal, per CircuitStatus.Method/Order) rather than a
// hardwired first-order backward-Euler formula. A pkg/state.Slot tracks
// the accepted voltage history (replacing a fixed Voltage0/Voltage1 pair),
// deep enough for Gear up to order 6.
type Capacitor struct {
	BaseDevice
	slot *state.Slot

	pending     bool
	pendingTime float64
	haveCoeffs  bool
	coeffDt     float64
	geq, ceq    float64
}

var _ TimeDependent = (*Capacitor)(nil)

func NewCapacitor(name string, nodeNames []string, value float64) *Capacitor {
	return &Capacitor{
		BaseDevice: BaseDevice{
			Name:      name,
			Nodes:     make([]int, len(nodeNames)),
			NodeNames: nodeNames,
			Value:     value,
		},
		slot: state.NewSlot(6),
	}
}

func NewCapacitorNotUse(name string, nodeNames []string, value float64) *Capacitor {
	return &Capacitor{BaseDevice: *NewBaseDevice(name, value, nodeNames, "C"), slot: state.NewSlot(6)}
}

func (c *Capacitor) GetType() string { return "C" }

// integrationMethodFor maps the circuit-wide BE/TR flag to the
// pkg/integrate.Method implementing that formula.
func integrationMethodFor(methodFlag int) integrate.Method {
	if methodFlag == TR {
		return integrate.Trapezoidal{}
	}
	return integrate.Gear{}
}

func (c *Capacitor) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	n1, n2 := c.Nodes[0], c.Nodes[1]

	switch status.Mode {
	case ACAnalysis:
		omega := 2 * math.Pi * status.Frequency
		capConductanceReal := 0.0
		capConductanceImag := omega * c.Value // C * jω

		if n1 != 0 {
			matrix.AddComplexElement(n1, n1, capConductanceReal, capConductanceImag)
			if n2 != 0 {
				matrix.AddComplexElement(n1, n2, -capConductanceReal, -capConductanceImag)
			}
		}
		if n2 != 0 {
			matrix.AddComplexElement(n2, n2, capConductanceReal, capConductanceImag)
			if n1 != 0 {
				matrix.AddComplexElement(n2, n1, -capConductanceReal, -capConductanceImag)
			}
		}

	case OperatingPointAnalysis:
		gmin := status.Gmin
		if gmin < 1e-12 {
			gmin = 1e-12
		}
		if n1 != 0 {
			matrix.AddElement(n1, n1, gmin)
			if n2 != 0 {
				matrix.AddElement(n1, n2, -gmin)
			}
		}
		if n2 != 0 {
			matrix.AddElement(n2, n2, gmin)
			if n1 != 0 {
				matrix.AddElement(n2, n1, -gmin)
			}
		}

	case TransientAnalysis:
		dt := status.TimeStep
		if dt <= 0 {
			dt = 1e-9
		}

		// A new timepoint opens a slot for the unknown present-time value by
		// shifting the accepted history back one place; the placeholder's
		// actual numeric value is immaterial since RHSCurrent cancels it
		// exactly (see UpdateState, which overwrites it in place once the
		// real value is known).
		if !c.pending || status.Time != c.pendingTime {
			c.slot.Value.Push(status.Time, c.slot.Value.At(0))
			c.pending = true
			c.pendingTime = status.Time
			c.haveCoeffs = false
		}

		if !c.haveCoeffs || dt != c.coeffDt {
			order := status.Order
			if order < 1 {
				order = 1
			}
			c.slot.Integrate(integrationMethodFor(status.Method), order, dt)
			rawCoeff := c.slot.Jacobian(1.0)
			placeholder := c.slot.Value.At(0)
			c.geq = c.Value * rawCoeff
			c.ceq = c.Value * c.slot.RHSCurrent(rawCoeff, placeholder)
			c.coeffDt = dt
			c.haveCoeffs = true
		}

		geq, ceq := c.geq, c.ceq
		if n1 != 0 {
			matrix.AddElement(n1, n1, geq)
			if n2 != 0 {
				matrix.AddElement(n1, n2, -geq)
			}
			matrix.AddRHS(n1, ceq)
		}
		if n2 != 0 {
			matrix.AddElement(n2, n2, geq)
			if n1 != 0 {
				matrix.AddElement(n2, n1, -geq)
			}
			matrix.AddRHS(n2, -ceq)
		}
	}

	return nil
}

func (c *Capacitor) SetTimeStep(dt float64, status *CircuitStatus) {}

// UpdateState commits the converged voltage for this timepoint, overwriting
// the placeholder Stamp opened at the start of the step without shifting
// (the shift already happened when the step began).
func (c *Capacitor) UpdateState(voltages []float64, status *CircuitStatus) {
	v1 := 0.0
	if c.Nodes[0] != 0 {
		v1 = voltages[c.Nodes[0]]
	}
	v2 := 0.0
	if c.Nodes[1] != 0 {
		v2 = voltages[c.Nodes[1]]
	}
	vd := v1 - v2

	c.slot.Value.Seed(status.Time, vd)
	c.pending = false
}

// CalculateLTE reuses the derivative the last Stamp call's Integrate
// already computed for this timepoint, rather than re-deriving it.
func (c *Capacitor) CalculateLTE(voltages map[string]float64, status *CircuitStatus) float64 {
	return math.Abs(c.Value * c.slot.Derivative())
}
