// Package state implements a state pool: solution vectors, per-device
// history rings, and derivative slots used by the integration framework.
//
// A device that needs its own two-deep history (Capacitor's voltage/charge
// pair, Inductor's current/flux pair, a BJT's previous junction voltages)
// would otherwise hand-roll a pair of "0"/"1" suffixed fields and the
// shift-on-push logic that goes with them. This package generalizes that
// into one owned facility with a configurable-depth ring, so a device asks
// for a Slot instead.
package state

import "github.com/spicekernel/engine/pkg/integrate"

// History is a fixed-depth circular buffer holding the last k accepted
// values of a continuously-valued quantity (a voltage, a charge). Reads at
// offset 0 return the most recently pushed value, offset 1 the one before
// that, and so on.
type History struct {
	values []float64
	times  []float64
	depth  int
	filled int
}

// NewHistory returns a History with room for depth accepted values.
func NewHistory(depth int) *History {
	if depth < 1 {
		depth = 1
	}
	return &History{values: make([]float64, depth), times: make([]float64, depth), depth: depth}
}

// Push records a new accepted (time, value) pair, shifting older entries
// back. Pushing a time not strictly greater than the most recent entry
// violates the monotonicity invariant and is a caller bug; Push does not
// itself validate monotonicity — the analysis driver is the single writer
// and is responsible for only accepting increasing timepoints.
func (h *History) Push(time, value float64) {
	copy(h.values[1:], h.values[:h.depth-1])
	copy(h.times[1:], h.times[:h.depth-1])
	h.values[0] = value
	h.times[0] = time
	if h.filled < h.depth {
		h.filled++
	}
}

// At returns the value k timepoints back (0 = most recent).
func (h *History) At(k int) float64 {
	if k < 0 || k >= h.depth {
		return 0
	}
	return h.values[k]
}

// TimeAt returns the timestamp k timepoints back.
func (h *History) TimeAt(k int) float64 {
	if k < 0 || k >= h.depth {
		return 0
	}
	return h.times[k]
}

// Filled reports how many entries have actually been pushed (bounded by
// depth), so callers can tell a cold-started history from a full one.
func (h *History) Filled() int { return h.filled }

// Seed initializes offset-0 without shifting, for use at t=0 / UIC startup
// before any step has been accepted.
func (h *History) Seed(time, value float64) {
	h.values[0] = value
	h.times[0] = time
	if h.filled == 0 {
		h.filled = 1
	}
}

// Slot is a derivative slot: a state variable whose time derivative
// is computed by the active integration formula. It holds the history of
// values, the most recent derivative, and the Jacobian coefficient
// (∂q/∂v) produced by the last Integrate call.
type Slot struct {
	Value    *History // the quantity itself (e.g. charge, flux)
	derivOld float64  // previous accepted derivative, needed by Trapezoidal
	deriv    float64
	coeff    float64 // d(derivative)/d(Value[0]), i.e. the formula's leading coefficient / dt
}

// NewSlot returns a Slot with a history deep enough for maxOrder.
func NewSlot(maxOrder int) *Slot {
	depth := maxOrder + 1
	if depth < 2 {
		depth = 2
	}
	return &Slot{Value: NewHistory(depth)}
}

// Integrate applies the integration method's formula to the slot's current
// value (already pushed via Value.Seed/Push by the caller before calling
// Integrate), updating the stored derivative and its Jacobian coefficient.
func (s *Slot) Integrate(method integrate.Method, order int, dt float64) {
	// Trapezoidal's order-2 formula needs the previous step's derivative
	// directly rather than another history sample; thread it through if
	// the active method is trapezoidal.
	if tr, ok := method.(integrate.Trapezoidal); ok {
		method = tr.WithPrevDerivative(s.deriv)
	}
	d, coeff := method.Derivative(s.Value, order, dt)
	s.derivOld = s.deriv
	s.deriv = d
	s.coeff = coeff
}

// Derivative returns the most recently computed derivative (q̇, i.e. the
// branch current for a capacitor or the branch voltage for an inductor).
func (s *Slot) Derivative() float64 { return s.deriv }

// Jacobian returns g = cap * coeff, the conductance contribution the
// formula's leading term produces when the slot's quantity is
// cap-proportional to the controlling voltage (q = cap*v).
func (s *Slot) Jacobian(cap float64) float64 {
	return cap * s.coeff
}

// RHSCurrent returns the Norton-equivalent RHS contribution g*v - derivative.
func (s *Slot) RHSCurrent(g, v float64) float64 {
	return g*v - s.deriv
}

// LocalTruncationError estimates the next maximum safe timestep for this
// slot using the divided-difference formula for the given order. trtol and
// epsilon are the acceptance factor and the solver's absolute tolerance
// respectively.
func (s *Slot) LocalTruncationError(order int, dt, trtol, epsilon float64) float64 {
	return integrate.LocalTruncationError(s.Value, order, dt, trtol, epsilon)
}

// Pool owns every piece of per-simulation mutable numeric state that isn't
// itself a matrix cell: the node solution vectors, temperature, Gmin, and
// the initialization-mode flag.
type Pool struct {
	Solution     []float64 // current Newton iterate
	PrevIterate  []float64 // previous Newton iterate within the same solve
	PrevAccepted []float64 // previous accepted timepoint's solution

	Temperature float64
	Gmin        float64
	InitMode    InitModeState
}

// InitModeState mirrors behavior.InitMode without importing the behavior
// package, avoiding an import cycle (behavior depends on matrix, not on
// state; state is a leaf consumed by behavior implementations in pkg/device).
type InitModeState int

const (
	InitJunction InitModeState = iota
	InitFix
	Normal
)

// NewPool allocates a Pool sized for size unknowns (size+1 for 1-based
// indexing, matching the matrix package's convention).
func NewPool(size int) *Pool {
	return &Pool{
		Solution:     make([]float64, size+1),
		PrevIterate:  make([]float64, size+1),
		PrevAccepted: make([]float64, size+1),
		Gmin:         1e-12,
		Temperature:  300.15,
		InitMode:     InitJunction,
	}
}

// AdvanceIteration snapshots Solution into PrevIterate, for use between
// Newton iterations within one solve.
func (p *Pool) AdvanceIteration(solution []float64) {
	copy(p.PrevIterate, p.Solution)
	copy(p.Solution, solution)
}

// AcceptTimepoint snapshots the converged Solution into PrevAccepted, for
// use once a transient/DC point is accepted.
func (p *Pool) AcceptTimepoint() {
	copy(p.PrevAccepted, p.Solution)
}

// Resize grows every vector in the pool to accommodate a larger node count
// (e.g. after new internal nodes were created during setup), preserving
// existing values.
func (p *Pool) Resize(size int) {
	p.Solution = growFloat(p.Solution, size+1)
	p.PrevIterate = growFloat(p.PrevIterate, size+1)
	p.PrevAccepted = growFloat(p.PrevAccepted, size+1)
}

func growFloat(v []float64, n int) []float64 {
	if len(v) >= n {
		return v
	}
	out := make([]float64, n)
	copy(out, v)
	return out
}
