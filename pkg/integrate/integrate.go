// Package integrate implements a variable-order implicit integration
// framework: Trapezoidal/Gear formulas and LTE-based timestep proposals.
//
// The Gear/BDF coefficient table is the standard SPICE3F5 coefficient table
// every derivative of Berkeley SPICE reuses; there is no reason to recompute
// it from scratch. LTE estimation and timestep control generalize a
// hardcoded order-1/2 toggle into a full order-k framework.
package integrate

import (
	"math"

	"github.com/spicekernel/engine/pkg/simerr"
	"github.com/spicekernel/engine/pkg/util"
)

// Series is the minimal read view a derivative slot's history must expose:
// the k-th most recent value (0 = current). Defined narrowly here (rather
// than depending on pkg/state's concrete History) so pkg/state can depend on
// pkg/integrate without an import cycle.
type Series interface {
	At(k int) float64
	TimeAt(k int) float64
	Filled() int
}

// Method is an implicit integration formula: given a quantity's history,
// the target order, and the timestep, Derivative returns the estimated
// derivative at the current point and the Jacobian coefficient (the
// current value's coefficient in the derivative formula, before
// multiplying by any per-device capacitance/inductance).
type Method interface {
	Derivative(s Series, order int, dt float64) (derivative, coeff float64)
	MaxOrder() int
	Name() string
}

// Gear is the variable-order (1-6) Backward Differentiation Formula method.
// The coefficient table itself lives in pkg/util (the standard SPICE3F5
// table); Gear only sequences it against a Series.
type Gear struct{}

func (Gear) Name() string  { return "gear" }
func (Gear) MaxOrder() int { return 6 }

// Derivative implements ẋ ≈ Σ αᵢ·x[t−i] / Δt using pkg/util's tabulated BDF
// coefficients.
func (Gear) Derivative(s Series, order int, dt float64) (float64, float64) {
	if order < 1 {
		order = 1
	}
	if order > 6 {
		order = 6
	}
	// Fall back to a lower order until enough history has accumulated;
	// a cold-started slot cannot yet support a high-order formula.
	if avail := s.Filled(); avail-1 < order {
		order = avail - 1
		if order < 1 {
			order = 1
		}
	}

	coeffs := util.GetBDFcoeffs(order, dt)
	deriv := coeffs[0] * s.At(0)
	for i := 1; i <= order; i++ {
		deriv += coeffs[i] * s.At(i)
	}
	return deriv, coeffs[0]
}

// Trapezoidal is the fixed second-order trapezoidal rule, with first-order
// (Backward Euler) as its degraded startup form.
type Trapezoidal struct {
	// prevDerivative must be supplied by the caller for order 2, since the
	// trapezoidal formula needs ẋ[t-1] directly rather than another history
	// sample. Set via WithPrevDerivative before calling Derivative.
	prevDerivative float64
}

func (Trapezoidal) Name() string  { return "trapezoidal" }
func (Trapezoidal) MaxOrder() int { return 2 }

// WithPrevDerivative returns a Trapezoidal carrying ẋ[t-1], needed for the
// order-2 formula ẋ ≈ (2/Δt)(x[t]−x[t−1]) − ẋ[t−1].
func (Trapezoidal) WithPrevDerivative(prev float64) Trapezoidal {
	return Trapezoidal{prevDerivative: prev}
}

// Derivative implements the order-2 trapezoidal rule, falling back to
// order-1 Backward Euler when order requests 1 or history is too shallow.
func (t Trapezoidal) Derivative(s Series, order int, dt float64) (float64, float64) {
	if order < 1 {
		order = 1
	}
	if order > 2 {
		order = 2
	}
	if s.Filled() < 2 {
		order = 1
	}

	if order == 1 {
		coeff := 1.0 / dt
		return coeff * (s.At(0) - s.At(1)), coeff
	}

	coeff := 2.0 / dt
	deriv := coeff*(s.At(0)-s.At(1)) - t.prevDerivative
	return deriv, coeff
}

// LocalTruncationError estimates the per-step error of the active formula
// at the given order using the divided-difference formula, and returns the
// proposed next maximum timestep Δt_new = Δt·(ε/lte)^(1/(k+1)). trtol is the
// LTE acceptance factor; epsilon is the solver's absolute tolerance floor.
func LocalTruncationError(s Series, order int, dt, trtol, epsilon float64) float64 {
	if order < 1 {
		order = 1
	}
	if s.Filled() <= order {
		// Not enough history to form a divided difference of this order;
		// propose no change yet.
		return math.Inf(1)
	}

	dd := dividedDifference(s, order+1)
	lte := math.Abs(dd) * math.Pow(dt, float64(order+1))

	if lte <= 0 {
		return math.Inf(1)
	}

	factor := math.Pow((trtol*epsilon)/lte, 1.0/float64(order+1))
	return dt * factor
}

// dividedDifference computes the k-th order divided difference of s's last
// k+1 accepted samples, using the stored (time, value) history.
func dividedDifference(s Series, k int) float64 {
	times := make([]float64, k+1)
	values := make([]float64, k+1)
	for i := 0; i <= k; i++ {
		times[i] = s.TimeAt(i)
		values[i] = s.At(i)
	}

	// Newton's divided-difference table, built bottom-up over a scratch
	// copy of values.
	work := append([]float64(nil), values...)
	for j := 1; j <= k; j++ {
		for i := 0; i <= k-j; i++ {
			denom := times[i] - times[i+j]
			if denom == 0 {
				return 0
			}
			work[i] = (work[i] - work[i+1]) / denom
		}
	}
	return work[0]
}

// Controller drives the Prospect -> Load -> Solve -> Accept? timestep state
// machine, shrinking on Newton/LTE failure and growing on success, bounded
// by [MinStep, MaxStep].
type Controller struct {
	MinStep float64
	MaxStep float64
	TrTol   float64

	dt float64
}

// NewController returns a Controller proposing an initial step of dt,
// bounded to [minStep, maxStep].
func NewController(dt, minStep, maxStep, trtol float64) *Controller {
	return &Controller{dt: dt, MinStep: minStep, MaxStep: maxStep, TrTol: trtol}
}

// Current returns the timestep currently proposed for the next attempt.
func (c *Controller) Current() float64 { return c.dt }

// OnNewtonFailure halves the timestep, returning *simerr.TimestepTooSmallError
// if the floor is breached.
func (c *Controller) OnNewtonFailure(time float64) error {
	c.dt /= 2
	if c.dt < c.MinStep {
		c.dt = c.MinStep
		return &simerr.TimestepTooSmallError{Time: time, Timestep: c.dt}
	}
	return nil
}

// OnLTEFailure shrinks the timestep toward the LTE controller's proposal
// (assumed already below the current step), returning
// *simerr.TimestepTooSmallError if the floor is breached.
func (c *Controller) OnLTEFailure(time, proposed float64) error {
	next := proposed
	if next >= c.dt {
		next = c.dt / 2
	}
	c.dt = next
	if c.dt < c.MinStep {
		c.dt = c.MinStep
		return &simerr.TimestepTooSmallError{Time: time, Timestep: c.dt}
	}
	return nil
}

// OnSuccess accepts the current step and proposes the next one as the
// minimum LTE-derived Δt across every slot evaluated this step, clamped to
// MaxStep and allowed to grow by at most 10% per accepted step.
func (c *Controller) OnSuccess(minProposal float64) {
	next := minProposal
	if next > c.dt*1.1 {
		next = c.dt * 1.1
	}
	if next > c.MaxStep {
		next = c.MaxStep
	}
	if next < c.MinStep {
		next = c.MinStep
	}
	c.dt = next
}
