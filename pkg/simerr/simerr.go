// Package simerr defines the error taxonomy shared by the solver, the
// integration framework and the analysis drivers. Values, not exception
// types: every failure mode the engine recognizes is a concrete struct
// callers can recover with errors.As.
package simerr

import "fmt"

// SingularMatrixError reports that factorization failed at a specific pivot.
type SingularMatrixError struct {
	Row int
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("singular matrix at row %d", e.Row)
}

// NoConvergenceError reports that Newton iteration exceeded its cap.
type NoConvergenceError struct {
	IterationCap int
}

func (e *NoConvergenceError) Error() string {
	return fmt.Sprintf("no convergence after %d iterations", e.IterationCap)
}

// TimestepTooSmallError reports that the LTE controller hit its floor.
type TimestepTooSmallError struct {
	Time     float64
	Timestep float64
}

func (e *TimestepTooSmallError) Error() string {
	return fmt.Sprintf("timestep too small at t=%g: dt=%g", e.Time, e.Timestep)
}

// PinCountMismatchError reports a wiring error found at setup.
type PinCountMismatchError struct {
	Expected int
	Got      int
}

func (e *PinCountMismatchError) Error() string {
	return fmt.Sprintf("pin count mismatch: expected %d, got %d", e.Expected, e.Got)
}

// MissingParameterError reports a required parameter that was never given.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Name)
}

// ModelParameterOutOfRangeError reports a parameter value outside its
// physically valid domain (e.g. a negative area).
type ModelParameterOutOfRangeError struct {
	Name  string
	Value float64
}

func (e *ModelParameterOutOfRangeError) Error() string {
	return fmt.Sprintf("model parameter %q out of range: %g", e.Name, e.Value)
}

// CircuitTopologyErrorKind enumerates topology faults. No setup step in this
// module checks for them or returns a CircuitTopologyError.
type CircuitTopologyErrorKind int

const (
	FloatingNode CircuitTopologyErrorKind = iota
	VoltageSourceLoop
)

func (k CircuitTopologyErrorKind) String() string {
	switch k {
	case FloatingNode:
		return "floating node"
	case VoltageSourceLoop:
		return "voltage source loop"
	default:
		return "unknown topology error"
	}
}

// CircuitTopologyError reports a structural problem with the netlist graph.
type CircuitTopologyError struct {
	Kind CircuitTopologyErrorKind
}

func (e *CircuitTopologyError) Error() string {
	return fmt.Sprintf("circuit topology error: %s", e.Kind)
}

// ErrCancelled is the error value for a cancelled simulation. No analysis
// driver in this module polls for cancellation or returns it.
var ErrCancelled = fmt.Errorf("simulation cancelled")
