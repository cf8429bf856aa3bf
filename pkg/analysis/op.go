package analysis

import (
	"fmt"
	"math"

	"github.com/spicekernel/engine/pkg/circuit"
	"github.com/spicekernel/engine/pkg/device"
	"github.com/spicekernel/engine/pkg/matrix"
	"github.com/spicekernel/engine/pkg/result"
)

// OperatingPoint solves the DC operating point: a pure Newton iteration,
// escalating to Gmin stepping and then source stepping when the plain
// iteration fails to converge from a zero/linear-only initial guess.
type OperatingPoint struct {
	BaseAnalysis
}

func NewOP() *OperatingPoint {
	op := &OperatingPoint{BaseAnalysis: *NewBaseAnalysis()}
	op.StepKey = "" // a lone operating point has no sweep/time axis
	return op
}

func (op *OperatingPoint) Setup(ckt *circuit.Circuit) error {
	op.Circuit = ckt
	return nil
}

// doNRiter runs one bare Newton loop at the given Gmin, up to Config.Itl1
// iterations, using Config.Reltol/Abstol for the solution-vector
// convergence test.
func (op *OperatingPoint) doNRiter(gmin float64, maxIter int) error {
	var err error

	ckt := op.Circuit
	mat := ckt.GetMatrix()
	pool := op.EnsurePool(mat.Size)
	ckt.Status = &device.CircuitStatus{
		Time: 0,
		Mode: device.OperatingPointAnalysis,
		Temp: op.Config.Temperature,
		Gmin: gmin,
	}

	for iter := range maxIter {
		mat.Clear()

		// First iteration have no previous solution so, skip
		if iter > 0 {
			err = ckt.UpdateNonlinearVoltages(pool.Solution)
			if err != nil {
				return fmt.Errorf("updating nonlinear voltages: %v", err)
			}
		}

		err = ckt.Stamp(ckt.Status)
		if err != nil {
			return fmt.Errorf("stamping error: %v", err)
		}
		mat.LoadGmin(gmin)

		err = mat.Solve()
		if err != nil {
			return fmt.Errorf("matrix solve error: %v", err)
		}

		solution := mat.Solution()

		if iter > 0 && op.CheckConvergence(pool.Solution, solution) {
			return nil
		}

		pool.AdvanceIteration(solution)
	}

	return fmt.Errorf("failed to converge in %d iterations", maxIter)
}

// calculateInitialEstimate solves a cheap linear-only sub-matrix (every
// nonlinear device skipped entirely) to produce a starting guess for the
// real Newton loop, rather than starting cold from all-zero node voltages.
func (op *OperatingPoint) calculateInitialEstimate() []float64 {
	ckt := op.Circuit
	size := ckt.GetMatrix().Size

	initialMatrix := matrix.NewMatrix(size, false)

	for _, dev := range ckt.GetDevices() {
		if _, isNonlinear := dev.(device.NonLinear); !isNonlinear {
			dev.Stamp(initialMatrix, ckt.Status)
		}
	}

	if err := initialMatrix.Solve(); err != nil {
		return nil
	}

	return initialMatrix.Solution()
}

// performSourceStepping ramps every voltage source from 10% to 100% of its
// nominal value, solving at each step, so a circuit whose Gmin-stepped
// Newton loop still fails to converge gets one more recovery path: a
// smaller-signal operating point is easier to find and each successive
// step's solution seeds the next.
func (op *OperatingPoint) performSourceStepping() error {
	ckt := op.Circuit

	originalSources := make(map[string]float64)
	for _, dev := range ckt.GetDevices() {
		if v, ok := dev.(*device.VoltageSource); ok {
			originalSources[v.GetName()] = v.GetValue()
			v.SetValue(v.GetValue() * 0.1)
		}
	}

	defer func() {
		for name, origValue := range originalSources {
			for _, dev := range ckt.GetDevices() {
				if dev.GetName() == name {
					if v, ok := dev.(*device.VoltageSource); ok {
						v.SetValue(origValue)
					}
				}
			}
		}
	}()

	for factor := 0.1; factor <= 1.0; factor += 0.1 {
		for name, origValue := range originalSources {
			for _, dev := range ckt.GetDevices() {
				if dev.GetName() == name {
					if v, ok := dev.(*device.VoltageSource); ok {
						v.SetValue(origValue * factor)
					}
				}
			}
		}

		if err := op.doNRiter(0, op.Config.Itl1); err != nil {
			return fmt.Errorf("source stepping failed at %.0f%%: %v", factor*100, err)
		}
	}

	return nil
}

// Execute finds the operating point, escalating through three recovery
// strategies in order: (1) a bare Newton solve from the linear-only initial
// estimate; (2) Gmin stepping, ramping a shunt conductance at every node
// down one decade at a time from startGmin*10^gminSteps to startGmin
// (startGmin is 0.001 per matrix row), stopping at the first failed solve,
// then solving once more with no extra shunt; (3) source
// stepping (performSourceStepping). Each strategy's result seeds the next,
// so a circuit that needs source stepping still benefits from whatever
// Gmin-relaxed solution preceded it.
func (op *OperatingPoint) Execute() error {
	ckt := op.Circuit
	mat := ckt.GetMatrix()

	if initial := op.calculateInitialEstimate(); initial != nil {
		_ = ckt.UpdateNonlinearVoltages(initial)
	}

	if err := op.doNRiter(0, op.Config.Itl1); err == nil {
		op.Pool.AcceptTimepoint()
		op.storeResults(mat.Solution())
		return nil
	}

	const gminSteps = 10
	startGmin := float64(mat.Size) * 0.001
	gmin := startGmin * math.Pow(10, float64(gminSteps))

	for i := 0; i <= gminSteps; i++ {
		if err := op.doNRiter(gmin, op.Config.Itl1); err != nil {
			break
		}
		gmin /= 10
	}

	if err := op.doNRiter(0, op.Config.Itl1); err == nil {
		op.Pool.AcceptTimepoint()
		op.storeResults(mat.Solution())
		return nil
	}

	if err := op.performSourceStepping(); err != nil {
		return fmt.Errorf("source stepping failed: %v", err)
	}

	if err := op.doNRiter(0, op.Config.Itl1); err != nil {
		return fmt.Errorf("final solution failed: %v", err)
	}

	op.Pool.AcceptTimepoint()
	op.storeResults(mat.Solution())
	return nil
}

// storeResults reports the converged node voltages and branch currents to
// the result sink as a single step (step=0: an operating point has no
// sweep/time axis of its own).
func (op *OperatingPoint) storeResults(solution []float64) {
	points := make([]result.Point, 0, len(op.Circuit.GetNodeMap())+len(op.Circuit.GetBranchMap()))

	for nodeName, nodeIdx := range op.Circuit.GetNodeMap() {
		if nodeIdx > 0 {
			points = append(points, result.Point{Name: fmt.Sprintf("V(%s)", nodeName), Value: solution[nodeIdx]})
		}
	}
	for devName, branchIdx := range op.Circuit.GetBranchMap() {
		points = append(points, result.Point{Name: fmt.Sprintf("I(%s)", devName), Value: solution[branchIdx]})
	}

	op.Results.Accept(0, points)
}
