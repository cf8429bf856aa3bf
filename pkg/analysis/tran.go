package analysis

import (
	"fmt"
	"math"

	"github.com/spicekernel/engine/pkg/circuit"
	"github.com/spicekernel/engine/pkg/device"
	"github.com/spicekernel/engine/pkg/integrate"
)

// Transient runs a time-domain sweep from startTime to stopTime, retrying
// each timepoint with progressively larger Gmin shunts (its own fixed
// ladder, from Config.Gmin up to 1e-2) before shrinking the step, with the
// step size itself driven by an
// integrate.Controller: it shrinks on Newton failure and grows from the
// circuit's worst-case local truncation error on success, replacing a fixed
// 10% growth and a single halve-on-failure rule.
type Transient struct {
	BaseAnalysis
	op        *OperatingPoint
	time      float64
	startTime float64
	stopTime  float64
	timeStep  float64
	maxStep   float64
	minStep   float64
	useUIC    bool
}

func NewTransient(tStart, tStop, tStep, tMax float64, uic bool) *Transient {
	minStep := tStep / 50.0
	if tMax == 0 {
		tMax = tStep
	}

	tr := &Transient{
		BaseAnalysis: *NewBaseAnalysis(),
		op:           NewOP(),
		startTime:    tStart,
		stopTime:     tStop,
		timeStep:     tStep,
		maxStep:      tMax,
		minStep:      minStep,
		useUIC:       uic,
	}
	tr.Config.TStep = tStep
	tr.Config.TStop = tStop
	tr.Config.MaxStep = tMax
	tr.Config.UIC = uic
	return tr
}

func (tr *Transient) Setup(ckt *circuit.Circuit) error {
	tr.Circuit = ckt

	if !tr.useUIC {
		if err := tr.op.Setup(ckt); err != nil {
			return fmt.Errorf("operating point setup error: %v", err)
		}
		if err := tr.op.Execute(); err != nil {
			return fmt.Errorf("operating point analysis error: %v", err)
		}
	}

	tr.Circuit.SetTimeStep(tr.timeStep)
	return nil
}

// integrationSetup maps Config.Method/Order onto the BE/TR flag and order
// CircuitStatus carries to every device's Stamp call.
func (tr *Transient) integrationSetup() (int, int) {
	if tr.Config.Method == "trapezoidal" {
		return device.TR, 2
	}
	order := tr.Config.Order
	if order < 1 {
		order = 1
	}
	if order > 6 {
		order = 6
	}
	return device.BE, order
}

func (tr *Transient) Execute() error {
	if tr.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	controller := integrate.NewController(tr.timeStep, tr.minStep, tr.maxStep, tr.Config.Trtol)
	method, order := tr.integrationSetup()

	for tr.time < tr.stopTime {
		dt := controller.Current()
		nextTime := tr.time + dt
		if nextTime > tr.stopTime {
			nextTime = tr.stopTime
			dt = nextTime - tr.time
		}

		status := &device.CircuitStatus{
			Time:     tr.time,
			TimeStep: dt,
			Mode:     device.TransientAnalysis,
			Method:   method,
			Order:    order,
			Temp:     tr.Config.Temperature,
			Gmin:     tr.Config.Gmin,
		}
		tr.Circuit.Status = status

		// Gmin stepping: a circuit whose Newton loop fails to converge at
		// the nominal Gmin gets progressively more shunt conductance relief
		// before this timestep gives up and shrinks instead.
		gminValues := []float64{tr.Config.Gmin, 1e-11, 1e-10, 1e-9, 1e-8, 1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2}
		solved := false
		for _, gmin := range gminValues {
			status.Gmin = gmin
			if err := tr.doNRiter(gmin, tr.Config.Itl4, status); err == nil {
				solved = true
				break
			}
		}

		if !solved {
			if err := controller.OnNewtonFailure(tr.time); err != nil {
				return fmt.Errorf("failed to converge at t=%g: %v", tr.time, err)
			}
			continue
		}

		tr.Circuit.Update()
		tr.time = nextTime
		if tr.time >= tr.startTime {
			tr.StoreTimeResult(tr.time, tr.Circuit.GetSolution())
		}

		maxLTE := tr.calculateTruncError()
		proposed := proposedStepFromLTE(dt, maxLTE, float64(order), tr.Config.Trtol, tr.Config.Abstol)
		controller.OnSuccess(proposed)
	}

	return nil
}

func (tr *Transient) doNRiter(gmin float64, maxIter int, cktStatus *device.CircuitStatus) error {
	ckt := tr.Circuit
	mat := ckt.GetMatrix()
	pool := tr.EnsurePool(mat.Size)
	var oldSolution map[string]float64

	for iter := 0; iter < maxIter; iter++ {
		mat.Clear()

		if iter > 0 {
			if err := ckt.UpdateNonlinearVoltages(pool.Solution); err != nil {
				return fmt.Errorf("updating nonlinear voltages: %v", err)
			}
		}

		if err := ckt.Stamp(cktStatus); err != nil {
			return fmt.Errorf("stamping error: %v", err)
		}
		mat.LoadGmin(gmin)

		if err := mat.Solve(); err != nil {
			return fmt.Errorf("matrix solve error: %v", err)
		}

		pool.AdvanceIteration(mat.Solution())
		solution := ckt.GetSolution()
		if iter > 0 && tr.timeConverged(oldSolution, solution) {
			pool.AcceptTimepoint()
			return nil
		}

		if oldSolution == nil {
			oldSolution = make(map[string]float64, len(solution))
		}
		for k, v := range solution {
			oldSolution[k] = v
		}
	}

	return fmt.Errorf("failed to converge in %d iterations", maxIter)
}

func (tr *Transient) timeConverged(oldSolution, solution map[string]float64) bool {
	for key, value := range solution {
		oldValue, ok := oldSolution[key]
		if !ok {
			continue
		}
		diff := math.Abs(value - oldValue)
		reltol := tr.Config.Reltol*math.Max(math.Abs(value), math.Abs(oldValue)) + tr.Config.Abstol
		if diff > reltol {
			return false
		}
	}
	return true
}

// calculateTruncError takes the worst-case local truncation error magnitude
// across every time-dependent device, each reporting in its own native
// units via the shared device.TimeDependent.CalculateLTE contract.
func (tr *Transient) calculateTruncError() float64 {
	maxLTE := 0.0
	for _, dev := range tr.Circuit.GetDevices() {
		if td, ok := dev.(device.TimeDependent); ok {
			lte := td.CalculateLTE(tr.Circuit.GetSolution(), tr.Circuit.Status)
			if lte > maxLTE {
				maxLTE = lte
			}
		}
	}
	return maxLTE
}

// proposedStepFromLTE converts an aggregate LTE magnitude into a proposed
// next timestep via the same order-dependent power law
// pkg/integrate.LocalTruncationError applies to a single device's history
// (Δt_new = Δt·(trtol·epsilon/lte)^(1/(order+1))); this variant operates on
// calculateTruncError's scalar maximum across every device rather than one
// device's Series, so it is reimplemented here instead of called directly.
func proposedStepFromLTE(dt, maxLTE, order, trtol, epsilon float64) float64 {
	if maxLTE <= 0 {
		return math.Inf(1)
	}
	factor := math.Pow((trtol*epsilon)/maxLTE, 1.0/(order+1))
	return dt * factor
}
