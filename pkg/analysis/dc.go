package analysis

import (
	"fmt"

	"github.com/spicekernel/engine/pkg/circuit"
	"github.com/spicekernel/engine/pkg/device"
	"github.com/spicekernel/engine/pkg/result"
)

type DCSweep struct {
	BaseAnalysis
	sourceNames []string    // Names of voltage/current sources to sweep
	startVals   []float64   // Start values for each source
	stopVals    []float64   // Stop values for each source
	increments  []float64   // Incremental value of steps for each source
	sweepVals   [][]float64 // Generated sweep values for each source
	origVals    []float64   // Original values of the sources
}

func NewDCSweep(sources []string, starts, stops []float64, numSteps []float64) *DCSweep {
	if len(sources) != len(starts) || len(sources) != len(stops) || len(sources) != len(numSteps) {
		panic("inconsistent parameter lengths")
	}

	dc := &DCSweep{
		BaseAnalysis: *NewBaseAnalysis(),
		sourceNames:  sources,
		startVals:    starts,
		stopVals:     stops,
		increments:   numSteps,
		sweepVals:    make([][]float64, len(sources)),
		origVals:     make([]float64, len(sources)),
	}
	dc.StepKey = "SWEEP1"

	// Generate sweep values for each source
	for i := range sources {
		sweep := make([]float64, 0)
		for v := dc.startVals[i]; v <= dc.stopVals[i]; v += dc.increments[i] {
			sweep = append(sweep, v)
		}
		dc.sweepVals[i] = sweep
	}

	return dc
}

func (dc *DCSweep) Setup(ckt *circuit.Circuit) error {
	dc.Circuit = ckt

	// Store original source values
	for i, name := range dc.sourceNames {
		found := false
		for _, dev := range ckt.GetDevices() {
			if dev.GetName() == name {
				if v, ok := dev.(*device.VoltageSource); ok {
					dc.origVals[i] = v.GetValue()
					found = true
					break
				}
			}
		}
		if !found {
			return fmt.Errorf("source %s not found", name)
		}
	}

	return nil
}

func (dc *DCSweep) Execute() error {
	if dc.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	// Single source sweep
	if len(dc.sourceNames) == 1 {
		return dc.singleSweep()
	}

	// Nested sweep (currently supporting up to 2 sources)
	if len(dc.sourceNames) == 2 {
		return dc.nestedSweep()
	}

	return fmt.Errorf("unsupported number of sweep sources: %d", len(dc.sourceNames))
}

func (dc *DCSweep) singleSweep() error {
	var err error

	sourceName := dc.sourceNames[0]

	// Find the source device
	var source *device.VoltageSource
	for _, dev := range dc.Circuit.GetDevices() {
		if dev.GetName() == sourceName {
			if v, ok := dev.(*device.VoltageSource); ok {
				source = v
				break
			}
		}
	}

	if source == nil {
		return fmt.Errorf("source %s not found", sourceName)
	}

	// Perform sweep
	for _, val := range dc.sweepVals[0] {
		source.SetValue(val)

		// Run operating point analysis
		status := &device.CircuitStatus{
			Mode: device.OperatingPointAnalysis,
			Temp: dc.Config.Temperature,
			Gmin: dc.Config.Gmin,
		}

		mat := dc.Circuit.GetMatrix()
		mat.Clear()

		err = dc.Circuit.Stamp(status)
		if err != nil {
			return fmt.Errorf("stamping error at %s=%g: %v", sourceName, val, err)
		}

		err = dc.doNRiter(0, dc.Config.Itl1)
		if err != nil {
			return fmt.Errorf("convergence error at %s=%g: %v", sourceName, val, err)
		}

		// Store results
		solution := dc.Circuit.GetSolution()
		dc.StoreResult(val, solution)
	}

	source.SetValue(dc.origVals[0])

	return nil
}

func (dc *DCSweep) doNRiter(gmin float64, maxIter int) error {
	var err error

	ckt := dc.Circuit
	mat := ckt.GetMatrix()
	pool := dc.EnsurePool(mat.Size)

	cktStatus := &device.CircuitStatus{
		Mode: device.OperatingPointAnalysis,
		Temp: dc.Config.Temperature,
		Gmin: gmin,
	}

	for iter := range maxIter {
		mat.Clear()
		if iter > 0 {
			err := ckt.UpdateNonlinearVoltages(pool.Solution)
			if err != nil {
				return fmt.Errorf("updating nonlinear voltages: %v", err)
			}
		}

		err = ckt.Stamp(cktStatus)
		if err != nil {
			return fmt.Errorf("stamping error: %v", err)
		}

		mat.LoadGmin(gmin)
		err := mat.Solve()
		if err != nil {
			return fmt.Errorf("matrix solve error: %v", err)
		}

		solution := mat.Solution()
		if iter > 0 && dc.CheckConvergence(pool.Solution, solution) {
			pool.AcceptTimepoint()
			return nil
		}

		pool.AdvanceIteration(solution)
	}

	return fmt.Errorf("failed to converge in %d iterations", maxIter)
}

func (dc *DCSweep) StoreResult(sweepVal float64, solution map[string]float64) {
	points := make([]result.Point, 0, len(solution))
	for name, value := range solution {
		points = append(points, result.Point{Name: name, Value: value})
	}
	dc.Results.Accept(sweepVal, points)
}

func (dc *DCSweep) nestedSweep() error {
	var err error

	source1Name := dc.sourceNames[0]
	source2Name := dc.sourceNames[1]

	// Find source devices
	var source1, source2 *device.VoltageSource
	for _, dev := range dc.Circuit.GetDevices() {
		if dev.GetName() == source1Name {
			if v, ok := dev.(*device.VoltageSource); ok {
				source1 = v
			}
		}
		if dev.GetName() == source2Name {
			if v, ok := dev.(*device.VoltageSource); ok {
				source2 = v
			}
		}
	}

	if source1 == nil || source2 == nil {
		return fmt.Errorf("source not found")
	}

	// Nested sweep
	for _, val1 := range dc.sweepVals[0] {
		source1.SetValue(val1)

		for _, val2 := range dc.sweepVals[1] {
			source2.SetValue(val2)

			// Run operating point analysis
			status := &device.CircuitStatus{
				Mode: device.OperatingPointAnalysis,
				Temp: dc.Config.Temperature,
				Gmin: dc.Config.Gmin,
			}

			mat := dc.Circuit.GetMatrix()
			mat.Clear()

			err = dc.Circuit.Stamp(status)
			if err != nil {
				return fmt.Errorf("stamping error at %s=%g, %s=%g: %v",
					source1Name, val1, source2Name, val2, err)
			}

			err = dc.doNRiter(0, dc.Config.Itl1)
			if err != nil {
				return fmt.Errorf("convergence error at %s=%g, %s=%g: %v",
					source1Name, val1, source2Name, val2, err)
			}

			// Store results with both sweep values
			solution := dc.Circuit.GetSolution()
			dc.StoreNestedResult(val1, val2, solution)
		}
	}

	// Restore original values
	source1.SetValue(dc.origVals[0])
	source2.SetValue(dc.origVals[1])

	return nil
}

// StoreNestedResult reports a 2-D sweep point: val1 drives the sink's own
// step axis (StepKey "SWEEP1"), and val2 rides along as an ordinary named
// point ("SWEEP2") alongside the node voltages and branch currents, since
// result.Sink.Accept only carries one step scalar.
func (dc *DCSweep) StoreNestedResult(val1, val2 float64, solution map[string]float64) {
	points := make([]result.Point, 0, len(solution)+1)
	points = append(points, result.Point{Name: "SWEEP2", Value: val2})
	for name, value := range solution {
		points = append(points, result.Point{Name: name, Value: value})
	}
	dc.Results.Accept(val1, points)
}
