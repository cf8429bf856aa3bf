package analysis

import (
	"math"
	"math/cmplx"

	"github.com/spicekernel/engine/pkg/circuit"
	"github.com/spicekernel/engine/pkg/config"
	"github.com/spicekernel/engine/pkg/result"
	"github.com/spicekernel/engine/pkg/state"
	"github.com/spicekernel/engine/pkg/util"
)

const (
	OP int = iota
	TRAN
	AC
)

type Analysis interface {
	Setup(ckt *circuit.Circuit) error
	Execute() error
	GetResults() map[string][]float64
}

// BaseAnalysis holds what every analysis driver needs regardless of kind:
// the circuit being analyzed, the Newton/timestep tuning surface (Config,
// replacing what used to be an ad hoc inline struct per driver), and the
// result sink every StoreXResult call reports into (replacing a
// map[string][]float64 grab-bag each driver wrote directly). StepKey labels
// whatever independent variable drives this analysis ("TIME" for Transient,
// "SWEEP1" for DCSweep, "" for a single OperatingPoint with no sweep axis)
// so GetResults can reconstruct the old flat map shape from Results.Steps.
type BaseAnalysis struct {
	Circuit *circuit.Circuit
	Config  config.Config
	Results *result.InMemory
	StepKey string
	Pool    *state.Pool
}

func NewBaseAnalysis() *BaseAnalysis {
	return &BaseAnalysis{
		Config:  config.Default(),
		Results: result.NewInMemory(),
		StepKey: "TIME",
	}
}

// EnsurePool lazily allocates (or grows) the shared Newton-iteration pool
// to the matrix's current size; analysis drivers can't size it up front
// since the matrix isn't built until the circuit is stamped once.
func (a *BaseAnalysis) EnsurePool(size int) *state.Pool {
	if a.Pool == nil {
		a.Pool = state.NewPool(size)
	} else if len(a.Pool.Solution) < size+1 {
		a.Pool.Resize(size)
	}
	return a.Pool
}

// CheckConvergence applies Config's Reltol/Abstol to a raw solution-vector
// comparison, the DC/OP convergence test every analysis driver shares.
func (a *BaseAnalysis) CheckConvergence(oldSol, newSol []float64) bool {
	if len(oldSol) != len(newSol) {
		return false
	}

	for i := range oldSol {
		diff := math.Abs(newSol[i] - oldSol[i])
		if diff > a.Config.Abstol && diff > a.Config.Reltol*math.Abs(newSol[i]) {
			return false
		}
	}
	return true
}

// StoreTimeResult reports one accepted timepoint to the result sink,
// deduping against the previously accepted time the same way the teacher's
// original map-based store did (exact match, then a rounded-string
// comparison to absorb float noise like 1.999999e-05 vs 2.000000e-05).
func (a *BaseAnalysis) StoreTimeResult(time float64, solution map[string]float64) {
	if steps := a.Results.Steps; len(steps) > 0 {
		lastTime := steps[len(steps)-1]
		if time == lastTime || util.FormatValueFactor(time, "s") == util.FormatValueFactor(lastTime, "s") {
			return
		}
	}

	points := make([]result.Point, 0, len(solution))
	for name, value := range solution {
		points = append(points, result.Point{Name: name, Value: value})
	}
	a.Results.Accept(time, points)
}

// StoreACResult reports one frequency point; magnitude/phase series are
// reconstructed from the sink's stored complex values in GetResults rather
// than precomputed here, so the sink keeps the full complex value for any
// consumer that wants it directly.
func (a *BaseAnalysis) StoreACResult(freq float64, solution map[string]complex128) {
	points := make([]result.ComplexPoint, 0, len(solution))
	for name, value := range solution {
		points = append(points, result.ComplexPoint{Name: name, Real: real(value), Imag: imag(value)})
	}
	a.Results.AcceptComplex(freq, points)
}

// StoreNoiseResult reports every device's noise PSD contribution at one
// frequency, the Noise driver's analogue of StoreACResult.
func (a *BaseAnalysis) StoreNoiseResult(freq float64, contributions map[string]float64) {
	points := make([]result.NoisePoint, 0, len(contributions))
	for name, psd := range contributions {
		points = append(points, result.NoisePoint{Name: name, Frequency: freq, PSD: psd})
	}
	a.Results.AcceptNoise(points)
}

// GetResults flattens the sink's Series/Complex/Steps back into the
// map[string][]float64 shape cmd/main.go and existing callers expect,
// deriving V/I _MAG and _PHASE series from the stored complex values and
// the step-axis key (TIME/SWEEP1/FREQ) from StepKey.
func (a *BaseAnalysis) GetResults() map[string][]float64 {
	out := make(map[string][]float64, len(a.Results.Series)+len(a.Results.Complex)*2+1)

	for k, v := range a.Results.Series {
		out[k] = append([]float64(nil), v...)
	}

	for k, v := range a.Results.Complex {
		mag := make([]float64, len(v))
		phase := make([]float64, len(v))
		for i, c := range v {
			mag[i] = cmplx.Abs(c)
			phase[i] = cmplx.Phase(c) * 180.0 / math.Pi
		}
		out[k+"_MAG"] = mag
		out[k+"_PHASE"] = phase
	}

	for k, v := range a.Results.Noise {
		out["NOISE("+k+")"] = append([]float64(nil), v...)
	}

	if a.StepKey != "" && len(a.Results.Steps) > 0 {
		out[a.StepKey] = append([]float64(nil), a.Results.Steps...)
	}

	return out
}
