package analysis

import (
	"fmt"
	"math"

	"github.com/spicekernel/engine/pkg/circuit"
	"github.com/spicekernel/engine/pkg/device"
)

// Noise sweeps frequency the same way ACAnalysis does — operating point
// first, then one small-signal solve per frequency to linearize every
// device at the bias point AC would see — but instead of reporting node
// voltages it asks every device.NoiseSource for its independent generator's
// PSD at that frequency and reports each one individually rather than
// propagating it through a transfer function to a single output-referred
// total. A device contributes whatever its own CalculateNoise computes:
// ResistorBehavior's thermal generator doesn't depend on frequency, Diode's
// shot generator doesn't either in this codebase (neither implements
// flicker's 1/f term), so the per-frequency sweep here exists to let a
// future frequency-dependent generator slot in without changing the driver.
type Noise struct {
	BaseAnalysis
	op          *OperatingPoint
	startFreq   float64
	stopFreq    float64
	numPoints   int
	pointsType  string // "DEC", "OCT", "LIN"
	frequencies []float64
}

func NewNoise(fStart, fStop float64, nPoints int, pType string) *Noise {
	n := &Noise{
		BaseAnalysis: *NewBaseAnalysis(),
		op:           NewOP(),
		startFreq:    fStart,
		stopFreq:     fStop,
		numPoints:    nPoints,
		pointsType:   pType,
	}
	n.StepKey = "FREQ"
	return n
}

func (n *Noise) Setup(ckt *circuit.Circuit) error {
	n.Circuit = ckt

	if err := n.op.Setup(ckt); err != nil {
		return fmt.Errorf("operating point setup error: %v", err)
	}
	if err := n.op.Execute(); err != nil {
		return fmt.Errorf("operating point analysis error: %v", err)
	}

	n.generateFrequencyPoints()
	return nil
}

func (n *Noise) Execute() error {
	if n.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	for _, freq := range n.frequencies {
		n.Circuit.Status = &device.CircuitStatus{
			Frequency: freq,
			Mode:      device.ACAnalysis,
			Temp:      n.Config.Temperature,
		}

		mat := n.Circuit.GetMatrix()
		mat.Clear()
		if err := n.Circuit.Stamp(n.Circuit.Status); err != nil {
			return fmt.Errorf("stamping error at f=%g: %v", freq, err)
		}
		if err := mat.Solve(); err != nil {
			return fmt.Errorf("matrix solve error at f=%g: %v", freq, err)
		}

		contributions := make(map[string]float64)
		for _, dev := range n.Circuit.GetDevices() {
			ns, ok := dev.(device.NoiseSource)
			if !ok {
				continue
			}
			psd := ns.CalculateNoise(n.Circuit.Status)
			if psd == 0 {
				continue // device registered but contributes nothing at this bias
			}
			contributions[dev.GetName()] = psd
		}

		n.StoreNoiseResult(freq, contributions)
	}

	return nil
}

func (n *Noise) generateFrequencyPoints() {
	n.frequencies = make([]float64, n.numPoints)

	switch n.pointsType {
	case "DEC":
		logStart := math.Log10(n.startFreq)
		logStop := math.Log10(n.stopFreq)
		step := (logStop - logStart) / float64(n.numPoints-1)
		for i := range n.numPoints {
			n.frequencies[i] = math.Pow(10, logStart+float64(i)*step)
		}

	case "OCT":
		logStart := math.Log2(n.startFreq)
		logStop := math.Log2(n.stopFreq)
		step := (logStop - logStart) / float64(n.numPoints-1)
		for i := range n.numPoints {
			n.frequencies[i] = math.Pow(2, logStart+float64(i)*step)
		}

	case "LIN":
		step := (n.stopFreq - n.startFreq) / float64(n.numPoints-1)
		for i := range n.numPoints {
			n.frequencies[i] = n.startFreq + float64(i)*step
		}
	}
}
