// Package result implements a result sink: a callback invoked with
// node-voltage or device-property tuples at each accepted operating point
// or timepoint.
//
// Every analysis driver used to append straight into a
// map[string][]float64 results grab-bag. That grab-bag survives here as the
// default in-memory Sink implementation (InMemory), but callers that want
// to stream results (write to a file, push to a channel) can supply their
// own Sink without the analysis drivers knowing the difference.
package result

// Point is one reported node-voltage or branch-current value at a single
// accepted operating point or timepoint.
type Point struct {
	Name  string // node name ("V(2)") or device property ("I(R1)")
	Value float64
}

// ComplexPoint is one reported value at an AC analysis frequency.
type ComplexPoint struct {
	Name string
	Real float64
	Imag float64
}

// NoisePoint is one reported noise PSD contribution, as the generator itself
// computes it: a current PSD in A²/Hz for the resistor (4kTG) and diode
// (2q|I|) generators, not referred to any node voltage.
type NoisePoint struct {
	Name      string
	Frequency float64
	PSD       float64
}

// Sink receives computed quantities as they are accepted. Implementations
// must not block the analysis driver for long, since behaviors (and
// anything invoked synchronously from the driver loop) are expected to
// return promptly.
type Sink interface {
	// Accept reports a point at a real-valued (OP, DC sweep, transient)
	// analysis step identified by step (a sweep value or a time).
	Accept(step float64, points []Point)
	// AcceptComplex reports points at an AC analysis frequency.
	AcceptComplex(frequency float64, points []ComplexPoint)
	// AcceptNoise reports noise PSD contributions at a frequency.
	AcceptNoise(points []NoisePoint)
}

// InMemory is the default Sink: a map of series name to the list of values
// recorded at each accepted step.
type InMemory struct {
	Steps   []float64
	Series  map[string][]float64
	Complex map[string][]complex128
	Noise   map[string][]float64
}

// NewInMemory returns an empty InMemory sink.
func NewInMemory() *InMemory {
	return &InMemory{
		Series:  make(map[string][]float64),
		Complex: make(map[string][]complex128),
		Noise:   make(map[string][]float64),
	}
}

func (s *InMemory) Accept(step float64, points []Point) {
	s.Steps = append(s.Steps, step)
	for _, p := range points {
		s.Series[p.Name] = append(s.Series[p.Name], p.Value)
	}
}

func (s *InMemory) AcceptComplex(frequency float64, points []ComplexPoint) {
	s.Steps = append(s.Steps, frequency)
	for _, p := range points {
		s.Complex[p.Name] = append(s.Complex[p.Name], complex(p.Real, p.Imag))
	}
}

func (s *InMemory) AcceptNoise(points []NoisePoint) {
	for _, p := range points {
		s.Noise[p.Name] = append(s.Noise[p.Name], p.PSD)
	}
}
