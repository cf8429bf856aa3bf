package device

import (
	"fmt"

	"github.com/spicekernel/engine/internal/consts"
	"github.com/spicekernel/engine/pkg/behavior"
	"github.com/spicekernel/engine/pkg/matrix"
	"github.com/spicekernel/engine/pkg/param"
)

// ResistorTemperature computes the temperature-adjusted conductance once
// per temperature change: R0 = R_user if given, else
// Rsh*(L-narrow)/(W-narrow); G = 1/(R0*(1+a1*dT+a2*dT^2)).
//
// Split out as its own struct, rather than folding into ResistorLoad and
// recomputing the temperature factor on every stamp call, to demonstrate
// cyclic-reference-breaking via a non-owning peer pointer: ResistorLoad
// holds a non-owning pointer to this Temperature object, the same
// peer-reference relationship a device's Load behavior has to its Model's
// Temperature behavior.
type ResistorTemperature struct {
	Params *param.Bundle

	g       float64 // cached conductance at the last computed temperature
	warn    func(format string, args ...any)
	lastT   float64
	haveG   bool
}

func NewResistorTemperature(bundle *param.Bundle, warn func(format string, args ...any)) *ResistorTemperature {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return &ResistorTemperature{Params: bundle, warn: warn}
}

// Temperature recomputes the cached conductance for the given absolute
// temperature (Kelvin), satisfying behavior.TemperatureBehavior.
func (t *ResistorTemperature) Temperature(temp float64) error {
	p := t.Params
	tnom := p.Get("tnom").Value()
	var r0 float64

	if r := p.Get("r"); r.IsGiven() {
		r0 = r.Value()
	} else {
		rsh := p.Get("rsh").Value()
		w := p.Get("w").Value()
		l := p.Get("l").Value()
		narrow := p.Get("narrow").Value()
		denom := w - narrow
		if denom == 0 {
			r0 = 0
		} else {
			r0 = rsh * (l - narrow) / denom
		}
	}

	if r0 == 0 {
		t.warn("resistor %s: degenerate resistance, defaulting to 1000 ohm", p.Name())
		r0 = 1000
	}

	dt := temp - tnom
	tc1 := p.Get("tc1").Value()
	tc2 := p.Get("tc2").Value()
	factor := 1.0 + tc1*dt + tc2*dt*dt

	t.g = 1.0 / (r0 * factor)
	t.lastT = temp
	t.haveG = true
	return nil
}

// Conductance returns the cached conductance, computing it at nominal
// temperature first if Temperature has never run.
func (t *ResistorTemperature) Conductance() float64 {
	if !t.haveG {
		t.Temperature(t.Params.Get("tnom").Value())
	}
	return t.g
}

// ResistorLoad stamps ±G across its two pins every Newton iteration. It
// holds a non-owning pointer to the Temperature behavior that computes G.
type ResistorLoad struct {
	BaseDevice
	Temp *ResistorTemperature
}

func (r *ResistorLoad) GetType() string { return "R" }

func (r *ResistorLoad) Load(m matrix.DeviceMatrix, status *behavior.CircuitStatus) error {
	if len(r.Nodes) != 2 {
		return &pinCountErr{expected: 2, got: len(r.Nodes)}
	}
	n1, n2 := r.Nodes[0], r.Nodes[1]
	g := r.Temp.Conductance()
	stampConductance(m, n1, n2, g)
	return nil
}

// IsConvergent: a resistor is linear and contributes no nonlinear branch,
// so it is always convergent.
func (r *ResistorLoad) IsConvergent(reltol, abstol, vntol float64) bool { return true }

func (r *ResistorLoad) LoadAC(m matrix.DeviceMatrix, status *behavior.CircuitStatus) error {
	if len(r.Nodes) != 2 {
		return &pinCountErr{expected: 2, got: len(r.Nodes)}
	}
	n1, n2 := r.Nodes[0], r.Nodes[1]
	g := r.Temp.Conductance()
	stampComplexConductance(m, n1, n2, g, 0)
	return nil
}

// ResistorNoise reports Johnson-Nyquist thermal noise current, psd =
// 4*k*T*G in A²/Hz, the only generator a linear resistor has. It holds the
// same non-owning pointer to ResistorTemperature that ResistorLoad does, so
// its PSD tracks whatever conductance Temperature last computed without
// recomputing r0/tc1/tc2 itself.
type ResistorNoise struct {
	Temp *ResistorTemperature
}

// SetCoefficients is a no-op for ResistorNoise: thermal noise has no
// device-specific coefficients beyond the conductance already owned by
// Temp, but the method exists to satisfy behavior.NoiseBehavior uniformly
// with generators (shot, flicker) that do take fitted coefficients.
func (n *ResistorNoise) SetCoefficients(values ...float64) {}

func (n *ResistorNoise) CalculateNoise(status *behavior.CircuitStatus) float64 {
	g := n.Temp.Conductance()
	return 4.0 * consts.BOLTZMANN * status.Temp * g
}

// stampConductance adds a two-terminal real conductance g between n1 and n2
// into m, skipping ground rows/columns. Shared by Resistor and (via
// stampComplexConductance) its AC counterpart, and usable by any future
// two-terminal linear device.
func stampConductance(m matrix.DeviceMatrix, n1, n2 int, g float64) {
	if n1 != 0 {
		m.AddElement(n1, n1, g)
		if n2 != 0 {
			m.AddElement(n1, n2, -g)
		}
	}
	if n2 != 0 {
		if n1 != 0 {
			m.AddElement(n2, n1, -g)
		}
		m.AddElement(n2, n2, g)
	}
}

func stampComplexConductance(m matrix.DeviceMatrix, n1, n2 int, real, imag float64) {
	if n1 != 0 {
		m.AddComplexElement(n1, n1, real, imag)
		if n2 != 0 {
			m.AddComplexElement(n1, n2, -real, -imag)
		}
	}
	if n2 != 0 {
		if n1 != 0 {
			m.AddComplexElement(n2, n1, -real, -imag)
		}
		m.AddComplexElement(n2, n2, real, imag)
	}
}

// pinCountErr adapts simerr.PinCountMismatchError's shape locally to avoid
// every device file importing simerr just for this one error; Error()
// matches simerr.PinCountMismatchError's text so callers that errors.As
// against the real type still see an equivalent message if they choose
// fmt.Errorf("%w", ...) wrapping at a higher layer. No device in this
// package returns the simerr type itself.
type pinCountErr struct {
	expected, got int
}

func (e *pinCountErr) Error() string {
	return fmt.Sprintf("pin count mismatch: expected %d, got %d", e.expected, e.got)
}

// ResistorBehavior wires ResistorTemperature and ResistorLoad together as
// one object implementing TemperatureBehavior, LoadBehavior, ACLoadBehavior
// and NoiseBehavior, so behavior.Registry's reverse-order Resolve can construct
// it once (registered under all four Kinds) and backfill every slot from
// that single instance rather than building Temperature and Load
// separately and having to wire the peer pointer afterward.
type ResistorBehavior struct {
	Temp  *ResistorTemperature
	Load  *ResistorLoad
	Noise *ResistorNoise
}

func (r *ResistorBehavior) Temperature(temp float64) error {
	return r.Temp.Temperature(temp)
}

func (r *ResistorBehavior) Load(m matrix.DeviceMatrix, status *behavior.CircuitStatus) error {
	if r.Temp.lastT != status.Temp || !r.Temp.haveG {
		if err := r.Temp.Temperature(status.Temp); err != nil {
			return err
		}
	}
	return r.Load.Load(m, status)
}

func (r *ResistorBehavior) IsConvergent(reltol, abstol, vntol float64) bool { return true }

func (r *ResistorBehavior) LoadAC(m matrix.DeviceMatrix, status *behavior.CircuitStatus) error {
	return r.Load.LoadAC(m, status)
}

func (r *ResistorBehavior) SetCoefficients(values ...float64) { r.Noise.SetCoefficients(values...) }

func (r *ResistorBehavior) CalculateNoise(status *behavior.CircuitStatus) float64 {
	if r.Temp.lastT != status.Temp || !r.Temp.haveG {
		r.Temp.Temperature(status.Temp)
	}
	return r.Noise.CalculateNoise(status)
}

// NewResistorBehaviorFactory returns a behavior.Factory that builds a
// ResistorBehavior for a netlist resistor element, looking up its bare
// resistance value from values (keyed by element name — the Factory
// signature only carries name and resolved node indices, not the netlist's
// own parameter set, so the circuit driver closes over the value map at
// registration time). Register the returned factory under Temperature,
// Load, ACLoad and Noise so Resolve backfills all four from one call.
func NewResistorBehaviorFactory(values map[string]float64) behavior.Factory {
	return func(name string, nodes []int) (any, error) {
		bundle := param.NewBundle(name)
		v := values[name]
		bundle.DeclarePrincipal("r", v).SetGiven(v)
		bundle.Declare("w", 0)
		bundle.Declare("l", 0)
		bundle.Declare("rsh", 0)
		bundle.Declare("narrow", 0)
		bundle.Declare("tc1", 0)
		bundle.Declare("tc2", 0)
		bundle.Declare("tnom", 300.15)

		temp := NewResistorTemperature(bundle, nil)
		load := &ResistorLoad{
			BaseDevice: BaseDevice{Name: name, Nodes: nodes, Value: v},
			Temp:       temp,
		}
		noise := &ResistorNoise{Temp: temp}
		return &ResistorBehavior{Temp: temp, Load: load, Noise: noise}, nil
	}
}

// Resistor is the entity-level container: it owns both behaviors and wires
// the non-owning peer pointer between them. NewResistor builds the full
// parameter bundle (R, W, L, sheet resistance, tc1, tc2, tnom) while keeping
// a bare-value constructor for the common case.
type Resistor struct {
	Load *ResistorLoad
	Temp *ResistorTemperature

	Params *param.Bundle
}

// NewResistor builds a resistor with only the principal resistance value
// given, the common netlist-parsing case.
func NewResistor(name string, nodeNames []string, value float64) *Resistor {
	bundle := param.NewBundle(name)
	bundle.DeclarePrincipal("r", value).SetGiven(value)
	bundle.Declare("w", 0)
	bundle.Declare("l", 0)
	bundle.Declare("rsh", 0)
	bundle.Declare("narrow", 0)
	bundle.Declare("tc1", 0)
	bundle.Declare("tc2", 0)
	bundle.Declare("tnom", 300.15)

	temp := NewResistorTemperature(bundle, nil)
	load := &ResistorLoad{
		BaseDevice: BaseDevice{Name: name, NodeNames: nodeNames, Nodes: make([]int, len(nodeNames)), Value: value},
		Temp:       temp,
	}

	return &Resistor{Load: load, Temp: temp, Params: bundle}
}

// The following methods make *Resistor itself satisfy the original Device
// interface, so existing circuit/netlist wiring (which expects one object
// per entity) keeps working unchanged while the Load/Temperature split
// lives underneath.
func (r *Resistor) GetName() string      { return r.Load.Name }
func (r *Resistor) GetType() string      { return "R" }
func (r *Resistor) GetNodeNames() []string { return r.Load.NodeNames }
func (r *Resistor) GetNodes() []int      { return r.Load.Nodes }
func (r *Resistor) GetValue() float64    { return r.Params.Principal().Value() }
func (r *Resistor) SetNodes(nodes []int) {
	r.Load.Nodes = nodes
}

func (r *Resistor) Stamp(m matrix.DeviceMatrix, status *CircuitStatus) error {
	if !r.Temp.haveG || r.Temp.lastT != status.Temp {
		if err := r.Temp.Temperature(status.Temp); err != nil {
			return err
		}
	}
	bstatus := &behavior.CircuitStatus{Temp: status.Temp}
	if status.Mode == ACAnalysis {
		return r.Load.LoadAC(m, bstatus)
	}
	return r.Load.Load(m, bstatus)
}
