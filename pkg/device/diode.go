package device

import (
	"fmt"
	"math"

	"github.com/spicekernel/engine/internal/consts"
	"github.com/spicekernel/engine/pkg/matrix"
	"github.com/spicekernel/engine/pkg/state"
)

// Diode models forward exponential, regularized reverse tail, and
// exponential breakdown branches, junction voltage limiting, and an
// optional series resistance realized as an internal node between the
// external anode pin and the intrinsic junction.
type Diode struct {
	BaseDevice

	Is   float64
	N    float64
	Rs   float64
	Cj0  float64
	M    float64
	Vj   float64
	Bv   float64
	Gmin float64
	Tnom float64

	internalNode int  // index of the node between the outer anode pin and the intrinsic junction; 0 (ground alias) means "no series node allocated"
	hasRs        bool

	vd     float64 // intrinsic junction voltage (post-limiting)
	vdRaw  float64 // unlimited junction voltage from the last UpdateVoltages
	id     float64
	gd     float64
	vcrit  float64
	vt     float64

	vdOld      float64
	idOld      float64
	capCurrent float64

	history *state.History
}

var _ TimeDependent = (*Diode)(nil)
var _ NonLinear = (*Diode)(nil)
var _ NoiseSource = (*Diode)(nil)

func NewDiode(name string, nodeNames []string) *Diode {
	if len(nodeNames) != 2 {
		panic(fmt.Sprintf("diode %s: requires exactly 2 nodes", name))
	}

	d := &Diode{
		BaseDevice: BaseDevice{
			Name:      name,
			Nodes:     make([]int, len(nodeNames)),
			NodeNames: nodeNames,
		},
	}
	d.setDefaultParameters()
	d.history = state.NewHistory(2)
	return d
}

func (d *Diode) GetType() string { return "D" }

func (d *Diode) setDefaultParameters() {
	d.Is = 1e-14
	d.N = 1.0
	d.Rs = 0.0
	d.Cj0 = 0.0
	d.M = 0.5
	d.Vj = 1.0
	d.Bv = 100.0
	d.Gmin = 1e-12
	d.Tnom = 300.15
}

// Temperature recomputes the thermal voltage and critical voltage for the
// given absolute temperature, satisfying behavior.TemperatureBehavior.
func (d *Diode) Temperature(temp float64) error {
	d.vt = thermalVoltageAt(temp)
	d.vcrit = CriticalVoltage(d.Is, d.vt)
	d.hasRs = d.Rs > 0
	return nil
}

// thermalVoltageAt computes kT/q for an absolute temperature in Kelvin.
func thermalVoltageAt(temp float64) float64 {
	if temp <= 0 {
		temp = 300.15
	}
	const boltzmannOverCharge = 8.617333262e-5 // eV/K == k/q in volts/K
	return boltzmannOverCharge * temp
}

// SetInternalNode installs the node index allocated for the Rs series
// connection; the circuit driver calls this during setup after asking the
// node manager for an internal node owned by this diode. A value of 0
// (never set) means the diode behaves as if Rs were zero even if Rs > 0;
// callers that want series resistance modeled must call this.
func (d *Diode) SetInternalNode(idx int) {
	d.internalNode = idx
}

func (d *Diode) calculateCurrent(vd float64) (id, gd float64) {
	vt := d.vt
	threshold := -3 * d.N * vt

	switch {
	case vd >= threshold:
		evd := math.Exp(clampExp(vd / (d.N * vt)))
		id = d.Is*(evd-1) + d.Gmin*vd
		gd = d.Is*evd/(d.N*vt) + d.Gmin

	case vd >= -d.Bv:
		arg := math.Pow((3*d.N*vt)/(vd*math.E), 3)
		id = -d.Is*(1+arg) + d.Gmin*vd
		gd = 3*d.Is*arg/vd + d.Gmin

	default:
		evd := math.Exp(clampExp(-(d.Bv + vd) / vt))
		id = -d.Is*evd + d.Gmin*vd
		gd = d.Is*evd/vt + d.Gmin
	}

	return id, gd
}

func clampExp(x float64) float64 {
	if x > 80 {
		return 80
	}
	if x < -80 {
		return -80
	}
	return x
}

// Stamp stamps the intrinsic junction's conductance/RHS across
// (internalNode, n2) when a series node exists, plus the series
// conductance gspr between the outer anode pin and the internal node.
func (d *Diode) Stamp(m matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(d.Nodes) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name)
	}

	d.id, d.gd = d.calculateCurrent(d.vd)

	anode, cathode := d.Nodes[0], d.Nodes[1]
	junctionPos := anode
	if d.hasRs && d.internalNode != 0 {
		junctionPos = d.internalNode
		gspr := 1.0 / d.Rs
		stampConductance(m, anode, d.internalNode, gspr)
	}

	n1, n2 := junctionPos, cathode
	rhs := d.id - d.gd*d.vd
	if n1 != 0 {
		m.AddElement(n1, n1, d.gd)
		if n2 != 0 {
			m.AddElement(n1, n2, -d.gd)
		}
		m.AddRHS(n1, -rhs)
	}
	if n2 != 0 {
		if n1 != 0 {
			m.AddElement(n2, n1, -d.gd)
		}
		m.AddElement(n2, n2, d.gd)
		m.AddRHS(n2, rhs)
	}

	return nil
}

func (d *Diode) StampAC(m matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(d.Nodes) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name)
	}

	n1, n2 := d.Nodes[0], d.Nodes[1]
	if d.hasRs && d.internalNode != 0 {
		n1 = d.internalNode
	}

	omega := 2 * math.Pi * status.Frequency
	cj := d.calculateJunctionCap(d.vd)
	yeq := complex(d.gd, omega*cj)

	if n1 != 0 {
		m.AddComplexElement(n1, n1, real(yeq), imag(yeq))
		if n2 != 0 {
			m.AddComplexElement(n1, n2, -real(yeq), -imag(yeq))
		}
	}
	if n2 != 0 {
		if n1 != 0 {
			m.AddComplexElement(n2, n1, -real(yeq), -imag(yeq))
		}
		m.AddComplexElement(n2, n2, real(yeq), imag(yeq))
	}

	return nil
}

func (d *Diode) calculateJunctionCap(vd float64) float64 {
	if d.Cj0 == 0 {
		return 0
	}
	if vd < 0 {
		arg := 1 - vd/d.Vj
		if arg < 0.1 {
			arg = 0.1
		}
		return d.Cj0 / math.Pow(arg, d.M)
	}
	return d.Cj0 * (1 + d.M*vd/d.Vj)
}

func (d *Diode) LoadConductance(m matrix.DeviceMatrix) error {
	n1, n2 := d.Nodes[0], d.Nodes[1]
	stampConductance(m, n1, n2, d.gd)
	return nil
}

func (d *Diode) LoadCurrent(m matrix.DeviceMatrix) error {
	n1, n2 := d.Nodes[0], d.Nodes[1]
	rhs := d.id - d.gd*d.vd
	if n1 != 0 {
		m.AddRHS(n1, -rhs)
	}
	if n2 != 0 {
		m.AddRHS(n2, rhs)
	}
	return nil
}

// CalculateNoise reports shot noise on the junction current, psd =
// 2*q*|Id|, satisfying device.NoiseSource. Unlike ResistorBehavior's
// thermal generator this isn't routed through pkg/behavior: Diode, like
// every other junction device in this package, goes through
// netlist.CreateDevice as a concrete struct rather than the behavior
// Registry (see DESIGN.md), so it satisfies NoiseSource directly instead
// of through a Set.
func (d *Diode) CalculateNoise(status *CircuitStatus) float64 {
	return 2.0 * consts.CHARGE * math.Abs(d.id)
}

func (d *Diode) SetTimeStep(dt float64, status *CircuitStatus) {}

func (d *Diode) UpdateState(voltages []float64, status *CircuitStatus) {
	d.vdOld, d.idOld = d.vd, d.id
	d.history.Push(status.Time, d.calculateJunctionCap(d.vd)*d.vd)
}

func (d *Diode) CalculateLTE(voltages map[string]float64, status *CircuitStatus) float64 {
	return math.Abs(d.vd - d.vdOld)
}

// UpdateVoltages reads the raw node solution, then applies junction-voltage
// limiting relative to the previous Newton iterate's vd.
func (d *Diode) UpdateVoltages(voltages []float64) error {
	if len(d.Nodes) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name)
	}

	n1, n2 := d.Nodes[0], d.Nodes[1]
	if d.hasRs && d.internalNode != 0 {
		n1 = d.internalNode
	}

	var v1, v2 float64
	if n1 != 0 && n1 < len(voltages) {
		v1 = voltages[n1]
	}
	if n2 != 0 && n2 < len(voltages) {
		v2 = voltages[n2]
	}

	d.vdRaw = v1 - v2
	if d.vt == 0 {
		d.vt = thermalVoltageAt(d.Tnom)
		d.vcrit = CriticalVoltage(d.Is, d.vt)
	}
	limited, _ := LimitJunctionVoltage(d.vdRaw, d.vd, d.vt, d.vcrit)
	d.vd = limited
	return nil
}

