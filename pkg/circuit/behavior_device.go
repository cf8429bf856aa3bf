package circuit

import (
	"github.com/spicekernel/engine/pkg/behavior"
	"github.com/spicekernel/engine/pkg/device"
	"github.com/spicekernel/engine/pkg/matrix"
)

// behaviorDevice adapts a behavior.Set resolved through the Registry to the
// device.Device interface, so an entity built via Resolve sits in
// Circuit.devices alongside components constructed directly by
// netlist.CreateDevice. Stamp dispatches to whichever of the Set's
// Temperature/Load/ACLoad slots is populated and relevant to the current
// analysis mode, converting the circuit-wide device.CircuitStatus into the
// narrower behavior.CircuitStatus the Set's methods expect.
type behaviorDevice struct {
	name      string
	devType   string
	nodeNames []string
	nodes     []int
	value     float64
	set       *behavior.Set

	tempDone bool
	lastTemp float64
}

func (d *behaviorDevice) GetName() string        { return d.name }
func (d *behaviorDevice) GetType() string        { return d.devType }
func (d *behaviorDevice) GetNodeNames() []string { return d.nodeNames }
func (d *behaviorDevice) GetNodes() []int        { return d.nodes }
func (d *behaviorDevice) GetValue() float64      { return d.value }
func (d *behaviorDevice) SetNodes(nodes []int)   { d.nodes = nodes }

func (d *behaviorDevice) Stamp(m matrix.DeviceMatrix, status *device.CircuitStatus) error {
	bstatus := &behavior.CircuitStatus{
		Time:      status.Time,
		TimeStep:  status.TimeStep,
		Frequency: status.Frequency,
		Gmin:      status.Gmin,
		Temp:      status.Temp,
	}

	if tb := d.set.Temperature(); tb != nil && (!d.tempDone || d.lastTemp != status.Temp) {
		if err := tb.Temperature(status.Temp); err != nil {
			return err
		}
		d.tempDone = true
		d.lastTemp = status.Temp
	}

	if status.Mode == device.ACAnalysis {
		if ac := d.set.ACLoad(); ac != nil {
			return ac.LoadAC(m, bstatus)
		}
		return nil
	}

	if l := d.set.Load(); l != nil {
		return l.Load(m, bstatus)
	}
	return nil
}

// CalculateNoise satisfies device.NoiseSource by dispatching to the Set's
// Noise slot (ResistorBehavior's thermal-noise generator, for "R" elements).
func (d *behaviorDevice) CalculateNoise(status *device.CircuitStatus) float64 {
	nb := d.set.Noise()
	if nb == nil {
		return 0
	}
	bstatus := &behavior.CircuitStatus{
		Time:      status.Time,
		TimeStep:  status.TimeStep,
		Frequency: status.Frequency,
		Gmin:      status.Gmin,
		Temp:      status.Temp,
	}
	return nb.CalculateNoise(bstatus)
}
