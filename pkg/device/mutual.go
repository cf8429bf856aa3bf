package device

import (
	"fmt"
	"math"

	"github.com/spicekernel/engine/pkg/matrix"
)

// Mutual stamps linear magnetic coupling between two or more branch-current
// inductors: M = k*sqrt(L1*L2). In transient, Stamp adds an extra -M/dt
// cross term between each coupled pair's branch rows; in AC, StampAC adds a
// jωM admittance between each pair's pin nodes and does not check the
// inductor type. For Stamp, coupling participants must be *Inductor — the branch-current unknown this
// stamp writes into only exists for devices using that branch-current MNA
// formulation; MagneticInductor stamps its nonlinear core directly into the
// node admittances with no branch unknown of its own, so it cannot appear
// here (Stamp returns an error rather than silently coupling nothing).
type Mutual struct {
	BaseDevice
	inductors   []InductorComponent
	names       []string
	coefficient float64
}

func NewMutual(name string, indNames []string, k float64) *Mutual {
	return &Mutual{
		BaseDevice:  BaseDevice{Name: name},
		names:       indNames,
		coefficient: k,
		inductors:   make([]InductorComponent, len(indNames)),
	}
}

func (m *Mutual) GetType() string { return "K" }

func (m *Mutual) SetInductor(index int, ind InductorComponent) error {
	if index < 0 || index >= len(m.inductors) {
		return fmt.Errorf("invalid inductor index: %d", index)
	}
	m.inductors[index] = ind
	return nil
}

func (m *Mutual) GetInductor(index int) (InductorComponent, error) {
	if index < 0 || index >= len(m.inductors) {
		return nil, fmt.Errorf("invalid inductor index: %d", index)
	}
	return m.inductors[index], nil
}

func (m *Mutual) GetInductors() []InductorComponent {
	return m.inductors
}

func (m *Mutual) GetInductorNames() []string {
	return m.names
}

func (m *Mutual) GetNumInductors() int {
	return len(m.inductors)
}

func (m *Mutual) GetCoefficient() float64 { return m.coefficient }

func (m *Mutual) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(m.inductors) < 2 {
		return fmt.Errorf("mutual coupling %s requires at least two inductors", m.Name)
	}

	// Only for transient
	if status.Mode != TransientAnalysis {
		return nil
	}

	dt := status.TimeStep
	if dt <= 0 {
		return nil
	}

	type coupledBranch struct {
		branchIdx int
		value     float64
		current   float64
	}

	branches := make([]coupledBranch, 0, len(m.inductors))
	for _, ind := range m.inductors {
		linear, ok := ind.(*Inductor)
		if !ok {
			return fmt.Errorf("mutual coupling %s: inductor %s must be a branch-current *Inductor (nonlinear magnetic-core inductors are not supported)", m.Name, ind.GetName())
		}

		branches = append(branches, coupledBranch{
			branchIdx: linear.BranchIndex(),
			value:     linear.GetValue(),
			current:   linear.GetCurrent(),
		})
	}

	// Every coupled pair contributes a cross term to each other's branch
	// equation: v1 = L1*di1/dt + M*di2/dt, v2 = L2*di2/dt + M*di1/dt.
	for i := range branches {
		for j := i + 1; j < len(branches); j++ {
			mij := m.coefficient * math.Sqrt(branches[i].value*branches[j].value)

			matrix.AddElement(branches[i].branchIdx, branches[j].branchIdx, -mij/dt)
			matrix.AddElement(branches[j].branchIdx, branches[i].branchIdx, -mij/dt)

			matrix.AddRHS(branches[i].branchIdx, -mij*branches[j].current/dt)
			matrix.AddRHS(branches[j].branchIdx, -mij*branches[i].current/dt)
		}
	}

	return nil
}

func (m *Mutual) StampAC(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(m.inductors) < 2 {
		return fmt.Errorf("mutual coupling %s requires at least two inductors", m.Name)
	}

	omega := 2 * math.Pi * status.Frequency
	n := len(m.inductors)

	inductance := make([]float64, n)
	nodes := make([][2]int, n)
	for i := range n {
		inductance[i] = m.inductors[i].GetValue()
		nodes[i] = [2]int{m.inductors[i].GetNodes()[0], m.inductors[i].GetNodes()[1]}
	}

	for i := range n {
		for j := i + 1; j < n; j++ {
			mij := m.coefficient * math.Sqrt(inductance[i]*inductance[j])

			if mij != 0.0 {
				// Coupling admittance jωM.
				yReal := 0.0
				yImag := omega * mij

				if nodes[i][0] > 0 {
					if nodes[j][0] > 0 {
						matrix.AddComplexElement(nodes[i][0], nodes[j][0], yReal, yImag)
					}
					if nodes[j][1] > 0 {
						matrix.AddComplexElement(nodes[i][0], nodes[j][1], -yReal, -yImag)
					}
				}
				if nodes[i][1] > 0 {
					if nodes[j][0] > 0 {
						matrix.AddComplexElement(nodes[i][1], nodes[j][0], -yReal, -yImag)
					}
					if nodes[j][1] > 0 {
						matrix.AddComplexElement(nodes[i][1], nodes[j][1], yReal, yImag)
					}
				}
				if nodes[j][0] > 0 {
					if nodes[i][0] > 0 {
						matrix.AddComplexElement(nodes[j][0], nodes[i][0], yReal, yImag)
					}
					if nodes[i][1] > 0 {
						matrix.AddComplexElement(nodes[j][0], nodes[i][1], -yReal, -yImag)
					}
				}
				if nodes[j][1] > 0 {
					if nodes[i][0] > 0 {
						matrix.AddComplexElement(nodes[j][1], nodes[i][0], -yReal, -yImag)
					}
					if nodes[i][1] > 0 {
						matrix.AddComplexElement(nodes[j][1], nodes[i][1], yReal, yImag)
					}
				}
			}
		}
	}

	return nil
}
