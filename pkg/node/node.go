// Package node implements the node manager: allocation and release of
// contiguous MNA row/column indices, with ground fixed at index 0.
//
// Kept as its own component, independent of circuit.Circuit, so device
// behaviors can allocate internal nodes (e.g. a diode's series-resistance
// node) without depending on the circuit driver.
package node

import "fmt"

// Ground is the fixed index of the ground node; it is never allocated and
// never released.
const Ground = 0

// Manager allocates/releases MNA indices and tracks which ones were
// supplied externally by the netlist versus created lazily by device
// behaviors (internal nodes).
type Manager struct {
	byName   map[string]int
	names    []string // index -> name, names[0] is unused (ground)
	external map[int]bool
}

// NewManager returns an empty Manager; ground is pre-registered as index 0
// under the names "0" and "gnd".
func NewManager() *Manager {
	m := &Manager{
		byName:   make(map[string]int),
		names:    []string{"0"},
		external: make(map[int]bool),
	}
	m.byName["0"] = Ground
	m.byName["gnd"] = Ground
	return m
}

// Create returns the index for name, allocating a new one if name has not
// been seen before. Ground names ("0", "gnd") always return Ground.
// external marks whether this node came from the netlist's pin list (true)
// or was created internally by a device behavior (false); internal nodes
// are released on Reset, external ones are preserved.
func (m *Manager) Create(name string, external bool) int {
	if idx, ok := m.byName[name]; ok {
		return idx
	}
	idx := len(m.names)
	m.names = append(m.names, name)
	m.byName[name] = idx
	if external {
		m.external[idx] = true
	}
	return idx
}

// Internal creates an internal node owned by owner, named by suffixing the
// owner's name (e.g. "Q1#col"). Internal node names are namespaced by owner
// so two devices can each have a "#col" node without colliding.
func (m *Manager) Internal(owner, suffix string) int {
	name := fmt.Sprintf("%s#%s", owner, suffix)
	return m.Create(name, false)
}

// Ground returns the ground index, always 0.
func (m *Manager) Ground() int { return Ground }

// Count returns the number of allocated indices including ground, i.e. the
// matrix dimension needed to hold every node (index 0..Count()-1).
func (m *Manager) Count() int { return len(m.names) }

// Name returns the name bound to idx, or "" if idx is out of range.
func (m *Manager) Name(idx int) string {
	if idx < 0 || idx >= len(m.names) {
		return ""
	}
	return m.names[idx]
}

// Snapshot returns a name->index copy of every externally-supplied node
// (ground excluded), for callers that still key results/diagnostics off a
// plain map rather than walking the Manager directly.
func (m *Manager) Snapshot() map[string]int {
	out := make(map[string]int, len(m.external))
	for idx := range m.external {
		out[m.names[idx]] = idx
	}
	return out
}

// Reset releases all internal (non-external) indices, preserving ground and
// every externally-supplied node.
func (m *Manager) Reset() {
	kept := []string{"0"}
	keptByName := map[string]int{"0": Ground}
	keptByName["gnd"] = Ground
	keptExternal := make(map[int]bool)

	for idx := 1; idx < len(m.names); idx++ {
		if !m.external[idx] {
			continue
		}
		name := m.names[idx]
		newIdx := len(kept)
		kept = append(kept, name)
		keptByName[name] = newIdx
		keptExternal[newIdx] = true
	}

	m.names = kept
	m.byName = keptByName
	m.external = keptExternal
}
