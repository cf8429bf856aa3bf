// Package behavior defines the shared simulation context (CircuitStatus) and
// the behavior-kind interfaces a split-design device implements: Temperature
// precomputes temperature-dependent constants once per temperature change,
// Load/ACLoad stamp DC/small-signal contributions, Transient integrates
// charge storage, Noise reports spectral contributions, and Accept commits
// per-timepoint state. A device that separates concerns this way (see
// ResistorTemperature/ResistorLoad in pkg/device) implements whichever subset
// applies and holds a non-owning pointer to its peer behaviors rather than
// duplicating their state.
package behavior

import (
	"fmt"
	"sync"

	"github.com/spicekernel/engine/pkg/matrix"
)

// CircuitStatus carries the simulation context a behavior needs to do its
// work: the point in time/frequency/iteration the engine is currently
// evaluating, plus the Newton solver's three-valued initialization state.
type CircuitStatus struct {
	Time      float64
	TimeStep  float64
	Frequency float64
	Gmin      float64
	Temp      float64
	Order     int
	MaxOrder  int
	InitMode  InitMode
}

// InitMode is the Newton solver's three-valued initialization state.
type InitMode int

const (
	InitJunction InitMode = iota
	InitFix
	Normal
)

// TemperatureBehavior computes temperature-dependent constants once per
// temperature change.
type TemperatureBehavior interface {
	Temperature(temp float64) error
}

// LoadBehavior stamps DC/iteration contributions into the MNA matrix and
// reports Newton convergence for its own nonlinear branches.
type LoadBehavior interface {
	Load(m matrix.DeviceMatrix, status *CircuitStatus) error
	IsConvergent(reltol, abstol, vntol float64) bool
}

// ACLoadBehavior stamps complex small-signal contributions at a frequency.
type ACLoadBehavior interface {
	LoadAC(m matrix.DeviceMatrix, status *CircuitStatus) error
}

// TransientBehavior integrates charge storage and stamps its companion
// model contribution.
type TransientBehavior interface {
	LoadTransient(m matrix.DeviceMatrix, status *CircuitStatus) error
}

// NoiseBehavior reports a generator's spectral contribution at the current
// operating point and frequency.
type NoiseBehavior interface {
	SetCoefficients(values ...float64)
	CalculateNoise(status *CircuitStatus) (psd float64)
}

// AcceptBehavior commits per-timepoint state after a transient step is
// accepted.
type AcceptBehavior interface {
	Accept(status *CircuitStatus) error
}

// Kind names one of the behavior interfaces above, for use as a map key and
// as an entry in the kind list a Resolve call requests.
type Kind int

const (
	Temperature Kind = iota
	Load
	ACLoad
	Transient
	Noise
	Accept
)

// kindSatisfiedBy reports whether inst already implements the interface
// named by kind, so Resolve can skip constructing a redundant behavior
// object when a previously-built one already covers this kind.
func kindSatisfiedBy(inst any, kind Kind) bool {
	switch kind {
	case Temperature:
		_, ok := inst.(TemperatureBehavior)
		return ok
	case Load:
		_, ok := inst.(LoadBehavior)
		return ok
	case ACLoad:
		_, ok := inst.(ACLoadBehavior)
		return ok
	case Transient:
		_, ok := inst.(TransientBehavior)
		return ok
	case Noise:
		_, ok := inst.(NoiseBehavior)
		return ok
	case Accept:
		_, ok := inst.(AcceptBehavior)
		return ok
	default:
		return false
	}
}

// Factory builds one behavior object for an entity given its name and
// already-resolved node indices. A single factory's result may satisfy more
// than one Kind (see ResistorBehavior in pkg/device), in which case
// registering the same factory under every Kind it covers lets Resolve
// construct it once and backfill the rest.
type Factory func(name string, nodes []int) (any, error)

// Set holds the behavior objects resolved for one entity, one slot per Kind
// the caller requested. A slot is nil if the entity never registered a
// factory for that kind.
type Set struct {
	instances map[Kind]any
}

func newSet() *Set { return &Set{instances: make(map[Kind]any)} }

func (s *Set) get(kind Kind) any { return s.instances[kind] }

func (s *Set) Temperature() TemperatureBehavior {
	b, _ := s.get(Temperature).(TemperatureBehavior)
	return b
}

func (s *Set) Load() LoadBehavior {
	b, _ := s.get(Load).(LoadBehavior)
	return b
}

func (s *Set) ACLoad() ACLoadBehavior {
	b, _ := s.get(ACLoad).(ACLoadBehavior)
	return b
}

func (s *Set) TransientLoad() TransientBehavior {
	b, _ := s.get(Transient).(TransientBehavior)
	return b
}

func (s *Set) Noise() NoiseBehavior {
	b, _ := s.get(Noise).(NoiseBehavior)
	return b
}

func (s *Set) Accept() AcceptBehavior {
	b, _ := s.get(Accept).(AcceptBehavior)
	return b
}

// Registry maps entityKind (the netlist letter, e.g. "R") and Kind to the
// factory that builds that behavior. Registrations happen once at process
// startup (device package init or circuit setup); Resolve calls happen
// continuously while building a circuit's device list, hence the RWMutex
// rather than a plain map guarded by a single lock.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]map[Kind]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]map[Kind]Factory)}
}

// Register binds factory to (entityKind, kind). Registering the same
// factory under several kinds is how one constructed object gets backfilled
// into every kind slot it satisfies from a single Resolve call.
func (r *Registry) Register(entityKind string, kind Kind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.factories[entityKind] == nil {
		r.factories[entityKind] = make(map[Kind]Factory)
	}
	r.factories[entityKind][kind] = factory
}

// Resolve builds (or reuses, within this one call) the behavior objects an
// entity needs for the requested kinds. It walks kinds in reverse order,
// skipping any kind already satisfied by an object constructed earlier in
// this same walk — the dedup rule that lets a single ResistorBehavior
// registered under Temperature/Load/ACLoad/Noise get built exactly once even
// though all four kinds are requested.
func (r *Registry) Resolve(entityKind, name string, nodes []int, kinds []Kind) (*Set, error) {
	r.mu.RLock()
	factories := r.factories[entityKind]
	r.mu.RUnlock()

	set := newSet()
	for i := len(kinds) - 1; i >= 0; i-- {
		kind := kinds[i]
		if existing := set.instances; existing != nil {
			satisfied := false
			for _, inst := range existing {
				if kindSatisfiedBy(inst, kind) {
					satisfied = true
					break
				}
			}
			if satisfied {
				continue
			}
		}

		factory, ok := factories[kind]
		if !ok {
			continue
		}
		inst, err := factory(name, nodes)
		if err != nil {
			return nil, fmt.Errorf("resolving %s behavior for %s %q: %w", entityKind, kindName(kind), name, err)
		}

		for _, k := range kinds {
			if kindSatisfiedBy(inst, k) {
				set.instances[k] = inst
			}
		}
	}
	return set, nil
}

func kindName(k Kind) string {
	switch k {
	case Temperature:
		return "temperature"
	case Load:
		return "load"
	case ACLoad:
		return "ac-load"
	case Transient:
		return "transient"
	case Noise:
		return "noise"
	case Accept:
		return "accept"
	default:
		return "unknown"
	}
}
