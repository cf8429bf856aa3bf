// Package param implements a parameter store: named values carrying a
// given/default tri-state, plus bundles with a principal parameter that
// receives bare positional netlist values.
//
// A plain map[string]float64 of model parameters collapses "the user set
// this to zero" and "this was never set" into the same float64 zero value.
// Downstream models (Gummel-Poon qb, MOSFET body effect) need to tell those
// apart to decide whether to recompute a geometry-derived default.
package param

// Float is a single named floating-point parameter with given/default
// tri-state. The zero value is never-set.
type Float struct {
	value float64
	state state
}

type state int

const (
	unset state = iota
	defaulted
	given
)

// Default returns a Float carrying v as a default (not user-given) value.
func Default(v float64) Float {
	return Float{value: v, state: defaulted}
}

// Given returns a Float carrying v as an explicitly user-supplied value.
func Given(v float64) Float {
	return Float{value: v, state: given}
}

// Value returns the current numeric value regardless of given/default state.
func (f Float) Value() float64 { return f.value }

// IsGiven reports whether the value was set explicitly by the user, as
// opposed to carrying a computed or documented default.
func (f Float) IsGiven() bool { return f.state == given }

// IsSet reports whether the value has been set at all (given or default).
func (f Float) IsSet() bool { return f.state != unset }

// SetDefault overwrites the value as a default, unless the parameter is
// already given — a default never clobbers an explicit user setting.
func (f *Float) SetDefault(v float64) {
	if f.state == given {
		return
	}
	f.value = v
	f.state = defaulted
}

// SetGiven overwrites the value and marks it explicitly given.
func (f *Float) SetGiven(v float64) {
	f.value = v
	f.state = given
}

// Setter is a callable bound to one named parameter of a Bundle; invoking it
// writes the value and marks it given.
type Setter func(v float64)

// Bundle is a named collection of Float parameters plus a pointer to the
// "principal" parameter that receives bare positional values (e.g. a
// resistor's resistance, a capacitor's capacitance).
type Bundle struct {
	name       string
	fields     map[string]*Float
	principal  *Float
	principalN string
}

// NewBundle creates an empty parameter bundle for an entity or model named
// name.
func NewBundle(name string) *Bundle {
	return &Bundle{name: name, fields: make(map[string]*Float)}
}

// Name returns the bundle's owning entity/model name.
func (b *Bundle) Name() string { return b.name }

// Declare registers a named parameter with an initial default value and
// returns a pointer the owning device can read directly. Declaring the same
// name twice panics: it signals a wiring bug in the device constructor, not
// a runtime condition.
func (b *Bundle) Declare(name string, def float64) *Float {
	if _, exists := b.fields[name]; exists {
		panic("param: duplicate declaration of " + name + " in bundle " + b.name)
	}
	f := &Float{value: def, state: defaulted}
	b.fields[name] = f
	return f
}

// DeclarePrincipal declares name as the principal parameter: the one that
// receives a bare positional value from the netlist (e.g. "R1 1 0 1k").
func (b *Bundle) DeclarePrincipal(name string, def float64) *Float {
	f := b.Declare(name, def)
	b.principal = f
	b.principalN = name
	return f
}

// Get returns the named parameter, or nil if it was never declared.
func (b *Bundle) Get(name string) *Float {
	return b.fields[name]
}

// Principal returns the bundle's principal parameter, or nil if none was
// declared.
func (b *Bundle) Principal() *Float {
	return b.principal
}

// Setter returns a Setter closure bound to the named parameter. Panics if
// name was never declared — requesting a setter for an unknown parameter is
// a construction-time bug, not a user input error.
func (b *Bundle) Setter(name string) Setter {
	f, ok := b.fields[name]
	if !ok {
		panic("param: no such parameter " + name + " in bundle " + b.name)
	}
	return func(v float64) { f.SetGiven(v) }
}

// SetPrincipal writes the bare positional value into the principal
// parameter and marks it given. No-op if no principal was declared.
func (b *Bundle) SetPrincipal(v float64) {
	if b.principal != nil {
		b.principal.SetGiven(v)
	}
}

// Names returns the declared parameter names in no particular order.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.fields))
	for n := range b.fields {
		names = append(names, n)
	}
	return names
}
