// Package config holds the per-analysis configuration surface: Newton
// tolerances, iteration caps, and transient timestep controls. No
// configuration-file library is used; analyses are otherwise configured via
// plain constructor arguments and a CircuitStatus struct rather than a
// parsed-file layer, and this package keeps that shape: a documented struct
// with defaults, validated by field name so unsupported options are
// reported rather than silently ignored.
package config

import "fmt"

// Config holds every analysis tuning parameter, each documented here with
// its default and effect.
type Config struct {
	// Reltol is the relative-tolerance Newton termination factor. Default 1e-3.
	Reltol float64
	// Abstol is the additive-tolerance floor added to every convergence
	// check. Default 1e-12.
	Abstol float64
	// Vntol is the absolute voltage tolerance. The analysis drivers do not
	// read it. Default 1e-6.
	Vntol float64
	// Trtol is the LTE factor that scales the next-timestep proposal made
	// from the circuit's worst-case LTE after each accepted step; Transient
	// does not reject an already-solved step on LTE. Default 7.0.
	Trtol float64
	// Itl1 is the DC/operating-point iteration cap. Default 100.
	Itl1 int
	// Itl4 is the per-timestep transient iteration cap. Default 10.
	Itl4 int
	// Gmin is the minimum conductance added to every PN junction to avoid a
	// singular Jacobian at cutoff. Default 1e-12.
	Gmin float64
	// Temperature is the simulation temperature in Kelvin. Default 300.15.
	Temperature float64
	// Method selects "trapezoidal" or "gear".
	Method string
	// Order is the integration order: 2 for trapezoidal, 2-6 for gear.
	Order int
	// MaxStep caps the transient timestep.
	MaxStep float64
	// TStep is the requested transient print/report interval.
	TStep float64
	// TStop is the transient analysis end time.
	TStop float64
	// UIC selects "use initial conditions" startup, skipping the initial
	// operating-point solve.
	UIC bool
	// ICVoltage maps node name to a user-supplied initial condition
	// voltage. The analysis drivers do not read it.
	ICVoltage map[string]float64
}

// Default returns a Config populated with the standard SPICE-like defaults.
func Default() Config {
	return Config{
		Reltol:      1e-3,
		Abstol:      1e-12,
		Vntol:       1e-6,
		Trtol:       7.0,
		Itl1:        100,
		Itl4:        10,
		Gmin:        1e-12,
		Temperature: 300.15,
		Method:      "trapezoidal",
		Order:       2,
		ICVoltage:   make(map[string]float64),
	}
}

// Set writes a named field from a numeric value, used when
// configuration arrives as name/value pairs (e.g. from a netlist .options
// card). Unrecognised names are reported as an error rather than silently
// accepted.
func (c *Config) Set(name string, value float64) error {
	switch name {
	case "reltol":
		c.Reltol = value
	case "abstol":
		c.Abstol = value
	case "vntol":
		c.Vntol = value
	case "trtol":
		c.Trtol = value
	case "itl1":
		c.Itl1 = int(value)
	case "itl4":
		c.Itl4 = int(value)
	case "gmin":
		c.Gmin = value
	case "temp", "temperature":
		c.Temperature = value
	case "order":
		c.Order = int(value)
	case "maxstep":
		c.MaxStep = value
	case "tstep":
		c.TStep = value
	case "tstop":
		c.TStop = value
	default:
		return fmt.Errorf("config: unrecognised option %q", name)
	}
	return nil
}
