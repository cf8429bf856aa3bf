package device

import "math"

// LimitJunctionVoltage is the Newton solver's junction-voltage limiting
// helper: given a newly solved voltage, the previous iterate, the thermal
// voltage and a critical voltage, clamp large forward steps so the
// exponential diode/BJT models don't overflow or oscillate. Returns
// the (possibly clamped) voltage and whether clamping occurred — callers
// must keep iterating even if their own tolerance test passed whenever
// limited is true.
//
// A per-device ad hoc clamp hardcoding a fixed threshold voltage and a
// fixed thermal voltage, rather than accepting vcrit/vt as parameters,
// cannot be shared across device types; this single vcrit-parameterized
// helper is shared by the diode and BJT junctions. The MOSFET does not
// call it and applies no junction-voltage limiting.
func LimitJunctionVoltage(vnew, vold, vt, vcrit float64) (limited float64, wasLimited bool) {
	delta := vnew - vold
	if vnew <= vcrit || math.Abs(delta) <= 2*vt {
		return vnew, false
	}

	sign := 1.0
	if delta < 0 {
		sign = -1.0
	}
	limited = vold + sign*2*vt*math.Log(1+math.Abs(delta)/(2*vt))
	return limited, true
}

// CriticalVoltage returns the junction critical voltage v_crit above which
// LimitJunctionVoltage engages, following the standard SPICE pnjlim
// derivation v_crit = vt*ln(vt/(sqrt(2)*Is)).
func CriticalVoltage(is, vt float64) float64 {
	if is <= 0 {
		is = 1e-14
	}
	return vt * math.Log(vt/(math.Sqrt2*is))
}
