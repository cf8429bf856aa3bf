package device

import (
	"math"
	"testing"

	"github.com/spicekernel/engine/internal/consts"
)

func newTestDiode() *Diode {
	d := NewDiode("D1", []string{"1", "0"})
	d.Nodes = []int{1, 0}
	d.Temperature(d.Tnom)
	return d
}

func TestDiodeForwardCurrentIncreasesWithVoltage(t *testing.T) {
	d := newTestDiode()

	iLow, _ := d.calculateCurrent(0.3)
	iHigh, _ := d.calculateCurrent(0.6)

	if iHigh <= iLow {
		t.Errorf("forward current should increase with junction voltage: I(0.3)=%v, I(0.6)=%v", iLow, iHigh)
	}
	if iLow <= 0 {
		t.Errorf("forward current at 0.3V should be positive, got %v", iLow)
	}
}

func TestDiodeReverseCurrentIsSmallAndNegative(t *testing.T) {
	d := newTestDiode()

	i, _ := d.calculateCurrent(-1.0)
	if i >= 0 {
		t.Errorf("reverse-biased current should be negative, got %v", i)
	}
	if math.Abs(i) > 1e-6 {
		t.Errorf("reverse current magnitude should be small (near -Is), got %v", i)
	}
}

func TestDiodeBreakdownCurrentIsLarge(t *testing.T) {
	d := newTestDiode()

	iNormal, _ := d.calculateCurrent(-d.Bv / 2)
	iBreakdown, _ := d.calculateCurrent(-d.Bv * 1.1)

	if math.Abs(iBreakdown) <= math.Abs(iNormal) {
		t.Errorf("breakdown-region current should be much larger in magnitude: normal=%v, breakdown=%v", iNormal, iBreakdown)
	}
}

func TestDiodeShotNoiseMatchesFormula(t *testing.T) {
	d := newTestDiode()
	d.id, d.gd = d.calculateCurrent(0.6)

	status := &CircuitStatus{Temp: d.Tnom}
	psd := d.CalculateNoise(status)

	want := 2.0 * consts.CHARGE * math.Abs(d.id)
	if math.Abs(psd-want) > 1e-30 {
		t.Errorf("CalculateNoise() = %v, want %v", psd, want)
	}
}

func TestDiodeShotNoiseIsZeroAtZeroCurrent(t *testing.T) {
	d := newTestDiode()
	d.id = 0

	if got := d.CalculateNoise(&CircuitStatus{Temp: d.Tnom}); got != 0 {
		t.Errorf("CalculateNoise() with id=0 = %v, want 0", got)
	}
}
