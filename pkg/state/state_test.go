package state

import (
	"math"
	"testing"

	"github.com/spicekernel/engine/pkg/integrate"
)

func TestHistoryPushShiftsAndFills(t *testing.T) {
	h := NewHistory(3)
	if h.Filled() != 0 {
		t.Fatalf("fresh history Filled() = %d, want 0", h.Filled())
	}

	h.Push(1.0, 10)
	h.Push(2.0, 20)
	h.Push(3.0, 30)

	if got := h.At(0); got != 30 {
		t.Errorf("At(0) = %v, want 30", got)
	}
	if got := h.At(1); got != 20 {
		t.Errorf("At(1) = %v, want 20", got)
	}
	if got := h.At(2); got != 10 {
		t.Errorf("At(2) = %v, want 10", got)
	}
	if h.Filled() != 3 {
		t.Errorf("Filled() = %d, want 3 (depth reached)", h.Filled())
	}

	h.Push(4.0, 40)
	if got := h.At(0); got != 40 {
		t.Errorf("At(0) after overflow push = %v, want 40", got)
	}
	if h.Filled() != 3 {
		t.Errorf("Filled() after overflow push = %d, want 3 (capped at depth)", h.Filled())
	}
}

func TestHistorySeedDoesNotShift(t *testing.T) {
	h := NewHistory(2)
	h.Seed(0, 5)
	if h.Filled() != 1 {
		t.Fatalf("Filled() after Seed = %d, want 1", h.Filled())
	}
	h.Seed(0, 7) // re-seeding overwrites rather than shifting
	if got := h.At(0); got != 7 {
		t.Errorf("At(0) after second Seed = %v, want 7", got)
	}
	if h.Filled() != 1 {
		t.Errorf("Filled() after second Seed = %d, want still 1", h.Filled())
	}
}

// TestSlotBackwardEulerMatchesFiniteDifference checks Slot.Integrate against
// a hand-computed backward-Euler derivative: capacitor charging toward 1V
// through a known RC, q[t] = v[t] (cap=1), so dq/dt should match (v1-v0)/dt.
func TestSlotBackwardEulerMatchesFiniteDifference(t *testing.T) {
	s := NewSlot(1)
	s.Value.Seed(0, 0.0)
	s.Integrate(integrate.Gear{}, 1, 1e-3)
	if got := s.Derivative(); got != 0 {
		t.Errorf("initial derivative = %v, want 0 (no change yet)", got)
	}

	dt := 1e-3
	s.Value.Push(dt, 0.5)
	s.Integrate(integrate.Gear{}, 1, dt)

	want := (0.5 - 0.0) / dt
	if got := s.Derivative(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Derivative() = %v, want %v", got, want)
	}
	if got := s.Jacobian(1.0); math.Abs(got-1.0/dt) > 1e-9 {
		t.Errorf("Jacobian(1.0) = %v, want %v", got, 1.0/dt)
	}
}

func TestPoolAdvanceIterationAndAcceptTimepoint(t *testing.T) {
	p := NewPool(2)
	p.AdvanceIteration([]float64{0, 1, 2})
	if p.Solution[1] != 1 || p.Solution[2] != 2 {
		t.Fatalf("Solution after AdvanceIteration = %v", p.Solution)
	}
	if p.PrevIterate[1] != 0 {
		t.Errorf("PrevIterate should hold the pre-advance Solution (all zero), got %v", p.PrevIterate)
	}

	p.AdvanceIteration([]float64{0, 1.1, 2.1})
	if p.PrevIterate[1] != 1 {
		t.Errorf("PrevIterate after second AdvanceIteration = %v, want the prior Solution", p.PrevIterate)
	}

	p.AcceptTimepoint()
	if p.PrevAccepted[1] != 1.1 {
		t.Errorf("PrevAccepted after AcceptTimepoint = %v, want current Solution", p.PrevAccepted)
	}
}

func TestPoolResizePreservesValues(t *testing.T) {
	p := NewPool(1)
	p.Solution[1] = 42
	p.Resize(3)
	if len(p.Solution) != 4 {
		t.Fatalf("len(Solution) after Resize(3) = %d, want 4", len(p.Solution))
	}
	if p.Solution[1] != 42 {
		t.Errorf("Resize lost an existing value: Solution[1] = %v, want 42", p.Solution[1])
	}
}
