package matrix

import (
	"regexp"
	"strconv"

	"github.com/edp1096/sparse"
	"github.com/spicekernel/engine/pkg/simerr"
)

// ElementHandle is a stable reference to one sparse-matrix cell, obtained
// once during setup and reused as an add-accumulator during assembly instead
// of re-resolving the row/column lookup on every stamp. AddElement/
// AddComplexElement remain available as the resolve-every-call fallback for
// code that has no setup phase to pre-fetch a handle in.
type ElementHandle struct {
	el *sparse.Element
}

// Add accumulates value into the real part of the cell.
func (h ElementHandle) Add(value float64) {
	if h.el == nil {
		return
	}
	h.el.Real += value
}

// AddComplex accumulates (real, imag) into the cell.
func (h ElementHandle) AddComplex(real, imag float64) {
	if h.el == nil {
		return
	}
	h.el.Real += real
	h.el.Imag += imag
}

// Set overwrites the cell's real part rather than accumulating.
func (h ElementHandle) Set(value float64) {
	if h.el == nil {
		return
	}
	h.el.Real = value
}

// Valid reports whether the handle resolved to a live cell.
func (h ElementHandle) Valid() bool { return h.el != nil }

// RHSHandle is a stable reference to one RHS row. Unlike ElementHandle it
// cannot hold a pointer into the sparse library (the RHS vectors are plain
// slices owned by CircuitMatrix, reallocated never but indexed directly),
// so it simply remembers its row and complex-ness and forwards to the
// owning matrix.
type RHSHandle struct {
	m   *CircuitMatrix
	row int
}

// Add accumulates value into the real RHS entry.
func (h RHSHandle) Add(value float64) {
	h.m.AddRHS(h.row, value)
}

// AddComplex accumulates (real, imag) into the RHS entry.
func (h RHSHandle) AddComplex(real, imag float64) {
	h.m.AddComplexRHS(h.row, real, imag)
}

// GetElement returns a handle to cell (i, j), allocating the underlying
// sparse element if this is the first reference to it. Intended to be
// called once per (device, cell) pair during setup; see ElementHandle.
func (m *CircuitMatrix) GetElement(i, j int) ElementHandle {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return ElementHandle{}
	}
	return ElementHandle{el: m.matrix.GetElement(int64(i), int64(j))}
}

// GetRHS returns a handle to RHS row i.
func (m *CircuitMatrix) GetRHS(i int) RHSHandle {
	return RHSHandle{m: m, row: i}
}

// singularRowPattern extracts a row number from the sparse library's
// factorization error text, when it reports one. The library used here does
// not expose a structured singular-row accessor, only an error string.
var singularRowPattern = regexp.MustCompile(`(?i)row\s*:?\s*(\d+)`)

// singularRow best-effort parses a row index out of err's message, falling
// back to -1 (unknown) when the underlying library gave no row detail.
func singularRow(err error) int {
	m := singularRowPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return -1
	}
	n, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return -1
	}
	return n
}

// FactorSolve runs Factor followed by Solve (real or complex depending on
// configuration) and translates a factorization failure into a
// *simerr.SingularMatrixError carrying the offending row instead of
// returning an opaque wrapped string.
func (m *CircuitMatrix) FactorSolve() error {
	if err := m.matrix.Factor(); err != nil {
		return &simerr.SingularMatrixError{Row: singularRow(err)}
	}

	var err error
	if m.config.Complex {
		m.solution, m.solutionImag, err = m.matrix.SolveComplex(m.rhs, m.rhsImag)
	} else {
		m.solution, err = m.matrix.Solve(m.rhs)
	}
	return err
}
