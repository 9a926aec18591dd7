// SPDX-License-Identifier: MIT

// Package linalg - CDense storage (row-major complex) & safe accessors.
//
// Purpose:
//   - Provide a cache-friendly row-major complex128 buffer with the explicit index formula i*cols + j.
//   - Guarantee safety at the public surface: At/Set return errors instead of panicking.
//   - Keep algorithmic determinism (fixed loop orders, no map iteration).
//
// Complexity quicksheet:
//   - NewCDense: O(r*c) zero-init; At/Set: O(1); Clone: O(r*c); Block: O(n²).

package linalg

import (
	"fmt"
	"math/cmplx"
	"strings"
)

// ---------- error context tags ----------

const (
	ctxAt      = "At"
	ctxSet     = "Set"
	ctxBlock   = "Block"
	ctxAddDiag = "AddDiag"
	ctxMulVec  = "MulVec"
	ctxFrom    = "NewCDenseFrom"
)

// cdenseErrorf wraps an error with a uniform CDense context and callsite indices.
func cdenseErrorf(method string, row, col int, err error) error {
	return fmt.Errorf("CDense.%s(%d,%d): %w", method, row, col, err)
}

// CDense is a concrete row-major complex matrix.
//   - r,c hold dimensions (rows, cols).
//   - data is a flat buffer of length r*c in row-major order (offset = i*c + j).
type CDense struct {
	r, c int
	data []complex128
}

var _ fmt.Stringer = (*CDense)(nil)

// NewCDense creates an r×c zero matrix.
//
// Errors:
//   - ErrInvalidDimensions when rows<=0 or cols<=0.
//
// Complexity:
//   - Time O(r*c), Space O(r*c).
func NewCDense(rows, cols int) (*CDense, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrInvalidDimensions
	}

	return &CDense{r: rows, c: cols, data: make([]complex128, rows*cols)}, nil
}

// NewCDenseFrom wraps data (row-major, len rows*cols) without copying.
// The caller must not alias data afterwards unless it intends shared mutation.
func NewCDenseFrom(rows, cols int, data []complex128) (*CDense, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrInvalidDimensions
	}
	if len(data) != rows*cols {
		return nil, cdenseErrorf(ctxFrom, rows, cols, ErrDimensionMismatch)
	}

	return &CDense{r: rows, c: cols, data: data}, nil
}

// Identity returns the n×n identity.
func Identity(n int) (*CDense, error) {
	m, err := NewCDense(n, n)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
	}

	return m, nil
}

// Rows returns the number of rows.
func (m *CDense) Rows() int { return m.r }

// Cols returns the number of columns.
func (m *CDense) Cols() int { return m.c }

// Data exposes the row-major backing slice. Mutations are visible to m.
func (m *CDense) Data() []complex128 { return m.data }

func (m *CDense) indexOf(row, col int) (int, error) {
	if row < 0 || row >= m.r || col < 0 || col >= m.c {
		return 0, ErrOutOfRange
	}

	return row*m.c + col, nil
}

// At returns the element at (row, col).
func (m *CDense) At(row, col int) (complex128, error) {
	idx, err := m.indexOf(row, col)
	if err != nil {
		return 0, cdenseErrorf(ctxAt, row, col, err)
	}

	return m.data[idx], nil
}

// Set assigns v at (row, col).
func (m *CDense) Set(row, col int, v complex128) error {
	idx, err := m.indexOf(row, col)
	if err != nil {
		return cdenseErrorf(ctxSet, row, col, err)
	}
	m.data[idx] = v

	return nil
}

// Clone returns a deep copy.
func (m *CDense) Clone() *CDense {
	buf := make([]complex128, len(m.data))
	copy(buf, m.data)

	return &CDense{r: m.r, c: m.c, data: buf}
}

// Block copies the n×n diagonal block whose top-left corner is (r0, r0).
//
// Implementation:
//   - Stage 1: validate square receiver and r0+n <= Rows().
//   - Stage 2: copy n row segments of length n.
//
// Complexity:
//   - Time O(n²), Space O(n²).
func (m *CDense) Block(r0, n int) (*CDense, error) {
	if m.r != m.c {
		return nil, cdenseErrorf(ctxBlock, r0, n, ErrNonSquare)
	}
	if n <= 0 || r0 < 0 || r0+n > m.r {
		return nil, cdenseErrorf(ctxBlock, r0, n, ErrOutOfRange)
	}
	out := &CDense{r: n, c: n, data: make([]complex128, n*n)}
	for i := 0; i < n; i++ {
		src := (r0+i)*m.c + r0
		copy(out.data[i*n:(i+1)*n], m.data[src:src+n])
	}

	return out, nil
}

// AddDiag adds v[i] to the i-th diagonal element in place.
func (m *CDense) AddDiag(v []float64) error {
	if m.r != m.c {
		return cdenseErrorf(ctxAddDiag, m.r, m.c, ErrNonSquare)
	}
	if len(v) != m.r {
		return cdenseErrorf(ctxAddDiag, m.r, len(v), ErrDimensionMismatch)
	}
	for i, x := range v {
		m.data[i*m.c+i] += complex(x, 0)
	}

	return nil
}

// AddDiagAt adds v[k] to element (idx[k], idx[k]) in place. It is the
// explicit-index form of AddDiag for callers that carry a diagonal index list.
func (m *CDense) AddDiagAt(idx []int, v []float64) error {
	if len(idx) != len(v) {
		return cdenseErrorf(ctxAddDiag, len(idx), len(v), ErrDimensionMismatch)
	}
	for k, i := range idx {
		if i < 0 || i >= m.r || i >= m.c {
			return cdenseErrorf(ctxAddDiag, i, i, ErrOutOfRange)
		}
		m.data[i*m.c+i] += complex(v[k], 0)
	}

	return nil
}

// Scale multiplies every element by alpha in place.
func (m *CDense) Scale(alpha complex128) {
	for i := range m.data {
		m.data[i] *= alpha
	}
}

// MulVec returns m·x.
func (m *CDense) MulVec(x []complex128) ([]complex128, error) {
	if len(x) != m.c {
		return nil, cdenseErrorf(ctxMulVec, m.r, len(x), ErrDimensionMismatch)
	}
	out := make([]complex128, m.r)
	var (
		i, j int
		sum  complex128
		row  []complex128
	)
	for i = 0; i < m.r; i++ {
		sum = 0
		row = m.data[i*m.c : (i+1)*m.c]
		for j = 0; j < m.c; j++ {
			sum += row[j] * x[j]
		}
		out[i] = sum
	}

	return out, nil
}

// HasNaNInf reports whether any element has a NaN or infinite component.
func (m *CDense) HasNaNInf() bool {
	for _, v := range m.data {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return true
		}
	}

	return false
}

// String renders the matrix row by row; intended for debugging small matrices.
func (m *CDense) String() string {
	var sb strings.Builder
	for i := 0; i < m.r; i++ {
		sb.WriteString("[")
		for j := 0; j < m.c; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			v := m.data[i*m.c+j]
			fmt.Fprintf(&sb, "%.6g%+.6gi", real(v), imag(v))
		}
		sb.WriteString("]\n")
	}

	return sb.String()
}

// Dot returns the conjugating inner product Σ conj(a[i])·b[i].
func Dot(a, b []complex128) (complex128, error) {
	if len(a) != len(b) {
		return 0, linalgErrorf("Dot", ErrDimensionMismatch)
	}
	var sum complex128
	for i := range a {
		sum += cmplx.Conj(a[i]) * b[i]
	}

	return sum, nil
}
