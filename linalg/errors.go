// SPDX-License-Identifier: MIT
// Package linalg: sentinel error set.
// All algorithms return these sentinels (possibly wrapped with an operation tag)
// and tests match them via errors.Is. Panics are reserved for programmer errors
// inside option constructors.

package linalg

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDimensions indicates that requested matrix dimensions are non-positive.
	ErrInvalidDimensions = errors.New("linalg: dimensions must be > 0")

	// ErrDimensionMismatch indicates incompatible operand shapes (matrix vs vector,
	// block size vs matrix size, data length vs shape).
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")

	// ErrNonSquare signals that a square matrix was required.
	ErrNonSquare = errors.New("linalg: matrix is not square")

	// ErrNilMatrix indicates that a nil *CDense was used.
	ErrNilMatrix = errors.New("linalg: nil matrix")

	// ErrOutOfRange indicates that an index is outside valid bounds.
	ErrOutOfRange = errors.New("linalg: index out of range")

	// ErrNotHermitian signals that A[i,j] != conj(A[j,i]) beyond the tolerance.
	ErrNotHermitian = errors.New("linalg: matrix is not Hermitian within eps")

	// ErrNaNInf signals a NaN or ±Inf entry where finite values are required.
	ErrNaNInf = errors.New("linalg: NaN or Inf encountered")

	// ErrSingular is returned when a zero pivot is met during LU/inversion.
	ErrSingular = errors.New("linalg: singular matrix")

	// ErrNotPositiveDefinite is returned when a Cholesky factorization meets a
	// non-positive (or non-finite) pivot.
	ErrNotPositiveDefinite = errors.New("linalg: matrix is not positive definite")

	// ErrNoDevice is returned by ProbeDevice when no accelerator is available
	// under the requested name.
	ErrNoDevice = errors.New("linalg: accelerator device unavailable")

	// ErrUnknownStrategy is returned by ParseStrategy for unrecognised names.
	ErrUnknownStrategy = errors.New("linalg: unknown solve strategy")
)

// FactorizationError reports a failed factorization together with the
// out-of-band error flag of the backend (LAPACK-style info: the 1-based index
// of the first non-positive pivot, or a negative argument index).
type FactorizationError struct {
	Info int
}

// Error implements error.
func (e *FactorizationError) Error() string {
	return fmt.Sprintf("linalg: factorization failed (info=%d)", e.Info)
}

// Unwrap lets errors.Is(err, ErrNotPositiveDefinite) match.
func (e *FactorizationError) Unwrap() error { return ErrNotPositiveDefinite }

// linalgErrorf wraps err with an operation tag: "Op: underlying".
// Use only when err != nil.
func linalgErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
