// SPDX-License-Identifier: MIT
// Package posterior: sentinel error set.
//
// Two classes of failure leave Evaluate:
//   - *RejectedSampleError (errors.Is ErrRejectedSample): the sample has zero
//     posterior probability. Samplers should record -Inf and continue.
//   - everything else: configuration, lookup or shape errors. These are bugs
//     in the setup and must stop the run.

package posterior

import (
	"errors"
	"fmt"
)

var (
	// ErrRejectedSample marks a numerically impossible sample.
	ErrRejectedSample = errors.New("posterior: rejected sample")

	// ErrInvalidInputs indicates inconsistent construction inputs.
	ErrInvalidInputs = errors.New("posterior: invalid inputs")

	// ErrDimensionMismatch indicates a parameter vector of the wrong length.
	ErrDimensionMismatch = errors.New("posterior: parameter dimension mismatch")

	// ErrOddNeta indicates an LSSM index layout that needs an even neta (or nf).
	ErrOddNeta = errors.New("posterior: LSSM indexing requires an even neta/nf")

	// ErrBlockDiagonalInstrumental indicates a block-diagonal solve requested
	// while instrumental effects are modelled.
	ErrBlockDiagonalInstrumental = errors.New("posterior: block-diagonal solve is invalid with instrumental effects")

	// ErrNonFinitePower indicates a NaN or Inf prior precision, e.g. from a
	// zero amplitude.
	ErrNonFinitePower = errors.New("posterior: non-finite prior precision")

	// ErrNonFiniteScore indicates a NaN marginal likelihood.
	ErrNonFiniteScore = errors.New("posterior: non-finite score")
)

// RejectedSampleError carries the stage and parameter vector of a rejection.
type RejectedSampleError struct {
	Stage  Stage
	Params []float64
	Err    error
}

// Error implements error.
func (e *RejectedSampleError) Error() string {
	return fmt.Sprintf("posterior: rejected sample at %v: %v", e.Stage, e.Err)
}

// Unwrap exposes both ErrRejectedSample and the cause to errors.Is.
func (e *RejectedSampleError) Unwrap() []error { return []error{ErrRejectedSample, e.Err} }

// posteriorErrorf wraps err with an operation tag: "Op: underlying".
func posteriorErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
