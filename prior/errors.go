// SPDX-License-Identifier: MIT

package prior

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBounds is returned when a transform is built with no coordinates.
	ErrEmptyBounds = errors.New("prior: no bounds")

	// ErrInvalidBound indicates Lo >= Hi, a non-finite limit, or an unknown kind.
	ErrInvalidBound = errors.New("prior: invalid bound")

	// ErrDimensionMismatch indicates an input vector of the wrong length.
	ErrDimensionMismatch = errors.New("prior: dimension mismatch")

	// ErrOutsideUnitCube indicates a coordinate outside [0, 1].
	ErrOutsideUnitCube = errors.New("prior: coordinate outside unit cube")

	// ErrOutsideBounds indicates Inverse was given a value outside [Lo, Hi].
	ErrOutsideBounds = errors.New("prior: value outside bounds")
)

func priorErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
