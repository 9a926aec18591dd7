// SPDX-License-Identifier: MIT

// Package prior maps unit-cube sampler coordinates to power-spectrum
// amplitudes and nuisance parameters.
//
// Each coordinate has an independent Bound. The map is a deterministic,
// strictly increasing bijection per coordinate, so prior mass stays
// normalized for the nested sampler:
//
//   - KindLogUniform: x = Lo + u·(Hi − Lo). Lo, Hi and x are log10 amplitudes;
//     the evaluator exponentiates them when log priors are enabled.
//   - KindUniformAmplitude: 10^x = 10^Lo + u·(10^Hi − 10^Lo), reported as x in
//     log10 units, i.e. uniform in amplitude while staying compatible with
//     log-prior evaluation.
//   - KindLinear: x = Lo + u·(Hi − Lo) with no logarithmic meaning, used for
//     the intrinsic-noise amplitude and spectral-index parameters.
package prior

import (
	"fmt"
	"math"
)

// Kind selects the per-coordinate mapping.
type Kind uint8

const (
	// KindLogUniform is uniform in log10 amplitude.
	KindLogUniform Kind = iota
	// KindUniformAmplitude is uniform in linear amplitude, expressed in log10 units.
	KindUniformAmplitude
	// KindLinear is a plain affine map.
	KindLinear
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindLogUniform:
		return "log-uniform"
	case KindUniformAmplitude:
		return "uniform-amplitude"
	case KindLinear:
		return "linear"
	}

	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Bound is the prior range of one coordinate.
type Bound struct {
	Lo, Hi float64
	Kind   Kind
}

func (b Bound) validate() error {
	if math.IsNaN(b.Lo) || math.IsNaN(b.Hi) || math.IsInf(b.Lo, 0) || math.IsInf(b.Hi, 0) {
		return ErrInvalidBound
	}
	if !(b.Lo < b.Hi) || b.Kind > KindLinear {
		return ErrInvalidBound
	}
	if b.Kind == KindUniformAmplitude && math.IsInf(math.Pow(10, b.Hi), 1) {
		return ErrInvalidBound
	}

	return nil
}

// apply clamps to [Lo, Hi] so rounding at u = 1 cannot leave the range.
func (b Bound) apply(u float64) float64 {
	var x float64
	if b.Kind == KindUniformAmplitude {
		lo, hi := math.Pow(10, b.Lo), math.Pow(10, b.Hi)
		x = math.Log10(lo + u*(hi-lo))
	} else {
		x = b.Lo + u*(b.Hi-b.Lo)
	}

	return math.Min(b.Hi, math.Max(b.Lo, x))
}

func (b Bound) inverse(x float64) float64 {
	if b.Kind == KindUniformAmplitude {
		lo, hi := math.Pow(10, b.Lo), math.Pow(10, b.Hi)
		return (math.Pow(10, x) - lo) / (hi - lo)
	}

	return (x - b.Lo) / (b.Hi - b.Lo)
}

// Transform is an immutable prior transform; safe for concurrent use.
type Transform struct {
	bounds []Bound
}

// New validates bounds and returns a Transform over len(bounds) coordinates.
//
// Errors: ErrEmptyBounds, ErrInvalidBound (wrapped with the coordinate index).
func New(bounds []Bound, opts ...Option) (*Transform, error) {
	if len(bounds) == 0 {
		return nil, priorErrorf("New", ErrEmptyBounds)
	}
	out := make([]Bound, len(bounds))
	copy(out, bounds)
	for _, opt := range opts {
		if opt != nil {
			opt(out)
		}
	}
	for i, b := range out {
		if err := b.validate(); err != nil {
			return nil, fmt.Errorf("New: bound %d [%g, %g] %v: %w", i, b.Lo, b.Hi, b.Kind, err)
		}
	}

	return &Transform{bounds: out}, nil
}

// Dims returns the number of coordinates.
func (t *Transform) Dims() int { return len(t.bounds) }

// Bounds returns a copy of the effective bounds.
func (t *Transform) Bounds() []Bound {
	out := make([]Bound, len(t.bounds))
	copy(out, t.bounds)

	return out
}

// Apply maps u ∈ [0,1]^Dims to parameter space.
func (t *Transform) Apply(u []float64) ([]float64, error) {
	x := make([]float64, len(t.bounds))
	if err := t.ApplyTo(x, u); err != nil {
		return nil, err
	}

	return x, nil
}

// ApplyTo writes the transform of u into dst without allocating.
// dst and u may alias.
func (t *Transform) ApplyTo(dst, u []float64) error {
	if len(u) != len(t.bounds) || len(dst) != len(t.bounds) {
		return priorErrorf("ApplyTo", ErrDimensionMismatch)
	}
	for i, v := range u {
		if !(v >= 0 && v <= 1) {
			return fmt.Errorf("ApplyTo: u[%d]=%g: %w", i, v, ErrOutsideUnitCube)
		}
	}
	for i, v := range u {
		dst[i] = t.bounds[i].apply(v)
	}

	return nil
}

// Inverse maps parameter values back to the unit cube.
func (t *Transform) Inverse(x []float64) ([]float64, error) {
	if len(x) != len(t.bounds) {
		return nil, priorErrorf("Inverse", ErrDimensionMismatch)
	}
	u := make([]float64, len(x))
	for i, v := range x {
		b := t.bounds[i]
		if !(v >= b.Lo && v <= b.Hi) {
			return nil, fmt.Errorf("Inverse: x[%d]=%g: %w", i, v, ErrOutsideBounds)
		}
		u[i] = math.Min(1, math.Max(0, b.inverse(v)))
	}

	return u, nil
}
