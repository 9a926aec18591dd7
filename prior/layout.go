// SPDX-License-Identifier: MIT

package prior

// Default bounds used by DefaultBounds.
const (
	DefaultBinLo = -2.0
	DefaultBinHi = 6.0

	// The two lowest-k bins carry far more power and get wider ranges.
	DefaultFirstBinHi  = 15.0
	DefaultSecondBinHi = 8.0

	// LSSM Gaussian-prior amplitudes, log10 units.
	DefaultLWMLo = 5.0
	DefaultLWMHi = 6.0

	// Intrinsic-noise amplitude, linear units.
	DefaultNoiseLo = 1.0
	DefaultNoiseHi = 2.0
)

// Layout describes how a parameter vector is laid out, in evaluation order:
// [b1, b2 fraction] (spectral), [alpha'] (noise), [3 LSSM amplitudes], bins.
type Layout struct {
	NBins            int
	NoiseFitting     bool
	LWMGaussianPrior bool

	// FitSpectral prepends the spectral-index pair: b1 ∈ [BetaMin, BetaMax]
	// and the b2 fraction ∈ [0, 1], both linear.
	FitSpectral      bool
	BetaMin, BetaMax float64
}

// Dims returns the length of the parameter vector.
func (l Layout) Dims() int {
	n := l.NBins
	if l.LWMGaussianPrior {
		n += 3
	}
	if l.NoiseFitting {
		n++
	}
	if l.FitSpectral {
		n += 2
	}

	return n
}

// DefaultBounds returns the standard bound layout.
//
// Slots after the spectral pair start at [-2, 6], with slot 0 widened to
// [-2, 15] and slot 1 to [-2, 8]. The LSSM Gaussian-prior amplitudes are
// [5, 6] and the noise amplitude, when present, takes slot 0 as [1, 2] linear.
// Positions are absolute, so with noise fitting and no LSSM prior the first
// bin inherits the [-2, 8] range of slot 1.
func DefaultBounds(l Layout) []Bound {
	n := l.Dims()
	out := make([]Bound, 0, n)
	if l.FitSpectral {
		out = append(out,
			Bound{Lo: l.BetaMin, Hi: l.BetaMax, Kind: KindLinear},
			Bound{Lo: 0, Hi: 1, Kind: KindLinear})
		n -= 2
	}
	a := make([]Bound, n)
	for i := range a {
		a[i] = Bound{Lo: DefaultBinLo, Hi: DefaultBinHi, Kind: KindLogUniform}
	}
	if n > 0 {
		a[0].Hi = DefaultFirstBinHi
	}
	if n > 1 {
		a[1].Hi = DefaultSecondBinHi
	}
	if l.LWMGaussianPrior {
		off := 0
		if l.NoiseFitting {
			off = 1
		}
		for i := off; i < off+3 && i < n; i++ {
			a[i] = Bound{Lo: DefaultLWMLo, Hi: DefaultLWMHi, Kind: KindLogUniform}
		}
	}
	if l.NoiseFitting && n > 0 {
		a[0] = Bound{Lo: DefaultNoiseLo, Hi: DefaultNoiseHi, Kind: KindLinear}
	}

	return append(out, a...)
}

// Option adjusts bounds before validation.
type Option func([]Bound)

// WithUniformAmplitude switches the listed coordinates to KindUniformAmplitude.
// Out-of-range indices are ignored.
func WithUniformAmplitude(idx ...int) Option {
	return func(b []Bound) {
		for _, i := range idx {
			if i >= 0 && i < len(b) && b[i].Kind == KindLogUniform {
				b[i].Kind = KindUniformAmplitude
			}
		}
	}
}

// WithUniformLeadingBins switches the first n power-spectrum bins of layout l
// to KindUniformAmplitude; n = -1 switches every bin.
//
// This is an alternative to the evaluator's uniform-prior Jacobian; use one or
// the other.
func WithUniformLeadingBins(l Layout, n int) Option {
	start := l.Dims() - l.NBins
	if n < 0 || n > l.NBins {
		n = l.NBins
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = start + i
	}

	return WithUniformAmplitude(idx...)
}
