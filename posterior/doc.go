// SPDX-License-Identifier: MIT

// Package posterior evaluates the marginal posterior probability of 21-cm
// power-spectrum bin amplitudes.
//
// Each call runs four stages on a private call value:
//
//  1. unpack: strip the optional spectral-index pair (swapping in the
//     precomputed T_Ninv_T and dbar of the nearest grid point) and the
//     optional noise amplitude α', then leave log space if configured;
//  2. power: build the diagonal prior precision PhiI, with the LSSM and
//     sub-harmonic index families, a flat precision on masked Fourier
//     modes and one normalization per k-bin;
//  3. solve: factorize Sigma = T_Ninv_T/α'² + diag(PhiI), either whole or
//     per (u, v) block, with the strategy resolved once in New;
//  4. score: MargLogL = -½·log|Sigma| - ½·log|Phi| + ½·dbarᴴ·Sigma⁻¹·dbar,
//     plus the uniform-prior Jacobian and noise terms.
//
// Numerical failures surface as *RejectedSampleError, which
// PosteriorProbability turns into (-Inf, [-1]). A factorization that reports
// a non-zero flag zero-weights the sample with log|Sigma| = +Inf. Setup
// errors (dimension mismatch, grid miss) are returned unchanged.
//
// New rejects a T_Ninv_T or block that is not Hermitian. BuildSigma and
// Covariance expose Sigma and Sigma⁻¹ for inspection.
//
// An Evaluator may be shared between goroutines.
package posterior
