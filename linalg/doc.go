// SPDX-License-Identifier: MIT

// Package linalg provides the complex dense linear algebra behind the
// posterior evaluator.
//
// The package offers:
//
//   - CDense, a row-major complex128 matrix with safe accessors, diagonal
//     updates and diagonal-block extraction.
//   - Native Hermitian Cholesky, triangular solves, pivoted LU, inverse and
//     log-determinant routines.
//   - A real embedding of complex Hermitian systems so gonum's mat package
//     (Dense.Inverse, Cholesky) can factorize them.
//   - The Factorizer interface with three strategies: direct inversion,
//     CPU Cholesky and accelerator-device Cholesky.
//   - A Device registry with a built-in goroutine-parallel "host" device and
//     capability probing with fallback to the CPU strategy.
//
// Precision matrices in this domain are Hermitian and, in the well-posed case,
// positive definite. The inverse strategy is numerically fragile on badly
// conditioned inputs; prefer the Cholesky strategies when that matters.
//
// See example_test.go for usage.
package linalg
