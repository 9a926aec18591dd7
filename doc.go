// SPDX-License-Identifier: MIT

// Package bayeseor evaluates the Bayesian posterior of spherically averaged
// 21-cm power-spectrum amplitudes for a nested sampler.
//
// The module is organized by stage:
//
//	prior/      unit-cube to amplitude transform
//	posterior/  power vector, Sigma solve and marginal log-likelihood
//	linalg/     complex Hermitian factorization strategies and devices
//	gridcache/  precomputed spectral-index grid of T_Ninv_T and dbar
//	cosmo/      redshift, comoving distances and box sizes
//	kspace/     k-cube, masks and spherical binning
//	arrayio/    compressed named-array files
//	problem/    synthetic and stored evaluator inputs
//	metrics/    Prometheus observer
//	config/     YAML configuration for cmd/bayeseor
//
// A minimal evaluation:
//
//	e, err := posterior.New(inputs, posterior.WithStrategy(linalg.StrategyCholesky))
//	if err != nil { ... }
//	logL, derived, err := e.PosteriorProbability(x)
//
// Samples the solver cannot score return (-Inf, [-1]) so the sampler gives
// them zero weight.
package bayeseor
