// SPDX-License-Identifier: MIT

package linalg

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Strategy selects how precision matrices are factorized. It is resolved once
// into a Factorizer and never re-branched per call.
type Strategy uint8

const (
	// StrategyInverse inverts the matrix directly on the CPU.
	StrategyInverse Strategy = iota
	// StrategyCholesky uses a CPU Cholesky factorization.
	StrategyCholesky
	// StrategyDevice runs the Cholesky on an accelerator device.
	StrategyDevice
)

var strategyNames = [...]string{
	StrategyInverse:  "inverse",
	StrategyCholesky: "cholesky",
	StrategyDevice:   "device",
}

// String implements fmt.Stringer.
func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}

	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

// ParseStrategy maps a case-insensitive name to a Strategy. "gpu" is accepted
// as an alias of "device".
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "inverse", "cpu":
		return StrategyInverse, nil
	case "cholesky":
		return StrategyCholesky, nil
	case "device", "gpu":
		return StrategyDevice, nil
	}

	return 0, fmt.Errorf("ParseStrategy(%q): %w", name, ErrUnknownStrategy)
}

// Resolve turns s into a ready Factorizer.
//
// For StrategyDevice the configured device is probed; if it is unavailable the
// run degrades to StrategyInverse and a single warning is logged. Callers
// detect the fallback by comparing the returned Factorizer's Strategy with s.
func Resolve(s Strategy, opts ...Option) (Factorizer, error) {
	o := gatherOptions(opts...)
	switch s {
	case StrategyInverse:
		return NewInverseFactorizer(), nil
	case StrategyCholesky:
		return NewCholeskyFactorizer(), nil
	case StrategyDevice:
		dev, err := ProbeDevice(o.device, opts...)
		if err != nil {
			o.logger.Warn("accelerator unavailable, falling back to CPU inverse",
				zap.String("device", o.device),
				zap.Error(err))
			return NewInverseFactorizer(), nil
		}
		o.logger.Info("accelerator device ready", zap.String("device", dev.Name()))
		return NewDeviceFactorizer(dev, o.verbose), nil
	}

	return nil, fmt.Errorf("Resolve(%v): %w", s, ErrUnknownStrategy)
}
