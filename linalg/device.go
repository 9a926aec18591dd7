// SPDX-License-Identifier: MIT
// Package linalg - accelerator devices for the Cholesky strategy.
//
// The device boundary mirrors a LAPACK zpotrf call: matrix order, number of
// right-hand sides, the Hermitian matrix (row-major, factorized in place into
// its lower factor), the right-hand sides (overwritten with the solutions when
// nrhs > 0), a verbosity flag and an out-of-band error-flag buffer.
//
// Devices are registered by name and opened through ProbeDevice, which also
// runs a small self-test so an unusable backend is detected at startup rather
// than during sampling. The built-in "host" device is a blocked Cholesky whose
// panel and trailing updates run on a bounded goroutine pool.

package linalg

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Device is a dense linear-algebra backend able to run a Hermitian Cholesky.
type Device interface {
	// Name identifies the device in logs.
	Name() string

	// Potrf factorizes the n×n matrix a in place (lower factor, strict upper
	// triangle zeroed) and, when nrhs > 0, overwrites b (nrhs vectors of
	// length n, back to back) with the solutions of A·x = b.
	//
	// info[0] receives 0 on success, j (1-based) when the j-th pivot is not
	// positive, or -k when argument k is illegal. A returned error means the
	// call itself could not be made.
	Potrf(n, nrhs int, a, b []complex128, verbose bool, info []int) error
}

// DeviceConfig is passed to a DeviceOpener.
type DeviceConfig struct {
	Workers   int
	BlockSize int
	Logger    *zap.Logger
}

// DeviceOpener creates a device instance.
type DeviceOpener func(cfg DeviceConfig) (Device, error)

var (
	devicesMu sync.RWMutex
	devices   = map[string]DeviceOpener{
		DefaultDevice: openHostDevice,
	}
)

// RegisterDevice makes a device available under name.
// It panics if open is nil or name is already registered.
func RegisterDevice(name string, open DeviceOpener) {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	if open == nil {
		panic("linalg: RegisterDevice: opener is nil")
	}
	if _, dup := devices[name]; dup {
		panic("linalg: RegisterDevice: duplicate device " + name)
	}
	devices[name] = open
}

// Devices returns the sorted names of registered devices.
func Devices() []string {
	devicesMu.RLock()
	defer devicesMu.RUnlock()
	out := make([]string, 0, len(devices))
	for name := range devices {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}

// ProbeDevice opens the named device and checks it can factorize a small
// positive-definite system.
//
// Errors: ErrNoDevice (wrapped) when the name is unknown, the opener fails, or
// the self-test does not reproduce the expected factor.
func ProbeDevice(name string, opts ...Option) (Device, error) {
	o := gatherOptions(opts...)
	devicesMu.RLock()
	open, ok := devices[name]
	devicesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ProbeDevice(%s): %w", name, ErrNoDevice)
	}
	dev, err := open(DeviceConfig{Workers: o.workers, BlockSize: o.blockSize, Logger: o.logger})
	if err != nil {
		return nil, fmt.Errorf("ProbeDevice(%s): %w: %v", name, ErrNoDevice, err)
	}
	if err = selfTest(dev); err != nil {
		return nil, fmt.Errorf("ProbeDevice(%s): %w: %v", name, ErrNoDevice, err)
	}

	return dev, nil
}

// selfTest factorizes [[4, 2i], [-2i, 2]] = L·Lᴴ with L = [[2, 0], [-i, 1]].
func selfTest(dev Device) error {
	a := []complex128{4, 2i, -2i, 2}
	b := []complex128{2, 1}
	info := []int{0}
	if err := dev.Potrf(2, 1, a, b, false, info); err != nil {
		return err
	}
	if info[0] != 0 {
		return &FactorizationError{Info: info[0]}
	}
	want := []complex128{2, 0, -1i, 1}
	for i := range want {
		if cmplx.Abs(a[i]-want[i]) > 1e-12 {
			return fmt.Errorf("self-test factor mismatch at %d: %v", i, a[i])
		}
	}

	return nil
}

// ---------- host device ----------

type hostDevice struct {
	workers   int
	blockSize int
	log       *zap.Logger
}

func openHostDevice(cfg DeviceConfig) (Device, error) {
	return NewHostDevice(cfg), nil
}

// NewHostDevice returns the CPU-parallel device directly, without registration.
func NewHostDevice(cfg DeviceConfig) Device {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BlockSize < 1 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &hostDevice{workers: cfg.Workers, blockSize: cfg.BlockSize, log: cfg.Logger}
}

func (h *hostDevice) Name() string { return DefaultDevice }

// Potrf implements Device.
//
// Implementation (right-looking blocked Cholesky, lower, row-major):
//   - n <= block size: CholeskyInPlace, no goroutines.
//   - Stage 1: factor the nb×nb diagonal block serially.
//   - Stage 2: solve the panel below it; rows are independent and run in parallel.
//   - Stage 3: subtract the panel's outer product from the trailing lower
//     triangle, again row-parallel.
//
// Complexity: O(n³/3) flops spread over the worker pool.
func (h *hostDevice) Potrf(n, nrhs int, a, b []complex128, verbose bool, info []int) error {
	if len(info) < 1 {
		return fmt.Errorf("hostDevice.Potrf: %w", ErrDimensionMismatch)
	}
	info[0] = 0
	switch {
	case n < 0:
		info[0] = -1
	case nrhs < 0:
		info[0] = -2
	case len(a) < n*n:
		info[0] = -3
	case len(b) < n*nrhs:
		info[0] = -4
	}
	if info[0] != 0 {
		return nil
	}
	start := time.Now()
	l := &CDense{r: n, c: n, data: a[:n*n]}

	if n <= h.blockSize {
		// One panel: the serial factorization is the whole job.
		if err := CholeskyInPlace(l); err != nil {
			var fe *FactorizationError
			if !errors.As(err, &fe) {
				return err
			}
			info[0] = fe.Info
			return nil
		}
	} else if j, err := h.blocked(a, n); err != nil || j != 0 {
		info[0] = j
		return err
	}

	if nrhs > 0 {
		for r := 0; r < nrhs; r++ {
			x, err := CholSolve(l, b[r*n:(r+1)*n])
			if err != nil {
				return err
			}
			copy(b[r*n:(r+1)*n], x)
		}
	}
	if verbose {
		h.log.Debug("host potrf",
			zap.Int("n", n),
			zap.Int("nrhs", nrhs),
			zap.Int("block_size", h.blockSize),
			zap.Int("workers", h.workers),
			zap.Duration("elapsed", time.Since(start)))
	}

	return nil
}

// blocked runs the panel loop over a and zeroes the strict upper triangle.
// It returns the 1-based column of a failed pivot, or 0.
func (h *hostDevice) blocked(a []complex128, n int) (int, error) {
	var kb, nb int
	for kb = 0; kb < n; kb += h.blockSize {
		nb = h.blockSize
		if kb+nb > n {
			nb = n - kb
		}
		if j := factorDiagBlock(a, n, kb, nb); j != 0 {
			return j, nil
		}
		end := kb + nb
		if err := h.rows(end, n, func(i int) { panelRow(a, n, kb, nb, i) }); err != nil {
			return 0, err
		}
		if err := h.rows(end, n, func(i int) { trailingRow(a, n, kb, nb, i) }); err != nil {
			return 0, err
		}
	}
	var i, j int
	for i = 0; i < n; i++ {
		for j = i + 1; j < n; j++ {
			a[i*n+j] = 0
		}
	}

	return 0, nil
}

// rows runs fn(i) for i in [lo, hi) on at most h.workers goroutines.
func (h *hostDevice) rows(lo, hi int, fn func(i int)) error {
	if hi <= lo {
		return nil
	}
	if h.workers == 1 || hi-lo < 2*h.workers {
		for i := lo; i < hi; i++ {
			fn(i)
		}
		return nil
	}
	chunk := (hi - lo + h.workers - 1) / h.workers
	var g errgroup.Group
	g.SetLimit(h.workers)
	for s := lo; s < hi; s += chunk {
		s := s
		e := min(s+chunk, hi)
		g.Go(func() error {
			for i := s; i < e; i++ {
				fn(i)
			}
			return nil
		})
	}

	return g.Wait()
}

// factorDiagBlock factors a[kb:kb+nb, kb:kb+nb] in place. Columns left of kb
// have already been folded in by earlier trailing updates. Returns the 1-based
// global column of a failed pivot, or 0.
func factorDiagBlock(a []complex128, n, kb, nb int) int {
	var (
		i, j, k int
		diag    float64
		sum     complex128
	)
	for j = kb; j < kb+nb; j++ {
		diag = real(a[j*n+j])
		for k = kb; k < j; k++ {
			diag -= real(a[j*n+k])*real(a[j*n+k]) + imag(a[j*n+k])*imag(a[j*n+k])
		}
		if !(diag > 0) || math.IsInf(diag, 0) {
			return j + 1
		}
		diag = math.Sqrt(diag)
		a[j*n+j] = complex(diag, 0)
		for i = j + 1; i < kb+nb; i++ {
			sum = a[i*n+j]
			for k = kb; k < j; k++ {
				sum -= a[i*n+k] * cmplx.Conj(a[j*n+k])
			}
			a[i*n+j] = sum / complex(diag, 0)
		}
	}

	return 0
}

// panelRow solves row i of the panel below the diagonal block.
func panelRow(a []complex128, n, kb, nb, i int) {
	var (
		j, k int
		sum  complex128
	)
	for j = kb; j < kb+nb; j++ {
		sum = a[i*n+j]
		for k = kb; k < j; k++ {
			sum -= a[i*n+k] * cmplx.Conj(a[j*n+k])
		}
		a[i*n+j] = sum / a[j*n+j]
	}
}

// trailingRow applies the rank-nb update to row i of the trailing lower triangle.
func trailingRow(a []complex128, n, kb, nb, i int) {
	var (
		j, k int
		sum  complex128
	)
	end := kb + nb
	for j = end; j <= i; j++ {
		sum = 0
		for k = kb; k < end; k++ {
			sum += a[i*n+k] * cmplx.Conj(a[j*n+k])
		}
		a[i*n+j] -= sum
	}
}
