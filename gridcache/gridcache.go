// SPDX-License-Identifier: MIT

// Package gridcache holds the precomputed (T_Ninv_T, dbar) pairs for a
// discretized grid of foreground spectral indices (β1, β2).
//
// Each grid point is stored as two array files in one directory:
//
//	T_Ninv_T_b1_<β1>_b2_<β2>.arr   (one Npar×Npar array of the same name)
//	dbar_b1_<β1>_b2_<β2>.arr       (one Npar×1 array of the same name)
//
// where β values are decimal strings with '.' replaced by 'd' (2.0 → "2d0").
// The whole grid is loaded and validated once; lookups are then read-only
// map accesses keyed by the grid-rounded coordinates.
package gridcache

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/bayeseor/arrayio"
	"github.com/katalvlaran/bayeseor/linalg"
)

const (
	// PrefixTNinvT names the precision-contribution matrix datasets.
	PrefixTNinvT = "T_Ninv_T"
	// PrefixDbar names the data-vector datasets.
	PrefixDbar = "dbar"
	// FileExt is appended to dataset names on disk.
	FileExt = ".arr"
)

var (
	// ErrGridMiss is returned by Lookup for a point that was not precomputed.
	// It is a setup error, not a property of the sample.
	ErrGridMiss = errors.New("gridcache: spectral grid point not found")

	// ErrIncompleteGrid indicates a T_Ninv_T file without its dbar partner or vice versa.
	ErrIncompleteGrid = errors.New("gridcache: incomplete grid point")

	// ErrShapeMismatch indicates inconsistent array shapes across the grid.
	ErrShapeMismatch = errors.New("gridcache: shape mismatch")

	// ErrInvalidSpacing indicates a non-positive or non-finite grid spacing.
	ErrInvalidSpacing = errors.New("gridcache: invalid grid spacing")

	// ErrEmptyGrid indicates a directory with no grid points.
	ErrEmptyGrid = errors.New("gridcache: empty grid")

	// ErrBadName indicates a file name that does not parse as a grid dataset.
	ErrBadName = errors.New("gridcache: malformed dataset name")
)

// Key is a grid point in units of the grid spacing.
type Key struct {
	B1, B2 int64
}

// KeyFor rounds (b1, b2) to the nearest grid point, ties to even.
func KeyFor(b1, b2, spacing float64) Key {
	return Key{
		B1: int64(math.RoundToEven(b1 / spacing)),
		B2: int64(math.RoundToEven(b2 / spacing)),
	}
}

// Values returns the grid coordinates as spacing·B.
func (k Key) Values(spacing float64) (b1, b2 float64) {
	return spacing * float64(k.B1), spacing * float64(k.B2)
}

// SpectralKey maps the two sampled spectral parameters to a grid key:
// b1 = pl0 and b2 = b1 + spacing + (plMax − b1 − spacing)·pl1, so b2 > b1.
func SpectralKey(pl0, pl1, spacing, plMax float64) Key {
	b1 := pl0
	b2 := b1 + spacing + (plMax-b1-spacing)*pl1

	return KeyFor(b1, b2, spacing)
}

// formatBeta renders v like a shortest float repr with at least one decimal.
func formatBeta(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}

	return strings.ReplaceAll(s, ".", "d")
}

// DatasetName returns e.g. "T_Ninv_T_b1_2d0_b2_3d5".
func DatasetName(prefix string, b1, b2 float64) string {
	return prefix + "_b1_" + formatBeta(b1) + "_b2_" + formatBeta(b2)
}

// parseDataset splits a dataset name into its prefix and β values.
func parseDataset(name string) (prefix string, b1, b2 float64, err error) {
	i := strings.LastIndex(name, "_b1_")
	j := strings.LastIndex(name, "_b2_")
	if i <= 0 || j <= i {
		return "", 0, 0, fmt.Errorf("%q: %w", name, ErrBadName)
	}
	prefix = name[:i]
	b1, err1 := strconv.ParseFloat(strings.ReplaceAll(name[i+4:j], "d", "."), 64)
	b2, err2 := strconv.ParseFloat(strings.ReplaceAll(name[j+4:], "d", "."), 64)
	if err1 != nil || err2 != nil {
		return "", 0, 0, fmt.Errorf("%q: %w", name, ErrBadName)
	}

	return prefix, b1, b2, nil
}

// Entry is one precomputed grid point.
type Entry struct {
	TNinvT *linalg.CDense
	Dbar   []complex128
}

// Grid is an immutable, fully loaded spectral grid; safe for concurrent use.
type Grid struct {
	spacing float64
	plMax   float64
	npar    int
	entries map[Key]Entry
}

// Spacing returns the grid spacing.
func (g *Grid) Spacing() float64 { return g.spacing }

// Max returns the upper spectral-index limit used by Spectral.
func (g *Grid) Max() float64 { return g.plMax }

// Npar returns the common model dimension of all entries.
func (g *Grid) Npar() int { return g.npar }

// Len returns the number of grid points.
func (g *Grid) Len() int { return len(g.entries) }

// Keys returns all grid keys sorted by (B1, B2).
func (g *Grid) Keys() []Key {
	out := make([]Key, 0, len(g.entries))
	for k := range g.entries {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].B1 != out[j].B1 {
			return out[i].B1 < out[j].B1
		}
		return out[i].B2 < out[j].B2
	})

	return out
}

// LookupKey returns the entry at k.
func (g *Grid) LookupKey(k Key) (Entry, error) {
	e, ok := g.entries[k]
	if !ok {
		b1, b2 := k.Values(g.spacing)
		return Entry{}, fmt.Errorf("%s: %w", DatasetName(PrefixTNinvT, b1, b2), ErrGridMiss)
	}

	return e, nil
}

// Lookup rounds (b1, b2) to the grid and returns that entry.
func (g *Grid) Lookup(b1, b2 float64) (Entry, error) {
	return g.LookupKey(KeyFor(b1, b2, g.spacing))
}

// Spectral resolves the two sampled spectral parameters via SpectralKey.
func (g *Grid) Spectral(pl0, pl1 float64) (Entry, Key, error) {
	k := SpectralKey(pl0, pl1, g.spacing, g.plMax)
	e, err := g.LookupKey(k)

	return e, k, err
}

// ---------- loading ----------

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	npar    int
	workers int
	logger  *zap.Logger
}

// WithNpar requires every entry to have dimension n.
func WithNpar(n int) Option { return func(o *loadOptions) { o.npar = n } }

// WithWorkers bounds concurrent file decoding.
func WithWorkers(n int) Option {
	return func(o *loadOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *loadOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Load reads every grid point in dir and validates that the grid is complete
// and shape-consistent.
//
// Errors: ErrInvalidSpacing, ErrEmptyGrid, ErrIncompleteGrid, ErrShapeMismatch,
// ErrBadName, linalg.ErrNotHermitian / linalg.ErrNaNInf for a T_Ninv_T that is
// not finite and Hermitian, and any file-decoding error.
func Load(dir string, spacing, plMax float64, opts ...Option) (*Grid, error) {
	if !(spacing > 0) || math.IsInf(spacing, 0) {
		return nil, fmt.Errorf("Load: %g: %w", spacing, ErrInvalidSpacing)
	}
	o := loadOptions{workers: runtime.GOMAXPROCS(0), logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}

	pairs, err := scan(dir, spacing)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("Load(%s): %w", dir, ErrEmptyGrid)
	}

	g := &Grid{spacing: spacing, plMax: plMax, npar: o.npar, entries: make(map[Key]Entry, len(pairs))}
	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	eg.SetLimit(o.workers)
	for k, p := range pairs {
		k, p := k, p
		eg.Go(func() error {
			e, err := loadEntry(dir, p)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if g.npar == 0 {
				g.npar = len(e.Dbar)
			}
			if e.TNinvT.Rows() != g.npar || len(e.Dbar) != g.npar {
				return fmt.Errorf("Load: %s is %d, want %d: %w", p.t, len(e.Dbar), g.npar, ErrShapeMismatch)
			}
			g.entries[k] = e
			return nil
		})
	}
	if err = eg.Wait(); err != nil {
		return nil, err
	}
	o.logger.Info("spectral grid loaded",
		zap.String("dir", dir),
		zap.Int("points", len(g.entries)),
		zap.Int("npar", g.npar),
		zap.Float64("spacing", spacing))

	return g, nil
}

type pair struct{ t, d string }

// scan pairs up dataset files by key.
func scan(dir string, spacing float64) (map[Key]pair, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	pairs := make(map[Key]pair)
	for _, de := range ents {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, FileExt) {
			continue
		}
		ds := strings.TrimSuffix(name, FileExt)
		prefix, b1, b2, err := parseDataset(ds)
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		k := KeyFor(b1, b2, spacing)
		p := pairs[k]
		switch prefix {
		case PrefixTNinvT:
			p.t = ds
		case PrefixDbar:
			p.d = ds
		default:
			continue
		}
		pairs[k] = p
	}
	for _, p := range pairs {
		if p.t == "" || p.d == "" {
			return nil, fmt.Errorf("Load: %q/%q: %w", p.t, p.d, ErrIncompleteGrid)
		}
	}

	return pairs, nil
}

func loadEntry(dir string, p pair) (Entry, error) {
	tArr, err := readOne(dir, p.t)
	if err != nil {
		return Entry{}, err
	}
	dArr, err := readOne(dir, p.d)
	if err != nil {
		return Entry{}, err
	}
	if tArr.Rows != tArr.Cols || dArr.Cols != 1 || dArr.Rows != tArr.Rows {
		return Entry{}, fmt.Errorf("Load: %s %dx%d vs %s %dx%d: %w",
			p.t, tArr.Rows, tArr.Cols, p.d, dArr.Rows, dArr.Cols, ErrShapeMismatch)
	}
	m, err := linalg.NewCDenseFrom(tArr.Rows, tArr.Cols, tArr.Data)
	if err != nil {
		return Entry{}, fmt.Errorf("Load: %s: %w", p.t, err)
	}
	if err = linalg.ValidateHermitianRel(m, linalg.DefaultHermitianTol); err != nil {
		return Entry{}, fmt.Errorf("Load: %s: %w", p.t, err)
	}

	return Entry{TNinvT: m, Dbar: dArr.Data}, nil
}

func readOne(dir, dataset string) (arrayio.Array, error) {
	arc, err := arrayio.ReadFile(filepath.Join(dir, dataset+FileExt))
	if err != nil {
		return arrayio.Array{}, err
	}

	return arc.Get(dataset)
}

// Save writes one grid point under dir using the naming convention above.
func Save(dir string, spacing, b1, b2 float64, e Entry, opts ...arrayio.Option) error {
	if !(spacing > 0) {
		return fmt.Errorf("Save: %g: %w", spacing, ErrInvalidSpacing)
	}
	if e.TNinvT == nil || e.TNinvT.Rows() != e.TNinvT.Cols() || e.TNinvT.Rows() != len(e.Dbar) {
		return fmt.Errorf("Save: %w", ErrShapeMismatch)
	}
	rb1, rb2 := KeyFor(b1, b2, spacing).Values(spacing)
	n := len(e.Dbar)

	tName := DatasetName(PrefixTNinvT, rb1, rb2)
	t, err := arrayio.NewArray(tName, n, n, e.TNinvT.Data())
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	if err = arrayio.WriteFile(filepath.Join(dir, tName+FileExt), []arrayio.Array{t}, opts...); err != nil {
		return err
	}
	dName := DatasetName(PrefixDbar, rb1, rb2)

	return arrayio.WriteFile(filepath.Join(dir, dName+FileExt), []arrayio.Array{arrayio.Vector(dName, e.Dbar)}, opts...)
}
