// SPDX-License-Identifier: MIT

// Package config loads the bayeseor command configuration.
//
// Values are layered: Default, then the YAML file, then BAYESEOR_*
// environment variables, then struct-tag validation.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/katalvlaran/bayeseor/linalg"
	"github.com/katalvlaran/bayeseor/posterior"
	"github.com/katalvlaran/bayeseor/prior"
	"github.com/katalvlaran/bayeseor/problem"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Environment variables consulted by ApplyEnv.
const (
	EnvStrategy      = "BAYESEOR_STRATEGY"
	EnvDevice        = "BAYESEOR_DEVICE"
	EnvBlockWorkers  = "BAYESEOR_BLOCK_WORKERS"
	EnvGridDir       = "BAYESEOR_GRID_DIR"
	EnvMetricsAddr   = "BAYESEOR_METRICS_ADDR"
	EnvInvLWPower    = "BAYESEOR_INVERSE_LW_POWER"
	EnvBlockDiagonal = "BAYESEOR_BLOCK_DIAGONAL"
)

// DefaultInverseLWPower effectively zeroes the LSSM prior precision.
const DefaultInverseLWPower = 1e-16

// Config is the full command configuration.
type Config struct {
	Evaluator Evaluator    `yaml:"evaluator"`
	Priors    Priors       `yaml:"priors"`
	Grid      Grid         `yaml:"grid"`
	Metrics   Metrics      `yaml:"metrics"`
	Problem   problem.Spec `yaml:"problem"`
}

// Evaluator mirrors the posterior options.
type Evaluator struct {
	LogPriors        bool    `yaml:"log_priors"`
	DimensionlessPS  bool    `yaml:"dimensionless_ps"`
	InverseLWPower   float64 `yaml:"inverse_lw_power" validate:"gte=0"`
	SHG              bool    `yaml:"shg"`
	LWMGaussianPrior bool    `yaml:"lwm_gaussian_prior"`
	Instrumental     bool    `yaml:"instrumental"`
	NoiseFitting     bool    `yaml:"noise_fitting"`
	UniformBins      int     `yaml:"uniform_bins" validate:"gte=-1"`

	// InverseSHGPower defaults to InverseLWPower when unset.
	InverseSHGPower *float64 `yaml:"inverse_shg_power,omitempty" validate:"omitempty,gte=0"`

	Strategy      string `yaml:"strategy" validate:"oneof=inverse cpu cholesky device gpu"`
	Device        string `yaml:"device"`
	BlockDiagonal bool   `yaml:"block_diagonal"`
	BlockWorkers  int    `yaml:"block_workers" validate:"gte=1"`
	// PrintRate of 0 picks the rate from the grid size.
	PrintRate int `yaml:"print_rate" validate:"gte=0"`
}

// Bound is a YAML form of prior.Bound.
type Bound struct {
	Lo   float64 `yaml:"lo"`
	Hi   float64 `yaml:"hi" validate:"gtfield=Lo"`
	Kind string  `yaml:"kind" validate:"oneof=log-uniform uniform-amplitude linear"`
}

// Priors selects the prior transform. Empty Bounds means prior.DefaultBounds.
type Priors struct {
	Bounds             []Bound `yaml:"bounds,omitempty" validate:"dive"`
	UniformLeadingBins int     `yaml:"uniform_leading_bins" validate:"gte=-1"`
}

// Grid locates an optional spectral-index grid.
type Grid struct {
	Dir     string  `yaml:"dir"`
	Spacing float64 `yaml:"spacing" validate:"gte=0"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Workers int     `yaml:"workers" validate:"gte=0"`
}

// Enabled reports whether a grid directory is configured.
func (g Grid) Enabled() bool { return g.Dir != "" }

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Evaluator: Evaluator{
			LogPriors:       true,
			DimensionlessPS: true,
			InverseLWPower:  DefaultInverseLWPower,
			UniformBins:     posterior.DefaultUniformBins,
			Strategy:        posterior.DefaultStrategy.String(),
			Device:          linalg.DefaultDevice,
			BlockWorkers:    posterior.DefaultBlockWorkers,
		},
		Problem: problem.DefaultSpec(),
	}
}

// Load reads path over the defaults, applies the environment and validates.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	return nil
}

// Save writes c as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides fields from BAYESEOR_* variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvStrategy); v != "" {
		c.Evaluator.Strategy = v
	}
	if v := os.Getenv(EnvDevice); v != "" {
		c.Evaluator.Device = v
	}
	if v := os.Getenv(EnvGridDir); v != "" {
		c.Grid.Dir = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv(EnvBlockWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvBlockWorkers, v, err)
		}
		c.Evaluator.BlockWorkers = n
	}
	if v := os.Getenv(EnvInvLWPower); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvInvLWPower, v, err)
		}
		c.Evaluator.InverseLWPower = p
	}
	if v := os.Getenv(EnvBlockDiagonal); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvBlockDiagonal, v, err)
		}
		c.Evaluator.BlockDiagonal = b
	}

	return nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Grid.Enabled() && (!(c.Grid.Spacing > 0) || !(c.Grid.Min+c.Grid.Spacing < c.Grid.Max)) {
		return fmt.Errorf("%w: grid spacing=%g range=[%g, %g]", ErrInvalid, c.Grid.Spacing, c.Grid.Min, c.Grid.Max)
	}
	if c.Evaluator.Instrumental && c.Evaluator.BlockDiagonal {
		return fmt.Errorf("%w: block_diagonal with instrumental effects", ErrInvalid)
	}

	return nil
}

// EvaluatorOptions translates the evaluator section. Logger, observer and
// spectral grid are left to the caller.
func (c *Config) EvaluatorOptions() ([]posterior.Option, error) {
	e := c.Evaluator
	s, err := linalg.ParseStrategy(e.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	opts := []posterior.Option{
		posterior.WithLogPriors(e.LogPriors),
		posterior.WithDimensionlessPS(e.DimensionlessPS),
		posterior.WithInverseLWPower(e.InverseLWPower),
		posterior.WithSHG(e.SHG),
		posterior.WithLWMGaussianPrior(e.LWMGaussianPrior),
		posterior.WithInstrumental(e.Instrumental),
		posterior.WithNoiseFitting(e.NoiseFitting),
		posterior.WithUniformBins(e.UniformBins),
		posterior.WithStrategy(s),
		posterior.WithBlockDiagonal(e.BlockDiagonal),
		posterior.WithBlockWorkers(e.BlockWorkers),
	}
	if e.Device != "" {
		opts = append(opts, posterior.WithLinalgOptions(linalg.WithDevice(e.Device)))
	}
	if e.PrintRate > 0 {
		opts = append(opts, posterior.WithPrintRate(e.PrintRate))
	}
	if e.InverseSHGPower != nil {
		opts = append(opts, posterior.WithInverseSHGPower(*e.InverseSHGPower))
	}

	return opts, nil
}

// Layout returns the parameter layout for nbins k-bins.
func (c *Config) Layout(nbins int) prior.Layout {
	l := prior.Layout{
		NBins:            nbins,
		NoiseFitting:     c.Evaluator.NoiseFitting,
		LWMGaussianPrior: c.Evaluator.LWMGaussianPrior,
	}
	if c.Grid.Enabled() {
		// b1 stops one spacing short so b2 stays on the grid.
		l.FitSpectral = true
		l.BetaMin = c.Grid.Min
		l.BetaMax = c.Grid.Max - c.Grid.Spacing
	}

	return l
}

// PriorTransform builds the prior for nbins k-bins.
func (c *Config) PriorTransform(nbins int) (*prior.Transform, error) {
	l := c.Layout(nbins)
	var bounds []prior.Bound
	if len(c.Priors.Bounds) == 0 {
		bounds = prior.DefaultBounds(l)
	} else {
		if len(c.Priors.Bounds) != l.Dims() {
			return nil, fmt.Errorf("%w: %d prior bounds for %d parameters", ErrInvalid, len(c.Priors.Bounds), l.Dims())
		}
		bounds = make([]prior.Bound, len(c.Priors.Bounds))
		for i, b := range c.Priors.Bounds {
			k, err := parseKind(b.Kind)
			if err != nil {
				return nil, err
			}
			bounds[i] = prior.Bound{Lo: b.Lo, Hi: b.Hi, Kind: k}
		}
	}

	var opts []prior.Option
	if n := c.Priors.UniformLeadingBins; n != 0 {
		opts = append(opts, prior.WithUniformLeadingBins(l, n))
	}

	return prior.New(bounds, opts...)
}

func parseKind(s string) (prior.Kind, error) {
	for _, k := range []prior.Kind{prior.KindLogUniform, prior.KindUniformAmplitude, prior.KindLinear} {
		if k.String() == s {
			return k, nil
		}
	}

	return 0, fmt.Errorf("%w: prior kind %q", ErrInvalid, s)
}
