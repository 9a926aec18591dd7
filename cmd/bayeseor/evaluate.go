// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/katalvlaran/bayeseor/gridcache"
	"github.com/katalvlaran/bayeseor/metrics"
	"github.com/katalvlaran/bayeseor/posterior"
	"github.com/katalvlaran/bayeseor/problem"
)

type evaluateFlags struct {
	problem     string
	x           []float64
	unit        []float64
	repeat      int
	metricsAddr string
	serve       bool
}

func newEvaluateCmd(a *app) *cobra.Command {
	var f evaluateFlags
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the log posterior at one parameter vector",
		Long: `Loads a problem bundle, builds the evaluator from the configuration and
evaluates the log posterior --repeat times, reporting the mean call time.

The point is given either directly (--x, in evaluator units) or as unit-cube
coordinates (--unit) mapped through the configured prior. Without either the
centre of the unit cube is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.repeat < 1 {
				return fmt.Errorf("--repeat must be >= 1, got %d", f.repeat)
			}
			if len(f.x) > 0 && len(f.unit) > 0 {
				return errors.New("--x and --unit are mutually exclusive")
			}
			if f.metricsAddr == "" {
				f.metricsAddr = a.cfg.Metrics.Addr
			}

			return runEvaluate(cmd, a, f)
		},
	}
	cmd.Flags().StringVarP(&f.problem, "problem", "p", "problem.arr", "problem bundle written by synth")
	cmd.Flags().Float64SliceVar(&f.x, "x", nil, "parameter vector")
	cmd.Flags().Float64SliceVar(&f.unit, "unit", nil, "unit-cube coordinates mapped through the prior")
	cmd.Flags().IntVarP(&f.repeat, "repeat", "n", 1, "number of evaluations to time")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&f.serve, "serve", false, "keep serving metrics until interrupted")

	return cmd
}

func runEvaluate(cmd *cobra.Command, a *app, f evaluateFlags) error {
	p, err := problem.Load(f.problem)
	if err != nil {
		return err
	}
	opts, err := a.cfg.EvaluatorOptions()
	if err != nil {
		return err
	}
	opts = append(opts, posterior.WithLogger(a.logger))

	var srv *http.Server
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, posterior.WithObserver(metrics.NewPrometheus(reg)))
		srv = serveMetrics(a.logger, f.metricsAddr, reg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	if g := a.cfg.Grid; g.Enabled() {
		grid, err := gridcache.Load(g.Dir, g.Spacing, g.Max,
			gridcache.WithNpar(p.Inputs.Npar),
			gridcache.WithWorkers(g.Workers),
			gridcache.WithLogger(a.logger))
		if err != nil {
			return err
		}
		opts = append(opts, posterior.WithSpectralGrid(grid))
	}

	e, err := posterior.New(p.Inputs, opts...)
	if err != nil {
		return err
	}

	x := f.x
	if len(x) == 0 {
		tr, err := a.cfg.PriorTransform(p.Inputs.Bins.Len())
		if err != nil {
			return err
		}
		u := f.unit
		if len(u) == 0 {
			u = make([]float64, tr.Dims())
			for i := range u {
				u[i] = 0.5
			}
		}
		if x, err = tr.Apply(u); err != nil {
			return err
		}
	}
	if len(x) != e.Dims() {
		return fmt.Errorf("parameter vector has %d entries, evaluator expects %d", len(x), e.Dims())
	}

	var (
		value   float64
		derived []float64
		total   time.Duration
		i       int
	)
	for i = 0; i < f.repeat; i++ {
		start := time.Now()
		value, derived, err = e.PosteriorProbability(x)
		total += time.Since(start)
		if err != nil {
			return err
		}
	}
	avg := total / time.Duration(f.repeat)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		a.logger.Warn("non-finite log posterior",
			zap.Float64s("params", x),
			zap.Float64("value", value),
			zap.Float64s("derived", derived))
	}
	a.logger.Info("evaluation finished",
		zap.String("run_id", e.RunID()),
		zap.Stringer("strategy", e.Strategy()),
		zap.Int("repeat", f.repeat),
		zap.Duration("avg", avg))
	fmt.Fprintf(cmd.OutOrStdout(), "x=%s\nlog_posterior=%g derived=%s avg=%s\n",
		formatFloats(x), value, formatFloats(derived), avg)

	if srv != nil && f.serve {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a.logger.Info("serving metrics until interrupted", zap.String("addr", f.metricsAddr))
		<-ctx.Done()
	}

	return nil
}

func serveMetrics(logger *zap.Logger, addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()

	return srv
}
