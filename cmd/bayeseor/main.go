// SPDX-License-Identifier: MIT

// Command bayeseor synthesizes evaluator inputs, evaluates the 21-cm
// power-spectrum posterior and inspects spectral-index grids.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/katalvlaran/bayeseor/config"
)

// app carries the state shared by every subcommand.
type app struct {
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "bayeseor",
		Short: "Bayesian 21-cm power-spectrum posterior evaluation",
		Long: `bayeseor evaluates the marginal posterior of spherically binned 21-cm
power-spectrum amplitudes given a precomputed T_Ninv_T matrix and data vector.

Configuration is read from --config (YAML), then BAYESEOR_* environment
variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg

			zc := zap.NewProductionConfig()
			if a.verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			if a.logger, err = zc.Build(); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newSynthCmd(a),
		newEvaluateCmd(a),
		newPriorCmd(a),
		newGridCmd(a),
	)

	return root
}

func formatFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', 10, 64)
	}

	return strings.Join(parts, ",")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
