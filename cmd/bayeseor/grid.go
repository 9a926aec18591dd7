// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/katalvlaran/bayeseor/gridcache"
)

func newGridCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Spectral-index grid utilities",
	}
	cmd.AddCommand(newGridCheckCmd(a))

	return cmd
}

func newGridCheckCmd(a *app) *cobra.Command {
	var (
		dir     string
		spacing float64
		plMax   float64
		npar    int
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load a grid directory and report its extent",
		Long: `Reads every T_Ninv_T/dbar pair in the directory, checking that each grid
point is complete and all arrays share one shape.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := a.cfg.Grid
			if dir == "" {
				dir = g.Dir
			}
			if !cmd.Flags().Changed("spacing") {
				spacing = g.Spacing
			}
			if !cmd.Flags().Changed("max") {
				plMax = g.Max
			}
			if dir == "" {
				return errors.New("need --dir or grid.dir")
			}

			opts := []gridcache.Option{
				gridcache.WithWorkers(g.Workers),
				gridcache.WithLogger(a.logger),
			}
			if npar > 0 {
				opts = append(opts, gridcache.WithNpar(npar))
			}
			grid, err := gridcache.Load(dir, spacing, plMax, opts...)
			if err != nil {
				return err
			}

			keys := grid.Keys()
			first, _ := keys[0].Values(spacing)
			last, _ := keys[len(keys)-1].Values(spacing)
			a.logger.Debug("grid checked", zap.String("dir", dir), zap.Int("points", grid.Len()))
			fmt.Fprintf(cmd.OutOrStdout(), "points=%d npar=%d b1=[%g, %g]\n", grid.Len(), grid.Npar(), first, last)

			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "grid directory (defaults to grid.dir)")
	cmd.Flags().Float64Var(&spacing, "spacing", 0, "grid spacing (defaults to grid.spacing)")
	cmd.Flags().Float64Var(&plMax, "max", 0, "largest spectral index (defaults to grid.max)")
	cmd.Flags().IntVar(&npar, "npar", 0, "expected matrix dimension")

	return cmd
}
