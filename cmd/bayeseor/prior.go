// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/katalvlaran/bayeseor/problem"
)

func newPriorCmd(a *app) *cobra.Command {
	var (
		unit    []float64
		nbins   int
		bundle  string
		inverse bool
	)
	cmd := &cobra.Command{
		Use:   "prior",
		Short: "Map unit-cube coordinates through the configured prior",
		Long: `Prints the parameter vector the sampler would hand to the evaluator for the
given unit-cube point. The number of k-bins comes from --nbins or from the
partition stored in --problem. With --inverse the input is a parameter vector
and the unit-cube point is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if nbins == 0 && bundle != "" {
				p, err := problem.Load(bundle)
				if err != nil {
					return err
				}
				nbins = p.Inputs.Bins.Len()
			}
			if nbins < 1 {
				return errors.New("need --nbins or --problem")
			}
			tr, err := a.cfg.PriorTransform(nbins)
			if err != nil {
				return err
			}
			if inverse {
				u, err := tr.Inverse(unit)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatFloats(u))

				return nil
			}
			x, err := tr.Apply(unit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatFloats(x))

			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&unit, "unit", nil, "unit-cube coordinates (parameter vector with --inverse)")
	cmd.Flags().IntVar(&nbins, "nbins", 0, "number of power-spectrum bins")
	cmd.Flags().StringVarP(&bundle, "problem", "p", "", "problem bundle to take the bin count from")
	cmd.Flags().BoolVar(&inverse, "inverse", false, "map a parameter vector back to the unit cube")
	_ = cmd.MarkFlagRequired("unit")

	return cmd
}
