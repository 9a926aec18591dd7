// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/katalvlaran/bayeseor/arrayio"
	"github.com/katalvlaran/bayeseor/cosmo"
	"github.com/katalvlaran/bayeseor/problem"
)

func parseCodec(name string) (arrayio.Codec, error) {
	for _, c := range []arrayio.Codec{arrayio.CodecZstd, arrayio.CodecLZ4, arrayio.CodecNone} {
		if c.String() == name {
			return c, nil
		}
	}

	return 0, fmt.Errorf("unknown codec %q", name)
}

func newSynthCmd(a *app) *cobra.Command {
	var (
		out   string
		codec string
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic block-diagonal problem bundle",
		Long: `Simulates a non-instrumental observation from the problem section of the
configuration and writes T_Ninv_T, dbar, the k-bin partition and geometry to
a single array file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCodec(codec)
			if err != nil {
				return err
			}
			spec := a.cfg.Problem
			if cmd.Flags().Changed("seed") {
				spec.Seed = seed
			}
			p, err := problem.Synthesize(spec, cosmo.Planck18())
			if err != nil {
				return err
			}
			if err = problem.Save(out, p, arrayio.WithCodec(c)); err != nil {
				return err
			}
			a.logger.Info("problem written",
				zap.String("path", out),
				zap.Int("npar", p.Inputs.Npar),
				zap.Int("bins", p.Inputs.Bins.Len()),
				zap.Stringer("codec", c))
			fmt.Fprintf(cmd.OutOrStdout(), "npar=%d bins=%d k=%s\n",
				p.Inputs.Npar, p.Inputs.Bins.Len(), formatFloats(p.Inputs.KVals))

			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "problem.arr", "output bundle path")
	cmd.Flags().StringVar(&codec, "codec", arrayio.CodecZstd.String(), "payload codec: zstd, lz4 or none")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override the configured random seed")

	return cmd
}
