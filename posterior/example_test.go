// SPDX-License-Identifier: MIT

package posterior_test

import (
	"fmt"
	"math"

	"github.com/katalvlaran/bayeseor/cosmo"
	"github.com/katalvlaran/bayeseor/kspace"
	"github.com/katalvlaran/bayeseor/linalg"
	"github.com/katalvlaran/bayeseor/posterior"
)

func ExampleEvaluator_PosteriorProbability() {
	id, _ := linalg.Identity(4)
	in := posterior.Inputs{
		TNinvT:   id,
		Dbar:     []complex128{1, 1, 1, 1},
		Npar:     4,
		Bins:     kspace.Partition{{0, 1, 2, 3}},
		Geometry: posterior.Geometry{Nuv: 1, Nu: 1, Nv: 1, Neta: 4, Nf: 4},
		KVals:    []float64{0.2},
		Box:      cosmo.BoxSize{RA: 2000, Dec: 2000, Para: 150},
		Band:     cosmo.Band{NuMinMHz: 158.3, ChannelWidthMHz: 0.238, Nf: 4},
	}
	e, err := posterior.New(in, posterior.WithStrategy(linalg.StrategyCholesky))
	if err != nil {
		fmt.Println(err)
		return
	}

	// An amplitude equal to the bin normalization gives PhiI = 1, Sigma = 2·I.
	v, derived, _ := e.PosteriorProbability([]float64{e.Normalization(0)})
	fmt.Printf("%.4f %v\n", v, derived)

	v, derived, _ = e.PosteriorProbability([]float64{0})
	fmt.Println(math.IsInf(v, -1), derived)
	// Output:
	// -0.3863 [0]
	// true [-1]
}
