// SPDX-License-Identifier: MIT

package prior_test

import (
	"fmt"

	"github.com/katalvlaran/bayeseor/prior"
)

func ExampleTransform_Apply() {
	layout := prior.Layout{NBins: 3, NoiseFitting: true}
	tr, _ := prior.New(prior.DefaultBounds(layout))
	x, _ := tr.Apply([]float64{0.5, 0.5, 0.5, 0.5})
	fmt.Println(x)
	// Output:
	// [1.5 3 2 2]
}
