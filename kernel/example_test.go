package kernel_test

import (
	"fmt"

	"github.com/cwbudde/algo-ephys/kernel"
)

func ExampleFullFromStep() {
	// Baseline-subtracted voltage response to a 2 nA current step:
	// the kernel is the scaled discrete derivative of the step response.
	const i0 = 2.0

	kTrue := []float64{0.5, 0.3, 0.2, 0.1}

	v := make([]float64, 8)
	var cum float64
	for n := range v {
		if n < len(kTrue) {
			cum += kTrue[n]
		}
		v[n] = i0 * cum
	}

	k, err := kernel.FullFromStep(v, i0, len(kTrue))
	if err != nil {
		panic(err)
	}

	for _, c := range k {
		fmt.Printf("%.2f ", c)
	}
	// Output: 0.50 0.30 0.20 0.10
}
