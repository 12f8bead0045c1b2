// Package testutil provides deterministic signal generators for tests.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicNoise generates zero-mean white noise with a fixed seed.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// ExpDecay generates amp·exp(-lambda·n) for n = 0..length-1.
// This is the discrete form of a single-compartment RC impulse response.
func ExpDecay(amp, lambda float64, length int) []float64 {
	out := make([]float64, length)
	for n := range out {
		out[n] = amp * math.Exp(-lambda*float64(n))
	}
	return out
}

// CausalConv computes the causal convolution of signal x with kernel k,
// assuming zero input before the first sample. The result has len(x)
// samples: out[n] = Σ k[j]·x[n-j] over j ≤ min(n, len(k)-1).
func CausalConv(x, k []float64) []float64 {
	out := make([]float64, len(x))
	for n := range x {
		jmax := n
		if jmax > len(k)-1 {
			jmax = len(k) - 1
		}
		for j := 0; j <= jmax; j++ {
			out[n] += k[j] * x[n-j]
		}
	}
	return out
}
