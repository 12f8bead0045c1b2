package kernel

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-ephys/internal/testutil"
)

func TestFullRecoversKnownKernel(t *testing.T) {
	// Round trip: drive a known kernel with white noise and recover it.
	const (
		n     = 1 << 15
		ksize = 16
	)

	i := testutil.DeterministicNoise(7, 1.0, n)
	kTrue := testutil.ExpDecay(0.8, 0.35, ksize)
	v := testutil.CausalConv(i, kTrue)

	got, err := Full(v, i, ksize)
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNear(t, got, kTrue, 0.02)
}

func TestFullWithOffsetRecoversRestingPotential(t *testing.T) {
	const (
		n     = 1 << 15
		ksize = 16
		vRest = -70.0
	)

	i := testutil.DeterministicNoise(11, 1.0, n)
	kTrue := testutil.ExpDecay(0.8, 0.35, ksize)

	v := testutil.CausalConv(i, kTrue)
	for m := range v {
		v[m] += vRest
	}

	got, v0, err := FullWithOffset(v, i, ksize)
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNear(t, got, kTrue, 0.02)

	if math.Abs(v0-vRest) > 0.2 {
		t.Errorf("v0 = %g, want %g (±0.2)", v0, vRest)
	}
}

func TestFullConstantCurrentIllConditioned(t *testing.T) {
	v := testutil.DeterministicNoise(3, 1.0, 1024)
	i := testutil.DC(0.5, 1024)

	_, err := Full(v, i, 16)
	if !errors.Is(err, ErrIllConditioned) {
		t.Fatalf("err = %v, want ErrIllConditioned", err)
	}
}

func TestFullInputValidation(t *testing.T) {
	noise := testutil.DeterministicNoise(1, 1.0, 64)

	cases := []struct {
		name string
		v, i []float64
		size int
		want error
	}{
		{"zero size", noise, noise, 0, ErrInvalidKernelSize},
		{"negative size", noise, noise, -4, ErrInvalidKernelSize},
		{"empty traces", nil, nil, 8, ErrEmptyTrace},
		{"length mismatch", noise, noise[:32], 8, ErrLengthMismatch},
		{"too short", noise, noise, 65, ErrTraceTooShort},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Full(tc.v, tc.i, tc.size)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestFullMinimumLengthAccepted(t *testing.T) {
	// A trace exactly ksize samples long is the minimum accepted length.
	// The estimate itself is poorly determined, but it must not be
	// rejected as too short.
	noise := testutil.DeterministicNoise(5, 1.0, 8)

	_, err := Full(noise, noise, 8)
	if errors.Is(err, ErrTraceTooShort) {
		t.Fatalf("minimum-length trace rejected: %v", err)
	}
}

func TestFullFromStepExact(t *testing.T) {
	kTrue := []float64{0.5, 0.3, 0.2, 0.1}

	const i0 = 2.0

	// Baseline-subtracted step response: i0 times the running kernel sum.
	v := make([]float64, 10)
	var cum float64
	for n := range v {
		if n < len(kTrue) {
			cum += kTrue[n]
		}
		v[n] = i0 * cum
	}

	got, err := FullFromStep(v, i0, len(kTrue))
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNear(t, got, kTrue, 1e-14)
}

func TestFullFromStepValidation(t *testing.T) {
	v := testutil.DC(1, 16)

	if _, err := FullFromStep(v, 0, 8); !errors.Is(err, ErrZeroStep) {
		t.Errorf("zero step: err = %v, want ErrZeroStep", err)
	}

	if _, err := FullFromStep(v, 1, 17); !errors.Is(err, ErrTraceTooShort) {
		t.Errorf("too short: err = %v, want ErrTraceTooShort", err)
	}

	if _, err := FullFromStep(nil, 1, 4); !errors.Is(err, ErrEmptyTrace) {
		t.Errorf("empty: err = %v, want ErrEmptyTrace", err)
	}

	if _, err := FullFromStep(v, 1, 0); !errors.Is(err, ErrInvalidKernelSize) {
		t.Errorf("zero size: err = %v, want ErrInvalidKernelSize", err)
	}
}

func BenchmarkFull(b *testing.B) {
	const (
		n     = 1 << 14
		ksize = 128
	)

	i := testutil.DeterministicNoise(7, 1.0, n)
	kTrue := testutil.ExpDecay(0.8, 0.2, ksize)
	v := testutil.CausalConv(i, kTrue)

	b.ResetTimer()

	for range b.N {
		if _, err := Full(v, i, ksize); err != nil {
			b.Fatal(err)
		}
	}
}
