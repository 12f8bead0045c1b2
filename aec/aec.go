// Package aec implements linear active electrode compensation.
//
// Given an electrode kernel estimated by the kernel package, the predicted
// electrode voltage is the causal convolution of the injected current with
// that kernel; subtracting it from the raw recording leaves the membrane
// potential. Compensation is a pure function of its inputs with no state
// between calls.
//
// # Boundary policy
//
// The current before the first recorded sample is taken to be zero, so the
// first len(ke)-1 output samples are compensated against a zero-padded
// current history. Recordings that begin mid-injection should discard a
// kernel-length warm-up region on the caller side.
package aec

import (
	"errors"
	"fmt"

	algofft "github.com/cwbudde/algo-fft"
)

// Errors returned by compensation functions.
var (
	ErrEmptyTrace     = errors.New("aec: empty trace")
	ErrEmptyKernel    = errors.New("aec: empty electrode kernel")
	ErrLengthMismatch = errors.New("aec: trace length mismatch")
	ErrKernelTooLong  = errors.New("aec: electrode kernel longer than trace")
)

// directThreshold selects the direct convolution path for short kernels;
// longer kernels go through the FFT.
const directThreshold = 64

// Compensate removes the electrode contribution from the recorded voltage v.
//
// The predicted electrode voltage is the causal convolution of the injected
// current i with the electrode kernel ke (only past and present current
// samples contribute), and the result is v minus that prediction, one sample
// per input sample. Compensating with an all-zero kernel returns the input
// unchanged.
//
// Preconditions: v and i have equal length, 0 < len(ke) ≤ len(v), and all
// inputs are NaN/Inf free.
func Compensate(v, i, ke []float64) ([]float64, error) {
	if err := validate(v, i, ke); err != nil {
		return nil, err
	}

	ve, err := electrodeVoltage(i, ke)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(v))
	for n := range v {
		out[n] = v[n] - ve[n]
	}

	return out, nil
}

// ElectrodeVoltage returns the predicted electrode voltage itself, for
// inspection or plotting. Same contract and boundary policy as [Compensate].
func ElectrodeVoltage(i, ke []float64) ([]float64, error) {
	if err := validate(i, i, ke); err != nil {
		return nil, err
	}

	return electrodeVoltage(i, ke)
}

func validate(v, i, ke []float64) error {
	if len(v) == 0 || len(i) == 0 {
		return ErrEmptyTrace
	}

	if len(v) != len(i) {
		return fmt.Errorf("%w: len(v)=%d, len(i)=%d", ErrLengthMismatch, len(v), len(i))
	}

	if len(ke) == 0 {
		return ErrEmptyKernel
	}

	if len(ke) > len(v) {
		return fmt.Errorf("%w: len(ke)=%d, len(v)=%d", ErrKernelTooLong, len(ke), len(v))
	}

	return nil
}

// electrodeVoltage computes the causal convolution of i with ke, truncated
// to len(i) samples (unchecked).
func electrodeVoltage(i, ke []float64) ([]float64, error) {
	if len(ke) <= directThreshold {
		return convolveDirect(i, ke), nil
	}

	return convolveFFT(i, ke)
}

func convolveDirect(i, ke []float64) []float64 {
	out := make([]float64, len(i))

	for n := range i {
		jmax := n
		if jmax > len(ke)-1 {
			jmax = len(ke) - 1
		}

		var acc float64
		for j := 0; j <= jmax; j++ {
			acc += ke[j] * i[n-j]
		}

		out[n] = acc
	}

	return out
}

func convolveFFT(i, ke []float64) ([]float64, error) {
	n := len(i)
	m := len(ke)
	fftSize := nextPowerOf2(n + m - 1)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("aec: failed to create FFT plan: %w", err)
	}

	iPadded := make([]complex128, fftSize)
	kePadded := make([]complex128, fftSize)

	for j := 0; j < n; j++ {
		iPadded[j] = complex(i[j], 0)
	}

	for j := 0; j < m; j++ {
		kePadded[j] = complex(ke[j], 0)
	}

	iFreq := make([]complex128, fftSize)
	keFreq := make([]complex128, fftSize)

	if err := plan.Forward(iFreq, iPadded); err != nil {
		return nil, fmt.Errorf("aec: forward FFT failed: %w", err)
	}

	if err := plan.Forward(keFreq, kePadded); err != nil {
		return nil, fmt.Errorf("aec: forward FFT failed: %w", err)
	}

	prodFreq := make([]complex128, fftSize)
	for j := range prodFreq {
		prodFreq[j] = iFreq[j] * keFreq[j]
	}

	prodTime := make([]complex128, fftSize)
	if err := plan.Inverse(prodTime, prodFreq); err != nil {
		return nil, fmt.Errorf("aec: inverse FFT failed: %w", err)
	}

	// The first len(i) samples of the full linear convolution are exactly
	// the causal filter output with zero-padded history.
	out := make([]float64, n)
	for j := range out {
		out[j] = real(prodTime[j])
	}

	return out, nil
}

// nextPowerOf2 returns the next power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
