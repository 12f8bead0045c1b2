package kernel

import (
	"fmt"
	"math"
)

const (
	// minTailPoints is the smallest number of usable tail samples for a
	// stable membrane fit.
	minTailPoints = 5

	// minTailLambda rejects tails that are effectively flat: a membrane
	// component that does not decay over the kernel support cannot be
	// separated from the electrode.
	minTailLambda = 1e-6
)

// tailForm selects the functional form of the membrane kernel tail.
type tailForm int

const (
	tailSoma tailForm = iota
	tailDendrite
)

// membraneFit holds the fitted membrane kernel amp·f(n)·exp(-lambda·n),
// where f(n) = 1 for somatic recordings and n^(-1/2) for dendritic ones.
type membraneFit struct {
	amp    float64
	lambda float64
	form   tailForm
}

// eval returns the membrane kernel value at sample n.
// The dendritic form diverges at n = 0; the first sample is capped at amp.
func (m membraneFit) eval(n int) float64 {
	e := m.amp * math.Exp(-m.lambda*float64(n))
	if m.form == tailDendrite && n > 0 {
		e /= math.Sqrt(float64(n))
	}

	return e
}

// ElectrodeSoma extracts the electrode kernel from the full kernel k for a
// somatic recording, where the membrane response is slow compared to the
// electrode.
//
// The kernel tail (samples startTail onward) is attributed entirely to the
// membrane and fitted with a single exponential A·exp(-λn) by log-linear
// regression. The fit is extrapolated back over the first startTail samples
// and the electrode kernel is recovered by causal deconvolution of
// K = Ke + (Km ∗ Ke)/Re, so the membrane charge driven through the electrode
// filter is subtracted from the early samples. The result has length
// startTail.
//
// Fails with [ErrInvalidTail] when startTail is out of range, and with
// [ErrTailFit] when the tail is too short, predominantly non-positive, or
// not decaying, since extrapolating such a fit would bias the kernel.
func ElectrodeSoma(k []float64, startTail int) ([]float64, error) {
	return electrodeKernel(k, startTail, tailSoma)
}

// ElectrodeDendrite extracts the electrode kernel for a recording on a thin
// process (dendrite or axon).
//
// Same pipeline as [ElectrodeSoma], but the membrane tail is fitted with the
// A·n^(-1/2)·exp(-λn) response of a semi-infinite cable, which matches the
// faster, non-exponential local behavior of thin neurites.
func ElectrodeDendrite(k []float64, startTail int) ([]float64, error) {
	return electrodeKernel(k, startTail, tailDendrite)
}

func electrodeKernel(k []float64, startTail int, form tailForm) ([]float64, error) {
	if len(k) == 0 {
		return nil, ErrEmptyKernel
	}

	if startTail <= 0 || startTail >= len(k) {
		return nil, fmt.Errorf("%w: start tail %d for kernel size %d", ErrInvalidTail, startTail, len(k))
	}

	fit, err := fitTail(k, startTail, form)
	if err != nil {
		return nil, err
	}

	// Membrane kernel over the electrode support.
	km := make([]float64, startTail)
	for n := range km {
		km[n] = fit.eval(n)
	}

	// ΣK over the full (extrapolated) support is Re + Rm, so the electrode
	// resistance reduces to the head-sample difference.
	var re float64
	for n := 0; n < startTail; n++ {
		re += k[n] - km[n]
	}

	if re <= 0 {
		return nil, fmt.Errorf("%w: non-positive electrode resistance %g", ErrTailFit, re)
	}

	// Causal triangular deconvolution of K = Ke + (Km ∗ Ke)/Re.
	ke := make([]float64, startTail)
	for n := 0; n < startTail; n++ {
		acc := k[n]
		for j := 1; j <= n; j++ {
			acc -= km[j] * ke[n-j] / re
		}

		ke[n] = acc / (1 + km[0]/re)
	}

	return ke, nil
}

// fitTail fits the membrane model to the kernel tail by linear regression in
// log space. For the dendritic form the n^(-1/2) factor is moved to the left
// hand side, so both forms reduce to ln(y) = ln(A) - λn.
func fitTail(k []float64, startTail int, form tailForm) (membraneFit, error) {
	tailLen := len(k) - startTail
	if tailLen < minTailPoints {
		return membraneFit{}, fmt.Errorf("%w: tail has %d samples, need at least %d",
			ErrTailFit, tailLen, minTailPoints)
	}

	var count int

	var sumX, sumY, sumXX, sumXY float64

	for n := startTail; n < len(k); n++ {
		if k[n] <= 0 {
			continue
		}

		x := float64(n)
		y := math.Log(k[n])
		if form == tailDendrite {
			y += 0.5 * math.Log(x)
		}

		count++
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}

	if count < minTailPoints || count < tailLen/2 {
		return membraneFit{}, fmt.Errorf("%w: only %d of %d tail samples are positive",
			ErrTailFit, count, tailLen)
	}

	nf := float64(count)

	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return membraneFit{}, fmt.Errorf("%w: degenerate tail regression", ErrTailFit)
	}

	slope := (nf*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / nf

	lambda := -slope
	if lambda < minTailLambda {
		return membraneFit{}, fmt.Errorf("%w: tail does not decay (lambda = %g)", ErrTailFit, lambda)
	}

	return membraneFit{
		amp:    math.Exp(intercept),
		lambda: lambda,
		form:   form,
	}, nil
}
