package kernel

import (
	"fmt"
	"math"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

const (
	// flatnessSegment is the preferred Welch segment length.
	flatnessSegment = 256

	// flatnessMinInput is the shortest trace the diagnostic accepts.
	flatnessMinInput = 64
)

// Flatness returns the spectral flatness of the injected current in (0, 1].
//
// [Full] assumes the current is statistically close to white noise; this
// diagnostic lets callers check that precondition. The trace is zero-meaned,
// cut into half-overlapping Hann-windowed segments, and the Welch-averaged
// power spectrum is reduced to the ratio of its geometric to arithmetic mean
// (the DC bin is excluded). White noise scores close to 1, narrowband
// currents close to 0; values well below ~0.5 indicate that [Full] estimates
// will be biased.
//
// A spectrum with a non-positive averaged bin (a constant or silent trace)
// has no meaningful flatness and is reported as [ErrDegenerateSpectrum].
func Flatness(i []float64) (float64, error) {
	if len(i) == 0 {
		return 0, ErrEmptyTrace
	}

	if len(i) < flatnessMinInput {
		return 0, fmt.Errorf("%w: %d samples, need at least %d for a spectrum estimate",
			ErrTraceTooShort, len(i), flatnessMinInput)
	}

	segment := flatnessSegment
	for segment > len(i) {
		segment /= 2
	}

	plan, err := algofft.NewPlan64(segment)
	if err != nil {
		return 0, fmt.Errorf("kernel: failed to create FFT plan: %w", err)
	}

	iMean := mean(i)

	window := hann(segment)
	bins := segment / 2

	avg := make([]float64, bins)
	buf := make([]float64, segment)
	re := make([]float64, bins)
	im := make([]float64, bins)
	power := make([]float64, bins)
	src := make([]complex128, segment)
	dst := make([]complex128, segment)

	hop := segment / 2

	var segments int
	for start := 0; start+segment <= len(i); start += hop {
		for j := 0; j < segment; j++ {
			buf[j] = i[start+j] - iMean
		}

		vecmath.MulBlockInPlace(buf, window)

		for j := 0; j < segment; j++ {
			src[j] = complex(buf[j], 0)
		}

		if err := plan.Forward(dst, src); err != nil {
			return 0, fmt.Errorf("kernel: forward FFT failed: %w", err)
		}

		for b := 0; b < bins; b++ {
			re[b] = real(dst[b])
			im[b] = imag(dst[b])
		}

		vecmath.Power(power, re, im)

		for b := 0; b < bins; b++ {
			avg[b] += power[b]
		}

		segments++
	}

	// Flatness = geometric mean / arithmetic mean over the non-DC bins.
	var logSum, linSum float64

	count := 0
	for b := 1; b < bins; b++ {
		p := avg[b] / float64(segments)
		if p <= 0 {
			return 0, fmt.Errorf("%w: non-positive power in bin %d", ErrDegenerateSpectrum, b)
		}

		logSum += math.Log(p)
		linSum += p
		count++
	}

	return math.Exp(logSum/float64(count)) / (linSum / float64(count)), nil
}

// hann returns the periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for j := range w {
		w[j] = 0.5 * (1 - math.Cos(2*math.Pi*float64(j)/float64(n)))
	}
	return w
}
