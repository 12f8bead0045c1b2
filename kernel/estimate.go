package kernel

import (
	"errors"
	"fmt"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-ephys/internal/linalg"
)

// Errors returned by kernel estimation and decomposition.
var (
	ErrEmptyTrace         = errors.New("kernel: empty trace")
	ErrEmptyKernel        = errors.New("kernel: empty kernel")
	ErrLengthMismatch     = errors.New("kernel: trace length mismatch")
	ErrInvalidKernelSize  = errors.New("kernel: kernel size must be positive")
	ErrTraceTooShort      = errors.New("kernel: trace shorter than kernel size")
	ErrIllConditioned     = errors.New("kernel: estimation system is ill-conditioned")
	ErrZeroStep           = errors.New("kernel: step amplitude must be non-zero")
	ErrInvalidTail        = errors.New("kernel: start tail must be positive and smaller than the kernel size")
	ErrTailFit            = errors.New("kernel: no stable fit for the kernel tail")
	ErrDegenerateSpectrum = errors.New("kernel: degenerate power spectrum")
)

// Full estimates the full (electrode + membrane) kernel of length size from
// the voltage trace v and the injected current i.
//
// The estimate is the least-squares solution of V ≈ Toeplitz(I)·K, computed
// from lagged covariances of the two traces: the current autocovariance
// forms a symmetric Toeplitz system solved against the current-voltage
// cross-covariance.
//
// The estimate is unbiased only when the injected current is close to white
// noise; the caller is responsible for the input spectrum (see [Flatness]
// for a diagnostic). A near-constant or zero-variance current yields an
// ill-conditioned system, reported as [ErrIllConditioned]. The minimum
// accepted trace length is size samples.
func Full(v, i []float64, size int) ([]float64, error) {
	k, _, err := fullKernel(v, i, size)
	return k, err
}

// FullWithOffset estimates the full kernel and additionally returns the
// resting potential v0 = mean(v) - mean(i)·ΣK implied by the estimate.
func FullWithOffset(v, i []float64, size int) ([]float64, float64, error) {
	return fullKernel(v, i, size)
}

func fullKernel(v, i []float64, size int) ([]float64, float64, error) {
	if size <= 0 {
		return nil, 0, fmt.Errorf("%w: got %d", ErrInvalidKernelSize, size)
	}

	if len(v) == 0 || len(i) == 0 {
		return nil, 0, ErrEmptyTrace
	}

	if len(v) != len(i) {
		return nil, 0, fmt.Errorf("%w: len(v)=%d, len(i)=%d", ErrLengthMismatch, len(v), len(i))
	}

	if len(v) < size {
		return nil, 0, fmt.Errorf("%w: %d samples for kernel size %d", ErrTraceTooShort, len(v), size)
	}

	n := len(v)
	vMean := mean(v)
	iMean := mean(i)

	v0 := make([]float64, n)
	i0 := make([]float64, n)
	for m := range v {
		v0[m] = v[m] - vMean
		i0[m] = i[m] - iMean
	}

	// Lagged covariances: vi[k] = <v(m+k)·i(m)>, ii[k] = <i(m+k)·i(m)>.
	vi, err := lagProducts(v0, i0, size)
	if err != nil {
		return nil, 0, err
	}

	ii, err := lagProducts(i0, i0, size)
	if err != nil {
		return nil, 0, err
	}

	for k := 0; k < size; k++ {
		count := float64(n - k)
		vi[k] /= count
		ii[k] /= count
	}

	kern, err := linalg.SolveSymToeplitz(ii, vi)
	if err != nil {
		if errors.Is(err, linalg.ErrIllConditioned) {
			return nil, 0, fmt.Errorf("%w: %v", ErrIllConditioned, err)
		}

		return nil, 0, fmt.Errorf("kernel: solving covariance system: %w", err)
	}

	return kern, vMean - iMean*sum(kern), nil
}

// FullFromStep recovers the full kernel of length size from the response to
// a current step of amplitude i0.
//
// v must be the baseline-subtracted voltage response with the step onset at
// sample 0 (v ≡ 0 before the recording starts). The kernel is the discrete
// derivative of the step response scaled by 1/i0:
//
//	k[0] = v[0]/i0,  k[n] = (v[n] - v[n-1])/i0
//
// Direct deconvolution of a near-constant current is singular, so this is
// the appropriate estimator for step recordings. It is less accurate than
// [Full] on noisy recordings because differentiation amplifies noise;
// prefer [Full] with a fluctuating current when possible.
func FullFromStep(v []float64, i0 float64, size int) ([]float64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKernelSize, size)
	}

	if len(v) == 0 {
		return nil, ErrEmptyTrace
	}

	if len(v) < size {
		return nil, fmt.Errorf("%w: %d samples for kernel size %d", ErrTraceTooShort, len(v), size)
	}

	if i0 == 0 {
		return nil, ErrZeroStep
	}

	k := make([]float64, size)
	k[0] = v[0] / i0
	for n := 1; n < size; n++ {
		k[n] = (v[n] - v[n-1]) / i0
	}

	return k, nil
}

// lagProducts computes c[k] = Σ_m a[m+k]·b[m] for k = 0..lags-1 using FFT
// correlation, padded to avoid circular wrap-around.
func lagProducts(a, b []float64, lags int) ([]float64, error) {
	n := len(a)
	fftSize := nextPowerOf2(2*n - 1)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("kernel: failed to create FFT plan: %w", err)
	}

	aPadded := make([]complex128, fftSize)
	bPadded := make([]complex128, fftSize)
	for m := 0; m < n; m++ {
		aPadded[m] = complex(a[m], 0)
		bPadded[m] = complex(b[m], 0)
	}

	aFreq := make([]complex128, fftSize)
	bFreq := make([]complex128, fftSize)

	if err := plan.Forward(aFreq, aPadded); err != nil {
		return nil, fmt.Errorf("kernel: forward FFT failed: %w", err)
	}

	if err := plan.Forward(bFreq, bPadded); err != nil {
		return nil, fmt.Errorf("kernel: forward FFT failed: %w", err)
	}

	// Positive lags of corr(a, b) live at the start of IFFT(A·conj(B)).
	prodFreq := make([]complex128, fftSize)
	for m := range prodFreq {
		bConj := complex(real(bFreq[m]), -imag(bFreq[m]))
		prodFreq[m] = aFreq[m] * bConj
	}

	prodTime := make([]complex128, fftSize)
	if err := plan.Inverse(prodTime, prodFreq); err != nil {
		return nil, fmt.Errorf("kernel: inverse FFT failed: %w", err)
	}

	out := make([]float64, lags)
	for k := range out {
		out[k] = real(prodTime[k])
	}

	return out, nil
}

func mean(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}

func sum(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s
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
