package lpfit

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/optimize"
)

// Errors returned by the fitter.
var (
	ErrEmptyTrace            = errors.New("lpfit: empty trace")
	ErrLengthMismatch        = errors.New("lpfit: trace length mismatch")
	ErrInvalidSampleInterval = errors.New("lpfit: sampling interval must be positive")
	ErrInvalidExponent       = errors.New("lpfit: exponent must be in (0, 2]")
	ErrInvalidSliceDuration  = errors.New("lpfit: slice duration must be positive")
	ErrTraceTooShort         = errors.New("lpfit: trace too short to fit the circuit model")
	ErrNoConvergence         = errors.New("lpfit: fit did not converge")
)

// minSliceSamples is the smallest slice the five-parameter fit accepts.
const minSliceSamples = 16

// Result holds the output of a compensation run.
type Result struct {
	// Compensated is the electrode-free voltage, one sample per input
	// sample, contiguous across slice boundaries. Samples of failed
	// slices (under FailSkip) are left at their raw values.
	Compensated []float64

	// Params holds one parameter tuple per slice, in temporal order.
	// Failed slices hold the zero value.
	Params []Params

	// Failed lists the indices of slices whose fit did not converge.
	// Always empty under FailAbort.
	Failed []int
}

// span is a half-open sample range of one slice.
type span struct {
	start, end int
}

// Compensate fits the two-compartment circuit model to the recording
// (i, vraw) slice by slice and subtracts the fitted electrode voltage.
//
// For each slice the fit minimizes Σ|v_model - v_raw|^p with Nelder-Mead
// from two deterministic starting points (a data-derived guess and a
// perturbed variant), keeping the lower-residual fit; the configured failure
// policy applies only when both starts fail. Fitted parameters identify the
// electrode with the faster compartment (TauE ≤ Tau). Slices are fitted
// concurrently (Config.Workers) and reassembled in temporal order.
//
// The trailing partial slice is merged into the previous slice when it is
// shorter than half a slice duration, otherwise it is fitted on its own.
// Traces shorter than one slice duration form a single slice.
func Compensate(i, vraw []float64, dt float64, opts ...Option) (*Result, error) {
	cfg := ApplyOptions(opts...)

	if len(i) == 0 || len(vraw) == 0 {
		return nil, ErrEmptyTrace
	}

	if len(i) != len(vraw) {
		return nil, fmt.Errorf("%w: len(i)=%d, len(vraw)=%d", ErrLengthMismatch, len(i), len(vraw))
	}

	if dt <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidSampleInterval, dt)
	}

	if cfg.P <= 0 || cfg.P > 2 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidExponent, cfg.P)
	}

	if cfg.SliceDuration <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidSliceDuration, cfg.SliceDuration)
	}

	if len(i) < minSliceSamples {
		return nil, fmt.Errorf("%w: %d samples, need at least %d", ErrTraceTooShort, len(i), minSliceSamples)
	}

	sliceLen := int(math.Round(cfg.SliceDuration / dt))
	if sliceLen < 1 {
		sliceLen = 1
	}

	spans := partition(len(i), sliceLen)

	params := make([]Params, len(spans))
	errs := make([]error, len(spans))

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(spans) {
		workers = len(spans)
	}

	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for idx := range jobs {
				sp := spans[idx]
				params[idx], errs[idx] = fitSlice(i[sp.start:sp.end], vraw[sp.start:sp.end], dt, cfg)
			}
		}()
	}

	for idx := range spans {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	out := make([]float64, len(vraw))
	copy(out, vraw)

	var failed []int

	ve := make([]float64, sliceLen+sliceLen/2+1)

	for idx, sp := range spans {
		if errs[idx] != nil {
			if cfg.OnFailure == FailAbort {
				return nil, fmt.Errorf("lpfit: slice %d (samples %d..%d): %w", idx, sp.start, sp.end, errs[idx])
			}

			failed = append(failed, idx)
			params[idx] = Params{}

			continue
		}

		seg := ve[:sp.end-sp.start]
		params[idx].electrodeTo(seg, i[sp.start:sp.end], dt)

		for m := range seg {
			out[sp.start+m] = vraw[sp.start+m] - seg[m]
		}
	}

	return &Result{Compensated: out, Params: params, Failed: failed}, nil
}

// partition cuts n samples into consecutive spans of sliceLen samples.
// A trailing remainder shorter than half a slice is merged into the
// previous span; a longer one becomes its own span.
func partition(n, sliceLen int) []span {
	var spans []span

	for start := 0; start < n; start += sliceLen {
		end := start + sliceLen
		if end > n {
			end = n
		}

		spans = append(spans, span{start: start, end: end})
	}

	if len(spans) >= 2 {
		last := spans[len(spans)-1]
		if last.end-last.start < (sliceLen+1)/2 {
			spans = spans[:len(spans)-1]
			spans[len(spans)-1].end = last.end
		}
	}

	return spans
}

// fitSlice fits one slice from two deterministic starting points and keeps
// the fit with the lower residual. The second start redistributes the
// resistance split and shifts both time constants, which guards against the
// optimizer stalling near the first guess.
func fitSlice(i, v []float64, dt float64, cfg Config) (Params, error) {
	if len(i) < minSliceSamples {
		return Params{}, fmt.Errorf("%w: slice has %d samples, need at least %d",
			ErrTraceTooShort, len(i), minSliceSamples)
	}

	guess := initialGuess(i, v, dt)

	perturbed := Params{
		R:    guess.R * 0.5,
		Tau:  guess.Tau * 2,
		Vr:   guess.Vr,
		Re:   guess.Re * 2,
		TauE: guess.TauE * 0.5,
	}

	p1, obj1, err1 := minimizeSlice(i, v, dt, cfg, guess)
	p2, obj2, err2 := minimizeSlice(i, v, dt, cfg, perturbed)

	switch {
	case err1 == nil && err2 == nil:
		if obj2 < obj1 {
			return p2, nil
		}
		return p1, nil
	case err1 == nil:
		return p1, nil
	case err2 == nil:
		return p2, nil
	default:
		return Params{}, err1
	}
}

func minimizeSlice(i, v []float64, dt float64, cfg Config, guess Params) (Params, float64, error) {
	model := make([]float64, len(i))

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			fromVector(x).simulateTo(model, i, dt)
			return lpResidual(model, v, cfg.P)
		},
	}

	settings := &optimize.Settings{
		MajorIterations: cfg.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   cfg.Tolerance,
			Iterations: 30,
		},
	}

	res, err := optimize.Minimize(problem, guess.toVector(), settings, &optimize.NelderMead{})
	if err != nil {
		return Params{}, 0, fmt.Errorf("%w: %v", ErrNoConvergence, err)
	}

	switch res.Status {
	case optimize.FunctionConvergence, optimize.StepConvergence, optimize.MethodConverge:
		return fromVector(res.X), res.F, nil
	default:
		return Params{}, 0, fmt.Errorf("%w: optimizer stopped with status %v", ErrNoConvergence, res.Status)
	}
}

// initialGuess derives a starting point from the slice data: the zero-lag
// regression of voltage on current sets the total resistance scale (split
// between membrane and electrode), the median voltage seeds the resting
// potential, and the time constants are seeded relative to the sampling
// interval.
func initialGuess(i, v []float64, dt float64) Params {
	iMean := mean(i)
	vMean := mean(v)

	var cov, varI float64
	for n := range i {
		di := i[n] - iMean
		cov += di * (v[n] - vMean)
		varI += di * di
	}

	var slope float64
	if varI > 0 {
		slope = math.Abs(cov / varI)
	}

	if slope == 0 {
		slope = 1
	}

	return Params{
		R:    slope * 2 / 3,
		Tau:  50 * dt,
		Vr:   median(v),
		Re:   slope / 3,
		TauE: 5 * dt,
	}
}

func mean(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}

func median(x []float64) float64 {
	tmp := append([]float64(nil), x...)
	sort.Float64s(tmp)

	mid := len(tmp) / 2
	if len(tmp)%2 == 0 {
		return 0.5 * (tmp[mid-1] + tmp[mid])
	}

	return tmp[mid]
}
