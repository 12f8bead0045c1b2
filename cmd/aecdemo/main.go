// Command aecdemo runs both electrode compensation paths on a synthetic
// recording with known ground truth and prints the recovered quantities.
//
// Usage:
//
//	aecdemo [flags]
//
// Examples:
//
//	aecdemo
//	aecdemo -duration 5 -ksize 256 -tail 32
//	aecdemo -p 1.2 -slice 0.5
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/algo-ephys/aec"
	"github.com/cwbudde/algo-ephys/kernel"
	"github.com/cwbudde/algo-ephys/lpfit"
)

var (
	flagDt       = flag.Float64("dt", 1e-4, "sampling interval in seconds")
	flagDuration = flag.Float64("duration", 2.0, "recording duration in seconds")
	flagKsize    = flag.Int("ksize", 128, "full kernel size in samples")
	flagTail     = flag.Int("tail", 24, "electrode kernel size (start of membrane tail) in samples")
	flagP        = flag.Float64("p", 1.0, "Lp exponent for model fitting")
	flagSlice    = flag.Float64("slice", 1.0, "fitting slice duration in seconds")
	flagSeed     = flag.Int64("seed", 1, "noise seed")
)

// groundTruth is the simulated cell and electrode.
var groundTruth = lpfit.Params{
	R:    100e6,  // 100 MΩ membrane
	Tau:  20e-3,  // 20 ms
	Vr:   -70e-3, // -70 mV rest
	Re:   40e6,   // 40 MΩ electrode
	TauE: 0.5e-3, // 0.5 ms
}

func main() {
	flag.Parse()

	n := int(*flagDuration / *flagDt)
	if n <= 0 {
		fmt.Fprintln(os.Stderr, "aecdemo: duration and dt must be positive")
		os.Exit(1)
	}

	i, vraw, ve := synthesize(*flagSeed, n, *flagDt)

	fmt.Printf("synthetic recording: %d samples at dt = %g s\n", n, *flagDt)
	fmt.Printf("electrode voltage RMS: %.3f mV\n\n", 1e3*rms(ve))

	if err := runAEC(i, vraw, ve); err != nil {
		fmt.Fprintln(os.Stderr, "aecdemo:", err)
		os.Exit(1)
	}

	if err := runLpFit(i, vraw, ve); err != nil {
		fmt.Fprintln(os.Stderr, "aecdemo:", err)
		os.Exit(1)
	}
}

// synthesize simulates the two-compartment ground truth driven by white
// noise current. Returns current, raw voltage and electrode voltage.
func synthesize(seed int64, n int, dt float64) (i, vraw, ve []float64) {
	rng := rand.New(rand.NewSource(seed))

	i = make([]float64, n)
	for m := range i {
		i[m] = (rng.Float64()*2 - 1) * 0.2e-9
	}

	return i, groundTruth.Simulate(i, dt), groundTruth.Electrode(i, dt)
}

func runAEC(i, vraw, ve []float64) error {
	flatness, err := kernel.Flatness(i)
	if err != nil {
		return err
	}

	full, v0, err := kernel.FullWithOffset(vraw, i, *flagKsize)
	if err != nil {
		return err
	}

	ke, err := kernel.ElectrodeSoma(full, *flagTail)
	if err != nil {
		return err
	}

	compensated, err := aec.Compensate(vraw, i, ke)
	if err != nil {
		return err
	}

	residual := make([]float64, len(vraw))
	for m := range residual {
		residual[m] = compensated[m] - (vraw[m] - ve[m])
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "linear compensation (AEC)\t")
	fmt.Fprintf(w, "  current spectral flatness\t%.3f\n", flatness)
	fmt.Fprintf(w, "  estimated resting potential\t%.2f mV\n", 1e3*v0)
	fmt.Fprintf(w, "  electrode resistance ΣKe\t%.1f MΩ (true %.1f)\n", 1e-6*sum(ke), 1e-6*groundTruth.Re)
	fmt.Fprintf(w, "  residual electrode RMS\t%.4f mV\n", 1e3*rms(residual))
	fmt.Fprintln(w)

	return w.Flush()
}

func runLpFit(i, vraw, ve []float64) error {
	res, err := lpfit.Compensate(i, vraw, *flagDt,
		lpfit.WithP(*flagP),
		lpfit.WithSliceDuration(*flagSlice),
		lpfit.WithMaxIterations(4000),
		lpfit.WithFailurePolicy(lpfit.FailSkip),
	)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "model fitting (Lp, p = %g)\t\n", *flagP)
	fmt.Fprintln(w, "  slice\tR [MΩ]\tτ [ms]\tVr [mV]\tRe [MΩ]\tτe [ms]")

	for idx, p := range res.Params {
		if failed(res.Failed, idx) {
			fmt.Fprintf(w, "  %d\tdid not converge\t\t\t\t\n", idx)
			continue
		}

		fmt.Fprintf(w, "  %d\t%.1f\t%.2f\t%.2f\t%.1f\t%.3f\n",
			idx, 1e-6*p.R, 1e3*p.Tau, 1e3*p.Vr, 1e-6*p.Re, 1e3*p.TauE)
	}

	fmt.Fprintf(w, "  true\t%.1f\t%.2f\t%.2f\t%.1f\t%.3f\n",
		1e-6*groundTruth.R, 1e3*groundTruth.Tau, 1e3*groundTruth.Vr,
		1e-6*groundTruth.Re, 1e3*groundTruth.TauE)

	residual := make([]float64, len(vraw))
	for m := range residual {
		residual[m] = res.Compensated[m] - (vraw[m] - ve[m])
	}

	fmt.Fprintf(w, "  residual electrode RMS\t%.4f mV\n", 1e3*rms(residual))

	return w.Flush()
}

func failed(failed []int, idx int) bool {
	for _, f := range failed {
		if f == idx {
			return true
		}
	}
	return false
}

func rms(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}
	return math.Sqrt(s / float64(len(x)))
}

func sum(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s
}
