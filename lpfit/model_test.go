package lpfit

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-ephys/internal/testutil"
)

func TestSimulateSteadyState(t *testing.T) {
	// Under a DC current both compartments settle at their resistive drop.
	// Absolute tolerance: the expected value can be near (or exactly) zero
	// for some parameter choices.
	const (
		n  = 6000
		i0 = 0.3e-9
	)

	i := testutil.DC(i0, n)
	v := make([]float64, n)
	trueParams.simulateTo(v, i, testDt)

	want := trueParams.Vr + (trueParams.R+trueParams.Re)*i0
	if got := v[n-1]; math.Abs(got-want) > 1e-9 {
		t.Errorf("steady state = %g, want %g", got, want)
	}
}

func TestSimulateMatchesAnalyticCharging(t *testing.T) {
	// With the electrode removed, the exponential-Euler recurrence must
	// reproduce the analytic RC charging curve exactly for a DC current.
	p := Params{R: 100e6, Tau: 20e-3, Vr: -70e-3}

	const (
		n  = 2000
		i0 = 0.3e-9
	)

	i := testutil.DC(i0, n)
	v := make([]float64, n)
	p.simulateTo(v, i, testDt)

	for m := range v {
		want := p.Vr + p.R*i0*(1-math.Exp(-float64(m)*testDt/p.Tau))
		if math.Abs(v[m]-want) > 1e-9 {
			t.Fatalf("sample %d: got %g, want %g", m, v[m], want)
		}
	}
}

func TestElectrodeToMatchesSimulateDifference(t *testing.T) {
	const n = 1024

	i := testutil.DeterministicNoise(2, 0.2e-9, n)

	full := make([]float64, n)
	trueParams.simulateTo(full, i, testDt)

	membraneOnly := trueParams
	membraneOnly.Re = 0

	vm := make([]float64, n)
	membraneOnly.simulateTo(vm, i, testDt)

	ve := make([]float64, n)
	trueParams.electrodeTo(ve, i, testDt)

	for m := range full {
		if math.Abs(full[m]-vm[m]-ve[m]) > 1e-12 {
			t.Fatalf("sample %d: compartments do not sum to the full response", m)
		}
	}
}

func TestSimulateCompartmentSymmetry(t *testing.T) {
	// Exchanging (R, Tau) with (Re, TauE) produces the identical summed
	// voltage, so the labels alone cannot identify the electrode.
	i := testutil.DeterministicNoise(6, 0.2e-9, 512)

	a := make([]float64, len(i))
	trueParams.simulateTo(a, i, testDt)

	swapped := Params{
		R:    trueParams.Re,
		Tau:  trueParams.TauE,
		Vr:   trueParams.Vr,
		Re:   trueParams.R,
		TauE: trueParams.Tau,
	}

	b := make([]float64, len(i))
	swapped.simulateTo(b, i, testDt)

	for m := range a {
		if math.Abs(a[m]-b[m]) > 1e-15 {
			t.Fatalf("sample %d: swapped compartments change the voltage", m)
		}
	}
}

func TestFromVectorCanonicalOrder(t *testing.T) {
	// The label-swapped mirror of a parameter set must fold back onto the
	// canonical order with the fast compartment as the electrode, otherwise
	// compensation would subtract the slow membrane dynamics.
	swapped := Params{
		R:    trueParams.Re,
		Tau:  trueParams.TauE,
		Vr:   trueParams.Vr,
		Re:   trueParams.R,
		TauE: trueParams.Tau,
	}

	got := fromVector(swapped.toVector())

	if got.TauE > got.Tau {
		t.Fatalf("canonical order violated: TauE = %g > Tau = %g", got.TauE, got.Tau)
	}

	if math.Abs(got.R-trueParams.R) > 1e-6 ||
		math.Abs(got.Tau-trueParams.Tau) > 1e-12 ||
		math.Abs(got.Re-trueParams.Re) > 1e-6 ||
		math.Abs(got.TauE-trueParams.TauE) > 1e-12 {
		t.Errorf("folded params = %+v, want %+v", got, trueParams)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	got := fromVector(trueParams.toVector())

	if math.Abs(got.R-trueParams.R) > 1e-6 ||
		math.Abs(got.Tau-trueParams.Tau) > 1e-12 ||
		got.Vr != trueParams.Vr ||
		math.Abs(got.Re-trueParams.Re) > 1e-6 ||
		math.Abs(got.TauE-trueParams.TauE) > 1e-12 {
		t.Errorf("round trip: got %+v, want %+v", got, trueParams)
	}
}

func TestLpResidual(t *testing.T) {
	model := []float64{0, 0, 0}
	raw := []float64{1, -2, 0}

	if got, want := lpResidual(model, raw, 2), 5.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("p=2: got %g, want %g", got, want)
	}

	if got, want := lpResidual(model, raw, 1), 3.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("p=1: got %g, want %g", got, want)
	}
}

func TestOptionsDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.P != 1.0 || cfg.SliceDuration != 1.0 || cfg.OnFailure != FailAbort {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	cfg = ApplyOptions(WithP(1.5), WithSliceDuration(0.5), WithFailurePolicy(FailSkip), WithWorkers(2))
	if cfg.P != 1.5 || cfg.SliceDuration != 0.5 || cfg.OnFailure != FailSkip || cfg.Workers != 2 {
		t.Errorf("options not applied: %+v", cfg)
	}

	// Non-positive values for guarded options keep the defaults.
	cfg = ApplyOptions(WithMaxIterations(0), WithTolerance(-1), WithWorkers(0))
	def := DefaultConfig()
	if cfg.MaxIterations != def.MaxIterations || cfg.Tolerance != def.Tolerance || cfg.Workers != def.Workers {
		t.Errorf("guarded options overwritten: %+v", cfg)
	}
}
