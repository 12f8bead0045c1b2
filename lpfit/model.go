package lpfit

import "math"

// Params holds the five fitted circuit parameters for one time slice.
// Resistances and time constants are in the caller's (consistent) units;
// time constants share the unit of the sampling interval dt.
//
// The electrode is the fast compartment: fitted parameters always satisfy
// TauE ≤ Tau (see fromVector).
type Params struct {
	R    float64 // membrane resistance
	Tau  float64 // membrane time constant
	Vr   float64 // resting potential
	Re   float64 // electrode resistance
	TauE float64 // electrode time constant
}

// Simulate returns the model voltage response to the injected current i,
// one sample per input sample. See simulateTo for the integration scheme.
func (p Params) Simulate(i []float64, dt float64) []float64 {
	out := make([]float64, len(i))
	p.simulateTo(out, i, dt)
	return out
}

// Electrode returns only the electrode compartment of the model response,
// the component that compensation subtracts from the raw recording.
func (p Params) Electrode(i []float64, dt float64) []float64 {
	out := make([]float64, len(i))
	p.electrodeTo(out, i, dt)
	return out
}

// simulateTo writes the model voltage response to the injected current i
// into dst (len(dst) == len(i)).
//
// Both compartments are integrated with the exponential-Euler update, which
// is exact for a piecewise-constant current:
//
//	vm[n] = vm[n-1] + (1 - e^(-dt/τ)) ·(R ·i[n-1] - vm[n-1])
//	ve[n] = ve[n-1] + (1 - e^(-dt/τe))·(Re·i[n-1] - ve[n-1])
//	v[n]  = Vr + vm[n] + ve[n]
//
// Both states start at zero, so v[0] = Vr. A vanishing time constant
// degenerates gracefully to an instantaneous resistive response.
func (p Params) simulateTo(dst, i []float64, dt float64) {
	am := 1 - math.Exp(-dt/p.Tau)
	ae := 1 - math.Exp(-dt/p.TauE)

	var vm, ve float64
	for n := range i {
		dst[n] = p.Vr + vm + ve
		vm += am * (p.R*i[n] - vm)
		ve += ae * (p.Re*i[n] - ve)
	}
}

// electrodeTo writes only the electrode compartment voltage into dst,
// using the same integration scheme as simulateTo.
func (p Params) electrodeTo(dst, i []float64, dt float64) {
	ae := 1 - math.Exp(-dt/p.TauE)

	var ve float64
	for n := range i {
		dst[n] = ve
		ve += ae * (p.Re*i[n] - ve)
	}
}

// fromVector maps the unconstrained optimizer vector to physical parameters.
// Resistances and time constants are squared, which keeps them non-negative
// without bound constraints; Vr passes through unchanged.
//
// The summed voltage is invariant under exchanging (R, Tau) with (Re, TauE),
// so every minimum of the residual has a label-swapped mirror in which the
// "electrode" compartment holds the slow membrane dynamics, and compensation
// would subtract the wrong component. The mapping folds the mirror away:
// the faster compartment is always the electrode (TauE ≤ Tau).
func fromVector(x []float64) Params {
	p := Params{
		R:    x[0] * x[0],
		Tau:  x[1] * x[1],
		Vr:   x[2],
		Re:   x[3] * x[3],
		TauE: x[4] * x[4],
	}

	if p.TauE > p.Tau {
		p.R, p.Re = p.Re, p.R
		p.Tau, p.TauE = p.TauE, p.Tau
	}

	return p
}

// toVector is the inverse mapping used for initial guesses.
func (p Params) toVector() []float64 {
	return []float64{
		math.Sqrt(p.R),
		math.Sqrt(p.Tau),
		p.Vr,
		math.Sqrt(p.Re),
		math.Sqrt(p.TauE),
	}
}

// lpResidual returns Σ|model - raw|^p over the slice.
func lpResidual(model, raw []float64, p float64) float64 {
	var s float64
	for n := range raw {
		s += math.Pow(math.Abs(model[n]-raw[n]), p)
	}
	return s
}
