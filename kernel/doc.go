// Package kernel estimates and decomposes the impulse response of a
// single-electrode current-clamp recording.
//
// The recorded voltage is modeled as the response of a linear time-invariant
// system (electrode plus membrane) to the injected current. The package
// recovers the full impulse response ("full kernel") from a recording and
// splits it into an electrode component and a membrane component, so the
// electrode part can be removed from the trace by the aec package.
//
// # Estimation
//
// [Full] estimates the kernel from a recording driven by a fluctuating,
// white-noise-like current, by solving the Toeplitz least-squares system
// built from lagged covariances of current and voltage. [FullFromStep] is a
// fallback for step-current recordings, where deconvolution of the
// near-constant input is singular and the kernel is instead the discrete
// derivative of the step response.
//
// # Decomposition
//
// The tail of the full kernel is attributed to the membrane, whose response
// is slow compared to the electrode. [ElectrodeSoma] fits the tail with a
// single exponential (patch/soma geometry); [ElectrodeDendrite] uses the
// t^(-1/2)·exp(-t/τ) form of a thin semi-infinite cable. Both extrapolate
// the fitted membrane kernel over the full support and recover the electrode
// kernel by causal deconvolution of
//
//	K = Ke + (Km ∗ Ke) / Re
//
// which accounts for the electrode filtering the current that reaches the
// membrane.
//
// All traces are assumed NaN/Inf free and sampled at a fixed interval;
// kernels are indexed in samples, index 0 = instantaneous response.
package kernel
