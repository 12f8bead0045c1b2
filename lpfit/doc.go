// Package lpfit implements model-based electrode compensation with a
// sub-quadratic (Lp, p < 2) error norm.
//
// The recording is modeled as a two-compartment linear circuit: an electrode
// RC stage (Re, τe) in series with a neuron RC stage (R, τ) around a resting
// potential Vr. The trace is cut into non-overlapping time slices, the five
// parameters are fitted per slice by minimizing Σ|v_model - v_raw|^p with a
// derivative-free optimizer, and the fitted electrode voltage is subtracted
// from the raw trace.
//
// Because p < 2 down-weights large residuals, samples the linear model
// cannot capture (action potentials in particular) perturb the fit far less
// than under a quadratic loss; p = 2 reduces to ordinary least squares and
// is accepted for comparison.
//
// The summed two-compartment voltage does not distinguish the compartments
// by label, only by dynamics. The fitter therefore identifies the electrode
// with the faster compartment and reports parameters with TauE ≤ Tau, so the
// subtracted component is always the fast electrode response.
//
// Slices are statistically independent, so fits run data-parallel across a
// configurable number of workers; results are reassembled in temporal order.
package lpfit
