package lpfit

import "runtime"

// FailurePolicy selects how per-slice convergence failures are handled.
type FailurePolicy int

const (
	// FailAbort aborts the whole compensation on the first slice whose fit
	// does not converge.
	FailAbort FailurePolicy = iota

	// FailSkip records failed slices in Result.Failed and leaves their
	// samples uncompensated.
	FailSkip
)

// Config defines the fitting configuration. It is resolved once before
// fitting begins and never mutated mid-run.
type Config struct {
	// P is the residual norm exponent. Values in (0, 2) give the robust
	// sub-quadratic loss; 2 is accepted and reduces to least squares.
	P float64

	// SliceDuration is the length of one fitting slice, in the time unit
	// of the sampling interval dt.
	SliceDuration float64

	// MaxIterations bounds the optimizer iterations per slice.
	MaxIterations int

	// Tolerance is the absolute function-value convergence tolerance.
	Tolerance float64

	// Workers is the number of slices fitted concurrently.
	Workers int

	// OnFailure selects the per-slice failure policy.
	OnFailure FailurePolicy
}

// DefaultConfig returns the documented defaults: p = 1 (absolute-error
// norm), one-second slices, and one worker per CPU.
func DefaultConfig() Config {
	return Config{
		P:             1.0,
		SliceDuration: 1.0,
		MaxIterations: 400,
		Tolerance:     1e-9,
		Workers:       runtime.NumCPU(),
		OnFailure:     FailAbort,
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithP sets the residual norm exponent. The value is validated when
// fitting starts.
func WithP(p float64) Option {
	return func(cfg *Config) {
		cfg.P = p
	}
}

// WithSliceDuration sets the slice duration in the time unit of dt.
func WithSliceDuration(d float64) Option {
	return func(cfg *Config) {
		cfg.SliceDuration = d
	}
}

// WithMaxIterations sets the per-slice optimizer iteration budget.
func WithMaxIterations(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxIterations = n
		}
	}
}

// WithTolerance sets the optimizer convergence tolerance.
func WithTolerance(tol float64) Option {
	return func(cfg *Config) {
		if tol > 0 {
			cfg.Tolerance = tol
		}
	}
}

// WithWorkers sets the number of concurrent slice fits.
func WithWorkers(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.Workers = n
		}
	}
}

// WithFailurePolicy sets the per-slice failure policy.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(cfg *Config) {
		cfg.OnFailure = p
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}
