// Package linalg provides the dense linear solvers used by kernel estimation.
//
// Kernel identification reduces to a symmetric Toeplitz system built from the
// lagged autocovariance of the injected current. The package solves such
// systems with the Levinson-Durbin recursion and falls back to a
// ridge-regularized Cholesky solve when the recursion detects instability.
// Near-singular systems are reported as [ErrIllConditioned] rather than
// solved with silently unbounded error.
package linalg
