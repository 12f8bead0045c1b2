package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Errors returned by the solvers.
var (
	ErrEmptySystem       = errors.New("linalg: empty system")
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")
	ErrIllConditioned    = errors.New("linalg: system is ill-conditioned")
)

const (
	// levinsonEps bounds the relative size of the prediction-error energy
	// below which the Levinson recursion is considered unstable.
	levinsonEps = 1e-12

	// ridgeFraction scales the diagonal loading of the fallback solve
	// relative to the zero-lag value r[0].
	ridgeFraction = 1e-9

	// condLimit is the largest accepted condition number of the
	// regularized fallback system. A structurally singular system loaded
	// with ridgeFraction·r[0] lands orders of magnitude above this.
	condLimit = 1e8
)

// SolveSymToeplitz solves T·x = b where T is the symmetric Toeplitz matrix
// with first row r: T[i][j] = r[|i-j|].
//
// The primary path is the Levinson-Durbin recursion, which exploits the
// Toeplitz structure and runs in O(n²). When the recursion detects loss of
// positive definiteness it falls back to a ridge-regularized dense Cholesky
// solve. If even the regularized system is numerically singular, the
// function reports ErrIllConditioned instead of returning a biased solution.
func SolveSymToeplitz(r, b []float64) ([]float64, error) {
	if len(r) == 0 {
		return nil, ErrEmptySystem
	}

	if len(r) != len(b) {
		return nil, fmt.Errorf("%w: len(r)=%d, len(b)=%d", ErrDimensionMismatch, len(r), len(b))
	}

	if r[0] <= 0 || math.Abs(r[0]) < math.SmallestNonzeroFloat64 {
		return nil, fmt.Errorf("%w: zero-lag value %g is not positive", ErrIllConditioned, r[0])
	}

	x, ok := levinson(r, b)
	if ok {
		return x, nil
	}

	return solveToeplitzRidge(r, b)
}

// levinson runs the Levinson-Durbin recursion on the normalized system.
// Returns ok=false when the prediction-error energy collapses, which signals
// a (near-)singular autocovariance sequence.
func levinson(r, b []float64) ([]float64, bool) {
	n := len(r)

	// Normalize so the diagonal is 1; keeps the stability test scale-free.
	rn := make([]float64, n)
	bn := make([]float64, n)
	for j := range r {
		rn[j] = r[j] / r[0]
		bn[j] = b[j] / r[0]
	}

	x := make([]float64, n)
	x[0] = bn[0]

	if n == 1 {
		return x, true
	}

	// y solves the order-k Yule-Walker system T_k·y = -[r1..rk].
	y := make([]float64, n)
	y[0] = -rn[1]
	alpha := -rn[1]
	beta := 1.0

	scratch := make([]float64, n)

	for k := 1; k < n; k++ {
		beta *= 1 - alpha*alpha
		if math.Abs(beta) < levinsonEps {
			return nil, false
		}

		// Extend the solution to order k+1.
		mu := bn[k]
		for j := 1; j <= k; j++ {
			mu -= rn[j] * x[k-j]
		}

		mu /= beta

		for j := 0; j < k; j++ {
			scratch[j] = x[j] + mu*y[k-1-j]
		}

		copy(x[:k], scratch[:k])
		x[k] = mu

		if k == n-1 {
			break
		}

		// Extend the Yule-Walker solution to order k+1.
		alpha = -rn[k+1]
		for j := 1; j <= k; j++ {
			alpha -= rn[j] * y[k-j]
		}

		alpha /= beta
		if math.Abs(alpha) >= 1 {
			return nil, false
		}

		for j := 0; j < k; j++ {
			scratch[j] = y[j] + alpha*y[k-1-j]
		}

		copy(y[:k], scratch[:k])
		y[k] = alpha
	}

	return x, true
}

// solveToeplitzRidge builds the dense Toeplitz matrix and solves the
// diagonally loaded system with a Cholesky factorization.
func solveToeplitzRidge(r, b []float64) ([]float64, error) {
	n := len(r)

	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a.SetSym(i, j, r[j-i])
		}
	}

	return RidgeSolve(a, b, ridgeFraction*r[0])
}

// RidgeSolve solves (A + lambda·I)·x = b for a symmetric positive
// semi-definite A. The diagonal loading lambda bounds the solution error on
// near-singular systems; a system whose regularized condition number still
// exceeds the accepted limit is reported as ErrIllConditioned.
func RidgeSolve(a *mat.SymDense, b []float64, lambda float64) ([]float64, error) {
	n := a.SymmetricDim()
	if n == 0 {
		return nil, ErrEmptySystem
	}

	if len(b) != n {
		return nil, fmt.Errorf("%w: matrix is %d×%d, len(b)=%d", ErrDimensionMismatch, n, n, len(b))
	}

	loaded := mat.NewSymDense(n, nil)
	loaded.CopySym(a)
	for i := 0; i < n; i++ {
		loaded.SetSym(i, i, loaded.At(i, i)+lambda)
	}

	var ch mat.Cholesky
	if !ch.Factorize(loaded) {
		return nil, fmt.Errorf("%w: Cholesky factorization failed", ErrIllConditioned)
	}

	if cond := ch.Cond(); cond > condLimit {
		return nil, fmt.Errorf("%w: condition number %.3g exceeds %.3g", ErrIllConditioned, cond, condLimit)
	}

	var x mat.VecDense
	if err := ch.SolveVecTo(&x, mat.NewVecDense(n, b)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllConditioned, err)
	}

	out := make([]float64, n)
	copy(out, x.RawVector().Data)

	return out, nil
}
