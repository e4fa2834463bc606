// Package fit provides the small numeric helpers of the constrained lattice
// search: a least-squares quadratic fit and its minimum on an interval.
package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNotFinite is returned when a fit or a minimization produced NaN or Inf.
var ErrNotFinite = errors.New("non-finite result")

// Quadratic is y = A·x² + B·x + C.
type Quadratic struct {
	A, B, C float64
}

// Eval returns q(x).
func (q Quadratic) Eval(x float64) float64 {
	return (q.A*x+q.B)*x + q.C
}

// FitQuadratic returns the least-squares quadratic through the points.
// At least three points with distinct abscissae are required.
func FitQuadratic(xs, ys []float64) (Quadratic, error) {
	if len(xs) != len(ys) {
		return Quadratic{}, fmt.Errorf("fit: %d abscissae for %d ordinates", len(xs), len(ys))
	}
	if len(xs) < 3 {
		return Quadratic{}, fmt.Errorf("fit: need 3 points, have %d", len(xs))
	}

	design := mat.NewDense(len(xs), 3, nil)
	for i, x := range xs {
		design.Set(i, 0, x*x)
		design.Set(i, 1, x)
		design.Set(i, 2, 1)
	}
	var coef mat.VecDense
	if err := coef.SolveVec(design, mat.NewVecDense(len(ys), append([]float64(nil), ys...))); err != nil {
		return Quadratic{}, fmt.Errorf("fit: %w", err)
	}
	q := Quadratic{A: coef.AtVec(0), B: coef.AtVec(1), C: coef.AtVec(2)}
	if !finite(q.A, q.B, q.C) {
		return Quadratic{}, fmt.Errorf("fit: %w", ErrNotFinite)
	}
	return q, nil
}

// MinimizeBounded returns the abscissa of the smallest value of q on [lo, hi].
func (q Quadratic) MinimizeBounded(lo, hi float64) (float64, error) {
	if lo > hi {
		lo, hi = hi, lo
	}
	best, bestY := lo, q.Eval(lo)
	if y := q.Eval(hi); y < bestY {
		best, bestY = hi, y
	}
	if q.A > 0 {
		v := -q.B / (2 * q.A)
		if v > lo && v < hi && q.Eval(v) < bestY {
			best = v
		}
	}
	if !finite(best, q.Eval(best)) {
		return 0, ErrNotFinite
	}
	return best, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
