package fit_test

import (
	"math"
	"testing"

	"github.com/aretw0/strata/internal/fit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitQuadratic_Exact(t *testing.T) {
	truth := fit.Quadratic{A: 2, B: -16, C: 5} // vertex at 4
	xs := []float64{3.8, 3.9, 4.1, 4.3}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = truth.Eval(x)
	}

	q, err := fit.FitQuadratic(xs, ys)
	require.NoError(t, err)
	assert.InDelta(t, 2, q.A, 1e-6)
	assert.InDelta(t, -16, q.B, 1e-5)

	x, err := q.MinimizeBounded(3.8, 4.3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, x, 1e-6)
}

func TestMinimizeBounded_ClampsToInterval(t *testing.T) {
	q := fit.Quadratic{A: 1, B: -10} // vertex at 5
	x, err := q.MinimizeBounded(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, x)

	concave := fit.Quadratic{A: -1, B: 0.5}
	x, err = concave.MinimizeBounded(3, 1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, x, "bounds are normalized; the endpoint with the lower value wins")
}

func TestMinimizeBounded_NotFinite(t *testing.T) {
	q := fit.Quadratic{A: math.NaN()}
	_, err := q.MinimizeBounded(1, 2)
	assert.ErrorIs(t, err, fit.ErrNotFinite)
}

func TestFitQuadratic_Errors(t *testing.T) {
	_, err := fit.FitQuadratic([]float64{1, 2}, []float64{1, 2})
	assert.Error(t, err)

	_, err = fit.FitQuadratic([]float64{1, 2, 3}, []float64{1, 2})
	assert.Error(t, err)
}
