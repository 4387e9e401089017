package prox

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/manifoldtv/internal/manifold"
)

func TestCyclicProximalPointZeroAlpha(t *testing.T) {
	s := manifold.NewSphere(2)
	f, err := manifold.NewGrid([]int{3}, []manifold.Point{
		manifold.NewSpherePoint(1, 0, 0),
		manifold.NewSpherePoint(0, 1, 0),
		manifold.NewSpherePoint(0, 0, 1),
	})
	require.NoError(t, err)

	// Without the TV term the iterate starts at f and stays there.
	x, err := CyclicProximalPoint(s, f, Options{
		Alpha:         0,
		Lambda:        1,
		MaxIterations: 10,
	})
	require.NoError(t, err)

	for i := range x.Pts {
		assert.InDelta(t, 0, s.Distance(f.Pts[i], x.Pts[i]), 1e-12)
	}
}

func TestCyclicProximalPointFidelityContraction(t *testing.T) {
	s := manifold.NewSphere(2)
	rng := rand.New(rand.NewSource(8))
	m := manifold.NewPower(s, 3)

	f := m.Random(rng).(*manifold.Grid)
	x0 := m.Random(rng).(*manifold.Grid)

	// With alpha 0 every iteration is a pure pull toward f, so each entry's
	// distance to its datum never increases.
	prev := make([]float64, f.Len())
	for i := range prev {
		prev[i] = s.Distance(x0.Pts[i], f.Pts[i])
	}

	_, err := CyclicProximalPoint(s, f, Options{
		Alpha:         0,
		Lambda:        1,
		Tolerance:     1e-12,
		MaxIterations: 30,
		Initial:       x0,
		Progress: func(iteration int, change float64, x *manifold.Grid) {
			for i := range x.Pts {
				d := s.Distance(x.Pts[i], f.Pts[i])
				assert.LessOrEqual(t, d, prev[i]+1e-12,
					"entry %d moved away from its datum at iteration %d", i, iteration)
				prev[i] = d
			}
		},
	})
	require.NoError(t, err)
}

func TestCyclicProximalPointSmoothsOutlier(t *testing.T) {
	s := manifold.NewSphere(2)
	base := manifold.NewSpherePoint(0, 0, 1)
	outlier := s.Exp(base, &manifold.SphereTangent{V: []float64{0.8, 0, 0}, At: base}, 1)

	f, err := manifold.NewGrid([]int{4}, []manifold.Point{
		base.Clone(),
		base.Clone(),
		outlier,
		base.Clone(),
	})
	require.NoError(t, err)

	before := Objective(s, f, f, 0.5)

	x, err := CyclicProximalPoint(s, f, Options{
		Alpha:         0.5,
		Lambda:        1,
		Tolerance:     1e-8,
		MaxIterations: 200,
	})
	require.NoError(t, err)

	after := Objective(s, f, x, 0.5)
	assert.Less(t, after, before, "TV regularization must lower the objective")

	// The outlier is pulled toward its neighbors.
	dBefore := s.Distance(f.Pts[2], base)
	dAfter := s.Distance(x.Pts[2], base)
	assert.Less(t, dAfter, dBefore)
}

func TestCyclicProximalPointPreservesShape(t *testing.T) {
	s := manifold.NewSphere(2)
	rng := rand.New(rand.NewSource(21))
	m := manifold.NewPower(s, 2, 3)
	f := m.Random(rng).(*manifold.Grid)

	x, err := CyclicProximalPoint(s, f, Options{
		Alpha:         0.2,
		Lambda:        1,
		MaxIterations: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, f.Shape(), x.Shape())
	assert.Equal(t, f.Len(), x.Len())
}

func TestCyclicProximalPointProgress(t *testing.T) {
	s := manifold.NewSphere(2)
	f, err := manifold.NewGrid([]int{2}, []manifold.Point{
		manifold.NewSpherePoint(1, 0, 0),
		manifold.NewSpherePoint(0, 1, 0),
	})
	require.NoError(t, err)

	var iterations []int
	_, err = CyclicProximalPoint(s, f, Options{
		Alpha:         0.3,
		Lambda:        1,
		Tolerance:     -1,
		MaxIterations: 4,
		Progress: func(iteration int, change float64, x *manifold.Grid) {
			iterations = append(iterations, iteration)
			assert.NotNil(t, x)
			assert.GreaterOrEqual(t, change, 0.0)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, iterations)
}

func TestCyclicProximalPointIterationOffset(t *testing.T) {
	s := manifold.NewSphere(2)
	f, err := manifold.NewGrid([]int{2}, []manifold.Point{
		manifold.NewSpherePoint(1, 0, 0),
		manifold.NewSpherePoint(0, 1, 0),
	})
	require.NoError(t, err)

	var seen []int
	_, err = CyclicProximalPoint(s, f, Options{
		Alpha:           0.3,
		Lambda:          1,
		Tolerance:       -1,
		MaxIterations:   3,
		IterationOffset: 10,
		Progress: func(iteration int, change float64, x *manifold.Grid) {
			seen = append(seen, iteration)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{11, 12, 13}, seen)
}

func TestCyclicProximalPointInitial(t *testing.T) {
	s := manifold.NewSphere(2)
	f, err := manifold.NewGrid([]int{2}, []manifold.Point{
		manifold.NewSpherePoint(1, 0, 0),
		manifold.NewSpherePoint(0, 1, 0),
	})
	require.NoError(t, err)

	wrongShape, err := manifold.NewGrid([]int{3}, []manifold.Point{
		manifold.NewSpherePoint(1, 0, 0),
		manifold.NewSpherePoint(0, 1, 0),
		manifold.NewSpherePoint(0, 0, 1),
	})
	require.NoError(t, err)

	_, err = CyclicProximalPoint(s, f, Options{
		Alpha:   0.3,
		Lambda:  1,
		Initial: wrongShape,
	})
	assert.Error(t, err, "initial iterate must match the input shape")
}

func TestCyclicProximalPointValidation(t *testing.T) {
	s := manifold.NewSphere(2)
	f, err := manifold.NewGrid([]int{1}, []manifold.Point{
		manifold.NewSpherePoint(1, 0, 0),
	})
	require.NoError(t, err)

	_, err = CyclicProximalPoint(s, nil, Options{Lambda: 1})
	assert.Error(t, err)

	_, err = CyclicProximalPoint(s, f, Options{Alpha: -1, Lambda: 1})
	assert.Error(t, err)

	_, err = CyclicProximalPoint(s, f, Options{Lambda: -1})
	assert.Error(t, err)
}

func TestCyclicProximalPointNegativeToleranceRunsFullBudget(t *testing.T) {
	s := manifold.NewSphere(2)
	p := manifold.NewSpherePoint(0, 0, 1)
	f, err := manifold.NewGrid([]int{2}, []manifold.Point{p.Clone(), p.Clone()})
	require.NoError(t, err)

	// A constant signal is a fixed point, so the change is zero from the
	// first iteration. A negative tolerance disables the convergence check
	// and all iterations run anyway.
	calls := 0
	_, err = CyclicProximalPoint(s, f, Options{
		Alpha:         0.3,
		Lambda:        1,
		Tolerance:     -1,
		MaxIterations: 5,
		Progress: func(iteration int, change float64, x *manifold.Grid) {
			calls++
			assert.InDelta(t, 0, change, 1e-12)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
}

func TestCyclicProximalPointZeroToleranceDefaults(t *testing.T) {
	s := manifold.NewSphere(2)
	p := manifold.NewSpherePoint(0, 0, 1)
	f, err := manifold.NewGrid([]int{2}, []manifold.Point{p.Clone(), p.Clone()})
	require.NoError(t, err)

	// Tolerance zero means "use the default", so a converged signal stops
	// after a single iteration.
	calls := 0
	_, err = CyclicProximalPoint(s, f, Options{
		Alpha:         0.3,
		Lambda:        1,
		Tolerance:     0,
		MaxIterations: 5,
		Progress: func(iteration int, change float64, x *manifold.Grid) {
			calls++
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCyclicProximalPointRunsAtLeastOnce(t *testing.T) {
	s := manifold.NewSphere(2)
	f, err := manifold.NewGrid([]int{2}, []manifold.Point{
		manifold.NewSpherePoint(1, 0, 0),
		manifold.NewSpherePoint(0, 1, 0),
	})
	require.NoError(t, err)

	calls := 0
	_, err = CyclicProximalPoint(s, f, Options{
		Alpha:     0.3,
		Lambda:    1,
		Tolerance: 1e9,
		Progress: func(iteration int, change float64, x *manifold.Grid) {
			calls++
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "huge tolerance still runs one iteration")
}

func TestCyclicProximalPointDoesNotMutateInput(t *testing.T) {
	s := manifold.NewSphere(2)
	orig := manifold.NewSpherePoint(1, 0, 0)
	f, err := manifold.NewGrid([]int{2}, []manifold.Point{
		orig,
		manifold.NewSpherePoint(0, 1, 0),
	})
	require.NoError(t, err)
	snapshot := f.Clone().(*manifold.Grid)

	_, err = CyclicProximalPoint(s, f, Options{
		Alpha:         0.5,
		Lambda:        1,
		MaxIterations: 20,
	})
	require.NoError(t, err)
	assert.True(t, f.Equal(snapshot))
}
