package solver

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/manifoldtv/internal/manifold"
)

func TestNelderMeadImprovesOnSphere(t *testing.T) {
	sphere := manifold.NewSphere(2)
	rng := rand.New(rand.NewSource(42))
	target := sphere.Random(rng)

	cost := func(p manifold.Point) float64 {
		d := sphere.Distance(p, target)
		return d * d
	}

	pop := make([]manifold.Point, sphere.Dimension()+1)
	initialBest := math.Inf(1)
	for i := range pop {
		pop[i] = sphere.Random(rng)
		if c := cost(pop[i]); c < initialBest {
			initialBest = c
		}
	}

	state, err := NelderMead(sphere, cost, Options{
		MaxIterations: 2000,
		Population:    pop,
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, state.BestCost, initialBest, "best entry never regresses")
	assert.InDelta(t, state.BestCost, cost(state.Best), 1e-12)

	// The shrink step halves the simplex every iteration, so by now the
	// population has collapsed onto the best point.
	for _, p := range state.Population {
		assert.Less(t, sphere.Distance(state.Best, p), 1e-6)
	}
}

func TestNelderMeadRefinesTightSimplex(t *testing.T) {
	sphere := manifold.NewSphere(2)
	target := manifold.NewSpherePoint(0, 0, 1)

	cost := func(p manifold.Point) float64 {
		d := sphere.Distance(p, target)
		return d * d
	}

	// Simplex already close to the minimizer; the best entry is never
	// overwritten, so the final cost cannot exceed the best initial one.
	pop := []manifold.Point{
		manifold.NewSpherePoint(0.1, 0, 1),
		manifold.NewSpherePoint(0, 0.1, 1),
		manifold.NewSpherePoint(-0.07, -0.07, 1),
	}

	state, err := NelderMead(sphere, cost, Options{
		MaxIterations: 500,
		Population:    pop,
	})
	require.NoError(t, err)

	initialBest := cost(pop[0])
	for _, p := range pop[1:] {
		if c := cost(p); c < initialBest {
			initialBest = c
		}
	}
	assert.LessOrEqual(t, state.BestCost, initialBest)
	assert.Less(t, sphere.Distance(state.Best, target), 0.2)
}

func TestNelderMeadRespectsInitialPopulation(t *testing.T) {
	sphere := manifold.NewSphere(2)
	target := manifold.NewSpherePoint(0, 0, 1)

	cost := func(p manifold.Point) float64 {
		return sphere.Distance(p, target)
	}

	pop := []manifold.Point{
		manifold.NewSpherePoint(1, 0, 0.1),
		manifold.NewSpherePoint(0, 1, 0.1),
		manifold.NewSpherePoint(0.7, 0.7, 0.1),
	}

	state, err := NelderMead(sphere, cost, Options{
		MaxIterations: 1000,
		Population:    pop,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, state.BestCost, cost(pop[0]))
	assert.LessOrEqual(t, state.BestCost, cost(pop[1]))
	assert.LessOrEqual(t, state.BestCost, cost(pop[2]))

	// The caller's population must not be mutated.
	assert.InDelta(t, 0.1, pop[0].(manifold.SpherePoint)[2]*math.Sqrt(1.01), 1e-6)
}

func TestNelderMeadBestNeverWorsens(t *testing.T) {
	sphere := manifold.NewSphere(2)
	rng := rand.New(rand.NewSource(7))
	target := sphere.Random(rng)

	cost := func(p manifold.Point) float64 {
		return sphere.Distance(p, target)
	}

	prevBest := math.Inf(1)
	stop := func(s *State) bool {
		assert.LessOrEqual(t, s.BestCost, prevBest, "running best must be monotone")
		prevBest = s.BestCost
		return false
	}

	_, err := NelderMead(sphere, cost, Options{
		MaxIterations: 200,
		Stop:          stop,
		Rand:          rng,
	})
	require.NoError(t, err)
}

func TestNelderMeadStopsAtCriterion(t *testing.T) {
	sphere := manifold.NewSphere(2)
	rng := rand.New(rand.NewSource(3))
	target := sphere.Random(rng)

	cost := func(p manifold.Point) float64 {
		return sphere.Distance(p, target)
	}

	state, err := NelderMead(sphere, cost, Options{
		MaxIterations: 100000,
		Stop:          StopAfter(25),
		Rand:          rng,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, state.Iteration)
}

func TestNelderMeadNilCost(t *testing.T) {
	sphere := manifold.NewSphere(2)
	_, err := NelderMead(sphere, nil, Options{})
	assert.Error(t, err)
}

func TestNelderMeadValidatesOptions(t *testing.T) {
	sphere := manifold.NewSphere(2)
	cost := func(p manifold.Point) float64 { return 0 }

	cases := []struct {
		name string
		opts Options
	}{
		{"negative alpha", Options{Alpha: -1}},
		{"rho above half", Options{Rho: 0.75}},
		{"sigma above one", Options{Sigma: 1.5}},
		{"wrong population size", Options{Population: []manifold.Point{
			manifold.NewSpherePoint(1, 0, 0),
		}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NelderMead(sphere, cost, tc.opts)
			assert.Error(t, err)
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 1.0, opts.Alpha)
	assert.Equal(t, 2.0, opts.Gamma)
	assert.Equal(t, 0.5, opts.Rho)
	assert.Equal(t, 0.5, opts.Sigma)
	assert.Equal(t, 200000, opts.MaxIterations)
}
