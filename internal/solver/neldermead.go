// Package solver implements derivative-free minimization over manifolds.
// The Nelder-Mead simplex method is generalized to curved spaces by
// replacing vector arithmetic with the manifold's exponential and logarithm
// maps and the simplex centroid with the Fréchet mean.
package solver

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/cwbudde/manifoldtv/internal/manifold"
)

// CostFunc evaluates the objective at a point.
type CostFunc func(manifold.Point) float64

// Options configures a Nelder-Mead run. Zero-valued tuning parameters are
// replaced by the defaults (alpha 1, gamma 2, rho 0.5, sigma 0.5, 200000
// iterations).
type Options struct {
	Alpha float64 // reflection coefficient, > 0
	Gamma float64 // expansion coefficient, > 0
	Rho   float64 // contraction coefficient, in (0, 0.5]
	Sigma float64 // shrink coefficient, in (0, 1]

	// MaxIterations caps the run when no stopping criterion fires earlier.
	MaxIterations int

	// Stop is evaluated once per completed iteration; a nil Stop means the
	// solver runs until MaxIterations.
	Stop StopFunc

	// Population is the initial simplex: Dimension()+1 points. When nil the
	// solver samples a random population.
	Population []manifold.Point

	// Rand drives random population sampling. Defaults to a time-seeded
	// source.
	Rand *rand.Rand
}

// DefaultOptions returns the standard Nelder-Mead tuning parameters.
func DefaultOptions() Options {
	return Options{
		Alpha:         1,
		Gamma:         2,
		Rho:           0.5,
		Sigma:         0.5,
		MaxIterations: 200000,
	}
}

// State is the solver's working state: an ordered population of
// Dimension()+1 points with cached costs, and the running best entry.
type State struct {
	Population []manifold.Point
	Costs      []float64
	Iteration  int
	Best       manifold.Point
	BestCost   float64
}

func (o *Options) normalize() {
	if o.Alpha == 0 {
		o.Alpha = 1
	}
	if o.Gamma == 0 {
		o.Gamma = 2
	}
	if o.Rho == 0 {
		o.Rho = 0.5
	}
	if o.Sigma == 0 {
		o.Sigma = 0.5
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = 200000
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

func (o *Options) validate(dim int) error {
	if o.Alpha <= 0 {
		return fmt.Errorf("reflection coefficient must be positive, got %g", o.Alpha)
	}
	if o.Gamma <= 0 {
		return fmt.Errorf("expansion coefficient must be positive, got %g", o.Gamma)
	}
	if o.Rho <= 0 || o.Rho > 0.5 {
		return fmt.Errorf("contraction coefficient must be in (0, 0.5], got %g", o.Rho)
	}
	if o.Sigma <= 0 || o.Sigma > 1 {
		return fmt.Errorf("shrink coefficient must be in (0, 1], got %g", o.Sigma)
	}
	if o.MaxIterations < 0 {
		return fmt.Errorf("max iterations must be positive, got %d", o.MaxIterations)
	}
	if o.Population != nil && len(o.Population) != dim+1 {
		return fmt.Errorf("population must hold %d points for a %d-dimensional manifold, got %d",
			dim+1, dim, len(o.Population))
	}
	return nil
}

// NelderMead minimizes cost over m and returns the final solver state; the
// running best point is State.Best. The four simplex moves (reflect, expand,
// contract, shrink) are evaluated as independent conditions each iteration,
// and contraction keeps the reflected point whenever the contracted
// candidate wins its comparison; both behaviors are intentional.
func NelderMead(m manifold.Manifold, cost CostFunc, opts Options) (*State, error) {
	if cost == nil {
		return nil, fmt.Errorf("cost function must not be nil")
	}
	opts.normalize()
	if err := opts.validate(m.Dimension()); err != nil {
		return nil, err
	}

	pop := opts.Population
	if pop == nil {
		pop = make([]manifold.Point, m.Dimension()+1)
		for i := range pop {
			pop[i] = m.Random(opts.Rand)
		}
	}

	s := &State{
		Population: make([]manifold.Point, len(pop)),
		Costs:      make([]float64, len(pop)),
	}
	for i, p := range pop {
		s.Population[i] = p.Clone()
		s.Costs[i] = cost(p)
	}
	s.trackBest()

	slog.Debug("Starting Nelder-Mead",
		"manifold", m.Name(),
		"population", len(s.Population),
		"max_iterations", opts.MaxIterations,
	)

	ind := make([]int, len(s.Population))
	for k := 1; k <= opts.MaxIterations; k++ {
		s.Iteration = k
		center := manifold.Mean(m, s.Population)

		for i := range ind {
			ind[i] = i
		}
		sort.Slice(ind, func(a, b int) bool { return s.Costs[ind[a]] < s.Costs[ind[b]] })
		best, worst := ind[0], ind[len(ind)-1]
		secondWorst := ind[len(ind)-2]

		// Direction from the Fréchet mean toward the worst point.
		xi := m.Log(center, s.Population[worst])

		// Reflect.
		xr := m.Exp(center, xi, -opts.Alpha)
		costR := cost(xr)
		if costR >= s.Costs[best] && costR < s.Costs[worst] {
			s.Population[worst], s.Costs[worst] = xr, costR
		}

		// Expand.
		if costR < s.Costs[best] {
			xe := manifold.Retract(m, center, xi, -opts.Gamma*opts.Alpha)
			costE := cost(xe)
			if costE < costR {
				s.Population[worst], s.Costs[worst] = xe, costE
			} else {
				s.Population[worst], s.Costs[worst] = xr, costR
			}
		}

		// Contract. The contracted candidate only gates the decision; the
		// reflected point is what gets adopted.
		if costR > s.Costs[secondWorst] {
			if costR < s.Costs[worst] {
				// Outside contraction.
				xc := m.Exp(center, xi, -opts.Rho)
				if cost(xc) < costR {
					s.Population[worst], s.Costs[worst] = xr, costR
				}
			} else {
				// Inside contraction.
				xc := m.Exp(center, xi, opts.Rho)
				if cost(xc) < s.Costs[worst] {
					s.Population[worst], s.Costs[worst] = xr, costR
				}
			}
		}

		// Shrink everything except the best toward the best.
		bestPt := s.Population[best]
		for _, i := range ind[1:] {
			s.Population[i] = manifold.Retract(m, bestPt, m.Log(bestPt, s.Population[i]), opts.Sigma)
			s.Costs[i] = cost(s.Population[i])
		}

		s.trackBest()

		if opts.Stop != nil && opts.Stop(s) {
			break
		}
	}

	slog.Debug("Nelder-Mead finished",
		"iterations", s.Iteration,
		"best_cost", s.BestCost,
	)
	return s, nil
}

// trackBest points Best at the population entry with minimal cached cost.
func (s *State) trackBest() {
	bestCost := math.Inf(1)
	bestIdx := 0
	for i, c := range s.Costs {
		if c < bestCost {
			bestCost, bestIdx = c, i
		}
	}
	s.Best = s.Population[bestIdx].Clone()
	s.BestCost = bestCost
}
