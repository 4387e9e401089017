package prox

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/manifoldtv/internal/manifold"
)

// Options configures a cyclic proximal-point run.
type Options struct {
	// Alpha is the total-variation regularization weight, >= 0.
	Alpha float64

	// Lambda is the base proximal step, > 0; the effective step in
	// iteration k is Lambda/k.
	Lambda float64

	// Tolerance stops the run once the summed distance between successive
	// iterates drops below it. Zero selects the default of 1e-5; a negative
	// value disables the check so the full iteration budget always runs.
	Tolerance float64

	// MaxIterations caps the run. Defaults to 500.
	MaxIterations int

	// Progress, when set, is invoked after every completed iteration with
	// the current working iterate. The callback must not retain or mutate
	// the grid; clone it when a snapshot is needed.
	Progress func(iteration int, change float64, x *manifold.Grid)

	// Initial optionally seeds the working iterate. Defaults to a copy of
	// the input array.
	Initial *manifold.Grid

	// IterationOffset shifts the 1/k annealing index, so resumed runs
	// continue with the step sizes they left off at.
	IterationOffset int
}

// DefaultOptions returns the standard CPPA parameters with a unit proximal
// step and a mild TV weight.
func DefaultOptions() Options {
	return Options{
		Alpha:         0.5,
		Lambda:        1,
		Tolerance:     1e-5,
		MaxIterations: 500,
	}
}

func (o *Options) normalize() {
	if o.Tolerance == 0 {
		o.Tolerance = 1e-5
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = 500
	}
}

func (o *Options) validate() error {
	if o.Alpha < 0 {
		return fmt.Errorf("regularization weight must be non-negative, got %g", o.Alpha)
	}
	if o.Lambda <= 0 {
		return fmt.Errorf("proximal step must be positive, got %g", o.Lambda)
	}
	if o.MaxIterations < 0 {
		return fmt.Errorf("max iterations must be positive, got %d", o.MaxIterations)
	}
	return nil
}

// CyclicProximalPoint regularizes the array f of base-manifold points
// against total variation and returns an array of identical shape. Each
// iteration k first applies the fidelity proximal map with step Lambda/k to
// every entry, then the TV proximal map with step Alpha*Lambda/k to every
// in-bounds forward-neighbor pair, dimension by dimension. The 1/k
// annealing of the step sizes is what makes the cyclic scheme converge. At
// least one iteration always runs.
func CyclicProximalPoint(base manifold.Manifold, f *manifold.Grid, opts Options) (*manifold.Grid, error) {
	if f == nil || f.Len() == 0 {
		return nil, fmt.Errorf("input array must not be empty")
	}
	opts.normalize()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Initial != nil && !sameShape(opts.Initial.Shape(), f.Shape()) {
		return nil, fmt.Errorf("initial iterate shape %v does not match input shape %v",
			opts.Initial.Shape(), f.Shape())
	}

	slog.Debug("Starting CPPA",
		"manifold", base.Name(),
		"shape", f.Shape(),
		"alpha", opts.Alpha,
		"lambda", opts.Lambda,
	)

	x := opts.Initial
	if x == nil {
		x = f.Clone().(*manifold.Grid)
	} else {
		x = x.Clone().(*manifold.Grid)
	}
	shape := x.Shape()

	for k := 1; k <= opts.MaxIterations; k++ {
		prev := x.Clone().(*manifold.Grid)
		step := opts.Lambda / float64(opts.IterationOffset+k)

		// Fidelity term: pull every entry toward its datum.
		for i := range x.Pts {
			x.Pts[i] = DistanceSquared(base, f.Pts[i], step, x.Pts[i])
		}

		// TV term: forward-neighbor pairs, once per dimension per sweep.
		for d := range shape {
			for i := range x.Pts {
				j, ok := x.Neighbor(i, d)
				if !ok {
					continue
				}
				x.Pts[i], x.Pts[j] = TV(base, opts.Alpha*step, x.Pts[i], x.Pts[j])
			}
		}

		var change float64
		for i := range x.Pts {
			change += base.Distance(prev.Pts[i], x.Pts[i])
		}

		if opts.Progress != nil {
			opts.Progress(opts.IterationOffset+k, change, x)
		}

		if opts.Tolerance > 0 && change < opts.Tolerance {
			slog.Debug("CPPA converged", "iteration", k, "change", change)
			break
		}
	}
	return x, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
