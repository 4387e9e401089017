package signal

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/manifoldtv/internal/manifold"
)

// PiecewiseConstantS2 generates a length-n signal on the 2-sphere made of
// `segments` constant plateaus at random locations. The jumps between
// plateaus are what TV regularization should preserve while noise gets
// smoothed away.
func PiecewiseConstantS2(n, segments int, rng *rand.Rand) *manifold.Grid {
	if segments < 1 {
		segments = 1
	}
	if segments > n {
		segments = n
	}
	sphere := manifold.NewSphere(2)

	levels := make([]manifold.Point, segments)
	for i := range levels {
		levels[i] = sphere.Random(rng)
	}

	pts := make([]manifold.Point, n)
	for i := range pts {
		seg := i * segments / n
		pts[i] = levels[seg].Clone()
	}

	g, err := manifold.NewGrid([]int{n}, pts)
	if err != nil {
		// Shape [n] with n points cannot mismatch.
		panic(err)
	}
	return g
}

// AddNoise perturbs every entry of a sphere-valued grid by a Gaussian
// tangent vector of scale sigma, mapped back via the exponential map.
func AddNoise(sphere manifold.Sphere, g *manifold.Grid, sigma float64, rng *rand.Rand) *manifold.Grid {
	out := g.Clone().(*manifold.Grid)
	for i, p := range out.Pts {
		sp := p.(manifold.SpherePoint)
		v := make([]float64, len(sp))
		for j := range v {
			v[j] = rng.NormFloat64() * sigma
		}
		// Project into the tangent space at p.
		floats.AddScaled(v, -floats.Dot(v, sp), sp)
		xi := &manifold.SphereTangent{V: v, At: sp.Clone().(manifold.SpherePoint)}
		out.Pts[i] = sphere.Exp(sp, xi, 1)
	}
	return out
}
