// Package prox provides closed-form proximal operators on manifolds and the
// cyclic proximal-point algorithm (CPPA) that composes them into a
// total-variation regularizer for manifold-valued arrays.
package prox

import (
	"math"

	"github.com/cwbudde/manifoldtv/internal/manifold"
)

// DistanceSquared is the proximal map of lambda/2 * d(x, f)^2: it moves x
// toward the fixed point f by the fraction lambda/(1+lambda) of the
// connecting geodesic.
func DistanceSquared(m manifold.Manifold, f manifold.Point, lambda float64, x manifold.Point) manifold.Point {
	return m.Exp(x, m.Log(x, f), lambda/(1+lambda))
}

// TV is the proximal map of lambda * d(x, y): both points move toward each
// other along the connecting geodesic by min(d/2, lambda), so they never
// cross past their midpoint. For d(x, y) == 0 the pair is returned
// unchanged.
func TV(m manifold.Manifold, lambda float64, x, y manifold.Point) (manifold.Point, manifold.Point) {
	d := m.Distance(x, y)
	if d == 0 {
		return x.Clone(), y.Clone()
	}
	step := math.Min(0.5, lambda/d)
	return m.Exp(x, m.Log(x, y), step), m.Exp(y, m.Log(y, x), step)
}

// TVSquared is the proximal map of lambda * d(x, y)^2: mutual attraction by
// the fraction lambda/(1+2*lambda) of the connecting geodesic.
func TVSquared(m manifold.Manifold, lambda float64, x, y manifold.Point) (manifold.Point, manifold.Point) {
	step := lambda / (1 + 2*lambda)
	return m.Exp(x, m.Log(x, y), step), m.Exp(y, m.Log(y, x), step)
}

// Objective evaluates the TV-regularized denoising functional
//
//	F(x) = 1/2 sum_i d(x_i, f_i)^2 + alpha * sum_d sum_i d(x_i, x_{i+e_d})
//
// over grids of identical shape. Used for progress reporting; CPPA itself
// never evaluates it.
func Objective(m manifold.Manifold, f, x *manifold.Grid, alpha float64) float64 {
	var fidelity float64
	for i := range x.Pts {
		d := m.Distance(x.Pts[i], f.Pts[i])
		fidelity += d * d
	}

	var tv float64
	shape := x.Shape()
	for d := range shape {
		for i := range x.Pts {
			if j, ok := x.Neighbor(i, d); ok {
				tv += m.Distance(x.Pts[i], x.Pts[j])
			}
		}
	}
	return fidelity/2 + alpha*tv
}
