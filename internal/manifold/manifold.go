// Package manifold defines the geometric contract shared by all solvers:
// a small capability interface (distance, exponential and logarithm maps,
// inner product) plus two reference implementations, the unit sphere and the
// power manifold over an arbitrary base. Algorithms are written purely
// against this contract and never touch raw coordinates.
package manifold

import "math/rand"

// Point is an opaque location on a manifold. Points are immutable: solvers
// replace points, they never mutate them.
type Point interface {
	// Clone returns a deep copy.
	Clone() Point

	// Equal reports structural equality of the coordinate representation.
	Equal(q Point) bool
}

// TangentVector is a vector in the tangent space at a specific base point.
// The base reference is optional: a nil base means the caller asserts
// compatibility. Combining two tangent vectors requires their bases to be
// either both absent or both equal; violating this panics with
// *BaseMismatchError.
type TangentVector interface {
	// Clone returns a deep copy.
	Clone() TangentVector

	// Scale returns a new tangent vector scaled by a, at the same base.
	Scale(a float64) TangentVector

	// Add returns the sum of the two tangent vectors.
	Add(nu TangentVector) TangentVector

	// Base returns the base point and whether one is attached.
	Base() (Point, bool)
}

// Manifold is the capability set every manifold implements. Operations that
// receive points or tangent vectors of a foreign concrete type panic with
// *NotImplementedError; the contract deliberately has no silent numeric
// fallback.
type Manifold interface {
	// Name identifies the manifold, e.g. "Sphere(2)".
	Name() string

	// Dimension is the intrinsic manifold dimension.
	Dimension() int

	// Distance is the geodesic distance between p and q.
	Distance(p, q Point) float64

	// Exp follows the geodesic from p in direction xi for time t and
	// returns the endpoint. Exp(p, Zero(p), t) == p.
	Exp(p Point, xi TangentVector, t float64) Point

	// Log returns the tangent vector at p whose Exp recovers q.
	Log(p, q Point) TangentVector

	// Dot is the Riemannian inner product of two tangent vectors at p.
	Dot(p Point, xi, nu TangentVector) float64

	// Norm is sqrt(Dot(p, xi, xi)).
	Norm(p Point, xi TangentVector) float64

	// Zero returns the zero tangent vector at p.
	Zero(p Point) TangentVector

	// Random samples a point from the manifold.
	Random(rng *rand.Rand) Point
}

// Transporter is an optional capability: moving tangent vectors between
// tangent spaces along the geodesic, preserving norm and relative angle.
type Transporter interface {
	ParallelTransport(p, q Point, xi TangentVector) TangentVector
}

// Retractor is an optional capability: a cheaper substitute for Exp.
type Retractor interface {
	Retract(p Point, xi TangentVector, t float64) Point
}

// Transport moves xi from the tangent space at p to the one at q. Returns a
// *NotImplementedError if the manifold has no transport.
func Transport(m Manifold, p, q Point, xi TangentVector) (TangentVector, error) {
	t, ok := m.(Transporter)
	if !ok {
		return nil, &NotImplementedError{Op: "ParallelTransport", Manifold: m.Name()}
	}
	return t.ParallelTransport(p, q, xi), nil
}

// Retract applies the manifold's retraction, falling back to the exact
// exponential map when none is provided.
func Retract(m Manifold, p Point, xi TangentVector, t float64) Point {
	if r, ok := m.(Retractor); ok {
		return r.Retract(p, xi, t)
	}
	return m.Exp(p, xi, t)
}
