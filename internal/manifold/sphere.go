package manifold

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// sphereTol is the cutoff below which tangent/projection norms are treated
// as zero to avoid division by zero in Exp and Log.
const sphereTol = 1e-12

// Sphere is the unit sphere S^n embedded in R^{n+1}. Points are unit-norm
// embedding vectors, tangent vectors live in the hyperplane orthogonal to
// their base point.
type Sphere struct {
	n int
}

// NewSphere creates the n-dimensional unit sphere.
func NewSphere(n int) Sphere {
	if n < 0 {
		panic(fmt.Sprintf("manifold: sphere dimension must be non-negative, got %d", n))
	}
	return Sphere{n: n}
}

// Name returns the manifold identifier, e.g. "Sphere(2)".
func (s Sphere) Name() string {
	return fmt.Sprintf("Sphere(%d)", s.n)
}

// Dimension returns the intrinsic dimension n.
func (s Sphere) Dimension() int {
	return s.n
}

// SpherePoint is a unit vector in the embedding space R^{n+1}.
type SpherePoint []float64

// NewSpherePoint builds a sphere point from embedding coordinates,
// normalizing them to unit length.
func NewSpherePoint(coords ...float64) SpherePoint {
	p := make(SpherePoint, len(coords))
	copy(p, coords)
	n := floats.Norm(p, 2)
	if n == 0 {
		panic("manifold: cannot normalize zero vector to a sphere point")
	}
	floats.Scale(1/n, p)
	return p
}

// Clone returns a deep copy.
func (p SpherePoint) Clone() Point {
	q := make(SpherePoint, len(p))
	copy(q, p)
	return q
}

// Equal reports coordinate-wise equality with another sphere point.
func (p SpherePoint) Equal(q Point) bool {
	sq, ok := q.(SpherePoint)
	if !ok || len(sq) != len(p) {
		return false
	}
	return floats.Equal(p, sq)
}

// SphereTangent is a tangent vector at a sphere point. At is the optional
// base point; nil means the caller asserts base compatibility.
type SphereTangent struct {
	V  []float64
	At SpherePoint
}

// Clone returns a deep copy.
func (t *SphereTangent) Clone() TangentVector {
	c := &SphereTangent{V: make([]float64, len(t.V))}
	copy(c.V, t.V)
	if t.At != nil {
		c.At = t.At.Clone().(SpherePoint)
	}
	return c
}

// Scale returns a*t at the same base.
func (t *SphereTangent) Scale(a float64) TangentVector {
	c := t.Clone().(*SphereTangent)
	floats.Scale(a, c.V)
	return c
}

// Add returns the sum of the two tangent vectors. Panics with
// *BaseMismatchError unless the bases are both absent or both equal.
func (t *SphereTangent) Add(nu TangentVector) TangentVector {
	other, ok := nu.(*SphereTangent)
	if !ok {
		panic(&NotImplementedError{Op: "Add", Manifold: "Sphere", Got: fmt.Sprintf("%T", nu)})
	}
	checkBases("Add", t, other)
	if len(other.V) != len(t.V) {
		panic(&ShapeMismatchError{Op: "Add", Want: []int{len(t.V)}, Got: []int{len(other.V)}})
	}
	c := t.Clone().(*SphereTangent)
	floats.Add(c.V, other.V)
	return c
}

// Base returns the base point and whether one is attached.
func (t *SphereTangent) Base() (Point, bool) {
	if t.At == nil {
		return nil, false
	}
	return t.At, true
}

// checkBases enforces the tangent-vector base rule: both absent, or both
// present and equal.
func checkBases(op string, a, b *SphereTangent) {
	switch {
	case a.At == nil && b.At == nil:
	case a.At != nil && b.At != nil && a.At.Equal(b.At):
	default:
		panic(&BaseMismatchError{Op: op})
	}
}

// point asserts p is a sphere point of the right embedding dimension.
func (s Sphere) point(op string, p Point) SpherePoint {
	sp, ok := p.(SpherePoint)
	if !ok {
		panic(&NotImplementedError{Op: op, Manifold: s.Name(), Got: fmt.Sprintf("%T", p)})
	}
	if len(sp) != s.n+1 {
		panic(&ShapeMismatchError{Op: op, Want: []int{s.n + 1}, Got: []int{len(sp)}})
	}
	return sp
}

// tangent asserts xi is a sphere tangent of the right embedding dimension.
func (s Sphere) tangent(op string, xi TangentVector) *SphereTangent {
	st, ok := xi.(*SphereTangent)
	if !ok {
		panic(&NotImplementedError{Op: op, Manifold: s.Name(), Got: fmt.Sprintf("%T", xi)})
	}
	if len(st.V) != s.n+1 {
		panic(&ShapeMismatchError{Op: op, Want: []int{s.n + 1}, Got: []int{len(st.V)}})
	}
	return st
}

// Distance returns the geodesic distance arccos(<p,q>).
func (s Sphere) Distance(p, q Point) float64 {
	sp := s.point("Distance", p)
	sq := s.point("Distance", q)
	return math.Acos(clampUnit(floats.Dot(sp, sq)))
}

// Exp follows the great circle from p in direction xi for time t. A tangent
// with near-zero norm returns p unchanged.
func (s Sphere) Exp(p Point, xi TangentVector, t float64) Point {
	sp := s.point("Exp", p)
	st := s.tangent("Exp", xi)

	nrm := floats.Norm(st.V, 2)
	if nrm < sphereTol {
		return sp.Clone()
	}

	out := make(SpherePoint, len(sp))
	c := math.Cos(t * nrm)
	sc := math.Sin(t*nrm) / nrm
	for i := range out {
		out[i] = c*sp[i] + sc*st.V[i]
	}
	// Guard against drift off the sphere after many geodesic steps.
	floats.Scale(1/floats.Norm(out, 2), out)
	return out
}

// Log returns the tangent vector at p pointing toward q, tagged with base p.
// For q == p (projection below tolerance) it returns the zero tangent.
func (s Sphere) Log(p, q Point) TangentVector {
	sp := s.point("Log", p)
	sq := s.point("Log", q)

	c := clampUnit(floats.Dot(sp, sq))
	proj := make([]float64, len(sp))
	floats.AddScaledTo(proj, sq, -c, sp)

	pn := floats.Norm(proj, 2)
	if pn > sphereTol {
		floats.Scale(math.Acos(c)/pn, proj)
	} else {
		for i := range proj {
			proj[i] = 0
		}
	}
	return &SphereTangent{V: proj, At: sp.Clone().(SpherePoint)}
}

// Dot is the embedded Euclidean inner product of two tangents at p.
func (s Sphere) Dot(p Point, xi, nu TangentVector) float64 {
	s.point("Dot", p)
	a := s.tangent("Dot", xi)
	b := s.tangent("Dot", nu)
	checkBases("Dot", a, b)
	return floats.Dot(a.V, b.V)
}

// Norm is the Euclidean norm of the tangent's embedding coordinates.
func (s Sphere) Norm(p Point, xi TangentVector) float64 {
	s.point("Norm", p)
	return floats.Norm(s.tangent("Norm", xi).V, 2)
}

// Zero returns the zero tangent vector at p.
func (s Sphere) Zero(p Point) TangentVector {
	sp := s.point("Zero", p)
	return &SphereTangent{V: make([]float64, len(sp)), At: sp.Clone().(SpherePoint)}
}

// Random samples a uniform point on the sphere by normalizing a standard
// Gaussian vector.
func (s Sphere) Random(rng *rand.Rand) Point {
	p := make(SpherePoint, s.n+1)
	for {
		for i := range p {
			p[i] = rng.NormFloat64()
		}
		if n := floats.Norm(p, 2); n > 0 {
			floats.Scale(1/n, p)
			return p
		}
	}
}

// ParallelTransport moves xi from the tangent space at p to the one at q
// along the connecting geodesic. For p == q the vector is returned as-is
// (rebased at q).
func (s Sphere) ParallelTransport(p, q Point, xi TangentVector) TangentVector {
	sp := s.point("ParallelTransport", p)
	sq := s.point("ParallelTransport", q)
	st := s.tangent("ParallelTransport", xi)

	dir := s.Log(sp, sq).(*SphereTangent)
	dn := floats.Norm(dir.V, 2)
	if dn < sphereTol {
		out := st.Clone().(*SphereTangent)
		out.At = sq.Clone().(SpherePoint)
		return out
	}

	back := s.Log(sq, sp).(*SphereTangent)
	factor := floats.Dot(dir.V, st.V) / (dn * dn)

	out := &SphereTangent{V: make([]float64, len(st.V)), At: sq.Clone().(SpherePoint)}
	for i := range out.V {
		out.V[i] = st.V[i] - factor*(dir.V[i]+back.V[i])
	}
	return out
}

// clampUnit clamps inner products into [-1, 1] before Acos.
func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
