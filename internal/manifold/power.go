package manifold

import (
	"fmt"
	"math"
	"math/rand"
)

// Power lifts a base manifold to fixed-shape arrays of its points. Every
// operation applies the base manifold's operation elementwise; distance
// reduces via the Euclidean norm of per-element distances and the inner
// product reduces via summation.
type Power struct {
	base  Manifold
	shape []int
}

// NewPower creates the power manifold base^shape.
func NewPower(base Manifold, shape ...int) Power {
	if len(shape) == 0 {
		panic("manifold: power manifold needs at least one array dimension")
	}
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("manifold: power manifold shape must be positive, got %v", shape))
		}
	}
	cp := make([]int, len(shape))
	copy(cp, shape)
	return Power{base: base, shape: cp}
}

// Base returns the underlying manifold.
func (m Power) Base() Manifold {
	return m.base
}

// Shape returns a copy of the array shape.
func (m Power) Shape() []int {
	cp := make([]int, len(m.shape))
	copy(cp, m.shape)
	return cp
}

// Name returns e.g. "Power(Sphere(2), [1 4])".
func (m Power) Name() string {
	return fmt.Sprintf("Power(%s, %v)", m.base.Name(), m.shape)
}

// Dimension is the product of the array shape and the base dimension.
func (m Power) Dimension() int {
	d := m.base.Dimension()
	for _, s := range m.shape {
		d *= s
	}
	return d
}

// Grid is a point on a power manifold: a fixed-shape array of base-manifold
// points stored flat in row-major order.
type Grid struct {
	shape []int
	Pts   []Point
}

// NewGrid builds a grid from a shape and a flat row-major point slice.
func NewGrid(shape []int, pts []Point) (*Grid, error) {
	n := 1
	for _, s := range shape {
		if s <= 0 {
			return nil, fmt.Errorf("grid shape must be positive, got %v", shape)
		}
		n *= s
	}
	if len(pts) != n {
		return nil, fmt.Errorf("grid shape %v needs %d points, got %d", shape, n, len(pts))
	}
	cp := make([]int, len(shape))
	copy(cp, shape)
	return &Grid{shape: cp, Pts: pts}, nil
}

// Shape returns a copy of the grid shape.
func (g *Grid) Shape() []int {
	cp := make([]int, len(g.shape))
	copy(cp, g.shape)
	return cp
}

// Len returns the number of grid entries.
func (g *Grid) Len() int {
	return len(g.Pts)
}

// stride returns the row-major stride of dimension d.
func (g *Grid) stride(d int) int {
	s := 1
	for i := d + 1; i < len(g.shape); i++ {
		s *= g.shape[i]
	}
	return s
}

// Neighbor returns the flat index of entry i shifted by one unit step along
// dimension d, and whether that neighbor is in bounds.
func (g *Grid) Neighbor(i, d int) (int, bool) {
	st := g.stride(d)
	if (i/st)%g.shape[d] == g.shape[d]-1 {
		return 0, false
	}
	return i + st, true
}

// Clone returns a deep copy.
func (g *Grid) Clone() Point {
	pts := make([]Point, len(g.Pts))
	for i, p := range g.Pts {
		pts[i] = p.Clone()
	}
	cp := make([]int, len(g.shape))
	copy(cp, g.shape)
	return &Grid{shape: cp, Pts: pts}
}

// Equal reports shape and elementwise equality with another grid.
func (g *Grid) Equal(q Point) bool {
	other, ok := q.(*Grid)
	if !ok || !shapeEqual(g.shape, other.shape) {
		return false
	}
	for i := range g.Pts {
		if !g.Pts[i].Equal(other.Pts[i]) {
			return false
		}
	}
	return true
}

// GridTangent is an elementwise tangent vector on a power manifold.
type GridTangent struct {
	shape []int
	Vecs  []TangentVector
	At    *Grid
}

// Clone returns a deep copy.
func (t *GridTangent) Clone() TangentVector {
	vecs := make([]TangentVector, len(t.Vecs))
	for i, v := range t.Vecs {
		vecs[i] = v.Clone()
	}
	c := &GridTangent{shape: append([]int(nil), t.shape...), Vecs: vecs}
	if t.At != nil {
		c.At = t.At.Clone().(*Grid)
	}
	return c
}

// Scale scales every entry by a.
func (t *GridTangent) Scale(a float64) TangentVector {
	c := t.Clone().(*GridTangent)
	for i, v := range c.Vecs {
		c.Vecs[i] = v.Scale(a)
	}
	return c
}

// Add sums elementwise. Panics with *BaseMismatchError when the grid bases
// conflict, and with *ShapeMismatchError on differing shapes.
func (t *GridTangent) Add(nu TangentVector) TangentVector {
	other, ok := nu.(*GridTangent)
	if !ok {
		panic(&NotImplementedError{Op: "Add", Manifold: "Power", Got: fmt.Sprintf("%T", nu)})
	}
	if !shapeEqual(t.shape, other.shape) {
		panic(&ShapeMismatchError{Op: "Add", Want: t.shape, Got: other.shape})
	}
	switch {
	case t.At == nil && other.At == nil:
	case t.At != nil && other.At != nil && t.At.Equal(other.At):
	default:
		panic(&BaseMismatchError{Op: "Add"})
	}
	c := t.Clone().(*GridTangent)
	for i, v := range c.Vecs {
		c.Vecs[i] = v.Add(other.Vecs[i])
	}
	return c
}

// Base returns the base grid and whether one is attached.
func (t *GridTangent) Base() (Point, bool) {
	if t.At == nil {
		return nil, false
	}
	return t.At, true
}

// grid asserts p is a grid of this power manifold's shape.
func (m Power) grid(op string, p Point) *Grid {
	g, ok := p.(*Grid)
	if !ok {
		panic(&NotImplementedError{Op: op, Manifold: m.Name(), Got: fmt.Sprintf("%T", p)})
	}
	if !shapeEqual(g.shape, m.shape) {
		panic(&ShapeMismatchError{Op: op, Want: m.shape, Got: g.shape})
	}
	return g
}

// gridTangent asserts xi is a grid tangent of this power manifold's shape.
func (m Power) gridTangent(op string, xi TangentVector) *GridTangent {
	t, ok := xi.(*GridTangent)
	if !ok {
		panic(&NotImplementedError{Op: op, Manifold: m.Name(), Got: fmt.Sprintf("%T", xi)})
	}
	if !shapeEqual(t.shape, m.shape) {
		panic(&ShapeMismatchError{Op: op, Want: m.shape, Got: t.shape})
	}
	return t
}

// Distance reduces per-element distances via the Euclidean norm.
func (m Power) Distance(p, q Point) float64 {
	gp := m.grid("Distance", p)
	gq := m.grid("Distance", q)
	var sum float64
	for i := range gp.Pts {
		d := m.base.Distance(gp.Pts[i], gq.Pts[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Exp applies the base exponential map elementwise.
func (m Power) Exp(p Point, xi TangentVector, t float64) Point {
	gp := m.grid("Exp", p)
	gt := m.gridTangent("Exp", xi)
	pts := make([]Point, len(gp.Pts))
	for i := range pts {
		pts[i] = m.base.Exp(gp.Pts[i], gt.Vecs[i], t)
	}
	return &Grid{shape: append([]int(nil), m.shape...), Pts: pts}
}

// Log applies the base logarithm map elementwise, tagged with base p.
func (m Power) Log(p, q Point) TangentVector {
	gp := m.grid("Log", p)
	gq := m.grid("Log", q)
	vecs := make([]TangentVector, len(gp.Pts))
	for i := range vecs {
		vecs[i] = m.base.Log(gp.Pts[i], gq.Pts[i])
	}
	return &GridTangent{shape: append([]int(nil), m.shape...), Vecs: vecs, At: gp.Clone().(*Grid)}
}

// Dot reduces per-element inner products via summation.
func (m Power) Dot(p Point, xi, nu TangentVector) float64 {
	gp := m.grid("Dot", p)
	a := m.gridTangent("Dot", xi)
	b := m.gridTangent("Dot", nu)
	switch {
	case a.At == nil && b.At == nil:
	case a.At != nil && b.At != nil && a.At.Equal(b.At):
	default:
		panic(&BaseMismatchError{Op: "Dot"})
	}
	var sum float64
	for i := range gp.Pts {
		sum += m.base.Dot(gp.Pts[i], a.Vecs[i], b.Vecs[i])
	}
	return sum
}

// Norm is sqrt(Dot(p, xi, xi)).
func (m Power) Norm(p Point, xi TangentVector) float64 {
	return math.Sqrt(m.Dot(p, xi, xi))
}

// Zero returns the elementwise zero tangent at p.
func (m Power) Zero(p Point) TangentVector {
	gp := m.grid("Zero", p)
	vecs := make([]TangentVector, len(gp.Pts))
	for i := range vecs {
		vecs[i] = m.base.Zero(gp.Pts[i])
	}
	return &GridTangent{shape: append([]int(nil), m.shape...), Vecs: vecs, At: gp.Clone().(*Grid)}
}

// Random samples every entry independently from the base manifold.
func (m Power) Random(rng *rand.Rand) Point {
	n := 1
	for _, s := range m.shape {
		n *= s
	}
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = m.base.Random(rng)
	}
	return &Grid{shape: append([]int(nil), m.shape...), Pts: pts}
}

// ParallelTransport transports elementwise. Panics with *NotImplementedError
// when the base manifold has no transport.
func (m Power) ParallelTransport(p, q Point, xi TangentVector) TangentVector {
	tr, ok := m.base.(Transporter)
	if !ok {
		panic(&NotImplementedError{Op: "ParallelTransport", Manifold: m.base.Name()})
	}
	gp := m.grid("ParallelTransport", p)
	gq := m.grid("ParallelTransport", q)
	gt := m.gridTangent("ParallelTransport", xi)
	vecs := make([]TangentVector, len(gp.Pts))
	for i := range vecs {
		vecs[i] = tr.ParallelTransport(gp.Pts[i], gq.Pts[i], gt.Vecs[i])
	}
	return &GridTangent{shape: append([]int(nil), m.shape...), Vecs: vecs, At: gq.Clone().(*Grid)}
}

func shapeEqual(a, b []int) bool {
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
