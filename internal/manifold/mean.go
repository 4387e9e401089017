package manifold

// Fréchet mean fixed-point iteration defaults. The tolerance bounds the
// tangent-space step norm, not the cost decrease.
const (
	meanTol     = 1e-9
	meanMaxIter = 100
)

// Mean computes the Fréchet mean of pts by the fixed-point iteration
// m <- exp(m, (1/n) sum_i log(m, x_i)), starting from the first point,
// until the step norm drops below an internal tolerance or an iteration cap
// is hit.
func Mean(m Manifold, pts []Point) Point {
	return MeanWith(m, pts, meanTol, meanMaxIter)
}

// MeanWith is Mean with an explicit step tolerance and iteration cap.
func MeanWith(m Manifold, pts []Point, tol float64, maxIter int) Point {
	if len(pts) == 0 {
		panic("manifold: mean of empty point set")
	}
	x := pts[0].Clone()
	inv := 1 / float64(len(pts))

	for iter := 0; iter < maxIter; iter++ {
		step := m.Zero(x)
		for _, p := range pts {
			step = step.Add(m.Log(x, p))
		}
		step = step.Scale(inv)
		if m.Norm(x, step) < tol {
			break
		}
		x = m.Exp(x, step, 1)
	}
	return x
}
