// Package signal handles manifold-valued signal data: a JSON on-disk format
// for sphere-valued arrays, conversion to and from solver grids, and
// synthetic test-signal generation.
package signal

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/manifoldtv/internal/manifold"
)

// Signal is the on-disk representation of a sphere-valued array: a shape and
// a flat row-major list of embedding coordinate vectors.
type Signal struct {
	Shape  []int       `json:"shape"`
	Points [][]float64 `json:"points"`
}

// Load reads and validates a signal file.
func Load(path string) (*Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signal: %w", err)
	}
	var s Signal
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse signal: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the signal as indented JSON.
func (s *Signal) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize signal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write signal: %w", err)
	}
	return nil
}

// Validate checks shape/point-count consistency, uniform embedding
// dimension, and that every point is finite and normalizable. Signals come
// from untrusted files, so anything that would trip the geometric layer is
// rejected here.
func (s *Signal) Validate() error {
	if len(s.Shape) == 0 {
		return fmt.Errorf("signal shape must not be empty")
	}
	n := 1
	for _, d := range s.Shape {
		if d <= 0 {
			return fmt.Errorf("signal shape must be positive, got %v", s.Shape)
		}
		n *= d
	}
	if len(s.Points) != n {
		return fmt.Errorf("signal shape %v needs %d points, got %d", s.Shape, n, len(s.Points))
	}
	if len(s.Points[0]) < 2 {
		return fmt.Errorf("sphere points need at least 2 embedding coordinates, got %d", len(s.Points[0]))
	}
	dim := len(s.Points[0])
	for i, p := range s.Points {
		if len(p) != dim {
			return fmt.Errorf("point %d has %d coordinates, expected %d", i, len(p), dim)
		}
		var norm2 float64
		for _, c := range p {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return fmt.Errorf("point %d has a non-finite coordinate", i)
			}
			norm2 += c * c
		}
		if norm2 == 0 {
			return fmt.Errorf("point %d is the zero vector and cannot be normalized to the sphere", i)
		}
	}
	return nil
}

// Grid converts the signal into a grid of unit-normalized sphere points and
// returns the sphere it lives on.
func (s *Signal) Grid() (*manifold.Grid, manifold.Sphere, error) {
	if err := s.Validate(); err != nil {
		return nil, manifold.Sphere{}, err
	}
	sphere := manifold.NewSphere(len(s.Points[0]) - 1)
	pts := make([]manifold.Point, len(s.Points))
	for i, p := range s.Points {
		pts[i] = manifold.NewSpherePoint(p...)
	}
	g, err := manifold.NewGrid(s.Shape, pts)
	if err != nil {
		return nil, manifold.Sphere{}, err
	}
	return g, sphere, nil
}

// FromGrid converts a grid of sphere points back into the serializable form.
func FromGrid(g *manifold.Grid) (*Signal, error) {
	pts := make([][]float64, g.Len())
	for i, p := range g.Pts {
		sp, ok := p.(manifold.SpherePoint)
		if !ok {
			return nil, fmt.Errorf("entry %d is %T, expected a sphere point", i, p)
		}
		coords := make([]float64, len(sp))
		copy(coords, sp)
		pts[i] = coords
	}
	return &Signal{Shape: g.Shape(), Points: pts}, nil
}
