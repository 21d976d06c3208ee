// Package terrain answers "how high is the ground under (x, z)".
//
// Implementations report a miss when nothing lies under the query point;
// callers go through Sample, which turns a miss into elevation 0 so a frame
// never fails because the vehicle drove off the map.
package terrain

import "math"

// Query is the terrain collaborator consumed by the kinematic model.
type Query interface {
	HeightAt(x, z float64) (height float64, hit bool)
}

// DefaultElevation is used whenever a query misses.
const DefaultElevation = 0.0

// Sample returns the elevation under (x, z). A nil query, a miss, or a
// non-finite answer all yield DefaultElevation.
func Sample(q Query, x, z float64) float64 {
	if q == nil {
		return DefaultElevation
	}
	h, ok := q.HeightAt(x, z)
	if !ok || math.IsNaN(h) || math.IsInf(h, 0) {
		return DefaultElevation
	}
	return h
}

// None never hits anything.
type None struct{}

func (None) HeightAt(_, _ float64) (float64, bool) { return 0, false }

// Plane is an infinite horizontal surface.
type Plane struct {
	Height float64
}

func (p Plane) HeightAt(_, _ float64) (float64, bool) { return p.Height, true }

// Func adapts a plain function to Query.
type Func func(x, z float64) (float64, bool)

func (f Func) HeightAt(x, z float64) (float64, bool) { return f(x, z) }
