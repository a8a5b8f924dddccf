package geo

import "github.com/twpayne/go-geom"

// Region pairs an area with the value it resolves to.
type Region[T any] struct {
	Area  Areal
	Value T
}

// ContainmentResolver finds the region enclosing a point by scanning regions
// in input order. The first region that contains the point wins, so overlapping
// input resolves by order. Valid district boundaries do not overlap.
type ContainmentResolver[T any] struct {
	regions []Region[T]
}

// NewContainmentResolver creates a resolver over regions. The slice is kept,
// not copied, and must not be modified while the resolver is in use.
func NewContainmentResolver[T any](regions []Region[T]) *ContainmentResolver[T] {
	return &ContainmentResolver[T]{regions: regions}
}

// Len returns the number of regions.
func (r *ContainmentResolver[T]) Len() int { return len(r.regions) }

// Resolve returns the value of the first region containing c.
func (r *ContainmentResolver[T]) Resolve(c geom.Coord) (T, bool) {
	for _, region := range r.regions {
		if region.Area.Contains(c) {
			return region.Value, true
		}
	}
	var zero T
	return zero, false
}
