// Package geo provides the planar and great-circle operations used to join
// parcels to districts and to measure distance to existing green space.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ErrGeometryUnsupported is returned for geometry types that cannot be
// reduced to a point. Callers skip the entity and keep going.
var ErrGeometryUnsupported = eris.New("geo: unsupported geometry type")

// Kind tags the variant behind a ReducibleGeometry.
type Kind string

const (
	KindPoint        Kind = "Point"
	KindPolygon      Kind = "Polygon"
	KindMultiPolygon Kind = "MultiPolygon"
)

// ReducibleGeometry is a geometry that collapses to one representative
// point: a point reduces to itself, an areal geometry to its vertex
// centroid.
type ReducibleGeometry interface {
	Kind() Kind
	RepresentativePoint() geom.Coord
	Geom() geom.T
}

// Areal is a ReducibleGeometry that can contain points.
type Areal interface {
	ReducibleGeometry
	Contains(c geom.Coord) bool
}

// Point wraps a single position.
type Point struct{ g *geom.Point }

// Polygon wraps a polygon with optional holes.
type Polygon struct{ g *geom.Polygon }

// MultiPolygon wraps a set of polygons treated as one area.
type MultiPolygon struct{ g *geom.MultiPolygon }

// FromGeom classifies g into its ReducibleGeometry variant. Nil, empty, and
// any other geometry type yield ErrGeometryUnsupported.
func FromGeom(g geom.T) (ReducibleGeometry, error) {
	switch t := g.(type) {
	case *geom.Point:
		if t == nil || t.Empty() {
			return nil, eris.Wrap(ErrGeometryUnsupported, "empty point")
		}
		return Point{g: t}, nil
	case *geom.Polygon:
		if t == nil || !hasShell(t) {
			return nil, eris.Wrap(ErrGeometryUnsupported, "empty polygon")
		}
		return Polygon{g: t}, nil
	case *geom.MultiPolygon:
		if t == nil {
			return nil, eris.Wrap(ErrGeometryUnsupported, "empty multipolygon")
		}
		for i := 0; i < t.NumPolygons(); i++ {
			if hasShell(t.Polygon(i)) {
				return MultiPolygon{g: t}, nil
			}
		}
		return nil, eris.Wrap(ErrGeometryUnsupported, "multipolygon has no non-empty outer ring")
	case nil:
		return nil, eris.Wrap(ErrGeometryUnsupported, "missing geometry")
	default:
		return nil, eris.Wrapf(ErrGeometryUnsupported, "%T", g)
	}
}

// hasShell reports whether p has an outer ring with at least one vertex.
// Every areal variant holds one, so its vertex centroid is always defined.
func hasShell(p *geom.Polygon) bool {
	return p.NumLinearRings() > 0 && p.LinearRing(0).NumCoords() > 0
}

// AsAreal returns g as an Areal when it is a polygon or multipolygon.
func AsAreal(g ReducibleGeometry) (Areal, error) {
	a, ok := g.(Areal)
	if !ok {
		return nil, eris.Wrapf(ErrGeometryUnsupported, "%s is not areal", g.Kind())
	}
	return a, nil
}

// Kind implements ReducibleGeometry.
func (p Point) Kind() Kind { return KindPoint }

// Geom implements ReducibleGeometry.
func (p Point) Geom() geom.T { return p.g }

// RepresentativePoint returns the position itself.
func (p Point) RepresentativePoint() geom.Coord {
	return geom.Coord{p.g.X(), p.g.Y()}
}

// Kind implements ReducibleGeometry.
func (p Polygon) Kind() Kind { return KindPolygon }

// Geom implements ReducibleGeometry.
func (p Polygon) Geom() geom.T { return p.g }

// RepresentativePoint returns the vertex centroid.
func (p Polygon) RepresentativePoint() geom.Coord {
	var acc centroidAcc
	acc.addPolygon(p.g)
	return acc.coord()
}

// Contains reports whether c lies inside the outer ring and outside every
// hole. Points on the outer boundary count as inside.
func (p Polygon) Contains(c geom.Coord) bool {
	return polygonContains(p.g, c)
}

// Kind implements ReducibleGeometry.
func (m MultiPolygon) Kind() Kind { return KindMultiPolygon }

// Geom implements ReducibleGeometry.
func (m MultiPolygon) Geom() geom.T { return m.g }

// RepresentativePoint returns the vertex centroid over all member polygons.
func (m MultiPolygon) RepresentativePoint() geom.Coord {
	var acc centroidAcc
	for i := 0; i < m.g.NumPolygons(); i++ {
		acc.addPolygon(m.g.Polygon(i))
	}
	return acc.coord()
}

// Contains reports whether any member polygon contains c.
func (m MultiPolygon) Contains(c geom.Coord) bool {
	for i := 0; i < m.g.NumPolygons(); i++ {
		if polygonContains(m.g.Polygon(i), c) {
			return true
		}
	}
	return false
}

func polygonContains(p *geom.Polygon, c geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	layout := p.Layout()
	if !xy.IsPointInRing(layout, c, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(layout, c, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// centroidAcc averages ring vertices, skipping each ring's closing vertex.
type centroidAcc struct {
	sumX, sumY float64
	n          int
}

func (a *centroidAcc) addPolygon(p *geom.Polygon) {
	for i := 0; i < p.NumLinearRings(); i++ {
		a.addRing(p.LinearRing(i))
	}
}

func (a *centroidAcc) addRing(r *geom.LinearRing) {
	n := r.NumCoords()
	if n == 0 {
		return
	}
	first, last := r.Coord(0), r.Coord(n-1)
	if n > 1 && first.X() == last.X() && first.Y() == last.Y() {
		n--
	}
	for i := 0; i < n; i++ {
		c := r.Coord(i)
		a.sumX += c.X()
		a.sumY += c.Y()
		a.n++
	}
}

// coord returns the mean, or NaN coordinates when no vertex was added so an
// empty geometry never lands on the origin.
func (a *centroidAcc) coord() geom.Coord {
	if a.n == 0 {
		return geom.Coord{math.NaN(), math.NaN()}
	}
	return geom.Coord{a.sumX / float64(a.n), a.sumY / float64(a.n)}
}
