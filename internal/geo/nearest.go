package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

// EarthRadiusKM is the mean Earth radius used for great-circle distances.
const EarthRadiusKM = 6371.0088

// FacilityLocator answers nearest-facility distance queries. Areal
// facilities are reduced to their centroid once, at construction; distances
// are point to point, not point to nearest edge.
type FacilityLocator struct {
	points []geom.Coord
}

// NewFacilityLocator reduces every facility to its representative point.
func NewFacilityLocator(facilities []ReducibleGeometry) *FacilityLocator {
	points := make([]geom.Coord, 0, len(facilities))
	for _, f := range facilities {
		points = append(points, f.RepresentativePoint())
	}
	return &FacilityLocator{points: points}
}

// Len returns the number of facilities.
func (l *FacilityLocator) Len() int { return len(l.points) }

// Nearest returns the great-circle distance in kilometers from c to the
// closest facility. With no facilities it returns +Inf and false.
func (l *FacilityLocator) Nearest(c geom.Coord) (float64, bool) {
	if len(l.points) == 0 {
		return math.Inf(1), false
	}
	best := math.Inf(1)
	for _, p := range l.points {
		if d := HaversineKM(c, p); d < best {
			best = d
		}
	}
	return best, true
}

// HaversineKM returns the great-circle distance between two lon/lat
// positions in kilometers.
func HaversineKM(a, b geom.Coord) float64 {
	lat1 := degToRad(a.Y())
	lat2 := degToRad(b.Y())
	dLat := degToRad(b.Y() - a.Y())
	dLon := degToRad(b.X() - a.X())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
