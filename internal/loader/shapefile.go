package loader

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/greenward/greenward/internal/district"
	"github.com/greenward/greenward/internal/fetcher"
)

// readShapefileBoundaries reads district polygons from a local shapefile. The
// name attribute is matched case-insensitively against nameProperties.
func readShapefileBoundaries(path string) ([]Boundary, error) {
	if fetcher.IsRemote(path) {
		return nil, eris.Errorf("loader: shapefiles must be local, got %s", path)
	}

	// The reader opens the attribute table lazily and reports no fields when
	// it is absent, so check for it up front.
	dbf := attributePath(path)
	if _, err := os.Stat(dbf); err != nil {
		return nil, eris.Wrapf(err, "loader: shapefile %s is missing its attribute file %s", path, dbf)
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := nameFieldIndex(reader.Fields())
	if nameIdx < 0 {
		return nil, eris.Errorf("loader: shapefile %s has no name field", path)
	}

	var (
		out     []Boundary
		skipped int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		poly, ok := shape.(*shp.Polygon)
		if !ok || name == "" {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}
		out = append(out, Boundary{Key: district.NewKey(name), Name: name, Geometry: mp})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "loader: read shapefile %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("loader: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return out, nil
}

// attributePath returns the .dbf sibling of a .shp path, named the way the
// shapefile reader looks it up.
func attributePath(path string) string {
	return path[:len(path)-len("shp")] + "dbf"
}

func nameFieldIndex(fields []shp.Field) int {
	for _, want := range nameProperties {
		for i, f := range fields {
			if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), want) {
				return i
			}
		}
	}
	return -1
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Shapefile outer rings are clockwise and holes counter-clockwise; each hole
// is attached to the outer ring that precedes it.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("loader: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("loader: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if current != nil && xy.IsRingCounterClockwise(geom.XY, flat) {
			if err := current.Push(ring); err != nil {
				zap.L().Debug("loader: skipping malformed hole", zap.Int32("part", i), zap.Error(err))
			}
			continue
		}

		flush()
		current = geom.NewPolygon(geom.XY)
		if err := current.Push(ring); err != nil {
			zap.L().Debug("loader: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			current = nil
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
