package loader

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/greenward/greenward/internal/district"
	"github.com/greenward/greenward/internal/fetcher"
	"github.com/greenward/greenward/internal/scorer"
)

// LoadBoundaries reads district outlines from GeoJSON or, for a .shp path,
// from an ESRI shapefile.
func (l *Loader) LoadBoundaries(ctx context.Context) ([]Boundary, error) {
	location := l.cfg.Districts
	if isShapefile(location) {
		b, err := readShapefileBoundaries(location)
		if err != nil {
			return nil, unavailable(err, "district boundaries", location)
		}
		return b, nil
	}

	fc, err := l.readFeatureCollection(ctx, location)
	if err != nil {
		return nil, unavailable(err, "district boundaries", location)
	}

	out := make([]Boundary, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			zap.L().Debug("loader: dropping district without geometry", zap.Int("feature", i))
			continue
		}
		name := lookupName(f.Properties)
		if name == "" {
			zap.L().Warn("loader: dropping district without a name", zap.Int("feature", i))
			continue
		}
		out = append(out, Boundary{Key: district.NewKey(name), Name: name, Geometry: f.Geometry})
	}
	return out, nil
}

// LoadFacilities reads existing green-space geometries.
func (l *Loader) LoadFacilities(ctx context.Context) ([]geom.T, error) {
	fc, err := l.readFeatureCollection(ctx, l.cfg.Facilities)
	if err != nil {
		return nil, unavailable(err, "facilities", l.cfg.Facilities)
	}

	out := make([]geom.T, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		out = append(out, f.Geometry)
	}
	if dropped := len(fc.Features) - len(out); dropped > 0 {
		zap.L().Debug("loader: dropped facilities without geometry", zap.Int("count", dropped))
	}
	return out, nil
}

// LoadParcels reads candidate parcels. A feature without an id gets a random
// UUID so every later log line can name it.
func (l *Loader) LoadParcels(ctx context.Context) ([]scorer.Parcel, error) {
	fc, err := l.readFeatureCollection(ctx, l.cfg.Parcels)
	if err != nil {
		return nil, unavailable(err, "parcels", l.cfg.Parcels)
	}

	out := make([]scorer.Parcel, 0, len(fc.Features))
	for _, f := range fc.Features {
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		if f.Geometry == nil {
			zap.L().Warn("loader: dropping parcel without geometry", zap.String("parcel_id", id))
			continue
		}
		out = append(out, scorer.Parcel{ID: id, Geometry: f.Geometry, Properties: f.Properties})
	}
	return out, nil
}

func (l *Loader) readFeatureCollection(ctx context.Context, location string) (*geojson.FeatureCollection, error) {
	rc, err := fetcher.Open(ctx, l.fetcher, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrap(err, "loader: read geojson")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "loader: decode geojson")
	}
	return &fc, nil
}

func isShapefile(location string) bool {
	return strings.HasSuffix(strings.ToLower(location), ".shp")
}
