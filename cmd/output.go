package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/greenward/greenward/internal/district"
	"github.com/greenward/greenward/internal/scorer"
)

// wardRow is a district in the ward table's column names, plus its cluster.
type wardRow struct {
	WardName      string  `json:"ward_name"`
	Population    int64   `json:"Population"`
	PM25          float64 `json:"PM25"`
	AvgTemp       float64 `json:"Avg_Temp"`
	GreenAre      float64 `json:"Green_Are"`
	OpenLand      float64 `json:"Open_Land"`
	PrioritySci   float64 `json:"Priority_Sci"`
	PriorityLevel string  `json:"Priority_Level"`
	Cluster       *int    `json:"cluster"`
}

func toWardRow(r *district.Record) wardRow {
	name := r.Name
	if name == "" {
		name = r.Key.String()
	}
	return wardRow{
		WardName:      name,
		Population:    r.Population,
		PM25:          r.PM25,
		AvgTemp:       r.AvgTemp,
		GreenAre:      r.GreenCoverPct,
		OpenLand:      r.OpenLandPct,
		PrioritySci:   r.PriorityScore,
		PriorityLevel: string(r.PriorityLevel),
		Cluster:       r.Cluster,
	}
}

func wardRows(t *district.Table) []wardRow {
	rows := make([]wardRow, 0, t.Len())
	for _, r := range t.Records() {
		rows = append(rows, toWardRow(r))
	}
	return rows
}

// scoredFeatureCollection converts a batch to GeoJSON. Each feature keeps its
// source properties plus aiScore, population and wardPriority.
func scoredFeatureCollection(b *scorer.Batch) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(b.Parcels))}
	for _, sp := range b.Parcels {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         sp.ID,
			Geometry:   sp.Geometry,
			Properties: sp.Properties,
		})
	}
	return fc
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode json")
	}
	return nil
}

func writeParcelCSV(w io.Writer, b *scorer.Batch) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"id", "lon", "lat", "aiScore", "population", "wardPriority", "distance_km", "resolved"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}

	for _, sp := range b.Parcels {
		c := sp.Components
		dist := ""
		if c.HasFacility {
			dist = strconv.FormatFloat(c.DistanceKM, 'f', 3, 64)
		}
		row := []string{
			sp.ID,
			strconv.FormatFloat(sp.Representative.X(), 'f', 6, 64),
			strconv.FormatFloat(sp.Representative.Y(), 'f', 6, 64),
			strconv.FormatFloat(c.Score, 'f', 4, 64),
			strconv.FormatInt(c.Population, 10),
			strconv.FormatFloat(c.WardPriority, 'f', 4, 64),
			dist,
			strconv.FormatBool(c.Resolved),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "score: write CSV row")
		}
	}
	cw.Flush()
	return cw.Error()
}

// openOutput returns stdout for an empty path, otherwise a created file.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, f.Close, nil
}

func formatCluster(c *int) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *c)
}
