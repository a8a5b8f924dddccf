//go:build !integration

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/greenward/greenward/internal/config"
	"github.com/greenward/greenward/internal/district"
	"github.com/greenward/greenward/internal/loader"
	"github.com/greenward/greenward/internal/pipeline"
	"github.com/greenward/greenward/internal/scorer"
	"github.com/greenward/greenward/pkg/anthropic"
)

func square(x, y, side float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{x, y}, {x + side, y}, {x + side, y + side}, {x, y + side}, {x, y},
	}})
}

func point(x, y float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{x, y})
}

func testRecords() []district.Record {
	return []district.Record{
		{Key: "anand vihar", Name: "Anand Vihar", Population: 210000, PM25: 180, AvgTemp: 34,
			GreenCoverPct: 3, OpenLandPct: 8, PriorityScore: 0.9, PriorityLevel: district.PriorityHigh},
		{Key: "rohini", Name: "Rohini", Population: 150000, PM25: 120, AvgTemp: 32,
			GreenCoverPct: 9, OpenLandPct: 12, PriorityScore: 0.6, PriorityLevel: district.PriorityMedium},
		{Key: "lodhi colony", Name: "Lodhi Colony", Population: 60000, PM25: 60, AvgTemp: 29,
			GreenCoverPct: 18, OpenLandPct: 4, PriorityScore: 0.2, PriorityLevel: district.PriorityLow},
		{Key: "chanakyapuri", Name: "Chanakyapuri", Population: 50000, PM25: 55, AvgTemp: 28,
			GreenCoverPct: 19, OpenLandPct: 3, PriorityScore: 0.1, PriorityLevel: district.PriorityLow},
	}
}

func testInputs() *loader.Inputs {
	return &loader.Inputs{
		Records: testRecords(),
		Boundaries: []loader.Boundary{
			{Key: "anand vihar", Name: "Anand Vihar", Geometry: square(77.0, 28.5, 0.2)},
			{Key: "lodhi colony", Name: "Lodhi Colony", Geometry: square(78.0, 28.5, 0.2)},
		},
		Facilities: []geom.T{point(77.1, 28.6)},
		Parcels: []scorer.Parcel{
			{ID: "lot-1", Geometry: point(77.1, 28.6), Properties: map[string]any{"name": "Depot yard"}},
			{ID: "lot-2", Geometry: point(80.0, 30.0)},
		},
	}
}

// testResult runs the pipeline over the in-memory fixture.
func testResult(t *testing.T) *pipeline.Result {
	t.Helper()
	p, err := pipeline.New(config.ClusterConfig{K: 2, MaxIterations: 100, Seed: 7}, scorer.DefaultScorerConfig())
	require.NoError(t, err)
	res, err := p.Run(testInputs())
	require.NoError(t, err)
	return res
}

func emptyResult(t *testing.T) *pipeline.Result {
	t.Helper()
	p, err := pipeline.New(config.ClusterConfig{K: 2, MaxIterations: 100, Seed: 7}, scorer.DefaultScorerConfig())
	require.NoError(t, err)
	res, err := p.Run(&loader.Inputs{})
	require.NoError(t, err)
	return res
}

// fakeClient records the last request and replies with text or err.
type fakeClient struct {
	text string
	err  error
	last anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Text:  f.text,
		Usage: anthropic.TokenUsage{InputTokens: 120, OutputTokens: 40},
	}, nil
}
