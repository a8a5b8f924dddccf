package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/greenward/greenward/internal/config"
	"github.com/greenward/greenward/internal/district"
	"github.com/greenward/greenward/internal/loader"
	"github.com/greenward/greenward/internal/scorer"
)

func square(x, y, side float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{x, y}, {x + side, y}, {x + side, y + side}, {x, y + side}, {x, y},
	}})
}

func point(x, y float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{x, y})
}

func ward(name string, pop int64, pm25, temp, green, priority float64) district.Record {
	return district.Record{
		Key: district.NewKey(name), Name: name, Population: pop,
		PM25: pm25, AvgTemp: temp, GreenCoverPct: green, PriorityScore: priority,
		PriorityLevel: district.PriorityMedium,
	}
}

func testInputs() *loader.Inputs {
	return &loader.Inputs{
		Records: []district.Record{
			ward("Anand Vihar", 210000, 180, 34, 3, 0.9),
			ward("Mundka", 190000, 170, 33, 4, 0.8),
			ward("Wazirpur", 200000, 175, 34, 3, 0.85),
			ward("Lodhi Colony", 60000, 60, 29, 18, 0.2),
			ward("Chanakyapuri", 50000, 55, 28, 19, 0.1),
			ward("Vasant Vihar", 70000, 65, 29, 17, 0.25),
		},
		Boundaries: []loader.Boundary{
			{Key: "anand vihar", Name: "Anand Vihar", Geometry: square(77.0, 28.5, 0.2)},
			{Key: "lodhi colony", Name: "Lodhi Colony", Geometry: geom.NewMultiPolygon(geom.XY).MustSetCoords(
				[][][]geom.Coord{{{{78, 28.5}, {78.2, 28.5}, {78.2, 28.7}, {78, 28.7}, {78, 28.5}}}})},
			{Key: "ghost ward", Name: "Ghost Ward", Geometry: square(79, 28.5, 0.2)},
			{Key: "mundka", Name: "Mundka", Geometry: point(77.5, 28.6)},
		},
		Facilities: []geom.T{
			point(77.1, 28.6),
			square(78.09, 28.59, 0.02),
			geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0, 0}, {1, 1}}),
		},
		Parcels: []scorer.Parcel{
			{ID: "in-anand", Geometry: point(77.1, 28.6), Properties: map[string]any{"name": "lot"}},
			{ID: "in-lodhi", Geometry: square(78.05, 28.55, 0.1)},
			{ID: "in-ghost", Geometry: point(79.1, 28.6)},
			{ID: "bad", Geometry: geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0, 0}, {1, 1}})},
		},
	}
}

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(config.ClusterConfig{K: 3, MaxIterations: 100, Seed: 7}, scorer.DefaultScorerConfig())
	require.NoError(t, err)
	return p
}

func TestRun(t *testing.T) {
	in := testInputs()
	res, err := newPipeline(t).Run(in)
	require.NoError(t, err)

	// Every district gets a cluster id.
	require.Equal(t, 6, res.Districts.Len())
	require.Len(t, res.Clusters, 6)
	for _, r := range res.Districts.Records() {
		require.NotNil(t, r.Cluster, r.Key)
		assert.GreaterOrEqual(t, *r.Cluster, 0)
		assert.Less(t, *r.Cluster, 3)
	}
	require.NotNil(t, res.Clustering)

	// Ghost ward has no record; Mundka's outline is a point.
	assert.Equal(t, 2, res.Joined)
	assert.Equal(t, 2, res.Unjoined)
	assert.Equal(t, 2, res.Facilities)

	require.Len(t, res.Scored.Parcels, 3)
	assert.Equal(t, 1, res.Scored.Skipped)

	anand := res.Scored.Parcels[0]
	assert.Equal(t, "in-anand", anand.ID)
	assert.True(t, anand.Components.Resolved)
	assert.Equal(t, int64(210000), anand.Components.Population)
	// 0.5*0.9 + 0.3*1 + 0.2*1
	assert.InDelta(t, 0.95, anand.Components.Score, 1e-9)
	assert.Equal(t, "lot", anand.Properties["name"])

	lodhi := res.Scored.Parcels[1]
	assert.True(t, lodhi.Components.Resolved)
	assert.Equal(t, 0.2, lodhi.Components.WardPriority)
	assert.InDelta(t, 0.0, lodhi.Components.DistanceKM, 1e-6, "polygon facility reduced to its centroid")

	ghost := res.Scored.Parcels[2]
	assert.False(t, ghost.Components.Resolved)
	assert.Equal(t, 0.0, ghost.Components.WardPriority)

	// Inputs are untouched.
	assert.Len(t, in.Parcels[0].Properties, 1)
	assert.Nil(t, in.Records[0].Cluster)
}

func TestRun_Phases(t *testing.T) {
	res, err := newPipeline(t).Run(testInputs())
	require.NoError(t, err)

	require.Len(t, res.Phases, 4)
	names := make([]string, 0, len(res.Phases))
	for _, ph := range res.Phases {
		names = append(names, ph.Name)
		assert.Equal(t, PhaseStatusComplete, ph.Status, ph.Name)
	}
	assert.Equal(t, []string{"cluster", "join", "facilities", "score"}, names)
}

func TestRun_ClustersSeparatePollutedFromGreen(t *testing.T) {
	res, err := newPipeline(t).Run(testInputs())
	require.NoError(t, err)

	polluted := []district.NormalizedKey{"anand vihar", "mundka", "wazirpur"}
	green := []district.NormalizedKey{"lodhi colony", "chanakyapuri", "vasant vihar"}

	for _, p := range polluted {
		for _, g := range green {
			assert.NotEqual(t, res.Clusters[p], res.Clusters[g], "%s and %s share a cluster", p, g)
		}
	}
}

func TestRun_SeededIsReproducible(t *testing.T) {
	a, err := newPipeline(t).Run(testInputs())
	require.NoError(t, err)
	b, err := newPipeline(t).Run(testInputs())
	require.NoError(t, err)
	assert.Equal(t, a.Clusters, b.Clusters)
}

func TestRun_EmptyWardTable(t *testing.T) {
	in := testInputs()
	in.Records = nil

	res, err := newPipeline(t).Run(in)
	require.NoError(t, err)

	assert.Equal(t, PhaseStatusSkipped, res.Phases[0].Status)
	assert.Nil(t, res.Clusters)
	assert.Equal(t, 0, res.Joined)
	assert.Equal(t, 4, res.Unjoined)
	require.Len(t, res.Scored.Parcels, 3)
	for _, sp := range res.Scored.Parcels {
		assert.False(t, sp.Components.Resolved)
	}
}

func TestRun_NoParcels(t *testing.T) {
	in := testInputs()
	in.Parcels = nil

	res, err := newPipeline(t).Run(in)
	require.NoError(t, err)
	assert.True(t, res.Scored.Empty())
}

func TestRun_NilInputs(t *testing.T) {
	_, err := newPipeline(t).Run(nil)
	assert.Error(t, err)
}

func TestNew_InvalidScorerConfig(t *testing.T) {
	cfg := scorer.DefaultScorerConfig()
	cfg.PriorityWeight = 0.9

	_, err := New(config.ClusterConfig{K: 3}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scorer config")
}
