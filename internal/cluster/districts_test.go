package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenward/greenward/internal/district"
)

// twoGroupTable has three polluted, dense, hot, bare wards and three clean,
// sparse, cool, leafy ones.
func twoGroupTable() *district.Table {
	return district.NewTable([]district.Record{
		{Key: "a1", PM25: 190, Population: 195000, AvgTemp: 39, GreenCoverPct: 2},
		{Key: "a2", PM25: 185, Population: 190000, AvgTemp: 38.5, GreenCoverPct: 2.5},
		{Key: "a3", PM25: 195, Population: 198000, AvgTemp: 39.5, GreenCoverPct: 1.5},
		{Key: "b1", PM25: 20, Population: 15000, AvgTemp: 22, GreenCoverPct: 19},
		{Key: "b2", PM25: 25, Population: 12000, AvgTemp: 21.5, GreenCoverPct: 18.5},
		{Key: "b3", PM25: 18, Population: 17000, AvgTemp: 22.5, GreenCoverPct: 19.5},
	})
}

func TestAssignDistricts_TwoVisualGroups(t *testing.T) {
	tbl := twoGroupTable()
	vectors := district.BuildFeatureVectors(tbl.Records())

	for seed := int64(1); seed <= 20; seed++ {
		assignment, res, err := AssignDistricts(New(Options{K: 3, Seed: seed}), vectors)
		require.NoError(t, err)
		require.Len(t, assignment, 6)
		assert.True(t, res.Converged)

		members := map[int]map[byte]int{}
		for key, id := range assignment {
			if members[id] == nil {
				members[id] = map[byte]int{}
			}
			members[id][key.String()[0]]++
		}

		shared := false
		for _, groups := range members {
			assert.Len(t, groups, 1, "a cluster must not mix the two groups")
			for _, n := range groups {
				if n > 1 {
					shared = true
				}
			}
		}
		assert.True(t, shared, "some cluster should hold more than one ward from the same group")
	}
}

func TestAssignDistricts_MergesBackIntoTable(t *testing.T) {
	tbl := twoGroupTable()
	vectors := district.BuildFeatureVectors(tbl.Records())

	assignment, _, err := AssignDistricts(New(Options{Seed: 4}), vectors)
	require.NoError(t, err)
	tbl.ApplyClusters(assignment)

	for _, r := range tbl.Records() {
		require.NotNil(t, r.Cluster)
		assert.Equal(t, assignment[r.Key], *r.Cluster)
		assert.GreaterOrEqual(t, *r.Cluster, 0)
		assert.Less(t, *r.Cluster, DefaultK)
	}
}

func TestAssignDistricts_Empty(t *testing.T) {
	assignment, res, err := AssignDistricts(New(Options{}), nil)
	assert.ErrorIs(t, err, ErrNoPoints)
	assert.Nil(t, assignment)
	assert.Nil(t, res)
}
