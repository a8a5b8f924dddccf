//go:build !integration

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/greenward/greenward/internal/district"
)

// setupCommandEnv points the config at fixture files through the
// environment and runs from an empty directory.
func setupCommandEnv(t *testing.T) string {
	t.Helper()
	data := writeFixtures(t)

	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("GREENWARD_DATA_WARDS_CSV", data.WardsCSV)
	t.Setenv("GREENWARD_DATA_DISTRICTS", data.Districts)
	t.Setenv("GREENWARD_DATA_FACILITIES", data.Facilities)
	t.Setenv("GREENWARD_DATA_PARCELS", data.Parcels)
	t.Setenv("GREENWARD_CLUSTER_SEED", "7")
	t.Setenv("GREENWARD_LOG_LEVEL", "error")

	t.Cleanup(func() {
		resetFlags(scoreCmd)
		resetFlags(clusterCmd)
	})
	return dir
}

// resetFlags restores defaults on a package-level command so flag values do
// not leak between tests.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func TestScoreCommand(t *testing.T) {
	dir := setupCommandEnv(t)
	out := filepath.Join(dir, "scored.geojson")

	rootCmd.SetArgs([]string{"score", "--format", "geojson", "--out", out})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "lot-1", fc.Features[0].ID)
	assert.InDelta(t, 0.95, fc.Features[0].Properties["aiScore"], 0.001)
	assert.Equal(t, "Depot yard", fc.Features[0].Properties["name"])
}

func TestScoreCommand_InvalidWeights(t *testing.T) {
	dir := setupCommandEnv(t)

	rootCmd.SetArgs([]string{"score", "--format", "geojson", "--out", filepath.Join(dir, "x.geojson"), "--priority-weight", "0.9"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must sum to 1.0")
}

func TestClusterCommand(t *testing.T) {
	dir := setupCommandEnv(t)
	out := filepath.Join(dir, "wards.json")

	rootCmd.SetArgs([]string{"cluster", "--format", "json", "--out", out})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var records []district.Record
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 3)
	for _, r := range records {
		require.NotNil(t, r.Cluster, r.Key)
		assert.GreaterOrEqual(t, *r.Cluster, 0)
		assert.Less(t, *r.Cluster, 3)
	}
}

func TestClusterCommand_UnsupportedFormat(t *testing.T) {
	dir := setupCommandEnv(t)

	rootCmd.SetArgs([]string{"cluster", "--format", "xml", "--out", filepath.Join(dir, "wards.xml")})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}
