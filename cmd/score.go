package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenward/greenward/internal/config"
	"github.com/greenward/greenward/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score vacant parcels as green infrastructure sites",
	Long: `Loads the ward table, ward boundaries, existing green spaces and
candidate parcels, clusters the wards and scores every parcel.

Each parcel's aiScore combines the containing ward's priority score, its
population and the distance to the nearest existing green space.

Examples:
  # Write the scored parcels as GeoJSON
  score --out data/scored_land.geojson

  # Read the ward table from a running API
  GREENWARD_DATA_WARDS_URL=http://localhost:5000/v1/tables/wards/ score

  # Read the live Pathway feed, falling back to data.wards_csv
  GREENWARD_DATA_WARDS_JSONL=data/live_wards.jsonl score

  # Weight population more heavily and print a table
  score --priority-weight 0.4 --population-weight 0.4 --format table`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("out", "", "output file path (default: stdout)")
	f.String("format", "geojson", "output format: geojson, csv or table")
	f.Float64("priority-weight", 0, "ward priority weight (overrides config)")
	f.Float64("population-weight", 0, "population weight (overrides config)")
	f.Float64("distance-weight", 0, "green space distance weight (overrides config)")
	f.Int("concurrency", 0, "parallel scoring workers (overrides config)")
	f.Int64("seed", 0, "cluster random seed (overrides config)")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := zap.L().With(zap.String("command", "score"))

	cfg.Scorer = applyScorerOverrides(cmd, cfg.Scorer)
	if cmd.Flags().Changed("seed") {
		cfg.Cluster.Seed, _ = cmd.Flags().GetInt64("seed")
	}

	res, err := runPipeline(ctx, cfg, "pipeline")
	if err != nil {
		return eris.Wrap(err, "score")
	}

	if res.Scored.Empty() {
		log.Warn("no parcels scored, output will be empty",
			zap.Int("skipped", res.Scored.Skipped),
		)
	}

	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")
	if err := outputScoreResults(res.Scored, format, outPath); err != nil {
		return err
	}

	if outPath != "" {
		log.Info("saved scored parcels", zap.String("path", outPath), zap.Int("count", len(res.Scored.Parcels)))
	}
	printScoreSummary(os.Stderr, res.Scored)
	return nil
}

func applyScorerOverrides(cmd *cobra.Command, base config.ScorerConfig) config.ScorerConfig {
	c := base

	if cmd.Flags().Changed("priority-weight") {
		c.PriorityWeight, _ = cmd.Flags().GetFloat64("priority-weight")
	}
	if cmd.Flags().Changed("population-weight") {
		c.PopulationWeight, _ = cmd.Flags().GetFloat64("population-weight")
	}
	if cmd.Flags().Changed("distance-weight") {
		c.DistanceWeight, _ = cmd.Flags().GetFloat64("distance-weight")
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		c.Concurrency = v
	}

	return c
}

func printScoreSummary(w io.Writer, b *scorer.Batch) {
	if b.Empty() {
		fmt.Fprintln(w, "No parcels scored.")
		return
	}
	var sum, resolved float64
	maxScore, minScore := math.Inf(-1), math.Inf(1)
	for _, p := range b.Parcels {
		s := p.Components.Score
		sum += s
		maxScore = math.Max(maxScore, s)
		minScore = math.Min(minScore, s)
		if p.Components.Resolved {
			resolved++
		}
	}
	total := len(b.Parcels)
	fmt.Fprintf(w, "\n--- Summary ---\n")
	fmt.Fprintf(w, "Total scored:  %d\n", total)
	fmt.Fprintf(w, "Skipped:       %d\n", b.Skipped)
	fmt.Fprintf(w, "In a ward:     %.0f (%.1f%%)\n", resolved, resolved/float64(total)*100)
	fmt.Fprintf(w, "Score range:   %.3f to %.3f\n", minScore, maxScore)
	fmt.Fprintf(w, "Average score: %.3f\n", sum/float64(total))
}

func outputScoreResults(b *scorer.Batch, format, outputPath string) error {
	w, closeFn, err := openOutput(outputPath, os.Stdout)
	if err != nil {
		return eris.Wrap(err, "score")
	}
	defer closeFn() //nolint:errcheck

	switch format {
	case "geojson":
		return writeJSON(w, scoredFeatureCollection(b))
	case "csv":
		return writeParcelCSV(w, b)
	case "table":
		return writeScoreTable(w, b)
	default:
		return eris.Errorf("score: unsupported format %q", format)
	}
}

// truncateID shortens id to at most width runes, marking the cut with "...".
func truncateID(id string, width int) string {
	r := []rune(id)
	if len(r) <= width {
		return id
	}
	return string(r[:width-3]) + "..."
}

func writeScoreTable(w io.Writer, b *scorer.Batch) error {
	header := fmt.Sprintf("%-36s %12s %12s %8s %11s %9s %7s\n",
		"Parcel", "Lon", "Lat", "Score", "Population", "Priority", "Km")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "score: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 101)); err != nil {
		return eris.Wrap(err, "score: write table separator")
	}

	for _, p := range b.Parcels {
		id := truncateID(p.ID, 36)
		km := "-"
		if p.Components.HasFacility {
			km = fmt.Sprintf("%.2f", p.Components.DistanceKM)
		}
		line := fmt.Sprintf("%-36s %12.6f %12.6f %8.3f %11d %9.3f %7s\n",
			id, p.Representative.X(), p.Representative.Y(), p.Components.Score,
			p.Components.Population, p.Components.WardPriority, km)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "score: write table row")
		}
	}
	return nil
}
