package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// weightTolerance bounds floating-point drift when checking that scorer
// weights sum to one.
const weightTolerance = 1e-6

// Validate checks the configuration required by the given mode.
// Modes: "pipeline" (cluster and score commands) and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "pipeline":
		errs = append(errs, c.validateData()...)
	case "serve":
		errs = append(errs, c.validateData()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	errs = append(errs, c.validateCluster()...)
	if err := ValidateScorer(c.Scorer); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateData() []string {
	var errs []string
	if c.Data.WardsURL == "" && c.Data.WardsJSONL == "" && c.Data.WardsCSV == "" {
		errs = append(errs, "one of data.wards_url, data.wards_jsonl or data.wards_csv is required")
	}
	if c.Data.Districts == "" {
		errs = append(errs, "data.districts is required")
	}
	if c.Data.Facilities == "" {
		errs = append(errs, "data.facilities is required")
	}
	if c.Data.Parcels == "" {
		errs = append(errs, "data.parcels is required")
	}
	return errs
}

func (c *Config) validateCluster() []string {
	var errs []string
	if c.Cluster.K < 1 {
		errs = append(errs, "cluster.k must be >= 1")
	}
	if c.Cluster.MaxIterations < 1 {
		errs = append(errs, "cluster.max_iterations must be >= 1")
	}
	return errs
}

// ValidateScorer checks that scorer weights are non-negative and sum to 1.0,
// and that the worker count is in range.
func ValidateScorer(s ScorerConfig) error {
	var errs []string

	weights := map[string]float64{
		"priority_weight":   s.PriorityWeight,
		"population_weight": s.PopulationWeight,
		"distance_weight":   s.DistanceWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("scorer.%s must be >= 0", name))
		}
	}

	sum := s.PriorityWeight + s.PopulationWeight + s.DistanceWeight
	if math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("scorer weights must sum to 1.0, got %.4f", sum))
	}

	if s.Concurrency < 1 || s.Concurrency > 64 {
		errs = append(errs, "scorer.concurrency must be between 1 and 64")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: scorer: %s", strings.Join(errs, "; "))
	}
	return nil
}
