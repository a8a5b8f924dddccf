// Package scorer ranks candidate parcels as sites for new green
// infrastructure.
package scorer

import (
	"github.com/greenward/greenward/internal/config"
	"github.com/greenward/greenward/internal/district"
)

// The normalization constants are fixed; only the weights are tunable.
const (
	// PopulationScale is the population at which popNorm saturates at 1.
	PopulationScale = district.PopulationScale
	// DistanceCutoffKM is the distance at which distScore reaches 0.
	DistanceCutoffKM = 5.0
)

// DefaultScorerConfig returns a config.ScorerConfig with the standard policy.
// Weights sum to 1.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		PriorityWeight:   0.5,
		PopulationWeight: 0.3,
		DistanceWeight:   0.2,
		Concurrency:      4,
	}
}

// WeightSum returns the sum of all component weights.
func WeightSum(c config.ScorerConfig) float64 {
	return c.PriorityWeight + c.PopulationWeight + c.DistanceWeight
}
