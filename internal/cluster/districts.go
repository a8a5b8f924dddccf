package cluster

import (
	"github.com/greenward/greenward/internal/district"
)

// AssignDistricts clusters the feature vectors and maps every resulting id
// back to the key its vector was built from. The assignment is produced for
// the whole batch or not at all.
func AssignDistricts(km *KMeans, vectors []district.FeatureVector) (district.ClusterAssignment, *Result, error) {
	points := make([][]float64, len(vectors))
	for i := range vectors {
		points[i] = vectors[i].Values[:]
	}

	res, err := km.Fit(points)
	if err != nil {
		return nil, nil, err
	}

	assignment := make(district.ClusterAssignment, len(vectors))
	for i, v := range vectors {
		assignment[v.Key] = res.Assignments[i]
	}
	return assignment, res, nil
}
