package scorer

import (
	"encoding/json"
	"math"

	"github.com/twpayne/go-geom"
)

// Property keys added to every scored parcel.
const (
	PropScore        = "aiScore"
	PropPopulation   = "population"
	PropWardPriority = "wardPriority"
)

// Parcel is a candidate vacant-land site. Properties is the free-form
// attribute map from the source layer.
type Parcel struct {
	ID         string
	Geometry   geom.T
	Properties map[string]any
}

// Components are the inputs and output of the scoring formula for one point.
type Components struct {
	Resolved     bool    `json:"resolved"`
	Population   int64   `json:"population"`
	WardPriority float64 `json:"wardPriority"`
	PopNorm      float64 `json:"popNorm"`
	HasFacility  bool    `json:"hasFacility"`
	DistanceKM   float64 `json:"distanceKm"`
	DistScore    float64 `json:"distScore"`
	Score        float64 `json:"aiScore"`
}

// MarshalJSON encodes a missing facility distance as null.
func (c Components) MarshalJSON() ([]byte, error) {
	type alias Components
	return json.Marshal(struct {
		alias
		DistanceKM any `json:"distanceKm"`
	}{alias: alias(c), DistanceKM: finiteOrNil(c.DistanceKM)})
}

// ScoredParcel is a parcel with its score. Properties holds every source
// attribute plus aiScore, population and wardPriority.
type ScoredParcel struct {
	ID             string
	Geometry       geom.T
	Representative geom.Coord
	Properties     map[string]any
	Components     Components
}

// Batch is the result of scoring a parcel collection.
type Batch struct {
	Parcels []ScoredParcel
	Skipped int
}

// Empty reports whether no parcel was scored. Callers decide whether that
// deserves a warning.
func (b *Batch) Empty() bool { return len(b.Parcels) == 0 }

// augment copies props and adds the score attributes. Existing keys other
// than the three score keys are preserved untouched.
func augment(props map[string]any, c Components) map[string]any {
	out := make(map[string]any, len(props)+3)
	for k, v := range props {
		out[k] = v
	}
	out[PropScore] = c.Score
	out[PropPopulation] = c.Population
	out[PropWardPriority] = c.WardPriority
	return out
}

// finiteOrNil keeps +Inf out of JSON encodings.
func finiteOrNil(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}
