package district

// Scale constants map typical observed ranges roughly into [0,1]. Values
// outside the range pass through unclamped.
const (
	PM25Scale        = 200.0
	PopulationScale  = 200000.0
	TemperatureScale = 40.0
	GreenCoverScale  = 20.0
)

// FeatureDims is the length of a FeatureVector.
const FeatureDims = 4

// FeatureVector is the normalized clustering input for one district, paired
// with the key it came from.
type FeatureVector struct {
	Key    NormalizedKey
	Values [FeatureDims]float64
}

// NewFeatureVector normalizes r as
// [pm25/200, population/200000, avgTemp/40, greenCoverPct/20].
func NewFeatureVector(r *Record) FeatureVector {
	return FeatureVector{
		Key: r.Key,
		Values: [FeatureDims]float64{
			r.PM25 / PM25Scale,
			float64(r.Population) / PopulationScale,
			r.AvgTemp / TemperatureScale,
			r.GreenCoverPct / GreenCoverScale,
		},
	}
}

// BuildFeatureVectors returns one vector per record, in the order given.
func BuildFeatureVectors(records []*Record) []FeatureVector {
	out := make([]FeatureVector, 0, len(records))
	for _, r := range records {
		out = append(out, NewFeatureVector(r))
	}
	return out
}
