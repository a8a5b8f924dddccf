package scorer

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/greenward/greenward/internal/config"
	"github.com/greenward/greenward/internal/district"
	"github.com/greenward/greenward/internal/geo"
)

// Scorer computes parcel suitability from the containing district and the
// distance to the nearest existing green space. The district regions and the
// facility locator are read-only for the scorer's lifetime, so one Scorer can
// score parcels concurrently.
type Scorer struct {
	districts  *geo.ContainmentResolver[*district.Record]
	facilities *geo.FacilityLocator
	cfg        config.ScorerConfig
}

// New creates a Scorer. The config is validated; weights must sum to 1.
func New(districts *geo.ContainmentResolver[*district.Record], facilities *geo.FacilityLocator, cfg config.ScorerConfig) (*Scorer, error) {
	if err := config.ValidateScorer(cfg); err != nil {
		return nil, eris.Wrap(err, "scorer: invalid config")
	}
	if districts == nil {
		districts = geo.NewContainmentResolver[*district.Record](nil)
	}
	if facilities == nil {
		facilities = geo.NewFacilityLocator(nil)
	}
	return &Scorer{districts: districts, facilities: facilities, cfg: cfg}, nil
}

// Combine applies the scoring formula:
//
//	popNorm   = min(population/200000, 1)
//	distScore = max(0, 1 - distanceKM/5), or 0 with no facility
//	score     = wPriority*wardPriority + wPopulation*popNorm + wDistance*distScore
//
// The score is not clamped; it stays within [0,1] whenever wardPriority does.
func (s *Scorer) Combine(wardPriority float64, population int64, distanceKM float64, hasFacility bool) Components {
	c := Components{
		Population:   population,
		WardPriority: wardPriority,
		HasFacility:  hasFacility,
		DistanceKM:   distanceKM,
	}

	c.PopNorm = math.Min(float64(population)/PopulationScale, 1)
	if hasFacility {
		c.DistScore = math.Max(0, 1-distanceKM/DistanceCutoffKM)
	}

	c.Score = s.cfg.PriorityWeight*c.WardPriority +
		s.cfg.PopulationWeight*c.PopNorm +
		s.cfg.DistanceWeight*c.DistScore
	return c
}

// ScorePoint resolves the district and nearest facility for pt and combines
// them. An unresolved district contributes population 0 and priority 0.
func (s *Scorer) ScorePoint(pt geom.Coord) Components {
	var (
		population   int64
		wardPriority float64
	)
	rec, resolved := s.districts.Resolve(pt)
	if resolved && rec != nil {
		population = rec.Population
		wardPriority = rec.PriorityScore
	}

	dist, hasFacility := s.facilities.Nearest(pt)
	c := s.Combine(wardPriority, population, dist, hasFacility)
	c.Resolved = resolved
	return c
}

// ScoreParcel reduces the parcel to its representative point and scores it.
// Parcels whose geometry cannot be reduced return geo.ErrGeometryUnsupported.
func (s *Scorer) ScoreParcel(p Parcel) (*ScoredParcel, error) {
	rg, err := geo.FromGeom(p.Geometry)
	if err != nil {
		return nil, err
	}

	pt := rg.RepresentativePoint()
	c := s.ScorePoint(pt)
	return &ScoredParcel{
		ID:             p.ID,
		Geometry:       p.Geometry,
		Representative: pt,
		Properties:     augment(p.Properties, c),
		Components:     c,
	}, nil
}

// ScoreAll scores every parcel, preserving input order. A parcel that fails
// for any reason, a panic included, is left out and logged; the rest of the
// batch still completes.
func (s *Scorer) ScoreAll(parcels []Parcel) *Batch {
	slots := make([]*ScoredParcel, len(parcels))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i := range parcels {
		g.Go(func() error {
			scored, err := s.scoreSafe(parcels[i])
			if err != nil {
				if eris.Is(err, geo.ErrGeometryUnsupported) {
					zap.L().Warn("scorer: skipping parcel with unsupported geometry",
						zap.String("parcel_id", parcels[i].ID),
						zap.Error(err),
					)
				} else {
					zap.L().Warn("scorer: failed to score parcel",
						zap.String("parcel_id", parcels[i].ID),
						zap.Error(err),
					)
				}
				return nil // don't abort batch on individual failure
			}
			slots[i] = scored
			return nil
		})
	}
	_ = g.Wait()

	b := &Batch{Parcels: make([]ScoredParcel, 0, len(parcels))}
	for _, sp := range slots {
		if sp == nil {
			b.Skipped++
			continue
		}
		b.Parcels = append(b.Parcels, *sp)
	}

	zap.L().Info("scorer: parcel scoring complete",
		zap.Int("scored", len(b.Parcels)),
		zap.Int("skipped", b.Skipped),
	)
	return b
}

func (s *Scorer) scoreSafe(p Parcel) (scored *ScoredParcel, err error) {
	defer func() {
		if r := recover(); r != nil {
			scored = nil
			err = eris.Errorf("scorer: panic scoring parcel: %v", r)
		}
	}()
	return s.ScoreParcel(p)
}
