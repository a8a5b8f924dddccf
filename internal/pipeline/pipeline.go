// Package pipeline runs the two analytical branches over one loaded input
// set: district clustering and parcel suitability scoring.
package pipeline

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/greenward/greenward/internal/cluster"
	"github.com/greenward/greenward/internal/config"
	"github.com/greenward/greenward/internal/district"
	"github.com/greenward/greenward/internal/geo"
	"github.com/greenward/greenward/internal/loader"
	"github.com/greenward/greenward/internal/scorer"
)

// ErrUnjoinableRecord marks a district boundary whose name matches no ward
// record. The boundary is left out of containment.
var ErrUnjoinableRecord = eris.New("pipeline: boundary has no matching district record")

// Result is the output of one Run. Districts carries the cluster ids; the
// records it points to are also the values the scorer resolved parcels to.
type Result struct {
	Districts  *district.Table
	Clusters   district.ClusterAssignment
	Clustering *cluster.Result
	Scored     *scorer.Batch
	Phases     []PhaseResult

	Joined     int
	Unjoined   int
	Facilities int
}

// Pipeline holds the tunables for a run.
type Pipeline struct {
	clusterCfg config.ClusterConfig
	scorerCfg  config.ScorerConfig
}

// New creates a Pipeline. The scorer config is validated up front.
func New(clusterCfg config.ClusterConfig, scorerCfg config.ScorerConfig) (*Pipeline, error) {
	if err := config.ValidateScorer(scorerCfg); err != nil {
		return nil, eris.Wrap(err, "pipeline: invalid scorer config")
	}
	return &Pipeline{clusterCfg: clusterCfg, scorerCfg: scorerCfg}, nil
}

// Run clusters the ward table, joins boundaries to records, reduces
// facilities and scores every parcel. Inputs are not modified.
func (p *Pipeline) Run(in *loader.Inputs) (*Result, error) {
	if in == nil {
		return nil, eris.New("pipeline: nil inputs")
	}
	log := zap.L().With(zap.String("component", "pipeline"))
	start := time.Now()

	res := &Result{Districts: district.NewTable(in.Records)}
	tracker := &phaseTracker{log: log}

	err := tracker.track("cluster", func() (bool, error) {
		return p.clusterDistricts(res)
	})
	if err != nil {
		return nil, err
	}

	var regions []geo.Region[*district.Record]
	_ = tracker.track("join", func() (bool, error) {
		regions = p.joinBoundaries(res, in.Boundaries)
		return false, nil
	})

	var facilities []geo.ReducibleGeometry
	_ = tracker.track("facilities", func() (bool, error) {
		facilities = reduceFacilities(in.Facilities)
		res.Facilities = len(facilities)
		return false, nil
	})

	err = tracker.track("score", func() (bool, error) {
		s, err := scorer.New(geo.NewContainmentResolver(regions), geo.NewFacilityLocator(facilities), p.scorerCfg)
		if err != nil {
			return false, err
		}
		res.Scored = s.ScoreAll(in.Parcels)
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	if res.Scored.Empty() {
		log.Warn("pipeline: no parcels were scored", zap.Int("parcels", len(in.Parcels)))
	}

	res.Phases = tracker.phases
	log.Info("pipeline: run complete",
		zap.Int("districts", res.Districts.Len()),
		zap.Int("joined", res.Joined),
		zap.Int("unjoined", res.Unjoined),
		zap.Int("facilities", res.Facilities),
		zap.Int("scored", len(res.Scored.Parcels)),
		zap.Int("skipped", res.Scored.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// clusterDistricts fits k-means over the table and writes ids back. An empty
// table is not an error; clustering is skipped and scoring still runs.
func (p *Pipeline) clusterDistricts(res *Result) (skipped bool, err error) {
	vectors := district.BuildFeatureVectors(res.Districts.Records())
	if len(vectors) == 0 {
		return true, nil
	}

	km := cluster.New(cluster.Options{
		K:             p.clusterCfg.K,
		MaxIterations: p.clusterCfg.MaxIterations,
		Seed:          p.clusterCfg.Seed,
	})
	assignment, fit, err := cluster.AssignDistricts(km, vectors)
	if err != nil {
		return false, eris.Wrap(err, "pipeline: cluster districts")
	}

	res.Districts.ApplyClusters(assignment)
	res.Clusters = assignment
	res.Clustering = fit
	return false, nil
}

// joinBoundaries pairs every boundary with its ward record by key, keeping
// input order so the first containing boundary wins.
func (p *Pipeline) joinBoundaries(res *Result, boundaries []loader.Boundary) []geo.Region[*district.Record] {
	regions := make([]geo.Region[*district.Record], 0, len(boundaries))
	for _, b := range boundaries {
		rec, ok := res.Districts.Lookup(b.Key)
		if !ok {
			res.Unjoined++
			zap.L().Warn("pipeline: dropping boundary",
				zap.String("key", b.Key.String()),
				zap.Error(ErrUnjoinableRecord),
			)
			continue
		}

		rg, err := geo.FromGeom(b.Geometry)
		if err == nil {
			var area geo.Areal
			area, err = geo.AsAreal(rg)
			if err == nil {
				regions = append(regions, geo.Region[*district.Record]{Area: area, Value: rec})
				continue
			}
		}
		res.Unjoined++
		zap.L().Warn("pipeline: skipping boundary with unsupported geometry",
			zap.String("key", b.Key.String()),
			zap.Error(err),
		)
	}
	res.Joined = len(regions)
	return regions
}

// reduceFacilities converts each facility to a reducible geometry once,
// skipping types that cannot be reduced.
func reduceFacilities(gs []geom.T) []geo.ReducibleGeometry {
	out := make([]geo.ReducibleGeometry, 0, len(gs))
	for i, g := range gs {
		rg, err := geo.FromGeom(g)
		if err != nil {
			zap.L().Warn("pipeline: skipping facility with unsupported geometry",
				zap.Int("facility", i),
				zap.Error(err),
			)
			continue
		}
		out = append(out, rg)
	}
	return out
}
