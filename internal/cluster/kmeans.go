// Package cluster partitions district feature vectors with k-means.
package cluster

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// DefaultK is the number of district clusters.
const DefaultK = 3

const defaultMaxIterations = 100

var (
	// ErrNoPoints is returned when Fit is called with no input vectors.
	ErrNoPoints = eris.New("cluster: no points to cluster")

	// ErrDegenerate marks a run with fewer points than clusters. It is never
	// returned from Fit; Result.Degenerate reports it and the run still
	// succeeds with some clusters left empty.
	ErrDegenerate = eris.New("cluster: fewer points than clusters")
)

// Options configures a KMeans run. Zero values select the defaults; a zero
// Seed draws the seed from the clock.
type Options struct {
	K             int
	MaxIterations int
	Seed          int64
}

// KMeans is a Lloyd-style k-means clusterer over Euclidean distance.
type KMeans struct {
	opts Options
}

// Result holds the outcome of one Fit call. Assignments[i] is the cluster id
// of points[i] and always lies in [0, K).
type Result struct {
	Assignments []int
	Centroids   [][]float64
	Iterations  int
	Converged   bool
	Degenerate  bool
}

// New creates a KMeans clusterer, filling unset options with defaults.
func New(opts Options) *KMeans {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	return &KMeans{opts: opts}
}

// K returns the configured cluster count.
func (km *KMeans) K() int { return km.opts.K }

// Fit partitions points into K clusters. Centroids start at K distinct input
// points chosen at random; with fewer points than K the surplus centroids
// reuse input points and the clusters that lose every tie stay empty. An
// empty cluster keeps its previous centroid. Iteration stops when no
// assignment changes or MaxIterations is reached.
//
// Cluster ids carry no meaning and are not stable across unseeded runs.
func (km *KMeans) Fit(points [][]float64) (*Result, error) {
	n := len(points)
	if n == 0 {
		return nil, ErrNoPoints
	}
	dims := len(points[0])
	if dims == 0 {
		return nil, eris.New("cluster: points have zero dimensions")
	}
	for i, p := range points {
		if len(p) != dims {
			return nil, eris.Errorf("cluster: point %d has dimension %d, expected %d", i, len(p), dims)
		}
	}

	k := km.opts.K
	rng := km.newRand()
	res := &Result{
		Assignments: make([]int, n),
		Centroids:   initCentroids(points, k, rng),
		Degenerate:  n < k,
	}
	if res.Degenerate {
		zap.L().Debug("cluster: degenerate input, some clusters will be empty",
			zap.Int("points", n),
			zap.Int("k", k),
			zap.Error(ErrDegenerate),
		)
	}

	for i := range res.Assignments {
		res.Assignments[i] = -1
	}

	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	counts := make([]int, k)

	for iter := 0; iter < km.opts.MaxIterations; iter++ {
		changed := false
		for i, p := range points {
			best := nearest(p, res.Centroids)
			if res.Assignments[i] != best {
				res.Assignments[i] = best
				changed = true
			}
		}
		res.Iterations = iter + 1
		if !changed {
			res.Converged = true
			break
		}

		for c := range sums {
			floats.Scale(0, sums[c])
			counts[c] = 0
		}
		for i, p := range points {
			c := res.Assignments[i]
			floats.Add(sums[c], p)
			counts[c]++
		}
		for c := range sums {
			if counts[c] == 0 {
				continue
			}
			copy(res.Centroids[c], sums[c])
			floats.Scale(1/float64(counts[c]), res.Centroids[c])
		}
	}

	zap.L().Debug("cluster: k-means finished",
		zap.Int("points", n),
		zap.Int("k", k),
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged),
	)

	return res, nil
}

func (km *KMeans) newRand() *rand.Rand {
	seed := uint64(km.opts.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// initCentroids picks k starting centroids from distinct input points. When
// there are fewer points than k, the remaining centroids copy random points.
func initCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	perm := rng.Perm(len(points))
	centroids := make([][]float64, k)
	for c := range centroids {
		var src []float64
		if c < len(perm) {
			src = points[perm[c]]
		} else {
			src = points[rng.IntN(len(points))]
		}
		centroids[c] = append([]float64(nil), src...)
	}
	return centroids
}

// nearest returns the index of the centroid closest to p. Ties go to the
// lowest index.
func nearest(p []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		d := floats.Distance(p, centroid, 2)
		if d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}
