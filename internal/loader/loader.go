// Package loader reads the raw input layers (ward table, district
// boundaries, green-space facilities and candidate parcels) from local files
// or HTTP and hands them to the pipeline as parsed values.
package loader

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/greenward/greenward/internal/config"
	"github.com/greenward/greenward/internal/district"
	"github.com/greenward/greenward/internal/fetcher"
	"github.com/greenward/greenward/internal/scorer"
)

// ErrInputUnavailable is returned when any input layer cannot be fetched or
// decoded. Loading is all-or-nothing.
var ErrInputUnavailable = eris.New("loader: input unavailable")

// Boundary is a district outline keyed by the normalized ward name.
type Boundary struct {
	Key      district.NormalizedKey
	Name     string
	Geometry geom.T
}

// Inputs is everything one pipeline run needs.
type Inputs struct {
	Records    []district.Record
	Boundaries []Boundary
	Facilities []geom.T
	Parcels    []scorer.Parcel
}

// Loader reads the configured input locations.
type Loader struct {
	fetcher fetcher.Fetcher
	cfg     config.DataConfig
}

// New creates a Loader. f serves every http(s) location.
func New(f fetcher.Fetcher, cfg config.DataConfig) *Loader {
	return &Loader{fetcher: f, cfg: cfg}
}

// NewFromConfig creates a Loader with an HTTP fetcher built from cfg.Fetch.
func NewFromConfig(cfg *config.Config) *Loader {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		RatePerSec: cfg.Fetch.RatePerSec,
	})
	return New(f, cfg.Data)
}

// Load fetches all four layers in parallel. The first failure cancels the
// rest and is returned wrapped in ErrInputUnavailable.
func (l *Loader) Load(ctx context.Context) (*Inputs, error) {
	start := time.Now()
	in := &Inputs{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := l.LoadWards(gctx)
		in.Records = recs
		return err
	})
	g.Go(func() error {
		b, err := l.LoadBoundaries(gctx)
		in.Boundaries = b
		return err
	})
	g.Go(func() error {
		f, err := l.LoadFacilities(gctx)
		in.Facilities = f
		return err
	})
	g.Go(func() error {
		p, err := l.LoadParcels(gctx)
		in.Parcels = p
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("loader: inputs loaded",
		zap.Int("records", len(in.Records)),
		zap.Int("boundaries", len(in.Boundaries)),
		zap.Int("facilities", len(in.Facilities)),
		zap.Int("parcels", len(in.Parcels)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return in, nil
}

// unavailable wraps err so callers can test for ErrInputUnavailable while
// keeping the underlying cause in the message.
func unavailable(err error, layer, location string) error {
	return eris.Wrapf(ErrInputUnavailable, "loader: %s from %q: %v", layer, location, err)
}
