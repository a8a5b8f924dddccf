package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/greenward/greenward/internal/config"
	"github.com/greenward/greenward/internal/loader"
	"github.com/greenward/greenward/internal/pipeline"
)

// runPipeline validates c for mode, loads every input layer and runs the
// pipeline once.
func runPipeline(ctx context.Context, c *config.Config, mode string) (*pipeline.Result, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	p, err := pipeline.New(c.Cluster, c.Scorer)
	if err != nil {
		return nil, err
	}

	in, err := loader.NewFromConfig(c).Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load inputs")
	}

	if c.Cluster.Seed == 0 {
		zap.L().Debug("cluster seed not set, cluster ids will differ between runs")
	}
	return p.Run(in)
}
