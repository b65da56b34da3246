package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/clusterizer/internal/clientindex"
	"github.com/hyperjump/clusterizer/internal/config"
	"github.com/hyperjump/clusterizer/internal/embedding"
	"github.com/hyperjump/clusterizer/internal/features"
	"github.com/hyperjump/clusterizer/internal/pipeline"
	"github.com/hyperjump/clusterizer/internal/runner"
	"github.com/hyperjump/clusterizer/internal/storage"
	"github.com/hyperjump/clusterizer/internal/tabular"
	"github.com/hyperjump/clusterizer/internal/transform"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Provider    *transform.Provider
	Pipeline    *pipeline.Pipeline
	Storage     storage.Storage
	ClientIndex clientindex.Index
	Runner      *runner.Runner
}

// Close releases the run store and client index.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.ClientIndex != nil {
		_ = c.ClientIndex.Close()
	}
}

func sourceConfig(cfg *config.Config) transform.SourceConfig {
	a := cfg.Artifacts
	return transform.SourceConfig{
		Kind:      a.Source,
		Dir:       a.Dir,
		Bucket:    a.Bucket,
		Prefix:    a.Prefix,
		Endpoint:  a.Endpoint,
		Region:    a.Region,
		AccessKey: a.AccessKey,
		SecretKey: a.SecretKey,
		UseSSL:    a.UseSSL,
	}
}

func artifactNames(cfg *config.Config) transform.ArtifactNames {
	return transform.ArtifactNames{
		Scaler:    cfg.Artifacts.Scaler,
		Embedding: cfg.Artifacts.Embedding,
		Centroids: cfg.Artifacts.Centroids,
	}
}

// newProvider returns a provider that loads the configured artifacts on first use.
func newProvider(cfg *config.Config, logger *zap.Logger) *transform.Provider {
	return transform.NewProvider(func(ctx context.Context) (*transform.Store, error) {
		src, err := transform.NewSource(ctx, sourceConfig(cfg))
		if err != nil {
			return nil, err
		}
		return transform.Load(ctx, src, artifactNames(cfg), transform.WithLogger(logger))
	})
}

func newPipeline(cfg *config.Config, provider *transform.Provider, logger *zap.Logger) (*pipeline.Pipeline, error) {
	refDate, err := cfg.Features.ParseReferenceDate()
	if err != nil {
		return nil, err
	}
	taxonomy, err := features.LoadTaxonomy(cfg.Features.TaxonomyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}
	builder := features.NewBuilder(
		features.WithReferenceDate(refDate),
		features.WithTaxonomy(taxonomy),
		features.WithLogger(logger),
	)
	return pipeline.New(provider, builder,
		pipeline.WithLogger(logger),
		pipeline.WithProjectorOptions(
			embedding.WithNeighbors(cfg.Embedding.Neighbors),
			embedding.WithEpsilon(cfg.Embedding.Epsilon),
			embedding.WithWorkers(cfg.Embedding.Workers),
			embedding.WithOODThreshold(cfg.Embedding.OODThreshold),
		),
	), nil
}

// initializeComponents wires the prediction pipeline. With persist set it also opens
// the run store and client index and records every run in them.
func initializeComponents(cfg *config.Config, logger *zap.Logger, persist bool) (*Components, error) {
	provider := newProvider(cfg, logger)
	p, err := newPipeline(cfg, provider, logger)
	if err != nil {
		return nil, err
	}
	c := &Components{Provider: provider, Pipeline: p}

	format, err := tabular.ParseFormat(cfg.Watch.Format)
	if err != nil {
		return nil, fmt.Errorf("watch.format: %w", err)
	}
	runOpts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithOutputDir(cfg.Watch.OutputDir),
		runner.WithOutputFormat(format),
	}
	if persist {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		c.Storage = store
		idx, err := clientindex.NewBleveIndex(cfg.Storage.BleveIndexPath, clientindex.WithLogger(logger))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize client index: %w", err)
		}
		c.ClientIndex = idx
		runOpts = append(runOpts, runner.WithStorage(store), runner.WithClientIndex(idx))
	}
	c.Runner = runner.New(p, runOpts...)
	return c, nil
}
