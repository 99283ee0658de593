// Package commands implements the cardlake CLI commands.
package commands

import (
	"fmt"

	"github.com/cardlake/cardlake/internal/alert"
	"github.com/cardlake/cardlake/internal/dimension"
	"github.com/cardlake/cardlake/internal/fact"
	"github.com/cardlake/cardlake/internal/normalize"
	"github.com/cardlake/cardlake/internal/pipeline"
	"github.com/cardlake/cardlake/internal/raw"
	"github.com/cardlake/cardlake/internal/schema"
	"github.com/cardlake/cardlake/internal/store"
	"github.com/cardlake/cardlake/internal/store/dynamodb"
	"github.com/cardlake/cardlake/internal/store/local"
	"github.com/cardlake/cardlake/pkg/types"
)

// newStore creates the processed-layer store from config.
func newStore(cfg *types.ProjectConfig) (store.Store, error) {
	switch cfg.Store {
	case "local":
		return local.New(cfg.LocalStore)
	case "dynamodb":
		return dynamodb.New(cfg.DynamoDB)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Store)
	}
}

// newReader creates the raw capture reader from config.
func newReader(cfg *types.ProjectConfig) (raw.Reader, error) {
	switch cfg.RawSource {
	case "local":
		return raw.NewLocalReader(cfg.LocalRaw.Dir), nil
	case "s3":
		return raw.NewS3Reader(cfg.S3Raw)
	default:
		return nil, fmt.Errorf("unknown raw source type: %s", cfg.RawSource)
	}
}

// buildCoordinator wires the full batch pipeline: reader, schema registry,
// normalizer, dimension builder, fact appender, store, and alert dispatch.
func buildCoordinator(cfg *types.ProjectConfig, s store.Store) (*pipeline.Coordinator, error) {
	reader, err := newReader(cfg)
	if err != nil {
		return nil, err
	}

	registry := schema.NewRegistry()
	if err := registry.LoadDir(cfg.SchemaDir); err != nil {
		return nil, fmt.Errorf("loading schema contracts: %w", err)
	}

	normalizer := normalize.New(registry, cfg.Normalizer, nil)
	builder := dimension.NewBuilder(s, nil)

	var factOpts []fact.Option
	if cfg.Fact != nil {
		g, err := fact.ParseGranularity(cfg.Fact.BucketGranularity)
		if err != nil {
			return nil, err
		}
		factOpts = append(factOpts, fact.WithGranularity(g))
		if cfg.Fact.PriceTolerance > 0 {
			factOpts = append(factOpts, fact.WithTolerance(cfg.Fact.PriceTolerance))
		}
	}
	appender := fact.NewAppender(s, nil, factOpts...)

	dispatcher, err := alert.NewDispatcher(cfg.Alerts)
	if err != nil {
		return nil, fmt.Errorf("configuring alerts: %w", err)
	}

	return pipeline.New(reader, normalizer, builder, appender, s, dispatcher.AlertFunc(), nil), nil
}
