// Package config handles loading and validation of cardlake.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cardlake/cardlake/pkg/types"
)

// Load reads and parses cardlake.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, "cardlake.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *types.ProjectConfig) {
	if cfg.RawSource == "" {
		cfg.RawSource = "local"
	}
	if cfg.Store == "" {
		cfg.Store = "local"
	}
	if cfg.SchemaDir == "" {
		cfg.SchemaDir = "schemas"
	}
}

func validate(cfg *types.ProjectConfig) error {
	switch cfg.RawSource {
	case "local":
		if cfg.LocalRaw == nil || cfg.LocalRaw.Dir == "" {
			return fmt.Errorf("localRaw.dir is required when rawSource is local")
		}
	case "s3":
		if cfg.S3Raw == nil || cfg.S3Raw.Bucket == "" {
			return fmt.Errorf("s3Raw.bucket is required when rawSource is s3")
		}
	default:
		return fmt.Errorf("unknown rawSource %q (want local or s3)", cfg.RawSource)
	}

	switch cfg.Store {
	case "local":
		if cfg.LocalStore == nil || cfg.LocalStore.Dir == "" {
			return fmt.Errorf("localStore.dir is required when store is local")
		}
	case "dynamodb":
		if cfg.DynamoDB == nil || cfg.DynamoDB.TableName == "" {
			return fmt.Errorf("dynamodb.tableName is required when store is dynamodb")
		}
	default:
		return fmt.Errorf("unknown store %q (want local or dynamodb)", cfg.Store)
	}

	if cfg.Normalizer != nil {
		if cfg.Normalizer.DropThreshold < 0 || cfg.Normalizer.DropThreshold > 1 {
			return fmt.Errorf("normalizer.dropThreshold must be between 0 and 1")
		}
	}
	if cfg.Fact != nil {
		switch cfg.Fact.BucketGranularity {
		case "", "week", "day", "month":
		default:
			return fmt.Errorf("unknown fact.bucketGranularity %q (want week, day, or month)", cfg.Fact.BucketGranularity)
		}
		if cfg.Fact.PriceTolerance < 0 {
			return fmt.Errorf("fact.priceTolerance must not be negative")
		}
	}

	for i, a := range cfg.Alerts {
		switch a.Type {
		case types.AlertConsole:
		case types.AlertWebhook:
			if a.URL == "" {
				return fmt.Errorf("alerts[%d]: webhook URL is required", i)
			}
		case types.AlertFile:
			if a.Path == "" {
				return fmt.Errorf("alerts[%d]: file path is required", i)
			}
		case types.AlertSNS:
			if a.TopicARN == "" {
				return fmt.Errorf("alerts[%d]: SNS topic ARN is required", i)
			}
		default:
			return fmt.Errorf("alerts[%d]: unknown type %q", i, a.Type)
		}
	}

	return nil
}
