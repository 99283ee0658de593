// Package lambda provides shared types and initialization for the Lambda
// batch runner.
package lambda

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cardlake/cardlake/internal/alert"
	"github.com/cardlake/cardlake/internal/dimension"
	"github.com/cardlake/cardlake/internal/fact"
	"github.com/cardlake/cardlake/internal/normalize"
	"github.com/cardlake/cardlake/internal/pipeline"
	"github.com/cardlake/cardlake/internal/raw"
	"github.com/cardlake/cardlake/internal/schema"
	"github.com/cardlake/cardlake/internal/store/dynamodb"
	"github.com/cardlake/cardlake/pkg/types"
)

// RunRequest is the input to the batch runner Lambda. Invocations typically
// come from an EventBridge schedule carrying the ingestion date as batch ID.
type RunRequest struct {
	BatchID string `json:"batchId"`
}

// RunResponse summarizes the completed (or failed) batch attempt.
type RunResponse struct {
	BatchID   string               `json:"batchId"`
	AttemptID string               `json:"attemptId,omitempty"`
	Status    string               `json:"status"`
	Outcome   *types.OutcomeReport `json:"outcome,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// Deps holds shared dependencies for the Lambda handler, built once per
// container and reused across invocations.
type Deps struct {
	Store       *dynamodb.DynamoDBStore
	Coordinator *pipeline.Coordinator
	Logger      *slog.Logger
}

// Init creates shared dependencies from environment variables.
// Reads: TABLE_NAME, AWS_REGION, RAW_BUCKET, RAW_PREFIX, SCHEMA_DIR, SNS_TOPIC_ARN
func Init(ctx context.Context) (*Deps, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	tableName := os.Getenv("TABLE_NAME")
	if tableName == "" {
		return nil, fmt.Errorf("TABLE_NAME environment variable required")
	}
	rawBucket := os.Getenv("RAW_BUCKET")
	if rawBucket == "" {
		return nil, fmt.Errorf("RAW_BUCKET environment variable required")
	}
	region := os.Getenv("AWS_REGION")

	s, err := dynamodb.New(&types.DynamoDBConfig{
		TableName: tableName,
		Region:    region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	if err := s.Start(ctx); err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}

	reader, err := raw.NewS3Reader(&types.S3RawConfig{
		Bucket: rawBucket,
		Prefix: os.Getenv("RAW_PREFIX"),
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating raw reader: %w", err)
	}

	schemaDir := os.Getenv("SCHEMA_DIR")
	if schemaDir == "" {
		schemaDir = "schemas"
	}
	registry := schema.NewRegistry()
	if err := registry.LoadDir(schemaDir); err != nil {
		return nil, fmt.Errorf("loading schema contracts: %w", err)
	}

	var alertConfigs []types.AlertConfig
	if topicARN := os.Getenv("SNS_TOPIC_ARN"); topicARN != "" {
		alertConfigs = append(alertConfigs, types.AlertConfig{
			Type:     types.AlertSNS,
			TopicARN: topicARN,
		})
	}
	dispatcher, err := alert.NewDispatcher(alertConfigs)
	if err != nil {
		return nil, fmt.Errorf("configuring alerts: %w", err)
	}

	coord := pipeline.New(
		reader,
		normalize.New(registry, nil, logger),
		dimension.NewBuilder(s, logger),
		fact.NewAppender(s, logger),
		s,
		dispatcher.AlertFunc(),
		logger,
	)

	return &Deps{Store: s, Coordinator: coord, Logger: logger}, nil
}
