package types

// ProjectConfig represents the top-level cardlake.yaml configuration.
type ProjectConfig struct {
	RawSource  string            `yaml:"rawSource"` // "local" | "s3"
	Store      string            `yaml:"store"`     // "local" | "dynamodb"
	LocalRaw   *LocalRawConfig   `yaml:"localRaw,omitempty"`
	S3Raw      *S3RawConfig      `yaml:"s3Raw,omitempty"`
	LocalStore *LocalStoreConfig `yaml:"localStore,omitempty"`
	DynamoDB   *DynamoDBConfig   `yaml:"dynamodb,omitempty"`
	SchemaDir  string            `yaml:"schemaDir"`
	Normalizer *NormalizerConfig `yaml:"normalizer,omitempty"`
	Fact       *FactConfig       `yaml:"fact,omitempty"`
	Warehouse  *WarehouseConfig  `yaml:"warehouse,omitempty"`
	Alerts     []AlertConfig     `yaml:"alerts,omitempty"`
}

// LocalRawConfig points the raw reader at a local data lake directory.
type LocalRawConfig struct {
	Dir string `yaml:"dir"`
}

// S3RawConfig points the raw reader at an S3 data lake.
type S3RawConfig struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"` // for MinIO/localstack
}

// LocalStoreConfig holds filesystem store settings.
type LocalStoreConfig struct {
	Dir string `yaml:"dir"`
}

// DynamoDBConfig holds DynamoDB connection and table settings.
type DynamoDBConfig struct {
	TableName   string `yaml:"tableName" json:"tableName"`
	Region      string `yaml:"region" json:"region"`
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	CreateTable bool   `yaml:"createTable,omitempty" json:"createTable,omitempty"`
}

// NormalizerConfig tunes record validation and drop handling.
type NormalizerConfig struct {
	DropThreshold float64 `yaml:"dropThreshold,omitempty"` // fraction, default 0.05
	Parallelism   int     `yaml:"parallelism,omitempty"`   // default 8
}

// FactConfig tunes fact-appender semantics.
type FactConfig struct {
	BucketGranularity string  `yaml:"bucketGranularity,omitempty"` // "week" (default) | "day" | "month"
	PriceTolerance    float64 `yaml:"priceTolerance,omitempty"`    // absolute, default 0.0001
}

// WarehouseConfig holds DuckDB analytics settings.
type WarehouseConfig struct {
	Path     string `yaml:"path,omitempty"`     // DuckDB database file, empty = in-memory
	TopN     int    `yaml:"topN,omitempty"`     // weekly leaderboard size, default 200
	S3Region string `yaml:"s3Region,omitempty"` // for httpfs views over S3
}

// AlertConfig defines an alert sink configuration.
type AlertConfig struct {
	Type     AlertType `yaml:"type" json:"type"`
	URL      string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string    `yaml:"path,omitempty" json:"path,omitempty"`
	TopicARN string    `yaml:"topicArn,omitempty" json:"topicArn,omitempty"`
}
