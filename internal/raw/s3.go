package raw

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sony/gobreaker"

	"github.com/cardlake/cardlake/pkg/types"
)

// S3API is the subset of the S3 client used by S3Reader.
type S3API interface {
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Reader reads raw captures from an S3 data lake. All S3 calls go through
// a circuit breaker so a flapping object store fails the batch fast instead
// of grinding through thousands of slow reads.
type S3Reader struct {
	client  S3API
	bucket  string
	prefix  string
	breaker *gobreaker.CircuitBreaker
}

// S3ReaderOption configures an S3Reader.
type S3ReaderOption func(*S3Reader)

// WithS3Client sets a custom S3 client (useful for testing).
func WithS3Client(c S3API) S3ReaderOption {
	return func(r *S3Reader) { r.client = c }
}

// NewS3Reader creates a reader for the configured bucket.
func NewS3Reader(cfg *types.S3RawConfig, opts ...S3ReaderOption) (*S3Reader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	r := &S3Reader{
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "s3-raw",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
	for _, o := range opts {
		o(r)
	}

	if r.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		var clientOpts []func(*s3.Options)
		if cfg.Endpoint != "" {
			clientOpts = append(clientOpts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			})
		}
		r.client = s3.NewFromConfig(awsCfg, clientOpts...)
	}

	return r, nil
}

func (r *S3Reader) keyPrefix(entity, batchID string) string {
	p := path.Join(layoutPrefix, entity, partitionName+"="+batchID) + "/"
	if r.prefix != "" {
		p = r.prefix + "/" + p
	}
	return p
}

// ListCaptures enumerates capture objects for a batch across both entity types.
func (r *S3Reader) ListCaptures(ctx context.Context, batchID string) ([]types.CaptureRef, error) {
	var refs []types.CaptureRef

	for _, entity := range []string{entityCards, entityPrices} {
		kind, _ := entityKind(entity)
		prefix := r.keyPrefix(entity, batchID)

		var token *string
		for {
			out, err := r.breaker.Execute(func() (interface{}, error) {
				return r.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
					Bucket:            &r.bucket,
					Prefix:            &prefix,
					ContinuationToken: token,
				})
			})
			if err != nil {
				return nil, &types.StorageFailure{Op: "list captures", Err: err}
			}
			page := out.(*s3.ListObjectsV2Output)

			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				if !strings.HasSuffix(key, ".json") {
					continue
				}
				ingestedAt := time.Time{}
				if obj.LastModified != nil {
					ingestedAt = obj.LastModified.UTC()
				}
				refs = append(refs, types.CaptureRef{
					BatchID:    batchID,
					Kind:       kind,
					Key:        key,
					IngestedAt: ingestedAt,
				})
			}

			if page.NextContinuationToken == nil {
				break
			}
			token = page.NextContinuationToken
		}
	}

	if len(refs) == 0 {
		return nil, fmt.Errorf("no captures found for batch %s in bucket %s", batchID, r.bucket)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
	return refs, nil
}

// ReadCapture downloads and decodes a single capture object.
func (r *S3Reader) ReadCapture(ctx context.Context, ref types.CaptureRef) (*types.RawCapture, error) {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		resp, err := r.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: &r.bucket,
			Key:    &ref.Key,
		})
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, &types.StorageFailure{Op: "read capture", Err: err}
	}

	payload, err := decodePayload(out.([]byte), ref.Key)
	if err != nil {
		return nil, err
	}

	return &types.RawCapture{Ref: ref, Payload: payload}, nil
}
