package matcharchive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the subset of the S3 client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config locates the bucket. Endpoint overrides the R2 endpoint derived
// from AccountID, e.g. for MinIO.
type Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Endpoint        string
	Prefix          string
}

// NewS3Client builds an S3 client for Cloudflare R2 or any S3-compatible store.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, fmt.Errorf("archive endpoint or account id is required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	}), nil
}

// Archiver writes payment summaries as JSON objects.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

func New(client ObjectPutter, bucket, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Key returns the object key of a match summary.
func (a *Archiver) Key(matchID string) string {
	return path.Join(a.prefix, "payment-summaries", matchID+".json")
}

func (a *Archiver) ArchiveSummary(ctx context.Context, summary *matchdb.PaymentSummary) error {
	if summary == nil || summary.MatchID == "" {
		return fmt.Errorf("summary without match id")
	}

	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	key := a.Key(summary.MatchID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"match-id": summary.MatchID,
			"status":   string(summary.Status),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload summary %s: %w", summary.MatchID, err)
	}

	a.logger.InfoContext(ctx, "Payment summary archived",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(summary.MatchID),
		attr.String("key", key),
	)
	return nil
}
