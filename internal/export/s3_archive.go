package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	archivePrefix  = "exports/tickets"
	archiveExpires = time.Hour
)

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type ObjectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Archived describes a report stored in the bucket.
type Archived struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// S3Archive stores generated reports and hands out presigned download links.
type S3Archive struct {
	client    ObjectPutter
	presigner ObjectPresigner
	bucket    string
	logger    *zap.Logger
	now       func() time.Time
}

// NewS3Archive builds an archive from static credentials. Empty keys fall back to the
// default AWS credential chain.
func NewS3Archive(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Archive, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig)
	return NewS3ArchiveWithClient(client, s3.NewPresignClient(client), cfg.Bucket, logger), nil
}

func NewS3ArchiveWithClient(client ObjectPutter, presigner ObjectPresigner, bucket string, logger *zap.Logger) *S3Archive {
	return &S3Archive{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		logger:    logger,
		now:       time.Now,
	}
}

// Store uploads report and returns a link valid for one hour.
func (a *S3Archive) Store(ctx context.Context, report []byte) (*Archived, error) {
	now := a.now().UTC()
	key := fmt.Sprintf("%s/%s/%s.csv", archivePrefix, now.Format("2006/01/02"), ulid.Make().String())

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(report),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	req, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = archiveExpires
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	a.logger.Info("audit report archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(report)),
	)

	return &Archived{Key: key, URL: req.URL, ExpiresAt: now.Add(archiveExpires)}, nil
}
