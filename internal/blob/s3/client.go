// Package s3blob archives pass snapshots to an S3-compatible object store.
// Any provider exposing the S3 API works (AWS, MinIO, R2) via the Endpoint
// override.
package s3blob

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds object store connection parameters.
type ClientConfig struct {
	// Endpoint overrides the S3 endpoint URL, scheme included. Empty means
	// standard AWS S3.
	Endpoint string
	Region   string
	Bucket   string

	AccessKey string
	SecretKey string

	// ForcePathStyle puts the bucket in the path instead of the subdomain.
	// MinIO and most self-hosted providers need it.
	ForcePathStyle bool
}

// Client wraps the AWS SDK client with the bucket everything writes to.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New builds an S3 client with static credentials and the configured
// endpoint. It does not touch the network; Health verifies access.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Client{s3: client, bucket: cfg.Bucket}, nil
}

// Health verifies the bucket is reachable with the configured credentials.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close exists for teardown symmetry; the SDK client holds no resources that
// need explicit release.
func (c *Client) Close() error {
	return nil
}
