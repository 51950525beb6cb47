package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Purchased video assets are never served directly; access goes through
// short-lived presigned URLs issued only after the entitlement check.
const presignExpiry = 15 * time.Minute

// ContentStore issues presigned download URLs for video assets.
type ContentStore struct {
	presigner *s3.PresignClient
	config    *Config
}

// NewContentStore creates an S3-backed content store
func NewContentStore(cfg *Config) (*ContentStore, error) {
	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true // S3-compatible services expect path-style URLs
			o.UseAccelerate = false
		}
	})

	return &ContentStore{
		presigner: s3.NewPresignClient(s3Client),
		config:    cfg,
	}, nil
}

// NewContentStoreFromEnv creates a content store from environment config
func NewContentStoreFromEnv() (*ContentStore, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewContentStore(cfg)
}

// PresignDownload returns a time-limited URL for the given object key.
func (s *ContentStore) PresignDownload(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", fmt.Errorf("object key is empty")
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.BucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %w", objectKey, err)
	}
	return req.URL, nil
}
