package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/selectphoto/server/internal/models"
)

// s3API is the part of the S3 client the asset store calls
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures an S3AssetStore
type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string // S3-compatible endpoint, empty for AWS
	PublicBaseURL string // prefix for asset URLs, defaults to the bucket URL
	UsePathStyle  bool
}

// S3AssetStore keeps assets in an S3 bucket. Asset ids are object keys.
type S3AssetStore struct {
	client  s3API
	bucket  string
	baseURL string
}

var _ AssetStore = (*S3AssetStore)(nil)

// NewS3AssetStore creates an S3AssetStore using the default AWS credential chain
func NewS3AssetStore(ctx context.Context, opts S3Options) (*S3AssetStore, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket cannot be empty")
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return newS3AssetStore(client, opts), nil
}

func newS3AssetStore(client s3API, opts S3Options) *S3AssetStore {
	baseURL := strings.TrimSuffix(opts.PublicBaseURL, "/")
	if baseURL == "" {
		switch {
		case opts.Endpoint != "":
			baseURL = strings.TrimSuffix(opts.Endpoint, "/") + "/" + opts.Bucket
		default:
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
		}
	}

	return &S3AssetStore{
		client:  client,
		bucket:  opts.Bucket,
		baseURL: baseURL,
	}
}

// Upload puts the asset into the bucket
func (s *S3AssetStore) Upload(ctx context.Context, assetID string, r io.Reader, size int64) (*Asset, error) {
	if strings.TrimSpace(assetID) == "" {
		return nil, models.ErrEmptyAssetID
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(assetID),
		Body:   r,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType := mime.TypeByExtension(path.Ext(assetID)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to put object %s: %w", assetID, err)
	}

	return &Asset{ID: assetID, URL: s.baseURL + "/" + assetID}, nil
}

// Delete removes the object. S3 reports success for missing keys.
func (s *S3AssetStore) Delete(ctx context.Context, assetID string) error {
	if strings.TrimSpace(assetID) == "" {
		return models.ErrEmptyAssetID
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(assetID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", assetID, err)
	}
	return nil
}

// Open streams the object's body
func (s *S3AssetStore) Open(ctx context.Context, assetID string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(assetID),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, models.ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", assetID, err)
	}
	return out.Body, nil
}
