package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"hed/internal/export/interfaces"
	"hed/internal/structures"
)

// s3API is the subset of the S3 client used by the archive.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// seams for tests
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3BlobStore writes archive objects to S3 or an S3 compatible service.
// PutObject is atomic: an object is either fully visible or absent.
type S3BlobStore struct {
	client s3API
	bucket string
	region string
}

func NewS3BlobStore(ctx context.Context, conf *structures.Config) (*S3BlobStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.Archive.Region),
	}
	if conf.Archive.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			conf.Archive.AccessKey,
			conf.Archive.SecretKey,
			"",
		)))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Credentials == nil {
		return nil, ErrMissingCredentials
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if conf.Archive.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Archive.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BlobStore{client: client, bucket: conf.Archive.Bucket, region: conf.Archive.Region}, nil
}

// EnsureReady creates the bucket when it does not exist yet.
func (s *S3BlobStore) EnsureReady(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	_, err = s.client.CreateBucket(ctx, input)
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3BlobStore) Put(ctx context.Context, path string, body []byte, contentType string, metadata map[string]string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		Metadata:      metadata,
	})
	return err
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

var (
	ErrUnknownArchiveDriver = errors.New("unknown archive driver")
	ErrMissingCredentials   = errors.New("archive credentials unavailable")
)

// accessErrorCodes are S3 error codes that retrying or waiting cannot fix.
var accessErrorCodes = map[string]struct{}{
	"AccessDenied":          {},
	"Forbidden":             {},
	"InvalidAccessKeyId":    {},
	"SignatureDoesNotMatch": {},
	"AllAccessDisabled":     {},
	"InvalidBucketName":     {},
}

// IsConfigFault reports whether err comes from configuration (credentials,
// permissions) rather than from a transient outage.
func IsConfigFault(err error) bool {
	if errors.Is(err, ErrMissingCredentials) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		_, ok := accessErrorCodes[apiErr.ErrorCode()]
		return ok
	}
	return false
}

// NewBlobStore picks the archive backend configured by archive.driver.
func NewBlobStore(conf *structures.Config) (interfaces.BlobStore, error) {
	switch conf.Archive.Driver {
	case "s3":
		return NewS3BlobStore(context.Background(), conf)
	case "local":
		return NewLocalBlobStore(conf.Archive.Dir), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownArchiveDriver, conf.Archive.Driver)
}
