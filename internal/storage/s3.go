package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"shelf-go/internal/config"
	"shelf-go/internal/shelf"
)

// S3API is the subset of the S3 client used by S3Storage.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Storage stores content in an S3 (or S3-compatible) bucket under
// <prefix><namespace>/<key[:2]>/<key>. Large objects are uploaded in parts.
type S3Storage struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Storage wraps an S3 client. It does not contact the bucket; use
// ValidateSetup for that.
func NewS3Storage(client S3API, bucket, prefix string) *S3Storage {
	return &S3Storage{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}
}

// NewS3Client builds an S3 client from the storage config. Static
// credentials are used when configured, otherwise the default AWS
// credential chain applies.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	}), nil
}

func (s *S3Storage) objectKey(namespace, key string) (string, error) {
	if err := checkAddress(namespace, key); err != nil {
		return "", err
	}
	return s.prefix + namespace + "/" + shard(key) + "/" + key, nil
}

// Write uploads the bytes read from r under key.
func (s *S3Storage) Write(ctx context.Context, namespace, key string, r io.Reader) (int64, error) {
	objectKey, err := s.objectKey(namespace, key)
	if err != nil {
		return 0, err
	}

	body := &countingReader{r: r}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   body,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}
	return body.n, nil
}

// Read opens the object stored under key.
func (s *S3Storage) Read(ctx context.Context, namespace, key string) (io.ReadCloser, error) {
	objectKey, err := s.objectKey(namespace, key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: content %s/%s", shelf.ErrNotFound, namespace, key)
		}
		return nil, fmt.Errorf("failed to get %s: %w", objectKey, err)
	}
	return out.Body, nil
}

// Delete removes the object. S3 treats deleting a missing key as success.
func (s *S3Storage) Delete(ctx context.Context, namespace, key string) error {
	objectKey, err := s.objectKey(namespace, key)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", objectKey, err)
	}
	return nil
}

// Copy duplicates content between namespaces server-side.
func (s *S3Storage) Copy(ctx context.Context, fromNamespace, toNamespace, key string) error {
	srcKey, err := s.objectKey(fromNamespace, key)
	if err != nil {
		return err
	}
	destKey, err := s.objectKey(toNamespace, key)
	if err != nil {
		return err
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(destKey),
		CopySource: aws.String(s.bucket + "/" + srcKey),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: content %s/%s", shelf.ErrNotFound, fromNamespace, key)
		}
		return fmt.Errorf("failed to copy %s: %w", srcKey, err)
	}
	return nil
}

// Exists reports whether the object exists.
func (s *S3Storage) Exists(ctx context.Context, namespace, key string) (bool, error) {
	objectKey, err := s.objectKey(namespace, key)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", objectKey, err)
	}
	return true, nil
}

// ValidateSetup verifies the bucket is reachable.
func (s *S3Storage) ValidateSetup(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("failed to access bucket %q: %w", s.bucket, err)
	}
	return nil
}

// isNotFound recognises both typed and generic missing-object errors;
// HeadObject has no body and so only reports a bare "NotFound" code.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Compile-time check that S3Storage implements shelf.Storage interface
var _ shelf.Storage = (*S3Storage)(nil)
