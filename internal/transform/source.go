package transform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// errNotFound is returned by sources for a missing object.
var errNotFound = errors.New("object not found")

// Source reads named artifacts.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Location describes where name is read from, for error messages.
	Location(name string) string
}

// LocalSource reads artifacts from a directory.
type LocalSource struct {
	Dir string
}

// Open opens the named file in the directory.
func (s *LocalSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNotFound
		}
		return nil, err
	}
	return f, nil
}

// Location returns the file path of name.
func (s *LocalSource) Location(name string) string {
	return filepath.Join(s.Dir, name)
}

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads artifacts from an S3 bucket.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Source creates an S3 source. prefix is prepended to all artifact names.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Source) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open fetches the named object.
func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, errNotFound
		}
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, errNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

// Location returns the s3:// URL of name.
func (s *S3Source) Location(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

// MinioSource reads artifacts from MinIO or another S3-compatible store.
type MinioSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioSource creates a MinIO source. prefix is prepended to all artifact names.
func NewMinioSource(client *minio.Client, bucket, prefix string) *MinioSource {
	return &MinioSource{client: client, bucket: bucket, prefix: prefix}
}

func (s *MinioSource) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open fetches the named object.
func (s *MinioSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.key(name)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, errNotFound
		}
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Location returns the minio:// URL of name.
func (s *MinioSource) Location(name string) string {
	return "minio://" + s.bucket + "/" + s.key(name)
}

// SourceConfig selects and configures an artifact source.
type SourceConfig struct {
	Kind      string // local (default), s3, minio
	Dir       string
	Bucket    string
	Prefix    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewSource builds the Source described by cfg.
func NewSource(ctx context.Context, cfg SourceConfig) (Source, error) {
	switch cfg.Kind {
	case "", "local":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("local artifact source requires a directory")
		}
		return &LocalSource{Dir: cfg.Dir}, nil
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 artifact source requires a bucket")
		}
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		return NewS3Source(client, cfg.Bucket, cfg.Prefix), nil
	case "minio":
		if cfg.Bucket == "" || cfg.Endpoint == "" {
			return nil, fmt.Errorf("minio artifact source requires an endpoint and a bucket")
		}
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		return NewMinioSource(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown artifact source: %s (supported: local, s3, minio)", cfg.Kind)
	}
}
