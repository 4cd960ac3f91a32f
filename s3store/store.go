// Package s3store provides an S3-compatible blob backend for pagehaven.
//
// Blobs are stored under an optional key prefix in a single bucket. Writes
// are spooled to a temporary file first so the upload has a known length
// and a SHA256 etag that matches the other backends.
package s3store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sagarc03/pagehaven"
)

// API is the subset of the S3 client used by Store.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config describes how to reach the bucket.
type Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Prefix       string `mapstructure:"prefix"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// NewClient builds an S3 client. Static credentials are used when an access
// key is configured; otherwise the default AWS credential chain applies.
// A custom endpoint (MinIO, R2, ...) usually needs UsePathStyle.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Store implements pagehaven.FileStorage on top of S3.
type Store struct {
	api    API
	bucket string
	prefix string
}

// New creates a Store. A non-empty prefix is joined to every key with "/".
func New(api API, bucket, prefix string) *Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *Store) objectKey(key string) string {
	return s.prefix + key
}

// Get streams a blob. Returns pagehaven.ErrNotFound for missing keys.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, pagehaven.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get: %w", err)
	}

	return out.Body, nil
}

// Write uploads content to key, replacing any existing blob.
func (s *Store) Write(ctx context.Context, key string, content io.Reader) (pagehaven.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return pagehaven.SaveResult{}, err
	}

	spool, err := os.CreateTemp("", "pagehaven-s3-*")
	if err != nil {
		return pagehaven.SaveResult{}, fmt.Errorf("s3 write: create spool: %w", err)
	}
	defer func() {
		if closeErr := spool.Close(); closeErr != nil {
			slog.Warn("failed to close spool file", "err", closeErr)
		}
		if rmErr := os.Remove(spool.Name()); rmErr != nil {
			slog.Warn("failed to remove spool file", "err", rmErr)
		}
	}()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(h, spool), content)
	if err != nil {
		return pagehaven.SaveResult{}, fmt.Errorf("s3 write: spool: %w", err)
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return pagehaven.SaveResult{}, fmt.Errorf("s3 write: rewind: %w", err)
	}

	etag := hex.EncodeToString(h.Sum(nil))

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          spool,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(pagehaven.ContentType(key)),
		Metadata:      map[string]string{"sha256": etag},
	})
	if err != nil {
		return pagehaven.SaveResult{}, fmt.Errorf("s3 write: %w", err)
	}

	return pagehaven.SaveResult{BytesWritten: size, Etag: etag}, nil
}

// Delete removes a blob. S3 deletes are idempotent, so a missing key is not
// reported as pagehaven.ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return pagehaven.ErrNotFound
		}
		return fmt.Errorf("s3 delete: %w", err)
	}
	return nil
}

// List returns every blob under the prefix. Path holds the key with the
// prefix removed. ETag is the S3 etag, which for single-part uploads is an
// MD5 digest rather than the SHA256 returned by Write.
func (s *Store) List(ctx context.Context) ([]pagehaven.ObjectEntry, error) {
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var entries []pagehaven.ObjectEntry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list: %w", err)
		}

		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}

			entries = append(entries, pagehaven.ObjectEntry{
				Path:        key,
				Size:        aws.ToInt64(obj.Size),
				ETag:        strings.Trim(aws.ToString(obj.ETag), `"`),
				ContentType: pagehaven.ContentType(key),
			})
		}
	}

	return entries, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}

	return false
}
