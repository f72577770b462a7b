package s3

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/dircount/data"
)

// S3Config contains the connection settings for an S3 compatible endpoint.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// S3Store keeps object content in a single bucket. Object keys are used
// without their leading slash.
type S3Store struct {
	mu sync.RWMutex

	client     *minio.Client
	bucketName string
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &S3Store{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Returns the identifier name defined for this store
func (*S3Store) Name() string {
	return "s3"
}

// Open verifies that the bucket exists.
func (ss *S3Store) Open(ctx context.Context) error {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	exists, err := ss.client.BucketExists(ctx, ss.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("s3: bucket '%s': %w", ss.bucketName, data.ErrNotExist)
	}
	return nil
}

func (ss *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	_, err := ss.client.PutObject(ctx, ss.bucketName, objectName(key), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (ss *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	name := objectName(key)
	if _, err := ss.client.StatObject(ctx, ss.bucketName, name, minio.StatObjectOptions{}); err != nil {
		return nil, convertError(err)
	}

	object, err := ss.client.GetObject(ctx, ss.bucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, convertError(err)
	}
	return object, nil
}

func (ss *S3Store) Delete(ctx context.Context, key string) error {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	name := objectName(key)
	// RemoveObject succeeds for missing keys
	if _, err := ss.client.StatObject(ctx, ss.bucketName, name, minio.StatObjectOptions{}); err != nil {
		return convertError(err)
	}

	return ss.client.RemoveObject(ctx, ss.bucketName, name, minio.RemoveObjectOptions{})
}

func objectName(key string) string {
	return strings.TrimPrefix(key, "/")
}

func convertError(err error) error {
	errResponse := minio.ToErrorResponse(err)
	if errResponse.Code == "NoSuchKey" {
		return data.ErrNotExist
	}
	return err
}
