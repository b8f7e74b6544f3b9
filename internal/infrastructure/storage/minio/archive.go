// Package minio archives the raw uploaded documents in S3-compatible
// object storage.
package minio

import (
	"bytes"
	"context"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/pkg/errors"
)

// objectStore is the slice of the MinIO API the archive needs; narrowed for
// testing.
type objectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader *bytes.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// minioStore adapts *minio.Client to objectStore.
type minioStore struct{ c *minio.Client }

func (s minioStore) PutObject(ctx context.Context, bucket, object string, reader *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return s.c.PutObject(ctx, bucket, object, reader, size, opts)
}

func (s minioStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return s.c.BucketExists(ctx, bucket)
}

func (s minioStore) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return s.c.MakeBucket(ctx, bucket, opts)
}

// Archive stores raw document bytes and hands back the object key recorded
// on the report row.
type Archive struct {
	store  objectStore
	bucket string
	logger logging.Logger
}

// NewArchive connects to the endpoint and ensures the bucket exists.
func NewArchive(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (*Archive, error) {
	if cfg.Endpoint == "" {
		return nil, errors.InvalidParam("minio: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.InvalidParam("minio: bucket is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "minio: create client")
	}

	a := &Archive{store: minioStore{c: client}, bucket: cfg.Bucket, logger: log.Named("minio")}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.ensureBucket(ensureCtx); err != nil {
		return nil, err
	}

	log.Info("connected to object storage",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
	)
	return a, nil
}

// Store uploads data under key and returns the object key.
func (a *Archive) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := a.store.PutObject(ctx, a.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "minio: put object")
	}

	a.logger.Debug("document archived",
		logging.String("key", key),
		logging.Int("bytes", len(data)),
	)
	return key, nil
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	exists, err := a.store.BucketExists(ctx, a.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio: check bucket")
	}
	if exists {
		return nil
	}
	if err := a.store.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "minio: create bucket")
	}
	return nil
}
