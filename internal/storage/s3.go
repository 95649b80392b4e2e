package storage

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/supriyameruva/filegate/internal/apperr"
	"github.com/supriyameruva/filegate/internal/credential"
)

// S3Backend implements the object-store variant of the gateway against any
// S3-compatible endpoint (MinIO, AWS S3). The S3 put API has no portable
// conditional write, so FailIfExists is a best-effort stat-then-put here;
// see the package comment for the concurrency caveat.
type S3Backend struct {
	client   *minio.Client
	provider credential.Provider
}

// NewS3Backend creates a MinIO client, ensures the default bucket exists,
// and returns a ready-to-use backend. The credential provider gates each
// operation (expiry checks); the S3 keys themselves are static.
func NewS3Backend(endpoint, accessKey, secretKey, bucket string, useSSL bool, provider credential.Provider) (*S3Backend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		log.Info().Str("bucket", bucket).Msg("created bucket")
	}

	return &S3Backend{client: client, provider: provider}, nil
}

func (s *S3Backend) Upload(ctx context.Context, target Target, obj Object, conflictPolicy ConflictPolicy) error {
	if _, err := s.provider.Acquire(ctx); err != nil {
		return err
	}

	if conflictPolicy == FailIfExists {
		exists, err := s.exists(ctx, target.Container, obj.Name)
		if err != nil {
			return err
		}
		if exists {
			return apperr.New(apperr.KindAlreadyExists,
				fmt.Sprintf("file %s already exists", obj.Name))
		}
	}

	_, err := s.client.PutObject(ctx, target.Container, obj.Name, obj.Content, obj.Size,
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return wrapBackendErr(ctx, "failed to upload object", err)
	}
	return nil
}

func (s *S3Backend) List(ctx context.Context, target Target) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if _, err := s.provider.Acquire(ctx); err != nil {
			yield("", err)
			return
		}

		// Cancel the listing goroutine if the consumer stops early.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		for info := range s.client.ListObjects(ctx, target.Container, minio.ListObjectsOptions{}) {
			if info.Err != nil {
				yield("", wrapBackendErr(ctx, "failed to list objects", info.Err))
				return
			}
			if !yield(info.Key, nil) {
				return
			}
		}
	}
}

func (s *S3Backend) Download(ctx context.Context, target Target, name string) (io.ReadCloser, int64, error) {
	if _, err := s.provider.Acquire(ctx); err != nil {
		return nil, 0, err
	}

	obj, err := s.client.GetObject(ctx, target.Container, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, wrapBackendErr(ctx, "failed to download object", err)
	}

	// GetObject is lazy; Stat forces the first request and surfaces NoSuchKey.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, 0, apperr.New(apperr.KindNotFound, fmt.Sprintf("file %s not found", name))
		}
		return nil, 0, wrapBackendErr(ctx, "failed to download object", err)
	}

	return obj, info.Size, nil
}

func (s *S3Backend) exists(ctx context.Context, bucket, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, wrapBackendErr(ctx, "failed to check object existence", err)
}
