package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
)

// GCSStore implements ObjectStore on a Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore creates a store for the given bucket. Credentials resolve in
// order: GOOGLE_CREDENTIALS (inline JSON), GOOGLE_APPLICATION_CREDENTIALS
// (file path), then application default credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	const op = "storage.NewGCSStore"

	if bucket == "" {
		return nil, apperr.New(apperr.Internal, op, "bucket name is required")
	}

	var client *gcs.Client
	var err error
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = gcs.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = gcs.NewClient(ctx, option.WithCredentialsFile(credFile))
	} else {
		client, err = gcs.NewClient(ctx)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to create storage client", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Fetch downloads an object, mapping a missing object to a NotFound error and
// a permission refusal to Forbidden.
func (s *GCSStore) Fetch(ctx context.Context, name string) ([]byte, error) {
	const op = "storage.Fetch"

	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, classifyStorageError(op, name, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, op,
			fmt.Sprintf("failed to read object %q", name), err)
	}
	return data, nil
}

// Upload stores data under name, overwriting any existing object.
func (s *GCSStore) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	const op = "storage.Upload"

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return classifyStorageError(op, name, err)
	}
	if err := w.Close(); err != nil {
		return classifyStorageError(op, name, err)
	}
	return nil
}

// URL returns the public object URL.
func (s *GCSStore) URL(name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, name)
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func classifyStorageError(op, name string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
		return apperr.Wrap(apperr.NotFound, op, fmt.Sprintf("object %q not found", name), err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 403:
			return apperr.Wrap(apperr.Forbidden, op,
				fmt.Sprintf("access to object %q denied", name), err)
		case gerr.Code == 404:
			return apperr.Wrap(apperr.NotFound, op, fmt.Sprintf("object %q not found", name), err)
		case gerr.Code == 429 || gerr.Code >= 500:
			return apperr.Wrap(apperr.Unavailable, op,
				fmt.Sprintf("storage backend unavailable for object %q", name), err)
		}
	}
	return apperr.Wrap(apperr.Internal, op, fmt.Sprintf("storage operation on %q failed", name), err)
}
