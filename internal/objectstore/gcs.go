package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSStore stores objects in a Google Cloud Storage bucket. Object
// generations are used as versions, so conditional writes are supported.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewGCSStore creates a new GCS backend.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("GCS bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: client.Bucket(bucket),
	}, nil
}

// Close closes the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Get downloads the object at key.
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := s.GetVersion(ctx, key)
	return data, err
}

// GetVersion downloads the object at key with its generation.
func (s *GCSStore) GetVersion(ctx context.Context, key string) ([]byte, Version, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, unavailable("get", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, unavailable("get", key, err)
	}
	return data, Version(r.Attrs.Generation), nil
}

// Put overwrites the object at key.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	return s.write(ctx, s.bucket.Object(key), key, data)
}

// PutIfVersion writes the object only if its generation equals expected.
func (s *GCSStore) PutIfVersion(ctx context.Context, key string, data []byte, expected Version) error {
	cond := storage.Conditions{GenerationMatch: int64(expected)}
	if expected == 0 {
		cond = storage.Conditions{DoesNotExist: true}
	}
	return s.write(ctx, s.bucket.Object(key).If(cond), key, data)
}

// Ping checks that the bucket is reachable.
func (s *GCSStore) Ping(ctx context.Context) error {
	if _, err := s.bucket.Attrs(ctx); err != nil {
		return unavailable("attrs", "bucket", err)
	}
	return nil
}

func (s *GCSStore) write(ctx context.Context, obj *storage.ObjectHandle, key string, data []byte) error {
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return unavailable("put", key, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return ErrConflict
		}
		return unavailable("put", key, err)
	}
	return nil
}
