package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/archpal/coaching-platform/internal/objectstore"
)

// KVStore is an object store backed by a JetStream key/value bucket.
// KV revisions are used as versions.
type KVStore struct {
	kv jetstream.KeyValue
}

var _ objectstore.Versioned = (*KVStore)(nil)

// NewKVStore opens the bucket, creating it when it does not exist.
func NewKVStore(ctx context.Context, client *Client, bucket string) (*KVStore, error) {
	js := client.JetStream()

	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "ArchPal user profiles, conversation indexes and conversations",
			History:     1,
			Storage:     jetstream.FileStorage,
			Replicas:    1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open key/value bucket %s: %w", bucket, err)
	}

	return &KVStore{kv: kv}, nil
}

// Get returns the value stored at key.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := s.GetVersion(ctx, key)
	return data, err
}

// GetVersion returns the value and its revision.
func (s *KVStore) GetVersion(ctx context.Context, key string) ([]byte, objectstore.Version, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, objectstore.ErrNotFound
		}
		return nil, 0, fmt.Errorf("get %s: %w: %v", key, objectstore.ErrUnavailable, err)
	}
	return entry.Value(), objectstore.Version(entry.Revision()), nil
}

// Put overwrites key.
func (s *KVStore) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put %s: %w: %v", key, objectstore.ErrUnavailable, err)
	}
	return nil
}

// PutIfVersion writes key only if its revision equals expected.
func (s *KVStore) PutIfVersion(ctx context.Context, key string, data []byte, expected objectstore.Version) error {
	var err error
	if expected == 0 {
		_, err = s.kv.Create(ctx, key, data)
	} else {
		_, err = s.kv.Update(ctx, key, data, uint64(expected))
	}
	if err == nil {
		return nil
	}
	if isRevisionMismatch(err) {
		return objectstore.ErrConflict
	}
	return fmt.Errorf("put %s: %w: %v", key, objectstore.ErrUnavailable, err)
}

func isRevisionMismatch(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
