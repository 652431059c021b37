// Package objectstore provides key to blob storage backends for conversation data.
package objectstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key does not exist. It is an expected
	// state (first login, no conversations yet), not a fault.
	ErrNotFound = errors.New("object not found")

	// ErrUnavailable wraps every other backend fault.
	ErrUnavailable = errors.New("object store unavailable")

	// ErrConflict is returned by PutIfVersion when the stored version no
	// longer matches.
	ErrConflict = errors.New("object version conflict")
)

// Version identifies a stored revision of a key. The zero Version means
// the key does not exist.
type Version uint64

// Store is durable key to bytes storage. Put overwrites unconditionally.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Versioned is implemented by backends that support compare-and-swap writes.
type Versioned interface {
	Store

	// GetVersion returns the data and its version. A missing key returns
	// ErrNotFound.
	GetVersion(ctx context.Context, key string) ([]byte, Version, error)

	// PutIfVersion writes data only if the stored version equals expected.
	// An expected version of zero means the key must not exist yet.
	PutIfVersion(ctx context.Context, key string, data []byte, expected Version) error
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%s %s: %w: %v", op, key, ErrUnavailable, err)
}
