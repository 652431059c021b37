// Package lock serializes read-modify-write cycles on a user's documents.
package lock

import (
	"context"
	"errors"
)

// ErrTimeout is returned when a lock could not be acquired in time.
var ErrTimeout = errors.New("lock acquisition timed out")

// Locker acquires an exclusive lock on key. The returned unlock function
// releases it and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Noop is a Locker that never blocks.
type Noop struct{}

// Lock implements Locker.
func (Noop) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
