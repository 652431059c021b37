package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/archpal/coaching-platform/internal/lock"
	"github.com/archpal/coaching-platform/internal/objectstore"
)

// fakeClock returns a strictly increasing time on every call.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// plainStore hides the Versioned methods of the wrapped store, like S3.
type plainStore struct {
	objectstore.Store
}

// faultyStore fails puts to keys listed in failPut.
type faultyStore struct {
	objectstore.Store

	mu      sync.Mutex
	failPut map[string]bool
	puts    int
}

func (s *faultyStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	fail := s.failPut[key]
	s.puts++
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("put %s: %w: connection reset", key, objectstore.ErrUnavailable)
	}
	return s.Store.Put(ctx, key, data)
}

// conflictStore reports a conflict for the first n conditional puts.
type conflictStore struct {
	*objectstore.MemoryStore

	mu        sync.Mutex
	conflicts int
}

func (s *conflictStore) PutIfVersion(ctx context.Context, key string, data []byte, expected objectstore.Version) error {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return objectstore.ErrConflict
	}
	s.mu.Unlock()
	return s.MemoryStore.PutIfVersion(ctx, key, data, expected)
}

// gateLocker holds back the first Lock call on key made after arm until
// open is called. Other calls go straight to the wrapped locker.
type gateLocker struct {
	lock.Locker
	key string

	mu      sync.Mutex
	armed   bool
	waiting chan struct{}
	gate    chan struct{}
}

func newGateLocker(inner lock.Locker, key string) *gateLocker {
	return &gateLocker{Locker: inner, key: key, waiting: make(chan struct{}), gate: make(chan struct{})}
}

func (l *gateLocker) arm() {
	l.mu.Lock()
	l.armed = true
	l.mu.Unlock()
}

func (l *gateLocker) open() { close(l.gate) }

func (l *gateLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	hold := l.armed && key == l.key
	if hold {
		l.armed = false
	}
	l.mu.Unlock()

	if hold {
		close(l.waiting)
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return l.Locker.Lock(ctx, key)
}

func newTestStore(objects objectstore.Store, opts Options) (*Store, *fakeClock) {
	clock := newFakeClock()
	opts.Now = clock.Now
	s := New(objects, opts)
	n := 0
	var mu sync.Mutex
	s.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("m%03d", n)
	}
	return s, clock
}
