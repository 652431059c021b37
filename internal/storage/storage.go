// Package storage keeps user profiles, conversation indexes and conversation
// documents as JSON documents in an object store.
package storage

import (
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/archpal/coaching-platform/internal/lock"
	"github.com/archpal/coaching-platform/internal/objectstore"
	"github.com/archpal/coaching-platform/pkg/logger"
)

// DefaultMaxRetries is used when Options.MaxRetries is zero.
const DefaultMaxRetries = 5

// Options configures a Store.
type Options struct {
	// Locker serializes writers of the same key. Nil disables locking.
	Locker lock.Locker

	// MaxRetries bounds conditional put retries on versioned backends.
	MaxRetries int

	Logger *logger.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Store is the profile store, conversation index and conversation
// document store over one object store.
type Store struct {
	objects    objectstore.Store
	versioned  objectstore.Versioned
	locker     lock.Locker
	maxRetries int
	logger     *logger.Logger
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() string
}

// New creates a Store. When objects implements objectstore.Versioned every
// update is a compare-and-swap with retries.
func New(objects objectstore.Store, opts Options) *Store {
	s := &Store{
		objects:    objects,
		locker:     opts.Locker,
		maxRetries: opts.MaxRetries,
		logger:     opts.Logger,
		tracer:     otel.Tracer("github.com/archpal/coaching-platform/internal/storage"),
		now:        opts.Now,
		newID:      uuid.NewString,
	}
	if v, ok := objects.(objectstore.Versioned); ok {
		s.versioned = v
	}
	if s.maxRetries <= 0 {
		s.maxRetries = DefaultMaxRetries
	}
	if s.logger == nil {
		s.logger = logger.Global()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}
