package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/archpal/coaching-platform/internal/objectstore"
	"github.com/archpal/coaching-platform/pkg/metrics"
)

// errNoChange is returned by a mutate function to skip the write.
var errNoChange = errors.New("no change")

const (
	retryBaseDelay = 20 * time.Millisecond
	retryMaxDelay  = 500 * time.Millisecond
)

// load decodes the document at key into v. It reports false when the key
// does not exist.
func (s *Store) load(ctx context.Context, op, key string, v any) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "storage."+op, trace.WithAttributes(attribute.String("store.key", key)))
	defer span.End()

	data, err := s.objects.Get(ctx, key)
	if errors.Is(err, objectstore.ErrNotFound) {
		metrics.RecordStoreOperation(op, "not_found")
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordStoreOperation(op, "error")
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		metrics.RecordStoreOperation(op, "error")
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	metrics.RecordStoreOperation(op, "ok")
	return true, nil
}

// update runs one read-modify-write cycle on key. mutate receives nil when
// the key does not exist and returns the bytes to write, or errNoChange.
func (s *Store) update(ctx context.Context, op, key string, mutate func(data []byte) ([]byte, error)) error {
	ctx, span := s.tracer.Start(ctx, "storage."+op, trace.WithAttributes(
		attribute.String("store.key", key),
		attribute.Bool("store.versioned", s.versioned != nil),
	))
	defer span.End()

	err := s.lockAndUpdate(ctx, key, mutate)
	switch {
	case errors.Is(err, errNoChange):
		metrics.RecordStoreOperation(op, "noop")
		return err
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordStoreOperation(op, "error")
		return err
	}

	metrics.RecordStoreOperation(op, "ok")
	return nil
}

func (s *Store) lockAndUpdate(ctx context.Context, key string, mutate func([]byte) ([]byte, error)) error {
	if s.locker != nil {
		start := time.Now()
		unlock, err := s.locker.Lock(ctx, key)
		metrics.LockWaitDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("lock %s: %w: %w", key, objectstore.ErrUnavailable, err)
		}
		defer unlock()
	}

	if s.versioned == nil {
		return s.overwrite(ctx, key, mutate)
	}
	return s.compareAndSwap(ctx, key, mutate)
}

// overwrite is a plain get, mutate, put. Concurrent writers without a
// locker can lose updates.
func (s *Store) overwrite(ctx context.Context, key string, mutate func([]byte) ([]byte, error)) error {
	data, err := s.objects.Get(ctx, key)
	if err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		return err
	}
	if errors.Is(err, objectstore.ErrNotFound) {
		data = nil
	}

	out, err := mutate(data)
	if err != nil {
		return err
	}
	return s.objects.Put(ctx, key, out)
}

// compareAndSwap retries conflicting writes with jittered exponential
// backoff, at most maxRetries times after the first attempt.
func (s *Store) compareAndSwap(ctx context.Context, key string, mutate func([]byte) ([]byte, error)) error {
	attempts := 0
	operation := func() error {
		attempts++
		data, version, err := s.versioned.GetVersion(ctx, key)
		if errors.Is(err, objectstore.ErrNotFound) {
			data, version = nil, 0
		} else if err != nil {
			return backoff.Permanent(err)
		}

		out, err := mutate(data)
		if err != nil {
			return backoff.Permanent(err)
		}

		err = s.versioned.PutIfVersion(ctx, key, out, version)
		if err != nil && !errors.Is(err, objectstore.ErrConflict) {
			return backoff.Permanent(err)
		}
		if err != nil {
			metrics.StoreConflictsTotal.Inc()
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		s.logger.Debug("Retrying conflicting update",
			zap.String("key", key),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(retryPolicy(), uint64(s.maxRetries)), ctx)
	err := backoff.RetryNotify(operation, policy, notify)
	if errors.Is(err, objectstore.ErrConflict) {
		return fmt.Errorf("update %s gave up after %d attempts: %w", key, attempts, err)
	}
	return err
}

func retryPolicy() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(retryBaseDelay),
		backoff.WithMaxInterval(retryMaxDelay),
		backoff.WithRandomizationFactor(0.5),
		backoff.WithMultiplier(2),
		backoff.WithMaxElapsedTime(0),
	)
}
