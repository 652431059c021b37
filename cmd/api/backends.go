package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/archpal/coaching-platform/internal/config"
	"github.com/archpal/coaching-platform/internal/lock"
	natsclient "github.com/archpal/coaching-platform/internal/nats"
	"github.com/archpal/coaching-platform/internal/objectstore"
)

// newObjectStore opens the configured backend. The returned func releases
// its resources.
func newObjectStore(ctx context.Context, cfg *config.Config, nc *natsclient.Client) (objectstore.Store, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.BackendS3:
		s, err := objectstore.NewS3Store(objectstore.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
			PathStyle: cfg.S3Endpoint != "",
		})
		return s, noop, err

	case config.BackendGCS:
		s, err := objectstore.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil

	case config.BackendNATS:
		s, err := natsclient.NewKVStore(ctx, nc, cfg.NATSKVBucket)
		return s, noop, err

	case config.BackendMemory:
		return objectstore.NewMemoryStore(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// newLocker creates the configured write lock.
func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	noop := func() {}

	switch cfg.WriteLock {
	case config.LockNone:
		return lock.Noop{}, noop, nil

	case config.LockLocal:
		return lock.NewLocalLocker(), noop, nil

	case config.LockRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		locker := lock.NewRedisLocker(client, cfg.LockTTL, cfg.LockWait)
		if err := locker.Ping(ctx); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("redis unreachable: %w", err)
		}
		return locker, func() { client.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown write lock %q", cfg.WriteLock)
	}
}
