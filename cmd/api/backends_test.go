package main

import (
	"context"
	"testing"

	"github.com/archpal/coaching-platform/internal/config"
	"github.com/archpal/coaching-platform/internal/lock"
	"github.com/archpal/coaching-platform/internal/objectstore"
)

func TestNewObjectStore(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := newObjectStore(ctx, &config.Config{StoreBackend: config.BackendMemory}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if _, ok := s.(objectstore.Versioned); !ok {
		t.Error("memory backend should support versioned writes")
	}

	if _, _, err := newObjectStore(ctx, &config.Config{StoreBackend: config.BackendS3}, nil); err == nil {
		t.Error("s3 backend without bucket should fail")
	}
	if _, _, err := newObjectStore(ctx, &config.Config{StoreBackend: "ftp"}, nil); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestNewLocker(t *testing.T) {
	ctx := context.Background()

	l, _, err := newLocker(ctx, &config.Config{WriteLock: config.LockLocal})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.(*lock.LocalLocker); !ok {
		t.Errorf("local lock = %T", l)
	}

	l, _, err = newLocker(ctx, &config.Config{WriteLock: config.LockNone})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.(lock.Noop); !ok {
		t.Errorf("none lock = %T", l)
	}

	if _, _, err := newLocker(ctx, &config.Config{WriteLock: config.LockRedis, RedisURL: "not a url"}); err == nil {
		t.Error("invalid redis url should fail")
	}
}
