package nats

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/archpal/coaching-platform/internal/objectstore"
)

// memoryKV keeps entries in memory and checks revisions the way a
// JetStream bucket with history 1 does.
type memoryKV struct {
	jetstream.KeyValue

	mu       sync.Mutex
	entries  map[string]kvEntry
	revision uint64
	getErr   error
}

type kvEntry struct {
	jetstream.KeyValueEntry
	key      string
	value    []byte
	revision uint64
}

func (e kvEntry) Key() string      { return e.key }
func (e kvEntry) Value() []byte    { return e.value }
func (e kvEntry) Revision() uint64 { return e.revision }

func newMemoryKV() *memoryKV {
	return &memoryKV{entries: make(map[string]kvEntry)}
}

func (kv *memoryKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.getErr != nil {
		return nil, kv.getErr
	}
	e, ok := kv.entries[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return e, nil
}

func (kv *memoryKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.store(key, value), nil
}

func (kv *memoryKV) Create(_ context.Context, key string, value []byte) (uint64, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.entries[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	return kv.store(key, value), nil
}

func (kv *memoryKV) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if e, ok := kv.entries[key]; !ok || e.revision != revision {
		return 0, &jetstream.APIError{Code: 400, ErrorCode: jetstream.JSErrCodeStreamWrongLastSequence, Description: "wrong last sequence"}
	}
	return kv.store(key, value), nil
}

func (kv *memoryKV) store(key string, value []byte) uint64 {
	kv.revision++
	kv.entries[key] = kvEntry{key: key, value: append([]byte(nil), value...), revision: kv.revision}
	return kv.revision
}

func TestKVStore_GetMissing(t *testing.T) {
	s := &KVStore{kv: newMemoryKV()}

	_, version, err := s.GetVersion(context.Background(), "users/u1/info.json")
	if !errors.Is(err, objectstore.ErrNotFound) || version != 0 {
		t.Errorf("GetVersion() = %d, %v; want 0, ErrNotFound", version, err)
	}
}

func TestKVStore_GetUnavailable(t *testing.T) {
	kv := newMemoryKV()
	kv.getErr = errTimeout
	s := &KVStore{kv: kv}

	_, err := s.Get(context.Background(), "users/u1/info.json")
	if !errors.Is(err, objectstore.ErrUnavailable) {
		t.Errorf("Get() error = %v, want ErrUnavailable", err)
	}
}

var errTimeout = errors.New("nats: timeout")

func TestKVStore_CreateThenUpdate(t *testing.T) {
	s := &KVStore{kv: newMemoryKV()}
	ctx := context.Background()
	key := "users/u1/conversations/index.json"

	if err := s.PutIfVersion(ctx, key, []byte(`[]`), 0); err != nil {
		t.Fatalf("PutIfVersion(0) error = %v", err)
	}
	if err := s.PutIfVersion(ctx, key, []byte(`[1]`), 0); !errors.Is(err, objectstore.ErrConflict) {
		t.Errorf("second create error = %v, want ErrConflict", err)
	}

	data, version, err := s.GetVersion(ctx, key)
	if err != nil || string(data) != `[]` || version == 0 {
		t.Fatalf("GetVersion() = %q, %d, %v", data, version, err)
	}

	if err := s.PutIfVersion(ctx, key, []byte(`[2]`), version); err != nil {
		t.Fatalf("PutIfVersion(%d) error = %v", version, err)
	}
	if err := s.PutIfVersion(ctx, key, []byte(`[3]`), version); !errors.Is(err, objectstore.ErrConflict) {
		t.Errorf("stale update error = %v, want ErrConflict", err)
	}

	data, next, _ := s.GetVersion(ctx, key)
	if string(data) != `[2]` || next <= version {
		t.Errorf("after update = %q at %d, want [2] after %d", data, next, version)
	}
}

func TestKVStore_PutOverwrites(t *testing.T) {
	s := &KVStore{kv: newMemoryKV()}
	ctx := context.Background()

	for _, v := range []string{"a", "b"} {
		if err := s.Put(ctx, "k", []byte(v)); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	if data, _ := s.Get(ctx, "k"); string(data) != "b" {
		t.Errorf("Get() = %q, want b", data)
	}
}
