package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeS3 serves path-style bucket requests from a map.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	types   map[string]string
	denied  bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.denied {
		writeS3Error(w, http.StatusForbidden, "AccessDenied")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		w.Write(data)
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+code+`</Message></Error>`)
}

func newTestS3(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{
		bucket:  "archpal-test",
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewS3Store(S3Config{
		Bucket:    fake.bucket,
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		PathStyle: true,
	})
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}
	return store, fake
}

func TestS3Store_PutGet(t *testing.T) {
	store, fake := newTestS3(t)
	ctx := context.Background()

	key := ConversationKey("u1", "c1")
	if err := store.Put(ctx, key, []byte(`{"messages":[]}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"messages":[]}` {
		t.Errorf("Get() = %s", got)
	}
	fake.mu.Lock()
	ct := fake.types[key]
	fake.mu.Unlock()
	if ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}

func TestS3Store_GetMissing(t *testing.T) {
	store, _ := newTestS3(t)

	_, err := store.Get(context.Background(), UserInfoKey("nobody"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestS3Store_Faults(t *testing.T) {
	store, fake := newTestS3(t)
	fake.mu.Lock()
	fake.denied = true
	fake.mu.Unlock()
	ctx := context.Background()

	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Get() error = %v, want ErrUnavailable", err)
	}
	if err := store.Put(ctx, "k", []byte("{}")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Put() error = %v, want ErrUnavailable", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Ping() error = %v, want ErrUnavailable", err)
	}
}

func TestS3Store_Ping(t *testing.T) {
	store, _ := newTestS3(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	if _, err := NewS3Store(S3Config{Region: "us-east-1"}); err == nil {
		t.Error("NewS3Store() without bucket should fail")
	}
}
