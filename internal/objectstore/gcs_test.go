package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"
)

// fakeGCS serves XML reads, JSON multipart uploads and bucket metadata
// from a map of objects keyed by name.
type fakeGCS struct {
	mu          sync.Mutex
	bucket      string
	objects     map[string][]byte
	generations map[string]int64
	next        int64
	uploads     []gcsUpload
}

// gcsUpload records the query of an upload request.
type gcsUpload struct {
	name              string
	ifGenerationMatch string
}

func newFakeGCS(bucket string) *fakeGCS {
	return &fakeGCS{
		bucket:      bucket,
		objects:     make(map[string][]byte),
		generations: make(map[string]int64),
		next:        1000,
	}
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/upload/storage/v1/b/"+f.bucket+"/o":
		f.upload(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/storage/v1/b/"+f.bucket:
		writeGCSJSON(w, http.StatusOK, map[string]string{"kind": "storage#bucket", "name": f.bucket})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/"+f.bucket+"/"):
		name := strings.TrimPrefix(r.URL.Path, "/"+f.bucket+"/")
		data, ok := f.objects[name]
		if !ok {
			http.Error(w, "NoSuchKey", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("X-Goog-Generation", strconv.FormatInt(f.generations[name], 10))
		w.Header().Set("X-Goog-Metageneration", "1")
		w.Write(data)
	default:
		writeGCSError(w, http.StatusNotFound, "Not Found")
	}
}

func (f *fakeGCS) upload(w http.ResponseWriter, r *http.Request) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		writeGCSError(w, http.StatusBadRequest, err.Error())
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	var meta struct {
		Name string `json:"name"`
	}
	part, err := mr.NextPart()
	if err == nil {
		err = json.NewDecoder(part).Decode(&meta)
	}
	var data []byte
	if err == nil {
		part, err = mr.NextPart()
	}
	if err == nil {
		data, err = io.ReadAll(part)
	}
	if err != nil {
		writeGCSError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		name = meta.Name
	}
	f.uploads = append(f.uploads, gcsUpload{name: name, ifGenerationMatch: q.Get("ifGenerationMatch")})

	if match := q.Get("ifGenerationMatch"); match != "" {
		want, _ := strconv.ParseInt(match, 10, 64)
		if f.generations[name] != want {
			writeGCSError(w, http.StatusPreconditionFailed, "conditionNotMet")
			return
		}
	}

	f.next++
	f.objects[name] = data
	f.generations[name] = f.next
	writeGCSJSON(w, http.StatusOK, map[string]string{
		"kind":           "storage#object",
		"bucket":         f.bucket,
		"name":           name,
		"generation":     strconv.FormatInt(f.next, 10),
		"metageneration": "1",
		"size":           strconv.Itoa(len(data)),
		"contentType":    "application/json",
	})
}

func (f *fakeGCS) firstUpload() gcsUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[0]
}

func (f *fakeGCS) generation(name string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generations[name]
}

func writeGCSJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeGCSError(w http.ResponseWriter, status int, message string) {
	writeGCSJSON(w, status, map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func newTestGCS(t *testing.T) (*GCSStore, *fakeGCS) {
	t.Helper()
	fake := newFakeGCS("archpal-test")
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewGCSStore(context.Background(), fake.bucket,
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("NewGCSStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, fake
}

func TestNewGCSStore_RequiresBucket(t *testing.T) {
	if _, err := NewGCSStore(context.Background(), ""); err == nil {
		t.Error("NewGCSStore() with empty bucket: error = nil")
	}
}

func TestGCSStore_GetMissing(t *testing.T) {
	s, _ := newTestGCS(t)

	_, version, err := s.GetVersion(context.Background(), "users/u1/info.json")
	if !errors.Is(err, ErrNotFound) || version != 0 {
		t.Errorf("GetVersion() = %d, %v; want 0, ErrNotFound", version, err)
	}
}

func TestGCSStore_PutAndGet(t *testing.T) {
	s, fake := newTestGCS(t)
	ctx := context.Background()
	key := "users/u1/info.json"

	if err := s.Put(ctx, key, []byte(`{"user_id":"u1"}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, version, err := s.GetVersion(ctx, key)
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if string(data) != `{"user_id":"u1"}` {
		t.Errorf("data = %s", data)
	}
	if gen := fake.generation(key); int64(version) != gen {
		t.Errorf("version = %d, want generation %d", version, gen)
	}
	if got := fake.firstUpload().ifGenerationMatch; got != "" {
		t.Errorf("unconditional put sent ifGenerationMatch=%q", got)
	}
}

func TestGCSStore_PutIfVersion(t *testing.T) {
	s, fake := newTestGCS(t)
	ctx := context.Background()
	key := "users/u1/conversations/index.json"

	if err := s.PutIfVersion(ctx, key, []byte(`[]`), 0); err != nil {
		t.Fatalf("create error = %v", err)
	}
	if got := fake.firstUpload().ifGenerationMatch; got != "0" {
		t.Errorf("create sent ifGenerationMatch=%q, want 0", got)
	}
	if err := s.PutIfVersion(ctx, key, []byte(`[1]`), 0); !errors.Is(err, ErrConflict) {
		t.Errorf("second create error = %v, want ErrConflict", err)
	}

	_, version, err := s.GetVersion(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutIfVersion(ctx, key, []byte(`[2]`), version); err != nil {
		t.Fatalf("update error = %v", err)
	}
	if err := s.PutIfVersion(ctx, key, []byte(`[3]`), version); !errors.Is(err, ErrConflict) {
		t.Errorf("stale update error = %v, want ErrConflict", err)
	}

	data, _ := s.Get(ctx, key)
	if string(data) != `[2]` {
		t.Errorf("stored = %s, want [2]", data)
	}
}

func TestGCSStore_Ping(t *testing.T) {
	s, _ := newTestGCS(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
