package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestModelCache_PathFor(t *testing.T) {
	cache := NewModelCache("/cache")

	a := cache.PathFor("https://example.com/models/esrgan.onnx")
	b := cache.PathFor("https://mirror.example.com/models/esrgan.onnx")

	if !strings.HasSuffix(a, "-esrgan.onnx") {
		t.Errorf("PathFor() = %q, want base name suffix", a)
	}
	if a == b {
		t.Error("different URLs mapped to the same path")
	}
	if a != cache.PathFor("https://example.com/models/esrgan.onnx") {
		t.Error("PathFor() is not deterministic")
	}
}

func TestModelCache_FetchDownloadsOnce(t *testing.T) {
	content := []byte("onnx weights")
	var hits atomic.Int32
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write(content)
	}))
	defer server.Close()

	cache := NewModelCache(t.TempDir(), WithCacheLogger(zaptest.NewLogger(t)))
	url := server.URL + "/x4.onnx"

	var wg sync.WaitGroup
	paths := make([]string, 4)
	errs := make([]error, 4)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = cache.Fetch(context.Background(), url, sha256Hex(content))
		}(i)
	}

	// Give all callers time to join the in-flight download.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range paths {
		if errs[i] != nil {
			t.Fatalf("Fetch() #%d error: %v", i, errs[i])
		}
		if paths[i] != paths[0] {
			t.Errorf("Fetch() #%d path = %q, want %q", i, paths[i], paths[0])
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}

	// A later fetch is served from disk.
	if _, err := cache.Fetch(context.Background(), url, sha256Hex(content)); err != nil {
		t.Fatalf("cached Fetch() error: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits after cached fetch = %d, want 1", n)
	}
}

func TestModelCache_ReplacesCorruptFile(t *testing.T) {
	content := []byte("good weights")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	cache := NewModelCache(t.TempDir())
	url := server.URL + "/m.onnx"
	if err := os.MkdirAll(cache.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cache.PathFor(url), []byte("corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := cache.Fetch(context.Background(), url, sha256Hex(content))
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != string(content) {
		t.Errorf("cached content = %q, want %q", got, content)
	}
}

func TestModelCache_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer server.Close()

	cache := NewModelCache(t.TempDir(), WithMaxRetries(3), WithBaseRetryDelay(time.Millisecond))
	if _, err := cache.Fetch(context.Background(), server.URL+"/m.onnx", ""); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("server hits = %d, want 3", n)
	}
}

func TestModelCache_DoesNotRetryNotFound(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	cache := NewModelCache(t.TempDir(), WithMaxRetries(3), WithBaseRetryDelay(time.Millisecond))
	_, err := cache.Fetch(context.Background(), server.URL+"/missing.onnx", "")

	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("Fetch() error = %v, want ErrDownloadFailed", err)
	}
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) || dlErr.Attempts != 1 {
		t.Errorf("DownloadError = %+v, want 1 attempt", dlErr)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
}

func TestModelCache_FetchRespectsCallerContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("slow"))
	}))
	defer server.Close()

	cache := NewModelCache(t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	url := server.URL + "/slow.onnx"
	if _, err := cache.Fetch(ctx, url, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch() error = %v, want context.DeadlineExceeded", err)
	}

	// The detached download still completes for later callers.
	close(release)
	if _, err := cache.Fetch(context.Background(), url, ""); err != nil {
		t.Errorf("second Fetch() error: %v", err)
	}
}

func TestModelCache_List(t *testing.T) {
	cache := NewModelCache(t.TempDir() + "/absent")
	models, err := cache.List()
	if err != nil || len(models) != 0 {
		t.Fatalf("List() on missing dir = %v, %v; want empty, nil", models, err)
	}

	dir := t.TempDir()
	cache = NewModelCache(dir)
	for name, body := range map[string]string{"b.onnx": "bb", "a.onnx": "a", "c.onnx.part": "partial"} {
		if err := os.WriteFile(dir+"/"+name, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	models, err = cache.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(models) != 2 || models[0].Name != "a.onnx" || models[1].Size != 2 {
		t.Errorf("List() = %+v", models)
	}
}
