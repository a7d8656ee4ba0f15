package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestDownload_Basic(t *testing.T) {
	content := []byte("Hello, World! This is test content for download.")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.Write(content)
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "nested", "model.onnx")

	var lastDownloaded int64
	result, err := Download(context.Background(), DownloadOptions{
		URL:            server.URL,
		DestPath:       destPath,
		ExpectedSHA256: sha256Hex(content),
		OnProgress: func(downloaded, total int64) {
			lastDownloaded = downloaded
		},
	})
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}

	if result.BytesDownloaded != int64(len(content)) {
		t.Errorf("BytesDownloaded = %d, want %d", result.BytesDownloaded, len(content))
	}
	if !result.ChecksumValid {
		t.Error("ChecksumValid = false, want true")
	}
	if lastDownloaded != int64(len(content)) {
		t.Errorf("final progress = %d, want %d", lastDownloaded, len(content))
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content = %q, want %q", got, content)
	}
	if _, err := os.Stat(destPath + ".part"); !errors.Is(err, os.ErrNotExist) {
		t.Error(".part file left behind")
	}
}

func TestDownload_ChecksumMismatchLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered"))
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "model.onnx")
	_, err := Download(context.Background(), DownloadOptions{
		URL:            server.URL,
		DestPath:       destPath,
		ExpectedSHA256: sha256Hex([]byte("original")),
	})
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Download() error = %v, want ErrChecksumMismatch", err)
	}
	if _, err := os.Stat(destPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("destination exists after checksum mismatch")
	}
}

func TestDownload_HTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := Download(context.Background(), DownloadOptions{
		URL:      server.URL,
		DestPath: filepath.Join(t.TempDir(), "model.onnx"),
	})

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Download() error = %v, want *HTTPStatusError", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
	if statusErr.Retryable() {
		t.Error("404 should not be retryable")
	}
}

func TestDownload_RequiresURLAndDest(t *testing.T) {
	if _, err := Download(context.Background(), DownloadOptions{DestPath: "x"}); err == nil {
		t.Error("missing URL: expected error")
	}
	if _, err := Download(context.Background(), DownloadOptions{URL: "http://example.com"}); err == nil {
		t.Error("missing DestPath: expected error")
	}
}
