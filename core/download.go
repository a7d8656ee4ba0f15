package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// DownloadOptions configures a single download.
type DownloadOptions struct {
	URL      string
	DestPath string
	// ExpectedSHA256 is optional; when set the file is verified before it is
	// moved into place.
	ExpectedSHA256 string
	// HTTPClient defaults to a client without timeout; ctx handles cancellation.
	HTTPClient *http.Client
	// OnProgress is called with bytes downloaded so far and the total (0 if unknown).
	OnProgress func(downloaded, total int64)
}

// DownloadResult contains information about a completed download.
type DownloadResult struct {
	Path            string
	BytesDownloaded int64
	ChecksumValid   bool
}

// progressInterval is how many bytes pass between OnProgress calls.
const progressInterval = 100 * 1024

// Download fetches opts.URL into opts.DestPath. The body is written to a
// ".part" file next to the destination and renamed only after a successful
// copy and checksum verification, so DestPath never holds a partial model.
func Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if opts.DestPath == "" {
		return nil, fmt.Errorf("DestPath is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	if err := os.MkdirAll(filepath.Dir(opts.DestPath), 0o755); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{URL: opts.URL, StatusCode: resp.StatusCode}
	}

	partPath := opts.DestPath + ".part"
	file, err := os.Create(partPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", partPath, err)
	}
	defer os.Remove(partPath)

	reader := &progressReader{reader: resp.Body, total: resp.ContentLength, onProgress: opts.OnProgress}
	written, err := io.Copy(file, reader)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("download interrupted: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", partPath, err)
	}
	if opts.OnProgress != nil {
		opts.OnProgress(written, resp.ContentLength)
	}

	result := &DownloadResult{Path: opts.DestPath, BytesDownloaded: written}
	if opts.ExpectedSHA256 != "" {
		if err := VerifyChecksum(partPath, opts.ExpectedSHA256); err != nil {
			return nil, err
		}
		result.ChecksumValid = true
	}

	if err := os.Rename(partPath, opts.DestPath); err != nil {
		return nil, fmt.Errorf("move download into place: %w", err)
	}
	return result, nil
}

// HTTPStatusError is returned for non-200 download responses.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Retryable reports whether the status is worth retrying (5xx and 429).
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// progressReader wraps an io.Reader to report download progress.
type progressReader struct {
	reader       io.Reader
	total        int64
	downloaded   int64
	lastCallback int64
	onProgress   func(downloaded, total int64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.downloaded += int64(n)
		if r.onProgress != nil && r.downloaded-r.lastCallback >= progressInterval {
			r.onProgress(r.downloaded, r.total)
			r.lastCallback = r.downloaded
		}
	}
	return n, err
}
