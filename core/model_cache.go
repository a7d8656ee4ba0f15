package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"go_upscaler/logging"
)

// ModelCache stores downloaded model weights on disk, keyed by URL.
// Concurrent Fetch calls for the same URL share one download.
type ModelCache struct {
	dir            string
	httpClient     *http.Client
	maxRetries     int
	baseRetryDelay time.Duration
	logger         *zap.Logger

	group singleflight.Group
}

// CacheOption is a functional option for configuring ModelCache.
type CacheOption func(*ModelCache)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(client *http.Client) CacheOption {
	return func(c *ModelCache) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMaxRetries sets the maximum number of download attempts.
func WithMaxRetries(n int) CacheOption {
	return func(c *ModelCache) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseRetryDelay sets the delay before the second attempt; it doubles
// for every attempt after that.
func WithBaseRetryDelay(d time.Duration) CacheOption {
	return func(c *ModelCache) {
		if d >= 0 {
			c.baseRetryDelay = d
		}
	}
}

// WithCacheLogger sets the logger for download events.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *ModelCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewModelCache creates a cache rooted at dir. Defaults: 3 attempts with
// exponential backoff starting at 2s.
func NewModelCache(dir string, opts ...CacheOption) *ModelCache {
	c := &ModelCache{
		dir:            dir,
		httpClient:     &http.Client{},
		maxRetries:     3,
		baseRetryDelay: 2 * time.Second,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the cache directory.
func (c *ModelCache) Dir() string {
	return c.dir
}

// PathFor returns where the model at rawURL is (or would be) cached.
// The name combines a short hash of the URL with its base name so different
// URLs never collide and files stay recognisable.
func (c *ModelCache) PathFor(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	base := "model"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && b != "" {
			base = b
		}
	}
	return filepath.Join(c.dir, hex.EncodeToString(sum[:6])+"-"+base)
}

// Fetch returns the local path of the model at rawURL, downloading it first
// if it is missing or fails verification against expectedSHA256.
//
// The shared download is detached from ctx so one caller giving up does not
// fail the others; ctx only bounds how long this caller waits.
func (c *ModelCache) Fetch(ctx context.Context, rawURL, expectedSHA256 string) (string, error) {
	ch := c.group.DoChan(rawURL, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), rawURL, expectedSHA256)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			c.logger.Debug("shared model download", zap.String("url", logging.RedactURL(rawURL)))
		}
		return res.Val.(string), nil
	}
}

func (c *ModelCache) fetch(ctx context.Context, rawURL, expectedSHA256 string) (string, error) {
	dest := c.PathFor(rawURL)

	ok, err := c.cached(dest, expectedSHA256)
	if err != nil {
		return "", err
	}
	if ok {
		return dest, nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			delay := c.baseRetryDelay * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		start := time.Now()
		result, err := Download(ctx, DownloadOptions{
			URL:            rawURL,
			DestPath:       dest,
			ExpectedSHA256: expectedSHA256,
			HTTPClient:     c.httpClient,
		})
		if err == nil {
			fields := logging.DownloadFields(rawURL, result.BytesDownloaded, time.Since(start))
			c.logger.Info("model downloaded", append(fields,
				zap.String("path", dest),
				zap.String("size", FormatBytes(result.BytesDownloaded)),
				zap.Bool("verified", result.ChecksumValid))...)
			return dest, nil
		}

		lastErr = err
		c.logger.Warn("model download attempt failed",
			zap.String("url", logging.RedactURL(rawURL)),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if !isRetryable(err) {
			return "", &DownloadError{URL: rawURL, DestPath: dest, Attempts: attempt, Cause: err}
		}
	}

	return "", &DownloadError{URL: rawURL, DestPath: dest, Attempts: c.maxRetries, Cause: lastErr}
}

// cached reports whether dest holds a usable model. A file that fails
// checksum verification is removed so it gets downloaded again.
func (c *ModelCache) cached(dest, expectedSHA256 string) (bool, error) {
	info, err := os.Stat(dest)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat cached model: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("cached model path is a directory: %s", dest)
	}
	if info.Size() == 0 {
		return false, nil
	}
	if expectedSHA256 == "" {
		return true, nil
	}

	if err := VerifyChecksum(dest, expectedSHA256); err != nil {
		if !errors.Is(err, ErrChecksumMismatch) {
			return false, err
		}
		c.logger.Warn("cached model failed verification, re-downloading", zap.String("path", dest))
		if err := os.Remove(dest); err != nil {
			return false, fmt.Errorf("remove corrupt model: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// isRetryable treats network failures and 5xx/429 responses as transient.
// Cancellation, checksum mismatches and other HTTP statuses are final.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrChecksumMismatch) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

// CachedModel describes a file in the cache directory.
type CachedModel struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns the cached model files sorted by name. A missing cache
// directory yields an empty list.
func (c *ModelCache) List() ([]CachedModel, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	var models []CachedModel
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) == ".part" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		models = append(models, CachedModel{
			Name:    e.Name(),
			Path:    filepath.Join(c.dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}
