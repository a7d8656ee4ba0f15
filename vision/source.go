package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
)

// ErrSourceNotFound is returned when a local path or URL does not exist.
var ErrSourceNotFound = errors.New("vision: image source not found")

// ErrSourceTooLarge is returned when a URL body exceeds the read limit.
var ErrSourceTooLarge = errors.New("vision: image source too large")

// DefaultMaxSourceBytes bounds how much ReadSource will read from a URL.
const DefaultMaxSourceBytes = 256 << 20

var maxSourceBytes int64 = DefaultMaxSourceBytes

// IsURL reports whether src should be fetched over HTTP instead of read from disk.
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// ReadSource reads image bytes from a local path or an http(s) URL.
//
// A missing local file or an HTTP 404 is reported as ErrSourceNotFound; any
// other failure is returned wrapped so callers can still inspect the cause.
// A nil client uses http.DefaultClient.
func ReadSource(ctx context.Context, client *http.Client, src string) ([]byte, error) {
	if IsURL(src) {
		return fetchSource(ctx, client, src)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	return data, nil
}

func fetchSource(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	if int64(len(data)) > maxSourceBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrSourceTooLarge, url, maxSourceBytes)
	}
	return data, nil
}
