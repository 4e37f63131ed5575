package phash

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DownloadOpts configures an image download.
type DownloadOpts struct {
	MaxBytes  int64         // max response body size (default: 32MB)
	MinBytes  int           // reject if smaller (default: 0)
	Timeout   time.Duration // per-request timeout (default: 30s)
	UserAgent string        // override config user agent
}

const (
	defaultMaxBytes = 32 << 20 // 32MB
	defaultTimeout  = 30 * time.Second
)

// DownloadResult holds downloaded image data.
type DownloadResult struct {
	Data     []byte
	MIMEType string
}

// Download fetches an image from url. Tries cfg.StealthClient first (if set),
// falls back to cfg.HTTPClient. Failures wrap ErrRead.
func (e *Engine) Download(ctx context.Context, url string, opts DownloadOpts) (*DownloadResult, error) {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = e.cfg.UserAgent
	}

	// Try stealth client first.
	if e.cfg.StealthClient != nil {
		if r, err := fetchImageData(ctx, e.cfg.StealthClient, url, ua, opts); err == nil {
			return r, nil
		}
	}

	// Fallback to regular client.
	return fetchImageData(ctx, e.cfg.HTTPClient, url, ua, opts)
}

func fetchImageData(ctx context.Context, client *http.Client, imageURL, ua string, opts DownloadOpts) (*DownloadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	req.Header.Set("User-Agent", ua)

	resp, err := client.Do(req) //nolint:gosec // G704: URL is caller-supplied
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrRead, imageURL, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	// Strip MIME parameters: "image/jpeg; charset=utf-8" → "image/jpeg"
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: %s: content type %q is not an image", ErrRead, imageURL, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if len(data) < opts.MinBytes {
		return nil, fmt.Errorf("%w: %s: %d bytes, want at least %d", ErrRead, imageURL, len(data), opts.MinBytes)
	}

	return &DownloadResult{Data: data, MIMEType: ct}, nil
}
