// Package phash computes DCT-based perceptual hashes for raster images and
// groups near-duplicate images across large collections with bounded
// concurrency.
package phash

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
)

const (
	// DefaultResizedSize is the side of the square luminance grid fed to the DCT.
	DefaultResizedSize = 32
	// DefaultDCTSize is the side of the retained low-frequency block.
	DefaultDCTSize = 8
	// DefaultMaxPixels bounds the decoded source area (width*height).
	DefaultMaxPixels = 100_000_000
)

// Cache abstracts key-value caching of computed tokens (Redis, bbolt, sync.Map, etc.)
type Cache interface {
	Key(prefix, value string) string
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// Config holds hashing parameters and the collaborators injected by the consumer.
// Zero values mean "use defaults".
type Config struct {
	ResizedSize int // default: DefaultResizedSize (32)
	DCTSize     int // default: DefaultDCTSize (8); must not exceed ResizedSize
	Concurrency int // max in-flight batch computations (default: runtime.NumCPU())

	// Provider performs resize + luminance conversion. nil = DrawProvider.
	Provider ComputeProvider

	// AdditiveDC switches the zero-frequency normalisation to the legacy
	// additive form, for comparing against hashes produced that way.
	AdditiveDC bool

	// AutoOrient applies the EXIF Orientation tag before resizing.
	AutoOrient bool

	MaxPixels int // default: DefaultMaxPixels; larger sources fail with ErrDecode

	Cache Cache // optional token cache, consulted by HashContext and the batch API

	StealthClient *http.Client // optional: TLS-fingerprinted client for URL sources
	HTTPClient    *http.Client // optional: default http client (nil = http.DefaultClient)
	UserAgent     string       // default: "Mozilla/5.0 (compatible; go-phash/1.0)"

	// Optional callbacks for progress/metrics.
	OnResult func(HashResult)        // called once per finished batch source, serialised
	OnPanic  func(tag string, r any) // called when a batch worker recovers from a panic
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.ResizedSize == 0 {
		c.ResizedSize = DefaultResizedSize
	}
	if c.DCTSize == 0 {
		c.DCTSize = DefaultDCTSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.NumCPU()
	}
	if c.Provider == nil {
		c.Provider = DrawProvider{}
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = DefaultMaxPixels
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; go-phash/1.0)"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// validate rejects size parameters that cannot produce a hash.
func (c *Config) validate() error {
	if c.ResizedSize < 0 {
		return fmt.Errorf("%w: resized size %d must be positive", ErrConfiguration, c.ResizedSize)
	}
	if c.DCTSize < 0 {
		return fmt.Errorf("%w: dct size %d must be positive", ErrConfiguration, c.DCTSize)
	}
	if c.DCTSize > c.ResizedSize {
		return fmt.Errorf("%w: dct size %d exceeds resized size %d", ErrConfiguration, c.DCTSize, c.ResizedSize)
	}
	return nil
}

// fingerprint identifies every parameter that influences the token, so cached
// tokens from a differently configured engine are never reused.
func (c *Config) fingerprint() string {
	return fmt.Sprintf("r%d:d%d:%T:a%t:o%t", c.ResizedSize, c.DCTSize, c.Provider, c.AdditiveDC, c.AutoOrient)
}
