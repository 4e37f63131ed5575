package phash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"log/slog"
	"sync"
)

// Engine computes perceptual hashes for one fixed configuration.
// It is safe for concurrent use; the cosine tables are built once and only read.
type Engine struct {
	cfg   Config
	table *dctTable
}

// NewEngine fills defaults, validates the configuration and precomputes the
// DCT basis. Configuration errors are reported here, before any work starts.
func NewEngine(cfg Config) (*Engine, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:   cfg,
		table: newDCTTable(cfg.ResizedSize, cfg.DCTSize, cfg.AdditiveDC),
	}, nil
}

// Config returns the effective configuration, defaults included.
func (e *Engine) Config() Config {
	return e.cfg
}

// TokenLen returns the number of bits in every token this engine produces.
func (e *Engine) TokenLen() int {
	return e.cfg.DCTSize * e.cfg.DCTSize
}

// Hash decodes data and returns its perceptual hash. The first error
// encountered aborts the computation.
func (e *Engine) Hash(data []byte) (HashToken, error) {
	grid, err := e.Preprocess(data)
	if err != nil {
		return HashToken{}, err
	}
	return e.hashGrid(grid)
}

// HashImage hashes an already decoded image.
func (e *Engine) HashImage(img image.Image) (HashToken, error) {
	if err := checkImage(img, e.cfg.ResizedSize); err != nil {
		return HashToken{}, err
	}
	grid, err := e.normalize(img)
	if err != nil {
		return HashToken{}, err
	}
	return e.hashGrid(grid)
}

func (e *Engine) hashGrid(grid *PixelGrid) (HashToken, error) {
	block, err := e.Transform(grid)
	if err != nil {
		return HashToken{}, err
	}
	return Encode(block)
}

// HashContext is like Hash but consults cfg.Cache first and stores fresh
// tokens in it. Cache failures never fail the hash.
func (e *Engine) HashContext(ctx context.Context, data []byte) (HashToken, error) {
	if e.cfg.Cache == nil {
		return e.Hash(data)
	}

	key := e.cacheKey(data)
	var cached string
	if e.cfg.Cache.Get(ctx, key, &cached) {
		tok, err := ParseToken(cached, e.TokenLen())
		if err == nil {
			return tok, nil
		}
		slog.Warn("phash: ignoring corrupt cache entry", "key", key, "error", err.Error())
	}

	tok, err := e.Hash(data)
	if err != nil {
		return HashToken{}, err
	}
	e.cfg.Cache.Set(ctx, key, tok.String())
	return tok, nil
}

// cacheKey derives a key from the content digest and every parameter that
// changes the token.
func (e *Engine) cacheKey(data []byte) string {
	sum := sha256.Sum256(data)
	return e.cfg.Cache.Key("phash", e.cfg.fingerprint()+":"+hex.EncodeToString(sum[:]))
}

var defaultEngine = sync.OnceValue(func() *Engine {
	e, err := NewEngine(Config{})
	if err != nil {
		panic("phash: default configuration rejected: " + err.Error())
	}
	return e
})

// Hash hashes data with the default configuration (32×32 grid, 8×8 block).
func Hash(data []byte) (HashToken, error) {
	return defaultEngine().Hash(data)
}
