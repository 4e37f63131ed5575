// Package boltcache persists phash tokens in a bbolt database so repeated runs
// over the same files skip recomputation.
package boltcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("tokens")

// Cache implements phash.Cache on top of a bbolt file. Values are stored as JSON.
type Cache struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltcache: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("boltcache: create bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database file lock.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key joins prefix and value.
func (c *Cache) Key(prefix, value string) string {
	return prefix + ":" + value
}

// Get decodes the value stored under key into dest.
// Returns false on a miss or on any decode failure.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if ctx.Err() != nil {
		return false
	}
	var raw []byte
	_ = c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if raw == nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		slog.Warn("boltcache: corrupt entry", "key", key, "error", err.Error())
		return false
	}
	return true
}

// Set stores value under key. Failures are logged and otherwise ignored.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	if ctx.Err() != nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("boltcache: marshal failed", "key", key, "error", err.Error())
		return
	}
	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
	if err != nil {
		slog.Warn("boltcache: write failed", "key", key, "error", err.Error())
	}
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	var n int
	_ = c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketName).Stats().KeyN
		return nil
	})
	return n
}
