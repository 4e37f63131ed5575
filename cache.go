package phash

import (
	"context"
	"reflect"
	"sync"
)

// MemoryCache is an in-process Cache backed by sync.Map.
type MemoryCache struct {
	m sync.Map
}

// Key joins prefix and value.
func (c *MemoryCache) Key(prefix, value string) string {
	return prefix + ":" + value
}

// Get copies the stored value into dest, which must be a non-nil pointer to a
// type the stored value is assignable to.
func (c *MemoryCache) Get(_ context.Context, key string, dest any) bool {
	v, ok := c.m.Load(key)
	if !ok || v == nil {
		return false
	}
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return false
	}
	sv := reflect.ValueOf(v)
	if !sv.Type().AssignableTo(dv.Elem().Type()) {
		return false
	}
	dv.Elem().Set(sv)
	return true
}

// Set stores value under key.
func (c *MemoryCache) Set(_ context.Context, key string, value any) {
	c.m.Store(key, value)
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	var n int
	c.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
