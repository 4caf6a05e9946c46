// Package cache provides a small keyed JSON cache used for derived data
// that is shared process-wide, such as site root paths.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is not present.
var ErrMiss = errors.New("cache: miss")

// Key is a cache key with an explicit format version. The version is part of
// the stored key, so changing the shape of a cached value and bumping the
// version can never read an entry written with the old shape.
type Key struct {
	Name    string
	Version int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:v%d", k.Name, k.Version)
}

// Cache stores JSON-encoded values under versioned keys.
type Cache interface {
	Get(ctx context.Context, key Key, dest interface{}) error
	Set(ctx context.Context, key Key, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key Key) error
}
