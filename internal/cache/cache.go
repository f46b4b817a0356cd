// Package cache is the optional result cache that sits in front of the
// warehouse. Entries are keyed by table generation and statement hash.
package cache

import (
	"context"
	"time"
)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Generation returns the current generation of table (0 if never bumped).
	Generation(ctx context.Context, table string) (uint64, error)
	// Bump advances the generation of table and returns the new value.
	Bump(ctx context.Context, table string) (uint64, error)
	Close() error
}
