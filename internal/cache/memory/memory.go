// Package memory is an in-process cache.Store backed by an expiring LRU.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Store struct {
	lru *expirable.LRU[string, []byte]

	mu   sync.Mutex
	gens map[string]uint64
}

// New creates a store holding at most size entries. Entry lifetime is fixed
// at ttl; the ttl passed to Set is ignored.
func New(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = 1024
	}
	return &Store{
		lru:  expirable.NewLRU[string, []byte](size, nil, ttl),
		gens: map[string]uint64{},
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lru.Add(key, val)
	return nil
}

func (s *Store) Generation(_ context.Context, table string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[normalize(table)], nil
}

func (s *Store) Bump(_ context.Context, table string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := normalize(table)
	s.gens[k]++
	return s.gens[k], nil
}

func (s *Store) Len() int { return s.lru.Len() }

func (s *Store) Close() error {
	s.lru.Purge()
	return nil
}

func normalize(table string) string {
	return strings.ToUpper(strings.TrimSpace(table))
}
