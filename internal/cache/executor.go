package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/cache/keys"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/model"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/observability"
)

type Backend interface {
	Execute(ctx context.Context, q model.CompiledQuery) ([]model.Row, error)
}

// Executor serves statements from the store when possible. Cache failures
// are logged and fall through to the backend.
type Executor struct {
	next      Backend
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	logger    *slog.Logger
}

func NewExecutor(next Backend, store Store, ttl, opTimeout time.Duration, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	return &Executor{next: next, store: store, ttl: ttl, opTimeout: opTimeout, logger: logger}
}

func (e *Executor) Execute(ctx context.Context, q model.CompiledQuery) ([]model.Row, error) {
	key, ok := e.lookupKey(ctx, q)
	if ok {
		if rows, hit := e.get(ctx, key); hit {
			observability.IncCacheHit()
			return rows, nil
		}
	}
	observability.IncCacheMiss()

	rows, err := e.next.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	if ok {
		e.put(ctx, key, rows)
	}
	return rows, nil
}

func (e *Executor) lookupKey(ctx context.Context, q model.CompiledQuery) (string, bool) {
	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()
	gen, err := e.store.Generation(opCtx, q.Table)
	if err != nil {
		e.logger.WarnContext(ctx, "cache generation lookup failed", "table", q.Table, "err", err)
		return "", false
	}
	return keys.Result(q.Table, gen, q.SQL), true
}

func (e *Executor) get(ctx context.Context, key string) ([]model.Row, bool) {
	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()
	b, found, err := e.store.Get(opCtx, key)
	if err != nil {
		e.logger.WarnContext(ctx, "cache get failed", "key", key, "err", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	rows, err := decodeRows(b)
	if err != nil {
		e.logger.WarnContext(ctx, "cache entry undecodable", "key", key, "err", err)
		return nil, false
	}
	return rows, true
}

func (e *Executor) put(ctx context.Context, key string, rows []model.Row) {
	b, err := json.Marshal(rows)
	if err != nil {
		e.logger.WarnContext(ctx, "cache encode failed", "key", key, "err", err)
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()
	if err := e.store.Set(opCtx, key, b, e.ttl); err != nil {
		e.logger.WarnContext(ctx, "cache set failed", "key", key, "err", err)
	}
}

// numbers stay json.Number so they re-encode exactly as stored
func decodeRows(b []byte) ([]model.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var rows []model.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if rows == nil {
		rows = []model.Row{}
	}
	return rows, nil
}
