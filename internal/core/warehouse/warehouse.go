// Package warehouse is the Snowflake data connection: one shared *sql.DB,
// opened once and used concurrently by every request.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sf "github.com/snowflakedb/gosnowflake"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/config"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/model"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/observability"
)

var errNotConnected = errors.New("warehouse: not connected")

type Client struct {
	cfg    config.SnowflakeCfg
	logger *slog.Logger

	mu sync.RWMutex
	db *sql.DB
}

func New(cfg config.SnowflakeCfg, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// DSN renders the gosnowflake connection string for cfg.
func DSN(cfg config.SnowflakeCfg) (string, error) {
	if cfg.Account == "" || cfg.User == "" {
		return "", errors.New("snowflake account and user are required")
	}
	dsn, err := sf.DSN(&sf.Config{
		Account:      cfg.Account,
		User:         cfg.User,
		Password:     cfg.Password,
		Warehouse:    cfg.Warehouse,
		Database:     cfg.Database,
		Schema:       cfg.Schema,
		Role:         cfg.Role,
		LoginTimeout: cfg.LoginTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("build dsn: %w", err)
	}
	return dsn, nil
}

// Connect opens the pool, verifies the login and returns the Snowflake
// session id.
func (c *Client) Connect(ctx context.Context) (string, error) {
	dsn, err := DSN(c.cfg)
	if err != nil {
		return "", err
	}
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return "", fmt.Errorf("open snowflake: %w", err)
	}

	start := time.Now()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		observability.ObserveWarehouse("connect", err, time.Since(start).Seconds())
		return "", fmt.Errorf("unable to connect to snowflake: %w", err)
	}
	var sessionID string
	if err := db.QueryRowContext(ctx, "select current_session()").Scan(&sessionID); err != nil {
		_ = db.Close()
		observability.ObserveWarehouse("connect", err, time.Since(start).Seconds())
		return "", fmt.Errorf("read session id: %w", err)
	}
	observability.ObserveWarehouse("connect", nil, time.Since(start).Seconds())

	c.mu.Lock()
	c.db = db
	c.mu.Unlock()

	c.logger.Info("snowflake connected",
		"account", c.cfg.Account, "warehouse", c.cfg.Warehouse, "session", sessionID)
	return sessionID, nil
}

func (c *Client) Execute(ctx context.Context, q model.CompiledQuery) ([]model.Row, error) {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db == nil {
		return nil, errNotConnected
	}

	kind := "query"
	if q.Count {
		kind = "count"
	}
	start := time.Now()
	rows, err := db.QueryContext(ctx, q.SQL)
	if err != nil {
		observability.ObserveWarehouse(kind, err, time.Since(start).Seconds())
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out, err := scanRows(rows)
	observability.ObserveWarehouse(kind, err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	if err != nil {
		return fmt.Errorf("close snowflake: %w", err)
	}
	return nil
}

type rowScanner interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRows(rs rowScanner) ([]model.Row, error) {
	cols, err := rs.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	out := []model.Row{}
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(out), err)
		}
		row := make(model.Row, len(cols))
		for i, name := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = vals[i]
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
