// Package featureserver serves feature-layer requests: it owns the warehouse
// connection state, turns query parameters into one SQL statement per request
// and shapes the rows into GeoJSON feature collections.
package featureserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/apperr"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/config"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/model"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/observability"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/sqlgen"
)

// Connector performs the one-time warehouse handshake and returns the
// driver-issued connection id.
type Connector interface {
	Connect(ctx context.Context) (string, error)
}

// Executor runs a compiled statement on the established connection.
type Executor interface {
	Execute(ctx context.Context, q model.CompiledQuery) ([]model.Row, error)
}

type Service struct {
	layers   config.Layers
	conn     Connector
	exec     Executor
	compiler *sqlgen.Compiler
	logger   *slog.Logger

	state atomic.Int32

	mu      sync.RWMutex
	connID  string
	connErr error
}

func New(layers config.Layers, conn Connector, exec Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		layers:   layers,
		conn:     conn,
		exec:     exec,
		compiler: sqlgen.New(logger),
		logger:   logger,
	}
	observability.SetConnectionState(Disconnected.String(), stateNames())
	return s
}

func (s *Service) State() State { return State(s.state.Load()) }

func (s *Service) ConnectionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connID
}

// Start performs the single connect. It is only valid from Disconnected;
// a failed handshake leaves the service Failed until the process restarts.
func (s *Service) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Disconnected), int32(Connecting)) {
		return fmt.Errorf("start: connection already %s", s.State())
	}
	observability.SetConnectionState(Connecting.String(), stateNames())

	id, err := s.conn.Connect(ctx)
	if err != nil {
		s.mu.Lock()
		s.connErr = err
		s.mu.Unlock()
		s.state.Store(int32(Failed))
		observability.SetConnectionState(Failed.String(), stateNames())
		s.logger.Error("warehouse connection failed; restart required", "err", err)
		return apperr.Wrap(apperr.Connection, err, "connect to warehouse")
	}

	s.mu.Lock()
	s.connID = id
	s.mu.Unlock()
	s.state.Store(int32(Connected))
	observability.SetConnectionState(Connected.String(), stateNames())
	s.logger.Info("connected to warehouse", "connection_id", id)
	return nil
}

// Readiness reports whether queries can be served, and the state otherwise.
func (s *Service) Readiness() (bool, string) {
	st := s.State()
	if st != Connected {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.connErr != nil {
			return false, fmt.Sprintf("%s: %v", st, s.connErr)
		}
	}
	return st == Connected, st.String()
}

func (s *Service) layer(service string, idx int) (model.LayerConfig, error) {
	if _, ok := s.layers.Service(service); !ok {
		return model.LayerConfig{}, apperr.NotFoundf("service %q not found", service)
	}
	l, ok := s.layers.Layer(service, idx)
	if !ok {
		return model.LayerConfig{}, apperr.NotFoundf("layer %d not found in service %q", idx, service)
	}
	return l, nil
}
