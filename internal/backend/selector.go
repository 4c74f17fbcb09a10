// Package backend resolves which storage family serves each manager
// request: the DATABASE_URL environment variable wins, then the session
// override, then the embedded file database.
package backend

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/apperr"
	"github.com/Dajungeks/yumold-erp-system-sub000/internal/expense"
	"github.com/Dajungeks/yumold-erp-system-sub000/internal/manager"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

// EnvDatabaseURL selects the server backend for the whole process when
// set.
const EnvDatabaseURL = "DATABASE_URL"

// Status is a snapshot of the selector's view of both backends.
type Status struct {
	Selected          database.Kind `json:"selected"`
	EmbeddedReachable bool          `json:"embedded_reachable"`
	ServerConfigured  bool          `json:"server_configured"`
	ServerReachable   bool          `json:"server_reachable"`
	LastError         string        `json:"last_error,omitempty"`
}

// Selector is the process-wide manager factory. Manager instances are
// cheap; callers obtain a fresh one per logical operation, and concurrent
// factory calls are safe.
type Selector struct {
	embedded *database.Embedded
	server   *database.Server
	logger   *zap.Logger

	mu       sync.Mutex
	override database.Kind
	lastErr  error
}

// New builds a selector over an always-present embedded backend and an
// optional server backend.
func New(embedded *database.Embedded, server *database.Server, logger *zap.Logger) *Selector {
	return &Selector{embedded: embedded, server: server, logger: logger}
}

// Resolve returns the backend family the next factory call will bind to.
func (s *Selector) Resolve() database.Kind {
	if os.Getenv(EnvDatabaseURL) != "" {
		return database.KindServer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override.IsValid() {
		return s.override
	}
	return database.KindEmbedded
}

// SetBackend records a session override for subsequent factory calls.
// Already-built manager instances keep their binding.
func (s *Selector) SetBackend(kind database.Kind) error {
	if !kind.IsValid() {
		return apperr.Validation("backend")
	}
	s.mu.Lock()
	s.override = kind
	s.mu.Unlock()
	s.logger.Info("Backend override set", zap.String("backend", kind.String()))
	return nil
}

func (s *Selector) store(kind database.Kind) (database.Store, error) {
	if kind == database.KindServer {
		if s.server == nil {
			s.noteError(apperr.ErrBackendUnavailable)
			return nil, apperr.ErrBackendUnavailable
		}
		return s.server, nil
	}
	return s.embedded, nil
}

// ManagerFor returns a fresh manager for the entity, bound to the backend
// the resolution order picks right now.
func (s *Selector) ManagerFor(entity string) (manager.Manager, error) {
	spec, ok := manager.SpecFor(entity)
	if !ok {
		return nil, apperr.NotFound(entity)
	}

	kind := s.Resolve()
	st, err := s.store(kind)
	if err != nil {
		return nil, err
	}

	var m manager.Manager
	switch kind {
	case database.KindServer:
		m, err = manager.NewServer(spec, st.(*database.Server), s.logger)
	default:
		m, err = manager.NewEmbedded(spec, st.(*database.Embedded), s.logger)
	}
	if err != nil {
		s.noteError(err)
		return nil, err
	}
	return m, nil
}

// Expense returns a fresh expense core bound per the resolution order.
func (s *Selector) Expense() (*expense.Service, error) {
	st, err := s.store(s.Resolve())
	if err != nil {
		return nil, err
	}
	svc, err := expense.NewService(st, s.logger)
	if err != nil {
		s.noteError(err)
		return nil, err
	}
	return svc, nil
}

// PoolStats exposes the server pool counters when a server backend is
// configured.
func (s *Selector) PoolStats() (database.PoolStats, bool) {
	if s.server == nil {
		return database.PoolStats{}, false
	}
	return s.server.Stats(), true
}

// Status reports the selected backend and per-backend reachability.
func (s *Selector) Status(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st := Status{
		Selected:         s.Resolve(),
		ServerConfigured: s.server != nil,
	}
	if err := s.embedded.Ping(ctx); err != nil {
		s.noteError(err)
	} else {
		st.EmbeddedReachable = true
	}
	if s.server != nil {
		if err := s.server.Ping(ctx); err != nil {
			s.noteError(err)
		} else {
			st.ServerReachable = true
		}
	}

	s.mu.Lock()
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.mu.Unlock()
	return st
}

func (s *Selector) noteError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
