package host

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xraph/carapace"
)

type session struct {
	scope  *carapace.Scope
	window Window
	config WindowConfig
	order  int
}

// SessionInfo describes an open window session.
type SessionInfo struct {
	ID     uuid.UUID    `json:"id"`
	Config WindowConfig `json:"config"`
}

// WindowManager opens windows, each inside its own child scope.
type WindowManager struct {
	provider *carapace.Provider
	factory  WindowFactory
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	opened   int
}

// NewWindowManager creates a manager. A nil logger discards output.
func NewWindowManager(provider *carapace.Provider, factory WindowFactory, logger *zap.Logger) *WindowManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WindowManager{
		provider: provider,
		factory:  factory,
		logger:   logger,
		sessions: make(map[uuid.UUID]*session),
	}
}

// Open creates a scope for the window, assigns its ScopeContext and asks the
// factory for the window. The session id is the scope id. On failure the
// scope is disposed before returning.
func (m *WindowManager) Open(ctx context.Context, cfg WindowConfig) (uuid.UUID, error) {
	scope, err := m.provider.CreateScope()
	if err != nil {
		return uuid.Nil, err
	}

	window, err := m.open(ctx, scope, cfg)
	if err != nil {
		err = multierr.Append(err, scope.Dispose())
		m.logger.Warn("window open failed",
			zap.String("title", cfg.Title),
			zap.Error(err),
		)

		return uuid.Nil, err
	}

	m.mu.Lock()
	m.opened++
	m.sessions[scope.ID()] = &session{scope: scope, window: window, config: cfg, order: m.opened}
	m.mu.Unlock()

	m.logger.Debug("window opened",
		zap.Stringer("session", scope.ID()),
		zap.String("title", cfg.Title),
	)

	return scope.ID(), nil
}

func (m *WindowManager) open(ctx context.Context, scope *carapace.Scope, cfg WindowConfig) (Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sc, err := carapace.Resolve[*ScopeContext](scope)
	if err != nil {
		return nil, err
	}
	sc.Set(scope)

	window, err := m.factory(ctx, scope, cfg)
	if err != nil {
		return nil, fmt.Errorf("create window %q: %w", cfg.Title, err)
	}

	return window, nil
}

// Close closes the window and then disposes its scope.
func (m *WindowManager) Close(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound(id)
	}

	return m.close(id, s)
}

func (m *WindowManager) close(id uuid.UUID, s *session) error {
	err := multierr.Append(s.window.Close(), s.scope.Dispose())
	if err != nil {
		m.logger.Error("window close failed", zap.Stringer("session", id), zap.Error(err))
	} else {
		m.logger.Debug("window closed", zap.Stringer("session", id))
	}

	return err
}

// CloseAll closes every open window, newest first, and reports every failure.
func (m *WindowManager) CloseAll() error {
	m.mu.Lock()
	open := m.sessions
	m.sessions = make(map[uuid.UUID]*session)
	m.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(open))
	for id := range open {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return open[b].order - open[a].order
	})

	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, m.close(id, open[id]))
	}

	return errs
}

// Sessions lists the open sessions in the order they were opened.
func (m *WindowManager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SessionInfo, 0, len(m.sessions))
	for id, s := range m.sessions {
		out = append(out, SessionInfo{ID: id, Config: s.config})
	}
	slices.SortFunc(out, func(a, b SessionInfo) int {
		return m.sessions[a.ID].order - m.sessions[b.ID].order
	})

	return out
}

// Scope returns the scope of an open session.
func (m *WindowManager) Scope(id uuid.UUID) (*carapace.Scope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound(id)
	}

	return s.scope, nil
}

func (s SessionInfo) String() string {
	var b strings.Builder
	b.WriteString(s.ID.String())
	if s.Config.Title != "" {
		b.WriteString(" (")
		b.WriteString(s.Config.Title)
		b.WriteString(")")
	}

	return b.String()
}
