package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/jyothishs/rf-outdoor-link-planner/internal/logging"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/planner"
)

// DefaultMaxSessions bounds the number of open sessions when no limit is
// configured.
const DefaultMaxSessions = 1024

// StoreMetrics is the metrics sink shared by the store and its sessions.
type StoreMetrics interface {
	planner.MetricsRecorder
	SetSessions(n int)
}

// SessionStore holds the open planner sessions keyed by session ID.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*planner.Session

	defaults    planner.Config
	maxSessions int
	log         logging.Logger
	metrics     StoreMetrics
	sessionOpts []planner.SessionOption
}

// StoreOption customises SessionStore construction.
type StoreOption func(*SessionStore)

// WithMaxSessions caps the number of concurrently open sessions. Values <= 0
// fall back to DefaultMaxSessions.
func WithMaxSessions(n int) StoreOption {
	return func(s *SessionStore) { s.maxSessions = n }
}

// WithStoreMetrics attaches a metrics sink.
func WithStoreMetrics(m StoreMetrics) StoreOption {
	return func(s *SessionStore) { s.metrics = m }
}

// WithSessionOptions appends options applied to every new session.
func WithSessionOptions(opts ...planner.SessionOption) StoreOption {
	return func(s *SessionStore) { s.sessionOpts = append(s.sessionOpts, opts...) }
}

// NewSessionStore builds an empty store whose sessions start from defaults.
func NewSessionStore(defaults planner.Config, log logging.Logger, opts ...StoreOption) (*SessionStore, error) {
	defaults = defaults.ApplyDefaults()
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Noop()
	}
	s := &SessionStore{
		sessions: make(map[string]*planner.Session),
		defaults: defaults,
		log:      log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.maxSessions <= 0 {
		s.maxSessions = DefaultMaxSessions
	}
	return s, nil
}

// Defaults returns the configuration new sessions start from.
func (s *SessionStore) Defaults() planner.Config { return s.defaults }

// Create opens a new session. A zero defaultFreqGHz uses the store default.
func (s *SessionStore) Create(ctx context.Context, defaultFreqGHz float64) (*planner.Session, error) {
	cfg := s.defaults
	if defaultFreqGHz != 0 {
		cfg.DefaultFreqGHz = defaultFreqGHz
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.maxSessions {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManySessions, s.maxSessions)
	}

	opts := append([]planner.SessionOption{
		planner.WithLogger(s.log),
	}, s.sessionOpts...)
	if s.metrics != nil {
		opts = append(opts, planner.WithMetricsRecorder(s.metrics))
	}

	sess, err := planner.NewSession(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if _, exists := s.sessions[sess.ID()]; exists {
		return nil, fmt.Errorf("session %q already exists", sess.ID())
	}
	s.sessions[sess.ID()] = sess
	s.reportLocked()

	s.log.Info(ctx, "session created",
		logging.String("session_id", sess.ID()),
		logging.Float64("default_freq_ghz", cfg.DefaultFreqGHz),
	)
	return sess, nil
}

// Get returns an open session.
func (s *SessionStore) Get(id string) (*planner.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Close removes a session from the store and releases its metrics.
func (s *SessionStore) Close(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		s.reportLocked()
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	sess.Close()
	s.log.Info(ctx, "session closed", logging.String("session_id", id))
	return nil
}

// CloseAll closes every open session.
func (s *SessionStore) CloseAll(ctx context.Context) {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*planner.Session)
	s.reportLocked()
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	if len(sessions) > 0 {
		s.log.Info(ctx, "closed all sessions", logging.Int("count", len(sessions)))
	}
}

// Len reports the number of open sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) reportLocked() {
	if s.metrics != nil {
		s.metrics.SetSessions(len(s.sessions))
	}
}
