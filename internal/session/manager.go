// Package session keeps track of the files being followed at the same time.
// Each session owns one FileSource and its resumption state; sessions share
// nothing but the metrics registry.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clarabennett2626/logtrail/internal/source"
)

// Handle identifies a running session.
type Handle string

// Session is one followed file.
type Session struct {
	Handle  Handle
	Path    string
	Started time.Time

	src *source.FileSource
}

func (s *Session) Batches() <-chan source.Batch { return s.src.Batches() }
func (s *Session) Status() <-chan source.Status { return s.src.Status() }
func (s *Session) Done() <-chan struct{}        { return s.src.Done() }
func (s *Session) Source() *source.FileSource   { return s.src }

// Reopen forces the session's file to be closed and re-opened.
func (s *Session) Reopen() { s.src.Reopen() }

// Manager starts and stops sessions.
type Manager struct {
	cfg source.FileConfig
	log *zap.Logger

	mu       sync.Mutex
	sessions map[Handle]*Session
}

// NewManager returns a Manager whose sessions use cfg. A nil logger
// disables logging.
func NewManager(cfg source.FileConfig, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		log:      log,
		sessions: make(map[Handle]*Session),
	}
}

// Start begins following path in a new session. It does not wait for the
// file to exist; open failures are reported on the session's status channel.
func (m *Manager) Start(ctx context.Context, path string) (*Session, error) {
	h := Handle(uuid.NewString())

	cfg := m.cfg
	cfg.Logger = m.log.With(zap.String("session", string(h)), zap.String("path", path))
	src := source.NewFileSource(path, cfg)
	if err := src.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting session for %s: %w", path, err)
	}

	s := &Session{Handle: h, Path: src.Path(), Started: time.Now(), src: src}
	m.mu.Lock()
	m.sessions[h] = s
	m.mu.Unlock()

	cfg.Logger.Info("session started")
	return s, nil
}

// Stop ends the session and releases its file. Stopping an unknown or
// already stopped handle is a no-op.
func (m *Manager) Stop(h Handle) error {
	m.mu.Lock()
	s, ok := m.sessions[h]
	delete(m.sessions, h)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.stop(s)
}

// StopAll stops every session concurrently and waits for all of them.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[Handle]*Session)
	m.mu.Unlock()

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error { return m.stop(s) })
	}
	return g.Wait()
}

func (m *Manager) stop(s *Session) error {
	if err := s.src.Stop(); err != nil {
		return fmt.Errorf("stopping session %s: %w", s.Handle, err)
	}
	m.log.Info("session stopped", zap.String("session", string(s.Handle)), zap.String("path", s.Path))
	return nil
}

// Get returns the running session for h.
func (m *Manager) Get(h Handle) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[h]
	return s, ok
}

// List returns the running sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}
