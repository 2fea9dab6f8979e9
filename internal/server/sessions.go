package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/experiment"
	"github.com/san-kum/mlplay/internal/playground"
)

var (
	ErrSessionNotFound = errors.New("server: session not found")
	ErrTooManySessions = errors.New("server: too many sessions")
)

// Mounted is a live session with its own scheduler and stream subscribers.
type Mounted struct {
	ID        string
	Simulator string
	Created   time.Time
	Session   playground.Session

	sched *engine.Scheduler

	mu   sync.Mutex
	subs map[chan playground.Record]struct{}
}

func (m *Mounted) Subscribe() (<-chan playground.Record, func()) {
	ch := make(chan playground.Record, 16)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
}

// publish drops the record for subscribers that are not keeping up.
func (m *Mounted) publish(r playground.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

func (m *Mounted) close() {
	m.sched.Close()
	m.mu.Lock()
	for ch := range m.subs {
		delete(m.subs, ch)
		close(ch)
	}
	m.mu.Unlock()
}

type CreateRequest struct {
	Simulator  string             `json:"simulator"`
	Seed       int64              `json:"seed"`
	Params     map[string]float64 `json:"params"`
	IntervalMS int                `json:"interval_ms"`
	MaxTicks   int                `json:"max_ticks"`
}

// Sessions owns every mounted session.
type Sessions struct {
	reg   *experiment.Registry
	limit int
	ctx   context.Context

	mu       sync.RWMutex
	sessions map[string]*Mounted
}

// NewSessions creates a manager whose schedulers live until ctx is done or
// the session is deleted. A limit of zero means no cap.
func NewSessions(ctx context.Context, reg *experiment.Registry, limit int) *Sessions {
	return &Sessions{reg: reg, limit: limit, ctx: ctx, sessions: make(map[string]*Mounted)}
}

func (s *Sessions) Create(req CreateRequest, opts ...engine.Option) (*Mounted, error) {
	s.mu.RLock()
	full := s.limit > 0 && len(s.sessions) >= s.limit
	s.mu.RUnlock()
	if full {
		return nil, ErrTooManySessions
	}

	info, err := s.reg.Info(req.Simulator)
	if err != nil {
		return nil, err
	}
	cfg := experiment.EngineConfig(info, experiment.Config{
		Seed:     req.Seed,
		MaxTicks: req.MaxTicks,
		Interval: time.Duration(req.IntervalMS) * time.Millisecond,
	})
	sess, err := s.reg.New(req.Simulator, req.Params, cfg, opts...)
	if err != nil {
		return nil, err
	}

	m := &Mounted{
		ID:        uuid.NewString(),
		Simulator: info.Name,
		Created:   time.Now(),
		Session:   sess,
		sched:     engine.NewScheduler(sess, cfg.Interval),
		subs:      make(map[chan playground.Record]struct{}),
	}
	sess.Observe(m.publish)
	if err := m.sched.Start(s.ctx); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	// concurrent creates can all pass the check above
	s.mu.Lock()
	if s.limit > 0 && len(s.sessions) >= s.limit {
		s.mu.Unlock()
		m.close()
		return nil, ErrTooManySessions
	}
	s.sessions[m.ID] = m
	s.mu.Unlock()
	return m, nil
}

func (s *Sessions) Get(id string) (*Mounted, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return m, nil
}

// Delete unmounts a session. Its scheduler is closed before Delete returns.
func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	m, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.close()
	return nil
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Sessions) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Mounted)
	s.mu.Unlock()
	for _, m := range all {
		m.close()
	}
}
