package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Loop holds a simulator's state and drives it through the run state machine.
type Loop[S State[S]] struct {
	mu         sync.Mutex
	model      Model[S]
	cfg        Config
	state      S
	status     Status
	ticks      int
	trajectory []Snapshot[S]
	rng        *rand.Rand
	degenerate bool
	reason     string

	observers []Observer[S]
	logger    *slog.Logger
}

type options struct {
	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*options)

// WithLogger sets the logger used for status transitions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func NewLoop[S State[S]](model Model[S], cfg Config, opts ...Option) (*Loop[S], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	capacity := cfg.MaxTicks
	if capacity == 0 || capacity > 1024 {
		capacity = 1024
	}

	return &Loop[S]{
		model:      model,
		cfg:        cfg,
		state:      model.Defaults(),
		status:     Idle,
		trajectory: make([]Snapshot[S], 0, capacity),
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		logger:     o.logger,
	}, nil
}

func (l *Loop[S]) AddObserver(o Observer[S]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

func (l *Loop[S]) Config() Config { return l.cfg }

func (l *Loop[S]) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Loop[S]) Ticks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ticks
}

// State returns a copy of the current state.
func (l *Loop[S]) State() S {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Clone()
}

func (l *Loop[S]) Defaults() S { return l.model.Defaults() }

// Degenerate reports whether the most recent tick was degenerate, and why.
func (l *Loop[S]) Degenerate() (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degenerate, l.reason
}

// Trajectory returns a copy of all snapshots in tick order.
func (l *Loop[S]) Trajectory() []Snapshot[S] {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Snapshot[S], len(l.trajectory))
	copy(out, l.trajectory)
	return out
}

// Set applies a user edit to the current state. It does not touch the trajectory.
func (l *Loop[S]) Set(edit func(S) S) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = edit(l.state.Clone())
	l.degenerate, l.reason = false, ""
}

func (l *Loop[S]) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != Idle {
		return &TransitionError{From: l.status, Action: "start"}
	}
	if l.exhausted() {
		return ErrExhausted
	}
	l.transition(Running)
	return nil
}

func (l *Loop[S]) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != Running {
		return &TransitionError{From: l.status, Action: "pause"}
	}
	l.transition(Paused)
	return nil
}

func (l *Loop[S]) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != Paused {
		return &TransitionError{From: l.status, Action: "resume"}
	}
	l.transition(Running)
	return nil
}

// Stop returns a running or paused loop to Idle, keeping state and trajectory.
func (l *Loop[S]) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status == Idle {
		return &TransitionError{From: l.status, Action: "stop"}
	}
	l.transition(Idle)
	return nil
}

// Reset restores defaults from any status, clears the trajectory and re-seeds the rng.
func (l *Loop[S]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = l.model.Defaults()
	l.ticks = 0
	l.trajectory = l.trajectory[:0]
	l.rng = rand.New(rand.NewSource(l.cfg.Seed))
	l.degenerate, l.reason = false, ""
	l.transition(Idle)
}

// Tick advances the loop by one step if it is Running. It reports whether a
// step happened.
func (l *Loop[S]) Tick() bool {
	l.mu.Lock()
	if l.status != Running {
		l.mu.Unlock()
		return false
	}
	snap := l.advance()
	observers := l.observers
	l.mu.Unlock()

	l.notify(observers, snap)
	return true
}

// StepOnce performs a single user-driven step from Idle or Paused without
// changing the status.
func (l *Loop[S]) StepOnce() error {
	l.mu.Lock()
	if l.status == Running {
		l.mu.Unlock()
		return &TransitionError{From: l.status, Action: "step"}
	}
	if l.exhausted() {
		l.mu.Unlock()
		return ErrExhausted
	}
	prev := l.status
	snap := l.advance()
	if l.status != prev && prev == Paused {
		// advance may finish the run; a paused loop that finished goes Idle.
		prev = Idle
	}
	l.status = prev
	observers := l.observers
	l.mu.Unlock()

	l.notify(observers, snap)
	return nil
}

// Run starts the loop and ticks it back-to-back until it stops or ctx is done.
func (l *Loop[S]) Run(ctx context.Context) error {
	if err := l.Start(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			_ = l.Stop()
			return ctx.Err()
		default:
		}
		if !l.Tick() {
			return nil
		}
	}
}

// advance must be called with mu held.
func (l *Loop[S]) advance() Snapshot[S] {
	out := l.model.Step(l.state.Clone(), l.rng)
	l.ticks++

	halt := false
	if !Finite(out.State.Values()) {
		// keep the last finite state so the renderer never sees NaN
		out = Degenerate(l.state.Clone(), ReasonNonFinite)
		halt = true
	}
	l.state = out.State
	l.degenerate, l.reason = out.Degenerate, out.Reason

	snap := Snapshot[S]{
		Tick:       l.ticks,
		Elapsed:    time.Duration(l.ticks) * l.cfg.Interval,
		State:      l.state.Clone(),
		Degenerate: out.Degenerate,
		Reason:     out.Reason,
	}
	l.trajectory = append(l.trajectory, snap)

	if halt || l.exhausted() {
		l.transition(Idle)
	}
	return snap
}

func (l *Loop[S]) exhausted() bool {
	if l.cfg.MaxTicks > 0 && l.ticks >= l.cfg.MaxTicks {
		return true
	}
	return l.model.Done(l.state)
}

func (l *Loop[S]) transition(to Status) {
	if l.status == to {
		return
	}
	l.logger.Debug("loop transition", "from", l.status, "to", to, "tick", l.ticks)
	l.status = to
}

func (l *Loop[S]) notify(observers []Observer[S], snap Snapshot[S]) {
	for _, o := range observers {
		o.OnTick(snap)
	}
}
