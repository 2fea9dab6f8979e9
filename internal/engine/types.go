package engine

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Status is the run status of a loop.
type Status int

const (
	Idle Status = iota
	Running
	Paused
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is implemented by every simulator state type.
type State[S any] interface {
	Clone() S
	// Values flattens the state into named scalars for trajectories and metrics.
	Values() map[string]float64
}

// ReasonNonFinite is the reason recorded when a step produced NaN or Inf.
// The loop halts on it and keeps the last finite state.
const ReasonNonFinite = "non-finite value produced"

// Outcome is the tagged result of one step. A degenerate outcome still
// carries a usable state; Reason says what went wrong.
type Outcome[S any] struct {
	State      S
	Degenerate bool
	Reason     string
}

// Ok wraps a successful step result.
func Ok[S any](s S) Outcome[S] { return Outcome[S]{State: s} }

// Degenerate wraps a step result whose inputs were degenerate.
func Degenerate[S any](s S, reason string) Outcome[S] {
	return Outcome[S]{State: s, Degenerate: true, Reason: reason}
}

// Model is a simulator: default state, a step function and a stop condition.
type Model[S State[S]] interface {
	Defaults() S
	Step(s S, rng *rand.Rand) Outcome[S]
	Done(s S) bool
}

// Snapshot is one trajectory point.
type Snapshot[S any] struct {
	Tick       int
	Elapsed    time.Duration
	State      S
	Degenerate bool
	Reason     string
}

// Observer is notified after every committed tick.
type Observer[S any] interface {
	OnTick(snap Snapshot[S])
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc[S any] func(Snapshot[S])

func (f ObserverFunc[S]) OnTick(snap Snapshot[S]) { f(snap) }

// Config controls the pace and length of a run.
type Config struct {
	Interval time.Duration
	// MaxTicks stops the run after this many ticks; 0 means unbounded.
	MaxTicks int
	Seed     int64
}

func DefaultConfig() Config {
	return Config{
		Interval: 200 * time.Millisecond,
		MaxTicks: 100,
		Seed:     1,
	}
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidConfig, c.Interval)
	}
	if c.MaxTicks < 0 {
		return fmt.Errorf("%w: max ticks must not be negative, got %d", ErrInvalidConfig, c.MaxTicks)
	}
	return nil
}

// Finite reports whether every value is a finite number.
func Finite(values map[string]float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
