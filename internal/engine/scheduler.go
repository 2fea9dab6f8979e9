package engine

import (
	"context"
	"sync"
	"time"
)

// Ticker is what a Scheduler drives. *Loop satisfies it for any state type.
type Ticker interface {
	Tick() bool
	Status() Status
}

// Scheduler invokes Tick on a fixed wall-clock interval from one goroutine.
// Ticks never overlap; a tick that fires while the previous one is still
// running is dropped rather than queued.
type Scheduler struct {
	target   Ticker
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

func NewScheduler(target Ticker, interval time.Duration) *Scheduler {
	return &Scheduler{target: target, interval: interval}
}

// Start launches the tick goroutine. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.done != nil {
		return nil
	}
	if s.interval <= 0 {
		return ErrInvalidConfig
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.run(ctx)
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// a tick that raced with cancellation must not run
			if ctx.Err() != nil {
				return
			}
			if s.target.Status() == Running {
				s.target.Tick()
			}
		}
	}
}

// Close stops the goroutine and waits for it to exit. Once Close returns
// the target is never ticked again by this scheduler.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
