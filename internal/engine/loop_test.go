package engine_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mlplay/internal/engine"
)

func newWalk(maxTicks int, seed int64) *engine.Loop[walkState] {
	loop, err := engine.NewLoop[walkState](walk{}, engine.Config{
		Interval: 10 * time.Millisecond,
		MaxTicks: maxTicks,
		Seed:     seed,
	})
	Expect(err).NotTo(HaveOccurred())
	return loop
}

func positions(traj []engine.Snapshot[walkState]) []float64 {
	out := make([]float64, len(traj))
	for i, s := range traj {
		out[i] = s.State.Pos
	}
	return out
}

var _ = Describe("Loop", func() {
	It("rejects invalid configs", func() {
		_, err := engine.NewLoop[walkState](walk{}, engine.Config{Interval: 0})
		Expect(errors.Is(err, engine.ErrInvalidConfig)).To(BeTrue())

		_, err = engine.NewLoop[walkState](walk{}, engine.Config{Interval: time.Second, MaxTicks: -1})
		Expect(errors.Is(err, engine.ErrInvalidConfig)).To(BeTrue())
	})

	It("starts idle with default state and an empty trajectory", func() {
		loop := newWalk(10, 1)
		Expect(loop.Status()).To(Equal(engine.Idle))
		Expect(loop.State()).To(Equal(walkState{}))
		Expect(loop.Trajectory()).To(BeEmpty())
	})

	It("does not tick unless running", func() {
		loop := newWalk(10, 1)
		Expect(loop.Tick()).To(BeFalse())
		Expect(loop.Ticks()).To(BeZero())
	})

	Describe("status transitions", func() {
		It("follows idle -> running -> paused -> running -> idle", func() {
			loop := newWalk(10, 1)
			Expect(loop.Start()).To(Succeed())
			Expect(loop.Status()).To(Equal(engine.Running))
			Expect(loop.Pause()).To(Succeed())
			Expect(loop.Status()).To(Equal(engine.Paused))
			Expect(loop.Tick()).To(BeFalse())
			Expect(loop.Resume()).To(Succeed())
			Expect(loop.Tick()).To(BeTrue())
			Expect(loop.Stop()).To(Succeed())
			Expect(loop.Status()).To(Equal(engine.Idle))
			Expect(loop.Ticks()).To(Equal(1))
		})

		It("rejects transitions the machine does not allow", func() {
			loop := newWalk(10, 1)
			var terr *engine.TransitionError

			err := loop.Pause()
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.From).To(Equal(engine.Idle))
			Expect(errors.Is(err, engine.ErrInvalidTransition)).To(BeTrue())

			Expect(loop.Resume()).To(MatchError(engine.ErrInvalidTransition))
			Expect(loop.Stop()).To(MatchError(engine.ErrInvalidTransition))

			Expect(loop.Start()).To(Succeed())
			Expect(loop.Start()).To(MatchError(engine.ErrInvalidTransition))
			Expect(loop.StepOnce()).To(MatchError(engine.ErrInvalidTransition))
		})
	})

	It("never exceeds the tick budget and auto-stops", func() {
		loop := newWalk(50, 1)
		Expect(loop.Run(context.Background())).To(Succeed())
		Expect(loop.Ticks()).To(Equal(50))
		Expect(loop.Status()).To(Equal(engine.Idle))
		Expect(loop.Tick()).To(BeFalse())
		Expect(loop.Start()).To(MatchError(engine.ErrExhausted))
		Expect(loop.StepOnce()).To(MatchError(engine.ErrExhausted))
		Expect(loop.Ticks()).To(Equal(50))
	})

	It("stops when the model reports done", func() {
		loop, err := engine.NewLoop[walkState](walk{limit: 5}, engine.Config{Interval: time.Millisecond, Seed: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(loop.Run(context.Background())).To(Succeed())
		Expect(loop.State().Pos).To(BeNumerically(">=", 5))
		Expect(loop.Ticks()).To(BeNumerically("<=", 5))
	})

	It("keeps trajectory ticks strictly increasing", func() {
		loop := newWalk(20, 7)
		Expect(loop.Run(context.Background())).To(Succeed())
		traj := loop.Trajectory()
		Expect(traj).To(HaveLen(20))
		for i := range traj {
			Expect(traj[i].Tick).To(Equal(i + 1))
			Expect(traj[i].Elapsed).To(Equal(time.Duration(i+1) * 10 * time.Millisecond))
		}
	})

	It("restores defaults and clears the trajectory on reset from any status", func() {
		for _, status := range []engine.Status{engine.Idle, engine.Running, engine.Paused} {
			loop := newWalk(10, 1)
			Expect(loop.Start()).To(Succeed())
			for i := 0; i < 4; i++ {
				loop.Tick()
			}
			switch status {
			case engine.Idle:
				Expect(loop.Stop()).To(Succeed())
			case engine.Paused:
				Expect(loop.Pause()).To(Succeed())
			}

			loop.Reset()
			Expect(loop.Status()).To(Equal(engine.Idle))
			Expect(loop.State()).To(Equal(loop.Defaults()))
			Expect(loop.Trajectory()).To(BeEmpty())
			Expect(loop.Ticks()).To(BeZero())
		}
	})

	It("replays the same trajectory for the same seed", func() {
		a, b := newWalk(30, 42), newWalk(30, 42)
		Expect(a.Run(context.Background())).To(Succeed())
		Expect(b.Run(context.Background())).To(Succeed())
		Expect(positions(a.Trajectory())).To(Equal(positions(b.Trajectory())))

		c := newWalk(30, 43)
		Expect(c.Run(context.Background())).To(Succeed())
		Expect(positions(c.Trajectory())).NotTo(Equal(positions(a.Trajectory())))
	})

	It("replays the same trajectory after reset", func() {
		loop := newWalk(15, 9)
		Expect(loop.Run(context.Background())).To(Succeed())
		first := positions(loop.Trajectory())
		loop.Reset()
		Expect(loop.Run(context.Background())).To(Succeed())
		Expect(positions(loop.Trajectory())).To(Equal(first))
	})

	It("steps once from idle and paused without changing status", func() {
		loop := newWalk(10, 1)
		Expect(loop.StepOnce()).To(Succeed())
		Expect(loop.Status()).To(Equal(engine.Idle))
		Expect(loop.Ticks()).To(Equal(1))

		Expect(loop.Start()).To(Succeed())
		Expect(loop.Pause()).To(Succeed())
		Expect(loop.StepOnce()).To(Succeed())
		Expect(loop.Status()).To(Equal(engine.Paused))
		Expect(loop.Ticks()).To(Equal(2))
	})

	It("applies user edits without recording them", func() {
		loop := newWalk(10, 1)
		loop.Set(func(s walkState) walkState {
			s.Pos = 100
			return s
		})
		Expect(loop.State().Pos).To(Equal(100.0))
		Expect(loop.Trajectory()).To(BeEmpty())
	})

	It("hands out copies of the state", func() {
		loop := newWalk(10, 1)
		s := loop.State()
		s.Pos = 99
		Expect(loop.State().Pos).To(BeZero())
	})

	It("notifies observers after each committed tick", func() {
		loop := newWalk(5, 1)
		var seen []int
		loop.AddObserver(engine.ObserverFunc[walkState](func(s engine.Snapshot[walkState]) {
			seen = append(seen, s.Tick)
			// observers run outside the lock and may read the loop
			Expect(loop.Ticks()).To(Equal(s.Tick))
		}))
		Expect(loop.Run(context.Background())).To(Succeed())
		Expect(seen).To(Equal([]int{1, 2, 3, 4, 5}))
	})

	Describe("degenerate steps", func() {
		It("never commits non-finite state and halts", func() {
			loop, err := engine.NewLoop[walkState](blowup{}, engine.Config{Interval: time.Millisecond})
			Expect(err).NotTo(HaveOccurred())
			Expect(loop.Run(context.Background())).To(Succeed())

			Expect(loop.Ticks()).To(Equal(2))
			Expect(loop.State().Pos).To(Equal(2.0))
			degenerate, reason := loop.Degenerate()
			Expect(degenerate).To(BeTrue())
			Expect(reason).To(ContainSubstring("non-finite"))
			traj := loop.Trajectory()
			Expect(traj[1].Degenerate).To(BeTrue())
		})

		It("commits finite degenerate outcomes and keeps running", func() {
			loop, err := engine.NewLoop[walkState](flaky{}, engine.Config{Interval: time.Millisecond, MaxTicks: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(loop.Run(context.Background())).To(Succeed())
			Expect(loop.Ticks()).To(Equal(3))
			Expect(loop.State().Pos).To(Equal(3.0))
			degenerate, reason := loop.Degenerate()
			Expect(degenerate).To(BeTrue())
			Expect(reason).To(Equal("empty cluster"))
		})
	})

	It("stops a run when the context is cancelled", func() {
		loop := newWalk(0, 1)
		ctx, cancel := context.WithCancel(context.Background())
		loop.AddObserver(engine.ObserverFunc[walkState](func(s engine.Snapshot[walkState]) {
			if s.Tick == 10 {
				cancel()
			}
		}))
		Expect(loop.Run(ctx)).To(MatchError(context.Canceled))
		Expect(loop.Status()).To(Equal(engine.Idle))
		Expect(loop.Ticks()).To(Equal(10))
	})
})
