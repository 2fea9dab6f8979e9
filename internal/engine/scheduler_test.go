package engine_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mlplay/internal/engine"
)

type countingTicker struct {
	status  atomic.Int32
	ticks   atomic.Int64
	busy    atomic.Int32
	overlap atomic.Bool
}

func (c *countingTicker) Status() engine.Status { return engine.Status(c.status.Load()) }

func (c *countingTicker) Tick() bool {
	if c.busy.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.busy.Add(-1)
	time.Sleep(2 * time.Millisecond)
	c.ticks.Add(1)
	return true
}

var _ = Describe("Scheduler", func() {
	It("ticks a running loop until it reaches its budget", func() {
		loop := newWalk(5, 1)
		Expect(loop.Start()).To(Succeed())

		sched := engine.NewScheduler(loop, time.Millisecond)
		Expect(sched.Start(context.Background())).To(Succeed())
		defer sched.Close()

		Eventually(loop.Status).WithTimeout(2 * time.Second).Should(Equal(engine.Idle))
		Consistently(loop.Ticks).WithDuration(30 * time.Millisecond).Should(Equal(5))
	})

	It("does not tick idle or paused loops", func() {
		loop := newWalk(0, 1)
		sched := engine.NewScheduler(loop, time.Millisecond)
		Expect(sched.Start(context.Background())).To(Succeed())
		defer sched.Close()

		Consistently(loop.Ticks).WithDuration(20 * time.Millisecond).Should(BeZero())

		Expect(loop.Start()).To(Succeed())
		Eventually(loop.Ticks).Should(BeNumerically(">", 0))
		Expect(loop.Pause()).To(Succeed())
		paused := loop.Ticks()
		Consistently(loop.Ticks).WithDuration(20 * time.Millisecond).Should(Equal(paused))
	})

	It("never ticks after Close returns", func() {
		loop := newWalk(0, 1)
		Expect(loop.Start()).To(Succeed())
		sched := engine.NewScheduler(loop, time.Millisecond)
		Expect(sched.Start(context.Background())).To(Succeed())

		Eventually(loop.Ticks).Should(BeNumerically(">=", 3))
		sched.Close()
		closedAt := loop.Ticks()

		Consistently(loop.Ticks).WithDuration(30 * time.Millisecond).Should(Equal(closedAt))
		Expect(sched.Closed()).To(BeTrue())
		Expect(sched.Start(context.Background())).To(MatchError(engine.ErrClosed))
	})

	It("stops when the parent context is cancelled", func() {
		loop := newWalk(0, 1)
		Expect(loop.Start()).To(Succeed())
		ctx, cancel := context.WithCancel(context.Background())
		sched := engine.NewScheduler(loop, time.Millisecond)
		Expect(sched.Start(ctx)).To(Succeed())
		defer sched.Close()

		Eventually(loop.Ticks).Should(BeNumerically(">", 0))
		cancel()
		// let an in-flight tick finish before sampling
		time.Sleep(5 * time.Millisecond)
		stoppedAt := loop.Ticks()
		Consistently(loop.Ticks).WithDuration(20 * time.Millisecond).Should(Equal(stoppedAt))
	})

	It("runs ticks strictly one at a time", func() {
		target := &countingTicker{}
		target.status.Store(int32(engine.Running))
		sched := engine.NewScheduler(target, 500*time.Microsecond)
		Expect(sched.Start(context.Background())).To(Succeed())

		Eventually(target.ticks.Load).Should(BeNumerically(">=", 10))
		sched.Close()
		Expect(target.overlap.Load()).To(BeFalse())
	})

	It("treats repeated Start and Close as no-ops", func() {
		loop := newWalk(0, 1)
		sched := engine.NewScheduler(loop, time.Millisecond)
		Expect(sched.Start(context.Background())).To(Succeed())
		Expect(sched.Start(context.Background())).To(Succeed())
		sched.Close()
		sched.Close()
	})

	It("rejects a non-positive interval", func() {
		sched := engine.NewScheduler(newWalk(0, 1), 0)
		Expect(sched.Start(context.Background())).To(MatchError(engine.ErrInvalidConfig))
	})
})
