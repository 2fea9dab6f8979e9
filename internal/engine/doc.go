// Package engine provides the discrete-time simulation loop shared by every
// playground simulator.
//
// A simulator is a [Model]: default state plus a step function. The
// [Loop] owns the current state, the run status and the trajectory of past
// snapshots; a [Scheduler] (or an external event loop such as the TUI) calls
// [Loop.Tick] at a fixed interval.
//
//	loop, _ := engine.NewLoop(model, engine.DefaultConfig())
//	_ = loop.Start()
//	sched := engine.NewScheduler(loop, 200*time.Millisecond)
//	_ = sched.Start(ctx)
//	defer sched.Close()
//
// # Status
//
//	Idle --Start--> Running --Tick--> Running
//	Running --max ticks | done | Stop--> Idle
//	Running --Pause--> Paused --Resume--> Running
//	any --Reset--> Idle (defaults restored, trajectory cleared)
//
// # Determinism
//
// Each loop owns a seeded *rand.Rand. Given the same model, config and seed,
// N ticks always produce the same trajectory. Snapshot times are logical
// (tick × interval), not wall clock.
//
// # Thread Safety
//
// Loop methods are safe for concurrent use. Observers are notified from the
// goroutine that called Tick, outside the loop's lock.
package engine
