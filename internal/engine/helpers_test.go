package engine_test

import (
	"math"
	"math/rand"

	"github.com/san-kum/mlplay/internal/engine"
)

type walkState struct {
	Pos   float64
	Noise float64
}

func (s walkState) Clone() walkState { return s }

func (s walkState) Values() map[string]float64 {
	return map[string]float64{"pos": s.Pos, "noise": s.Noise}
}

// walk adds a random increment every tick and stops once Pos >= limit.
type walk struct {
	limit float64
}

func (w walk) Defaults() walkState { return walkState{} }

func (w walk) Step(s walkState, rng *rand.Rand) engine.Outcome[walkState] {
	s.Noise = rng.Float64()
	s.Pos += 1 + s.Noise
	return engine.Ok(s)
}

func (w walk) Done(s walkState) bool { return w.limit > 0 && s.Pos >= w.limit }

// blowup produces NaN on its second step.
type blowup struct{}

func (blowup) Defaults() walkState { return walkState{Pos: 1} }

func (blowup) Step(s walkState, _ *rand.Rand) engine.Outcome[walkState] {
	if s.Pos > 1 {
		s.Pos = math.NaN()
		return engine.Ok(s)
	}
	s.Pos++
	return engine.Ok(s)
}

func (blowup) Done(walkState) bool { return false }

// flaky marks every step degenerate but keeps making progress.
type flaky struct{}

func (flaky) Defaults() walkState { return walkState{} }

func (flaky) Step(s walkState, _ *rand.Rand) engine.Outcome[walkState] {
	s.Pos++
	return engine.Degenerate(s, "empty cluster")
}

func (flaky) Done(walkState) bool { return false }
