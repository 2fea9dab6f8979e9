package playground

import (
	"context"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

// Simulator is a model that can describe, configure and draw itself.
type Simulator[S engine.State[S]] interface {
	engine.Model[S]
	Info() Info
	// Configure returns s with one param changed. Params marked Rebuild
	// regenerate the state from scratch.
	Configure(s S, name string, v float64) (S, error)
	// Frame draws s. trail holds recent committed states, oldest first.
	Frame(s S, trail []S, opts render.Options) *render.Frame
}

// Record is a type-erased trajectory point.
type Record struct {
	Tick       int                `json:"tick"`
	Elapsed    time.Duration      `json:"elapsed"`
	Values     map[string]float64 `json:"values"`
	Degenerate bool               `json:"degenerate,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// Session is a simulator bound to its own loop.
type Session interface {
	Info() Info
	Config() engine.Config

	Start() error
	Pause() error
	Resume() error
	Stop() error
	Reset()
	StepOnce() error
	Tick() bool
	Run(ctx context.Context) error

	Status() engine.Status
	Ticks() int
	Values() map[string]float64
	Params() ParamSet
	SetParam(name string, v float64) error
	Degenerate() (bool, string)

	Frame(opts render.Options) *render.Frame
	Records() []Record
	Observe(fn func(Record))
}

// trailLimit caps how many past states a frame gets to draw paths from.
const trailLimit = 256

type session[S engine.State[S]] struct {
	*engine.Loop[S]
	sim Simulator[S]
}

// paramState is implemented by every simulator state.
type paramState interface {
	params() ParamSet
}

// Bind builds a loop for sim and wraps it as a Session.
func Bind[S engine.State[S]](sim Simulator[S], cfg engine.Config, opts ...engine.Option) (Session, error) {
	loop, err := engine.NewLoop[S](sim, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &session[S]{Loop: loop, sim: sim}, nil
}

func (s *session[S]) Info() Info { return s.sim.Info() }

func (s *session[S]) Values() map[string]float64 { return s.State().Values() }

func (s *session[S]) Params() ParamSet {
	if ps, ok := any(s.State()).(paramState); ok {
		return ps.params().Clone()
	}
	return ParamSet{}
}

func (s *session[S]) SetParam(name string, v float64) error {
	var err error
	s.Set(func(st S) S {
		next, cerr := s.sim.Configure(st, name, v)
		if cerr != nil {
			err = cerr
			return st
		}
		return next
	})
	return err
}

func (s *session[S]) Frame(opts render.Options) *render.Frame {
	if opts.Width <= 0 || opts.Height <= 0 {
		d := render.DefaultOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}
	info := s.sim.Info()
	degenerate, reason := s.Degenerate()
	if degenerate && reason == engine.ReasonNonFinite {
		return render.Placeholder(opts.Width, opts.Height, info.Title, "diverged: "+reason)
	}

	traj := s.Trajectory()
	if len(traj) > trailLimit {
		traj = traj[len(traj)-trailLimit:]
	}
	trail := make([]S, len(traj))
	for i, snap := range traj {
		trail[i] = snap.State
	}

	f := s.sim.Frame(s.State(), trail, opts)
	if degenerate {
		f.Add(render.Text(float64(opts.Width)/2, float64(opts.Height)-6, reason,
			render.Style{Fill: render.Warning, Class: "degenerate"}))
	}
	return f.Sanitize()
}

func (s *session[S]) Records() []Record {
	traj := s.Trajectory()
	out := make([]Record, len(traj))
	for i, snap := range traj {
		out[i] = toRecord(snap)
	}
	return out
}

func (s *session[S]) Observe(fn func(Record)) {
	s.AddObserver(engine.ObserverFunc[S](func(snap engine.Snapshot[S]) {
		fn(toRecord(snap))
	}))
}

func toRecord[S engine.State[S]](snap engine.Snapshot[S]) Record {
	return Record{
		Tick:       snap.Tick,
		Elapsed:    snap.Elapsed,
		Values:     snap.State.Values(),
		Degenerate: snap.Degenerate,
		Reason:     snap.Reason,
	}
}

// configure validates and applies one param change. It reports whether the
// state has to be rebuilt.
func configure(specs []Param, ps ParamSet, name string, v float64) (ParamSet, bool, error) {
	p, ok := findParam(specs, name)
	if !ok {
		return ps, false, &ParamError{Name: name}
	}
	out := ps.Clone()
	out[name] = p.Clamp(v)
	return out, p.Rebuild, nil
}
