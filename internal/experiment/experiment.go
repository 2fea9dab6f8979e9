package experiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/metrics"
	"github.com/san-kum/mlplay/internal/playground"
)

type Config struct {
	Simulator string
	Params    map[string]float64
	Seed      int64
	// Zero MaxTicks or Interval keep the simulator's defaults.
	MaxTicks int
	Interval time.Duration
}

type Result struct {
	Simulator  string
	Seed       int64
	Ticks      int
	Records    []playground.Record
	Final      map[string]float64
	Metrics    map[string]float64
	Params     map[string]float64
	Degenerate bool
	Reason     string
}

type Experiment struct {
	cfg     Config
	info    playground.Info
	session playground.Session
}

func New(reg *Registry, cfg Config, opts ...engine.Option) (*Experiment, error) {
	info, err := reg.Info(cfg.Simulator)
	if err != nil {
		return nil, err
	}
	session, err := reg.New(cfg.Simulator, cfg.Params, EngineConfig(info, cfg), opts...)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", cfg.Simulator, err)
	}
	return &Experiment{cfg: cfg, info: info, session: session}, nil
}

// EngineConfig merges an experiment's overrides into the simulator defaults.
func EngineConfig(info playground.Info, cfg Config) engine.Config {
	ec := info.Config
	ec.Seed = cfg.Seed
	if cfg.MaxTicks > 0 {
		ec.MaxTicks = cfg.MaxTicks
	}
	if cfg.Interval > 0 {
		ec.Interval = cfg.Interval
	}
	return ec
}

func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if err := e.session.Run(ctx); err != nil && !errors.Is(err, engine.ErrExhausted) {
		return nil, err
	}
	return e.Result(), nil
}

// Result summarizes the session as it is now.
func (e *Experiment) Result() *Result {
	records := e.session.Records()
	degenerate, reason := e.session.Degenerate()
	return &Result{
		Simulator:  e.info.Name,
		Seed:       e.cfg.Seed,
		Ticks:      e.session.Ticks(),
		Records:    records,
		Final:      e.session.Values(),
		Metrics:    metrics.Summarize(records, metrics.Defaults(e.info.Metric)...),
		Params:     e.session.Params(),
		Degenerate: degenerate,
		Reason:     reason,
	}
}

// Session returns the underlying session for adding observers.
func (e *Experiment) Session() playground.Session {
	return e.session
}

func (e *Experiment) Info() playground.Info { return e.info }
