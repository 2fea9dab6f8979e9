package experiment

import (
	"errors"
	"fmt"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/playground"
)

var ErrUnknownSimulator = errors.New("unknown simulator")

// Factory builds a fresh session with param overrides.
type Factory func(params map[string]float64, cfg engine.Config, opts ...engine.Option) (playground.Session, error)

type entry struct {
	info  playground.Info
	build Factory
}

type Registry struct {
	sims  map[string]entry
	order []string
}

func NewRegistry() *Registry {
	r := &Registry{sims: make(map[string]entry)}

	register(r, func(p map[string]float64) (playground.Simulator[playground.GradientState], error) {
		return playground.NewGradientDescent(p)
	})
	register(r, func(p map[string]float64) (playground.Simulator[playground.KMeansState], error) {
		return playground.NewKMeans(p)
	})
	register(r, func(p map[string]float64) (playground.Simulator[playground.TreeState], error) {
		return playground.NewDecisionTree(p)
	})
	register(r, func(p map[string]float64) (playground.Simulator[playground.SVMState], error) {
		return playground.NewSVM(p)
	})
	register(r, func(p map[string]float64) (playground.Simulator[playground.NetState], error) {
		return playground.NewNeuralNet(p)
	})
	register(r, func(p map[string]float64) (playground.Simulator[playground.EnsembleState], error) {
		return playground.NewEnsemble(p)
	})
	register(r, func(p map[string]float64) (playground.Simulator[playground.BayesState], error) {
		return playground.NewNaiveBayes(p)
	})
	register(r, func(p map[string]float64) (playground.Simulator[playground.NormState], error) {
		return playground.NewBatchNorm(p)
	})
	register(r, func(p map[string]float64) (playground.Simulator[playground.ActivationState], error) {
		return playground.NewActivation(p)
	})
	register(r, func(p map[string]float64) (playground.Simulator[playground.RNNState], error) {
		return playground.NewRNN(p)
	})
	register(r, func(p map[string]float64) (playground.Simulator[playground.RegressionState], error) {
		return playground.NewRegression(p)
	})

	return r
}

func register[S engine.State[S]](r *Registry, newSim func(map[string]float64) (playground.Simulator[S], error)) {
	sim, err := newSim(nil)
	if err != nil {
		panic(fmt.Sprintf("experiment: default params rejected: %v", err))
	}
	info := sim.Info()
	r.sims[info.Name] = entry{
		info: info,
		build: func(params map[string]float64, cfg engine.Config, opts ...engine.Option) (playground.Session, error) {
			s, err := newSim(params)
			if err != nil {
				return nil, err
			}
			return playground.Bind[S](s, cfg, opts...)
		},
	}
	r.order = append(r.order, info.Name)
}

// New builds a session for the named simulator. A zero cfg falls back to
// the simulator's own defaults.
func (r *Registry) New(name string, params map[string]float64, cfg engine.Config, opts ...engine.Option) (playground.Session, error) {
	e, ok := r.sims[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSimulator, name)
	}
	if cfg == (engine.Config{}) {
		cfg = e.info.Config
	}
	return e.build(params, cfg, opts...)
}

func (r *Registry) Info(name string) (playground.Info, error) {
	e, ok := r.sims[name]
	if !ok {
		return playground.Info{}, fmt.Errorf("%w: %s", ErrUnknownSimulator, name)
	}
	return e.info, nil
}

// List returns simulators in registration order.
func (r *Registry) List() []playground.Info {
	out := make([]playground.Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sims[name].info)
	}
	return out
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
