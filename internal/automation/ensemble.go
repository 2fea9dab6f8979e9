package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"github.com/san-kum/mlplay/internal/experiment"
	"github.com/san-kum/mlplay/internal/playground"
	"golang.org/x/sync/errgroup"
)

// Ensemble runs the same simulator under several seeds. Member i uses
// Seeds[i] if given, otherwise Seed+i.
type Ensemble struct {
	Simulator string
	Runs      int
	Seed      int64
	Seeds     []int64
	Ticks     int
	Params    map[string]float64
	Metric    string
}

type Member struct {
	Seed   int64
	Metric float64
	Result *experiment.Result
}

type EnsembleResult struct {
	Metric  string
	Members []Member
	Mean    float64
	Std     float64
	Min     float64
	Max     float64
}

func (e *Ensemble) seeds() []int64 {
	if len(e.Seeds) > 0 {
		return e.Seeds
	}
	out := make([]int64, e.Runs)
	for i := range out {
		out[i] = e.Seed + int64(i)
	}
	return out
}

func RunEnsemble(ctx context.Context, ens *Ensemble, registry *experiment.Registry, log *slog.Logger) (*EnsembleResult, error) {
	if log == nil {
		log = slog.Default()
	}
	info, err := registry.Info(ens.Simulator)
	if err != nil {
		return nil, err
	}
	metric := ens.Metric
	if metric == "" {
		metric = info.Metric
	}
	seeds := ens.seeds()
	if len(seeds) == 0 {
		return nil, fmt.Errorf("ensemble needs at least one run")
	}

	members := make([]Member, len(seeds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, seed := range seeds {
		g.Go(func() error {
			exp, err := experiment.New(registry, experiment.Config{
				Simulator: ens.Simulator,
				Params:    ens.Params,
				Seed:      seed,
				MaxTicks:  ens.Ticks,
			})
			if err != nil {
				return err
			}
			result, err := exp.Run(ctx)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			m, _ := MetricValue(result, metric)
			members[i] = Member{Seed: seed, Metric: m, Result: result}
			log.Debug("ensemble member", "seed", seed, metric, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &EnsembleResult{Metric: metric, Members: members, Min: math.Inf(1), Max: math.Inf(-1)}
	for _, m := range members {
		out.Mean += m.Metric
		out.Min = math.Min(out.Min, m.Metric)
		out.Max = math.Max(out.Max, m.Metric)
	}
	out.Mean /= float64(len(members))
	for _, m := range members {
		out.Std += (m.Metric - out.Mean) * (m.Metric - out.Mean)
	}
	out.Std = math.Sqrt(out.Std / float64(len(members)))
	return out, nil
}

// SameTrajectory reports whether two runs produced identical values at
// every tick.
func SameTrajectory(a, b []playground.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Tick != b[i].Tick || len(a[i].Values) != len(b[i].Values) {
			return false
		}
		for k, v := range a[i].Values {
			if w, ok := b[i].Values[k]; !ok || w != v {
				return false
			}
		}
	}
	return true
}
