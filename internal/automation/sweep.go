package automation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/san-kum/mlplay/internal/experiment"
	"golang.org/x/sync/errgroup"
)

// Sweep varies one param across [Min, Max] in Steps evenly spaced values.
type Sweep struct {
	Simulator string
	Param     string
	Min       float64
	Max       float64
	Steps     int
	Metric    string
	Ticks     int
	Seed      int64
	Base      map[string]float64
}

type SweepPoint struct {
	Value      float64
	Metric     float64
	Ticks      int
	Degenerate bool
}

// Values returns the swept param values.
func (s *Sweep) Values() []float64 {
	if s.Steps <= 1 {
		return []float64{s.Min}
	}
	step := (s.Max - s.Min) / float64(s.Steps-1)
	out := make([]float64, s.Steps)
	for i := range out {
		out[i] = s.Min + float64(i)*step
	}
	return out
}

// RunSweep runs every point in parallel. Points come back in sweep order.
func RunSweep(ctx context.Context, sweep *Sweep, registry *experiment.Registry, log *slog.Logger) ([]SweepPoint, error) {
	if log == nil {
		log = slog.Default()
	}
	info, err := registry.Info(sweep.Simulator)
	if err != nil {
		return nil, err
	}
	if _, ok := info.Param(sweep.Param); !ok {
		return nil, fmt.Errorf("%s has no param %s", sweep.Simulator, sweep.Param)
	}
	metric := sweep.Metric
	if metric == "" {
		metric = info.Metric
	}

	values := sweep.Values()
	points := make([]SweepPoint, len(values))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, v := range values {
		g.Go(func() error {
			params := make(map[string]float64, len(sweep.Base)+1)
			for k, bv := range sweep.Base {
				params[k] = bv
			}
			params[sweep.Param] = v

			exp, err := experiment.New(registry, experiment.Config{
				Simulator: sweep.Simulator,
				Params:    params,
				Seed:      sweep.Seed,
				MaxTicks:  sweep.Ticks,
			})
			if err != nil {
				return err
			}
			result, err := exp.Run(ctx)
			if err != nil {
				return err
			}
			m, ok := MetricValue(result, metric)
			if !ok {
				return fmt.Errorf("%s does not report %s", sweep.Simulator, metric)
			}
			points[i] = SweepPoint{Value: v, Metric: m, Ticks: result.Ticks, Degenerate: result.Degenerate}
			log.Debug("sweep point", "param", sweep.Param, "value", v, metric, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}
