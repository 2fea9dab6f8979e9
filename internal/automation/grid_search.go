package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/mlplay/internal/experiment"
)

// GridAxis is one param and the values the grid tries for it.
type GridAxis struct {
	Param  string
	Values []float64
}

// ParseGridAxis reads "name=v1,v2,...".
func ParseGridAxis(raw string) (GridAxis, error) {
	name, list, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(list) == "" {
		return GridAxis{}, fmt.Errorf("grid axis %q: want name=v1,v2,...", raw)
	}
	axis := GridAxis{Param: name}
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return GridAxis{}, fmt.Errorf("grid axis %q: %w", raw, err)
		}
		axis.Values = append(axis.Values, v)
	}
	return axis, nil
}

// Grid is a grid search over one simulator. An empty Metric uses the
// simulator's own.
type Grid struct {
	Simulator string
	Axes      []GridAxis
	Metric    string
	Maximize  bool
	Ticks     int
	Seed      int64
	Base      map[string]float64
}

type GridResult struct {
	Metric string
	Best   map[string]float64
	Value  float64
}

// RunGrid tries every combination of the axes and keeps the best.
func RunGrid(ctx context.Context, grid *Grid, registry *experiment.Registry, log *slog.Logger) (*GridResult, error) {
	if log == nil {
		log = slog.Default()
	}
	info, err := registry.Info(grid.Simulator)
	if err != nil {
		return nil, err
	}
	if len(grid.Axes) == 0 {
		return nil, fmt.Errorf("grid search: no axes")
	}
	names := make([]string, len(grid.Axes))
	ranges := make([][]float64, len(grid.Axes))
	for i, a := range grid.Axes {
		if _, ok := info.Param(a.Param); !ok {
			return nil, fmt.Errorf("%s has no param %s", grid.Simulator, a.Param)
		}
		names[i], ranges[i] = a.Param, a.Values
	}
	metric := grid.Metric
	if metric == "" {
		metric = info.Metric
	}

	gs := NewGridSearch(names, ranges)
	gs.Maximize = grid.Maximize
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		merged := make(map[string]float64, len(grid.Base)+len(params))
		for k, v := range grid.Base {
			merged[k] = v
		}
		for k, v := range params {
			merged[k] = v
		}
		log.Debug("grid point", "simulator", grid.Simulator, "params", merged)
		return experiment.New(registry, experiment.Config{
			Simulator: grid.Simulator,
			Params:    merged,
			Seed:      grid.Seed,
			MaxTicks:  grid.Ticks,
		})
	}
	best, value, err := gs.Search(ctx, build, metric)
	if err != nil {
		return nil, err
	}
	return &GridResult{Metric: metric, Best: best, Value: value}, nil
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Maximize flips the comparison for scores such as accuracy.
	Maximize bool
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search runs one experiment per grid point and returns the best params
// and their metric value.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("grid search: %d params but %d ranges", len(g.paramNames), len(g.ranges))
	}

	best := math.Inf(1)
	if g.Maximize {
		best = math.Inf(-1)
	}
	var bestParams map[string]float64

	err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, metricName, &best, &bestParams)
	if err != nil {
		return nil, 0, err
	}
	return bestParams, best, nil
}

func (g *GridSearch) better(v, best float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if g.Maximize {
		return v > best
	}
	return v < best
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		exp, err := buildExperiment(current)
		if err != nil {
			return err
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return err
		}

		val, ok := MetricValue(result, metricName)
		if !ok {
			return fmt.Errorf("grid search: no metric %s", metricName)
		}
		if g.better(val, *best) {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, buildExperiment, metricName, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}
