// Package automation runs scripted and batch experiments: YAML scenarios,
// one-parameter sweeps, grid searches and seeded ensembles.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/san-kum/mlplay/internal/config"
	"github.com/san-kum/mlplay/internal/experiment"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

type ScenarioStep struct {
	Simulator string `yaml:"simulator"`
	// Preset names an entry from config.Presets; Params are laid over it.
	Preset string             `yaml:"preset"`
	Params map[string]float64 `yaml:"params"`
	Seed   int64              `yaml:"seed"`
	Ticks  int                `yaml:"ticks"`
	Save   bool               `yaml:"save"`
}

// Saver persists a finished run and returns its id.
type Saver interface {
	Save(result *experiment.Result) (string, error)
}

type StepResult struct {
	Step   ScenarioStep
	Result *experiment.Result
	RunID  string
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// stepConfig resolves a step's preset and overrides into an experiment config.
func stepConfig(step ScenarioStep) (experiment.Config, error) {
	cfg := experiment.Config{
		Simulator: step.Simulator,
		Seed:      step.Seed,
		MaxTicks:  step.Ticks,
		Params:    map[string]float64{},
	}
	if step.Preset != "" {
		p := config.GetPreset(step.Simulator, step.Preset)
		if p == nil {
			return cfg, fmt.Errorf("unknown preset %s for %s", step.Preset, step.Simulator)
		}
		cfg.Params = p.Merge(step.Params)
		if cfg.MaxTicks == 0 {
			cfg.MaxTicks = p.MaxTicks
		}
		return cfg, nil
	}
	for k, v := range step.Params {
		cfg.Params[k] = v
	}
	return cfg, nil
}

// RunScenario executes the steps in order. saver may be nil, in which case
// nothing is persisted even for steps marked save.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, saver Saver, log *slog.Logger) ([]StepResult, error) {
	if log == nil {
		log = slog.Default()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		log.Info("scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "simulator", step.Simulator)

		cfg, err := stepConfig(step)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		exp, err := experiment.New(registry, cfg)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Step: step, Result: result}
		if step.Save && saver != nil {
			if sr.RunID, err = saver.Save(result); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

// MetricValue looks a name up in a result's final values, then in its
// summary metrics.
func MetricValue(result *experiment.Result, name string) (float64, bool) {
	if v, ok := result.Final[name]; ok {
		return v, true
	}
	v, ok := result.Metrics[name]
	return v, ok
}
