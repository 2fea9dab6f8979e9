package playground

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/mlplay/internal/engine"
)

// Param declares one tunable value and its bounds.
type Param struct {
	Name        string
	Description string
	Min, Max    float64
	Step        float64
	Default     float64
	// Rebuild marks params that change the generated data; setting one
	// regenerates the state instead of patching it.
	Rebuild bool
}

// Clamp pulls v into [Min, Max] and snaps integral params to whole numbers.
func (p Param) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return p.Default
	}
	v = math.Max(p.Min, math.Min(p.Max, v))
	if p.Step >= 1 {
		v = math.Round(v)
	}
	return v
}

// ParamSet holds resolved param values.
type ParamSet map[string]float64

func (ps ParamSet) Clone() ParamSet {
	out := make(ParamSet, len(ps))
	for k, v := range ps {
		out[k] = v
	}
	return out
}

func (ps ParamSet) Int(name string) int { return int(math.Round(ps[name])) }

func (ps ParamSet) Bool(name string) bool { return ps[name] != 0 }

// Names returns the param names in sorted order.
func (ps ParamSet) Names() []string {
	names := make([]string, 0, len(ps))
	for k := range ps {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func findParam(specs []Param, name string) (Param, bool) {
	for _, p := range specs {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// resolve builds a ParamSet from the declared defaults and overrides.
func resolve(specs []Param, overrides map[string]float64) (ParamSet, error) {
	ps := make(ParamSet, len(specs))
	for _, p := range specs {
		ps[p.Name] = p.Default
	}
	for name, v := range overrides {
		p, ok := findParam(specs, name)
		if !ok {
			return nil, &ParamError{Name: name}
		}
		ps[name] = p.Clamp(v)
	}
	return ps, nil
}

// ParamError reports a param name the simulator does not declare.
type ParamError struct {
	Name string
}

func (e *ParamError) Error() string { return fmt.Sprintf("playground: unknown param: %s", e.Name) }

func (e *ParamError) Unwrap() error { return engine.ErrUnknownParam }

// Info describes a simulator for listings and UIs.
type Info struct {
	Name        string
	Title       string
	Description string
	Params      []Param
	Overlays    []string
	// Metric is the value name headless runs report and sweeps optimize.
	Metric string
	Config engine.Config
}

func (i Info) Param(name string) (Param, bool) { return findParam(i.Params, name) }
