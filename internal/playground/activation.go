package playground

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

// ActivationFunc is an activation with its derivative.
type ActivationFunc struct {
	Name  string
	F     func(x, alpha float64) float64
	Deriv func(x, alpha float64) float64
}

var activations = []ActivationFunc{
	{
		Name: "sigmoid",
		F:    func(x, _ float64) float64 { return sigmoid(x) },
		Deriv: func(x, _ float64) float64 {
			s := sigmoid(x)
			return s * (1 - s)
		},
	},
	{
		Name:  "tanh",
		F:     func(x, _ float64) float64 { return math.Tanh(x) },
		Deriv: func(x, _ float64) float64 { return 1 - sq(math.Tanh(x)) },
	},
	{
		Name: "relu",
		F:    func(x, _ float64) float64 { return math.Max(0, x) },
		Deriv: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	},
	{
		Name: "leaky_relu",
		F: func(x, a float64) float64 {
			if x > 0 {
				return x
			}
			return a * x
		},
		Deriv: func(x, a float64) float64 {
			if x > 0 {
				return 1
			}
			return a
		},
	},
	{
		Name: "gelu",
		F:    func(x, _ float64) float64 { return 0.5 * x * (1 + math.Erf(x/math.Sqrt2)) },
		Deriv: func(x, _ float64) float64 {
			cdf := 0.5 * (1 + math.Erf(x/math.Sqrt2))
			pdf := math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
			return cdf + x*pdf
		},
	},
}

// ActivationNames lists the selectable functions in index order.
func ActivationNames() []string {
	out := make([]string, len(activations))
	for i, a := range activations {
		out[i] = a.Name
	}
	return out
}

const sweepMin, sweepMax = -6.0, 6.0

type ActivationState struct {
	Params ParamSet
	X      float64
	Y      float64
	DY     float64
}

func (s ActivationState) Clone() ActivationState {
	s.Params = s.Params.Clone()
	return s
}

func (s ActivationState) Values() map[string]float64 {
	return map[string]float64{"x": s.X, "y": s.Y, "dy": s.DY}
}

func (s ActivationState) params() ParamSet { return s.Params }

func (s ActivationState) Func() ActivationFunc { return activations[s.Params.Int("function")] }

var activationParams = []Param{
	{Name: "function", Description: "0 sigmoid, 1 tanh, 2 relu, 3 leaky_relu, 4 gelu", Min: 0, Max: 4, Step: 1, Default: 0, Rebuild: true},
	{Name: "speed", Description: "x advance per tick", Min: 0.05, Max: 1, Step: 0.05, Default: 0.25},
	{Name: "alpha", Description: "leaky relu slope", Min: 0, Max: 0.5, Step: 0.01, Default: 0.01},
}

// Activation sweeps x across [-6, 6] tracing an activation function.
type Activation struct {
	initial ParamSet
}

func NewActivation(overrides map[string]float64) (*Activation, error) {
	ps, err := resolve(activationParams, overrides)
	if err != nil {
		return nil, err
	}
	return &Activation{initial: ps}, nil
}

func (a *Activation) Info() Info {
	return Info{
		Name:        "activation",
		Title:       "Activation Functions",
		Description: "a point tracing an activation function and its derivative",
		Params:      activationParams,
		Overlays:    []string{"derivative", "all"},
		Metric:      "y",
		Config:      engine.Config{Interval: 100 * time.Millisecond, MaxTicks: 250, Seed: 1},
	}
}

func (a *Activation) Defaults() ActivationState { return a.build(a.initial.Clone()) }

func (a *Activation) build(ps ParamSet) ActivationState {
	s := ActivationState{Params: ps, X: sweepMin}
	a.measure(&s)
	return s
}

func (a *Activation) measure(s *ActivationState) {
	fn, alpha := s.Func(), s.Params["alpha"]
	s.Y, s.DY = fn.F(s.X, alpha), fn.Deriv(s.X, alpha)
}

func (a *Activation) Step(s ActivationState, _ *rand.Rand) engine.Outcome[ActivationState] {
	s.X = math.Min(sweepMax, s.X+s.Params["speed"])
	a.measure(&s)
	return engine.Ok(s)
}

func (a *Activation) Done(s ActivationState) bool { return s.X >= sweepMax }

func (a *Activation) Configure(s ActivationState, name string, v float64) (ActivationState, error) {
	ps, rebuild, err := configure(activationParams, s.Params, name, v)
	if err != nil {
		return s, err
	}
	if rebuild {
		return a.build(ps), nil
	}
	s.Params = ps
	a.measure(&s)
	return s, nil
}

func (a *Activation) Frame(s ActivationState, trail []ActivationState, opts render.Options) *render.Frame {
	fn, alpha := s.Func(), s.Params["alpha"]
	f := render.NewFrame(opts.Width, opts.Height, "Activation: "+fn.Name)
	vp := render.NewViewport(sweepMin, sweepMax, -1.5, 3, opts.Width, opts.Height)
	f.Add(vp.Axes()...)

	if opts.Overlay("all") {
		for i, other := range activations {
			if other.Name == fn.Name {
				continue
			}
			g := other
			f.Add(render.Polyline(curve(vp, sweepMin, sweepMax, 120, func(x float64) float64 { return g.F(x, alpha) }),
				render.Style{Stroke: render.ClassColor(i), Width: 1, Opacity: 0.35, Class: "other"}))
		}
	}

	f.Add(render.Polyline(curve(vp, sweepMin, sweepMax, 240, func(x float64) float64 { return fn.F(x, alpha) }),
		render.Style{Stroke: render.Muted, Width: 1.5, Class: "function"}))
	if opts.Overlay("derivative") {
		f.Add(render.Polyline(curve(vp, sweepMin, sweepMax, 240, func(x float64) float64 { return fn.Deriv(x, alpha) }),
			render.Style{Stroke: render.Warning, Width: 1, Dashed: true, Class: "derivative"}))
	}

	traced := make([]render.Point, 0, len(trail)+1)
	for _, t := range trail {
		traced = append(traced, vp.MapPoint(render.Point{X: t.X, Y: t.Y}))
	}
	traced = append(traced, vp.MapPoint(render.Point{X: s.X, Y: s.Y}))
	f.Add(render.Polyline(traced, render.Style{Stroke: render.Accent, Width: 2.5, Class: "trace"}))

	px, py := vp.Map(s.X, s.Y)
	f.Add(render.Circle(px, py, 5, render.Style{Fill: render.Highlight, Class: "position"}))
	label(f, vp.Margin, 12, fmt.Sprintf("x %.2f  f(x) %.3f  f'(x) %.3f", s.X, s.Y, s.DY))
	return f
}
