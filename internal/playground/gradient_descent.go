package playground

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/optim"
	"github.com/san-kum/mlplay/internal/render"
)

type surface struct {
	name   string
	f      func(x, y float64) float64
	grad   func(x, y float64) (float64, float64)
	min    render.Point
	lo, hi render.Point
}

var surfaces = []surface{
	{
		name: "bowl",
		f:    func(x, y float64) float64 { return x*x + y*y },
		grad: func(x, y float64) (float64, float64) { return 2 * x, 2 * y },
		lo:   render.Point{X: -4, Y: -4}, hi: render.Point{X: 4, Y: 4},
	},
	{
		name: "elongated",
		f:    func(x, y float64) float64 { return x*x + 10*y*y },
		grad: func(x, y float64) (float64, float64) { return 2 * x, 20 * y },
		lo:   render.Point{X: -4, Y: -4}, hi: render.Point{X: 4, Y: 4},
	},
	{
		name: "rosenbrock",
		f:    func(x, y float64) float64 { return sq(1-x) + 100*sq(y-x*x) },
		grad: func(x, y float64) (float64, float64) {
			return -2*(1-x) - 400*x*(y-x*x), 200 * (y - x*x)
		},
		min: render.Point{X: 1, Y: 1},
		lo:  render.Point{X: -2, Y: -1}, hi: render.Point{X: 3.5, Y: 4},
	},
}

// optimizers are selectable by index through the optimizer param.
var optimizers = []string{"sgd", "momentum", "rmsprop", "adam"}

const (
	gradTolerance = 1e-6
	divergeLimit  = 1e6
)

// GradientState is a point on the loss surface plus optimizer memory.
type GradientState struct {
	Params    ParamSet
	X, Y      float64
	Loss      float64
	GradNorm  float64
	Iteration int
	Diverged  bool
	Memory    optim.Memory
}

func (s GradientState) Clone() GradientState {
	s.Params = s.Params.Clone()
	s.Memory = s.Memory.Clone()
	return s
}

func (s GradientState) Values() map[string]float64 {
	return map[string]float64{
		"x":             s.X,
		"y":             s.Y,
		"loss":          s.Loss,
		"grad_norm":     s.GradNorm,
		"iteration":     float64(s.Iteration),
		"learning_rate": s.Params["learning_rate"],
	}
}

func (s GradientState) params() ParamSet { return s.Params }

// Surface names the loss surface the state is on.
func (s GradientState) Surface() string { return surfaces[s.Params.Int("surface")].name }

// Optimizer names the update rule in use.
func (s GradientState) Optimizer() string { return optimizers[s.Params.Int("optimizer")] }

// GradientDescent walks an optimizer over a fixed 2D loss surface.
type GradientDescent struct {
	initial ParamSet
}

func NewGradientDescent(overrides map[string]float64) (*GradientDescent, error) {
	ps, err := resolve(gradientParams, overrides)
	if err != nil {
		return nil, err
	}
	return &GradientDescent{initial: ps}, nil
}

var gradientParams = []Param{
	{Name: "learning_rate", Description: "step size", Min: 0.001, Max: 1, Step: 0.01, Default: 0.1},
	{Name: "x0", Description: "start x", Min: -3.5, Max: 3.5, Step: 0.1, Default: 3, Rebuild: true},
	{Name: "y0", Description: "start y", Min: -3.5, Max: 3.5, Step: 0.1, Default: 3, Rebuild: true},
	{Name: "surface", Description: "0 bowl, 1 elongated, 2 rosenbrock", Min: 0, Max: 2, Step: 1, Default: 0, Rebuild: true},
	{Name: "optimizer", Description: "0 sgd, 1 momentum, 2 rmsprop, 3 adam", Min: 0, Max: 3, Step: 1, Default: 0, Rebuild: true},
}

func (g *GradientDescent) Info() Info {
	return Info{
		Name:        "gradient_descent",
		Title:       "Gradient Descent",
		Description: "an optimizer stepping downhill on a 2D loss surface",
		Params:      gradientParams,
		Overlays:    []string{"gradient", "minimum"},
		Metric:      "loss",
		Config:      engine.Config{Interval: 300 * time.Millisecond, MaxTicks: 50, Seed: 1},
	}
}

func (g *GradientDescent) Defaults() GradientState { return g.build(g.initial.Clone()) }

func (g *GradientDescent) build(ps ParamSet) GradientState {
	s := GradientState{Params: ps, X: ps["x0"], Y: ps["y0"]}
	g.measure(&s)
	return s
}

func (g *GradientDescent) measure(s *GradientState) {
	sf := surfaces[s.Params.Int("surface")]
	s.Loss = sf.f(s.X, s.Y)
	gx, gy := sf.grad(s.X, s.Y)
	s.GradNorm = math.Hypot(gx, gy)
}

func (g *GradientDescent) Step(s GradientState, _ *rand.Rand) engine.Outcome[GradientState] {
	sf := surfaces[s.Params.Int("surface")]
	opt, err := optim.New(s.Optimizer())
	if err != nil {
		return engine.Degenerate(s, err.Error())
	}

	gx, gy := sf.grad(s.X, s.Y)
	next, mem := opt.Update([]float64{s.X, s.Y}, []float64{gx, gy}, s.Params["learning_rate"], s.Memory)
	loss := sf.f(next[0], next[1])
	if math.IsNaN(loss) || math.IsInf(loss, 0) || loss > divergeLimit {
		s.Diverged = true
		return engine.Degenerate(s, "loss diverged, lower the learning rate")
	}

	s.X, s.Y, s.Memory = next[0], next[1], mem
	s.Iteration++
	g.measure(&s)
	return engine.Ok(s)
}

func (g *GradientDescent) Done(s GradientState) bool {
	return s.Diverged || s.GradNorm < gradTolerance
}

func (g *GradientDescent) Configure(s GradientState, name string, v float64) (GradientState, error) {
	ps, rebuild, err := configure(gradientParams, s.Params, name, v)
	if err != nil {
		return s, err
	}
	if rebuild {
		return g.build(ps), nil
	}
	// a new learning rate gets another try from where the run stopped
	s.Params = ps
	s.Diverged = false
	g.measure(&s)
	return s, nil
}

func (g *GradientDescent) Frame(s GradientState, trail []GradientState, opts render.Options) *render.Frame {
	sf := surfaces[s.Params.Int("surface")]
	f := render.NewFrame(opts.Width, opts.Height, "Gradient Descent: "+sf.name)
	vp := render.NewViewport(sf.lo.X, sf.hi.X, sf.lo.Y, sf.hi.Y, opts.Width, opts.Height)

	// loss heat map, log scaled
	maxLog := math.Log1p(math.Max(sf.f(sf.lo.X, sf.lo.Y), sf.f(sf.hi.X, sf.hi.Y)))
	heatGrid(f, vp, 32, 20, func(x, y float64) (int, float64) {
		return 1, 1 - math.Log1p(sf.f(x, y))/maxLog
	})
	f.Add(vp.Axes()...)

	path := make([]render.Point, 0, len(trail)+2)
	path = append(path, vp.MapPoint(render.Point{X: s.Params["x0"], Y: s.Params["y0"]}))
	for _, t := range trail {
		path = append(path, vp.MapPoint(render.Point{X: t.X, Y: t.Y}))
	}
	path = append(path, vp.MapPoint(render.Point{X: s.X, Y: s.Y}))
	f.Add(render.Polyline(path, render.Style{Stroke: render.Highlight, Width: 1.5, Class: "path"}))

	sx, sy := vp.Map(s.Params["x0"], s.Params["y0"])
	f.Add(render.Circle(sx, sy, 3, render.Style{Stroke: render.Muted, Class: "start"}))
	px, py := vp.Map(s.X, s.Y)
	f.Add(render.Circle(px, py, 5, render.Style{Fill: render.Highlight, Stroke: render.Foreground, Class: "position"}))

	if opts.Overlay("minimum") {
		mx, my := vp.Map(sf.min.X, sf.min.Y)
		f.Add(render.Circle(mx, my, 4, render.Style{Stroke: render.Success, Width: 2, Class: "minimum"}))
	}
	if opts.Overlay("gradient") && s.GradNorm > 0 {
		gx, gy := sf.grad(s.X, s.Y)
		// draw the descent direction with a fixed on-screen length
		l := 30 / s.GradNorm
		f.Add(render.Line(px, py, px-gx*l, py+gy*l, render.Style{Stroke: render.Danger, Width: 2, Class: "gradient"}))
	}

	label(f, vp.Margin, 12, fmt.Sprintf("%s  iter %d  loss %.4g  lr %.3g",
		s.Optimizer(), s.Iteration, s.Loss, s.Params["learning_rate"]))
	return f
}
