package playground

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

// pivotTolerance is the smallest pivot Solve accepts.
const pivotTolerance = 1e-12

type RegressionState struct {
	Params         ParamSet
	Points         []render.Point
	Coef           []float64
	ClosedForm     []float64
	Singular       bool
	Iteration      int
	Loss           float64
	ClosedFormLoss float64
	GradNorm       float64
}

func (s RegressionState) Clone() RegressionState {
	s.Params = s.Params.Clone()
	s.Points = append([]render.Point(nil), s.Points...)
	s.Coef = cloneFloats(s.Coef)
	s.ClosedForm = cloneFloats(s.ClosedForm)
	return s
}

func (s RegressionState) Values() map[string]float64 {
	singular := 0.0
	if s.Singular {
		singular = 1
	}
	return map[string]float64{
		"iteration":        float64(s.Iteration),
		"loss":             s.Loss,
		"closed_form_loss": s.ClosedFormLoss,
		"grad_norm":        s.GradNorm,
		"singular":         singular,
	}
}

func (s RegressionState) params() ParamSet { return s.Params }

// Poly evaluates coefficients c (constant first) at x.
func Poly(c []float64, x float64) float64 {
	y := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		y = y*x + c[i]
	}
	return y
}

var regressionParams = []Param{
	{Name: "learning_rate", Description: "step size", Min: 0.001, Max: 0.5, Step: 0.01, Default: 0.1},
	{Name: "degree", Description: "polynomial degree", Min: 1, Max: 9, Step: 1, Default: 3, Rebuild: true},
	{Name: "points", Description: "number of samples", Min: 2, Max: 100, Step: 1, Default: 20, Rebuild: true},
	{Name: "noise", Description: "sample noise", Min: 0, Max: 1, Step: 0.05, Default: 0.15, Rebuild: true},
	{Name: "data_seed", Description: "seed for the samples", Min: 0, Max: 9999, Step: 1, Default: 23, Rebuild: true},
}

// Regression fits a polynomial to noisy sin(pi x) samples by gradient descent.
type Regression struct {
	initial ParamSet
}

func NewRegression(overrides map[string]float64) (*Regression, error) {
	ps, err := resolve(regressionParams, overrides)
	if err != nil {
		return nil, err
	}
	return &Regression{initial: ps}, nil
}

func (r *Regression) Info() Info {
	return Info{
		Name:        "regression",
		Title:       "Polynomial Regression",
		Description: "gradient steps on polynomial coefficients, compared with the closed form",
		Params:      regressionParams,
		Overlays:    []string{"closed_form", "truth", "residuals"},
		Metric:      "loss",
		Config:      engine.Config{Interval: 100 * time.Millisecond, MaxTicks: 300, Seed: 1},
	}
}

func (r *Regression) Defaults() RegressionState { return r.build(r.initial.Clone()) }

func (r *Regression) build(ps ParamSet) RegressionState {
	rng := dataRNG(ps)
	n, d := ps.Int("points"), ps.Int("degree")
	s := RegressionState{Params: ps, Points: make([]render.Point, n), Coef: make([]float64, d+1)}
	for i := range s.Points {
		x := -1 + 2*rng.Float64()
		s.Points[i] = render.Point{X: x, Y: math.Sin(math.Pi*x) + ps["noise"]*rng.NormFloat64()}
	}

	// a degree-d design needs d+1 distinct abscissae to have full rank
	A, b := normalEquations(s.Points, d)
	if c, ok := Solve(A, b); ok && distinct(s.Points) > d {
		s.ClosedForm = c
		s.ClosedFormLoss = mse(s.Points, c)
	} else {
		s.Singular = true
	}
	s.Loss = mse(s.Points, s.Coef)
	s.GradNorm = norm(gradient(s.Points, s.Coef))
	return s
}

func (r *Regression) Step(s RegressionState, _ *rand.Rand) engine.Outcome[RegressionState] {
	g := gradient(s.Points, s.Coef)
	lr := s.Params["learning_rate"]
	for i := range s.Coef {
		s.Coef[i] -= lr * g[i]
	}
	s.Iteration++
	s.Loss = mse(s.Points, s.Coef)
	s.GradNorm = norm(gradient(s.Points, s.Coef))
	if s.Singular {
		return engine.Degenerate(s, "normal equations are singular")
	}
	return engine.Ok(s)
}

func (r *Regression) Done(s RegressionState) bool { return s.GradNorm < gradTolerance }

func (r *Regression) Configure(s RegressionState, name string, v float64) (RegressionState, error) {
	ps, rebuild, err := configure(regressionParams, s.Params, name, v)
	if err != nil {
		return s, err
	}
	if rebuild {
		return r.build(ps), nil
	}
	s.Params = ps
	return s, nil
}

func (r *Regression) Frame(s RegressionState, _ []RegressionState, opts render.Options) *render.Frame {
	f := render.NewFrame(opts.Width, opts.Height, "Polynomial Regression")
	vp := render.NewViewport(-1.1, 1.1, -2, 2, opts.Width, opts.Height)
	f.Add(vp.Axes()...)

	if opts.Overlay("truth") {
		f.Add(render.Polyline(curve(vp, -1, 1, 120, func(x float64) float64 { return math.Sin(math.Pi * x) }),
			render.Style{Stroke: render.Muted, Width: 1, Dashed: true, Class: "truth"}))
	}
	if opts.Overlay("residuals") {
		for _, p := range s.Points {
			x1, y1 := vp.Map(p.X, p.Y)
			x2, y2 := vp.Map(p.X, Poly(s.Coef, p.X))
			f.Add(render.Line(x1, y1, x2, y2, render.Style{Stroke: render.Danger, Width: 1, Opacity: 0.6, Class: "residual"}))
		}
	}
	for _, p := range s.Points {
		x, y := vp.Map(p.X, p.Y)
		f.Add(render.Circle(x, y, 3.5, render.Style{Fill: render.Foreground, Class: "point"}))
	}

	clip := func(fn func(float64) float64) func(float64) float64 {
		return func(x float64) float64 { return math.Max(-2, math.Min(2, fn(x))) }
	}
	f.Add(render.Polyline(curve(vp, -1, 1, 160, clip(func(x float64) float64 { return Poly(s.Coef, x) })),
		render.Style{Stroke: render.Accent, Width: 2, Class: "fit"}))

	if opts.Overlay("closed_form") {
		if s.Singular {
			label(f, vp.Margin, 28, "closed form: singular system")
		} else {
			f.Add(render.Polyline(curve(vp, -1, 1, 160, clip(func(x float64) float64 { return Poly(s.ClosedForm, x) })),
				render.Style{Stroke: render.Success, Width: 1.5, Dashed: true, Class: "closed-form"}))
		}
	}

	label(f, vp.Margin, 12, fmt.Sprintf("degree %d  iter %d  mse %.4f  (closed form %.4f)",
		s.Params.Int("degree"), s.Iteration, s.Loss, s.ClosedFormLoss))
	return f
}

// gradient of the mean squared error with respect to the coefficients.
func gradient(pts []render.Point, c []float64) []float64 {
	g := make([]float64, len(c))
	if len(pts) == 0 {
		return g
	}
	for _, p := range pts {
		res := Poly(c, p.X) - p.Y
		xk := 1.0
		for k := range g {
			g[k] += 2 * res * xk
			xk *= p.X
		}
	}
	for k := range g {
		g[k] /= float64(len(pts))
	}
	return g
}

func distinct(pts []render.Point) int {
	seen := make(map[float64]struct{}, len(pts))
	for _, p := range pts {
		seen[p.X] = struct{}{}
	}
	return len(seen)
}

func mse(pts []render.Point, c []float64) float64 {
	if len(pts) == 0 {
		return 0
	}
	var ss float64
	for _, p := range pts {
		ss += sq(Poly(c, p.X) - p.Y)
	}
	return ss / float64(len(pts))
}

func norm(v []float64) float64 {
	var ss float64
	for _, x := range v {
		ss += x * x
	}
	return math.Sqrt(ss)
}

// normalEquations builds XᵀX and Xᵀy for a degree-d polynomial design.
func normalEquations(pts []render.Point, d int) ([][]float64, []float64) {
	A := make([][]float64, d+1)
	for i := range A {
		A[i] = make([]float64, d+1)
	}
	b := make([]float64, d+1)
	pow := make([]float64, 2*d+1)
	for _, p := range pts {
		pow[0] = 1
		for k := 1; k < len(pow); k++ {
			pow[k] = pow[k-1] * p.X
		}
		for i := 0; i <= d; i++ {
			b[i] += pow[i] * p.Y
			for j := 0; j <= d; j++ {
				A[i][j] += pow[i+j]
			}
		}
	}
	return A, b
}

// Solve solves A x = b by Gaussian elimination with partial pivoting. It
// reports false when A is singular. A and b are not modified.
func Solve(A [][]float64, b []float64) ([]float64, bool) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = append(cloneFloats(A[i]), b[i])
	}

	// scale the tolerance with the matrix so tiny data is not called singular
	scale := 0.0
	for i := range m {
		for j := 0; j < n; j++ {
			scale = math.Max(scale, math.Abs(m[i][j]))
		}
	}
	tol := pivotTolerance * math.Max(1, scale)

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < tol {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := col + 1; r < n; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := m[i][n]
		for j := i + 1; j < n; j++ {
			sum -= m[i][j] * x[j]
		}
		x[i] = sum / m[i][i]
	}
	return x, true
}
