package playground

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

// supportTolerance widens the margin test so points sitting on it count.
const supportTolerance = 1e-3

// SVMState is a linear classifier w·x + b over labels 0 and 1, trained as
// -1 and +1.
type SVMState struct {
	Params         ParamSet
	Points         []Sample
	W              [2]float64
	B              float64
	T              int
	Epoch          int
	HingeLoss      float64
	Accuracy       float64
	SupportVectors []int
}

func (s SVMState) Clone() SVMState {
	s.Params = s.Params.Clone()
	s.Points = cloneSamples(s.Points)
	s.SupportVectors = cloneInts(s.SupportVectors)
	return s
}

func (s SVMState) Values() map[string]float64 {
	return map[string]float64{
		"epoch":           float64(s.Epoch),
		"w0":              s.W[0],
		"w1":              s.W[1],
		"b":               s.B,
		"hinge_loss":      s.HingeLoss,
		"accuracy":        s.Accuracy,
		"support_vectors": float64(len(s.SupportVectors)),
		"margin_width":    s.MarginWidth(),
	}
}

func (s SVMState) params() ParamSet { return s.Params }

func (s SVMState) decision(x, y float64) float64 { return s.W[0]*x + s.W[1]*y + s.B }

// MarginWidth is 2/|w|, or 0 before the classifier has a direction.
func (s SVMState) MarginWidth() float64 {
	n := math.Hypot(s.W[0], s.W[1])
	if n == 0 {
		return 0
	}
	return 2 / n
}

func signed(label int) float64 {
	if label == 1 {
		return 1
	}
	return -1
}

var svmParams = []Param{
	{Name: "lambda", Description: "regularization strength", Min: 0.0001, Max: 1, Step: 0.001, Default: 0.01},
	{Name: "batch", Description: "stochastic updates per tick", Min: 1, Max: 100, Step: 1, Default: 10},
	{Name: "points", Description: "number of points", Min: 10, Max: 200, Step: 10, Default: 40, Rebuild: true},
	{Name: "spread", Description: "class spread", Min: 0.1, Max: 2, Step: 0.1, Default: 0.6, Rebuild: true},
	{Name: "data_seed", Description: "seed for the generated points", Min: 0, Max: 9999, Step: 1, Default: 5, Rebuild: true},
}

// SVM trains a linear soft-margin SVM with Pegasos sub-gradient steps.
type SVM struct {
	initial ParamSet
}

func NewSVM(overrides map[string]float64) (*SVM, error) {
	ps, err := resolve(svmParams, overrides)
	if err != nil {
		return nil, err
	}
	return &SVM{initial: ps}, nil
}

func (m *SVM) Info() Info {
	return Info{
		Name:        "svm",
		Title:       "Support Vector Machine",
		Description: "a linear soft-margin classifier trained with Pegasos",
		Params:      svmParams,
		Overlays:    []string{"support_vectors", "margin"},
		Metric:      "hinge_loss",
		Config:      engine.Config{Interval: 250 * time.Millisecond, MaxTicks: 100, Seed: 1},
	}
}

func (m *SVM) Defaults() SVMState { return m.build(m.initial.Clone()) }

func (m *SVM) build(ps ParamSet) SVMState {
	centers := []render.Point{{X: -1.5, Y: -1}, {X: 1.5, Y: 1}}
	s := SVMState{Params: ps, Points: blobs(dataRNG(ps), centers, ps.Int("points"), ps["spread"])}
	m.measure(&s)
	return s
}

func (m *SVM) Step(s SVMState, rng *rand.Rand) engine.Outcome[SVMState] {
	n := len(s.Points)
	if n == 0 {
		return engine.Degenerate(s, "no training points")
	}
	lambda := s.Params["lambda"]
	for i := 0; i < s.Params.Int("batch"); i++ {
		s.T++
		eta := 1 / (lambda * float64(s.T))
		p := s.Points[rng.Intn(n)]
		y := signed(p.Label)
		shrink := 1 - eta*lambda
		// the bias is trained as a weight on a constant feature
		if y*s.decision(p.X, p.Y) < 1 {
			s.W[0] = shrink*s.W[0] + eta*y*p.X
			s.W[1] = shrink*s.W[1] + eta*y*p.Y
			s.B = shrink*s.B + eta*y
		} else {
			s.W[0] *= shrink
			s.W[1] *= shrink
			s.B *= shrink
		}
		// Pegasos projection onto the ball of radius 1/sqrt(lambda)
		if norm := math.Sqrt(s.W[0]*s.W[0] + s.W[1]*s.W[1] + s.B*s.B); norm > 1/math.Sqrt(lambda) {
			scale := 1 / (math.Sqrt(lambda) * norm)
			s.W[0] *= scale
			s.W[1] *= scale
			s.B *= scale
		}
	}
	s.Epoch++
	m.measure(&s)
	return engine.Ok(s)
}

func (m *SVM) measure(s *SVMState) {
	s.HingeLoss, s.Accuracy = 0, 0
	s.SupportVectors = s.SupportVectors[:0]
	if len(s.Points) == 0 {
		return
	}
	correct := 0
	for i, p := range s.Points {
		y := signed(p.Label)
		margin := y * s.decision(p.X, p.Y)
		s.HingeLoss += math.Max(0, 1-margin)
		if margin > 0 {
			correct++
		}
		if margin <= 1+supportTolerance {
			s.SupportVectors = append(s.SupportVectors, i)
		}
	}
	n := float64(len(s.Points))
	s.HingeLoss = s.HingeLoss/n + s.Params["lambda"]/2*(s.W[0]*s.W[0]+s.W[1]*s.W[1]+s.B*s.B)
	s.Accuracy = float64(correct) / n
}

func (m *SVM) Done(SVMState) bool { return false }

func (m *SVM) Configure(s SVMState, name string, v float64) (SVMState, error) {
	ps, rebuild, err := configure(svmParams, s.Params, name, v)
	if err != nil {
		return s, err
	}
	if rebuild {
		return m.build(ps), nil
	}
	s.Params = ps
	m.measure(&s)
	return s, nil
}

func (m *SVM) Frame(s SVMState, _ []SVMState, opts render.Options) *render.Frame {
	f := render.NewFrame(opts.Width, opts.Height, "Linear SVM")
	vp := render.Fit(samplePoints(s.Points), opts.Width, opts.Height)
	f.Add(vp.Axes()...)
	drawSamples(f, vp, s.Points, 3.5)

	if opts.Overlay("support_vectors") {
		for _, i := range s.SupportVectors {
			x, y := vp.Map(s.Points[i].X, s.Points[i].Y)
			f.Add(render.Circle(x, y, 7, render.Style{Stroke: render.Highlight, Width: 1.5, Class: "support-vector"}))
		}
	}

	f.Add(m.boundary(s, vp, 0, render.Style{Stroke: render.Foreground, Width: 2, Class: "boundary"})...)
	if opts.Overlay("margin") {
		st := render.Style{Stroke: render.Muted, Width: 1, Dashed: true, Class: "margin"}
		f.Add(m.boundary(s, vp, 1, st)...)
		f.Add(m.boundary(s, vp, -1, st)...)
	}

	label(f, vp.Margin, 12, fmt.Sprintf("epoch %d  loss %.3f  acc %.0f%%  sv %d",
		s.Epoch, s.HingeLoss, s.Accuracy*100, len(s.SupportVectors)))
	return f
}

// boundary draws the line w·x + b = level across the viewport. Nothing is
// drawn while w is zero.
func (m *SVM) boundary(s SVMState, vp render.Viewport, level float64, st render.Style) []render.Shape {
	w0, w1 := s.W[0], s.W[1]
	if w0 == 0 && w1 == 0 {
		return nil
	}
	var a, b render.Point
	if math.Abs(w1) >= math.Abs(w0) {
		a = render.Point{X: vp.MinX, Y: (level - s.B - w0*vp.MinX) / w1}
		b = render.Point{X: vp.MaxX, Y: (level - s.B - w0*vp.MaxX) / w1}
	} else {
		a = render.Point{X: (level - s.B - w1*vp.MinY) / w0, Y: vp.MinY}
		b = render.Point{X: (level - s.B - w1*vp.MaxY) / w0, Y: vp.MaxY}
	}
	pa, pb := vp.MapPoint(a), vp.MapPoint(b)
	return []render.Shape{render.Line(pa.X, pa.Y, pb.X, pb.Y, st)}
}
