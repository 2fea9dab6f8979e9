package playground

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

// ClassStats are running per-feature moments for one class (Welford).
type ClassStats struct {
	Count int
	Mean  [2]float64
	M2    [2]float64
}

func (c *ClassStats) add(x, y float64) {
	c.Count++
	for f, v := range [2]float64{x, y} {
		d := v - c.Mean[f]
		c.Mean[f] += d / float64(c.Count)
		c.M2[f] += d * (v - c.Mean[f])
	}
}

func (c ClassStats) variance(f int) float64 {
	if c.Count < 2 {
		return 0
	}
	return c.M2[f] / float64(c.Count)
}

type BayesState struct {
	Params   ParamSet
	Points   []Sample
	Seen     int
	Classes  []ClassStats
	Accuracy float64
	// Smoothing is the variance floor added to every class.
	Smoothing float64
}

func (s BayesState) Clone() BayesState {
	s.Params = s.Params.Clone()
	s.Points = cloneSamples(s.Points)
	s.Classes = append([]ClassStats(nil), s.Classes...)
	return s
}

func (s BayesState) Values() map[string]float64 {
	return map[string]float64{
		"seen":      float64(s.Seen),
		"accuracy":  s.Accuracy,
		"smoothing": s.Smoothing,
	}
}

func (s BayesState) params() ParamSet { return s.Params }

// Variance is the smoothed variance of feature f in class c.
func (s BayesState) Variance(c, f int) float64 {
	return s.Classes[c].variance(f) + s.Smoothing
}

// Predict returns the class with the highest log posterior and its
// probability. Classes with no samples are skipped.
func (s BayesState) Predict(x, y float64) (int, float64) {
	logs := make([]float64, len(s.Classes))
	best, bestLog := -1, math.Inf(-1)
	total := 0
	for _, c := range s.Classes {
		total += c.Count
	}
	for c, st := range s.Classes {
		logs[c] = math.Inf(-1)
		if st.Count == 0 {
			continue
		}
		lp := math.Log(float64(st.Count) / float64(total))
		for f, v := range [2]float64{x, y} {
			vr := s.Variance(c, f)
			lp += -0.5*math.Log(2*math.Pi*vr) - sq(v-st.Mean[f])/(2*vr)
		}
		logs[c] = lp
		if lp > bestLog {
			best, bestLog = c, lp
		}
	}
	if best < 0 {
		return 0, 0
	}
	sum := 0.0
	for _, l := range logs {
		sum += math.Exp(l - bestLog)
	}
	return best, 1 / sum
}

var bayesParams = []Param{
	{Name: "var_smoothing", Description: "fraction of the largest variance added to all", Min: 1e-9, Max: 1, Step: 0.01, Default: 1e-3},
	{Name: "classes", Description: "number of classes", Min: 2, Max: 4, Step: 1, Default: 3, Rebuild: true},
	{Name: "points", Description: "number of points", Min: 10, Max: 300, Step: 10, Default: 90, Rebuild: true},
	{Name: "spread", Description: "class spread", Min: 0.1, Max: 3, Step: 0.1, Default: 1, Rebuild: true},
	{Name: "data_seed", Description: "seed for the generated points", Min: 0, Max: 9999, Step: 1, Default: 17, Rebuild: true},
}

// NaiveBayes absorbs one training point per tick into a Gaussian model.
type NaiveBayes struct {
	initial ParamSet
}

func NewNaiveBayes(overrides map[string]float64) (*NaiveBayes, error) {
	ps, err := resolve(bayesParams, overrides)
	if err != nil {
		return nil, err
	}
	return &NaiveBayes{initial: ps}, nil
}

func (b *NaiveBayes) Info() Info {
	return Info{
		Name:        "naive_bayes",
		Title:       "Gaussian Naive Bayes",
		Description: "class-conditional Gaussians updated one point at a time",
		Params:      bayesParams,
		Overlays:    []string{"posterior", "gaussians"},
		Metric:      "accuracy",
		Config:      engine.Config{Interval: 150 * time.Millisecond, MaxTicks: 300, Seed: 1},
	}
}

func (b *NaiveBayes) Defaults() BayesState { return b.build(b.initial.Clone()) }

func (b *NaiveBayes) build(ps ParamSet) BayesState {
	k := ps.Int("classes")
	rng := dataRNG(ps)
	pts := blobs(rng, ringCenters(k, 2.5), ps.Int("points"), ps["spread"])
	rng.Shuffle(len(pts), func(i, j int) { pts[i], pts[j] = pts[j], pts[i] })
	return BayesState{Params: ps, Points: pts, Classes: make([]ClassStats, k)}
}

func (b *NaiveBayes) Step(s BayesState, _ *rand.Rand) engine.Outcome[BayesState] {
	if s.Seen >= len(s.Points) {
		return engine.Ok(s)
	}
	p := s.Points[s.Seen]
	s.Classes[p.Label].add(p.X, p.Y)
	s.Seen++

	maxVar := 0.0
	for _, c := range s.Classes {
		maxVar = math.Max(maxVar, math.Max(c.variance(0), c.variance(1)))
	}
	s.Smoothing = s.Params["var_smoothing"] * maxVar
	if s.Smoothing == 0 {
		s.Smoothing = s.Params["var_smoothing"]
	}

	correct := 0
	for _, q := range s.Points[:s.Seen] {
		if c, _ := s.Predict(q.X, q.Y); c == q.Label {
			correct++
		}
	}
	s.Accuracy = float64(correct) / float64(s.Seen)

	for c, st := range s.Classes {
		if st.Count < 2 {
			return engine.Degenerate(s, fmt.Sprintf("class %d has fewer than two samples", c))
		}
	}
	return engine.Ok(s)
}

func (b *NaiveBayes) Done(s BayesState) bool { return s.Seen >= len(s.Points) }

func (b *NaiveBayes) Configure(s BayesState, name string, v float64) (BayesState, error) {
	ps, rebuild, err := configure(bayesParams, s.Params, name, v)
	if err != nil {
		return s, err
	}
	if rebuild {
		return b.build(ps), nil
	}
	s.Params = ps
	return s, nil
}

func (b *NaiveBayes) Frame(s BayesState, _ []BayesState, opts render.Options) *render.Frame {
	f := render.NewFrame(opts.Width, opts.Height, "Gaussian Naive Bayes")
	vp := render.Fit(samplePoints(s.Points), opts.Width, opts.Height)

	if opts.Overlay("posterior") && s.Seen > 0 {
		heatGrid(f, vp, 40, 26, func(x, y float64) (int, float64) {
			c, p := s.Predict(x, y)
			return c, p
		})
	}

	for i, p := range s.Points {
		x, y := vp.Map(p.X, p.Y)
		st := render.Style{Fill: render.ClassColor(p.Label), Class: "point"}
		if i >= s.Seen {
			st.Fill, st.Opacity = render.Muted, 0.5
		}
		f.Add(render.Circle(x, y, 3, st))
	}

	if opts.Overlay("gaussians") {
		for c, st := range s.Classes {
			if st.Count == 0 {
				continue
			}
			for _, k := range []float64{1, 2} {
				f.Add(render.Polyline(ellipse(vp, st.Mean, math.Sqrt(s.Variance(c, 0))*k, math.Sqrt(s.Variance(c, 1))*k),
					render.Style{Stroke: render.ClassColor(c), Width: 1.5, Dashed: k == 2, Class: "gaussian"}))
			}
		}
	}

	label(f, vp.Margin, 12, fmt.Sprintf("seen %d/%d  accuracy %.0f%%", s.Seen, len(s.Points), s.Accuracy*100))
	return f
}

// ellipse returns an axis-aligned ellipse outline in viewport space.
func ellipse(vp render.Viewport, center [2]float64, rx, ry float64) []render.Point {
	const segments = 48
	pts := make([]render.Point, segments+1)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / segments
		pts[i] = vp.MapPoint(render.Point{X: center[0] + rx*math.Cos(a), Y: center[1] + ry*math.Sin(a)})
	}
	return pts
}
