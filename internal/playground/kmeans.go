package playground

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

// Phase is the k-means half-step the next tick performs.
type Phase int

const (
	AssignPhase Phase = iota
	UpdatePhase
)

func (p Phase) String() string {
	if p == AssignPhase {
		return "assign"
	}
	return "update"
}

// KMeansState holds the points, their cluster labels and the centroids.
// Points has its Label field set to the assigned cluster, -1 before the
// first assign.
type KMeansState struct {
	Params    ParamSet
	Points    []Sample
	Centroids []render.Point
	Phase     Phase
	Changed   int
	Inertia   float64
	Iteration int
	Converged bool
	Empty     []int
}

func (s KMeansState) Clone() KMeansState {
	s.Params = s.Params.Clone()
	s.Points = cloneSamples(s.Points)
	s.Centroids = append([]render.Point(nil), s.Centroids...)
	s.Empty = cloneInts(s.Empty)
	return s
}

func (s KMeansState) Values() map[string]float64 {
	return map[string]float64{
		"iteration":      float64(s.Iteration),
		"inertia":        s.Inertia,
		"changed":        float64(s.Changed),
		"empty_clusters": float64(len(s.Empty)),
		"phase":          float64(s.Phase),
	}
}

func (s KMeansState) params() ParamSet { return s.Params }

var kmeansParams = []Param{
	{Name: "k", Description: "number of clusters", Min: 1, Max: 6, Step: 1, Default: 3, Rebuild: true},
	{Name: "points", Description: "number of points", Min: 10, Max: 300, Step: 10, Default: 60, Rebuild: true},
	{Name: "spread", Description: "blob standard deviation", Min: 0.1, Max: 3, Step: 0.1, Default: 0.8, Rebuild: true},
	{Name: "data_seed", Description: "seed for the generated points", Min: 0, Max: 9999, Step: 1, Default: 7, Rebuild: true},
}

// KMeans runs Lloyd's algorithm one half-step per tick.
type KMeans struct {
	initial ParamSet
	// fixed data, when set, replaces the generated blobs
	points    []Sample
	centroids []render.Point
}

func NewKMeans(overrides map[string]float64) (*KMeans, error) {
	ps, err := resolve(kmeansParams, overrides)
	if err != nil {
		return nil, err
	}
	return &KMeans{initial: ps}, nil
}

// NewKMeansWith runs on fixed points and starting centroids.
func NewKMeansWith(points, centroids []render.Point) *KMeans {
	ps, _ := resolve(kmeansParams, nil)
	ps["k"] = float64(len(centroids))
	ps["points"] = float64(len(points))
	km := &KMeans{initial: ps, centroids: append([]render.Point(nil), centroids...)}
	km.points = make([]Sample, len(points))
	for i, p := range points {
		km.points[i] = Sample{X: p.X, Y: p.Y, Label: -1}
	}
	return km
}

func (k *KMeans) Info() Info {
	return Info{
		Name:        "kmeans",
		Title:       "K-Means Clustering",
		Description: "alternating assign and update steps on blob data",
		Params:      kmeansParams,
		Overlays:    []string{"voronoi", "paths"},
		Metric:      "inertia",
		Config:      engine.Config{Interval: 600 * time.Millisecond, MaxTicks: 20, Seed: 1},
	}
}

func (k *KMeans) Defaults() KMeansState { return k.build(k.initial.Clone()) }

func (k *KMeans) build(ps ParamSet) KMeansState {
	s := KMeansState{Params: ps}
	if k.points != nil {
		s.Points = cloneSamples(k.points)
		s.Centroids = append([]render.Point(nil), k.centroids...)
		return s
	}

	rng := dataRNG(ps)
	n, kk := ps.Int("points"), ps.Int("k")
	// the true blob count is fixed so changing k shows under and over fitting
	s.Points = blobs(rng, ringCenters(3, 3), n, ps["spread"])
	for i := range s.Points {
		s.Points[i].Label = -1
	}
	// Forgy init: k distinct points picked by the data seed
	perm := rng.Perm(n)
	s.Centroids = make([]render.Point, kk)
	for i := range s.Centroids {
		p := s.Points[perm[i%n]]
		s.Centroids[i] = render.Point{X: p.X, Y: p.Y}
	}
	return s
}

func (k *KMeans) Step(s KMeansState, _ *rand.Rand) engine.Outcome[KMeansState] {
	if len(s.Centroids) == 0 {
		return engine.Degenerate(s, "no centroids")
	}
	if s.Phase == AssignPhase {
		k.assign(&s)
		s.Phase = UpdatePhase
		return engine.Ok(s)
	}

	s.Empty = k.update(&s)
	s.Phase = AssignPhase
	s.Iteration++
	if len(s.Empty) > 0 {
		return engine.Degenerate(s, fmt.Sprintf("cluster %d is empty", s.Empty[0]))
	}
	return engine.Ok(s)
}

func (k *KMeans) assign(s *KMeansState) {
	s.Changed = 0
	s.Inertia = 0
	for i, p := range s.Points {
		best, bestD := 0, math.Inf(1)
		for c, ctr := range s.Centroids {
			d := sq(p.X-ctr.X) + sq(p.Y-ctr.Y)
			if d < bestD {
				best, bestD = c, d
			}
		}
		if p.Label != best {
			s.Changed++
		}
		s.Points[i].Label = best
		s.Inertia += bestD
	}
	if s.Changed == 0 {
		s.Converged = true
	}
}

// update moves every centroid to the mean of its points and returns the
// clusters that had none; those keep their previous position.
func (k *KMeans) update(s *KMeansState) []int {
	sums := make([]render.Point, len(s.Centroids))
	counts := make([]int, len(s.Centroids))
	for _, p := range s.Points {
		if p.Label < 0 || p.Label >= len(sums) {
			continue
		}
		sums[p.Label].X += p.X
		sums[p.Label].Y += p.Y
		counts[p.Label]++
	}
	var empty []int
	for c := range s.Centroids {
		if counts[c] == 0 {
			empty = append(empty, c)
			continue
		}
		s.Centroids[c] = render.Point{X: sums[c].X / float64(counts[c]), Y: sums[c].Y / float64(counts[c])}
	}
	return empty
}

func (k *KMeans) Done(s KMeansState) bool { return s.Converged }

func (k *KMeans) Configure(s KMeansState, name string, v float64) (KMeansState, error) {
	ps, rebuild, err := configure(kmeansParams, s.Params, name, v)
	if err != nil {
		return s, err
	}
	if rebuild {
		if k.points != nil {
			return s, fmt.Errorf("%w: %s is fixed by the supplied points", engine.ErrInvalidConfig, name)
		}
		return k.build(ps), nil
	}
	s.Params = ps
	return s, nil
}

func (k *KMeans) Frame(s KMeansState, trail []KMeansState, opts render.Options) *render.Frame {
	f := render.NewFrame(opts.Width, opts.Height, "K-Means")
	pts := samplePoints(s.Points)
	pts = append(pts, s.Centroids...)
	vp := render.Fit(pts, opts.Width, opts.Height)

	if opts.Overlay("voronoi") {
		heatGrid(f, vp, 40, 26, func(x, y float64) (int, float64) {
			best, bestD := 0, math.Inf(1)
			for c, ctr := range s.Centroids {
				if d := sq(x-ctr.X) + sq(y-ctr.Y); d < bestD {
					best, bestD = c, d
				}
			}
			return best, 0.2
		})
	}

	drawSamples(f, vp, s.Points, 3)

	if opts.Overlay("paths") && len(trail) > 0 {
		for c := range s.Centroids {
			path := make([]render.Point, 0, len(trail))
			for _, t := range trail {
				if c < len(t.Centroids) {
					path = append(path, vp.MapPoint(t.Centroids[c]))
				}
			}
			f.Add(render.Polyline(path, render.Style{Stroke: render.ClassColor(c), Width: 1, Dashed: true, Class: "centroid-path"}))
		}
	}

	empty := make(map[int]bool, len(s.Empty))
	for _, c := range s.Empty {
		empty[c] = true
	}
	for c, ctr := range s.Centroids {
		x, y := vp.Map(ctr.X, ctr.Y)
		st := render.Style{Stroke: render.ClassColor(c), Width: 2.5, Class: "centroid"}
		if empty[c] {
			st.Stroke, st.Dashed = render.Muted, true
		}
		f.Add(
			render.Circle(x, y, 8, st),
			render.Line(x-5, y, x+5, y, st),
			render.Line(x, y-5, x, y+5, st),
		)
	}

	status := fmt.Sprintf("iter %d  next %s  inertia %.3g", s.Iteration, s.Phase, s.Inertia)
	if s.Converged {
		status += "  converged"
	}
	label(f, vp.Margin, 12, status)
	return f
}
