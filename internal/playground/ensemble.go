package playground

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

// Stump is a depth-1 tree: predict Above when the feature exceeds Threshold.
type Stump struct {
	Feature   int
	Threshold float64
	Above     int
}

func (st Stump) Predict(x, y float64) int {
	v := x
	if st.Feature == 1 {
		v = y
	}
	if v > st.Threshold {
		return st.Above
	}
	return 1 - st.Above
}

type EnsembleState struct {
	Params ParamSet
	Points []Sample
	Stumps []Stump
	// Bag counts how often each point was drawn for the newest stump.
	Bag         []int
	EnsembleAcc float64
	StumpAcc    float64
}

func (s EnsembleState) Clone() EnsembleState {
	s.Params = s.Params.Clone()
	s.Points = cloneSamples(s.Points)
	s.Stumps = append([]Stump(nil), s.Stumps...)
	s.Bag = cloneInts(s.Bag)
	return s
}

func (s EnsembleState) Values() map[string]float64 {
	return map[string]float64{
		"members":           float64(len(s.Stumps)),
		"ensemble_accuracy": s.EnsembleAcc,
		"stump_accuracy":    s.StumpAcc,
	}
}

func (s EnsembleState) params() ParamSet { return s.Params }

// Vote returns the majority label and the winning vote share.
func (s EnsembleState) Vote(x, y float64) (int, float64) {
	if len(s.Stumps) == 0 {
		return 0, 0
	}
	ones := 0
	for _, st := range s.Stumps {
		ones += st.Predict(x, y)
	}
	share := float64(ones) / float64(len(s.Stumps))
	if share >= 0.5 {
		return 1, share
	}
	return 0, 1 - share
}

var ensembleParams = []Param{
	{Name: "members", Description: "stumps in the bag", Min: 1, Max: 100, Step: 1, Default: 25},
	{Name: "sample_ratio", Description: "bootstrap size relative to the data", Min: 0.1, Max: 1, Step: 0.1, Default: 1},
	{Name: "points", Description: "number of points", Min: 20, Max: 300, Step: 10, Default: 100, Rebuild: true},
	{Name: "noise", Description: "point jitter", Min: 0, Max: 0.5, Step: 0.05, Default: 0.2, Rebuild: true},
	{Name: "data_seed", Description: "seed for the generated points", Min: 0, Max: 9999, Step: 1, Default: 13, Rebuild: true},
}

// Ensemble bags decision stumps, adding one bootstrap member per tick.
type Ensemble struct {
	initial ParamSet
}

func NewEnsemble(overrides map[string]float64) (*Ensemble, error) {
	ps, err := resolve(ensembleParams, overrides)
	if err != nil {
		return nil, err
	}
	return &Ensemble{initial: ps}, nil
}

func (e *Ensemble) Info() Info {
	return Info{
		Name:        "ensemble",
		Title:       "Bagging Ensemble",
		Description: "bootstrap-aggregated decision stumps versus a single stump",
		Params:      ensembleParams,
		Overlays:    []string{"votes", "bootstrap", "stumps"},
		Metric:      "ensemble_accuracy",
		Config:      engine.Config{Interval: 400 * time.Millisecond, MaxTicks: 100, Seed: 1},
	}
}

func (e *Ensemble) Defaults() EnsembleState { return e.build(e.initial.Clone()) }

func (e *Ensemble) build(ps ParamSet) EnsembleState {
	return EnsembleState{Params: ps, Points: moons(dataRNG(ps), ps.Int("points"), ps["noise"])}
}

func (e *Ensemble) Step(s EnsembleState, rng *rand.Rand) engine.Outcome[EnsembleState] {
	n := len(s.Points)
	if n == 0 {
		return engine.Degenerate(s, "no training points")
	}
	size := max(1, int(math.Round(float64(n)*s.Params["sample_ratio"])))
	s.Bag = make([]int, n)
	idx := make([]int, size)
	for i := range idx {
		idx[i] = rng.Intn(n)
		s.Bag[idx[i]]++
	}

	st := fitStump(s.Points, idx)
	s.Stumps = append(s.Stumps, st)

	ensembleCorrect, stumpCorrect := 0, 0
	for _, p := range s.Points {
		if v, _ := s.Vote(p.X, p.Y); v == p.Label {
			ensembleCorrect++
		}
		if st.Predict(p.X, p.Y) == p.Label {
			stumpCorrect++
		}
	}
	s.EnsembleAcc = float64(ensembleCorrect) / float64(n)
	s.StumpAcc = float64(stumpCorrect) / float64(n)
	return engine.Ok(s)
}

// fitStump picks the threshold and polarity with the fewest errors on idx.
func fitStump(samples []Sample, idx []int) Stump {
	best, bestErr := Stump{}, math.MaxInt
	sorted := append([]int(nil), idx...)
	for feat := 0; feat < 2; feat++ {
		value := func(i int) float64 {
			if feat == 0 {
				return samples[i].X
			}
			return samples[i].Y
		}
		sort.Slice(sorted, func(a, b int) bool { return value(sorted[a]) < value(sorted[b]) })

		// errAbove1 counts errors when points above the cut predict 1
		errAbove1 := 0
		for _, i := range sorted {
			if samples[i].Label == 0 {
				errAbove1++
			}
		}
		consider := func(threshold float64, errs int) {
			if errs < bestErr {
				best, bestErr = Stump{Feature: feat, Threshold: threshold, Above: 1}, errs
			}
			if flipped := len(sorted) - errs; flipped < bestErr {
				best, bestErr = Stump{Feature: feat, Threshold: threshold, Above: 0}, flipped
			}
		}
		consider(value(sorted[0])-1e-9, errAbove1)
		for k := 0; k < len(sorted)-1; k++ {
			if samples[sorted[k]].Label == 0 {
				errAbove1--
			} else {
				errAbove1++
			}
			a, b := value(sorted[k]), value(sorted[k+1])
			if a == b {
				continue
			}
			consider((a+b)/2, errAbove1)
		}
	}
	return best
}

func (e *Ensemble) Done(s EnsembleState) bool { return len(s.Stumps) >= s.Params.Int("members") }

func (e *Ensemble) Configure(s EnsembleState, name string, v float64) (EnsembleState, error) {
	ps, rebuild, err := configure(ensembleParams, s.Params, name, v)
	if err != nil {
		return s, err
	}
	if rebuild {
		return e.build(ps), nil
	}
	s.Params = ps
	return s, nil
}

func (e *Ensemble) Frame(s EnsembleState, _ []EnsembleState, opts render.Options) *render.Frame {
	f := render.NewFrame(opts.Width, opts.Height, "Bagging Ensemble")
	vp := render.Fit(samplePoints(s.Points), opts.Width, opts.Height)

	if opts.Overlay("votes") && len(s.Stumps) > 0 {
		heatGrid(f, vp, 40, 26, func(x, y float64) (int, float64) {
			label, share := s.Vote(x, y)
			return label, 2 * (share - 0.5)
		})
	}
	if opts.Overlay("stumps") {
		st := render.Style{Stroke: render.Muted, Width: 1, Opacity: 0.4, Class: "stump"}
		for _, stump := range s.Stumps {
			if stump.Feature == 0 {
				x1, y1 := vp.Map(stump.Threshold, vp.MinY)
				x2, y2 := vp.Map(stump.Threshold, vp.MaxY)
				f.Add(render.Line(x1, y1, x2, y2, st))
			} else {
				x1, y1 := vp.Map(vp.MinX, stump.Threshold)
				x2, y2 := vp.Map(vp.MaxX, stump.Threshold)
				f.Add(render.Line(x1, y1, x2, y2, st))
			}
		}
	}

	drawSamples(f, vp, s.Points, 3)
	if opts.Overlay("bootstrap") && len(s.Bag) == len(s.Points) {
		for i, c := range s.Bag {
			if c == 0 {
				continue
			}
			x, y := vp.Map(s.Points[i].X, s.Points[i].Y)
			f.Add(render.Circle(x, y, 3+2*float64(min(c, 4)), render.Style{Stroke: render.Highlight, Width: 1, Class: "bootstrap"}))
		}
	}

	label(f, vp.Margin, 12, fmt.Sprintf("members %d  ensemble %.0f%%  last stump %.0f%%",
		len(s.Stumps), s.EnsembleAcc*100, s.StumpAcc*100))
	return f
}
