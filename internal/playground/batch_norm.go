package playground

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

const runningMomentum = 0.1

type NormState struct {
	Params      ParamSet
	Step        int
	Raw         []float64
	Normalized  []float64
	BatchMean   float64
	BatchVar    float64
	OutMean     float64
	OutStd      float64
	RunningMean float64
	RunningVar  float64
}

func (s NormState) Clone() NormState {
	s.Params = s.Params.Clone()
	s.Raw = cloneFloats(s.Raw)
	s.Normalized = cloneFloats(s.Normalized)
	return s
}

func (s NormState) Values() map[string]float64 {
	return map[string]float64{
		"step":         float64(s.Step),
		"batch_mean":   s.BatchMean,
		"batch_var":    s.BatchVar,
		"out_mean":     s.OutMean,
		"out_std":      s.OutStd,
		"running_mean": s.RunningMean,
		"running_var":  s.RunningVar,
	}
}

func (s NormState) params() ParamSet { return s.Params }

var normParams = []Param{
	{Name: "batch_size", Description: "activations per batch", Min: 0, Max: 512, Step: 1, Default: 64},
	{Name: "gamma", Description: "scale", Min: 0.1, Max: 3, Step: 0.1, Default: 1},
	{Name: "beta", Description: "shift", Min: -2, Max: 2, Step: 0.1, Default: 0},
	{Name: "epsilon", Description: "variance floor", Min: 1e-8, Max: 1, Step: 1e-5, Default: 1e-5},
	{Name: "drift", Description: "how far the input distribution wanders", Min: 0, Max: 3, Step: 0.1, Default: 1},
}

// BatchNorm normalizes a fresh batch of drifting activations every tick.
type BatchNorm struct {
	initial ParamSet
}

func NewBatchNorm(overrides map[string]float64) (*BatchNorm, error) {
	ps, err := resolve(normParams, overrides)
	if err != nil {
		return nil, err
	}
	return &BatchNorm{initial: ps}, nil
}

func (b *BatchNorm) Info() Info {
	return Info{
		Name:        "batch_norm",
		Title:       "Batch Normalization",
		Description: "normalizing batches whose mean and scale drift over time",
		Params:      normParams,
		Overlays:    []string{"running_stats"},
		Metric:      "out_std",
		Config:      engine.Config{Interval: 300 * time.Millisecond, MaxTicks: 100, Seed: 1},
	}
}

func (b *BatchNorm) Defaults() NormState {
	return NormState{Params: b.initial.Clone(), RunningVar: 1}
}

func (b *BatchNorm) Step(s NormState, rng *rand.Rand) engine.Outcome[NormState] {
	s.Step++
	n := s.Params.Int("batch_size")
	if n == 0 {
		return engine.Degenerate(s, "empty batch")
	}

	t := float64(s.Step)
	drift := s.Params["drift"]
	mean := 2 * drift * math.Sin(0.2*t)
	scale := 1 + drift*math.Abs(math.Cos(0.13*t))

	s.Raw = make([]float64, n)
	for i := range s.Raw {
		s.Raw[i] = mean + scale*rng.NormFloat64()
	}
	s.BatchMean, s.BatchVar = moments(s.Raw)

	gamma, beta, eps := s.Params["gamma"], s.Params["beta"], s.Params["epsilon"]
	inv := 1 / math.Sqrt(s.BatchVar+eps)
	s.Normalized = make([]float64, n)
	for i, x := range s.Raw {
		s.Normalized[i] = gamma*(x-s.BatchMean)*inv + beta
	}
	var outVar float64
	s.OutMean, outVar = moments(s.Normalized)
	s.OutStd = math.Sqrt(outVar)

	s.RunningMean = (1-runningMomentum)*s.RunningMean + runningMomentum*s.BatchMean
	s.RunningVar = (1-runningMomentum)*s.RunningVar + runningMomentum*s.BatchVar

	if s.BatchVar == 0 {
		return engine.Degenerate(s, "batch has zero variance")
	}
	return engine.Ok(s)
}

// moments returns the mean and population variance of xs.
func moments(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += sq(x - mean)
	}
	return mean, ss / float64(len(xs))
}

func (b *BatchNorm) Done(NormState) bool { return false }

func (b *BatchNorm) Configure(s NormState, name string, v float64) (NormState, error) {
	ps, _, err := configure(normParams, s.Params, name, v)
	if err != nil {
		return s, err
	}
	s.Params = ps
	return s, nil
}

func (b *BatchNorm) Frame(s NormState, _ []NormState, opts render.Options) *render.Frame {
	f := render.NewFrame(opts.Width, opts.Height, "Batch Normalization")
	if len(s.Raw) == 0 {
		f.Placeholder = "no batch yet"
		if s.Params.Int("batch_size") == 0 && s.Step > 0 {
			f.Placeholder = "empty batch"
		}
		return f
	}

	const lo, hi, bins = -8.0, 8.0, 32
	w, h := float64(opts.Width), float64(opts.Height)
	half := h / 2
	histogram(f, s.Raw, lo, hi, bins, 16, 24, w-32, half-36, render.Warning, "raw")
	histogram(f, s.Normalized, lo, hi, bins, 16, half+8, w-32, half-36, render.Accent, "normalized")

	if opts.Overlay("running_stats") {
		vp := render.NewViewport(lo, hi, 0, 1, opts.Width, int(half))
		x, _ := vp.Map(s.RunningMean, 0)
		sd := vp.Scale(math.Sqrt(s.RunningVar))
		st := render.Style{Stroke: render.Highlight, Width: 1, Dashed: true, Class: "running"}
		f.Add(
			render.Line(x, 24, x, half-12, st),
			render.Line(x-sd, half-16, x+sd, half-16, st),
		)
	}

	label(f, 16, 14, fmt.Sprintf("batch mean %.2f var %.2f", s.BatchMean, s.BatchVar))
	label(f, 16, half+2, fmt.Sprintf("out mean %.2f std %.2f  (gamma %.1f beta %.1f)",
		s.OutMean, s.OutStd, s.Params["gamma"], s.Params["beta"]))
	return f
}

// histogram draws xs binned over [lo, hi] as bars inside the given box.
func histogram(f *render.Frame, xs []float64, lo, hi float64, bins int, x0, y0, w, h float64, color, class string) {
	counts := make([]int, bins)
	peak := 0
	for _, x := range xs {
		i := int((x - lo) / (hi - lo) * float64(bins))
		if i < 0 || i >= bins {
			continue
		}
		counts[i]++
		peak = max(peak, counts[i])
	}
	f.Add(render.Line(x0, y0+h, x0+w, y0+h, render.Style{Stroke: render.Muted, Width: 1, Class: "axis"}))
	if peak == 0 {
		return
	}
	bw := w / float64(bins)
	for i, c := range counts {
		bh := h * float64(c) / float64(peak)
		f.Add(render.Rect(x0+float64(i)*bw+1, y0+h-bh, bw-2, bh, render.Style{Fill: color, Class: class}))
	}
}
