package playground

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

// RNNState is an Elman network part way through its input sequence.
type RNNState struct {
	Params ParamSet
	Inputs []float64
	Wx     []float64
	Wh     [][]float64
	B      []float64
	H      []float64
	T      int
}

func (s RNNState) Clone() RNNState {
	s.Params = s.Params.Clone()
	s.Inputs = cloneFloats(s.Inputs)
	s.Wx = cloneFloats(s.Wx)
	s.B = cloneFloats(s.B)
	s.H = cloneFloats(s.H)
	wh := make([][]float64, len(s.Wh))
	for i, row := range s.Wh {
		wh[i] = cloneFloats(row)
	}
	s.Wh = wh
	return s
}

func (s RNNState) Values() map[string]float64 {
	v := map[string]float64{"t": float64(s.T), "h_norm": s.Norm()}
	x := 0.0
	if s.T > 0 {
		x = s.Inputs[s.T-1]
	}
	v["x"] = x
	for i, h := range s.H {
		v["h"+strconv.Itoa(i)] = h
	}
	return v
}

func (s RNNState) params() ParamSet { return s.Params }

func (s RNNState) Norm() float64 {
	var ss float64
	for _, h := range s.H {
		ss += h * h
	}
	return math.Sqrt(ss)
}

var rnnParams = []Param{
	{Name: "hidden", Description: "hidden units", Min: 2, Max: 8, Step: 1, Default: 4, Rebuild: true},
	{Name: "length", Description: "input sequence length", Min: 8, Max: 128, Step: 1, Default: 32, Rebuild: true},
	{Name: "weight_scale", Description: "recurrent weight scale", Min: 0.1, Max: 3, Step: 0.1, Default: 0.9, Rebuild: true},
	{Name: "frequency", Description: "input sine frequency", Min: 0.05, Max: 1, Step: 0.05, Default: 0.3, Rebuild: true},
	{Name: "data_seed", Description: "seed for the weights", Min: 0, Max: 9999, Step: 1, Default: 21, Rebuild: true},
}

// RNN feeds a sine wave through a random Elman cell one element per tick.
type RNN struct {
	initial ParamSet
}

func NewRNN(overrides map[string]float64) (*RNN, error) {
	ps, err := resolve(rnnParams, overrides)
	if err != nil {
		return nil, err
	}
	return &RNN{initial: ps}, nil
}

func (r *RNN) Info() Info {
	return Info{
		Name:        "rnn",
		Title:       "RNN Hidden State",
		Description: "an Elman cell consuming a sequence, one input per tick",
		Params:      rnnParams,
		Overlays:    []string{"heatmap", "norm"},
		Metric:      "h_norm",
		Config:      engine.Config{Interval: 250 * time.Millisecond, MaxTicks: 128, Seed: 1},
	}
}

func (r *RNN) Defaults() RNNState { return r.build(r.initial.Clone()) }

func (r *RNN) build(ps ParamSet) RNNState {
	rng := dataRNG(ps)
	h, n := ps.Int("hidden"), ps.Int("length")
	scale := ps["weight_scale"] / math.Sqrt(float64(h))

	s := RNNState{
		Params: ps,
		Inputs: make([]float64, n),
		Wx:     make([]float64, h),
		Wh:     make([][]float64, h),
		B:      make([]float64, h),
		H:      make([]float64, h),
	}
	for t := range s.Inputs {
		s.Inputs[t] = math.Sin(ps["frequency"] * float64(t))
	}
	for i := 0; i < h; i++ {
		s.Wx[i] = rng.NormFloat64()
		s.B[i] = 0.1 * rng.NormFloat64()
		s.Wh[i] = make([]float64, h)
		for j := range s.Wh[i] {
			s.Wh[i][j] = scale * rng.NormFloat64()
		}
	}
	return s
}

func (r *RNN) Step(s RNNState, _ *rand.Rand) engine.Outcome[RNNState] {
	if s.T >= len(s.Inputs) {
		return engine.Ok(s)
	}
	x := s.Inputs[s.T]
	next := make([]float64, len(s.H))
	for i := range next {
		a := s.Wx[i]*x + s.B[i]
		for j, h := range s.H {
			a += s.Wh[i][j] * h
		}
		next[i] = math.Tanh(a)
	}
	s.H = next
	s.T++
	return engine.Ok(s)
}

func (r *RNN) Done(s RNNState) bool { return s.T >= len(s.Inputs) }

func (r *RNN) Configure(s RNNState, name string, v float64) (RNNState, error) {
	ps, rebuild, err := configure(rnnParams, s.Params, name, v)
	if err != nil {
		return s, err
	}
	if rebuild {
		return r.build(ps), nil
	}
	s.Params = ps
	return s, nil
}

func (r *RNN) Frame(s RNNState, trail []RNNState, opts render.Options) *render.Frame {
	f := render.NewFrame(opts.Width, opts.Height, "RNN Hidden State")
	n := len(s.Inputs)
	w, h := float64(opts.Width), float64(opts.Height)
	top := render.NewViewport(0, float64(max(n-1, 1)), -1.2, 1.2, opts.Width, int(h*0.4))

	pts := make([]render.Point, n)
	for t, x := range s.Inputs {
		pts[t] = top.MapPoint(render.Point{X: float64(t), Y: x})
	}
	f.Add(render.Polyline(pts, render.Style{Stroke: render.Muted, Width: 1.5, Class: "input"}))
	if s.T > 0 {
		cx, cy := top.Map(float64(s.T-1), s.Inputs[s.T-1])
		f.Add(render.Circle(cx, cy, 5, render.Style{Fill: render.Highlight, Class: "cursor"}))
	}

	if opts.Overlay("heatmap") && len(trail) > 0 && n > 0 {
		units := len(s.H)
		x0, y0 := 16.0, h*0.45
		cw := (w - 32) / float64(n)
		ch := (h*0.5 - 8) / float64(units)
		for _, snap := range trail {
			if snap.T == 0 || len(snap.H) != units {
				continue
			}
			for i, v := range snap.H {
				color := render.Success
				if v < 0 {
					color = render.Danger
				}
				f.Add(render.Rect(x0+float64(snap.T-1)*cw, y0+float64(i)*ch, cw, ch,
					render.Style{Fill: color, Opacity: math.Abs(v), Class: "hidden"}))
			}
		}
	}

	if opts.Overlay("norm") && len(trail) > 1 {
		norm := make([]render.Point, 0, len(trail))
		for _, snap := range trail {
			norm = append(norm, top.MapPoint(render.Point{
				X: float64(snap.T - 1),
				Y: snap.Norm()/math.Sqrt(float64(len(snap.H)))*2.4 - 1.2,
			}))
		}
		f.Add(render.Polyline(norm, render.Style{Stroke: render.Accent, Width: 1, Dashed: true, Class: "norm"}))
	}

	label(f, 16, 12, fmt.Sprintf("t %d/%d  |h| %.3f", s.T, n, s.Norm()))
	return f
}
