package playground

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

var xorData = []Sample{
	{X: 0, Y: 0, Label: 0},
	{X: 0, Y: 1, Label: 1},
	{X: 1, Y: 0, Label: 1},
	{X: 1, Y: 1, Label: 0},
}

// NetState is a 2-H-1 network: tanh hidden layer, sigmoid output.
type NetState struct {
	Params   ParamSet
	W1       [][2]float64
	B1       []float64
	W2       []float64
	B2       float64
	Epoch    int
	Loss     float64
	Accuracy float64
}

func (s NetState) Clone() NetState {
	s.Params = s.Params.Clone()
	s.W1 = append([][2]float64(nil), s.W1...)
	s.B1 = cloneFloats(s.B1)
	s.W2 = cloneFloats(s.W2)
	return s
}

func (s NetState) Values() map[string]float64 {
	return map[string]float64{
		"epoch":    float64(s.Epoch),
		"loss":     s.Loss,
		"accuracy": s.Accuracy,
	}
}

func (s NetState) params() ParamSet { return s.Params }

// Forward returns the hidden activations and the output probability.
func (s NetState) Forward(x, y float64) ([]float64, float64) {
	h := make([]float64, len(s.B1))
	out := s.B2
	for j := range h {
		h[j] = math.Tanh(s.W1[j][0]*x + s.W1[j][1]*y + s.B1[j])
		out += s.W2[j] * h[j]
	}
	return h, sigmoid(out)
}

var netParams = []Param{
	{Name: "learning_rate", Description: "step size", Min: 0.01, Max: 3, Step: 0.05, Default: 0.5},
	{Name: "epochs_per_tick", Description: "full-batch epochs per tick", Min: 1, Max: 100, Step: 1, Default: 10},
	{Name: "hidden", Description: "hidden units", Min: 2, Max: 8, Step: 1, Default: 4, Rebuild: true},
	{Name: "target_loss", Description: "stop below this loss", Min: 0.001, Max: 0.5, Step: 0.005, Default: 0.01},
	{Name: "data_seed", Description: "seed for the initial weights", Min: 0, Max: 9999, Step: 1, Default: 3, Rebuild: true},
}

// NeuralNet trains a tiny MLP on XOR with full-batch gradient descent.
type NeuralNet struct {
	initial ParamSet
}

func NewNeuralNet(overrides map[string]float64) (*NeuralNet, error) {
	ps, err := resolve(netParams, overrides)
	if err != nil {
		return nil, err
	}
	return &NeuralNet{initial: ps}, nil
}

func (n *NeuralNet) Info() Info {
	return Info{
		Name:        "neural_net",
		Title:       "Neural Network",
		Description: "a 2-H-1 network learning XOR",
		Params:      netParams,
		Overlays:    []string{"decision_surface", "network"},
		Metric:      "loss",
		Config:      engine.Config{Interval: 150 * time.Millisecond, MaxTicks: 200, Seed: 1},
	}
}

func (n *NeuralNet) Defaults() NetState { return n.build(n.initial.Clone()) }

func (n *NeuralNet) build(ps ParamSet) NetState {
	rng := dataRNG(ps)
	h := ps.Int("hidden")
	s := NetState{Params: ps, W1: make([][2]float64, h), B1: make([]float64, h), W2: make([]float64, h)}
	for j := 0; j < h; j++ {
		s.W1[j] = [2]float64{rng.NormFloat64(), rng.NormFloat64()}
		s.W2[j] = rng.NormFloat64()
	}
	n.measure(&s)
	return s
}

func (n *NeuralNet) Step(s NetState, _ *rand.Rand) engine.Outcome[NetState] {
	lr := s.Params["learning_rate"]
	h := len(s.B1)
	for e := 0; e < s.Params.Int("epochs_per_tick"); e++ {
		gW1 := make([][2]float64, h)
		gB1 := make([]float64, h)
		gW2 := make([]float64, h)
		gB2 := 0.0
		for _, p := range xorData {
			hid, out := s.Forward(p.X, p.Y)
			// sigmoid + cross-entropy gives a plain residual at the output
			d := out - float64(p.Label)
			gB2 += d
			for j := 0; j < h; j++ {
				gW2[j] += d * hid[j]
				dh := d * s.W2[j] * (1 - hid[j]*hid[j])
				gW1[j][0] += dh * p.X
				gW1[j][1] += dh * p.Y
				gB1[j] += dh
			}
		}
		m := float64(len(xorData))
		for j := 0; j < h; j++ {
			s.W1[j][0] -= lr * gW1[j][0] / m
			s.W1[j][1] -= lr * gW1[j][1] / m
			s.B1[j] -= lr * gB1[j] / m
			s.W2[j] -= lr * gW2[j] / m
		}
		s.B2 -= lr * gB2 / m
		s.Epoch++
	}
	n.measure(&s)
	return engine.Ok(s)
}

func (n *NeuralNet) measure(s *NetState) {
	s.Loss, s.Accuracy = 0, 0
	correct := 0
	for _, p := range xorData {
		_, out := s.Forward(p.X, p.Y)
		out = math.Max(1e-12, math.Min(1-1e-12, out))
		t := float64(p.Label)
		s.Loss -= t*math.Log(out) + (1-t)*math.Log(1-out)
		if (out >= 0.5) == (p.Label == 1) {
			correct++
		}
	}
	s.Loss /= float64(len(xorData))
	s.Accuracy = float64(correct) / float64(len(xorData))
}

func (n *NeuralNet) Done(s NetState) bool { return s.Loss < s.Params["target_loss"] }

func (n *NeuralNet) Configure(s NetState, name string, v float64) (NetState, error) {
	ps, rebuild, err := configure(netParams, s.Params, name, v)
	if err != nil {
		return s, err
	}
	if rebuild {
		return n.build(ps), nil
	}
	s.Params = ps
	return s, nil
}

func (n *NeuralNet) Frame(s NetState, trail []NetState, opts render.Options) *render.Frame {
	f := render.NewFrame(opts.Width, opts.Height, "Neural Network: XOR")
	// the input square sits on the left two thirds
	vp := render.NewViewport(-0.25, 1.25, -0.25, 1.25, opts.Width*2/3, opts.Height)

	if opts.Overlay("decision_surface") {
		heatGrid(f, vp, 24, 24, func(x, y float64) (int, float64) {
			_, p := s.Forward(x, y)
			if p >= 0.5 {
				return 1, 2 * (p - 0.5)
			}
			return 0, 2 * (0.5 - p)
		})
	}
	drawSamples(f, vp, xorData, 7)

	if opts.Overlay("network") {
		n.drawNetwork(f, s, float64(opts.Width)*2/3, float64(opts.Width), float64(opts.Height)*0.5)
	}

	// loss curve along the bottom right
	if len(trail) > 1 {
		left, right := float64(opts.Width)*2/3+8, float64(opts.Width)-8
		top, bottom := float64(opts.Height)*0.6, float64(opts.Height)-16
		maxLoss := trail[0].Loss
		for _, t := range trail {
			maxLoss = math.Max(maxLoss, t.Loss)
		}
		if maxLoss > 0 {
			pts := make([]render.Point, len(trail))
			for i, t := range trail {
				pts[i] = render.Point{
					X: left + (right-left)*float64(i)/float64(len(trail)-1),
					Y: bottom - (bottom-top)*t.Loss/maxLoss,
				}
			}
			f.Add(render.Polyline(pts, render.Style{Stroke: render.Accent, Width: 1.5, Class: "loss-curve"}))
		}
	}

	label(f, 16, 12, fmt.Sprintf("epoch %d  loss %.4f  acc %.0f%%", s.Epoch, s.Loss, s.Accuracy*100))
	return f
}

// drawNetwork draws the 2-H-1 graph with edge width by weight magnitude.
func (n *NeuralNet) drawNetwork(f *render.Frame, s NetState, left, right, height float64) {
	h := len(s.B1)
	col := func(i int) float64 { return left + (right-left)*(float64(i)+0.5)/3 }
	row := func(i, count int) float64 { return 24 + (height-24)*(float64(i)+0.5)/float64(count) }

	edge := func(x1, y1, x2, y2, w float64) {
		c := render.Success
		if w < 0 {
			c = render.Danger
		}
		f.Add(render.Line(x1, y1, x2, y2, render.Style{Stroke: c, Width: math.Min(4, 0.5+math.Abs(w)), Opacity: 0.7, Class: "edge"}))
	}
	for j := 0; j < h; j++ {
		for i := 0; i < 2; i++ {
			edge(col(0), row(i, 2), col(1), row(j, h), s.W1[j][i])
		}
		edge(col(1), row(j, h), col(2), row(0, 1), s.W2[j])
	}
	node := render.Style{Fill: render.Background, Stroke: render.Foreground, Width: 1.5, Class: "neuron"}
	for i := 0; i < 2; i++ {
		f.Add(render.Circle(col(0), row(i, 2), 6, node))
	}
	for j := 0; j < h; j++ {
		f.Add(render.Circle(col(1), row(j, h), 6, node))
	}
	f.Add(render.Circle(col(2), row(0, 1), 6, node))
}
