package playground

import (
	"math"
	"math/rand"

	"github.com/san-kum/mlplay/internal/render"
)

// Sample is a labeled 2D point. Label is a class index starting at 0.
type Sample struct {
	X, Y  float64
	Label int
}

func cloneSamples(in []Sample) []Sample {
	if in == nil {
		return nil
	}
	out := make([]Sample, len(in))
	copy(out, in)
	return out
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	copy(out, in)
	return out
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}

func dataRNG(ps ParamSet) *rand.Rand {
	return rand.New(rand.NewSource(int64(ps.Int("data_seed"))))
}

// blobs scatters n points round-robin over the centers with gaussian spread.
func blobs(rng *rand.Rand, centers []render.Point, n int, spread float64) []Sample {
	out := make([]Sample, n)
	for i := range out {
		c := i % len(centers)
		out[i] = Sample{
			X:     centers[c].X + rng.NormFloat64()*spread,
			Y:     centers[c].Y + rng.NormFloat64()*spread,
			Label: c,
		}
	}
	return out
}

// ringCenters places k centers evenly on a circle of radius r.
func ringCenters(k int, r float64) []render.Point {
	out := make([]render.Point, k)
	for i := range out {
		a := 2*math.Pi*float64(i)/float64(k) + math.Pi/6
		out[i] = render.Point{X: r * math.Cos(a), Y: r * math.Sin(a)}
	}
	return out
}

// moons builds the two interleaved half circles used by the tree and
// ensemble simulators.
func moons(rng *rand.Rand, n int, noise float64) []Sample {
	out := make([]Sample, n)
	for i := range out {
		label := i % 2
		t := rng.Float64() * math.Pi
		var x, y float64
		if label == 0 {
			x, y = math.Cos(t), math.Sin(t)
		} else {
			x, y = 1-math.Cos(t), 0.5-math.Sin(t)
		}
		out[i] = Sample{X: x + rng.NormFloat64()*noise, Y: y + rng.NormFloat64()*noise, Label: label}
	}
	return out
}

func samplePoints(samples []Sample) []render.Point {
	out := make([]render.Point, len(samples))
	for i, s := range samples {
		out[i] = render.Point{X: s.X, Y: s.Y}
	}
	return out
}

func sq(x float64) float64 { return x * x }

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// drawSamples adds one dot per sample, colored by label.
func drawSamples(f *render.Frame, vp render.Viewport, samples []Sample, r float64) {
	for _, s := range samples {
		x, y := vp.Map(s.X, s.Y)
		c := render.ClassColor(s.Label)
		f.Add(render.Circle(x, y, r, render.Style{Fill: c, Stroke: c, Class: "point"}))
	}
}

// heatGrid tiles the viewport with pixel blocks colored by fn, which returns
// a class index and a confidence in [0, 1].
func heatGrid(f *render.Frame, vp render.Viewport, cols, rows int, fn func(x, y float64) (int, float64)) {
	cw := (vp.Width - 2*vp.Margin) / float64(cols)
	ch := (vp.Height - 2*vp.Margin) / float64(rows)
	for i := 0; i < cols; i++ {
		for j := 0; j < rows; j++ {
			px := vp.Margin + (float64(i)+0.5)*cw
			py := vp.Margin + (float64(j)+0.5)*ch
			x := vp.MinX + (px-vp.Margin)/(vp.Width-2*vp.Margin)*(vp.MaxX-vp.MinX)
			y := vp.MaxY - (py-vp.Margin)/(vp.Height-2*vp.Margin)*(vp.MaxY-vp.MinY)
			label, conf := fn(x, y)
			if math.IsNaN(conf) {
				continue
			}
			f.Add(render.Rect(vp.Margin+float64(i)*cw, vp.Margin+float64(j)*ch, cw, ch, render.Style{
				Fill:    render.ClassColor(label),
				Opacity: 0.08 + 0.3*math.Max(0, math.Min(1, conf)),
				Class:   "region",
			}))
		}
	}
}

// curve samples fn over [lo, hi] into a polyline in viewport space.
func curve(vp render.Viewport, lo, hi float64, n int, fn func(float64) float64) []render.Point {
	pts := make([]render.Point, 0, n+1)
	for i := 0; i <= n; i++ {
		x := lo + (hi-lo)*float64(i)/float64(n)
		y := fn(x)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		pts = append(pts, vp.MapPoint(render.Point{X: x, Y: y}))
	}
	return pts
}

func label(f *render.Frame, x, y float64, text string) {
	f.Add(render.Text(x, y, text, render.Style{Fill: render.Foreground, Class: "label"}))
}
