package render

import "math"

type Kind int

const (
	CircleShape Kind = iota
	LineShape
	PolylineShape
	RectShape
	TextShape
)

type Point struct{ X, Y float64 }

// Style is the presentation of a shape. Empty Fill means outline only.
type Style struct {
	Stroke  string
	Fill    string
	Width   float64
	Opacity float64
	Dashed  bool
	Class   string
}

// Shape is one drawable primitive. Which fields matter depends on Kind.
type Shape struct {
	Kind   Kind
	X, Y   float64
	X2, Y2 float64
	R      float64
	W, H   float64
	Points []Point
	Text   string
	Style  Style
}

func Circle(x, y, r float64, st Style) Shape {
	return Shape{Kind: CircleShape, X: x, Y: y, R: r, Style: st}
}

func Line(x1, y1, x2, y2 float64, st Style) Shape {
	return Shape{Kind: LineShape, X: x1, Y: y1, X2: x2, Y2: y2, Style: st}
}

func Polyline(pts []Point, st Style) Shape {
	return Shape{Kind: PolylineShape, Points: pts, Style: st}
}

func Rect(x, y, w, h float64, st Style) Shape {
	return Shape{Kind: RectShape, X: x, Y: y, W: w, H: h, Style: st}
}

func Text(x, y float64, s string, st Style) Shape {
	return Shape{Kind: TextShape, X: x, Y: y, Text: s, Style: st}
}

func (s Shape) finite() bool {
	for _, v := range [...]float64{s.X, s.Y, s.X2, s.Y2, s.R, s.W, s.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, p := range s.Points {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}

// Frame is a full picture of one simulation state.
type Frame struct {
	Width, Height int
	Title         string
	Background    string
	Shapes        []Shape
	// Placeholder, when set, replaces the shapes with a notice.
	Placeholder string
}

func NewFrame(width, height int, title string) *Frame {
	return &Frame{
		Width:      width,
		Height:     height,
		Title:      title,
		Background: Background,
		Shapes:     make([]Shape, 0, 64),
	}
}

func (f *Frame) Add(shapes ...Shape) { f.Shapes = append(f.Shapes, shapes...) }

// Finite reports whether every shape has finite geometry.
func (f *Frame) Finite() bool {
	for _, s := range f.Shapes {
		if !s.finite() {
			return false
		}
	}
	return true
}

// Sanitize returns the frame itself, or a placeholder when it cannot be drawn.
func (f *Frame) Sanitize() *Frame {
	if f.Placeholder != "" {
		return Placeholder(f.Width, f.Height, f.Title, f.Placeholder)
	}
	if !f.Finite() {
		return Placeholder(f.Width, f.Height, f.Title, "non-finite geometry")
	}
	return f
}

// Placeholder builds the notice shown in place of an undrawable frame.
func Placeholder(width, height int, title, reason string) *Frame {
	f := NewFrame(width, height, title)
	f.Placeholder = reason
	w, h := float64(width), float64(height)
	muted := Style{Stroke: Muted, Width: 1, Dashed: true, Class: "placeholder"}
	f.Add(
		Rect(w*0.1, h*0.3, w*0.8, h*0.4, muted),
		Line(w*0.1, h*0.3, w*0.9, h*0.7, muted),
		Line(w*0.1, h*0.7, w*0.9, h*0.3, muted),
		Text(w*0.5, h*0.5, reason, Style{Fill: Warning, Class: "placeholder"}),
	)
	return f
}

// Options are per-frame view settings. Overlays only change decorations,
// never the data that is drawn.
type Options struct {
	Width, Height int
	Overlays      map[string]bool
}

func DefaultOptions() Options {
	return Options{Width: 480, Height: 320, Overlays: map[string]bool{}}
}

func (o Options) Overlay(name string) bool { return o.Overlays[name] }
