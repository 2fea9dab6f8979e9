package render

import "math"

// Viewport maps data coordinates onto frame pixels, y pointing up.
type Viewport struct {
	MinX, MaxX float64
	MinY, MaxY float64
	Width      float64
	Height     float64
	Margin     float64
}

func NewViewport(minX, maxX, minY, maxY float64, width, height int) Viewport {
	if maxX-minX == 0 {
		minX, maxX = minX-1, maxX+1
	}
	if maxY-minY == 0 {
		minY, maxY = minY-1, maxY+1
	}
	return Viewport{
		MinX: minX, MaxX: maxX,
		MinY: minY, MaxY: maxY,
		Width: float64(width), Height: float64(height),
		Margin: 16,
	}
}

// Fit builds a viewport around pts with 10% padding. Non-finite points are ignored.
func Fit(pts []Point, width, height int) Viewport {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			continue
		}
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	if math.IsInf(minX, 1) {
		return NewViewport(-1, 1, -1, 1, width, height)
	}

	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	return NewViewport(minX-rangeX*0.1, maxX+rangeX*0.1, minY-rangeY*0.1, maxY+rangeY*0.1, width, height)
}

func (v Viewport) Map(x, y float64) (float64, float64) {
	w, h := v.Width-2*v.Margin, v.Height-2*v.Margin
	px := v.Margin + (x-v.MinX)/(v.MaxX-v.MinX)*w
	py := v.Margin + h - (y-v.MinY)/(v.MaxY-v.MinY)*h
	return px, py
}

func (v Viewport) MapPoint(p Point) Point {
	x, y := v.Map(p.X, p.Y)
	return Point{X: x, Y: y}
}

// Scale converts a data-space length along x into pixels.
func (v Viewport) Scale(d float64) float64 {
	return d / (v.MaxX - v.MinX) * (v.Width - 2*v.Margin)
}

// Axes draws the x=0 and y=0 lines when they are inside the view.
func (v Viewport) Axes() []Shape {
	st := Style{Stroke: Muted, Width: 1, Class: "axis"}
	out := make([]Shape, 0, 2)
	if v.MinY <= 0 && v.MaxY >= 0 {
		x1, y := v.Map(v.MinX, 0)
		x2, _ := v.Map(v.MaxX, 0)
		out = append(out, Line(x1, y, x2, y, st))
	}
	if v.MinX <= 0 && v.MaxX >= 0 {
		x, y1 := v.Map(0, v.MinY)
		_, y2 := v.Map(0, v.MaxY)
		out = append(out, Line(x, y1, x, y2, st))
	}
	return out
}
