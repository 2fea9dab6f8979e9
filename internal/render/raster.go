package render

import "math"

// Rasterize draws frame onto canvas, scaling frame pixels to canvas dots.
// Text shapes are skipped; a nil or empty canvas is left alone.
func Rasterize(frame *Frame, canvas *Canvas) {
	if frame == nil || canvas == nil || canvas.Width == 0 || canvas.Height == 0 {
		return
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		return
	}
	f := frame.Sanitize()
	dotsW, dotsH := canvas.Dots()
	sx := float64(dotsW) / float64(f.Width)
	sy := float64(dotsH) / float64(f.Height)
	px := func(x float64) int { return int(math.Round(x * sx)) }
	py := func(y float64) int { return int(math.Round(y * sy)) }

	for _, s := range f.Shapes {
		switch s.Kind {
		case CircleShape:
			r := int(math.Round(s.R * math.Min(sx, sy)))
			canvas.DrawCircle(px(s.X), py(s.Y), r, s.Style.Fill != "")
		case LineShape:
			canvas.DrawLine(px(s.X), py(s.Y), px(s.X2), py(s.Y2))
		case PolylineShape:
			for i := 1; i < len(s.Points); i++ {
				a, b := s.Points[i-1], s.Points[i]
				canvas.DrawLine(px(a.X), py(a.Y), px(b.X), py(b.Y))
			}
		case RectShape:
			x, y := px(s.X), py(s.Y)
			w, h := px(s.X+s.W)-x, py(s.Y+s.H)-y
			if s.Style.Fill != "" {
				canvas.FillRect(x, y, w, h)
			} else {
				canvas.StrokeRect(x, y, w, h)
			}
		}
	}
}
