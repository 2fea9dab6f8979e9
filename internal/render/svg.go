package render

import (
	"fmt"
	"html"
	"strings"
)

// SVG serializes a frame. Undrawable frames come out as their placeholder.
func SVG(frame *Frame) string {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return ""
	}
	f := frame.Sanitize()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, f.Width, f.Height, f.Width, f.Height, f.Background))

	if f.Title != "" {
		sb.WriteString(fmt.Sprintf(`<text x="8" y="16" fill="%s" font-family="monospace" font-size="12">%s</text>
`, Foreground, html.EscapeString(f.Title)))
	}

	for _, s := range f.Shapes {
		writeShape(&sb, s)
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func writeShape(sb *strings.Builder, s Shape) {
	attrs := styleAttrs(s.Style)
	switch s.Kind {
	case CircleShape:
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f"%s/>`, s.X, s.Y, s.R, attrs))
	case LineShape:
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"%s/>`, s.X, s.Y, s.X2, s.Y2, attrs))
	case PolylineShape:
		if len(s.Points) < 2 {
			return
		}
		sb.WriteString(`<path fill="none" d="M`)
		for i, p := range s.Points {
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", p.X, p.Y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", p.X, p.Y))
			}
		}
		sb.WriteString(`"` + attrs + `/>`)
	case RectShape:
		sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f"%s/>`, s.X, s.Y, s.W, s.H, attrs))
	case TextShape:
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" font-family="monospace" font-size="11" text-anchor="middle"%s>%s</text>`,
			s.X, s.Y, attrs, html.EscapeString(s.Text)))
	}
	sb.WriteString("\n")
}

func styleAttrs(st Style) string {
	var b strings.Builder
	if st.Class != "" {
		b.WriteString(fmt.Sprintf(` class="%s"`, html.EscapeString(st.Class)))
	}
	if st.Fill != "" {
		b.WriteString(fmt.Sprintf(` fill="%s"`, st.Fill))
	} else {
		b.WriteString(` fill="none"`)
	}
	if st.Stroke != "" {
		b.WriteString(fmt.Sprintf(` stroke="%s"`, st.Stroke))
		w := st.Width
		if w == 0 {
			w = 1
		}
		b.WriteString(fmt.Sprintf(` stroke-width="%.1f"`, w))
	}
	if st.Opacity > 0 && st.Opacity < 1 {
		b.WriteString(fmt.Sprintf(` opacity="%.2f"`, st.Opacity))
	}
	if st.Dashed {
		b.WriteString(` stroke-dasharray="4 3"`)
	}
	return b.String()
}

// CanvasSVG converts a Braille canvas to SVG, one circle per lit dot.
func CanvasSVG(canvas *Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.Width) * scale * 2
	height := float64(canvas.Height) * scale * 4

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="%s">
`, width, height, width, height, Background, Success))

	dotRadius := scale * 0.4
	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			pattern := int(canvas.Grid[row][col] - brailleBase)
			if pattern <= 0 {
				continue
			}
			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&pixelMap[dy][dx] == 0 {
						continue
					}
					cx := baseX + float64(dx)*scale + scale/2
					cy := baseY + float64(dy)*scale + scale/2
					sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f"/>
`, cx, cy, dotRadius))
				}
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}
