package render

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func TestCanvasSetUnset(t *testing.T) {
	c := NewCanvas(4, 2)
	c.Set(0, 0)
	c.Set(1, 3)
	if !c.IsSet(0, 0) || !c.IsSet(1, 3) {
		t.Fatal("expected dots to be set")
	}
	if c.Grid[0][0] != brailleBase|0x1|0x80 {
		t.Errorf("unexpected pattern %U", c.Grid[0][0])
	}

	c.Unset(0, 0)
	if c.IsSet(0, 0) {
		t.Error("dot still set after Unset")
	}

	// out of range is ignored
	c.Set(-1, 0)
	c.Set(100, 100)
	c.Clear()
	for _, row := range c.Grid {
		for _, r := range row {
			if r != brailleBase {
				t.Fatalf("canvas not cleared: %U", r)
			}
		}
	}
}

func TestCanvasDrawLine(t *testing.T) {
	c := NewCanvas(10, 3)
	c.DrawLine(0, 0, 9, 0)
	for x := 0; x <= 9; x++ {
		if !c.IsSet(x, 0) {
			t.Errorf("dot %d not set", x)
		}
	}
	if lines := strings.Count(c.String(), "\n"); lines != 3 {
		t.Errorf("expected 3 rows, got %d", lines)
	}
}

func TestSVGShapes(t *testing.T) {
	f := NewFrame(100, 50, "demo <1>")
	f.Add(
		Circle(10, 10, 3, Style{Fill: Accent}),
		Line(0, 0, 5, 5, Style{Stroke: Muted}),
		Polyline([]Point{{1, 1}, {2, 2}, {3, 1}}, Style{Stroke: Accent}),
		Rect(1, 1, 4, 4, Style{Fill: Danger, Opacity: 0.5}),
		Text(50, 25, "a&b", Style{Fill: Foreground}),
	)
	svg := SVG(f)

	for _, want := range []string{
		`width="100" height="50"`,
		`<circle cx="10.0" cy="10.0" r="3.0"`,
		`<line x1="0.0"`,
		`d="M1.0,1.0 L2.0,2.0 L3.0,1.0"`,
		`opacity="0.50"`,
		`a&amp;b`,
		`demo &lt;1&gt;`,
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("svg missing %q", want)
		}
	}
}

func TestSVGPlaceholderForNonFinite(t *testing.T) {
	f := NewFrame(100, 50, "broken")
	f.Add(Circle(math.NaN(), 10, 3, Style{Fill: Accent}))
	svg := SVG(f)
	if strings.Contains(svg, "NaN") {
		t.Fatal("svg must never contain NaN")
	}
	if !strings.Contains(svg, "non-finite geometry") {
		t.Error("expected placeholder notice")
	}

	f = NewFrame(100, 50, "degenerate")
	f.Placeholder = "empty cluster"
	if !strings.Contains(SVG(f), "empty cluster") {
		t.Error("expected placeholder reason in svg")
	}
}

func TestSVGEmptySurface(t *testing.T) {
	if SVG(nil) != "" {
		t.Error("nil frame should render nothing")
	}
	if SVG(NewFrame(0, 0, "x")) != "" {
		t.Error("zero-size frame should render nothing")
	}
}

func TestRasterize(t *testing.T) {
	f := NewFrame(20, 16, "")
	f.Add(Line(0, 0, 19, 0, Style{Stroke: Accent}))
	c := NewCanvas(10, 4)
	Rasterize(f, c)
	if !c.IsSet(0, 0) || !c.IsSet(19, 0) {
		t.Error("expected line to be rasterized")
	}

	// nil surfaces are a no-op
	Rasterize(f, nil)
	Rasterize(nil, c)
	Rasterize(f, NewCanvas(0, 0))
}

func TestRasterizePlaceholder(t *testing.T) {
	f := NewFrame(20, 16, "")
	f.Add(Line(0, math.Inf(1), 19, 0, Style{}))
	c := NewCanvas(10, 4)
	Rasterize(f, c)
	lit := 0
	for y := 0; y < 16; y++ {
		for x := 0; x < 20; x++ {
			if c.IsSet(x, y) {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("expected the placeholder box to be drawn")
	}
}

func TestViewportMap(t *testing.T) {
	v := NewViewport(0, 10, 0, 10, 132, 132)
	x, y := v.Map(0, 0)
	if x != 16 || y != 116 {
		t.Errorf("origin mapped to (%v,%v)", x, y)
	}
	x, y = v.Map(10, 10)
	if x != 116 || y != 16 {
		t.Errorf("corner mapped to (%v,%v)", x, y)
	}
}

func TestFitIgnoresNonFinite(t *testing.T) {
	v := Fit([]Point{{0, 0}, {10, 5}, {math.NaN(), 3}}, 100, 100)
	if v.MinX >= 0 || v.MaxX <= 10 {
		t.Errorf("unexpected x range [%v,%v]", v.MinX, v.MaxX)
	}
	v = Fit(nil, 100, 100)
	if v.MinX != -1 || v.MaxX != 1 {
		t.Errorf("empty fit should default to [-1,1], got [%v,%v]", v.MinX, v.MaxX)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(2, 3)
	c := NewCanvas(4, 2)
	c.Set(1, 1)
	for i := 0; i < 5; i++ {
		r.Capture(c)
	}
	if r.Len() != 3 {
		t.Fatalf("expected recorder to cap at 3 frames, got %d", r.Len())
	}

	var buf bytes.Buffer
	if err := r.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("GIF89a")) {
		t.Error("expected gif header")
	}

	path := filepath.Join(t.TempDir(), "out.gif")
	if err := r.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	r.Reset()
	if err := r.Save(filepath.Join(t.TempDir(), "empty.gif")); err != nil {
		t.Errorf("saving an empty recording should be a no-op: %v", err)
	}
}

func TestCanvasSVG(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	svg := CanvasSVG(c, 2)
	if got := strings.Count(svg, "<circle"); got != 2 {
		t.Errorf("expected 2 dots, got %d", got)
	}
	if CanvasSVG(nil, 1) != "" {
		t.Error("nil canvas should render nothing")
	}
}
