package render

import (
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"
)

// Recorder collects canvas snapshots and encodes them as an animated GIF.
type Recorder struct {
	frames []*image.Paletted
	delay  int
	limit  int
}

// NewRecorder keeps at most limit frames, each shown for delay hundredths of a second.
func NewRecorder(delay, limit int) *Recorder {
	if delay <= 0 {
		delay = 2
	}
	return &Recorder{delay: delay, limit: limit, frames: make([]*image.Paletted, 0, 64)}
}

func (r *Recorder) Len() int { return len(r.frames) }

func (r *Recorder) Capture(c *Canvas) {
	if c == nil || c.Width == 0 || c.Height == 0 {
		return
	}
	if r.limit > 0 && len(r.frames) >= r.limit {
		r.frames = r.frames[1:]
	}

	const charW, charH = 8, 16
	dotW, dotH := charW/2, charH/4
	img := image.NewPaletted(image.Rect(0, 0, c.Width*charW, c.Height*charH),
		color.Palette{color.Black, color.RGBA{0x00, 0xff, 0x88, 0xff}})

	dotsW, dotsH := c.Dots()
	for y := 0; y < dotsH; y++ {
		for x := 0; x < dotsW; x++ {
			if !c.IsSet(x, y) {
				continue
			}
			for py := 0; py < dotH; py++ {
				for px := 0; px < dotW; px++ {
					img.SetColorIndex(x*dotW+px, y*dotH+py, 1)
				}
			}
		}
	}
	r.frames = append(r.frames, img)
}

func (r *Recorder) Encode(w io.Writer) error {
	anim := gif.GIF{LoopCount: 0}
	for _, f := range r.frames {
		anim.Image = append(anim.Image, f)
		anim.Delay = append(anim.Delay, r.delay)
	}
	return gif.EncodeAll(w, &anim)
}

// Save writes the recording to path. An empty recording writes nothing.
func (r *Recorder) Save(path string) error {
	if len(r.frames) == 0 {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.Encode(f)
}

func (r *Recorder) Reset() { r.frames = r.frames[:0] }
