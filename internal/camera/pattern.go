package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"
	"time"
)

// PatternDriver is a synthetic camera that streams a moving test pattern.
// It stands in for hardware in demos and tests.
type PatternDriver struct {
	Interval time.Duration // time between frames, defaults to ~30fps
}

func (d PatternDriver) Start(ctx context.Context, c Constraints) (Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		w, h = DefaultConstraints().Width, DefaultConstraints().Height
	}
	interval := d.Interval
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}

	r, wr := io.Pipe()
	f := &patternFeed{r: r, stop: make(chan struct{})}
	go f.run(wr, w, h, interval)
	return f, nil
}

type patternFeed struct {
	r    *io.PipeReader
	stop chan struct{}
	once sync.Once
}

func (f *patternFeed) Read(p []byte) (int, error) { return f.r.Read(p) }

func (f *patternFeed) Close() error {
	f.once.Do(func() {
		close(f.stop)
		f.r.Close()
	})
	return nil
}

func (f *patternFeed) run(w *io.PipeWriter, width, height int, interval time.Duration) {
	defer w.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; ; n++ {
		if _, err := w.Write(PatternFrame(width, height, n)); err != nil {
			return
		}
		select {
		case <-f.stop:
			return
		case <-ticker.C:
		}
	}
}

// PatternFrame renders frame n of the test pattern as a JPEG.
func PatternFrame(width, height, n int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bar := (n * 8) % max(width, 1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{R: uint8(x * 255 / max(width, 1)), G: uint8(y * 255 / max(height, 1)), B: 96, A: 255}
			if x >= bar && x < bar+8 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80})
	return buf.Bytes()
}
