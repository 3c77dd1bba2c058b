package movie

import (
	"fmt"
	"image"
	"image/color"

	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/plot/palette"
)

// Options controls movie rendering.
type Options struct {
	// FPS is the output frame rate.
	FPS int

	// Bitrate is passed to the encoder, e.g. "4M". Empty lets the
	// encoder choose.
	Bitrate string

	// SameVLim shares the real stack's intensity range across all
	// panels. When false, each decoded stack is clipped to its
	// [0, 99.99] percentile range instead.
	SameVLim bool
}

// DefaultOptions returns the standard movie settings: 30 fps, encoder
// bitrate, shared intensity limits.
func DefaultOptions() Options {
	return Options{FPS: 30, SameVLim: true}
}

// Hollywood writes a composite movie: the real image stack next to each
// decoded stack, every panel stamped with a state-colored chip — the
// inferred state for the real panel, the corresponding sampled state path
// for each decoded panel. k is the number of discrete states.
func Hollywood(k int, real *ImageStack, inferred []int, decoded []*ImageStack, stateSamples [][]int, path string, opts Options) error {
	n := len(decoded)
	if n == 0 || n >= 10 {
		return fmt.Errorf("movie: need between 1 and 9 decoded stacks, got %d", n)
	}
	if len(stateSamples) != n {
		return fmt.Errorf("movie: %d state paths for %d decoded stacks", len(stateSamples), n)
	}
	if err := real.Validate(); err != nil {
		return err
	}
	for j, s := range decoded {
		if err := s.Validate(); err != nil {
			return err
		}
		if s.H != real.H || s.W != real.W {
			return fmt.Errorf("movie: decoded stack is %dx%d but real is %dx%d", s.H, s.W, real.H, real.W)
		}
		if len(stateSamples[j]) < s.Len() {
			return fmt.Errorf("movie: state path %d has %d states for %d decoded frames", j, len(stateSamples[j]), s.Len())
		}
	}
	nFrames := real.Len()
	if len(inferred) < nFrames {
		return fmt.Errorf("movie: %d inferred states for %d frames", len(inferred), nFrames)
	}

	// Per-panel intensity limits.
	vmin := make([]float64, n+1)
	vmax := make([]float64, n+1)
	vmin[0], vmax[0] = real.MinMax()
	for j, s := range decoded {
		if opts.SameVLim {
			vmin[j+1], vmax[j+1] = vmin[0], vmax[0]
		} else {
			lo, hi, err := s.PercentileRange(0, 99.99)
			if err != nil {
				return err
			}
			vmin[j+1], vmax[j+1] = lo, hi
		}
	}

	chips := palette.Rainbow(k, palette.Blue, palette.Red, 1, 1, 1).Colors()

	enc, err := StartEncoder(path, (n+1)*real.W, real.H, opts.FPS, opts.Bitrate)
	if err != nil {
		return err
	}

	frame := image.NewRGBA(image.Rect(0, 0, (n+1)*real.W, real.H))
	bar := progressbar.Default(int64(nFrames), "encoding")
	for t := 0; t < nFrames; t++ {
		drawPanel(frame, 0, real, t, vmin[0], vmax[0], chips[clampState(inferred[t], k)])
		for j, s := range decoded {
			ft := t
			if ft >= s.Len() {
				ft = s.Len() - 1
			}
			drawPanel(frame, (j+1)*real.W, s, ft, vmin[j+1], vmax[j+1], chips[clampState(stateSamples[j][ft], k)])
		}
		if err := enc.WriteFrame(frame); err != nil {
			enc.Abort()
			return err
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	return enc.Close()
}

// drawPanel renders one grayscale panel into frame at x offset xo, with a
// state-colored chip in the top-right corner.
func drawPanel(frame *image.RGBA, xo int, s *ImageStack, t int, vmin, vmax float64, chip color.Color) {
	scale := 0.0
	if vmax > vmin {
		scale = 255 / (vmax - vmin)
	}
	pix := s.Frames[t]
	for y := 0; y < s.H; y++ {
		for x := 0; x < s.W; x++ {
			v := (pix[y*s.W+x] - vmin) * scale
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			g := uint8(v)
			frame.SetRGBA(xo+x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}

	// Chip occupies 5% of the panel in the top-right corner.
	cw := s.W / 20
	if cw < 2 {
		cw = 2
	}
	r, g, b, _ := chip.RGBA()
	c := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
	for y := 0; y < cw; y++ {
		for x := s.W - cw; x < s.W; x++ {
			frame.SetRGBA(xo+x, y, c)
		}
	}
}

func clampState(z, k int) int {
	if z < 0 {
		return 0
	}
	if z >= k {
		return k - 1
	}
	return z
}
