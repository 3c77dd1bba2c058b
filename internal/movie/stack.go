// Package movie renders composite "hollywood squares" movies of real and
// decoded video frames, writing raw frames to an external ffmpeg encoder.
package movie

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// ImageStack is a stack of grayscale frames: Frames[t] is a row-major
// H-by-W intensity image.
type ImageStack struct {
	H, W   int
	Frames [][]float64
}

// NewImageStack allocates a zeroed stack of n frames.
func NewImageStack(n, h, w int) *ImageStack {
	frames := make([][]float64, n)
	for i := range frames {
		frames[i] = make([]float64, h*w)
	}
	return &ImageStack{H: h, W: w, Frames: frames}
}

// Len returns the number of frames.
func (s *ImageStack) Len() int { return len(s.Frames) }

// Validate checks the stack's internal consistency.
func (s *ImageStack) Validate() error {
	for i, f := range s.Frames {
		if len(f) != s.H*s.W {
			return fmt.Errorf("movie: frame %d has %d pixels, want %dx%d", i, len(f), s.H, s.W)
		}
	}
	return nil
}

// MinMax returns the intensity range over all frames.
func (s *ImageStack) MinMax() (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, f := range s.Frames {
		for _, v := range f {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return min, max
}

// PercentileRange returns the [lo, hi] intensity percentiles over all
// frames, used to clip outlier pixels in decoded stacks.
func (s *ImageStack) PercentileRange(lo, hi float64) (float64, float64, error) {
	flat := make(stats.Float64Data, 0, len(s.Frames)*s.H*s.W)
	for _, f := range s.Frames {
		flat = append(flat, f...)
	}
	pct := func(p float64) (float64, error) {
		switch {
		case p <= 0:
			return stats.Min(flat)
		case p >= 100:
			return stats.Max(flat)
		default:
			return stats.Percentile(flat, p)
		}
	}
	vmin, err := pct(lo)
	if err != nil {
		return 0, 0, fmt.Errorf("movie: percentile %g: %w", lo, err)
	}
	vmax, err := pct(hi)
	if err != nil {
		return 0, 0, fmt.Errorf("movie: percentile %g: %w", hi, err)
	}
	return vmin, vmax, nil
}
