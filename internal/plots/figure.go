// Package plots renders diagnostic figures for fitted and sampled
// trajectories. All functions are pure: they map arrays to an in-memory
// Figure, and nothing is written to disk unless the caller asks.
package plots

import (
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Figure is a vertical stack of aligned plot panels.
type Figure struct {
	panels []*plot.Plot
	width  vg.Length
	height vg.Length
}

// newFigure creates a figure with the given panels and size in inches.
func newFigure(widthIn, heightIn float64, panels ...*plot.Plot) *Figure {
	return &Figure{
		panels: panels,
		width:  vg.Length(widthIn) * vg.Inch,
		height: vg.Length(heightIn) * vg.Inch,
	}
}

// Panels exposes the underlying plots for callers that want to restyle
// them before saving.
func (f *Figure) Panels() []*plot.Plot { return f.panels }

// Save renders the figure as a PNG at path.
func (f *Figure) Save(path string) error {
	if len(f.panels) == 0 {
		return fmt.Errorf("plots: empty figure")
	}

	img := vgimg.New(f.width, f.height)
	dc := draw.New(img)

	grid := make([][]*plot.Plot, len(f.panels))
	for i, p := range f.panels {
		grid[i] = []*plot.Plot{p}
	}
	tiles := draw.Tiles{
		Rows: len(f.panels),
		Cols: 1,
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}
	canvases := plot.Align(grid, tiles, dc)
	for i, p := range f.panels {
		p.Draw(canvases[i][0])
	}

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("plots: creating %s: %w", path, err)
	}
	defer w.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("plots: writing %s: %w", path, err)
	}
	return nil
}
