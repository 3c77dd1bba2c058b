package plots

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/eivinasbutkus/behavenet/internal/dataset"
)

// denseGrid adapts a rows-by-cols matrix to plotter.GridXYZ with unit
// spacing.
type denseGrid struct {
	data [][]float64
}

func (g denseGrid) Dims() (c, r int) {
	if len(g.data) == 0 {
		return 0, 0
	}
	return len(g.data[0]), len(g.data)
}
func (g denseGrid) Z(c, r int) float64 { return g.data[r][c] }
func (g denseGrid) X(c int) float64    { return float64(c) }
func (g denseGrid) Y(r int) float64    { return float64(r) }

// NeuralActivity shows the low-dimensional trajectory as offset traces
// over a heat map of the normalized firing rates, for time steps in
// [from, to).
func NeuralActivity(lowD, rates dataset.Trial, from, to int) (*Figure, error) {
	t, _ := lowD.Dims()
	if to > t {
		to = t
	}
	if from < 0 || from >= to {
		return nil, fmt.Errorf("plots: bad time slice [%d, %d)", from, to)
	}

	top := plot.New()
	top.Y.Label.Text = "PC"
	top.X.Min, top.X.Max = 0, float64(to-from)
	_, d := lowD.Dims()
	for j := 0; j < d; j++ {
		pts := make(plotter.XYs, to-from)
		for ti := from; ti < to; ti++ {
			pts[ti-from].X = float64(ti - from)
			pts[ti-from].Y = lowD[ti][j] - 3*float64(j)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(j)
		line.Width = vg.Points(0.75)
		top.Add(line)
	}

	bottom := plot.New()
	bottom.X.Label.Text = "time"
	bottom.Y.Label.Text = "neuron"
	_, n := rates.Dims()
	grid := denseGrid{data: make([][]float64, n)}
	for j := 0; j < n; j++ {
		row := make([]float64, to-from)
		for ti := from; ti < to; ti++ {
			row[ti-from] = rates[ti][j]
		}
		grid.data[j] = row
	}
	hm := plotter.NewHeatMap(grid, palette.Heat(128, 1))
	hm.Min, hm.Max = 0, 1
	bottom.Add(hm)

	return newFigure(8, 7, top, bottom), nil
}

// ValidationLikelihoods plots the validation log-likelihood against the
// number of discrete states, one line per model name. perTime rescales
// the likelihoods (e.g. by the number of validation time steps).
func ValidationLikelihoods(results map[string]map[int]float64, perTime float64) (*Figure, error) {
	if perTime == 0 {
		perTime = 1
	}

	p := plot.New()
	p.X.Label.Text = "num. discrete states"
	p.Y.Label.Text = "validation log lkhd."
	p.Legend.Top = false
	p.Legend.Left = false

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		byK := results[name]
		ks := make([]int, 0, len(byK))
		for k := range byK {
			ks = append(ks, k)
		}
		sort.Ints(ks)

		pts := make(plotter.XYs, len(ks))
		for j, k := range ks {
			pts[j].X = float64(k)
			pts[j].Y = byK[k] / perTime
		}
		line, scatter, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		scatter.Color = plotutil.Color(i)
		scatter.Shape = plotutil.Shape(i)
		p.Add(line, scatter)
		p.Legend.Add(name, line, scatter)
	}

	return newFigure(8, 6, p), nil
}

// SampledLatents overlays sampled trajectories on the observed one, one
// offset band per dimension: up to ten sample traces, a +/- 2 sigma band
// across all samples, and the observed trajectory in black.
func SampledLatents(observed dataset.Trial, samples []dataset.Trial) (*Figure, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("plots: no samples")
	}
	t, d := observed.Dims()

	// Offset between dimension bands, from the observed scale.
	peak := 0.0
	for _, row := range observed {
		for _, v := range row {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
	}
	spc := 1.1 * peak

	mean, std := sampleMeanStd(samples)

	p := plot.New()
	p.X.Label.Text = "time"
	p.Y.Label.Text = "continuous latent state"

	nShow := len(samples)
	if nShow > 10 {
		nShow = 10
	}

	for j := 0; j < d; j++ {
		off := -spc * float64(j)
		col := plotutil.Color(j)

		// 2 sigma band, drawn first so the traces sit on top.
		band := make(plotter.XYs, 2*t)
		for ti := 0; ti < t; ti++ {
			band[ti].X = float64(ti)
			band[ti].Y = mean[ti][j] + 2*std[ti][j] + off
			band[2*t-1-ti].X = float64(ti)
			band[2*t-1-ti].Y = mean[ti][j] - 2*std[ti][j] + off
		}
		poly, err := plotter.NewPolygon(band)
		if err != nil {
			return nil, err
		}
		poly.Color = withAlpha(col, 64)
		poly.LineStyle.Width = 0
		p.Add(poly)

		for s := 0; s < nShow; s++ {
			tr := samples[s*len(samples)/nShow]
			pts := make(plotter.XYs, t)
			for ti := 0; ti < t; ti++ {
				pts[ti].X = float64(ti)
				pts[ti].Y = tr[ti][j] + off
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return nil, err
			}
			line.Color = col
			line.Width = vg.Points(0.5)
			p.Add(line)
		}

		obs := make(plotter.XYs, t)
		for ti := 0; ti < t; ti++ {
			obs[ti].X = float64(ti)
			obs[ti].Y = observed[ti][j] + off
		}
		line, err := plotter.NewLine(obs)
		if err != nil {
			return nil, err
		}
		line.Color = color.Black
		line.Width = vg.Points(1)
		p.Add(line)
	}

	return newFigure(8, 6, p), nil
}

// NeuralAndDiscreteSamples stacks the neural input traces, a raster of
// sampled discrete state paths, and the inferred state strip.
func NeuralAndDiscreteSamples(input dataset.Trial, stateSamples [][]int, inferred []int, k int) (*Figure, error) {
	if len(stateSamples) == 0 {
		return nil, fmt.Errorf("plots: no state samples")
	}
	t, m := input.Dims()

	top := plot.New()
	top.Y.Label.Text = "PCs of neural activity"
	top.X.Min, top.X.Max = 0, float64(t)
	for j := 0; j < m; j++ {
		pts := make(plotter.XYs, t)
		for ti := 0; ti < t; ti++ {
			pts[ti].X = float64(ti)
			pts[ti].Y = input[ti][j] - 5*float64(j)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = color.Black
		line.Width = vg.Points(0.75)
		top.Add(line)
	}

	statePalette := palette.Rainbow(k, palette.Blue, palette.Red, 1, 1, 1)

	mid := plot.New()
	mid.Y.Label.Text = "decoded state samples"
	raster := denseGrid{data: make([][]float64, len(stateSamples))}
	for i, path := range stateSamples {
		row := make([]float64, t)
		for ti := 0; ti < t && ti < len(path); ti++ {
			row[ti] = float64(path[ti])
		}
		raster.data[i] = row
	}
	hm := plotter.NewHeatMap(raster, statePalette)
	hm.Min, hm.Max = 0, float64(k-1)
	mid.Add(hm)

	bottom := plot.New()
	bottom.X.Label.Text = "time bin"
	bottom.Y.Label.Text = "inf. state"
	strip := denseGrid{data: [][]float64{make([]float64, len(inferred))}}
	for ti, z := range inferred {
		strip.data[0][ti] = float64(z)
	}
	shm := plotter.NewHeatMap(strip, statePalette)
	shm.Min, shm.Max = 0, float64(k-1)
	bottom.Add(shm)

	return newFigure(8, 8, top, mid, bottom), nil
}

func sampleMeanStd(samples []dataset.Trial) (mean, std dataset.Trial) {
	n := len(samples)
	t, d := samples[0].Dims()
	mean = dataset.NewTrial(t, d)
	std = dataset.NewTrial(t, d)
	for _, tr := range samples {
		for ti := 0; ti < t; ti++ {
			for j := 0; j < d; j++ {
				mean[ti][j] += tr[ti][j] / float64(n)
			}
		}
	}
	for _, tr := range samples {
		for ti := 0; ti < t; ti++ {
			for j := 0; j < d; j++ {
				dev := tr[ti][j] - mean[ti][j]
				std[ti][j] += dev * dev / float64(n)
			}
		}
	}
	for ti := 0; ti < t; ti++ {
		for j := 0; j < d; j++ {
			std[ti][j] = math.Sqrt(std[ti][j])
		}
	}
	return mean, std
}

func withAlpha(c color.Color, alpha uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: alpha}
}
