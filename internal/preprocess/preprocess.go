// Package preprocess smooths raw spike or calcium counts into firing-rate
// estimates and reduces their dimensionality with principal components.
package preprocess

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/eivinasbutkus/behavenet/internal/dataset"
)

// Options controls rate estimation and dimensionality reduction.
type Options struct {
	// SampleRate is the neural sampling rate in Hz.
	SampleRate float64

	// Window is the Gaussian smoothing window in seconds. The kernel
	// standard deviation is floor(Window * SampleRate) samples.
	Window float64

	// Components is the number of principal components to keep.
	Components int
}

// DefaultOptions returns the standard preprocessing settings: 40 Hz
// sampling, a 100 ms smoothing window, and 20 components.
func DefaultOptions() Options {
	return Options{
		SampleRate: 40,
		Window:     0.1,
		Components: 20,
	}
}

// Projection is a fitted principal-component projection together with the
// constants needed to invert the preprocessing later.
type Projection struct {
	// Mean is the per-channel mean of the pooled normalized rates.
	Mean []float64

	// Vectors is the channels-by-components matrix of principal
	// directions.
	Vectors *mat.Dense

	// MaxRates is the per-channel peak rate used for normalization.
	MaxRates []float64
}

// Apply projects a single normalized-rate vector onto the principal
// components.
func (p *Projection) Apply(rates []float64) []float64 {
	n := len(p.Mean)
	_, k := p.Vectors.Dims()
	out := make([]float64, k)
	for j := 0; j < k; j++ {
		acc := 0.0
		for i := 0; i < n; i++ {
			acc += (rates[i] - p.Mean[i]) * p.Vectors.At(i, j)
		}
		out[j] = acc
	}
	return out
}

// Result holds the preprocessed data.
type Result struct {
	// NormalizedRates are the smoothed, peak-normalized firing rates,
	// one trial per entry, trials-by-time-by-channels.
	NormalizedRates []dataset.Trial

	// LowD are the principal-component trajectories, one trial per
	// entry, trials-by-time-by-components.
	LowD []dataset.Trial

	// Projection is the fitted projection, for transforming new data and
	// inverting the normalization.
	Projection Projection
}

// Run estimates firing rates for trial-structured count data and projects
// them onto principal components fit on the pooled samples.
//
// Counts are smoothed along time with a Gaussian kernel and scaled by the
// sample rate to rate units, then each channel is divided by its peak rate
// across all trials and time. A channel that never fires has zero peak
// rate; the division is left unguarded and NaNs propagate.
func Run(counts []dataset.Trial, opts Options) (*Result, error) {
	if len(counts) == 0 {
		return nil, fmt.Errorf("preprocess: empty input")
	}
	_, nChannels := counts[0].Dims()
	if opts.Components > nChannels {
		return nil, fmt.Errorf("preprocess: %d components requested but data has %d channels", opts.Components, nChannels)
	}

	sigma := float64(int(opts.Window * opts.SampleRate))
	if sigma <= 0 {
		return nil, fmt.Errorf("preprocess: window %g at %g Hz gives an empty smoothing kernel", opts.Window, opts.SampleRate)
	}
	kernel := gaussianKernel(sigma)

	// Smooth along time and convert to rate units.
	rates := make([]dataset.Trial, len(counts))
	for i, tr := range counts {
		t, d := tr.Dims()
		if d != nChannels {
			return nil, fmt.Errorf("preprocess: trial %d has %d channels, want %d", i, d, nChannels)
		}
		out := dataset.NewTrial(t, d)
		col := make([]float64, t)
		for j := 0; j < d; j++ {
			for ti := 0; ti < t; ti++ {
				col[ti] = tr[ti][j]
			}
			sm := smooth1d(col, kernel)
			for ti := 0; ti < t; ti++ {
				out[ti][j] = sm[ti] * opts.SampleRate
			}
		}
		rates[i] = out
	}

	// Peak rate per channel over all trials and time.
	maxRates := make([]float64, nChannels)
	for _, tr := range rates {
		for _, row := range tr {
			for j, v := range row {
				if v > maxRates[j] {
					maxRates[j] = v
				}
			}
		}
	}
	for _, tr := range rates {
		for _, row := range tr {
			for j := range row {
				row[j] /= maxRates[j]
			}
		}
	}

	// PCA on the pooled (trials*time, channels) samples.
	pooled := dataset.Pool(rates)
	var pc stat.PC
	if ok := pc.PrincipalComponents(pooled, nil); !ok {
		return nil, fmt.Errorf("preprocess: principal component decomposition failed")
	}
	var vec mat.Dense
	pc.VectorsTo(&vec)

	rows, _ := pooled.Dims()
	mean := make([]float64, nChannels)
	for j := 0; j < nChannels; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, pooled), nil)
	}

	proj := Projection{
		Mean:     mean,
		Vectors:  mat.DenseCopyOf(vec.Slice(0, nChannels, 0, opts.Components)),
		MaxRates: maxRates,
	}

	// Project the pooled samples and reshape back into trials.
	centered := mat.NewDense(rows, nChannels, nil)
	for i := 0; i < rows; i++ {
		row := pooled.RawRowView(i)
		for j := 0; j < nChannels; j++ {
			centered.Set(i, j, row[j]-mean[j])
		}
	}
	var scores mat.Dense
	scores.Mul(centered, proj.Vectors)

	lengths := make([]int, len(rates))
	for i, tr := range rates {
		lengths[i], _ = tr.Dims()
	}
	lowd, err := dataset.Unpool(&scores, lengths)
	if err != nil {
		return nil, err
	}

	return &Result{
		NormalizedRates: rates,
		LowD:            lowd,
		Projection:      proj,
	}, nil
}
