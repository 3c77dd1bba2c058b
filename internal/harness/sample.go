package harness

import (
	"fmt"
	"math"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/exp/rand"

	"github.com/eivinasbutkus/behavenet/internal/arhmm"
	"github.com/eivinasbutkus/behavenet/internal/dataset"
)

// SampleBundle holds independent forward draws from a fitted model.
type SampleBundle struct {
	// States[i] is the discrete state path of draw i.
	States [][]int

	// Trajectories[i] is the continuous trajectory of draw i.
	Trajectories []dataset.Trial
}

// SampleARHMM draws numSamples independent trajectories from a fitted
// model, conditioned on the given input sequence. The model is deep-copied
// first so draws share no state with the caller's instance; given the same
// rng seed the draws are reproducible. Progress is reported on stderr for
// long runs.
func SampleARHMM(model *arhmm.Model, input dataset.Trial, numSamples int, withNoise bool, rng *rand.Rand) (*SampleBundle, error) {
	if numSamples <= 0 {
		return nil, fmt.Errorf("harness: sample count must be positive, got %d", numSamples)
	}
	// The sampling horizon is the input length, for stationary models too.
	t, _ := input.Dims()
	if t == 0 {
		return nil, fmt.Errorf("harness: empty input sequence")
	}

	sampler := model.Clone()
	bundle := &SampleBundle{
		States:       make([][]int, numSamples),
		Trajectories: make([]dataset.Trial, numSamples),
	}

	bar := progressbar.Default(int64(numSamples), "sampling")
	for i := 0; i < numSamples; i++ {
		z, x, err := sampler.Sample(t, input, withNoise, rng)
		if err != nil {
			return nil, err
		}
		bundle.States[i] = z
		bundle.Trajectories[i] = x
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	return bundle, nil
}

// MeanStd returns the per-time, per-dimension mean and standard deviation
// across the bundle's trajectories.
func (b *SampleBundle) MeanStd() (mean, std dataset.Trial) {
	n := len(b.Trajectories)
	if n == 0 {
		return nil, nil
	}
	t, d := b.Trajectories[0].Dims()
	mean = dataset.NewTrial(t, d)
	std = dataset.NewTrial(t, d)
	for _, tr := range b.Trajectories {
		for ti := 0; ti < t; ti++ {
			for j := 0; j < d; j++ {
				mean[ti][j] += tr[ti][j] / float64(n)
			}
		}
	}
	for _, tr := range b.Trajectories {
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
