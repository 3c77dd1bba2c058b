package arhmm

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/eivinasbutkus/behavenet/internal/dataset"
)

// Sample draws one forward trajectory of length t from the model's
// generative process, conditioned on the given input sequence. It returns
// the discrete state path and the continuous trajectory. When withNoise is
// false the trajectory follows the state-conditional means exactly.
// input may be nil only for models with M == 0.
func (m *Model) Sample(t int, input dataset.Trial, withNoise bool, rng *rand.Rand) ([]int, dataset.Trial, error) {
	if t <= 0 {
		return nil, nil, fmt.Errorf("arhmm: sample length must be positive, got %d", t)
	}
	if m.Cfg.M > 0 {
		if input == nil {
			return nil, nil, fmt.Errorf("arhmm: model expects %d-dimensional inputs but none were given", m.Cfg.M)
		}
		ti, mi := input.Dims()
		if ti < t || mi != m.Cfg.M {
			return nil, nil, fmt.Errorf("arhmm: input is %dx%d, want at least %dx%d", ti, mi, t, m.Cfg.M)
		}
	}

	k, d := m.Cfg.K, m.Cfg.D

	var noise []*distmv.Normal
	if withNoise {
		noise = make([]*distmv.Normal, k)
		zero := make([]float64, d)
		for ki := 0; ki < k; ki++ {
			n, ok := distmv.NewNormal(zero, symFrom(m.Obs[ki].Sigma), rng)
			if !ok {
				return nil, nil, fmt.Errorf("arhmm: state %d covariance is not positive definite", ki)
			}
			noise[ki] = n
		}
	}

	states := make([]int, t)
	trial := dataset.NewTrial(t, d)
	meanBuf := make([]float64, d)
	eps := make([]float64, d)

	probs := make([]float64, k)
	for ki := 0; ki < k; ki++ {
		probs[ki] = math.Exp(m.LogPi[ki])
	}
	states[0] = sampleCategorical(probs, rng)

	trans := newRect(k, k)
	for ti := 0; ti < t; ti++ {
		if ti > 0 {
			m.transLogProbs(trans, inputRow(input, ti))
			for ki := 0; ki < k; ki++ {
				probs[ki] = math.Exp(trans[states[ti-1]][ki])
			}
			states[ti] = sampleCategorical(probs, rng)
		}
		m.mean(states[ti], ti, trial, input, meanBuf)
		copy(trial[ti], meanBuf)
		if withNoise {
			noise[states[ti]].Rand(eps)
			for j := 0; j < d; j++ {
				trial[ti][j] += eps[j]
			}
		}
	}
	return states, trial, nil
}

func sampleCategorical(probs []float64, rng *rand.Rand) int {
	r := rng.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if r < acc {
			return i
		}
	}
	return len(probs) - 1
}
