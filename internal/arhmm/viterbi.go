package arhmm

import (
	"github.com/eivinasbutkus/behavenet/internal/dataset"
)

// MostLikelyStates returns the Viterbi path for one trial: the most likely
// discrete state sequence given the data and inputs. input may be nil.
func (m *Model) MostLikelyStates(trial, input dataset.Trial) ([]int, error) {
	g, err := m.factorize()
	if err != nil {
		return nil, err
	}
	return m.viterbi(g, trial, input), nil
}

func (m *Model) viterbi(g *gaussians, trial, input dataset.Trial) []int {
	logB := m.emissionLogProbs(g, trial, input)
	t := len(logB)
	k := m.Cfg.K

	// delta holds the best log score ending in each state; psi the
	// argmax backpointers.
	delta := newRect(t, k)
	psi := make([][]int, t)
	for ti := range psi {
		psi[ti] = make([]int, k)
	}
	for ki := 0; ki < k; ki++ {
		delta[0][ki] = m.LogPi[ki] + logB[0][ki]
	}

	trans := newRect(k, k)
	for ti := 1; ti < t; ti++ {
		m.transLogProbs(trans, inputRow(input, ti))
		for ki := 0; ki < k; ki++ {
			best, arg := delta[ti-1][0]+trans[0][ki], 0
			for j := 1; j < k; j++ {
				if v := delta[ti-1][j] + trans[j][ki]; v > best {
					best, arg = v, j
				}
			}
			delta[ti][ki] = best + logB[ti][ki]
			psi[ti][ki] = arg
		}
	}

	path := make([]int, t)
	best, arg := delta[t-1][0], 0
	for j := 1; j < k; j++ {
		if delta[t-1][j] > best {
			best, arg = delta[t-1][j], j
		}
	}
	path[t-1] = arg
	for ti := t - 1; ti > 0; ti-- {
		path[ti-1] = psi[ti][path[ti]]
	}
	return path
}

// StateUsage counts the time steps assigned to each state across a set of
// decoded paths.
func StateUsage(paths [][]int, k int) []int {
	usage := make([]int, k)
	for _, path := range paths {
		for _, z := range path {
			if z >= 0 && z < k {
				usage[z]++
			}
		}
	}
	return usage
}
