package arhmm

import "fmt"

// Permute relabels the discrete states in place: state order[i] becomes
// state i. The initial distribution, both transition parameter blocks, and
// the emission parameters are all reordered consistently. order must be a
// permutation of [0, K).
func (m *Model) Permute(order []int) error {
	k := m.Cfg.K
	if len(order) != k {
		return fmt.Errorf("arhmm: permutation has %d entries for %d states", len(order), k)
	}
	seen := make([]bool, k)
	for _, o := range order {
		if o < 0 || o >= k || seen[o] {
			return fmt.Errorf("arhmm: invalid permutation %v", order)
		}
		seen[o] = true
	}

	logPi := make([]float64, k)
	logP := newSquare(k)
	w := make([][]float64, k)
	obs := make([]ARGaussian, k)
	for i, oi := range order {
		logPi[i] = m.LogPi[oi]
		for j, oj := range order {
			logP[i][j] = m.LogP[oi][oj]
		}
		w[i] = m.W[oi]
		obs[i] = m.Obs[oi]
	}
	m.LogPi = logPi
	m.LogP = logP
	m.W = w
	m.Obs = obs
	return nil
}
