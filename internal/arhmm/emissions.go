package arhmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/eivinasbutkus/behavenet/internal/dataset"
)

const log2Pi = 1.8378770664093453

// gaussians caches per-state Cholesky factorizations of the noise
// covariances. It is rebuilt after every M-step and after Permute.
type gaussians struct {
	chol   []mat.Cholesky
	logDet []float64
}

func (m *Model) factorize() (*gaussians, error) {
	g := &gaussians{
		chol:   make([]mat.Cholesky, m.Cfg.K),
		logDet: make([]float64, m.Cfg.K),
	}
	for k := 0; k < m.Cfg.K; k++ {
		sym := symFrom(m.Obs[k].Sigma)
		if ok := g.chol[k].Factorize(sym); !ok {
			return nil, fmt.Errorf("arhmm: state %d covariance is not positive definite", k)
		}
		g.logDet[k] = g.chol[k].LogDet()
	}
	return g, nil
}

// mean computes the emission mean for state k at time t of a trial.
// At t=0 the mean is the state's initial mean; afterwards it is the AR
// prediction from the previous observation and the current input.
func (m *Model) mean(k, t int, trial, input dataset.Trial, dst []float64) {
	obs := &m.Obs[k]
	d := m.Cfg.D
	if t == 0 {
		copy(dst, obs.Mu0)
		return
	}
	prev := trial[t-1]
	for i := 0; i < d; i++ {
		acc := obs.B[i]
		acc += floats.Dot(obs.A[i], prev)
		if m.Cfg.M > 0 && input != nil {
			acc += floats.Dot(obs.V[i], input[t])
		}
		dst[i] = acc
	}
}

// logObsProb returns log N(x_t; mean, Sigma_k) using the cached Cholesky.
func (m *Model) logObsProb(g *gaussians, k, t int, trial, input dataset.Trial, scratch, resid []float64) float64 {
	d := m.Cfg.D
	m.mean(k, t, trial, input, scratch)
	for i := 0; i < d; i++ {
		resid[i] = trial[t][i] - scratch[i]
	}
	rv := mat.NewVecDense(d, resid)
	var solved mat.VecDense
	if err := g.chol[k].SolveVecTo(&solved, rv); err != nil {
		return math.Inf(-1)
	}
	maha := mat.Dot(rv, &solved)
	return -0.5 * (float64(d)*log2Pi + g.logDet[k] + maha)
}

// emissionLogProbs fills a T x K matrix of per-state emission log
// densities for one trial.
func (m *Model) emissionLogProbs(g *gaussians, trial, input dataset.Trial) [][]float64 {
	t, _ := trial.Dims()
	k := m.Cfg.K
	out := newRect(t, k)
	scratch := make([]float64, m.Cfg.D)
	resid := make([]float64, m.Cfg.D)
	for ti := 0; ti < t; ti++ {
		for ki := 0; ki < k; ki++ {
			out[ti][ki] = m.logObsProb(g, ki, ti, trial, input, scratch, resid)
		}
	}
	return out
}

func symFrom(s [][]float64) *mat.SymDense {
	d := len(s)
	sym := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			sym.SetSym(i, j, 0.5*(s[i][j]+s[j][i]))
		}
	}
	return sym
}
