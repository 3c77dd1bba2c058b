package arhmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/eivinasbutkus/behavenet/internal/dataset"
)

// FitOptions controls the EM loop. The defaults mirror the harness
// settings: 50 iterations, overall tolerance 0.1, transition M-step
// gradient tolerance 1e-3.
type FitOptions struct {
	// NumIters is the maximum number of EM iterations.
	NumIters int

	// Tolerance stops EM early when the log-probability improvement
	// drops below it.
	Tolerance float64

	// TransTolerance is the gradient threshold for the L-BFGS
	// transition M-step.
	TransTolerance float64
}

// DefaultFitOptions returns the standard EM settings.
func DefaultFitOptions() FitOptions {
	return FitOptions{NumIters: 50, Tolerance: 1e-1, TransTolerance: 1e-3}
}

// posterior holds the E-step quantities for one trial.
type posterior struct {
	// gamma[t][k] is the marginal probability of state k at time t.
	gamma [][]float64

	// xi[t-1][j][k] is the joint probability of states (j, k) at times
	// (t-1, t), for t in [1, T).
	xi [][][]float64

	// ll is the trial log-likelihood.
	ll float64
}

// forward fills alpha with forward log messages and returns the trial
// log-likelihood.
func (m *Model) forward(input dataset.Trial, logB [][]float64) ([][]float64, float64) {
	t := len(logB)
	k := m.Cfg.K
	alpha := newRect(t, k)
	for ki := 0; ki < k; ki++ {
		alpha[0][ki] = m.LogPi[ki] + logB[0][ki]
	}
	trans := newRect(k, k)
	work := make([]float64, k)
	for ti := 1; ti < t; ti++ {
		m.transLogProbs(trans, inputRow(input, ti))
		for ki := 0; ki < k; ki++ {
			for j := 0; j < k; j++ {
				work[j] = alpha[ti-1][j] + trans[j][ki]
			}
			alpha[ti][ki] = logB[ti][ki] + floats.LogSumExp(work)
		}
	}
	return alpha, floats.LogSumExp(alpha[t-1])
}

// backward fills beta with backward log messages.
func (m *Model) backward(input dataset.Trial, logB [][]float64) [][]float64 {
	t := len(logB)
	k := m.Cfg.K
	beta := newRect(t, k)
	trans := newRect(k, k)
	work := make([]float64, k)
	for ti := t - 2; ti >= 0; ti-- {
		m.transLogProbs(trans, inputRow(input, ti+1))
		for j := 0; j < k; j++ {
			for ki := 0; ki < k; ki++ {
				work[ki] = trans[j][ki] + logB[ti+1][ki] + beta[ti+1][ki]
			}
			beta[ti][j] = floats.LogSumExp(work)
		}
	}
	return beta
}

// eStep runs forward-backward on one trial.
func (m *Model) eStep(g *gaussians, trial, input dataset.Trial) posterior {
	logB := m.emissionLogProbs(g, trial, input)
	t := len(logB)
	k := m.Cfg.K

	alpha, ll := m.forward(input, logB)
	beta := m.backward(input, logB)

	gamma := newRect(t, k)
	for ti := 0; ti < t; ti++ {
		for ki := 0; ki < k; ki++ {
			gamma[ti][ki] = math.Exp(alpha[ti][ki] + beta[ti][ki] - ll)
		}
	}

	xi := make([][][]float64, t-1)
	trans := newRect(k, k)
	for ti := 1; ti < t; ti++ {
		m.transLogProbs(trans, inputRow(input, ti))
		xt := newRect(k, k)
		for j := 0; j < k; j++ {
			for ki := 0; ki < k; ki++ {
				xt[j][ki] = math.Exp(alpha[ti-1][j] + trans[j][ki] + logB[ti][ki] + beta[ti][ki] - ll)
			}
		}
		xi[ti-1] = xt
	}

	return posterior{gamma: gamma, xi: xi, ll: ll}
}

// Fit runs EM on the training set and returns the per-iteration log
// probabilities. The model is mutated in place. Optimization failures in
// the transition M-step propagate unretried.
func (m *Model) Fit(set *dataset.Set, opts FitOptions) ([]float64, error) {
	if set.Len() == 0 {
		return nil, fmt.Errorf("arhmm: cannot fit an empty training set")
	}
	if opts.NumIters < 1 {
		return nil, fmt.Errorf("arhmm: need at least one EM iteration, got %d", opts.NumIters)
	}
	var lps []float64
	posts := make([]posterior, set.Len())

	for iter := 0; iter < opts.NumIters; iter++ {
		g, err := m.factorize()
		if err != nil {
			return lps, err
		}

		total := 0.0
		for i, tr := range set.Data {
			posts[i] = m.eStep(g, tr, set.Input(i))
			total += posts[i].ll
		}
		lps = append(lps, total)

		if iter > 0 && lps[iter]-lps[iter-1] < opts.Tolerance {
			break
		}

		m.updateInitial(posts)
		if err := m.updateTransitions(set, posts, opts.TransTolerance); err != nil {
			return lps, err
		}
		if err := m.updateEmissions(set, posts); err != nil {
			return lps, err
		}
	}
	return lps, nil
}

// LogLikelihood returns the total log-likelihood of a split under the
// current parameters.
func (m *Model) LogLikelihood(set *dataset.Set) (float64, error) {
	g, err := m.factorize()
	if err != nil {
		return math.NaN(), err
	}
	total := 0.0
	for i, tr := range set.Data {
		logB := m.emissionLogProbs(g, tr, set.Input(i))
		_, ll := m.forward(set.Input(i), logB)
		total += ll
	}
	return total, nil
}

// updateInitial re-estimates the initial state distribution from the
// first-frame marginals.
func (m *Model) updateInitial(posts []posterior) {
	k := m.Cfg.K
	counts := make([]float64, k)
	for _, p := range posts {
		for ki := 0; ki < k; ki++ {
			counts[ki] += p.gamma[0][ki]
		}
	}
	total := floats.Sum(counts)
	for ki := 0; ki < k; ki++ {
		m.LogPi[ki] = math.Log((counts[ki] + m.Cfg.Reg) / (total + float64(k)*m.Cfg.Reg))
	}
}

// updateEmissions re-estimates each state's AR parameters by weighted
// least squares with the state marginals as weights, then recomputes the
// noise covariance from the weighted residuals.
func (m *Model) updateEmissions(set *dataset.Set, posts []posterior) error {
	d, mm := m.Cfg.D, m.Cfg.M
	p := d + mm + 1

	phi := make([]float64, p)
	for k := 0; k < m.Cfg.K; k++ {
		gram := mat.NewSymDense(p, nil)
		rhs := mat.NewDense(p, d, nil)

		for i, tr := range set.Data {
			t, _ := tr.Dims()
			input := set.Input(i)
			for ti := 1; ti < t; ti++ {
				w := posts[i].gamma[ti][k]
				if w == 0 {
					continue
				}
				fillRegressors(phi, tr[ti-1], inputRow(input, ti), d, mm)
				gram.SymRankOne(gram, w, mat.NewVecDense(p, phi))
				for a := 0; a < p; a++ {
					for b := 0; b < d; b++ {
						rhs.Set(a, b, rhs.At(a, b)+w*phi[a]*tr[ti][b])
					}
				}
			}
		}
		for a := 0; a < p; a++ {
			gram.SetSym(a, a, gram.At(a, a)+m.Cfg.Reg)
		}

		var theta mat.Dense
		if err := theta.Solve(gram, rhs); err != nil {
			return fmt.Errorf("arhmm: emission M-step for state %d: %w", k, err)
		}

		obs := &m.Obs[k]
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				obs.A[i][j] = theta.At(j, i)
			}
			for j := 0; j < mm; j++ {
				obs.V[i][j] = theta.At(d+j, i)
			}
			obs.B[i] = theta.At(p-1, i)
		}

		// Initial-frame mean, weighted by the first-frame marginals.
		w0 := 0.0
		mu0 := make([]float64, d)
		for i, tr := range set.Data {
			w := posts[i].gamma[0][k]
			w0 += w
			for j := 0; j < d; j++ {
				mu0[j] += w * tr[0][j]
			}
		}
		if w0 > 1e-12 {
			for j := 0; j < d; j++ {
				obs.Mu0[j] = mu0[j] / w0
			}
		}

		// Weighted residual covariance over AR steps and the initial frame.
		sigma := newSquare(d)
		total := 0.0
		meanBuf := make([]float64, d)
		resid := make([]float64, d)
		for i, tr := range set.Data {
			t, _ := tr.Dims()
			input := set.Input(i)
			for ti := 0; ti < t; ti++ {
				w := posts[i].gamma[ti][k]
				if w == 0 {
					continue
				}
				m.mean(k, ti, tr, input, meanBuf)
				for j := 0; j < d; j++ {
					resid[j] = tr[ti][j] - meanBuf[j]
				}
				for a := 0; a < d; a++ {
					for b := 0; b < d; b++ {
						sigma[a][b] += w * resid[a] * resid[b]
					}
				}
				total += w
			}
		}
		if total > 1e-12 {
			for a := 0; a < d; a++ {
				for b := 0; b < d; b++ {
					sigma[a][b] /= total
				}
			}
		}
		for a := 0; a < d; a++ {
			sigma[a][a] += m.Cfg.Reg
		}
		obs.Sigma = sigma
	}
	return nil
}
