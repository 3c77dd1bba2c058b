package arhmm

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/eivinasbutkus/behavenet/internal/dataset"
)

// Initialize sets the emission parameters from training data: a single
// least-squares AR fit on the pooled trials, copied to every state with a
// small random perturbation of the bias so the states break symmetry
// during the first E-step. The transition parameters keep their sticky
// construction from New.
func (m *Model) Initialize(set *dataset.Set, rng *rand.Rand) error {
	if set.Len() == 0 {
		return fmt.Errorf("arhmm: cannot initialize from an empty training set")
	}
	d, mm := m.Cfg.D, m.Cfg.M
	p := d + mm + 1 // regressors: previous frame, input, bias

	// Stack regressor/target pairs across all trials, skipping t=0.
	nRows := 0
	for _, tr := range set.Data {
		t, _ := tr.Dims()
		if t > 1 {
			nRows += t - 1
		}
	}
	if nRows < p {
		return fmt.Errorf("arhmm: %d AR samples cannot identify %d regression parameters", nRows, p)
	}

	phi := mat.NewDense(nRows, p, nil)
	target := mat.NewDense(nRows, d, nil)
	row := 0
	for i, tr := range set.Data {
		t, _ := tr.Dims()
		input := set.Input(i)
		for ti := 1; ti < t; ti++ {
			fillRegressors(phi.RawRowView(row), tr[ti-1], inputRow(input, ti), d, mm)
			target.SetRow(row, tr[ti])
			row++
		}
	}

	// Ridge-regularized least squares: (Phi'Phi + reg I) Theta = Phi'X.
	var gram mat.Dense
	gram.Mul(phi.T(), phi)
	for i := 0; i < p; i++ {
		gram.Set(i, i, gram.At(i, i)+m.Cfg.Reg)
	}
	var rhs mat.Dense
	rhs.Mul(phi.T(), target)
	var theta mat.Dense
	if err := theta.Solve(&gram, &rhs); err != nil {
		return fmt.Errorf("arhmm: initial AR regression: %w", err)
	}

	// Residual covariance of the shared fit.
	var pred mat.Dense
	pred.Mul(phi, &theta)
	sigma := residualCovariance(target, &pred, nil, m.Cfg.Reg)

	// Initial-frame statistics.
	mu0 := make([]float64, d)
	for _, tr := range set.Data {
		for j := 0; j < d; j++ {
			mu0[j] += tr[0][j] / float64(set.Len())
		}
	}

	// Perturbation scale from the residual spread.
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	for k := 0; k < m.Cfg.K; k++ {
		obs := &m.Obs[k]
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				obs.A[i][j] = theta.At(j, i)
			}
			for j := 0; j < mm; j++ {
				obs.V[i][j] = theta.At(d+j, i)
			}
			scale := 0.1 * (sigma[i][i] + m.Cfg.Reg)
			obs.B[i] = theta.At(p-1, i) + scale*noise.Rand()
			copy(obs.Sigma[i], sigma[i])
			obs.Mu0[i] = mu0[i]
		}
	}
	return nil
}

// fillRegressors writes [prev frame, input, 1] into dst.
func fillRegressors(dst, prev, input []float64, d, m int) {
	copy(dst[:d], prev)
	for j := 0; j < m; j++ {
		if input != nil {
			dst[d+j] = input[j]
		} else {
			dst[d+j] = 0
		}
	}
	dst[d+m] = 1
}

func inputRow(input dataset.Trial, t int) []float64 {
	if input == nil {
		return nil
	}
	return input[t]
}

// residualCovariance computes the (optionally weighted) covariance of
// target - pred rows, with reg added to the diagonal.
func residualCovariance(target, pred *mat.Dense, weights []float64, reg float64) [][]float64 {
	n, d := target.Dims()
	out := newSquare(d)
	total := 0.0
	resid := make([]float64, d)
	for r := 0; r < n; r++ {
		w := 1.0
		if weights != nil {
			w = weights[r]
		}
		if w == 0 {
			continue
		}
		for j := 0; j < d; j++ {
			resid[j] = target.At(r, j) - pred.At(r, j)
		}
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				out[i][j] += w * resid[i] * resid[j]
			}
		}
		total += w
	}
	if total > 0 {
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				out[i][j] /= total
			}
		}
	}
	for i := 0; i < d; i++ {
		out[i][i] += reg
	}
	return out
}
