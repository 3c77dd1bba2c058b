package arhmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/eivinasbutkus/behavenet/internal/dataset"
)

// updateTransitions re-estimates the transition parameters. Stationary
// models (M == 0) use the closed-form count update; input-driven models
// maximize the expected complete-data log-likelihood over the stationary
// weights and the input weights jointly with L-BFGS.
func (m *Model) updateTransitions(set *dataset.Set, posts []posterior, gradTol float64) error {
	if m.Cfg.M == 0 || set.Inputs == nil {
		m.updateTransitionsClosedForm(posts)
		return nil
	}
	return m.updateTransitionsLBFGS(set, posts, gradTol)
}

func (m *Model) updateTransitionsClosedForm(posts []posterior) {
	k := m.Cfg.K
	counts := newSquare(k)
	for _, p := range posts {
		for _, xt := range p.xi {
			for i := 0; i < k; i++ {
				for j := 0; j < k; j++ {
					counts[i][j] += xt[i][j]
				}
			}
		}
	}
	for i := 0; i < k; i++ {
		row := 0.0
		for j := 0; j < k; j++ {
			row += counts[i][j]
		}
		for j := 0; j < k; j++ {
			m.LogP[i][j] = math.Log((counts[i][j] + m.Cfg.Reg) / (row + float64(k)*m.Cfg.Reg))
		}
	}
}

// transStep is one pooled transition observation: the expected transition
// counts at a time step together with that step's input.
type transStep struct {
	xi [][]float64
	u  []float64
}

func (m *Model) updateTransitionsLBFGS(set *dataset.Set, posts []posterior, gradTol float64) error {
	k, mm := m.Cfg.K, m.Cfg.M

	// Pool expected transitions with their inputs across trials.
	var steps []transStep
	for i := range set.Data {
		input := set.Input(i)
		for ti, xt := range posts[i].xi {
			steps = append(steps, transStep{xi: xt, u: inputRow(input, ti+1)})
		}
	}

	nP := k * k
	x0 := make([]float64, nP+k*mm)
	for i := 0; i < k; i++ {
		copy(x0[i*k:(i+1)*k], m.LogP[i])
		copy(x0[nP+i*mm:nP+(i+1)*mm], m.W[i])
	}

	reg := m.Cfg.Reg
	objective := func(x []float64) (float64, []float64) {
		grad := make([]float64, len(x))
		obj := 0.0

		logits := make([]float64, k)
		probs := make([]float64, k)
		for _, st := range steps {
			for j := 0; j < k; j++ {
				// Row j of the per-step transition log-probabilities.
				for kk := 0; kk < k; kk++ {
					logits[kk] = x[j*k+kk]
					for mi := 0; mi < mm; mi++ {
						logits[kk] += x[nP+kk*mm+mi] * st.u[mi]
					}
				}
				lse := floats.LogSumExp(logits)
				rowMass := 0.0
				for kk := 0; kk < k; kk++ {
					rowMass += st.xi[j][kk]
				}
				if rowMass == 0 {
					continue
				}
				for kk := 0; kk < k; kk++ {
					obj -= st.xi[j][kk] * (logits[kk] - lse)
					probs[kk] = math.Exp(logits[kk] - lse)
				}
				for kk := 0; kk < k; kk++ {
					gk := rowMass*probs[kk] - st.xi[j][kk]
					grad[j*k+kk] += gk
					for mi := 0; mi < mm; mi++ {
						grad[nP+kk*mm+mi] += gk * st.u[mi]
					}
				}
			}
		}

		// Ridge keeps the over-parameterized softmax identifiable.
		for i, xi := range x {
			obj += 0.5 * reg * xi * xi
			grad[i] += reg * xi
		}
		return obj, grad
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			f, _ := objective(x)
			return f
		},
		Grad: func(grad, x []float64) {
			_, g := objective(x)
			copy(grad, g)
		},
	}
	settings := &optimize.Settings{GradientThreshold: gradTol}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if err != nil {
		return fmt.Errorf("arhmm: transition M-step: %w", err)
	}

	for i := 0; i < k; i++ {
		copy(m.LogP[i], result.X[i*k:(i+1)*k])
		copy(m.W[i], result.X[nP+i*mm:nP+(i+1)*mm])
	}
	return nil
}
