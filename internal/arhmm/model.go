// Package arhmm implements an input-driven autoregressive hidden Markov
// model over continuous trajectories: K discrete states, each with linear
// Gaussian dynamics, and transition probabilities modulated by an exogenous
// input sequence. Fitting is by expectation-maximization with a closed-form
// observation M-step and an L-BFGS transition M-step.
package arhmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Config specifies the model dimensions and hyperparameters.
type Config struct {
	// K is the number of discrete states.
	K int

	// D is the dimensionality of the continuous trajectory.
	D int

	// M is the dimensionality of the exogenous input. Zero means the
	// transitions are stationary.
	M int

	// Kappa is the sticky-transition weight in [0, 1) used at
	// initialization: the initial transition matrix is
	// (1-Kappa)*uniform + Kappa*identity.
	Kappa float64

	// Reg is the ridge term added to covariance diagonals and to the
	// transition objective for numerical stability.
	Reg float64
}

// DefaultConfig returns a Config for the given dimensions with standard
// hyperparameters.
func DefaultConfig(k, d, m int) Config {
	return Config{K: k, D: d, M: m, Kappa: 0.9, Reg: 1e-4}
}

// Validate checks the configuration dimensions.
func (c Config) Validate() error {
	if c.K < 1 {
		return fmt.Errorf("arhmm: need at least one state, got K=%d", c.K)
	}
	if c.D < 1 {
		return fmt.Errorf("arhmm: need at least one data dimension, got D=%d", c.D)
	}
	if c.M < 0 {
		return fmt.Errorf("arhmm: negative input dimension M=%d", c.M)
	}
	if c.Kappa < 0 || c.Kappa >= 1 {
		return fmt.Errorf("arhmm: kappa must be in [0, 1), got %g", c.Kappa)
	}
	if c.Reg <= 0 {
		return fmt.Errorf("arhmm: reg must be positive, got %g", c.Reg)
	}
	return nil
}

// ARGaussian is one state's emission model:
//
//	x_t ~ N(A x_{t-1} + V u_t + B, Sigma)
//
// with the first time step drawn from N(Mu0, Sigma).
type ARGaussian struct {
	A     [][]float64 // D x D dynamics
	V     [][]float64 // D x M input weights
	B     []float64   // D bias
	Mu0   []float64   // D initial-step mean
	Sigma [][]float64 // D x D noise covariance
}

// Model is a fitted or fittable ARHMM. All parameters are stored as plain
// slices so results serialize with encoding/gob; linear algebra is done
// through gonum views constructed on demand.
type Model struct {
	Cfg Config

	// LogPi is the initial state distribution in log space, length K.
	LogPi []float64

	// LogP is the K x K stationary component of the log transition
	// weights.
	LogP [][]float64

	// W is the K x M input-to-transition weight matrix: input u boosts
	// the log odds of landing in state k by dot(W[k], u).
	W [][]float64

	// Obs holds the per-state emission parameters.
	Obs []ARGaussian
}

// New returns a Model with uniform sticky transitions and zeroed emission
// parameters. Call Initialize before fitting.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k, d, m := cfg.K, cfg.D, cfg.M

	model := &Model{
		Cfg:   cfg,
		LogPi: make([]float64, k),
		LogP:  make([][]float64, k),
		W:     make([][]float64, k),
		Obs:   make([]ARGaussian, k),
	}
	for i := 0; i < k; i++ {
		model.LogPi[i] = -math.Log(float64(k))
		model.LogP[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			p := (1 - cfg.Kappa) / float64(k)
			if i == j {
				p += cfg.Kappa
			}
			model.LogP[i][j] = math.Log(p)
		}
		model.W[i] = make([]float64, m)
		model.Obs[i] = ARGaussian{
			A:     newSquare(d),
			V:     newRect(d, m),
			B:     make([]float64, d),
			Mu0:   make([]float64, d),
			Sigma: eye(d),
		}
	}
	return model, nil
}

// Clone returns a deep copy of the model. The sampler copies the model so
// that draws never share state with the caller's fitted instance.
func (m *Model) Clone() *Model {
	out := &Model{
		Cfg:   m.Cfg,
		LogPi: append([]float64(nil), m.LogPi...),
		LogP:  cloneMatrix(m.LogP),
		W:     cloneMatrix(m.W),
		Obs:   make([]ARGaussian, len(m.Obs)),
	}
	for i, o := range m.Obs {
		out.Obs[i] = ARGaussian{
			A:     cloneMatrix(o.A),
			V:     cloneMatrix(o.V),
			B:     append([]float64(nil), o.B...),
			Mu0:   append([]float64(nil), o.Mu0...),
			Sigma: cloneMatrix(o.Sigma),
		}
	}
	return out
}

// transLogProbs fills dst, a K x K matrix, with the normalized log
// transition probabilities given input u. Stationary models (M == 0)
// ignore u entirely, so callers may pass any sequence as a horizon.
func (m *Model) transLogProbs(dst [][]float64, u []float64) {
	k := m.Cfg.K
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			v := m.LogP[i][j]
			if m.Cfg.M > 0 && u != nil {
				v += floats.Dot(m.W[j], u)
			}
			dst[i][j] = v
		}
		lse := floats.LogSumExp(dst[i])
		for j := 0; j < k; j++ {
			dst[i][j] -= lse
		}
	}
}

func newSquare(d int) [][]float64 { return newRect(d, d) }

func newRect(r, c int) [][]float64 {
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
	}
	return out
}

func eye(d int) [][]float64 {
	out := newSquare(d)
	for i := 0; i < d; i++ {
		out[i][i] = 1
	}
	return out
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = append([]float64(nil), m[i]...)
	}
	return out
}
