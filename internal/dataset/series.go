// Package dataset provides trial-structured arrays for neural and latent
// time series: a set of trials, each a time-by-dimension matrix, optionally
// paired with time-aligned exogenous input sequences.
package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Trial is one trial's time series, indexed [time][dimension].
// All rows have the same length.
type Trial [][]float64

// NewTrial allocates a zeroed T-by-D trial backed by a single slice.
func NewTrial(t, d int) Trial {
	backing := make([]float64, t*d)
	trial := make(Trial, t)
	for i := range trial {
		trial[i] = backing[i*d : (i+1)*d : (i+1)*d]
	}
	return trial
}

// Dims returns the number of time steps and dimensions.
func (tr Trial) Dims() (t, d int) {
	if len(tr) == 0 {
		return 0, 0
	}
	return len(tr), len(tr[0])
}

// Clone returns a deep copy of the trial.
func (tr Trial) Clone() Trial {
	t, d := tr.Dims()
	out := NewTrial(t, d)
	for i := range tr {
		copy(out[i], tr[i])
	}
	return out
}

// Matrix returns the trial as a gonum dense matrix. The data is copied.
func (tr Trial) Matrix() *mat.Dense {
	t, d := tr.Dims()
	m := mat.NewDense(t, d, nil)
	for i := range tr {
		m.SetRow(i, tr[i])
	}
	return m
}

// FromMatrix converts a dense matrix into a Trial. The data is copied.
func FromMatrix(m mat.Matrix) Trial {
	t, d := m.Dims()
	out := NewTrial(t, d)
	for i := 0; i < t; i++ {
		for j := 0; j < d; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// Set groups trials with optional paired input sequences.
// When Inputs is non-nil it has one entry per trial, time-aligned with the
// corresponding data trial.
type Set struct {
	Data   []Trial
	Inputs []Trial
}

// NewSet wraps data trials and optional inputs into a Set after checking
// alignment. inputs may be nil.
func NewSet(data, inputs []Trial) (*Set, error) {
	if inputs != nil {
		if len(inputs) != len(data) {
			return nil, fmt.Errorf("dataset: %d input sequences for %d trials", len(inputs), len(data))
		}
		for i := range data {
			td, _ := data[i].Dims()
			tu, _ := inputs[i].Dims()
			if td != tu {
				return nil, fmt.Errorf("dataset: trial %d has %d time steps but input has %d", i, td, tu)
			}
		}
	}
	return &Set{Data: data, Inputs: inputs}, nil
}

// Len returns the number of trials.
func (s *Set) Len() int { return len(s.Data) }

// Input returns the input sequence for trial i, or nil when the set has no
// inputs.
func (s *Set) Input(i int) Trial {
	if s.Inputs == nil {
		return nil
	}
	return s.Inputs[i]
}

// Pool flattens trials-by-time into a single (sum of T_i, D) matrix.
// Used to fit pooled statistics such as principal components.
func Pool(trials []Trial) *mat.Dense {
	total := 0
	d := 0
	for _, tr := range trials {
		t, dd := tr.Dims()
		total += t
		if dd > d {
			d = dd
		}
	}
	m := mat.NewDense(total, d, nil)
	row := 0
	for _, tr := range trials {
		for i := range tr {
			m.SetRow(row, tr[i])
			row++
		}
	}
	return m
}

// Unpool reshapes a pooled matrix back into trials with the given lengths.
func Unpool(m *mat.Dense, lengths []int) ([]Trial, error) {
	rows, d := m.Dims()
	total := 0
	for _, l := range lengths {
		total += l
	}
	if total != rows {
		return nil, fmt.Errorf("dataset: trial lengths sum to %d but matrix has %d rows", total, rows)
	}
	out := make([]Trial, len(lengths))
	row := 0
	for i, l := range lengths {
		tr := NewTrial(l, d)
		for t := 0; t < l; t++ {
			copy(tr[t], m.RawRowView(row))
			row++
		}
		out[i] = tr
	}
	return out, nil
}
