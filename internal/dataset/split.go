package dataset

import (
	"fmt"

	"github.com/eivinasbutkus/behavenet/internal/config"
)

// Splits holds the three data splits used by the fit harness.
type Splits struct {
	Train *Set
	Val   *Set
	Test  *Set
}

// Split partitions a set into train/val/test blocks by the trial ratio in
// ts, cycling through the trials in order. Gap trials separate the blocks
// and are discarded. A block whose share rounds to zero trials yields an
// empty set rather than an error.
func Split(s *Set, ts config.TrialSplits) (*Splits, error) {
	block := ts.Train + ts.Gap + ts.Val + ts.Gap + ts.Test + ts.Gap
	if block == 0 {
		return nil, fmt.Errorf("dataset: empty trial split ratio")
	}

	var train, val, test []int
	for i := 0; i < s.Len(); i++ {
		pos := i % block
		switch {
		case pos < ts.Train:
			train = append(train, i)
		case pos < ts.Train+ts.Gap:
			// gap
		case pos < ts.Train+ts.Gap+ts.Val:
			val = append(val, i)
		case pos < ts.Train+ts.Gap+ts.Val+ts.Gap:
			// gap
		case pos < ts.Train+ts.Gap+ts.Val+ts.Gap+ts.Test:
			test = append(test, i)
		}
	}

	return &Splits{
		Train: s.subset(train),
		Val:   s.subset(val),
		Test:  s.subset(test),
	}, nil
}

func (s *Set) subset(idx []int) *Set {
	out := &Set{Data: make([]Trial, len(idx))}
	if s.Inputs != nil {
		out.Inputs = make([]Trial, len(idx))
	}
	for j, i := range idx {
		out.Data[j] = s.Data[i]
		if s.Inputs != nil {
			out.Inputs[j] = s.Inputs[i]
		}
	}
	return out
}
