// Package harness orchestrates model fitting and sampling: it wires the
// data splits into the ARHMM, runs EM, evaluates held-out likelihoods,
// canonicalizes state labels by usage, and draws forward samples from
// fitted models.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"github.com/eivinasbutkus/behavenet/internal/arhmm"
	"github.com/eivinasbutkus/behavenet/internal/dataset"
	"github.com/eivinasbutkus/behavenet/internal/logging"
)

// FitResult bundles everything FitModel produces.
type FitResult struct {
	// RunID identifies this fit for caching and reporting.
	RunID string

	// Model is the fitted ARHMM with states relabeled by usage.
	Model *arhmm.Model

	// TrainStates holds the Viterbi path for each training trial,
	// decoded after relabeling.
	TrainStates [][]int

	// LogProbs is the EM log probability per iteration.
	LogProbs []float64

	// ValLL and TestLL are the held-out log-likelihoods.
	ValLL  float64
	TestLL float64
}

// FitModel instantiates an ARHMM, initializes it from the training split,
// runs EM, evaluates the validation and test log-likelihoods, and
// canonicalizes the state labels in descending order of training-set
// occupancy (stable tie-break on the original order). The model is
// mutated in place by the relabeling; the returned Viterbi paths are
// decoded after it so reported states are consistent.
func FitModel(cfg arhmm.Config, splits *dataset.Splits, opts arhmm.FitOptions, rng *rand.Rand, log *slog.Logger) (*FitResult, error) {
	model, err := arhmm.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := model.Initialize(splits.Train, rng); err != nil {
		return nil, err
	}

	log.Info("fitting model", "states", cfg.K, "dims", cfg.D, "inputs", cfg.M,
		"trials", splits.Train.Len())
	lps, err := model.Fit(splits.Train, opts)
	if err != nil {
		return nil, err
	}
	for i, lp := range lps {
		log.Log(context.Background(), logging.LevelTrace, "EM iteration", "iter", i, "lp", lp)
	}
	log.Info("EM finished", "iterations", len(lps), "final_lp", lps[len(lps)-1])

	valLL, err := model.LogLikelihood(splits.Val)
	if err != nil {
		return nil, fmt.Errorf("harness: validation likelihood: %w", err)
	}
	testLL, err := model.LogLikelihood(splits.Test)
	if err != nil {
		return nil, fmt.Errorf("harness: test likelihood: %w", err)
	}

	// Decode, relabel by usage, and decode again so reported paths use
	// the canonical labels.
	paths, err := decodeAll(model, splits.Train)
	if err != nil {
		return nil, err
	}
	order := usageOrder(arhmm.StateUsage(paths, cfg.K))
	if err := model.Permute(order); err != nil {
		return nil, err
	}
	paths, err = decodeAll(model, splits.Train)
	if err != nil {
		return nil, err
	}

	return &FitResult{
		RunID:       uuid.NewString(),
		Model:       model,
		TrainStates: paths,
		LogProbs:    lps,
		ValLL:       valLL,
		TestLL:      testLL,
	}, nil
}

func decodeAll(model *arhmm.Model, set *dataset.Set) ([][]int, error) {
	paths := make([][]int, set.Len())
	for i, tr := range set.Data {
		path, err := model.MostLikelyStates(tr, set.Input(i))
		if err != nil {
			return nil, err
		}
		paths[i] = path
	}
	return paths, nil
}

// usageOrder returns state indices sorted by descending occupancy, with
// ties kept in original order.
func usageOrder(usage []int) []int {
	order := make([]int, len(usage))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return usage[order[a]] > usage[order[b]]
	})
	return order
}
