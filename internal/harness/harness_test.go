package harness

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/eivinasbutkus/behavenet/internal/arhmm"
	"github.com/eivinasbutkus/behavenet/internal/config"
	"github.com/eivinasbutkus/behavenet/internal/dataset"
	"github.com/eivinasbutkus/behavenet/internal/logging"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// twoStateTruth builds a separable two-state generator and samples trials
// from it.
func twoStateTruth(t *testing.T, nTrials, tlen int, rng *rand.Rand) (*arhmm.Model, *dataset.Set) {
	t.Helper()
	cfg := arhmm.DefaultConfig(2, 2, 0)
	cfg.Kappa = 0.95
	truth, err := arhmm.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for k := 0; k < 2; k++ {
		sign := float64(1 - 2*k)
		for j := 0; j < 2; j++ {
			truth.Obs[k].A[j][j] = 0.3
			truth.Obs[k].B[j] = sign * 2
			truth.Obs[k].Mu0[j] = sign * 3
			truth.Obs[k].Sigma[j][j] = 0.05
		}
	}

	data := make([]dataset.Trial, nTrials)
	for i := range data {
		_, x, err := truth.Sample(tlen, nil, true, rng)
		if err != nil {
			t.Fatal(err)
		}
		data[i] = x
	}
	return truth, &dataset.Set{Data: data}
}

func TestFitModel(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	_, set := twoStateTruth(t, 10, 100, rng)
	splits, err := dataset.Split(set, config.TrialSplits{Train: 8, Val: 1, Test: 1})
	if err != nil {
		t.Fatal(err)
	}

	opts := arhmm.FitOptions{NumIters: 15, Tolerance: 1e-2, TransTolerance: 1e-3}
	res, err := FitModel(arhmm.DefaultConfig(2, 2, 0), splits, opts, rng, discardLogger())
	if err != nil {
		t.Fatalf("FitModel() error = %v", err)
	}

	if res.RunID == "" {
		t.Error("FitModel() returned an empty run ID")
	}
	if len(res.LogProbs) == 0 {
		t.Error("FitModel() recorded no EM log probabilities")
	}
	for _, ll := range []float64{res.ValLL, res.TestLL} {
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			t.Errorf("held-out likelihood = %v", ll)
		}
	}

	if len(res.TrainStates) != splits.Train.Len() {
		t.Fatalf("decoded %d paths for %d training trials", len(res.TrainStates), splits.Train.Len())
	}
	for i, path := range res.TrainStates {
		if len(path) != 100 {
			t.Errorf("path %d has length %d, want 100", i, len(path))
		}
	}

	// After relabeling, state occupancy is non-increasing in the label.
	usage := arhmm.StateUsage(res.TrainStates, 2)
	if !sort.IsSorted(sort.Reverse(sort.IntSlice(usage))) {
		t.Errorf("state usage %v not in descending label order", usage)
	}
}

func TestFitModelSeededReproducibility(t *testing.T) {
	run := func(seed uint64) *FitResult {
		rng := rand.New(rand.NewSource(33))
		_, set := twoStateTruth(t, 10, 80, rng)
		splits, err := dataset.Split(set, config.TrialSplits{Train: 8, Val: 1, Test: 1})
		if err != nil {
			t.Fatal(err)
		}
		opts := arhmm.FitOptions{NumIters: 10, Tolerance: 1e-2, TransTolerance: 1e-3}
		res, err := FitModel(arhmm.DefaultConfig(2, 2, 0), splits, opts, rand.New(rand.NewSource(seed)), discardLogger())
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	a, b := run(7), run(7)
	if a.ValLL != b.ValLL || a.TestLL != b.TestLL {
		t.Errorf("same seed gave different likelihoods: (%v, %v) vs (%v, %v)",
			a.ValLL, a.TestLL, b.ValLL, b.TestLL)
	}
	if len(a.LogProbs) != len(b.LogProbs) {
		t.Errorf("same seed gave different iteration counts: %d vs %d",
			len(a.LogProbs), len(b.LogProbs))
	}
	if a.RunID == b.RunID {
		t.Error("run IDs collide across fits")
	}
}

func TestFitModelTraceOutput(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	_, set := twoStateTruth(t, 10, 60, rng)
	splits, err := dataset.Split(set, config.TrialSplits{Train: 8, Val: 1, Test: 1})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	log := logging.NewLogger("trace", &buf)
	opts := arhmm.FitOptions{NumIters: 5, Tolerance: 1e-2, TransTolerance: 1e-3}
	if _, err := FitModel(arhmm.DefaultConfig(2, 2, 0), splits, opts, rng, log); err != nil {
		t.Fatalf("FitModel() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "EM iteration") {
		t.Error("trace log missing per-iteration EM output")
	}
	if !strings.Contains(out, "TRACE") {
		t.Error("per-iteration output not logged at trace level")
	}

	// At info level the per-iteration lines are suppressed.
	buf.Reset()
	log = logging.NewLogger("info", &buf)
	if _, err := FitModel(arhmm.DefaultConfig(2, 2, 0), splits, opts, rng, log); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "EM iteration") {
		t.Error("per-iteration output emitted at info level")
	}
}

func TestUsageOrder(t *testing.T) {
	tests := []struct {
		name  string
		usage []int
		want  []int
	}{
		{"already sorted", []int{5, 3, 1}, []int{0, 1, 2}},
		{"reversed", []int{1, 3, 5}, []int{2, 1, 0}},
		{"stable ties", []int{2, 4, 2}, []int{1, 0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usageOrder(tt.usage)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("usageOrder(%v) = %v, want %v", tt.usage, got, tt.want)
					break
				}
			}
		})
	}
}

func TestSampleARHMM(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	truth, set := twoStateTruth(t, 1, 60, rng)
	input := set.Data[0] // horizon only; the stationary model ignores values

	bundle, err := SampleARHMM(truth, input, 5, true, rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("SampleARHMM() error = %v", err)
	}
	if len(bundle.States) != 5 || len(bundle.Trajectories) != 5 {
		t.Fatalf("bundle has %d/%d draws, want 5", len(bundle.States), len(bundle.Trajectories))
	}
	for i := range bundle.Trajectories {
		if gt, gd := bundle.Trajectories[i].Dims(); gt != 60 || gd != 2 {
			t.Errorf("draw %d dims = (%d, %d), want (60, 2)", i, gt, gd)
		}
	}

	t.Run("reproducible", func(t *testing.T) {
		again, err := SampleARHMM(truth, input, 5, true, rand.New(rand.NewSource(11)))
		if err != nil {
			t.Fatal(err)
		}
		for i := range bundle.Trajectories {
			for ti := range bundle.Trajectories[i] {
				for j := range bundle.Trajectories[i][ti] {
					if bundle.Trajectories[i][ti][j] != again.Trajectories[i][ti][j] {
						t.Fatalf("draw %d diverges at [%d][%d]", i, ti, j)
					}
				}
			}
		}
	})

	t.Run("draws are independent", func(t *testing.T) {
		same := true
		for ti := range bundle.Trajectories[0] {
			for j := range bundle.Trajectories[0][ti] {
				if bundle.Trajectories[0][ti][j] != bundle.Trajectories[1][ti][j] {
					same = false
				}
			}
		}
		if same {
			t.Error("consecutive draws are identical")
		}
	})

	t.Run("leaves the model untouched", func(t *testing.T) {
		before := truth.Clone()
		if _, err := SampleARHMM(truth, input, 2, true, rand.New(rand.NewSource(1))); err != nil {
			t.Fatal(err)
		}
		if truth.LogPi[0] != before.LogPi[0] || truth.Obs[0].B[0] != before.Obs[0].B[0] {
			t.Error("sampling mutated the fitted model")
		}
	})

	t.Run("errors", func(t *testing.T) {
		rng := rand.New(rand.NewSource(2))
		if _, err := SampleARHMM(truth, input, 0, true, rng); err == nil {
			t.Error("SampleARHMM() with zero draws succeeded")
		}
		if _, err := SampleARHMM(truth, dataset.Trial{}, 1, true, rng); err == nil {
			t.Error("SampleARHMM() with an empty input succeeded")
		}
	})
}

func TestMeanStd(t *testing.T) {
	bundle := &SampleBundle{
		Trajectories: []dataset.Trial{
			{{1, 2}, {3, 4}},
			{{3, 2}, {5, 8}},
		},
	}
	mean, std := bundle.MeanStd()
	if mean[0][0] != 2 || mean[1][1] != 6 {
		t.Errorf("mean = %v", mean)
	}
	if std[0][0] != 1 || std[0][1] != 0 || std[1][1] != 2 {
		t.Errorf("std = %v", std)
	}

	empty := &SampleBundle{}
	if m, s := empty.MeanStd(); m != nil || s != nil {
		t.Errorf("MeanStd() on empty bundle = %v, %v", m, s)
	}
}
