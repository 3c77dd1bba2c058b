package plots

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/eivinasbutkus/behavenet/internal/dataset"
)

func sineTrial(t, d int) dataset.Trial {
	tr := dataset.NewTrial(t, d)
	for ti := range tr {
		for j := range tr[ti] {
			tr[ti][j] = math.Sin(float64(ti)/8 + float64(j))
		}
	}
	return tr
}

// savePNG renders the figure into a temp dir and checks a non-empty file
// came out.
func savePNG(t *testing.T, fig *Figure) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fig.png")
	if err := fig.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("figure file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("figure file is empty")
	}
}

func TestNeuralActivity(t *testing.T) {
	lowD := sineTrial(50, 3)
	rates := sineTrial(50, 6)

	fig, err := NeuralActivity(lowD, rates, 0, 40)
	if err != nil {
		t.Fatalf("NeuralActivity() error = %v", err)
	}
	if got := len(fig.Panels()); got != 2 {
		t.Errorf("figure has %d panels, want 2", got)
	}
	savePNG(t, fig)

	t.Run("clamps the end", func(t *testing.T) {
		if _, err := NeuralActivity(lowD, rates, 0, 500); err != nil {
			t.Errorf("NeuralActivity() with long slice error = %v", err)
		}
	})

	t.Run("rejects empty slices", func(t *testing.T) {
		for _, r := range [][2]int{{-1, 10}, {10, 10}, {40, 20}} {
			if _, err := NeuralActivity(lowD, rates, r[0], r[1]); err == nil {
				t.Errorf("NeuralActivity(%d, %d) succeeded", r[0], r[1])
			}
		}
	})
}

func TestValidationLikelihoods(t *testing.T) {
	results := map[string]map[int]float64{
		"arhmm":        {2: -500, 4: -420, 8: -410},
		"arhmm-sticky": {2: -480, 4: -430},
	}
	fig, err := ValidationLikelihoods(results, 1000)
	if err != nil {
		t.Fatalf("ValidationLikelihoods() error = %v", err)
	}
	if got := len(fig.Panels()); got != 1 {
		t.Errorf("figure has %d panels, want 1", got)
	}
	savePNG(t, fig)

	// A zero scale must not divide by zero.
	if _, err := ValidationLikelihoods(results, 0); err != nil {
		t.Errorf("ValidationLikelihoods() with zero scale error = %v", err)
	}
}

func TestSampledLatents(t *testing.T) {
	observed := sineTrial(40, 2)
	samples := make([]dataset.Trial, 12)
	for i := range samples {
		samples[i] = sineTrial(40, 2)
		samples[i][0][0] += float64(i) * 0.01
	}

	fig, err := SampledLatents(observed, samples)
	if err != nil {
		t.Fatalf("SampledLatents() error = %v", err)
	}
	savePNG(t, fig)

	if _, err := SampledLatents(observed, nil); err == nil {
		t.Error("SampledLatents() with no samples succeeded")
	}
}

func TestNeuralAndDiscreteSamples(t *testing.T) {
	input := sineTrial(30, 4)
	stateSamples := [][]int{
		{0, 0, 1, 1, 2},
		{2, 1, 1, 0, 0},
	}
	inferred := make([]int, 30)
	for i := range inferred {
		inferred[i] = i % 3
	}

	fig, err := NeuralAndDiscreteSamples(input, stateSamples, inferred, 3)
	if err != nil {
		t.Fatalf("NeuralAndDiscreteSamples() error = %v", err)
	}
	if got := len(fig.Panels()); got != 3 {
		t.Errorf("figure has %d panels, want 3", got)
	}
	savePNG(t, fig)

	if _, err := NeuralAndDiscreteSamples(input, nil, inferred, 3); err == nil {
		t.Error("NeuralAndDiscreteSamples() with no samples succeeded")
	}
}

func TestSampleMeanStd(t *testing.T) {
	samples := []dataset.Trial{
		{{1}, {4}},
		{{3}, {4}},
	}
	mean, std := sampleMeanStd(samples)
	if mean[0][0] != 2 || mean[1][0] != 4 {
		t.Errorf("mean = %v", mean)
	}
	if std[0][0] != 1 || std[1][0] != 0 {
		t.Errorf("std = %v", std)
	}
}

func TestWithAlpha(t *testing.T) {
	got := withAlpha(color.RGBA{R: 255, G: 128, B: 0, A: 255}, 64)
	nrgba, ok := got.(color.NRGBA)
	if !ok {
		t.Fatalf("withAlpha() returned %T", got)
	}
	if nrgba.A != 64 || nrgba.R != 255 {
		t.Errorf("withAlpha() = %+v", nrgba)
	}
}
