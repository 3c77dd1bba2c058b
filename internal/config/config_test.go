package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Dataset.TrialSplits != "8;1;1;0" {
		t.Errorf("Default() TrialSplits = %q, want 8;1;1;0", cfg.Dataset.TrialSplits)
	}
	if cfg.Cache.Backend != "file" {
		t.Errorf("Default() Cache.Backend = %q, want file", cfg.Cache.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	content := `
dirs:
  data_dir: /data
  save_dir: /results
  fig_dir: /figs
dataset:
  lab: churchland
  expt: reaching
  frame_rate: 30
  neural_type: ca
cache:
  backend: sqlite
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Dirs.DataDir != "/data" {
		t.Errorf("DataDir = %q, want /data", cfg.Dirs.DataDir)
	}
	if cfg.Dataset.Lab != "churchland" {
		t.Errorf("Lab = %q, want churchland", cfg.Dataset.Lab)
	}
	if cfg.Dataset.FrameRate != 30 {
		t.Errorf("FrameRate = %v, want 30", cfg.Dataset.FrameRate)
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Errorf("Cache.Backend = %q, want sqlite", cfg.Cache.Backend)
	}
	// Unset fields keep defaults
	if cfg.Dataset.TrialSplits != "8;1;1;0" {
		t.Errorf("TrialSplits = %q, want default 8;1;1;0", cfg.Dataset.TrialSplits)
	}
}

func TestLoadFromFileExpandsEnvVars(t *testing.T) {
	t.Setenv("BEHAVENET_TEST_ROOT", "/mnt/scratch")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	content := "dirs:\n  data_dir: ${BEHAVENET_TEST_ROOT}/data\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Dirs.DataDir != "/mnt/scratch/data" {
		t.Errorf("DataDir = %q, want /mnt/scratch/data", cfg.Dirs.DataDir)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Dirs.SaveDir = "/results"
	cfg.Dataset.Animal = "m23"

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if got.Dirs.SaveDir != "/results" || got.Dataset.Animal != "m23" {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad backend", func(c *Config) { c.Cache.Backend = "redis" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad neural type", func(c *Config) { c.Dataset.NeuralType = "emg" }, true},
		{"negative frame rate", func(c *Config) { c.Dataset.FrameRate = -1 }, true},
		{"bad splits", func(c *Config) { c.Dataset.TrialSplits = "8;1;1" }, true},
		{"empty splits allowed", func(c *Config) { c.Dataset.TrialSplits = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTrialSplits(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    TrialSplits
		wantErr bool
	}{
		{"standard", "8;1;1;0", TrialSplits{Train: 8, Val: 1, Test: 1, Gap: 0}, false},
		{"with gaps", "6;2;1;1", TrialSplits{Train: 6, Val: 2, Test: 1, Gap: 1}, false},
		{"spaces", "8; 1; 1; 0", TrialSplits{Train: 8, Val: 1, Test: 1, Gap: 0}, false},
		{"too few fields", "8;1;1", TrialSplits{}, true},
		{"non-numeric", "8;x;1;0", TrialSplits{}, true},
		{"negative", "8;-1;1;0", TrialSplits{}, true},
		{"all gap", "0;0;0;1", TrialSplits{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTrialSplits(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTrialSplits(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseTrialSplits(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BEHAVENET_SAVE_DIR", "/override/results")
	t.Setenv("BEHAVENET_CACHE_BACKEND", "memory")
	t.Setenv("BEHAVENET_FRAME_RATE", "60")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.Dirs.SaveDir != "/override/results" {
		t.Errorf("SaveDir = %q, want /override/results", cfg.Dirs.SaveDir)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want memory", cfg.Cache.Backend)
	}
	if cfg.Dataset.FrameRate != 60 {
		t.Errorf("FrameRate = %v, want 60", cfg.Dataset.FrameRate)
	}
}

func TestNeuralBinSize(t *testing.T) {
	d := DatasetConfig{FrameRate: 40}
	if got := d.NeuralBinSize(); got != 0.025 {
		t.Errorf("NeuralBinSize() = %v, want 0.025", got)
	}
	d.FrameRate = 0
	if got := d.NeuralBinSize(); got != 0 {
		t.Errorf("NeuralBinSize() with zero rate = %v, want 0", got)
	}
}
