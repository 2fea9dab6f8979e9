package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Simulator != "gradient_descent" {
		t.Errorf("expected simulator gradient_descent, got %s", cfg.Simulator)
	}
	if cfg.Server.Addr == "" {
		t.Error("server addr should be set")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Logging.Level)
	}
	if cfg.Interval() != 0 {
		t.Error("default interval should defer to the simulator")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mlplay.yaml")
	cfg := DefaultConfig()
	cfg.Simulator = "svm"
	cfg.IntervalMS = 250
	cfg.Params = map[string]float64{"lambda": 0.1}
	cfg.Overlays = []string{"margin"}

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Simulator != "svm" || got.Params["lambda"] != 0.1 || got.Interval().Milliseconds() != 250 {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if !got.OverlaySet()["margin"] {
		t.Error("expected margin overlay")
	}
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("simulator: kmeans\nmax_ticks: 12\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Simulator != "kmeans" || cfg.MaxTicks != 12 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.DataDir != DefaultDataDir {
		t.Errorf("expected default data dir, got %q", cfg.DataDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Params = map[string]float64{"k": 3, "spread": 1}
	got := cfg.Merge(map[string]float64{"k": 5})
	if got["k"] != 5 || got["spread"] != 1 {
		t.Errorf("unexpected merge %v", got)
	}
	if cfg.Params["k"] != 3 {
		t.Error("merge mutated the config")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("gradient_descent", "gentle")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Params["learning_rate"] != 0.05 {
		t.Errorf("expected learning_rate 0.05, got %f", cfg.Params["learning_rate"])
	}

	cfg.Params["learning_rate"] = 9
	if GetPreset("gradient_descent", "gentle").Params["learning_rate"] != 0.05 {
		t.Error("preset was mutated through a returned copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("gradient_descent", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "gentle")
	if cfg != nil {
		t.Error("expected nil for nonexistent simulator")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("kmeans")
	want := []string{"overfit", "overlapping", "underfit"}
	if len(presets) != len(want) {
		t.Fatalf("expected %v, got %v", want, presets)
	}
	for i := range want {
		if presets[i] != want[i] {
			t.Errorf("expected %v, got %v", want, presets)
		}
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent simulator")
	}
}
