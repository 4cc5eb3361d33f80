package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Preprocess.CropSize != 256 {
		t.Fatalf("expected crop size 256, got %d", cfg.Preprocess.CropSize)
	}
	wantMean := []float64{0.485, 0.456, 0.406}
	wantStd := []float64{0.229, 0.224, 0.225}
	for i := range wantMean {
		if cfg.Preprocess.Mean[i] != wantMean[i] || cfg.Preprocess.Std[i] != wantStd[i] {
			t.Fatalf("unexpected normalization constants: mean=%v std=%v", cfg.Preprocess.Mean, cfg.Preprocess.Std)
		}
	}
	if cfg.Data.RefDir != "A" || cfg.Data.TestDir != "B" || cfg.Data.MaskDir != "label" || cfg.Data.ListDir != "list" {
		t.Fatalf("unexpected layout defaults: %+v", cfg.Data)
	}
	if cfg.Augment.RotateLimit != 5 || cfg.Augment.FlipProb != 0.5 {
		t.Fatalf("unexpected augmentation defaults: %+v", cfg.Augment)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Preprocess.CropSize != 256 {
		t.Fatalf("expected defaults, got crop size %d", cfg.Preprocess.CropSize)
	}
}

func TestLoadConfig_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	content := "data:\n  root: /data/levir\n  mode: val\npreprocess:\n  cropSize: 128\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Data.Root != "/data/levir" || cfg.Data.Mode != "val" {
		t.Fatalf("data section not applied: %+v", cfg.Data)
	}
	if cfg.Preprocess.CropSize != 128 {
		t.Fatalf("expected crop size 128, got %d", cfg.Preprocess.CropSize)
	}
	// Untouched sections keep their defaults.
	if cfg.Data.RefDir != "A" || len(cfg.Augment.BlurKernels) != 2 {
		t.Fatalf("defaults lost after partial load: %+v %+v", cfg.Data, cfg.Augment)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	cfg := DefaultConfig()
	cfg.Data.Root = "/tmp/cd"
	cfg.Loader.Seed = 42

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got.Data.Root != "/tmp/cd" || got.Loader.Seed != 42 {
		t.Fatalf("round trip mismatch: root=%q seed=%d", got.Data.Root, got.Loader.Seed)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preprocess.Std = []float64{0.2, 0, 0.2}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero std")
	}

	cfg = DefaultConfig()
	cfg.Augment.BlurKernels = []int{4}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for even blur kernel")
	}

	cfg = DefaultConfig()
	cfg.Preprocess.CropSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero crop size")
	}
}
