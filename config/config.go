// Package config provides configuration loading for the change-detection
// loader. It handles loading configuration from YAML files and provides
// default values matching the fixed augmentation and preprocessing recipe.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the loader configuration loaded from YAML
type Config struct {
	// Data describes the on-disk layout of a split
	Data struct {
		// Root is the directory holding the split folders and the list folder
		Root string `yaml:"root"`

		// Mode is the split to load (train, val, test, ...)
		Mode string `yaml:"mode"`

		// TrainMode is the split name for which augmentation is enabled
		TrainMode string `yaml:"trainMode"`

		// ListDir is the folder under Root holding <mode>.txt manifests
		ListDir string `yaml:"listDir"`

		// RefDir, TestDir and MaskDir are the per-split sub-folders
		RefDir  string `yaml:"refDir"`
		TestDir string `yaml:"testDir"`
		MaskDir string `yaml:"maskDir"`
	} `yaml:"data"`

	// Preprocess holds the tensorize stage constants
	Preprocess struct {
		// CropSize is the side of the square center crop
		CropSize int `yaml:"cropSize"`

		// Mean and Std are the per-channel normalization constants (RGB)
		Mean []float64 `yaml:"mean"`
		Std  []float64 `yaml:"std"`
	} `yaml:"preprocess"`

	// Augment holds the training augmentation recipe
	Augment struct {
		FlipProb    float64 `yaml:"flipProb"`
		RotateProb  float64 `yaml:"rotateProb"`
		RotateLimit float64 `yaml:"rotateLimit"`

		BrightnessLimit        float64 `yaml:"brightnessLimit"`
		ContrastLimit          float64 `yaml:"contrastLimit"`
		BrightnessContrastProb float64 `yaml:"brightnessContrastProb"`

		BlurProb    float64 `yaml:"blurProb"`
		BlurKernels []int   `yaml:"blurKernels"`
	} `yaml:"augment"`

	// Loader holds the tunables of batch iteration and the inspect tool
	Loader struct {
		// Seed for the augmentation random source, 0 means time based
		Seed int64 `yaml:"seed"`

		// BatchSize used by Yield
		BatchSize int `yaml:"batchSize"`

		// Workers for parallel sample preparation
		Workers int `yaml:"workers"`
	} `yaml:"loader"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Data.Mode = "train"
	cfg.Data.TrainMode = "train"
	cfg.Data.ListDir = "list"
	cfg.Data.RefDir = "A"
	cfg.Data.TestDir = "B"
	cfg.Data.MaskDir = "label"

	cfg.Preprocess.CropSize = 256
	cfg.Preprocess.Mean = []float64{0.485, 0.456, 0.406}
	cfg.Preprocess.Std = []float64{0.229, 0.224, 0.225}

	cfg.Augment.FlipProb = 0.5
	cfg.Augment.RotateProb = 0.5
	cfg.Augment.RotateLimit = 5
	cfg.Augment.BrightnessLimit = 0.2
	cfg.Augment.ContrastLimit = 0.2
	cfg.Augment.BrightnessContrastProb = 0.5
	cfg.Augment.BlurProb = 0.5
	cfg.Augment.BlurKernels = []int{3, 5}

	cfg.Loader.BatchSize = 8
	cfg.Loader.Workers = runtime.NumCPU()

	return cfg
}

// Validate checks the values the loader cannot work without.
func (c *Config) Validate() error {
	if c.Data.Mode == "" {
		return errors.New("data.mode is empty")
	}
	if c.Preprocess.CropSize <= 0 {
		return errors.Errorf("preprocess.cropSize must be positive, got %d", c.Preprocess.CropSize)
	}
	if len(c.Preprocess.Mean) != 3 || len(c.Preprocess.Std) != 3 {
		return errors.Errorf("preprocess.mean and preprocess.std need 3 values, got %d and %d",
			len(c.Preprocess.Mean), len(c.Preprocess.Std))
	}
	for i, s := range c.Preprocess.Std {
		if s == 0 {
			return errors.Errorf("preprocess.std[%d] is zero", i)
		}
	}
	for _, k := range c.Augment.BlurKernels {
		if k < 1 || k%2 == 0 {
			return errors.Errorf("augment.blurKernels must hold odd sizes, got %d", k)
		}
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}
