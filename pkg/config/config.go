// Package config loads the generator configuration: YAML file, then
// FEATSYNTH_* environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FEATSYNTH_"

// Config holds all generator settings.
type Config struct {
	Stock   Stock   `yaml:"stock"`
	Feature Feature `yaml:"feature"`
	Gear    Gear    `yaml:"gear"`
	Kernel  Kernel  `yaml:"kernel"`
	Dataset Dataset `yaml:"dataset"`
	Logging Logging `yaml:"logging"`
}

// Stock bounds the random box dimensions, per axis, in millimeters.
type Stock struct {
	Min float64 `yaml:"min" validate:"gt=0"`
	Max float64 `yaml:"max" validate:"gtefield=Min"`
}

// Feature holds parameters shared by all features. Names fixes the label
// index of every feature; the last entry labels untouched stock faces.
type Feature struct {
	Names     []string `yaml:"names" validate:"min=2,dive,required"`
	MinLen    float64  `yaml:"min_len" validate:"gt=0"`
	Clearance float64  `yaml:"clearance" validate:"gte=0"`
	MaxDepth  float64  `yaml:"max_depth" validate:"gte=0"`
}

type Gear struct {
	StrictSlots bool `yaml:"strict_slots"`
}

// Kernel sizes the sdfx kernel's sampling grids.
type Kernel struct {
	GridCells   int `yaml:"grid_cells" validate:"min=4"`
	CapSamples  int `yaml:"cap_samples" validate:"min=2"`
	SideSamples int `yaml:"side_samples" validate:"min=1"`
	ArcSamples  int `yaml:"arc_samples" validate:"min=8"`
	MeshCells   int `yaml:"mesh_cells" validate:"min=8"`
}

// Dataset controls batch generation. When Combos is empty each sample
// draws ComboSize buildable features.
type Dataset struct {
	OutputDir string     `yaml:"output_dir" validate:"required"`
	Manifest  string     `yaml:"manifest"`
	Samples   int        `yaml:"samples" validate:"min=1"`
	Workers   int        `yaml:"workers" validate:"min=1,max=256"`
	Seed      uint64     `yaml:"seed"`
	ComboSize int        `yaml:"combo_size" validate:"min=1"`
	Combos    [][]string `yaml:"combos"`
	Meshes    bool       `yaml:"meshes"`
}

type Logging struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// DefaultFeatureNames is the label order of the MFCAD++ style machining feature
// dataset with the spur gear added before stock.
var DefaultFeatureNames = []string{
	"chamfer", "through_hole", "triangular_passage", "rectangular_passage",
	"6sides_passage", "triangular_through_slot", "rectangular_through_slot",
	"circular_through_slot", "rectangular_through_step", "2sides_through_step",
	"slanted_through_step", "oring", "blind_hole", "triangular_pocket",
	"rectangular_pocket", "6sides_pocket", "circular_end_pocket",
	"rectangular_blind_slot", "v_circular_end_blind_slot",
	"h_circular_end_blind_slot", "triangular_blind_step", "circular_blind_step",
	"rectangular_blind_step", "round", "counterbore", "boss",
	"countersunk_hole", "rib", "variable_round", "stud", "threaded_hole",
	"spur_gear", "stock",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Stock: Stock{Min: 10, Max: 50},
		Feature: Feature{
			Names:     append([]string(nil), DefaultFeatureNames...),
			MinLen:    2,
			Clearance: 1,
		},
		Gear: Gear{StrictSlots: true},
		Kernel: Kernel{
			GridCells:   48,
			CapSamples:  24,
			SideSamples: 8,
			ArcSamples:  240,
			MeshCells:   200,
		},
		Dataset: Dataset{
			OutputDir: "dataset",
			Manifest:  "dataset/manifest.db",
			Samples:   10,
			Workers:   4,
			Seed:      1,
			ComboSize: 1,
			Combos:    [][]string{{"spur_gear"}},
			Meshes:    true,
		},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: failed to write config: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the label list.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if last := c.Feature.Names[len(c.Feature.Names)-1]; last != "stock" {
		return fmt.Errorf("config: feature.names must end with \"stock\", got %q", last)
	}
	return nil
}

// applyEnvOverrides applies FEATSYNTH_* variables. lookup is os.LookupEnv
// outside tests.
func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	floats := map[string]*float64{
		"STOCK_MIN":         &c.Stock.Min,
		"STOCK_MAX":         &c.Stock.Max,
		"FEATURE_MIN_LEN":   &c.Feature.MinLen,
		"FEATURE_CLEARANCE": &c.Feature.Clearance,
	}
	ints := map[string]*int{
		"DATASET_SAMPLES":   &c.Dataset.Samples,
		"DATASET_WORKERS":   &c.Dataset.Workers,
		"KERNEL_GRID_CELLS": &c.Kernel.GridCells,
		"KERNEL_MESH_CELLS": &c.Kernel.MeshCells,
	}
	strs := map[string]*string{
		"DATASET_OUTPUT_DIR": &c.Dataset.OutputDir,
		"DATASET_MANIFEST":   &c.Dataset.Manifest,
		"LOG_LEVEL":          &c.Logging.Level,
		"LOG_FORMAT":         &c.Logging.Format,
	}

	for key, dst := range floats {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
			}
			*dst = f
		}
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	if v, ok := lookup(EnvPrefix + "DATASET_SEED"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("config: %sDATASET_SEED: %w", EnvPrefix, err)
		}
		c.Dataset.Seed = n
	}
	if v, ok := lookup(EnvPrefix + "GEAR_STRICT_SLOTS"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %sGEAR_STRICT_SLOTS: %w", EnvPrefix, err)
		}
		c.Gear.StrictSlots = b
	}
	return nil
}
