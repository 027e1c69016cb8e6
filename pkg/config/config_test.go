package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	names := cfg.Feature.Names
	if names[len(names)-1] != "stock" {
		t.Errorf("last label = %q, want stock", names[len(names)-1])
	}
	if cfg.Stock.Min != 10 || cfg.Stock.Max != 50 || cfg.Feature.MinLen != 2 || cfg.Feature.Clearance != 1 {
		t.Errorf("unexpected defaults: %+v %+v", cfg.Stock, cfg.Feature)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("missing file should yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "featsynth.yaml")
	data := `
stock:
  min: 20
  max: 30
feature:
  names: [boss, spur_gear, stock]
  min_len: 3
gear:
  strict_slots: false
dataset:
  samples: 5
  combos:
    - [spur_gear, boss]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Stock.Min != 20 || cfg.Stock.Max != 30 {
		t.Errorf("Stock = %+v", cfg.Stock)
	}
	if diff := cmp.Diff([]string{"boss", "spur_gear", "stock"}, cfg.Feature.Names); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	if cfg.Feature.MinLen != 3 || cfg.Feature.Clearance != 1 {
		t.Errorf("Feature = %+v", cfg.Feature)
	}
	if cfg.Gear.StrictSlots {
		t.Error("strict_slots should be false")
	}
	if diff := cmp.Diff([][]string{{"spur_gear", "boss"}}, cfg.Dataset.Combos); diff != "" {
		t.Errorf("Combos mismatch (-want +got):\n%s", diff)
	}
	if cfg.Dataset.Workers != 4 || cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("untouched fields lost their defaults: %+v %+v", cfg.Dataset, cfg.Logging)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad yaml", "stock: [", "parse"},
		{"inverted stock", "stock: {min: 40, max: 20}", "Max"},
		{"no stock label", "feature: {names: [boss, spur_gear]}", "stock"},
		{"bad level", "logging: {level: loud}", "Level"},
		{"zero workers", "dataset: {workers: 0}", "Workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.applyEnvOverrides(env(map[string]string{
		"FEATSYNTH_STOCK_MAX":         "60",
		"FEATSYNTH_DATASET_SAMPLES":   " 12 ",
		"FEATSYNTH_DATASET_SEED":      "99",
		"FEATSYNTH_GEAR_STRICT_SLOTS": "false",
		"FEATSYNTH_LOG_FORMAT":        "json",
		"UNRELATED":                   "x",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Stock.Max != 60 || cfg.Dataset.Samples != 12 || cfg.Dataset.Seed != 99 {
		t.Errorf("overrides not applied: %+v %+v", cfg.Stock, cfg.Dataset)
	}
	if cfg.Gear.StrictSlots || cfg.Logging.Format != "json" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Gear, cfg.Logging)
	}
}

func TestEnvOverrideErrors(t *testing.T) {
	for _, key := range []string{
		"FEATSYNTH_STOCK_MIN", "FEATSYNTH_DATASET_WORKERS",
		"FEATSYNTH_DATASET_SEED", "FEATSYNTH_GEAR_STRICT_SLOTS",
	} {
		cfg := DefaultConfig()
		if err := cfg.applyEnvOverrides(env(map[string]string{key: "nope"})); err == nil {
			t.Errorf("%s=nope should fail", key)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "featsynth.yaml")
	want := DefaultConfig()
	want.Dataset.Samples = 42
	if err := want.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
