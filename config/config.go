// Package config holds the pipeline configuration read from TOML.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap/zapcore"

	"github.com/tsawler/go-moli/dataset"
)

// Config represents the pipeline configuration.
type Config struct {
	// Input and output locations
	Paths PathsConfig `toml:"paths"`

	// Fold layout of the reruns
	CrossVal CrossValConfig `toml:"crossval"`

	// Training data loader
	Loader LoaderConfig `toml:"loader"`

	// Variance thresholds of feature selection
	Features FeaturesConfig `toml:"features"`

	// Drug directories and their external cohorts
	Drugs DrugsConfig `toml:"drugs"`

	// Extra result files
	Output OutputConfig `toml:"output"`

	Log LogConfig `toml:"log"`
}

// PathsConfig contains filesystem locations.
type PathsConfig struct {
	Data    string `toml:"data"`    // Root of <drug>/{expression,mutation,cna,response}.tsv
	Results string `toml:"results"` // Root of <drug>/<method>/logs.txt
}

// CrossValConfig contains the stratified k-fold settings.
type CrossValConfig struct {
	Splits  int    `toml:"splits"`
	Shuffle bool   `toml:"shuffle"`
	Seed    uint64 `toml:"seed"`
}

// LoaderConfig contains data loader settings.
type LoaderConfig struct {
	Workers   int  `toml:"workers"`
	PinMemory bool `toml:"pin_memory"`
}

// FeaturesConfig contains the per-modality variance thresholds.
type FeaturesConfig struct {
	Expression float64 `toml:"expression"`
	Mutation   float64 `toml:"mutation"`
	CNA        float64 `toml:"cna"`
}

// Thresholds returns the thresholds keyed by modality.
func (f FeaturesConfig) Thresholds() map[dataset.Modality]float64 {
	return map[dataset.Modality]float64{
		dataset.Expression: f.Expression,
		dataset.Mutation:   f.Mutation,
		dataset.CNA:        f.CNA,
	}
}

// DrugsConfig maps drug directories to the external cohort they are
// validated on. Directories listed in Excluded are never rerun.
type DrugsConfig struct {
	External map[string]string `toml:"external"`
	Excluded []string          `toml:"excluded"`
}

// Names returns the configured drugs in sorted order.
func (d DrugsConfig) Names() []string {
	names := make([]string, 0, len(d.External))
	for name := range d.External {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsExcluded reports whether the drug directory is skipped.
func (d DrugsConfig) IsExcluded(name string) bool {
	for _, e := range d.Excluded {
		if e == name {
			return true
		}
	}
	return false
}

// OutputConfig toggles the result files written next to rerun_results.txt.
type OutputConfig struct {
	JSON bool `toml:"json"` // rerun_results.json
	Plot bool `toml:"plot"` // rerun_results.png
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn or error
	JSON  bool   `toml:"json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Data:    "data",
			Results: "results/bayesian_optimisation",
		},
		CrossVal: CrossValConfig{
			Splits:  5,
			Shuffle: true,
			Seed:    42,
		},
		Loader: LoaderConfig{
			Workers:   8,
			PinMemory: false,
		},
		Features: FeaturesConfig{
			Expression: dataset.ExpressionVarianceThreshold,
			Mutation:   dataset.MutationVarianceThreshold,
			CNA:        dataset.CNAVarianceThreshold,
		},
		Drugs: DrugsConfig{
			External: map[string]string{
				"Gemcitabine_tcga": "TCGA",
				"Gemcitabine_pdx":  "PDX",
				"Cisplatin":        "TCGA",
				"Docetaxel":        "TCGA",
				"Erlotinib":        "PDX",
				"Cetuximab":        "PDX",
				"Paclitaxel":       "PDX",
			},
			Excluded: []string{"EGFR", "ensemble"},
		},
		Output: OutputConfig{
			JSON: true,
			Plot: true,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// Load reads the configuration at path on fs. Returns the default config if
// the file doesn't exist; keys missing from the file keep their defaults.
func Load(fs afero.Fs, path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration to path on fs.
func (c *Config) Save(fs afero.Fs, path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.CrossVal.Splits < 2 {
		return fmt.Errorf("crossval splits must be at least 2: %d", c.CrossVal.Splits)
	}
	if c.Loader.Workers < 0 {
		return fmt.Errorf("loader workers cannot be negative: %d", c.Loader.Workers)
	}
	for m, v := range c.Features.Thresholds() {
		if v < 0 {
			return fmt.Errorf("%s variance threshold cannot be negative: %v", m, v)
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return nil
}
