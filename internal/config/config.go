package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/exprdetect/internal/detector"
)

// Config is the top-level configuration for expr-detect
type Config struct {
	// Instance is the 1-based ordinal of the expression to instrument
	Instance int `json:"instance,omitempty" yaml:"instance,omitempty"`

	// Mode is "print" or "check"
	Mode detector.Mode `json:"mode" yaml:"mode"`

	// Reference is the value compared against in check mode
	Reference string `json:"reference,omitempty" yaml:"reference,omitempty"`

	// Replacement replaces the selected expression verbatim when set
	Replacement string `json:"replacement,omitempty" yaml:"replacement,omitempty"`

	// FireInstance is the guard counter value at which the report fires
	FireInstance int `json:"fireInstance" yaml:"fireInstance"`

	// QueryInstances reports the number of candidates without rewriting
	QueryInstances bool `json:"queryInstances,omitempty" yaml:"queryInstances,omitempty"`

	// Language overrides the dialect inferred from the file extension
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// Output controls where the rewritten source goes
	Output OutputConfig `json:"output" yaml:"output"`

	// Timing controls the stage timing log
	Timing TimingConfig `json:"timing" yaml:"timing"`

	// Facts lists the sources expr-facts tabulates
	Facts FactsConfig `json:"facts" yaml:"facts"`
}

// OutputConfig selects the destination of the rewritten source
type OutputConfig struct {
	// Path is the output file; empty means stdout
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// InPlace overwrites the input file
	InPlace bool `json:"inPlace,omitempty" yaml:"inPlace,omitempty"`
}

// TimingConfig controls the JSONL stage timing log
type TimingConfig struct {
	// Enabled turns on timing records
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Path is the JSONL file records are appended to
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// FactsConfig lists source files by glob
type FactsConfig struct {
	// Files is a list of glob patterns; ** matches any number of directories
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`

	// Exclude is a list of glob patterns removed from Files
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

const defaultTimingPath = ".expr_detect_timing.jsonl"

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Instance:     1,
		Mode:         detector.ModePrint,
		FireInstance: 0,
		Timing: TimingConfig{
			Enabled: boolPtr(false),
			Path:    defaultTimingPath,
		},
		Facts: FactsConfig{
			Files: []string{"*.c", "**/*.c"},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./expr_detect.json
//  2. ./.expr_detect.json
//  3. ./expr_detect.yaml
//  4. ./expr_detect.yml
//  5. ~/.config/expr_detect/config.json
//
// Returns DefaultConfig if no config file is found
func Load() (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "expr_detect.json"),
		filepath.Join(cwd, ".expr_detect.json"),
		filepath.Join(cwd, "expr_detect.yaml"),
		filepath.Join(cwd, "expr_detect.yml"),
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "expr_detect", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file. Files ending in .yaml
// or .yml are YAML, everything else is JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.Instance == 0 && !c.QueryInstances {
		c.Instance = 1
	}
	if c.Timing.Enabled == nil {
		c.Timing.Enabled = boolPtr(false)
	}
	if c.Timing.Path == "" {
		c.Timing.Path = defaultTimingPath
	}
	if c.Facts.Files == nil {
		c.Facts.Files = []string{"*.c", "**/*.c"}
	}
}

// Save writes the configuration to a file in the format its extension names
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Options converts the configuration into session options
func (c *Config) Options() detector.Options {
	return detector.Options{
		Instance:     c.Instance,
		Mode:         c.Mode,
		Reference:    c.Reference,
		Replacement:  c.Replacement,
		FireInstance: c.FireInstance,
		QueryOnly:    c.QueryInstances,
	}
}

// TimingEnabled reports whether stage timings are recorded
func (c *Config) TimingEnabled() bool {
	return c.Timing.Enabled != nil && *c.Timing.Enabled
}

// OutputPath returns where the rewritten source for input goes; "" is stdout
func (c *Config) OutputPath(input string) string {
	if c.Output.InPlace {
		return input
	}
	return c.Output.Path
}
