package ndcalc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Default settings.
const (
	DefaultEpsilon  = 1e-8
	DefaultMaxDepth = 100
)

// Config holds engine settings, typically loaded from a YAML file:
//
//	mode: forward
//	epsilon: 1e-6
//	max_depth: 200
//	workers: 4
type Config struct {
	// Mode is the default differentiation mode: auto, forward or finitediff.
	Mode string `yaml:"mode"`

	// Epsilon is the finite-difference step (default: 1e-8).
	Epsilon float64 `yaml:"epsilon"`

	// MaxDepth bounds expression nesting (default: 100).
	MaxDepth int `yaml:"max_depth"`

	// Workers is the worker count for parallel batch evaluation.
	// Zero means one per CPU.
	Workers int `yaml:"workers"`
}

// applyDefaults fills in default values for unset Config fields.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeAuto.String()
	}
	if c.Epsilon == 0 {
		c.Epsilon = DefaultEpsilon
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
}

// validate reports every invalid field.
func (c *Config) validate(path string) error {
	var result *multierror.Error
	if _, err := ParseMode(c.Mode); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: mode: %w", path, err))
	}
	if c.Epsilon < 0 || math.IsNaN(c.Epsilon) || math.IsInf(c.Epsilon, 0) {
		result = multierror.Append(result, fmt.Errorf("%s: epsilon must be finite and positive, got %v", path, c.Epsilon))
	}
	if c.MaxDepth < 0 {
		result = multierror.Append(result, fmt.Errorf("%s: max_depth must not be negative, got %d", path, c.MaxDepth))
	}
	if c.Workers < 0 {
		result = multierror.Append(result, fmt.Errorf("%s: workers must not be negative, got %d", path, c.Workers))
	}
	return result.ErrorOrNil()
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses YAML config data. path is used in error messages.
// Unknown keys are rejected; an empty document yields the defaults.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}
