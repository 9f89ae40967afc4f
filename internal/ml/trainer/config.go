package trainer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ticketguard/scoring/internal/ml/forest"
	"github.com/ticketguard/scoring/internal/ml/synth"
)

// Config controls one training run.
type Config struct {
	Size               int           `yaml:"size"`
	Seed               int64         `yaml:"seed"`
	ValidationFraction float64       `yaml:"validation_fraction"`
	SplitSeed          int64         `yaml:"split_seed"`
	Version            string        `yaml:"version"`
	Forest             forest.Config `yaml:"forest"`
}

// DefaultConfig returns the reference training setup.
func DefaultConfig() Config {
	return Config{
		Size:               synth.DefaultSize,
		Seed:               synth.DefaultSeed,
		ValidationFraction: 0.2,
		SplitSeed:          42,
		Version:            "v1",
		Forest:             forest.DefaultConfig(),
	}
}

// LoadConfig overlays the YAML file at path on base. Keys absent from the
// file keep their base values.
func LoadConfig(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read training config: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse training config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks everything except Size, which Run reports as an
// InvalidArgument error.
func (c Config) Validate() error {
	if c.ValidationFraction <= 0 || c.ValidationFraction >= 1 {
		return fmt.Errorf("validation_fraction must be within (0,1), got %v", c.ValidationFraction)
	}
	if c.Version == "" {
		return fmt.Errorf("version must not be empty")
	}
	return c.Forest.Validate()
}
