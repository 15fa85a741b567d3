package loop

import (
	"errors"

	"github.com/poiesic/litreview/core"
)

// Config bounds a run.
type Config struct {
	// TargetScore is the score at or above which a run succeeds. Must lie in [0,10].
	// Default: 8.0
	TargetScore float64

	// MaxIterations is the last iteration index that may be attempted, so a
	// run makes at most MaxIterations+1 produce and evaluate calls.
	// Default: 5
	MaxIterations int

	// MinArtifactLength is the shortest artifact, in characters after
	// trimming, accepted from the producer.
	// Default: 100
	MinArtifactLength int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithTargetScore sets the success threshold.
func WithTargetScore(target float64) ConfigOption {
	return func(c *Config) {
		c.TargetScore = target
	}
}

// WithMaxIterations sets the iteration budget.
func WithMaxIterations(n int) ConfigOption {
	return func(c *Config) {
		c.MaxIterations = n
	}
}

// WithMinArtifactLength sets the shortest acceptable artifact.
func WithMinArtifactLength(n int) ConfigOption {
	return func(c *Config) {
		c.MinArtifactLength = n
	}
}

// DefaultConfig returns the default run bounds.
func DefaultConfig() *Config {
	return &Config{
		TargetScore:       8.0,
		MaxIterations:     5,
		MinArtifactLength: 100,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate returns a core.ErrConfiguration error for out of range bounds.
func (c *Config) Validate() error {
	if err := core.ValidateTargetScore(c.TargetScore); err != nil {
		return err
	}
	if err := core.ValidateMaxIterations(c.MaxIterations); err != nil {
		return err
	}
	if c.MinArtifactLength < 1 {
		return core.NewConfigurationError(errors.New("min artifact length must be positive"), "got %d", c.MinArtifactLength)
	}
	return nil
}
