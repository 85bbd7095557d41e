// Package simulation runs the assignment engine against a synthetic
// marketplace and reports how fairly work was spread.
package simulation

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned for unusable simulation settings.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config controls the size and shape of a run.
type Config struct {
	Operators int    // Number of operators to generate
	Agents    int    // Number of posting agents
	Tasks     int    // Number of tasks to assign
	Workers   int    // Concurrent assignment requests
	Seed      uint64 // Seed for generation and rotation draws
	// Contenders is how many concurrent requests target each task.
	Contenders int
}

// DefaultConfig returns a small run suitable for a laptop.
func DefaultConfig() Config {
	return Config{
		Operators:  200,
		Agents:     20,
		Tasks:      1000,
		Workers:    16,
		Seed:       1,
		Contenders: 2,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	switch {
	case c.Operators < 1:
		return fmt.Errorf("%w: operators must be positive", ErrInvalidConfig)
	case c.Agents < 1:
		return fmt.Errorf("%w: agents must be positive", ErrInvalidConfig)
	case c.Tasks < 1:
		return fmt.Errorf("%w: tasks must be positive", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.Contenders < 1:
		return fmt.Errorf("%w: contenders must be positive", ErrInvalidConfig)
	}
	return nil
}
