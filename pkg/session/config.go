package session

import (
	"fmt"
	"time"
)

// DefaultFIFOTimeout bounds FIFO reads and writes unless overridden.
const DefaultFIFOTimeout = 5 * time.Second

// Config controls how a session binds to its target.
type Config struct {
	// FIFO settings
	FIFOTimeout time.Duration // Timeout for Fifo.Read/Write; negative waits forever (default: 5s)
	FIFODepth   int           // If > 0, every FIFO is configured to this depth on Open

	// Lifecycle
	RunOnOpen bool // Start the VI once registers are bound (default: false)

	// Register filtering
	OnlyRegisters []string // If set, only bind public registers with these names
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() *Config {
	return &Config{
		FIFOTimeout: DefaultFIFOTimeout,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.FIFOTimeout == 0 {
		c.FIFOTimeout = DefaultFIFOTimeout
	}
	if c.FIFODepth < 0 {
		return fmt.Errorf("session: invalid FIFO depth %d", c.FIFODepth)
	}
	return nil
}

// ShouldBindRegister returns true if the named public register should be
// bound based on the OnlyRegisters filter.
func (c *Config) ShouldBindRegister(name string) bool {
	if len(c.OnlyRegisters) == 0 {
		return true
	}
	for _, allowed := range c.OnlyRegisters {
		if name == allowed {
			return true
		}
	}
	return false
}

// Option adjusts the Config used by Open.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

// WithFIFOTimeout sets the default FIFO timeout. Use transport.Infinite to
// block until the FIFO is ready.
func WithFIFOTimeout(d time.Duration) Option {
	return func(c *Config) { c.FIFOTimeout = d }
}

// WithFIFODepth configures every FIFO to depth elements on Open.
func WithFIFODepth(depth int) Option {
	return func(c *Config) { c.FIFODepth = depth }
}

// WithRun starts the VI after the session is bound.
func WithRun() Option {
	return func(c *Config) { c.RunOnOpen = true }
}

// WithRegisters restricts the public registers bound by Open.
func WithRegisters(names ...string) Option {
	return func(c *Config) { c.OnlyRegisters = append(c.OnlyRegisters, names...) }
}
