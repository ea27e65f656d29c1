// Package config loads the fpga command's configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/session"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/transport"
)

// Transport names accepted in the configuration.
const (
	TransportSimulator = "simulator"
	TransportUSB       = "usb"
)

// Config is the contents of fpga.yaml or fpga.toml.
type Config struct {
	Transport   string        `yaml:"transport" toml:"transport" default:"simulator"`
	USB         USB           `yaml:"usb" toml:"usb"`
	FIFOTimeout time.Duration `yaml:"fifo_timeout" toml:"fifo_timeout" default:"5s"`
	FIFODepth   int           `yaml:"fifo_depth" toml:"fifo_depth"`
	LogLevel    string        `yaml:"log_level" toml:"log_level" default:"info"`
}

// USB selects the register bridge to open.
type USB struct {
	VendorID  uint16 `yaml:"vendor_id" toml:"vendor_id" default:"4617"` // 0x1209
	ProductID uint16 `yaml:"product_id" toml:"product_id" default:"1"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads the file at path over the defaults. The format follows the
// extension: .yaml/.yml or .toml. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: parse %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("config: unsupported file type %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportSimulator, TransportUSB:
	default:
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	if c.FIFODepth < 0 {
		return fmt.Errorf("config: invalid fifo_depth %d", c.FIFODepth)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, fmt.Errorf("config: %w", err)
	}
	return lvl, nil
}

// SessionOptions translates the FIFO settings into session options. A
// negative fifo_timeout waits forever.
func (c *Config) SessionOptions() []session.Option {
	timeout := c.FIFOTimeout
	if timeout < 0 {
		timeout = transport.Infinite
	}
	opts := []session.Option{session.WithFIFOTimeout(timeout)}
	if c.FIFODepth > 0 {
		opts = append(opts, session.WithFIFODepth(c.FIFODepth))
	}
	return opts
}
