// Package config provides configuration parsing and validation for the v2
// transport driver.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete session configuration.
type Config struct {
	Network          string        `yaml:"network"`
	RekeyInterval    int           `yaml:"rekey_interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	MaxGarbageBytes  int           `yaml:"max_garbage_bytes"`
}

// networkMagics maps a network name to its 4-byte v2 magic. Only regtest is
// populated, matching the reference implementation's test harness scope;
// the table is structured so a conformance harness can register additional
// networks without touching session logic.
var networkMagics = map[string][4]byte{
	"regtest": {0xfa, 0xbf, 0xb5, 0xda},
}

// NetworkMagic resolves a network name to its 4-byte magic.
func NetworkMagic(name string) ([4]byte, bool) {
	m, ok := networkMagics[name]
	return m, ok
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Network:          "regtest",
		RekeyInterval:    224,
		HandshakeTimeout: 10 * time.Second,
		MaxGarbageBytes:  4095,
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, starting from Default() so
// unset fields keep their defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, ok := NetworkMagic(c.Network); !ok {
		return fmt.Errorf("unknown network: %q", c.Network)
	}
	if c.RekeyInterval < 1 {
		return fmt.Errorf("rekey_interval must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive")
	}
	if c.MaxGarbageBytes < 0 || c.MaxGarbageBytes > 4095 {
		return fmt.Errorf("max_garbage_bytes must be between 0 and 4095")
	}
	return nil
}

// String returns a YAML representation of the config (for debugging).
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
