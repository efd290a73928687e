// Package config loads server settings and schema packs for a TYTX registry.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// Structs maps struct codes to schema definitions (map, list or
	// ordered string form).
	Structs map[string]any `yaml:"structs" toml:"structs"`
	// Validations maps rule names to definitions (facet string or map).
	Validations map[string]any `yaml:"validations" toml:"validations"`
	// StandardRules installs the standard rule pack.
	StandardRules bool `yaml:"standard_rules" toml:"standard_rules"`
	// Locales installs locale rule packs; implies StandardRules.
	Locales []string `yaml:"locales" toml:"locales"`
	// Extensions names extension types to install (UUID, DUR).
	Extensions []string `yaml:"extensions" toml:"extensions"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr" toml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, console
}

// Load reads a config file. Files ending in .toml are TOML, anything else
// is YAML. Unknown keys are errors.
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 && !onlySchemaKeys(undecoded) {
			return nil, fmt.Errorf("parse config: unknown key %q", undecoded[0].String())
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// onlySchemaKeys reports whether every undecoded key lives under structs
// or validations, whose free-form tables TOML reports as undecoded.
func onlySchemaKeys(keys []toml.Key) bool {
	for _, k := range keys {
		if len(k) == 0 || (k[0] != "structs" && k[0] != "validations") {
			return false
		}
	}
	return true
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format: must be json or console, got %q", cfg.Logging.Format)
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if cfg.Server.MaxBodyBytes < 0 {
		return errors.New("server.max_body_bytes must not be negative")
	}
	return nil
}
