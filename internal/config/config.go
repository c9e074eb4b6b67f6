// Package config loads the ce-inventory daemon configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/signalsfoundry/ce-endpoints/internal/logging"
	"github.com/signalsfoundry/ce-endpoints/internal/observability"
	"gopkg.in/yaml.v3"
)

// Inventory backends.
const (
	SourceYAML   = "yaml"
	SourceSQLite = "sqlite"
)

var validate = validator.New()

// Config is the top-level daemon configuration.
type Config struct {
	Log            logging.Config              `yaml:"log"`
	Inventory      InventoryConfig             `yaml:"inventory"`
	InterfacesPath string                      `yaml:"interfaces_path"`
	MetricsAddr    string                      `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	Tracing        observability.TracingConfig `yaml:"tracing"`
}

// InventoryConfig selects where port speeds come from.
type InventoryConfig struct {
	Source string `yaml:"source" validate:"oneof=yaml sqlite"`
	Path   string `yaml:"path" validate:"required"`
	// SeedPath is a YAML inventory imported into the sqlite store at
	// startup. Ignored for the yaml source.
	SeedPath string `yaml:"seed_path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, defaults and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Inventory.Source == "" {
		c.Inventory.Source = SourceYAML
	}
	if c.Inventory.Path == "" {
		switch c.Inventory.Source {
		case SourceSQLite:
			c.Inventory.Path = "./ce-inventory.db"
		default:
			c.Inventory.Path = "./inventory.yaml"
		}
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "ce-inventory"
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}

// Validate checks c against its struct tags.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError reports the first failing field in a readable form.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	e := verrs[0]
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required":
		return fmt.Errorf("invalid config: %s is required", field)
	case "oneof":
		return fmt.Errorf("invalid config: %s must be one of [%s], got %q", field, e.Param(), e.Value())
	case "hostname_port":
		return fmt.Errorf("invalid config: %s must be host:port, got %q", field, e.Value())
	case "gte", "lte":
		return fmt.Errorf("invalid config: %s out of range (%s %s)", field, e.Tag(), e.Param())
	default:
		return fmt.Errorf("invalid config: %s failed %q", field, e.Tag())
	}
}
