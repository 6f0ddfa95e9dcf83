// Package config loads contextgroups settings from a YAML file, the
// environment and command line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gofhir/contextgroups/pkg/tracing"
	"github.com/gofhir/contextgroups/pkg/writer"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. CONTEXTGROUPS_STRICT.
	EnvPrefix = "CONTEXTGROUPS"

	// FileName is the config file looked up when no path is given.
	FileName = "contextgroups"
)

// Output formats.
const (
	FormatXML  = "xml"
	FormatFHIR = "fhir"
)

// Config holds all configuration options.
type Config struct {
	// Strict turns unresolved includes and undefined wanted groups into errors.
	Strict bool `yaml:"strict" mapstructure:"strict"`

	// Order is "sorted" or "insertion".
	Order string `yaml:"order" mapstructure:"order"`

	// Format is "xml" or "fhir".
	Format string `yaml:"format" mapstructure:"format"`

	SchemaLocation string `yaml:"schema_location" mapstructure:"schema_location"`

	// Where holds FHIRPath expressions every selected group must satisfy.
	Where []string `yaml:"where" mapstructure:"where"`

	LogLevel string `yaml:"log_level" mapstructure:"log_level"`

	// CacheSize bounds the compiled expression cache.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"`

	// Check reports stale outputs instead of writing them.
	Check bool `yaml:"check" mapstructure:"check"`

	// Workers bounds concurrent batch targets; 0 means one per CPU.
	Workers int `yaml:"workers" mapstructure:"workers"`

	Tracing tracing.Config `yaml:"tracing" mapstructure:"tracing"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Strict:         false,
		Order:          "sorted",
		Format:         FormatXML,
		SchemaLocation: writer.DefaultSchemaLocation,
		Where:          []string{},
		LogLevel:       "info",
		CacheSize:      64,
		Tracing:        tracing.DefaultConfig(),
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("strict", d.Strict)
	v.SetDefault("order", d.Order)
	v.SetDefault("format", d.Format)
	v.SetDefault("schema_location", d.SchemaLocation)
	v.SetDefault("where", d.Where)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("check", d.Check)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// New returns a viper instance with defaults and environment overrides
// bound. Callers may bind flags to it before calling Read.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v, Defaults())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Read loads the config file into v and decodes the result.
//
// With an explicit path the file must exist. Otherwise contextgroups.yaml
// is looked up in the working directory, then ~/.config/contextgroups, and
// a missing file leaves the defaults in place.
func Read(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "contextgroups"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the configuration at path, or the default locations when path
// is empty.
func Load(path string) (Config, error) {
	return Read(New(), path)
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Order {
	case "sorted", "insertion":
	default:
		return fmt.Errorf("invalid order %q: want sorted or insertion", c.Order)
	}
	switch c.Format {
	case FormatXML, FormatFHIR:
	default:
		return fmt.Errorf("invalid format %q: want xml or fhir", c.Format)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid workers %d: must not be negative", c.Workers)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "off", "none", "":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

const header = "# contextgroups configuration\n" +
	"# Every key can be overridden with a CONTEXTGROUPS_ environment variable,\n" +
	"# e.g. CONTEXTGROUPS_STRICT=true or CONTEXTGROUPS_TRACING_ENABLED=true.\n\n"

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	var buf bytes.Buffer
	buf.WriteString(header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Defaults()); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing config file: %w", err)
	}
	return f.Close()
}
