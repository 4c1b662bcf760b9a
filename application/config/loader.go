package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/reglet-dev/runnable-sdk/domain/entities"
	"github.com/reglet-dev/runnable-sdk/domain/ports"
	"github.com/reglet-dev/runnable-sdk/infrastructure/parser"
)

// InvalidError reports every problem found in a configuration document.
type InvalidError struct {
	Result *entities.ValidationResult
}

func (e *InvalidError) Error() string {
	var b strings.Builder
	b.WriteString("config validation failed:")
	for _, ve := range e.Result.Errors {
		if ve.Field == "" {
			fmt.Fprintf(&b, "\n- %s", ve.Message)
			continue
		}
		fmt.Fprintf(&b, "\n- %s: %s", ve.Field, ve.Message)
	}
	return b.String()
}

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	parser    ports.ConfigParser
	expandEnv bool // Substitute ${VAR} before parsing
	schema    bool // Check the document against Schema
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		parser:    parser.NewYamlConfigParser(true),
		expandEnv: true,
		schema:    true,
	}
}

// Loader orchestrates the configuration loading pipeline.
type Loader struct {
	config loaderConfig
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithParser sets a custom document parser.
func WithParser(p ports.ConfigParser) LoaderOption {
	return func(c *loaderConfig) {
		c.parser = p
	}
}

// WithEnvExpansion enables/disables ${VAR} substitution from the environment.
func WithEnvExpansion(enabled bool) LoaderOption {
	return func(c *loaderConfig) {
		c.expandEnv = enabled
	}
}

// WithSchemaValidation enables/disables the JSON Schema check of the raw document.
func WithSchemaValidation(enabled bool) LoaderOption {
	return func(c *loaderConfig) {
		c.schema = enabled
	}
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{config: cfg}
}

// Load parses, defaults and validates a configuration document. Validation failures are
// returned as *InvalidError.
func (l *Loader) Load(raw []byte) (*Config, error) {
	data := raw
	if l.config.expandEnv {
		data = []byte(os.ExpandEnv(string(raw)))
	}

	result := &entities.ValidationResult{Valid: true}

	if l.config.schema {
		var doc any
		if err := l.config.parser.Decode(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		if err := ValidateDocument(doc, result); err != nil {
			return nil, err
		}
		if !result.Valid {
			// Decoding into the struct would only repeat these errors less precisely.
			return nil, &InvalidError{Result: result}
		}
	}

	var cfg Config
	if err := l.config.parser.Decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()

	if err := ValidateStruct(&cfg, result); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid {
		return nil, &InvalidError{Result: result}
	}
	return &cfg, nil
}

// LoadFile reads and loads the configuration at path.
func (l *Loader) LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return l.Load(raw)
}
