// Package config loads and validates the runnable host's configuration file.
//
// A document is checked twice: against the JSON Schema reflected from Config, which
// catches unknown keys and type errors with their location in the file, and against the
// validate tags on the decoded struct, which carry the semantic rules.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Default values applied to fields left empty.
const (
	DefaultModuleName     = "env"
	DefaultMaxPayloadSize = 16 * 1024 * 1024
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultPoolSize       = 1
)

// Config is the host configuration document.
type Config struct {
	Log       LogConfig        `yaml:"log,omitempty" json:"log,omitempty"`
	Runnables []RunnableConfig `yaml:"runnables" json:"runnables" validate:"required,min=1,unique=Name,dive" jsonschema:"minItems=1"`
	Executor  ExecutorConfig   `yaml:"executor,omitempty" json:"executor,omitempty"`
}

// LogConfig configures the host logger.
type LogConfig struct {
	Level       string `yaml:"level,omitempty" json:"level,omitempty" validate:"omitempty,oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format      string `yaml:"format,omitempty" json:"format,omitempty" validate:"omitempty,oneof=console json" jsonschema:"enum=console,enum=json"`
	Development bool   `yaml:"development,omitempty" json:"development,omitempty"`
}

// ExecutorConfig configures the wazero runtime guests run in.
type ExecutorConfig struct {
	ModuleName       string `yaml:"module_name,omitempty" json:"module_name,omitempty" validate:"omitempty,max=64" jsonschema:"maxLength=64"`
	MaxPayloadSize   uint32 `yaml:"max_payload_size,omitempty" json:"max_payload_size,omitempty"`
	MemoryLimitPages uint32 `yaml:"memory_limit_pages,omitempty" json:"memory_limit_pages,omitempty" validate:"lte=65536" jsonschema:"maximum=65536"`
}

// RunnableConfig names a guest binary and the pool that serves it.
type RunnableConfig struct {
	Name string     `yaml:"name" json:"name" validate:"required,max=64,excludesall= /" jsonschema:"minLength=1,maxLength=64"`
	Path string     `yaml:"path" json:"path" validate:"required" jsonschema:"minLength=1"`
	Pool PoolConfig `yaml:"pool,omitempty" json:"pool,omitempty"`
}

// PoolConfig configures a Runnable's worker pool.
type PoolConfig struct {
	Size          int      `yaml:"size,omitempty" json:"size,omitempty" validate:"gte=0,lte=1024" jsonschema:"minimum=0,maximum=1024"`
	QueueSize     int      `yaml:"queue_size,omitempty" json:"queue_size,omitempty" validate:"gte=0" jsonschema:"minimum=0"`
	Retries       int      `yaml:"retries,omitempty" json:"retries,omitempty" validate:"gte=0" jsonschema:"minimum=0"`
	RetryInterval Duration `yaml:"retry_interval,omitempty" json:"retry_interval,omitempty"`
	JobTimeout    Duration `yaml:"job_timeout,omitempty" json:"job_timeout,omitempty"`
	PreWarm       bool     `yaml:"pre_warm,omitempty" json:"pre_warm,omitempty"`
}

// Default returns a Config with every optional field at its default.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills empty fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Executor.ModuleName == "" {
		c.Executor.ModuleName = DefaultModuleName
	}
	if c.Executor.MaxPayloadSize == 0 {
		c.Executor.MaxPayloadSize = DefaultMaxPayloadSize
	}
	for i := range c.Runnables {
		if c.Runnables[i].Pool.Size == 0 {
			c.Runnables[i].Pool.Size = DefaultPoolSize
		}
	}
}

// Duration is a time.Duration written as a Go duration string ("250ms", "3s").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// JSONSchema describes Duration as a duration string.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration, e.g. 250ms or 3s",
	}
}
