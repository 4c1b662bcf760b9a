// Package parser decodes host configuration documents.
package parser

import (
	"bytes"
	"errors"
	"io"

	"github.com/reglet-dev/runnable-sdk/domain/ports"
	"gopkg.in/yaml.v3"
)

// YamlConfigParser implements ConfigParser for YAML.
type YamlConfigParser struct {
	strict bool
}

// NewYamlConfigParser creates a new YamlConfigParser. A strict parser rejects keys that
// do not map to a field of the target struct.
func NewYamlConfigParser(strict bool) ports.ConfigParser {
	return &YamlConfigParser{strict: strict}
}

// Decode unmarshals YAML bytes into out.
func (p *YamlConfigParser) Decode(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(p.strict)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
