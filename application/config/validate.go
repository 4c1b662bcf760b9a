package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/runnable-sdk/application/schema"
	"github.com/reglet-dev/runnable-sdk/domain/entities"
	jsonschemavalidator "github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	schemaURL   = "runnable-host.schema.json"
	schemaID    = "https://github.com/reglet-dev/runnable-sdk/runnable-host.schema.json"
	schemaTitle = "Runnable host configuration"
)

// validate is a package-level singleton for better performance.
// Creating a new validator on each call is expensive; reusing is recommended.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML names, which is what users write.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var compiled struct {
	err    error
	schema *jsonschemavalidator.Schema
	once   sync.Once
}

// Schema returns the JSON Schema of the configuration document.
func Schema() ([]byte, error) {
	return schema.GenerateSchema(&Config{}, schema.WithID(schemaID), schema.WithTitle(schemaTitle))
}

func compiledSchema() (*jsonschemavalidator.Schema, error) {
	compiled.once.Do(func() {
		raw, err := Schema()
		if err != nil {
			compiled.err = err
			return
		}
		c := jsonschemavalidator.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
			compiled.err = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		compiled.schema, compiled.err = c.Compile(schemaURL)
	})
	return compiled.schema, compiled.err
}

// ValidateDocument checks a decoded document (maps, slices, scalars) against Schema and
// records every violation in result.
func ValidateDocument(doc any, result *entities.ValidationResult) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("invalid configuration schema: %w", err)
	}

	// Round trip through JSON so the validator sees JSON types only.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to prepare validation object: %w", err)
	}
	var obj any
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("failed to prepare validation object: %w", err)
	}

	err = sch.Validate(obj)
	if err == nil {
		return nil
	}
	var ve *jsonschemavalidator.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	for _, basic := range ve.BasicOutput().Errors {
		if basic.Error == "" || strings.HasPrefix(basic.Error, "doesn't validate with") {
			continue
		}
		result.Add(fieldFromPointer(basic.InstanceLocation), basic.Error)
	}
	if result.Valid {
		// Only wrapper errors were reported; keep the summary.
		result.Add("", ve.Error())
	}
	return nil
}

// ValidateStruct checks c's validate tags and records every violation in result.
func ValidateStruct(c *Config, result *entities.ValidationResult) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		// Drop the root struct name from the namespace.
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		result.Add(field, msg)
	}
	return nil
}

// fieldFromPointer turns "/runnables/0/name" into "runnables[0].name".
func fieldFromPointer(ptr string) string {
	var b strings.Builder
	for _, seg := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if seg == "" {
			continue
		}
		if seg[0] >= '0' && seg[0] <= '9' {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}
