package structuredoutput

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
)

// ErrEmptyOutput is returned when the model produced no content
var ErrEmptyOutput = errors.New("structured output is empty")

// Unmarshal decodes model output into v. Markdown fences are stripped and
// malformed JSON is repaired before giving up.
func Unmarshal(raw string, v interface{}) error {
	content := stripFences(raw)
	if content == "" {
		return ErrEmptyOutput
	}

	err := json.Unmarshal([]byte(content), v)
	if err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return fmt.Errorf("failed to unmarshal structured output: %w (repair error: %v)", err, repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("failed to unmarshal repaired structured output: %w", err)
	}
	return nil
}

// Validate checks raw model output against the response format schema
func Validate(format *interfaces.ResponseFormat, raw string) error {
	if format == nil || format.Schema == nil {
		return nil
	}

	schemaBytes, err := json.Marshal(format.Schema)
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		return fmt.Errorf("failed to decode schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("failed to resolve schema %s: %w", format.Name, err)
	}

	var instance interface{}
	if err := Unmarshal(raw, &instance); err != nil {
		return err
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("output does not match schema %s: %w", format.Name, err)
	}
	return nil
}

// Decode validates raw against format and unmarshals it into v
func Decode(format *interfaces.ResponseFormat, raw string, v interface{}) error {
	if err := Validate(format, raw); err != nil {
		return err
	}
	return Unmarshal(raw, v)
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
