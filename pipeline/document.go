// Package pipeline parses and validates declarative pipeline documents into
// an executable step graph. Validation is a pure transformation: either the
// whole document is accepted before any frame executes, or a configuration
// error identifies the first offending step and the run never starts.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/TomDLT/realtimefmri/errors"
)

// PublishSpec marks a step as a sink: after the step completes, its first
// output (or first input for output-less steps) is forwarded to the named
// display channel. A step with outputs and a publish block is both a
// transform and a sink.
type PublishSpec struct {
	Channel string `yaml:"channel" json:"channel"`
	Kind    string `yaml:"kind"    json:"kind"`
}

// StepSpec describes one configured processing step.
type StepSpec struct {
	Name       string         `yaml:"name"                 json:"name"`
	Type       string         `yaml:"type"                 json:"type"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Input      []string       `yaml:"input,omitempty"      json:"input,omitempty"`
	Output     []string       `yaml:"output,omitempty"     json:"output,omitempty"`
	Publish    *PublishSpec   `yaml:"publish,omitempty"    json:"publish,omitempty"`
}

// GlobalParameters carries run-wide settings. NSkip counts leading frames
// discarded before any step executes, letting the acquisition settle.
type GlobalParameters struct {
	NSkip int            `yaml:"n_skip"`
	Extra map[string]any `yaml:",inline"`
}

// Document is the parsed, not yet validated, pipeline description.
type Document struct {
	GlobalParameters GlobalParameters `yaml:"global_parameters"`
	Pipeline         []StepSpec       `yaml:"pipeline"`
}

// documentSchema structurally validates the pipeline document before any
// semantic checks run, so shape errors surface with schema paths instead of
// confusing resolution failures.
const documentSchema = `{
  "type": "object",
  "required": ["pipeline"],
  "properties": {
    "global_parameters": {
      "type": "object",
      "properties": {
        "n_skip": {"type": "integer", "minimum": 0}
      }
    },
    "pipeline": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "type"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "parameters": {"type": "object"},
          "input": {"type": "array", "items": {"type": "string"}},
          "output": {"type": "array", "items": {"type": "string"}},
          "publish": {
            "type": "object",
            "required": ["channel", "kind"],
            "properties": {
              "channel": {"type": "string", "minLength": 1},
              "kind": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

// Load reads and parses a pipeline document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfig(err, "pipeline", "Load", "read document")
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, errors.WrapConfig(err, "pipeline", "Load", fmt.Sprintf("parse %s", path))
	}
	return doc, nil
}

// Parse decodes YAML into a Document, applying the structural schema first.
func Parse(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapConfig(err, "pipeline", "Parse", "yaml decode")
	}

	if err := checkSchema(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapConfig(err, "pipeline", "Parse", "document decode")
	}
	return &doc, nil
}

// checkSchema validates the document shape against the embedded JSON schema.
func checkSchema(raw any) error {
	jsonDoc, err := json.Marshal(raw)
	if err != nil {
		return errors.WrapConfig(err, "pipeline", "checkSchema", "json conversion")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(jsonDoc),
	)
	if err != nil {
		return errors.WrapConfig(err, "pipeline", "checkSchema", "schema evaluation")
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return errors.WrapConfig(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(msgs, "; ")),
			"pipeline", "checkSchema", "document structure")
	}
	return nil
}
