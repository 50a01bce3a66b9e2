package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
)

const SpecSchemaV1 = "gamelog.pipeline.v1"

// Spec is the declarative pipeline definition carried in pipeline.yaml.
type Spec struct {
	Schema   string   `yaml:"schema" json:"schema"`
	Name     string   `yaml:"name" json:"name"`
	Triggers Triggers `yaml:"on" json:"on"`
	Steps    []Step   `yaml:"steps" json:"steps"`
}

type Triggers struct {
	Events   []string `yaml:"events" json:"events"`
	Branches []string `yaml:"branches,omitempty" json:"branches,omitempty"`
}

type Step struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

const specJSONSchema = `{
  "type": "object",
  "required": ["schema", "name", "steps"],
  "properties": {
    "schema": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "on": {
      "type": "object",
      "properties": {
        "events": {
          "type": "array",
          "items": {"type": "string", "enum": ["push", "pull_request"]}
        },
        "branches": {
          "type": "array",
          "items": {"type": "string", "minLength": 1}
        }
      }
    },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "command"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "command": {"type": "string", "minLength": 1},
          "args": {"type": "array", "items": {"type": "string"}},
          "env": {"type": "object", "additionalProperties": {"type": "string"}}
        }
      }
    }
  }
}`

var (
	specSchemaOnce sync.Once
	specSchema     *openapi3.Schema
	specSchemaErr  error
)

func loadSpecSchema() (*openapi3.Schema, error) {
	specSchemaOnce.Do(func() {
		s := &openapi3.Schema{}
		if err := s.UnmarshalJSON([]byte(specJSONSchema)); err != nil {
			specSchemaErr = fmt.Errorf("load pipeline schema: %w", err)
			return
		}
		specSchema = s
	})
	return specSchema, specSchemaErr
}

// ParseSpec decodes and validates a pipeline.yaml document. Structural
// validation runs against the JSON schema before the shape checks so schema
// failures carry field paths.
func ParseSpec(data []byte) (Spec, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Spec{}, fmt.Errorf("parse pipeline yaml: %w", err)
	}
	if doc == nil {
		return Spec{}, errors.New("pipeline spec is empty")
	}

	// Round-trip through JSON so the schema validator sees canonical types.
	encoded, err := json.Marshal(doc)
	if err != nil {
		return Spec{}, fmt.Errorf("encode pipeline spec: %w", err)
	}
	var canonical any
	if err := json.Unmarshal(encoded, &canonical); err != nil {
		return Spec{}, fmt.Errorf("encode pipeline spec: %w", err)
	}

	schema, err := loadSpecSchema()
	if err != nil {
		return Spec{}, err
	}
	if err := schema.VisitJSON(canonical); err != nil {
		return Spec{}, fmt.Errorf("pipeline spec invalid: %w", err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Spec{}, fmt.Errorf("parse pipeline yaml: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

func (s Spec) Validate() error {
	if strings.TrimSpace(s.Schema) != SpecSchemaV1 {
		return fmt.Errorf("spec.schema must be %q", SpecSchemaV1)
	}
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("spec.name is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("spec.steps must be non-empty")
	}

	for i, event := range s.Triggers.Events {
		if _, ok := domain.ParseTriggerEvent(event); !ok {
			return fmt.Errorf("spec.on.events[%d] unsupported: %q", i, event)
		}
	}
	for i, branch := range s.Triggers.Branches {
		if strings.TrimSpace(branch) == "" {
			return fmt.Errorf("spec.on.branches[%d] must be non-empty", i)
		}
	}

	seen := make(map[string]struct{}, len(s.Steps))
	for i, step := range s.Steps {
		name := strings.TrimSpace(step.Name)
		if name == "" {
			return fmt.Errorf("spec.steps[%d].name is required", i)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("spec.steps[%d].name must be unique (duplicate %q)", i, name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(step.Command) == "" {
			return fmt.Errorf("spec.steps[%d].command is required", i)
		}
		for key := range step.Env {
			if strings.TrimSpace(key) == "" {
				return fmt.Errorf("spec.steps[%d].env keys must be non-empty", i)
			}
		}
	}
	return nil
}

// DefaultBranch is assumed when a spec lists no branch filters.
const DefaultBranch = "main"

// Matches reports whether a trigger event on a branch should start a run.
// An empty event list matches nothing; an empty branch list matches only
// the default branch.
func (s Spec) Matches(event domain.TriggerEvent, branch string) bool {
	if !event.Valid() {
		return false
	}
	matched := false
	for _, item := range s.Triggers.Events {
		if strings.EqualFold(strings.TrimSpace(item), string(event)) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	branches := s.Triggers.Branches
	if len(branches) == 0 {
		branches = []string{DefaultBranch}
	}
	branch = strings.TrimSpace(branch)
	for _, item := range branches {
		if strings.TrimSpace(item) == branch {
			return true
		}
	}
	return false
}
