// Package promptfile reads and writes prompt files in YAML or JSON form.
// It is a boundary helper: the versioning core only ever sees normalized
// records, never files.
package promptfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"promptvc/internal/prompt"
	"promptvc/internal/vcerrors"
)

// schemaJSON constrains the declared prompt fields while allowing
// arbitrary extra fields for forward compatibility. Numeric domains
// mirror the record validation so file errors surface before a commit is
// attempted.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "system": {"type": "string"},
    "user_template": {"type": "string"},
    "assistant_prefix": {"type": "string"},
    "temperature": {"type": "number", "minimum": 0.0, "maximum": 2.0},
    "max_tokens": {"type": "integer", "exclusiveMinimum": 0},
    "top_p": {"type": "number", "minimum": 0.0, "maximum": 1.0},
    "frequency_penalty": {"type": "number", "minimum": -2.0, "maximum": 2.0},
    "presence_penalty": {"type": "number", "minimum": -2.0, "maximum": 2.0},
    "stop_sequences": {"type": "array", "items": {"type": "string"}}
  },
  "additionalProperties": true
}`

var promptSchema = jsonschema.MustCompileString("prompt.schema.json", schemaJSON)

// Load reads a prompt file (YAML or JSON by extension, YAML as the
// fallback), validates it against the prompt schema, and returns the raw
// field map ready for the repository engine to normalize.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file: %w", err)
	}

	var m map[string]any
	if isJSONPath(path) {
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, vcerrors.Validation(filepath.Base(path), fmt.Sprintf("invalid JSON: %v", err))
		}
	} else {
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, vcerrors.Validation(filepath.Base(path), fmt.Sprintf("invalid YAML: %v", err))
		}
	}
	if m == nil {
		return nil, vcerrors.Validation(filepath.Base(path), "prompt file is empty")
	}

	if err := validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Write serializes a record back to disk, choosing the format by file
// extension. Used when round-tripping a checkout to its originating file.
func Write(path string, rec *prompt.Record) error {
	var data []byte
	var err error
	if isJSONPath(path) {
		data, err = json.MarshalIndent(rec.ToMap(), "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	} else {
		data, err = yaml.Marshal(rec.ToMap())
	}
	if err != nil {
		return fmt.Errorf("serializing prompt file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing prompt file: %w", err)
	}
	return nil
}

// validate runs the JSON Schema over a JSON-normalized copy of the map
// (YAML decoding produces int where the schema library expects
// json.Unmarshal output).
func validate(m map[string]any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("normalizing prompt data: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return fmt.Errorf("normalizing prompt data: %w", err)
	}

	if err := promptSchema.Validate(normalized); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := ve
			for len(leaf.Causes) > 0 {
				leaf = leaf.Causes[0]
			}
			field := strings.TrimPrefix(leaf.InstanceLocation, "/")
			if field == "" {
				field = "prompt"
			}
			return vcerrors.Validation(field, leaf.Message)
		}
		return vcerrors.Validation("prompt", err.Error())
	}
	return nil
}

func isJSONPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
