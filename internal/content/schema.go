package content

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ValidateStructured checks a structured output value against the tool's
// declared output schema. A missing schema or value validates trivially.
func ValidateStructured(schemaJSON, value json.RawMessage) error {
	if len(schemaJSON) == 0 || len(value) == 0 {
		return nil
	}

	schema := new(jsonschema.Schema)
	if err := json.Unmarshal(schemaJSON, schema); err != nil {
		return fmt.Errorf("parse output schema: %w", err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve output schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(value, &instance); err != nil {
		return fmt.Errorf("parse structured output: %w", err)
	}

	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}
