package unstructured

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema is the shape the recognizer relies on; other element fields
// pass through untouched.
const responseSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["type", "text"],
    "properties": {
      "type": {"type": "string"},
      "text": {"type": "string"},
      "metadata": {
        "type": "object",
        "properties": {
          "page_number": {"type": "integer", "minimum": 1}
        }
      }
    }
  }
}`

type responseValidator struct {
	schema *jsonschema.Schema
}

func newResponseValidator() (*responseValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("partition.json", bytes.NewReader([]byte(responseSchema))); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("partition.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &responseValidator{schema: schema}, nil
}

func (v *responseValidator) Validate(body []byte) error {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("ocr response is not json: %w", err)
	}
	if err := v.schema.Validate(data); err != nil {
		return fmt.Errorf("ocr response does not match schema: %w", err)
	}
	return nil
}
