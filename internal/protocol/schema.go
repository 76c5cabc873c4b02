package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// actionSchema validates the transport envelope before an Action is routed.
// Payload contents are validated per action type by the phase handlers;
// the schema only guards the outer shape.
const actionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"type": "string", "minLength": 1},
    "actor_unit_id": {"type": "string"},
    "payload": {"type": "object"}
  }
}`

var compiledActionSchema = jsonschema.MustCompileString("action.schema.json", actionSchema)

// DecodeAction parses and schema-validates a raw action envelope.
func DecodeAction(raw []byte) (Action, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	if err := compiledActionSchema.Validate(doc); err != nil {
		return Action{}, MissingParameter("type")
	}
	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	return a, nil
}
