package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"aidiary/internal/apperr"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// snapshotSchema is the shape check run on raw backup files before they
// are decoded. Field-level rules live in chat validation.
const snapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["conversations"],
  "properties": {
    "conversations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "date"],
        "anyOf": [
          {"required": ["messages"]},
          {"required": ["conversations"]}
        ],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "date": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
          "title": {"type": "string"},
          "messages": {"type": "array", "items": {"$ref": "#/definitions/message"}},
          "conversations": {"type": "array", "items": {"$ref": "#/definitions/message"}},
          "diary": {"type": ["object", "null"]},
          "metadata": {"type": "object"},
          "createdAt": {"type": "string"},
          "updatedAt": {"type": "string"}
        }
      }
    },
    "settings": {"type": ["object", "null"]}
  },
  "definitions": {
    "message": {
      "type": "object",
      "required": ["id", "role", "content"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "role": {"enum": ["user", "assistant"]},
        "content": {"type": "string"},
        "timestamp": {"type": "string"}
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("snapshot.schema.json", snapshotSchema)

// checkSchema validates a raw document and returns one problem per failed
// location.
func checkSchema(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return apperr.ImportIntegrity("decode", []string{fmt.Sprintf("not valid JSON: %v", err)})
	}
	err := compiledSchema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return apperr.ImportIntegrity("decode", []string{err.Error()})
	}
	var problems []string
	for _, e := range ve.BasicOutput().Errors {
		if e.Error == "" {
			continue
		}
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		problems = append(problems, fmt.Sprintf("%s: %s", loc, e.Error))
	}
	if len(problems) == 0 {
		problems = []string{ve.Error()}
	}
	return apperr.ImportIntegrity("decode", problems)
}
