package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// chatRequestSchema admits null for every optional field, matching clients
// that send explicit nulls.
const chatRequestSchema = `{
  "type": "object",
  "properties": {
    "id":           {"type": "string"},
    "domain":       {"type": ["string", "null"]},
    "src":          {"type": ["string", "null"]},
    "context":      {"type": ["object", "null"]},
    "session_id":   {"type": ["string", "null"]},
    "user_message": {"type": ["string", "null"]}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func requestSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(chatRequestSchema))
	})
	return compiledSchema, schemaErr
}

// DecodeChatRequest validates body against the request schema and decodes it
func DecodeChatRequest(body []byte) (ChatRequest, error) {
	var req ChatRequest

	schema, err := requestSchema()
	if err != nil {
		return req, fmt.Errorf("failed to compile request schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return req, fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}

	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	return req, nil
}
