// Package schema validates extraction responses against the pipeline's
// structural contract: a top-level items collection of objects. Field
// semantics inside each item belong to the caller; only the shape is
// enforced here.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// extractionSchema is the canonical contract for one invocation result.
// Bare single-item responses are normalized by the pipeline before
// validation is meaningful, so both forms are admitted here.
const extractionSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"oneOf": [
		{
			"type": "object",
			"required": ["items"],
			"properties": {
				"items": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"title":    {"type": "string"},
							"summary":  {"type": "string"},
							"keywords": {"type": "array", "items": {"type": "string"}},
							"link":     {"type": "string"}
						}
					}
				}
			}
		},
		{
			"type": "array",
			"items": {"type": "object"}
		},
		{
			"type": "object",
			"required": ["title"]
		}
	]
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("extraction.json", bytes.NewReader([]byte(extractionSchema))); err != nil {
			compileErr = fmt.Errorf("failed to load extraction schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile("extraction.json")
	})
	return compiled, compileErr
}

// ExtractionValidator validates raw response documents. It satisfies the
// pipeline's Validator interface.
type ExtractionValidator struct{}

// Validate checks one parsed response document against the extraction
// contract.
func (ExtractionValidator) Validate(doc json.RawMessage) error {
	s, err := schema()
	if err != nil {
		return err
	}

	var decoded any
	if err := json.Unmarshal(doc, &decoded); err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}

	if err := s.Validate(decoded); err != nil {
		return fmt.Errorf("response does not match extraction contract: %w", err)
	}
	return nil
}
