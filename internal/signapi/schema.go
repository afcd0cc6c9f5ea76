package signapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	schemaBaseURL = "https://schemas.signlearner.dev/"

	textToASLSchema      = "text_to_asl.schema.json"
	generateLessonSchema = "generate_lesson.schema.json"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	compileOnce     sync.Once
	compiledSchemas map[string]*jsonschema.Schema
	compileErr      error
)

// validatePayload checks raw against the named response schema and returns the
// normalized JSON ready to be unmarshaled into a typed response.
func validatePayload(name string, raw []byte) ([]byte, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema(name)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}
	return normalized, nil
}

func loadSchema(name string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		entries, err := schemaFS.ReadDir("schemas")
		if err != nil {
			compileErr = fmt.Errorf("read embedded schemas: %w", err)
			return
		}
		for _, entry := range entries {
			data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", entry.Name(), err)
				return
			}
			if err := compiler.AddResource(schemaBaseURL+entry.Name(), bytes.NewReader(data)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", entry.Name(), err)
				return
			}
		}

		compiled := make(map[string]*jsonschema.Schema, 2)
		for _, schemaName := range []string{textToASLSchema, generateLessonSchema} {
			schema, err := compiler.Compile(schemaBaseURL + schemaName)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", schemaName, err)
				return
			}
			compiled[schemaName] = schema
		}
		compiledSchemas = compiled
	})

	if compileErr != nil {
		return nil, compileErr
	}
	schema, ok := compiledSchemas[name]
	if !ok {
		return nil, fmt.Errorf("schema %q not registered", name)
	}
	return schema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}
