package formula

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed formula.schema.json
var schemaJSON string

var manifestSchema = jsonschema.MustCompileString("formula.schema.json", schemaJSON)

// ParseYAML decodes a YAML (or JSON) formula manifest. The document is
// checked against the manifest schema before it is decoded.
func ParseYAML(data []byte) (*Formula, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	// The schema validator expects JSON-shaped values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("manifest is not a JSON-compatible document: %w", err)
	}
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to normalize manifest: %w", err)
	}
	if err := manifestSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("manifest does not match schema: %w", err)
	}

	var f Formula
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	f.normalize()
	return &f, nil
}

// YAML renders f as a YAML manifest.
func (f *Formula) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}
