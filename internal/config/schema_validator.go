package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.json
var embeddedSchemas embed.FS

type schemaDoc string

const (
	schemaModelCatalog schemaDoc = "model_catalog"
	schemaCatalog      schemaDoc = "catalog"
)

var (
	schemaCacheMu sync.Mutex
	schemaCache   = map[schemaDoc]*gojsonschema.Schema{}
)

func compiledSchema(doc schemaDoc) (*gojsonschema.Schema, error) {
	schemaCacheMu.Lock()
	defer schemaCacheMu.Unlock()

	if s, ok := schemaCache[doc]; ok {
		return s, nil
	}

	raw, err := embeddedSchemas.ReadFile(fmt.Sprintf("schemas/%s.schema.json", doc))
	if err != nil {
		return nil, fmt.Errorf("config: embedded schema %q missing: %w", doc, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("config: compile schema %q: %w", doc, err)
	}
	schemaCache[doc] = schema
	return schema, nil
}

// validateAgainstSchema converts yamlData to JSON and validates it against
// the named embedded JSON Schema, in strict mode: any tag outside the
// schema's closed enums (architecture type, aggregation, condition kind,
// stage kind, source type, preprocessing step) fails the load (spec DESIGN
// NOTES).
func validateAgainstSchema(yamlData []byte, doc schemaDoc) error {
	var generic interface{}
	if err := yaml.Unmarshal(yamlData, &generic); err != nil {
		return fmt.Errorf("config: parse yaml: %w", err)
	}
	jsonData, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("config: convert to json: %w", err)
	}

	schema, err := compiledSchema(doc)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("config: schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("  - %s: %s", e.Field(), e.Description()))
		}
		return fmt.Errorf("%s does not match schema:\n%s", doc, strings.Join(msgs, "\n"))
	}
	return nil
}
