package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// LoadModelCatalog reads, schema-validates, and decodes a model catalog YAML
// file (spec §6.4). The file is capped at maxCatalogFileBytes (spec §6.3).
func LoadModelCatalog(path string) (*ModelCatalog, error) {
	raw, err := readCatalogFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateAgainstSchema(raw, schemaModelCatalog); err != nil {
		return nil, ctxerr.New("config", "LoadModelCatalog", err).WithDetails(map[string]any{"path": path})
	}

	var mc ModelCatalog
	if err := yaml.Unmarshal(raw, &mc); err != nil {
		return nil, ctxerr.New("config", "LoadModelCatalog", fmt.Errorf("decode: %w", err))
	}
	if err := validateModelCatalog(&mc); err != nil {
		return nil, err
	}
	return &mc, nil
}

// LoadCatalog reads, schema-validates, decodes, and cross-validates a
// classifier+pipeline catalog YAML file (spec §6.4). Cross-validation
// confirms every stage and every proxy phase reference names a classifier
// or pipeline actually defined in the same document — a property JSON
// Schema's structural validation cannot express.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := readCatalogFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateAgainstSchema(raw, schemaCatalog); err != nil {
		return nil, ctxerr.New("config", "LoadCatalog", err).WithDetails(map[string]any{"path": path})
	}

	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, ctxerr.New("config", "LoadCatalog", fmt.Errorf("decode: %w", err))
	}
	c.applyDefaults()
	if err := validateCatalog(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func readCatalogFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, ctxerr.New("config", "readCatalogFile", ctxerr.ErrNotFound).WithDetails(map[string]any{"path": path})
	}
	if info.Size() > maxCatalogFileBytes {
		return nil, ctxerr.New("config", "readCatalogFile", ctxerr.ErrInvalidInput).
			WithDetails(map[string]any{"path": path, "size_bytes": info.Size(), "max_bytes": maxCatalogFileBytes})
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ctxerr.New("config", "readCatalogFile", fmt.Errorf("read: %w", err))
	}
	return raw, nil
}
