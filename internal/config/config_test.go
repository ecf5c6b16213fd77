package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const validModelCatalogYAML = `
models:
  toxicity-bert:
    source:
      type: local
      path: /models/toxicity-bert
    architecture:
      type: bert-sequence-classification
      num_labels: 2
      labels: ["clean", "toxic"]
    inference:
      device: cpu
      max_length: 512
      threshold: 0.5
      batch_size: 8
    preprocessing:
      - name: lowercase
      - name: truncate
        max_length: 512
`

const validCatalogYAML = `
classifiers:
  toxicity:
    type: ml
    model: toxicity-bert
    tier: B
  pii:
    type: builtin
  banned_words:
    type: pattern
    patterns: ["badword1", "badword2"]
    score: 0.9
    label: banned_word
pipelines:
  ingress-basic:
    description: quick ingress scan
    stages:
      - name: scan
        kind: parallel
        classifiers: ["toxicity", "pii"]
        aggregation: max_score
  midstream-basic:
    stages:
      - name: chunk_scan
        kind: single
        classifier: banned_words
  egress-basic:
    stages:
      - name: final_scan
        kind: single
        classifier: toxicity
proxy:
  listen_address: ":8443"
  upstream_base_url: "https://api.openai.com"
  dev_mode: false
  ingress:
    primary: ingress-basic
  midstream:
    primary: midstream-basic
  egress:
    primary: egress-basic
  safety_threshold:
    block: 0.9
    modify: 0.5
  chunk_threshold: 0.7
  fail_open: true
  pipeline_timeout_ms: 500
  streaming:
    context_chunks: 3
    max_buffer_size: 8192
    delimiter: " "
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadModelCatalog_Valid(t *testing.T) {
	path := writeTemp(t, "models.yaml", validModelCatalogYAML)
	mc, err := LoadModelCatalog(path)
	require.NoError(t, err)
	require.Contains(t, mc.Models, "toxicity-bert")
	assert.Equal(t, "bert-sequence-classification", mc.Models["toxicity-bert"].Architecture.Type)
}

func TestLoadModelCatalog_UnknownArchitectureRejected(t *testing.T) {
	bad := `
models:
  m:
    source:
      type: local
      path: /x
    architecture:
      type: made-up-architecture
    inference:
      device: cpu
`
	path := writeTemp(t, "models.yaml", bad)
	_, err := LoadModelCatalog(path)
	assert.Error(t, err)
}

func TestLoadModelCatalog_TooLarge(t *testing.T) {
	huge := make([]byte, maxCatalogFileBytes+1)
	for i := range huge {
		huge[i] = 'a'
	}
	path := writeTemp(t, "models.yaml", string(huge))
	_, err := LoadModelCatalog(path)
	assert.Error(t, err)
}

func TestLoadCatalog_Valid(t *testing.T) {
	path := writeTemp(t, "catalog.yaml", validCatalogYAML)
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Contains(t, c.Pipelines, "ingress-basic")
	assert.Equal(t, int64(defaultMaxRequestBodyBytes), c.Proxy.MaxRequestBodyBytes)
}

func TestLoadCatalog_UndefinedClassifierReferenceRejected(t *testing.T) {
	bad := `
classifiers:
  toxicity:
    type: ml
    model: toxicity-bert
pipelines:
  ingress-basic:
    stages:
      - name: scan
        kind: single
        classifier: does_not_exist
proxy:
  listen_address: ":8443"
  upstream_base_url: "https://api.openai.com"
  ingress:
    primary: ingress-basic
  midstream:
    primary: ingress-basic
  egress:
    primary: ingress-basic
  safety_threshold:
    block: 0.9
    modify: 0.5
  chunk_threshold: 0.7
  pipeline_timeout_ms: 500
  streaming:
    context_chunks: 1
    max_buffer_size: 1024
    delimiter: " "
`
	path := writeTemp(t, "catalog.yaml", bad)
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestLoadCatalog_UndefinedFallbackPipelineRejected(t *testing.T) {
	bad := `
classifiers:
  toxicity:
    type: ml
    model: toxicity-bert
pipelines:
  ingress-basic:
    stages:
      - name: scan
        kind: single
        classifier: toxicity
proxy:
  listen_address: ":8443"
  upstream_base_url: "https://api.openai.com"
  ingress:
    primary: ingress-basic
    fallback: no-such-pipeline
  midstream:
    primary: ingress-basic
  egress:
    primary: ingress-basic
  safety_threshold:
    block: 0.9
    modify: 0.5
  chunk_threshold: 0.7
  pipeline_timeout_ms: 500
  streaming:
    context_chunks: 1
    max_buffer_size: 1024
    delimiter: " "
`
	path := writeTemp(t, "catalog.yaml", bad)
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestPipelineEntry_ToPipelineSpec(t *testing.T) {
	path := writeTemp(t, "catalog.yaml", validCatalogYAML)
	c, err := LoadCatalog(path)
	require.NoError(t, err)

	spec := c.Pipelines["ingress-basic"].ToPipelineSpec("ingress-basic")
	require.Len(t, spec.Stages, 1)
	assert.Equal(t, "parallel", string(spec.Stages[0].Kind))
	assert.ElementsMatch(t, []string{"toxicity", "pii"}, spec.Stages[0].Classifiers)
}

func TestStore_ReloadKeepsPreviousSnapshotOnInvalidUpdate(t *testing.T) {
	modelPath := writeTemp(t, "models.yaml", validModelCatalogYAML)
	catalogPath := writeTemp(t, "catalog.yaml", validCatalogYAML)

	store, err := NewStore(modelPath, catalogPath)
	require.NoError(t, err)
	first := store.Current()
	require.NotNil(t, first.Catalog)

	require.NoError(t, os.WriteFile(catalogPath, []byte("classifiers: {}\npipelines: {}\nproxy: {}\n"), 0o600))
	err = store.Reload()
	assert.Error(t, err)
	assert.Same(t, first, store.Current(), "a failed reload must not replace the live snapshot")
}

func TestStore_ReloadSwapsOnValidUpdate(t *testing.T) {
	modelPath := writeTemp(t, "models.yaml", validModelCatalogYAML)
	catalogPath := writeTemp(t, "catalog.yaml", validCatalogYAML)

	store, err := NewStore(modelPath, catalogPath)
	require.NoError(t, err)
	first := store.Current()

	require.NoError(t, os.WriteFile(catalogPath, []byte(validCatalogYAML), 0o600))
	require.NoError(t, store.Reload())
	assert.NotSame(t, first, store.Current())
}

// TestLoadCatalog_RoundTripsThroughReemission covers the configurability
// round-trip property: parsing a canonical document, re-emitting it, and
// parsing the re-emission again must yield an equal in-memory catalog.
func TestLoadCatalog_RoundTripsThroughReemission(t *testing.T) {
	path := writeTemp(t, "catalog.yaml", validCatalogYAML)
	first, err := LoadCatalog(path)
	require.NoError(t, err)

	reemitted, err := yaml.Marshal(first)
	require.NoError(t, err)

	reemittedPath := writeTemp(t, "catalog-reemitted.yaml", string(reemitted))
	second, err := LoadCatalog(reemittedPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStore_VersionIncrementsOnSuccessfulReload(t *testing.T) {
	modelPath := writeTemp(t, "models.yaml", validModelCatalogYAML)
	catalogPath := writeTemp(t, "catalog.yaml", validCatalogYAML)

	store, err := NewStore(modelPath, catalogPath)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), store.Current().Version)

	require.NoError(t, os.WriteFile(catalogPath, []byte(validCatalogYAML), 0o600))
	require.NoError(t, store.Reload())
	assert.Equal(t, uint64(2), store.Current().Version)

	require.NoError(t, os.WriteFile(catalogPath, []byte("classifiers: {}\npipelines: {}\nproxy: {}\n"), 0o600))
	assert.Error(t, store.Reload())
	assert.Equal(t, uint64(2), store.Current().Version, "a failed reload must not bump the version")
}
