package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skelf-Research/checkstream-sub000/internal/config"
	"github.com/Skelf-Research/checkstream-sub000/internal/workerpool"
	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testStore(t *testing.T, modelDir string) *config.Store {
	t.Helper()
	modelYAML := `
models:
  toxicity-bert:
    source:
      type: local
      path: ` + modelDir + `
    architecture:
      type: bert-sequence-classification
      num_labels: 2
      labels: ["clean", "toxic"]
    inference:
      device: cpu
      max_length: 256
`
	catalogYAML := `
classifiers:
  toxicity:
    type: ml
    model: toxicity-bert
    tier: B
  pii:
    type: builtin
  banned_words:
    type: pattern
    patterns: ["badword"]
    score: 0.9
    label: banned_word
pipelines:
  ingress-basic:
    stages:
      - name: scan
        kind: single
        classifier: pii
  midstream-basic:
    stages:
      - name: scan
        kind: single
        classifier: banned_words
  egress-basic:
    stages:
      - name: scan
        kind: single
        classifier: toxicity
proxy:
  listen_address: ":8443"
  upstream_base_url: "https://api.openai.com"
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
  pipeline_timeout_ms: 500
  streaming:
    context_chunks: 1
    max_buffer_size: 1024
    delimiter: " "
  preload_classifiers: ["pii", "banned_words"]
`
	modelPath := writeTemp(t, "models.yaml", modelYAML)
	catalogPath := writeTemp(t, "catalog.yaml", catalogYAML)
	store, err := config.NewStore(modelPath, catalogPath)
	require.NoError(t, err)
	return store
}

func TestRegistry_BuiltinAndPattern(t *testing.T) {
	store := testStore(t, t.TempDir())
	reg := New(store, nil, workerpool.New(2))

	pii, err := reg.Get(context.Background(), "pii")
	require.NoError(t, err)
	res, err := pii.Classify(context.Background(), "contact me at a@b.com")
	require.NoError(t, err)
	assert.Greater(t, res.Score, 0.0)

	banned, err := reg.Get(context.Background(), "banned_words")
	require.NoError(t, err)
	res2, err := banned.Classify(context.Background(), "this has a badword in it")
	require.NoError(t, err)
	assert.Equal(t, 0.9, res2.Score)
}

func TestRegistry_CachesInstance(t *testing.T) {
	store := testStore(t, t.TempDir())
	reg := New(store, nil, workerpool.New(2))

	first, err := reg.Get(context.Background(), "pii")
	require.NoError(t, err)
	second, err := reg.Get(context.Background(), "pii")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRegistry_UnknownClassifier(t *testing.T) {
	store := testStore(t, t.TempDir())
	reg := New(store, nil, workerpool.New(2))

	_, err := reg.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
	var ce *ctxerr.ContextualError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ctxerr.ErrNotFound, ce.Cause)
}

func TestRegistry_MLClassifier_MissingLocalPathIsModelUnavailable(t *testing.T) {
	store := testStore(t, filepath.Join(t.TempDir(), "does-not-exist"))
	reg := New(store, nil, workerpool.New(2))

	_, err := reg.Get(context.Background(), "toxicity")
	require.Error(t, err)
	var ce *ctxerr.ContextualError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ctxerr.ErrModelUnavailable, ce.Cause)
}

func TestRegistry_MLClassifier_Works(t *testing.T) {
	modelDir := t.TempDir()
	store := testStore(t, modelDir)
	reg := New(store, nil, workerpool.New(2))

	c, err := reg.Get(context.Background(), "toxicity")
	require.NoError(t, err)
	res, err := c.Classify(context.Background(), "hello there")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Score, 0.0)
}

func TestRegistry_Preload(t *testing.T) {
	store := testStore(t, t.TempDir())
	reg := New(store, nil, workerpool.New(2))

	require.NoError(t, reg.Preload(context.Background()))
	_, err := reg.Get(context.Background(), "pii")
	require.NoError(t, err)
}

func TestRegistry_Lookup_AdaptsToPipelineLookup(t *testing.T) {
	store := testStore(t, t.TempDir())
	reg := New(store, nil, workerpool.New(2))

	lookup := reg.Lookup()
	c, err := lookup("pii")
	require.NoError(t, err)
	assert.Equal(t, "pii", c.Name())
}
