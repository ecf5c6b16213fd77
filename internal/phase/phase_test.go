package phase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skelf-Research/checkstream-sub000/internal/classifier"
	"github.com/Skelf-Research/checkstream-sub000/internal/config"
	"github.com/Skelf-Research/checkstream-sub000/internal/registry"
	"github.com/Skelf-Research/checkstream-sub000/internal/workerpool"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// fakeEmergency is a deterministic test double for the tier-A emergency
// classifier consulted by the fallback ladder (spec §4.5).
type fakeEmergency struct {
	score float64
}

func (f *fakeEmergency) Name() string          { return "emergency" }
func (f *fakeEmergency) Tier() classifier.Tier { return classifier.TierA }
func (f *fakeEmergency) Classify(_ context.Context, _ string) (classifier.Result, error) {
	return classifier.Result{Score: f.score, Label: "emergency_result"}, nil
}

// buildStore writes a model+catalog pair where the "ingress-primary"
// pipeline always fails (it references an ML classifier whose model has a
// missing local path) and other pipelines/thresholds are controllable via
// the catalog string passed in.
func buildStore(t *testing.T, catalogYAML string) *config.Store {
	t.Helper()
	modelYAML := `
models:
  broken-model:
    source:
      type: local
      path: ` + filepath.Join(t.TempDir(), "does-not-exist") + `
    architecture:
      type: bert-sequence-classification
    inference:
      device: cpu
`
	modelPath := writeTemp(t, "models.yaml", modelYAML)
	catalogPath := writeTemp(t, "catalog.yaml", catalogYAML)
	store, err := config.NewStore(modelPath, catalogPath)
	require.NoError(t, err)
	return store
}

const baseCatalog = `
classifiers:
  broken_ml:
    type: ml
    model: broken-model
    tier: B
  safe_pattern:
    type: pattern
    patterns: ["never_matches_xyz"]
    score: 0.1
    label: clean
  toxic_pattern:
    type: pattern
    patterns: ["toxic"]
    score: 0.95
    label: toxic
pipelines:
  ingress-primary:
    stages:
      - name: scan
        kind: single
        classifier: broken_ml
  ingress-fallback:
    stages:
      - name: scan
        kind: single
        classifier: safe_pattern
  ingress-toxic:
    stages:
      - name: scan
        kind: single
        classifier: toxic_pattern
  midstream-basic:
    stages:
      - name: scan
        kind: single
        classifier: toxic_pattern
  egress-basic:
    stages:
      - name: scan
        kind: single
        classifier: safe_pattern
proxy:
  listen_address: ":8443"
  upstream_base_url: "https://api.openai.com"
  ingress:
    primary: %s
    %s
  midstream:
    primary: midstream-basic
  egress:
    primary: egress-basic
  safety_threshold:
    block: 0.9
    modify: 0.4
  chunk_threshold: 0.7
  hard_stop_threshold: 0.95
  fail_open: %s
  pipeline_timeout_ms: 500
  streaming:
    context_chunks: 1
    max_buffer_size: 1024
    delimiter: " "
`

func sprintfCatalog(primary, fallbackLine, failOpen string) string {
	return fmt.Sprintf(baseCatalog, primary, fallbackLine, failOpen)
}

func TestIngress_BlockAboveThreshold(t *testing.T) {
	catalog := sprintfCatalog("ingress-toxic", "", "true")
	store := buildStore(t, catalog)
	reg := registry.New(store, nil, workerpool.New(2))
	eng := New(store, reg.Lookup(), nil)

	res := eng.Ingress(context.Background(), "this text mentions toxic content")
	assert.Equal(t, IngressBlock, res.Action) // score 0.95 >= block 0.9
}

func TestIngress_FallbackWhenPrimaryFails(t *testing.T) {
	catalog := sprintfCatalog("ingress-primary", "fallback: ingress-fallback", "true")
	store := buildStore(t, catalog)
	reg := registry.New(store, nil, workerpool.New(2))
	eng := New(store, reg.Lookup(), nil)

	res := eng.Ingress(context.Background(), "hello")
	require.NotNil(t, res.Decision)
	assert.Equal(t, "safe_pattern", res.Decision.ClassifierName)
	assert.Equal(t, IngressPass, res.Action)
}

func TestIngress_EmergencyWhenNoFallback(t *testing.T) {
	catalog := sprintfCatalog("ingress-primary", "", "true")
	store := buildStore(t, catalog)
	reg := registry.New(store, nil, workerpool.New(2))
	eng := New(store, reg.Lookup(), &fakeEmergency{score: 0.95})

	res := eng.Ingress(context.Background(), "hello")
	require.NotNil(t, res.Decision)
	assert.Equal(t, "emergency", res.Decision.ClassifierName)
	assert.Equal(t, IngressBlock, res.Action)
}

func TestIngress_FailOpenSyntheticPass(t *testing.T) {
	catalog := sprintfCatalog("ingress-primary", "", "true")
	store := buildStore(t, catalog)
	reg := registry.New(store, nil, workerpool.New(2))
	eng := New(store, reg.Lookup(), nil)

	res := eng.Ingress(context.Background(), "hello")
	assert.Equal(t, IngressPass, res.Action)
}

func TestIngress_FailClosedSyntheticBlock(t *testing.T) {
	catalog := sprintfCatalog("ingress-primary", "", "false")
	store := buildStore(t, catalog)
	reg := registry.New(store, nil, workerpool.New(2))
	eng := New(store, reg.Lookup(), nil)

	res := eng.Ingress(context.Background(), "hello")
	assert.Equal(t, IngressBlock, res.Action)
}

func TestMidstream_Terminate(t *testing.T) {
	catalog := sprintfCatalog("ingress-toxic", "", "true")
	store := buildStore(t, catalog)
	reg := registry.New(store, nil, workerpool.New(2))
	eng := New(store, reg.Lookup(), nil)

	res := eng.Midstream(context.Background(), "this is toxic text")
	assert.Equal(t, MidstreamTerminate, res.Action) // score 0.95 >= hard_stop 0.95
}

func TestMidstream_PassBelowChunkThreshold(t *testing.T) {
	catalog := sprintfCatalog("ingress-toxic", "", "true")
	store := buildStore(t, catalog)
	reg := registry.New(store, nil, workerpool.New(2))
	eng := New(store, reg.Lookup(), nil)

	res := eng.Midstream(context.Background(), "nothing interesting here")
	assert.Equal(t, MidstreamPass, res.Action)
}

func TestDecimator_EvaluatesEveryNthChunk(t *testing.T) {
	d := NewDecimator(3)
	results := []bool{}
	for i := 0; i < 6; i++ {
		results = append(results, d.ShouldEvaluate())
	}
	assert.Equal(t, []bool{false, false, true, false, false, true}, results)
}

func TestDecimator_ZeroMeansEveryChunk(t *testing.T) {
	d := NewDecimator(0)
	assert.True(t, d.ShouldEvaluate())
	assert.True(t, d.ShouldEvaluate())
}
