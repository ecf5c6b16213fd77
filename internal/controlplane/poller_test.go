package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Skelf-Research/checkstream-sub000/internal/config"
)

const initialModelYAML = `
models:
  broken-model:
    source:
      type: local
      path: /does/not/exist
    architecture:
      type: bert-sequence-classification
    inference:
      device: cpu
`

const catalogYAMLTemplate = `
classifiers:
  safe_pattern:
    type: pattern
    patterns: ["%s"]
    score: 0.1
    label: clean
pipelines:
  ingress-safe:
    stages:
      - name: stage0
        kind: single
        classifier: safe_pattern
  egress-safe:
    stages:
      - name: stage0
        kind: single
        classifier: safe_pattern
proxy:
  listen_address: ":8443"
  upstream_base_url: "https://api.openai.com"
  dev_mode: false
  ingress:
    primary: ingress-safe
  midstream:
    primary: ingress-safe
  egress:
    primary: egress-safe
  safety_threshold:
    block: 0.9
    modify: 0.4
  chunk_threshold: 0.7
  fail_open: true
  pipeline_timeout_ms: 2000
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

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
}

func TestPoller_AppliesChangedBundleAndReloads(t *testing.T) {
	modelPath := writeTemp(t, "models.yaml", initialModelYAML)
	catalogPath := writeTemp(t, "catalog.yaml", fmt.Sprintf(catalogYAMLTemplate, "never_matches_xyz"))
	store, err := config.NewStore(modelPath, catalogPath)
	require.NoError(t, err)
	require.Equal(t, uint64(1), store.Current().Version)

	tokenSrv := newTokenServer(t)
	defer tokenSrv.Close()

	var requestCount int32
	bundleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		n := atomic.AddInt32(&requestCount, 1)
		pattern := "never_matches_xyz"
		if n > 1 {
			pattern = "danger"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version":      fmt.Sprintf("v%d", n),
			"catalog_yaml": fmt.Sprintf(catalogYAMLTemplate, pattern),
		})
	}))
	defer bundleSrv.Close()

	cc := clientcredentials.Config{
		ClientID:     "node-1",
		ClientSecret: "shh",
		TokenURL:     tokenSrv.URL,
	}
	poller := NewPoller(store, cc, bundleSrv.URL, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return store.Current().Version == uint64(2)
	}, time.Second, 5*time.Millisecond)

	assert.Contains(t, store.Current().Catalog.Classifiers["safe_pattern"].Patterns, "danger")

	cancel()
	<-done
}

func TestPoller_SkipsReloadWhenBundleUnchanged(t *testing.T) {
	modelPath := writeTemp(t, "models.yaml", initialModelYAML)
	catalogPath := writeTemp(t, "catalog.yaml", fmt.Sprintf(catalogYAMLTemplate, "never_matches_xyz"))
	store, err := config.NewStore(modelPath, catalogPath)
	require.NoError(t, err)

	tokenSrv := newTokenServer(t)
	defer tokenSrv.Close()

	bundleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version":      "v1",
			"catalog_yaml": fmt.Sprintf(catalogYAMLTemplate, "never_matches_xyz"),
		})
	}))
	defer bundleSrv.Close()

	cc := clientcredentials.Config{
		ClientID:     "node-1",
		ClientSecret: "shh",
		TokenURL:     tokenSrv.URL,
	}
	poller := NewPoller(store, cc, bundleSrv.URL, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, uint64(1), store.Current().Version)
}
