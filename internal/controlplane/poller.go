// Package controlplane implements the node's outbound half of the policy
// distribution channel the control-plane SaaS exposes (SPEC_FULL.md §12
// item 4): periodically fetching a signed catalog bundle over HTTPS,
// authenticated with an OAuth2 client-credentials token, and reloading the
// local Store when the bundle's content changes. Everything on the
// control-plane side of that HTTPS boundary — fleet orchestration, bundle
// signing, rollout sequencing — is out of scope; this package only
// implements the node's polling client and the file of whatever it fetches.
package controlplane

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/Skelf-Research/checkstream-sub000/internal/config"
	"github.com/Skelf-Research/checkstream-sub000/internal/obslog"
	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// defaultPollInterval matches the teacher's eviction-loop cadence order of
// magnitude for a background maintenance loop; operators needing a tighter
// or looser cadence override it via WithInterval.
const defaultPollInterval = 30 * time.Second

// bundle is the wire shape returned by the control plane's bundle endpoint:
// the two catalog documents this node loads from disk, verbatim as YAML
// text, plus a version label surfaced only in logs.
type bundle struct {
	Version          string `json:"version"`
	CatalogYAML      string `json:"catalog_yaml"`
	ModelCatalogYAML string `json:"model_catalog_yaml,omitempty"`
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval overrides defaultPollInterval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithHTTPClient overrides the client used to fetch bundles, for tests.
func WithHTTPClient(c *http.Client) PollerOption {
	return func(p *Poller) { p.httpClient = c }
}

// Poller periodically fetches a catalog bundle from bundleURL and, when its
// content changes, writes it to the Store's configured catalog path and
// triggers the same Store.Reload path POST /admin/reload-policies uses.
type Poller struct {
	store      *config.Store
	bundleURL  string
	httpClient *http.Client
	interval   time.Duration

	mu       sync.Mutex
	lastHash string

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewPoller builds a Poller authenticating to bundleURL with an OAuth2
// client-credentials token obtained from cc. store supplies the catalog
// path the fetched bundle is written to and the Reload it triggers.
func NewPoller(store *config.Store, cc clientcredentials.Config, bundleURL string, opts ...PollerOption) *Poller {
	p := &Poller{
		store:      store,
		bundleURL:  bundleURL,
		httpClient: cc.Client(context.Background()),
		interval:   defaultPollInterval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts the poll loop and blocks until Stop is called or ctx is
// cancelled. It fetches once immediately, then on every tick thereafter.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.doneCh)

	if err := p.pollOnce(ctx); err != nil {
		obslog.Error("controlplane: initial poll failed", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				obslog.Error("controlplane: poll failed", "error", err)
			}
		}
	}
}

// Stop signals Run to exit and waits for it to return.
func (p *Poller) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

// pollOnce fetches the bundle, and if its catalog content differs from the
// last one applied, writes it to disk and reloads the Store.
func (p *Poller) pollOnce(ctx context.Context) error {
	b, err := p.fetch(ctx)
	if err != nil {
		return err
	}

	hash := contentHash(b.CatalogYAML, b.ModelCatalogYAML)
	snap := p.store.Current()

	p.mu.Lock()
	unchanged := hash == p.lastHash
	if !unchanged && p.lastHash == "" {
		// Nothing applied yet: a bundle identical to the catalogs already on
		// disk counts as applied and triggers no reload.
		onDisk, errC := os.ReadFile(snap.CatalogPath)
		model, errM := os.ReadFile(snap.ModelPath)
		if errC == nil && string(onDisk) == b.CatalogYAML &&
			(b.ModelCatalogYAML == "" || (errM == nil && string(model) == b.ModelCatalogYAML)) {
			p.lastHash = hash
			unchanged = true
		}
	}
	p.mu.Unlock()
	if unchanged {
		return nil
	}

	if b.ModelCatalogYAML != "" {
		if err := os.WriteFile(snap.ModelPath, []byte(b.ModelCatalogYAML), 0o600); err != nil {
			return ctxerr.New("controlplane", "pollOnce", fmt.Errorf("write model catalog: %w", err))
		}
	}
	if err := os.WriteFile(snap.CatalogPath, []byte(b.CatalogYAML), 0o600); err != nil {
		return ctxerr.New("controlplane", "pollOnce", fmt.Errorf("write catalog: %w", err))
	}

	if err := p.store.Reload(); err != nil {
		return ctxerr.New("controlplane", "pollOnce", fmt.Errorf("reload after bundle fetch: %w", err))
	}

	p.mu.Lock()
	p.lastHash = hash
	p.mu.Unlock()

	obslog.Info("controlplane: applied new policy bundle", "bundle_version", b.Version, "policy_version", p.store.Current().Version)
	return nil
}

func (p *Poller) fetch(ctx context.Context) (*bundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.bundleURL, nil)
	if err != nil {
		return nil, ctxerr.New("controlplane", "fetch", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, ctxerr.New("controlplane", "fetch", ctxerr.ErrBackendUnavailable).WithDetails(map[string]any{"cause": err.Error()})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ctxerr.New("controlplane", "fetch", ctxerr.ErrBackendUnavailable).WithDetails(map[string]any{"status": resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, ctxerr.New("controlplane", "fetch", err)
	}

	var b bundle
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, ctxerr.New("controlplane", "fetch", fmt.Errorf("decode bundle: %w", err))
	}
	if b.CatalogYAML == "" {
		return nil, ctxerr.New("controlplane", "fetch", fmt.Errorf("bundle missing catalog_yaml"))
	}
	return &b, nil
}

func contentHash(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
