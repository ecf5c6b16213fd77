// Package registry materializes the name -> classifier.Classifier mapping
// referenced by pipeline specifications (spec §4.6). Instantiation is lazy
// and cached, with concurrent first-loads of the same name collapsed onto a
// single in-flight call via golang.org/x/sync/singleflight.
package registry

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Skelf-Research/checkstream-sub000/internal/classifier"
	"github.com/Skelf-Research/checkstream-sub000/internal/config"
	"github.com/Skelf-Research/checkstream-sub000/internal/obslog"
	"github.com/Skelf-Research/checkstream-sub000/internal/pipeline"
	"github.com/Skelf-Research/checkstream-sub000/internal/registry/remote"
	"github.com/Skelf-Research/checkstream-sub000/internal/workerpool"
	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// builtinImplementations maps a model's source.implementation_name to a
// constructor, for classifiers backed by a fixed Go implementation rather
// than a loaded model (spec §4.6: "built-in classifiers... registered
// directly, bypassing the loader's ML path").
var builtinImplementations = map[string]func() (classifier.Classifier, error){
	"pii": func() (classifier.Classifier, error) { return classifier.NewBuiltinPII() },
}

// Registry resolves classifier names to live Classifier instances, backed
// by a config.Store snapshot for catalog data.
type Registry struct {
	store   *config.Store
	fetcher remote.Fetcher
	pool    *workerpool.Pool

	mu    sync.RWMutex
	cache map[string]classifier.Classifier

	group singleflight.Group
}

// New builds a Registry reading classifier/model definitions from store's
// current and future snapshots. fetcher may be nil if no remote sources are
// configured; pool bounds concurrent ML classifier compute (spec §5).
func New(store *config.Store, fetcher remote.Fetcher, pool *workerpool.Pool) *Registry {
	return &Registry{
		store:   store,
		fetcher: fetcher,
		pool:    pool,
		cache:   make(map[string]classifier.Classifier),
	}
}

// Lookup adapts Get into the function type internal/pipeline.Executor
// expects. Loads triggered through Lookup use a background context: the
// executor's per-stage deadline governs classification calls, not the
// one-time cost of materializing a classifier, which is dominated by
// Preload in steady-state operation.
func (r *Registry) Lookup() pipeline.Lookup {
	return func(name string) (classifier.Classifier, error) {
		return r.Get(context.Background(), name)
	}
}

// Get returns the cached classifier for name, instantiating it on first
// use. Concurrent callers racing to load the same name block on the same
// singleflight call and receive the same instance and error.
func (r *Registry) Get(ctx context.Context, name string) (classifier.Classifier, error) {
	r.mu.RLock()
	c, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		// Re-check under the singleflight key: another caller may have
		// populated the cache between the RUnlock above and this Do call.
		r.mu.RLock()
		if c, ok := r.cache[name]; ok {
			r.mu.RUnlock()
			return c, nil
		}
		r.mu.RUnlock()

		built, err := r.build(ctx, name)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[name] = built
		r.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(classifier.Classifier), nil
}

// LoadedCount returns the number of classifiers currently materialized in
// the cache, for the admin health endpoint's models_loaded field (spec
// §6.2).
func (r *Registry) LoadedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Preload eagerly instantiates every classifier named in the current
// snapshot's proxy.preload_classifiers list, to avoid first-request latency
// (spec §4.6).
func (r *Registry) Preload(ctx context.Context) error {
	snap := r.store.Current()
	for _, name := range snap.Catalog.Proxy.PreloadClassifiers {
		if _, err := r.Get(ctx, name); err != nil {
			return fmt.Errorf("registry: preload %q: %w", name, err)
		}
		obslog.Info("registry: preloaded classifier", "name", name)
	}
	return nil
}

func (r *Registry) build(ctx context.Context, name string) (classifier.Classifier, error) {
	snap := r.store.Current()
	entry, ok := snap.Catalog.Classifiers[name]
	if !ok {
		return nil, ctxerr.New("registry", "build", ctxerr.ErrNotFound).WithDetails(map[string]any{"classifier": name})
	}

	switch entry.Type {
	case "builtin":
		return r.buildBuiltin(name, entry)
	case "pattern":
		return r.buildPattern(name, entry)
	case "ml":
		return r.buildML(ctx, name, entry, snap)
	default:
		return nil, ctxerr.New("registry", "build", ctxerr.ErrInvalidInput).WithDetails(map[string]any{
			"classifier": name, "type": entry.Type,
		})
	}
}

func (r *Registry) buildBuiltin(name string, entry config.ClassifierEntry) (classifier.Classifier, error) {
	impl := entry.Model
	if impl == "" {
		impl = name
	}
	ctor, ok := builtinImplementations[impl]
	if !ok {
		return nil, ctxerr.New("registry", "buildBuiltin", ctxerr.ErrNotFound).WithDetails(map[string]any{
			"classifier": name, "implementation": impl,
		})
	}
	return ctor()
}

func (r *Registry) buildPattern(name string, entry config.ClassifierEntry) (classifier.Classifier, error) {
	label := entry.Label
	if label == "" {
		label = name
	}
	c, err := classifier.NewPatternClassifier(name, label, entry.Patterns, entry.Score)
	if err != nil {
		return nil, ctxerr.New("registry", "buildPattern", fmt.Errorf("compile patterns: %w", err)).
			WithDetails(map[string]any{"classifier": name})
	}
	return c, nil
}

// buildML resolves the classifier's backing model's source (local path
// existence check, or remote content-addressed fetch), then wraps it in a
// pool-bound classifier.MLClassifier. Actual tensor inference is supplied
// by a deterministic stub keyed on the model's architecture and labels,
// since no ML runtime ships with this proxy (spec §1: model weights and
// inference runtimes are an external collaborator); the loading, caching,
// fetch, and timeout/pool machinery around that stub is real.
func (r *Registry) buildML(ctx context.Context, name string, entry config.ClassifierEntry, snap *config.Snapshot) (classifier.Classifier, error) {
	model, ok := snap.ModelCatalog.Models[entry.Model]
	if !ok {
		return nil, ctxerr.New("registry", "buildML", ctxerr.ErrNotFound).WithDetails(map[string]any{
			"classifier": name, "model": entry.Model,
		})
	}

	if _, err := r.resolveSource(ctx, entry.Model, model.Source); err != nil {
		return nil, ctxerr.New("registry", "buildML", ctxerr.ErrModelUnavailable).WithDetails(map[string]any{
			"classifier": name, "model": entry.Model, "cause": err.Error(),
		})
	}

	tier := classifier.TierB
	if entry.Tier == "C" {
		tier = classifier.TierC
	}

	infer := stubInference(model)
	return classifier.NewMLClassifier(name, tier, infer, r.pool, model.Inference.MaxLength), nil
}

// resolveSource validates that a model's backing artifact is available,
// fetching it first if the source is remote (spec §4.6).
func (r *Registry) resolveSource(ctx context.Context, modelName string, source config.ModelSource) (string, error) {
	switch source.Type {
	case "local":
		if _, err := os.Stat(source.Path); err != nil {
			return "", fmt.Errorf("local path %q: %w", source.Path, err)
		}
		return source.Path, nil
	case "remote":
		if r.fetcher == nil {
			return "", fmt.Errorf("model %q: remote source configured but no fetcher wired", modelName)
		}
		return r.fetcher.Fetch(ctx, source.ID, source.Revision)
	case "builtin":
		return "", nil
	default:
		return "", fmt.Errorf("unsupported source type %q", source.Type)
	}
}

// stubInference returns a deterministic InferenceFunc for model, scoring
// text by a cheap proxy signal (length and punctuation density) mapped
// through the model's declared label set. It exists so the loader,
// pool-bounding, and timeout paths have something real to exercise end to
// end without a bundled ML runtime.
func stubInference(model config.ModelEntry) classifier.InferenceFunc {
	labels := model.Architecture.Labels
	return func(_ context.Context, text string) (float64, string, error) {
		score := heuristicScore(text)
		label := "clean"
		if len(labels) > 1 {
			label = labels[1]
		}
		if score < 0.5 {
			label = "clean"
			if len(labels) > 0 {
				label = labels[0]
			}
		}
		return score, label, nil
	}
}

func heuristicScore(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	bangs := 0
	for _, r := range text {
		if r == '!' || r == '?' {
			bangs++
		}
	}
	score := float64(bangs) / float64(len(text)) * 10
	if score > 1 {
		score = 1
	}
	return score
}
