// Package remote fetches remote classifier model artifacts into a local,
// content-addressed cache, keyed by (identifier, resolved revision), per
// spec §4.6.
package remote

import "context"

// Fetcher resolves a remote model identifier and revision (a semver
// constraint, e.g. "^1.2.0", or an exact version) to a local directory
// holding the fetched artifact. Implementations must be safe for concurrent
// use: the registry collapses concurrent first-loads of the same classifier
// name via singleflight, but two classifiers backed by the same model can
// fetch the same (id, revision) pair at the same time.
type Fetcher interface {
	Fetch(ctx context.Context, identifier, revision string) (localPath string, err error)
}
