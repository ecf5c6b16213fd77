package config

import (
	"sync/atomic"

	"github.com/Skelf-Research/checkstream-sub000/internal/obslog"
)

// Snapshot is the fully-loaded, validated configuration in effect at a
// point in time: a model catalog plus a classifier+pipeline catalog (spec
// §4.6). Store holds the current Snapshot behind an atomic pointer so that
// in-flight requests always see a consistent pair and a reload never
// observes a torn read (spec §5, "Global mutable config").
type Snapshot struct {
	ModelCatalog *ModelCatalog
	Catalog      *Catalog
	ModelPath    string
	CatalogPath  string
	// Version increments on every successful Reload (starting at 1 for the
	// snapshot NewStore builds), giving the admin surface a policy_version
	// to report and compare (spec §6.2).
	Version uint64
}

// Store holds the live Snapshot, swapped atomically by Reload.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore loads modelPath and catalogPath and returns a Store holding the
// resulting Snapshot.
func NewStore(modelPath, catalogPath string) (*Store, error) {
	s := &Store{}
	if err := s.reloadFrom(modelPath, catalogPath); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the Snapshot in effect right now. Safe for concurrent use
// with Reload.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload re-reads and re-validates both catalogs from the paths the Store
// was last constructed or reloaded with, and swaps them in atomically only
// if both load cleanly — a failed reload leaves the previous Snapshot live
// (spec §4.6: "invalid policy changes must never take down a running
// proxy").
func (s *Store) Reload() error {
	cur := s.current.Load()
	return s.reloadFrom(cur.ModelPath, cur.CatalogPath)
}

func (s *Store) reloadFrom(modelPath, catalogPath string) error {
	mc, err := LoadModelCatalog(modelPath)
	if err != nil {
		obslog.Error("config: reload: model catalog invalid, keeping previous snapshot", "error", err, "path", modelPath)
		return err
	}
	c, err := LoadCatalog(catalogPath)
	if err != nil {
		obslog.Error("config: reload: catalog invalid, keeping previous snapshot", "error", err, "path", catalogPath)
		return err
	}

	var version uint64 = 1
	if prev := s.current.Load(); prev != nil {
		version = prev.Version + 1
	}

	s.current.Store(&Snapshot{
		ModelCatalog: mc,
		Catalog:      c,
		ModelPath:    modelPath,
		CatalogPath:  catalogPath,
		Version:      version,
	})
	obslog.Info("config: reload: snapshot swapped", "model_path", modelPath, "catalog_path", catalogPath, "version", version)
	return nil
}
