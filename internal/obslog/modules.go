package obslog

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ModuleConfig manages per-module logging configuration. Module names use
// dot notation (e.g. "pipeline.executor"); a more specific module overrides
// a less specific one, falling back to a default level.
type ModuleConfig struct {
	mu           sync.RWMutex
	defaultLevel slog.Level
	modules      map[string]slog.Level
}

// NewModuleConfig creates a ModuleConfig with the given default level.
func NewModuleConfig(defaultLevel slog.Level) *ModuleConfig {
	return &ModuleConfig{
		defaultLevel: defaultLevel,
		modules:      make(map[string]slog.Level),
	}
}

// SetModuleLevel sets the log level for a specific dotted module path.
func (m *ModuleConfig) SetModuleLevel(module string, level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[module] = level
}

// SetDefaultLevel sets the fallback log level.
func (m *ModuleConfig) SetDefaultLevel(level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultLevel = level
}

// LevelFor returns the effective level for module, walking up the dotted
// hierarchy (e.g. "pipeline.executor.parallel" -> "pipeline.executor" ->
// "pipeline" -> default) until a configured level is found.
func (m *ModuleConfig) LevelFor(module string) slog.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if level, ok := m.modules[module]; ok {
		return level
	}
	for {
		lastDot := strings.LastIndex(module, ".")
		if lastDot == -1 {
			break
		}
		module = module[:lastDot]
		if level, ok := m.modules[module]; ok {
			return level
		}
	}
	return m.defaultLevel
}

// Modules returns the configured module paths, most specific first.
func (m *ModuleConfig) Modules() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.modules))
	for k := range m.modules {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := strings.Count(keys[i], "."), strings.Count(keys[j], ".")
		if di != dj {
			return di > dj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// globalModuleConfig backs the package-level helpers below.
var globalModuleConfig = NewModuleConfig(slog.LevelInfo)

// SetModuleLevel configures the global module-level override table.
func SetModuleLevel(module string, level slog.Level) {
	globalModuleConfig.SetModuleLevel(module, level)
}

// EnabledFor reports whether level is enabled for the given module, per the
// global override table.
func EnabledFor(module string, level slog.Level) bool {
	return level >= globalModuleConfig.LevelFor(module)
}
