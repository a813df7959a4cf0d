// Package registry shares one collector and one detector per resolved
// repository path across all callers in the process.
package registry

import (
	"log/slog"
	"path/filepath"
	"sync"

	"mend/internal/config"
	"mend/internal/diag"
	"mend/internal/runtime"
	"mend/internal/static"
)

type entry struct {
	collector *runtime.Collector
	detector  *static.Detector
}

// Registry is a keyed factory for per-repository instances. All access
// is serialized by one registry-wide lock.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	cfg     *config.Config
}

// New creates a registry using cfg for newly constructed instances.
func New(cfg *config.Config) *Registry {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Registry{
		entries: make(map[string]*entry),
		cfg:     cfg,
	}
}

func canonical(repoPath string) string {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return filepath.Clean(repoPath)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func (r *Registry) get(repoPath string) *entry {
	key := canonical(repoPath)

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{
			collector: runtime.NewCollector(key, runtime.Options{
				MaxErrors:         r.cfg.Collector.MaxErrors,
				MaxStackDepth:     r.cfg.Collector.MaxStackDepth,
				CollectVariables:  r.cfg.Collector.CollectVariables,
				VariableMaxLength: r.cfg.Collector.VariableMaxLength,
			}),
			detector: static.NewDetector(key, r.cfg.Detector, r.cfg.Exclude),
		}
		r.entries[key] = e
		slog.Debug("registered diagnostics instances", "repo", key)
	}
	return e
}

// RuntimeCollector returns the shared collector for the repository,
// constructing it on first use.
func (r *Registry) RuntimeCollector(repoPath string) *runtime.Collector {
	return r.get(repoPath).collector
}

// StaticDetector returns the shared detector for the repository,
// constructing it on first use.
func (r *Registry) StaticDetector(repoPath string) *static.Detector {
	return r.get(repoPath).detector
}

// StartRuntimeCollection starts the repository's collector.
func (r *Registry) StartRuntimeCollection(repoPath string) {
	r.RuntimeCollector(repoPath).StartCollection()
}

// StopRuntimeCollection stops the repository's collector.
func (r *Registry) StopRuntimeCollection(repoPath string) {
	r.RuntimeCollector(repoPath).StopCollection()
}

// RuntimeErrors returns the repository's current runtime records.
func (r *Registry) RuntimeErrors(repoPath string) []diag.RuntimeError {
	return r.RuntimeCollector(repoPath).RuntimeErrors()
}

// ClearRuntimeErrors empties the repository's runtime record sequence.
func (r *Registry) ClearRuntimeErrors(repoPath string) {
	r.RuntimeCollector(repoPath).ClearRuntimeErrors()
}

// ShutdownAll stops every registered collector, restoring the process
// hooks, and empties the registry. Intended for process-wide teardown.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	// Stop outside the registry lock; StopCollection takes per-collector
	// locks of its own.
	for _, e := range entries {
		e.collector.StopCollection()
	}
	slog.Debug("all runtime collectors shut down", "count", len(entries))
}
