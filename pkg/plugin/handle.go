package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/plugkit/plugkit/pkg/manifest"
	"github.com/plugkit/plugkit/pkg/modload"
)

// NoEntryPointError is raised lazily, when a caller accesses a plugin's
// runtime value and no resolvable entry point exists for the requested
// sub-path.
type NoEntryPointError struct {
	Name    string
	SubPath string
}

func (e *NoEntryPointError) Error() string {
	return fmt.Sprintf("plugin %q has no resolvable entry point for %q", e.Name, e.SubPath)
}

// Handle is a lazy accessor for one installed plugin. The manifest and each
// sub-path's runtime value are loaded on first access and memoized; both
// accessors take a force flag that discards the memo first.
//
// A handle does not outlive the resolution cycle whose installation
// directory backs it.
type Handle struct {
	// Name is the plugin name from the desired spec.
	Name string
	// Dir is the package's installed directory.
	Dir string

	loaders modload.Registry

	mu   sync.Mutex
	man  *manifest.Manifest
	data map[string]any
}

func newHandle(name, dir string, loaders modload.Registry) *Handle {
	return &Handle{Name: name, Dir: dir, loaders: loaders}
}

// Manifest returns the plugin's parsed package descriptor, memoized after
// the first successful read. force discards the memo and re-reads from
// disk. A missing descriptor file yields an empty manifest.
func (h *Handle) Manifest(force bool) (*manifest.Manifest, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if force {
		h.man = nil
	}
	if h.man != nil {
		return h.man, nil
	}

	m, err := manifest.Load(h.Dir)
	if err != nil {
		return nil, fmt.Errorf("plugin %q: %w", h.Name, err)
	}
	h.man = m
	return m, nil
}

// Data resolves and loads the runtime value for subPath (the empty string
// is the package root), memoized per sub-path. force evicts that sub-path's
// cache entry before recomputing.
//
// Resolution tries the entry-point resolver in module mode, then commonjs
// mode; the first non-null location wins and is loaded with that system's
// loader. Manifests without an exports field fall back to index.js when
// neither mode matched.
func (h *Handle) Data(ctx context.Context, subPath string, force bool) (any, error) {
	h.mu.Lock()
	if force {
		delete(h.data, subPath)
	}
	if val, ok := h.data[subPath]; ok {
		h.mu.Unlock()
		return val, nil
	}
	h.mu.Unlock()

	m, err := h.Manifest(false)
	if err != nil {
		return nil, err
	}

	location, system, err := h.entryPoint(m, subPath)
	if err != nil {
		return nil, err
	}

	loader := h.loaders[system]
	if loader == nil {
		return nil, fmt.Errorf("plugin %q: no loader registered for module system %q", h.Name, system)
	}
	val, err := loader.Load(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("plugin %q: %w", h.Name, err)
	}

	h.mu.Lock()
	if h.data == nil {
		h.data = make(map[string]any)
	}
	h.data[subPath] = val
	h.mu.Unlock()
	return val, nil
}

func (h *Handle) entryPoint(m *manifest.Manifest, subPath string) (location, system string, err error) {
	for _, sys := range []string{manifest.SystemModule, manifest.SystemCommonJS} {
		res := m.ResolveEntryPoint(subPath, sys)
		if res != nil && !res.Null {
			return filepath.Join(h.Dir, res.Location), sys, nil
		}
	}

	// Packages without an exports map may rely on the platform-default
	// entry file instead of declaring one.
	if m.Exports == nil && (subPath == "" || subPath == ".") {
		fallback := filepath.Join(h.Dir, "index.js")
		if _, statErr := os.Stat(fallback); statErr == nil {
			return fallback, manifest.SystemCommonJS, nil
		}
	}
	return "", "", &NoEntryPointError{Name: h.Name, SubPath: subPath}
}
