// Package plugin is the public entry point: it reconciles a desired plugin
// set against ephemeral local storage and exposes each installed plugin
// through a lazy, memoized handle.
package plugin

import (
	"context"
	"path/filepath"

	"github.com/plugkit/plugkit/pkg/spec"
	"github.com/plugkit/plugkit/pkg/state"
)

// Load reconciles the desired plugin set and returns a handle per installed
// plugin. Within the freshness window a warm invocation returns handles for
// the previously installed set without touching the network or spawning the
// installer.
func Load(ctx context.Context, desired spec.PluginSpec, opts Options) (map[string]*Handle, error) {
	opts = opts.withDefaults()

	tracker := &state.Tracker{
		Root:       opts.Dir,
		MaxAge:     opts.MaxAge,
		Strict:     !opts.LenientVersions,
		FailFast:   opts.FailFast,
		FetchWidth: opts.FetchWidth,
		Installer:  opts.Installer,
		Fetcher:    opts.Fetcher,
		Logger:     opts.Logger,
	}

	names, err := tracker.Reconcile(ctx, desired)
	if err != nil {
		return nil, err
	}

	handles := make(map[string]*Handle, len(names))
	for _, name := range names {
		dir := filepath.Join(opts.Dir, "node_modules", name)
		handles[name] = newHandle(name, dir, opts.Loaders)
	}
	return handles, nil
}
