// Package modload loads the runtime value exported by a resolved entry-point
// file. The core never probes module systems at load time; the entry-point
// resolver decides the system and the registry supplies the matching loader.
package modload

import "context"

// Loader produces the runtime value exported by the file at path.
//
// Loading executes arbitrary code from the installed package. That is the
// point of a plugin system and an accepted trust boundary, not a defect.
type Loader interface {
	Load(ctx context.Context, path string) (any, error)
}

// Registry maps a module system ("module" or "commonjs") to its loader.
type Registry map[string]Loader

// DefaultRegistry serves both module systems with the embedded JavaScript
// evaluator. Hosts with a native ESM runtime can swap their own loader in
// under the "module" key.
func DefaultRegistry() Registry {
	g := NewGojaLoader()
	return Registry{
		"commonjs": g,
		"module":   g,
	}
}
