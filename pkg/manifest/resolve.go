package manifest

import (
	"sort"
	"strings"
)

// Module systems a package entry point can be resolved for.
const (
	SystemModule   = "module"
	SystemCommonJS = "commonjs"
)

// Resolution is a successful entry-point lookup. A nil return from
// ResolveEntryPoint means no rule matched and the caller may fall through to
// another resolution attempt; a Resolution with Null set means the package
// explicitly refuses to expose the sub-path for that condition, a deliberate
// dead-end.
type Resolution struct {
	// Location is the matched file path relative to the package root;
	// empty when Null is set.
	Location string
	// Null marks an explicit null definition.
	Null bool
	// Cause names the rule that matched, for diagnostics.
	Cause string
}

// ResolveEntryPoint determines which file implements subPath for the given
// module system. Results are memoized on the manifest, which a package
// services for repeated sub-path lookups.
func (m *Manifest) ResolveEntryPoint(subPath, system string) *Resolution {
	key := system + "|" + subPath

	m.mu.Lock()
	if res, ok := m.memo[key]; ok {
		m.mu.Unlock()
		return res
	}
	m.mu.Unlock()

	res := m.resolve(subPath, system)

	m.mu.Lock()
	if m.memo == nil {
		m.memo = make(map[string]*Resolution)
	}
	m.memo[key] = res
	m.mu.Unlock()
	return res
}

func (m *Manifest) resolve(subPath, system string) *Resolution {
	if m.Exports == nil {
		return m.resolveLegacy(subPath, system)
	}
	return m.resolveExports(subPath, system)
}

// resolveLegacy handles manifests without an exports field: the main field
// serves the package's declared module system, and module serves ESM
// importers. Sub-paths are never matched; a nil result lets the caller fall
// back to platform-default lookup.
func (m *Manifest) resolveLegacy(subPath, system string) *Resolution {
	if normalizeSubPath(subPath) != "." {
		return nil
	}

	declared := SystemCommonJS
	if m.Type == "module" {
		declared = SystemModule
	}

	if system == declared && m.Main != "" {
		return &Resolution{Location: m.Main, Cause: "main field"}
	}
	if system == SystemModule && m.Module != "" {
		return &Resolution{Location: m.Module, Cause: "module field"}
	}
	return nil
}

func (m *Manifest) resolveExports(subPath, system string) *Resolution {
	want := normalizeSubPath(subPath)

	if !m.Exports.isMap {
		if want != "." {
			return nil
		}
		return definitionResolution(m.Exports.root, system, "exports root")
	}

	// Longer patterns are tried first so a specific path beats a generic
	// catch-all; equal lengths fall back to lexical order for determinism.
	patterns := make([]string, 0, len(m.Exports.subpaths))
	for p := range m.Exports.subpaths {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if len(patterns[i]) != len(patterns[j]) {
			return len(patterns[i]) > len(patterns[j])
		}
		return patterns[i] < patterns[j]
	})

	for _, pattern := range patterns {
		captured, ok := matchPattern(pattern, want)
		if !ok {
			continue
		}
		res := definitionResolution(m.Exports.subpaths[pattern], system, "exports pattern "+pattern)
		if res == nil {
			continue
		}
		if res.Location != "" && captured != "" {
			res.Location = strings.ReplaceAll(res.Location, "*", captured)
		}
		return res
	}
	return nil
}

func definitionResolution(def Definition, system, cause string) *Resolution {
	location, ok := def.resolve(system)
	if !ok {
		return nil
	}
	if location == nil {
		return &Resolution{Null: true, Cause: cause + " (null)"}
	}
	return &Resolution{Location: *location, Cause: cause}
}

// matchPattern matches a normalized sub-path against an exports pattern:
// exact, prefix ("./x/*"), or prefix+suffix ("./x/*.ts"). The captured text
// replaces "*" in the matched definition's path.
func matchPattern(pattern, subPath string) (captured string, ok bool) {
	if pattern == subPath {
		return "", true
	}

	star := strings.Index(pattern, "*")
	if star < 0 {
		return "", false
	}

	prefix := pattern[:star]
	suffix := pattern[star+1:]
	if len(subPath) < len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(subPath, prefix) || !strings.HasSuffix(subPath, suffix) {
		return "", false
	}
	return subPath[len(prefix) : len(subPath)-len(suffix)], true
}

// normalizeSubPath enforces a leading "./" and strips any trailing "/"; the
// empty sub-path is the package root ".".
func normalizeSubPath(subPath string) string {
	s := strings.TrimSuffix(subPath, "/")
	switch {
	case s == "" || s == ".":
		return "."
	case strings.HasPrefix(s, "./"):
		return s
	default:
		return "./" + s
	}
}
