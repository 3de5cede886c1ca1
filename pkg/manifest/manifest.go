// Package manifest parses installed package descriptors and resolves which
// on-disk file implements a requested sub-path for a given module system.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the package descriptor inside an installed package directory.
const FileName = "package.json"

// Manifest is the parsed package descriptor. Manifests are immutable once
// parsed; resolution results are memoized per manifest.
type Manifest struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Main    string   `json:"main"`
	Module  string   `json:"module"`
	Type    string   `json:"type"`
	Exports *Exports `json:"exports,omitempty"`

	mu   sync.Mutex
	memo map[string]*Resolution
}

// Load reads and parses the manifest in dir. A missing file yields an empty
// manifest rather than an error, supporting headless packages that are
// loaded by path convention alone.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	return m, nil
}

// Exports models the conditional-exports union: a bare definition, or a
// mapping from sub-path patterns to definitions.
type Exports struct {
	// subpaths holds pattern -> definition when the exports field maps
	// sub-paths; otherwise root holds the single definition for ".".
	subpaths map[string]Definition
	root     Definition
	isMap    bool
}

func (e *Exports) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &keys); err != nil {
			return err
		}
		// An object whose keys start with "." maps sub-paths; any other
		// object is a condition set and counts as the definition for ".".
		if isSubpathMap(keys) {
			e.isMap = true
			e.subpaths = make(map[string]Definition, len(keys))
			for k, v := range keys {
				e.subpaths[k] = Definition{raw: v}
			}
			return nil
		}
	}
	e.root = Definition{raw: append(json.RawMessage(nil), data...)}
	return nil
}

func (e *Exports) MarshalJSON() ([]byte, error) {
	if !e.isMap {
		return e.root.raw, nil
	}
	out := make(map[string]json.RawMessage, len(e.subpaths))
	for k, d := range e.subpaths {
		out[k] = d.raw
	}
	return json.Marshal(out)
}

func isSubpathMap(keys map[string]json.RawMessage) bool {
	for k := range keys {
		return len(k) > 0 && k[0] == '.'
	}
	return false
}

// Definition is one exports entry: a literal path, an explicit null, or an
// object of conditions (import/require/node/default) whose values are
// literal paths or null.
type Definition struct {
	raw json.RawMessage
}

// resolve evaluates the definition for a module system. ok is false when no
// condition applies; a nil location with ok true means the definition is an
// explicit null.
func (d Definition) resolve(system string) (location *string, ok bool) {
	trimmed := bytes.TrimSpace(d.raw)
	if len(trimmed) == 0 {
		return nil, false
	}

	if string(trimmed) == "null" {
		return nil, true
	}

	var literal string
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &literal); err != nil {
			return nil, false
		}
		return &literal, true
	}

	var conditions map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &conditions); err != nil {
		return nil, false
	}

	var order []string
	switch system {
	case SystemModule:
		order = []string{"import", "default"}
	default:
		order = []string{"node", "require", "default"}
	}

	for _, cond := range order {
		raw, present := conditions[cond]
		if !present {
			continue
		}
		inner := bytes.TrimSpace(raw)
		if string(inner) == "null" {
			return nil, true
		}
		var path string
		if err := json.Unmarshal(inner, &path); err != nil {
			continue
		}
		return &path, true
	}
	return nil, false
}
