// Package state tracks what is installed in the plugin root and decides,
// given a new desired set, whether anything needs to change.
package state

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/plugkit/plugkit/pkg/spec"
	"github.com/plugkit/plugkit/pkg/store"
)

// FileName is the persisted state file inside the install root. Its
// modification time doubles as the freshness clock.
const FileName = "plugkit-state.json"

// Installed is the persisted record of the last applied plugin set.
type Installed struct {
	Hash       string                    `json:"hash"`
	PluginsMap map[string]spec.Reference `json:"pluginsMap"`
}

// Names returns the installed plugin names in ascending lexical order.
func (st *Installed) Names() []string {
	names := make([]string, 0, len(st.PluginsMap))
	for name := range st.PluginsMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Read loads the persisted state from root. An unreadable or corrupt file is
// treated as empty state with a zero timestamp, never an error.
func Read(root string) (*Installed, time.Time) {
	rt := store.NewRoot(root)

	info, err := rt.Stat(FileName)
	if err != nil {
		return &Installed{}, time.Time{}
	}

	data, err := rt.ReadFile(FileName)
	if err != nil {
		return &Installed{}, time.Time{}
	}

	st := &Installed{}
	if err := json.Unmarshal(data, st); err != nil {
		return &Installed{}, time.Time{}
	}
	return st, info.ModTime()
}

// Write persists the state to root, resetting the freshness clock via the
// file's new modification time.
func Write(root string, st *Installed) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return store.NewRoot(root).WriteFile(FileName, data, 0o644)
}

// Touch resets the freshness clock without rewriting the file. Missing
// files are ignored: there is nothing to keep fresh.
func Touch(root string, now time.Time) error {
	return store.NewRoot(root).Touch(FileName, now)
}
