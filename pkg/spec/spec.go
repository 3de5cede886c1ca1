// Package spec models the desired plugin set and validates each entry into
// an installer-ready reference.
package spec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

const hashPrefix = "sha256:"

// PluginSpec maps a plugin name to its requested version or source.
// Insertion order is irrelevant; all processing sorts names lexically.
type PluginSpec map[string]string

// Reference is the validated, installer-ready form of one spec entry:
// name@exactVersion, an allow-listed URL, or a local path substituted
// after a remote object has been staged.
type Reference string

// IsRemoteObject reports whether the reference denotes an object-storage
// URL that must be fetched to local disk before the installer can use it.
func (r Reference) IsRemoteObject() bool {
	return strings.HasPrefix(string(r), "s3://")
}

// Names returns the plugin names in ascending lexical order.
func (s PluginSpec) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fingerprint computes a stable hash over a validated mapping. Map keys are
// serialized in sorted order, so two specs that differ only in insertion
// order produce the same fingerprint.
func Fingerprint(refs map[string]Reference) string {
	// encoding/json marshals map keys in sorted order, which is exactly
	// the stable serialization the fingerprint needs.
	data, err := json.Marshal(refs)
	if err != nil {
		// A map[string]Reference cannot fail to marshal.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hashPrefix + hex.EncodeToString(sum[:])
}
