// Package store provides filesystem helpers for the plugin install root and
// the scratch area used to stage remote objects before installation.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	dirPerm    = 0o755
	hashPrefix = "sha256:"

	// DefaultRoot is the well-known install root inside ephemeral function
	// storage.
	DefaultRoot = "/tmp/plugkit"
)

// Root is the plugin install directory. All file arguments are paths
// relative to it.
type Root struct {
	dir string
}

func NewRoot(dir string) *Root {
	return &Root{dir: dir}
}

// Path returns the absolute path of name under the root.
func (r *Root) Path(name string) string {
	return filepath.Join(r.dir, name)
}

// Ensure creates the root directory, including parents.
func (r *Root) Ensure() error {
	return os.MkdirAll(r.dir, dirPerm)
}

func (r *Root) Stat(name string) (os.FileInfo, error) {
	return os.Stat(r.Path(name))
}

func (r *Root) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(r.Path(name))
}

func (r *Root) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(r.Path(name), data, perm)
}

// Touch sets the modification time of name. A missing file is not an error.
func (r *Root) Touch(name string, now time.Time) error {
	err := os.Chtimes(r.Path(name), now, now)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// HashDir computes a "sha256:<hex>" integrity hash over all file contents
// under the named subdirectory, walking recursively in sorted order for
// determinism.
func (r *Root) HashDir(name string) (string, error) {
	dir := r.Path(name)
	h := sha256.New()

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return "", err
		}
		h.Write([]byte(f))
		h.Write(data)
	}

	return hashPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Scratch is a lazily-created staging directory for remote object downloads.
// It is owned by one reconcile call; Cleanup removes it, and anything left
// behind is reclaimed with the ephemeral filesystem.
type Scratch struct {
	parent string

	once sync.Once
	dir  string
	err  error
}

// NewScratch returns a scratch handle whose directory is created under
// parent on first use.
func NewScratch(parent string) *Scratch {
	return &Scratch{parent: parent}
}

// Dir creates the scratch directory on first call and returns its path.
func (sc *Scratch) Dir() (string, error) {
	sc.once.Do(func() {
		if err := os.MkdirAll(sc.parent, dirPerm); err != nil {
			sc.err = err
			return
		}
		sc.dir, sc.err = os.MkdirTemp(sc.parent, "stage-")
	})
	return sc.dir, sc.err
}

// Cleanup removes the scratch directory if it was created.
func (sc *Scratch) Cleanup() {
	if sc.dir != "" {
		os.RemoveAll(sc.dir)
	}
}
