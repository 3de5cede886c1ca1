package state

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/plugkit/plugkit/pkg/fetch"
	"github.com/plugkit/plugkit/pkg/spec"
	"github.com/plugkit/plugkit/pkg/store"
)

// DefaultMaxAge is the freshness window during which a prior resolution is
// trusted without re-validation.
const DefaultMaxAge = 2 * time.Minute

// Installer applies install and remove operations against an install root.
type Installer interface {
	Install(ctx context.Context, refs []string, root string) (string, error)
	Remove(ctx context.Context, names []string, root string) (string, error)
}

// ApplyError wraps an installer or persistence failure with the names the
// reconcile attempted to install.
type ApplyError struct {
	Attempted []string
	Err       error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("applying plugin set [%s]: %v", strings.Join(e.Attempted, ", "), e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Tracker reconciles a desired plugin set against the install root.
//
// There is no inter-process locking on the root: concurrent invocations
// racing on the same warm filesystem are an accepted limitation, narrowed
// but not eliminated by the freshness window.
type Tracker struct {
	Root   string
	MaxAge time.Duration
	// Strict rejects range and partial version specifiers.
	Strict bool
	// FailFast surfaces install failures instead of logging them and
	// returning an empty plugin set. Note the quiet default yields zero
	// plugins even when some packages installed before the failure; a
	// half-set is never reported.
	FailFast bool
	// FetchWidth bounds concurrent remote-object downloads.
	FetchWidth int

	Installer Installer
	Fetcher   fetch.Fetcher
	Logger    *log.Logger

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

// Reconcile brings the install root in line with the desired spec and
// returns the installed plugin names in lexical order.
//
// Within the freshness window the persisted name list is returned without
// validation or installer invocations. Otherwise the spec is validated,
// fingerprinted against the persisted state, and only the delta is applied:
// removals first (freeing bounded ephemeral storage before adding to it),
// then installs, with any s3: references staged to a scratch directory
// beforehand. New state is persisted only on full success.
func (t *Tracker) Reconcile(ctx context.Context, desired spec.PluginSpec) ([]string, error) {
	st, lastChecked := Read(t.Root)

	maxAge := t.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if !lastChecked.IsZero() && t.clock().Sub(lastChecked) < maxAge {
		return st.Names(), nil
	}

	refs, err := spec.ValidateSpec(desired, t.Strict)
	if err != nil {
		// Validation errors indicate a caller bug and are always
		// surfaced, quiet mode or not.
		return nil, err
	}

	fingerprint := spec.Fingerprint(refs)
	if fingerprint == st.Hash {
		if err := Touch(t.Root, t.clock()); err != nil {
			return nil, fmt.Errorf("refreshing state timestamp: %w", err)
		}
		return st.Names(), nil
	}

	removes, installs := delta(st.PluginsMap, refs)
	if len(removes) == 0 && len(installs) == 0 {
		if err := Touch(t.Root, t.clock()); err != nil {
			return nil, fmt.Errorf("refreshing state timestamp: %w", err)
		}
		return names(refs), nil
	}

	if err := t.apply(ctx, st, refs, removes, installs); err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			// A missing dependency object cannot be silently skipped.
			return nil, err
		}
		if !t.FailFast {
			t.logger().Error("plugin install failed, returning no plugins",
				"attempted", installs, "err", err)
			return []string{}, nil
		}
		return nil, &ApplyError{Attempted: installs, Err: err}
	}

	return names(refs), nil
}

func (t *Tracker) apply(ctx context.Context, st *Installed, refs map[string]spec.Reference, removes, installs []string) error {
	root := store.NewRoot(t.Root)
	if err := root.Ensure(); err != nil {
		return fmt.Errorf("creating install root: %w", err)
	}

	// Removals run to completion before installs so obsolete packages free
	// space under the storage cap first.
	if len(removes) > 0 {
		if _, err := t.Installer.Remove(ctx, removes, t.Root); err != nil {
			return err
		}
	}

	if len(installs) > 0 {
		args, err := t.stageRemoteObjects(ctx, refs, installs)
		if err != nil {
			return err
		}
		if _, err := t.Installer.Install(ctx, args, t.Root); err != nil {
			return err
		}
	}

	if err := Write(t.Root, &Installed{Hash: spec.Fingerprint(refs), PluginsMap: refs}); err != nil {
		return fmt.Errorf("persisting state: %w", err)
	}

	// Hashing the whole tree is too costly for the hot path, so the
	// integrity hash is only computed when debug logging is on.
	if lg := t.logger(); lg.GetLevel() <= log.DebugLevel {
		if hash, err := root.HashDir("node_modules"); err == nil {
			lg.Debug("install root updated", "integrity", hash)
		}
	}
	return nil
}

// stageRemoteObjects downloads every s3: reference in the install set to a
// scratch directory and returns the installer arguments with local paths
// substituted. All fetches complete before the installer runs.
func (t *Tracker) stageRemoteObjects(ctx context.Context, refs map[string]spec.Reference, installs []string) ([]string, error) {
	args := make([]string, len(installs))
	var jobs []fetch.Job

	scratch := store.NewScratch(t.Root + "-stage")
	for i, name := range installs {
		ref := refs[name]
		if !ref.IsRemoteObject() {
			args[i] = string(ref)
			continue
		}
		dir, err := scratch.Dir()
		if err != nil {
			return nil, fmt.Errorf("creating scratch dir: %w", err)
		}
		dest := filepath.Join(dir, strings.ReplaceAll(name, "/", "-")+".tgz")
		jobs = append(jobs, fetch.Job{URL: string(ref), Dest: dest})
		args[i] = dest
	}

	if len(jobs) > 0 {
		if t.Fetcher == nil {
			return nil, fmt.Errorf("spec contains s3: references but no fetcher is configured")
		}
		if err := fetch.All(ctx, t.Fetcher, jobs, t.FetchWidth); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// delta computes the remove and install sets between the persisted mapping
// and the new desired mapping. Names whose reference is unchanged are left
// untouched. Both slices come back sorted.
func delta(old, desired map[string]spec.Reference) (removes, installs []string) {
	for name, oldRef := range old {
		if newRef, ok := desired[name]; !ok || newRef != oldRef {
			removes = append(removes, name)
		}
	}
	for name, newRef := range desired {
		if oldRef, ok := old[name]; !ok || oldRef != newRef {
			installs = append(installs, name)
		}
	}
	sort.Strings(removes)
	sort.Strings(installs)
	return removes, installs
}

func names(refs map[string]spec.Reference) []string {
	out := make([]string, 0, len(refs))
	for name := range refs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *Tracker) logger() *log.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return log.Default()
}
