package state

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugkit/plugkit/pkg/fetch"
	"github.com/plugkit/plugkit/pkg/spec"
)

type call struct {
	op   string
	args []string
}

type fakeInstaller struct {
	calls      []call
	installErr error
	removeErr  error
}

func (f *fakeInstaller) Install(ctx context.Context, refs []string, root string) (string, error) {
	f.calls = append(f.calls, call{op: "install", args: refs})
	return "", f.installErr
}

func (f *fakeInstaller) Remove(ctx context.Context, names []string, root string) (string, error) {
	f.calls = append(f.calls, call{op: "remove", args: names})
	return "", f.removeErr
}

type fakeFetcher struct {
	urls []string
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, objectURL, dest string) error {
	f.urls = append(f.urls, objectURL)
	if f.err != nil {
		return &fetch.Error{URL: objectURL, Err: f.err}
	}
	return os.WriteFile(dest, []byte("tarball"), 0o644)
}

func newTracker(t *testing.T, inst Installer) (*Tracker, *time.Time) {
	t.Helper()
	now := time.Now()
	tr := &Tracker{
		Root:      filepath.Join(t.TempDir(), "plugins"),
		Strict:    true,
		Installer: inst,
		now:       func() time.Time { return now },
	}
	return tr, &now
}

func TestReconcileFreshInstall(t *testing.T) {
	inst := &fakeInstaller{}
	tr, _ := newTracker(t, inst)

	names, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)

	require.Len(t, inst.calls, 1)
	assert.Equal(t, "install", inst.calls[0].op)
	assert.Equal(t, []string{"a@1.2.3"}, inst.calls[0].args)

	st, mtime := Read(tr.Root)
	assert.False(t, mtime.IsZero())
	assert.Equal(t, spec.Reference("a@1.2.3"), st.PluginsMap["a"])
	assert.NotEmpty(t, st.Hash)
}

func TestReconcileFastPathSkipsEverything(t *testing.T) {
	inst := &fakeInstaller{}
	tr, _ := newTracker(t, inst)

	_, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3"})
	require.NoError(t, err)
	require.Len(t, inst.calls, 1)

	// Within the freshness window even a different (and invalid) desired
	// spec triggers no validation and no installer invocation.
	names, err := tr.Reconcile(context.Background(), spec.PluginSpec{"b": "*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
	assert.Len(t, inst.calls, 1)
}

func TestReconcileDeltaAfterWindow(t *testing.T) {
	inst := &fakeInstaller{}
	tr, now := newTracker(t, inst)

	_, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3"})
	require.NoError(t, err)

	*now = now.Add(3 * time.Minute)

	names, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3", "b": "2.0.0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	// Only b is installed; a is untouched and nothing is removed.
	require.Len(t, inst.calls, 2)
	assert.Equal(t, "install", inst.calls[1].op)
	assert.Equal(t, []string{"b@2.0.0"}, inst.calls[1].args)
}

func TestReconcileUnchangedSpecTouchesOnly(t *testing.T) {
	inst := &fakeInstaller{}
	tr, now := newTracker(t, inst)

	_, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3"})
	require.NoError(t, err)
	_, before := Read(tr.Root)

	*now = now.Add(5 * time.Minute)

	names, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
	assert.Len(t, inst.calls, 1, "unchanged spec must not reinstall")

	_, after := Read(tr.Root)
	assert.True(t, after.After(before), "freshness clock not refreshed")
}

func TestReconcileRemoveBeforeInstall(t *testing.T) {
	inst := &fakeInstaller{}
	tr, now := newTracker(t, inst)

	_, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3", "gone": "3.0.0"})
	require.NoError(t, err)

	*now = now.Add(3 * time.Minute)

	_, err = tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3", "b": "2.0.0"})
	require.NoError(t, err)

	require.Len(t, inst.calls, 3)
	assert.Equal(t, "remove", inst.calls[1].op)
	assert.Equal(t, []string{"gone"}, inst.calls[1].args)
	assert.Equal(t, "install", inst.calls[2].op)
	assert.Equal(t, []string{"b@2.0.0"}, inst.calls[2].args)
}

func TestReconcileVersionChangeReinstalls(t *testing.T) {
	inst := &fakeInstaller{}
	tr, now := newTracker(t, inst)

	_, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3"})
	require.NoError(t, err)

	*now = now.Add(3 * time.Minute)

	_, err = tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.3.0"})
	require.NoError(t, err)

	// The old version is removed before the new one is installed.
	require.Len(t, inst.calls, 3)
	assert.Equal(t, call{op: "remove", args: []string{"a"}}, inst.calls[1])
	assert.Equal(t, call{op: "install", args: []string{"a@1.3.0"}}, inst.calls[2])
}

func TestReconcileVagueVersionRejectedBeforeInstall(t *testing.T) {
	inst := &fakeInstaller{}
	tr, _ := newTracker(t, inst)

	_, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "*"})
	var vague *spec.VagueVersionError
	require.ErrorAs(t, err, &vague)
	assert.Empty(t, inst.calls, "no installer invocation may precede validation failure")
}

func TestReconcileQuietFailureReturnsEmptySet(t *testing.T) {
	inst := &fakeInstaller{installErr: errors.New("npm exploded")}
	tr, _ := newTracker(t, inst)

	names, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3"})
	require.NoError(t, err)
	assert.Empty(t, names, "quiet failure yields no plugins, never a half-set")

	// Nothing was persisted, so the next cycle retries from scratch.
	st, _ := Read(tr.Root)
	assert.Empty(t, st.PluginsMap)
}

func TestReconcileFailFastWrapsAttemptedNames(t *testing.T) {
	inst := &fakeInstaller{installErr: errors.New("npm exploded")}
	tr, _ := newTracker(t, inst)
	tr.FailFast = true

	_, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3", "b": "2.0.0"})
	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, []string{"a", "b"}, applyErr.Attempted)
	assert.ErrorContains(t, applyErr, "npm exploded")
}

func TestReconcileStagesRemoteObjects(t *testing.T) {
	inst := &fakeInstaller{}
	fetcher := &fakeFetcher{}
	tr, _ := newTracker(t, inst)
	tr.Fetcher = fetcher

	_, err := tr.Reconcile(context.Background(), spec.PluginSpec{
		"a":       "1.2.3",
		"private": "s3://bucket/private.tgz",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"s3://bucket/private.tgz"}, fetcher.urls)

	require.Len(t, inst.calls, 1)
	args := inst.calls[0].args
	require.Len(t, args, 2)
	assert.Equal(t, "a@1.2.3", args[0])
	assert.True(t, strings.HasSuffix(args[1], "private.tgz"), "installer arg %q not a staged path", args[1])
	assert.False(t, strings.HasPrefix(args[1], "s3://"), "s3 URL passed to installer unstaged")

	if _, err := os.Stat(args[1]); err != nil {
		t.Errorf("staged file missing: %v", err)
	}
}

func TestReconcileFetchErrorPropagatesDespiteQuietMode(t *testing.T) {
	inst := &fakeInstaller{}
	fetcher := &fakeFetcher{err: errors.New("no such key")}
	tr, _ := newTracker(t, inst)
	tr.Fetcher = fetcher

	_, err := tr.Reconcile(context.Background(), spec.PluginSpec{"private": "s3://bucket/private.tgz"})
	var fetchErr *fetch.Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, inst.calls, "installer must not run after a failed fetch")
}

func TestReadCorruptStateTreatedAsEmpty(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("{not json"), 0o644))

	st, mtime := Read(root)
	assert.Empty(t, st.PluginsMap)
	assert.Equal(t, "", st.Hash)
	assert.True(t, mtime.IsZero())
}

func TestTouchMissingFileIsNoop(t *testing.T) {
	require.NoError(t, Touch(t.TempDir(), time.Now()))
}

func TestReconcileLogsIntegrityHashAtDebug(t *testing.T) {
	inst := &fakeInstaller{}
	tr, _ := newTracker(t, inst)

	buf := &bytes.Buffer{}
	logger := log.New(buf)
	logger.SetLevel(log.DebugLevel)
	tr.Logger = logger

	// The fake installer materializes nothing; lay down a module tree so
	// the post-install hash has something to walk.
	pkgDir := filepath.Join(tr.Root, "node_modules", "a")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "index.js"), []byte("module.exports = 1"), 0o644))

	_, err := tr.Reconcile(context.Background(), spec.PluginSpec{"a": "1.2.3"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "integrity")
	assert.Contains(t, buf.String(), "sha256:")
}
