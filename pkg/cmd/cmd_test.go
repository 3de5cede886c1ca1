package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plugkit/plugkit/pkg/spec"
	"github.com/plugkit/plugkit/pkg/state"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()

	tests := map[string]struct {
		content  string
		args     []string
		wantErr  bool
		contains []string
	}{
		"all valid": {
			content:  `{"left-pad": "1.3.0", "lodash": "4.17.21"}`,
			contains: []string{"ok: left-pad -> left-pad@1.3.0", "ok: lodash -> lodash@4.17.21"},
		},
		"range rejected by default": {
			content:  `{"lodash": "^4.0.0"}`,
			wantErr:  true,
			contains: []string{"error: lodash"},
		},
		"range accepted with lenient": {
			content:  `{"lodash": "^4.0.0"}`,
			args:     []string{"--lenient"},
			contains: []string{"ok: lodash -> lodash@^4.0.0"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "plugins.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			args := append([]string{"validate", "--file", path}, tt.args...)
			out, err := execute(t, args...)
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestListCmd(t *testing.T) {
	t.Run("empty state", func(t *testing.T) {
		dir := t.TempDir()
		out, err := execute(t, "list", "--dir", dir)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if !strings.Contains(out, "No plugins installed") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("installed plugins", func(t *testing.T) {
		dir := t.TempDir()
		refs := map[string]spec.Reference{
			"left-pad": "left-pad@1.3.0",
			"lodash":   "lodash@4.17.21",
		}
		installed := &state.Installed{Hash: spec.Fingerprint(refs), PluginsMap: refs}
		if err := state.Write(dir, installed); err != nil {
			t.Fatal(err)
		}

		out, err := execute(t, "list", "--dir", dir)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if !strings.Contains(out, "left-pad  left-pad@1.3.0") {
			t.Errorf("output = %q", out)
		}
		// Sorted order.
		if strings.Index(out, "left-pad") > strings.Index(out, "lodash") {
			t.Errorf("names not sorted:\n%s", out)
		}
	})
}

func TestInstallCmdNothingToInstall(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("PLUGKIT_PLUGINS", "")

	out, err := execute(t, "install")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if !strings.Contains(out, "Nothing to install") {
		t.Errorf("output = %q", out)
	}
}
