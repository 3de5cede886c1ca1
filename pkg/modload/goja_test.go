package modload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadModuleExports(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "index.js", `
		module.exports = { name: "greeter", greet: function(who) { return "hello " + who; } };
	`)

	val, err := NewGojaLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	exported, ok := val.(map[string]any)
	if !ok {
		t.Fatalf("exported value is %T, want map", val)
	}
	if exported["name"] != "greeter" {
		t.Errorf("name = %v, want greeter", exported["name"])
	}
	if exported["greet"] == nil {
		t.Error("greet function missing from exports")
	}
}

func TestLoadExportsShorthand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "index.js", `exports.answer = 42;`)

	val, err := NewGojaLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	exported := val.(map[string]any)
	if exported["answer"] != int64(42) {
		t.Errorf("answer = %v (%T), want 42", exported["answer"], exported["answer"])
	}
}

func TestLoadRelativeRequire(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib/helper.js", `module.exports = { suffix: "!" };`)
	path := writeFile(t, dir, "index.js", `
		var helper = require("./lib/helper");
		module.exports = "done" + helper.suffix;
	`)

	val, err := NewGojaLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if val != "done!" {
		t.Errorf("exported value = %v, want done!", val)
	}
}

func TestLoadBareRequireRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "index.js", `require("fs");`)

	_, err := NewGojaLoader().Load(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for bare specifier require")
	}
	if !strings.Contains(err.Error(), "relative") {
		t.Errorf("error = %v, want mention of relative specifiers", err)
	}
}

func TestLoadSyntaxError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.js", `function {`)

	if _, err := NewGojaLoader().Load(context.Background(), path); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestLoadGlobals(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "index.js", `module.exports = host.region;`)

	l := NewGojaLoader()
	l.Globals = map[string]any{"host": map[string]any{"region": "us-east-1"}}

	val, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if val != "us-east-1" {
		t.Errorf("exported value = %v, want us-east-1", val)
	}
}

func TestLoadInterruptOnTimeout(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "spin.js", `while (true) {}`)

	l := NewGojaLoader()
	l.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := l.Load(context.Background(), path)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("interrupt took %v, expected prompt cancellation", elapsed)
	}
}

func TestDefaultRegistryCoversBothSystems(t *testing.T) {
	reg := DefaultRegistry()
	for _, system := range []string{"module", "commonjs"} {
		if reg[system] == nil {
			t.Errorf("no loader registered for %q", system)
		}
	}
}
