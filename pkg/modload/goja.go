package modload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// DefaultEvalTimeout bounds top-level evaluation of a loaded file.
const DefaultEvalTimeout = 30 * time.Second

// GojaLoader evaluates JavaScript entry points in an embedded interpreter.
// Each Load gets a fresh runtime; files required from the entry point share
// that runtime and are evaluated once.
type GojaLoader struct {
	// Timeout bounds one Load call; zero means DefaultEvalTimeout.
	Timeout time.Duration
	// Globals are installed on the runtime before evaluation, exposing
	// host utilities to the loaded code.
	Globals map[string]any
}

var _ Loader = &GojaLoader{}

func NewGojaLoader() *GojaLoader {
	return &GojaLoader{}
}

func (l *GojaLoader) Load(ctx context.Context, path string) (any, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vm := goja.New()
	for name, val := range l.Globals {
		if err := vm.Set(name, val); err != nil {
			return nil, fmt.Errorf("installing global %q: %w", name, err)
		}
	}

	// Interrupt the interpreter when the context ends; the evaluation
	// goroutine below then fails with an interrupt error.
	evalDone := make(chan struct{})
	defer close(evalDone)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-evalDone:
		}
	}()

	modules := make(map[string]*goja.Object)
	exports, err := evaluate(vm, modules, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("loading %s: %w", path, ctxErr)
		}
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return exports.Export(), nil
}

// evaluate runs one file with CommonJS module/exports/require bindings and
// returns its exports object. modules memoizes per-file results so cycles
// and repeated requires resolve to the same object.
func evaluate(vm *goja.Runtime, modules map[string]*goja.Object, path string) (goja.Value, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if mod, ok := modules[abs]; ok {
		return mod.Get("exports"), nil
	}

	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	wrapped := "(function(module, exports, require, __filename, __dirname) {\n" + string(src) + "\n})"
	fnVal, err := vm.RunScript(abs, wrapped)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("wrapper for %s is not a function", abs)
	}

	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	// Registered before evaluation so require cycles see the partial
	// exports instead of recursing forever.
	modules[abs] = module

	require := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		specifier := call.Argument(0).String()
		resolved, err := resolveRequire(filepath.Dir(abs), specifier)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		val, err := evaluate(vm, modules, resolved)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return val
	})

	if _, err := fn(goja.Undefined(), module, exports, require, vm.ToValue(abs), vm.ToValue(filepath.Dir(abs))); err != nil {
		delete(modules, abs)
		return nil, err
	}
	return module.Get("exports"), nil
}

// resolveRequire handles relative requires only; bare specifiers would need
// full node_modules resolution, which installed plugins get from the
// entry-point resolver instead.
func resolveRequire(baseDir, specifier string) (string, error) {
	if !strings.HasPrefix(specifier, "./") && !strings.HasPrefix(specifier, "../") {
		return "", fmt.Errorf("cannot require %q: only relative specifiers are supported", specifier)
	}

	base := filepath.Join(baseDir, specifier)
	for _, candidate := range []string{base, base + ".js", filepath.Join(base, "index.js")} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("cannot require %q: no file at %s", specifier, base)
}
