// Package script runs Go scripts under the yaegi interpreter with the
// standard-library symbol table instrumented, so every stdlib call the
// script makes is recorded as a traced frame.
package script

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"tracerlib/internal/classify"
	"tracerlib/internal/session"
)

// Options configures a Runner.
type Options struct {
	// Packages restricts instrumentation to the named import paths and
	// their subpackages. Empty means instrument the whole table.
	Packages []string

	// Stdout and Stderr receive the script's own output. Defaults to the
	// process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Runner executes scripts inside a tracing session.
type Runner struct {
	ctrl *session.Controller
	idx  *classify.Index
	opts Options
}

// NewRunner creates a runner bound to a controller. The classifier doubles
// as the import whitelist: scripts may import standard-library packages
// only, since nothing else is resolvable inside the interpreter.
func NewRunner(ctrl *session.Controller, opts Options) (*Runner, error) {
	if ctrl == nil {
		ctrl = session.Default()
	}
	idx, err := classify.Default()
	if err != nil {
		return nil, err
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Runner{ctrl: ctrl, idx: idx, opts: opts}, nil
}

// errRunCancelled unwinds the interpreter when the run context expires. It
// is thrown from an instrumented wrapper and surfaces through the
// interpreter's own panic recovery.
var errRunCancelled = errors.New("script: run cancelled")

// Run interprets the script at scriptPath inside a traced region configured
// by cfg. The program executes on a dedicated goroutine: Execute, unlike
// EvalWithContext, runs on the goroutine that calls it, so the synthetic
// main.main frame and every instrumented call land in the same demux lane.
// The finalized session is returned even when the script itself fails; the
// script error, if any, comes back alongside it.
func (r *Runner) Run(ctx context.Context, scriptPath string, cfg session.Config) (*session.Session, error) {
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", scriptPath, err)
	}
	if err := r.checkImports(scriptPath, src); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{
		Stdout: r.opts.Stdout,
		Stderr: r.opts.Stderr,
	})
	if err := i.Use(r.instrumentedSymbols(ctx)); err != nil {
		return nil, fmt.Errorf("script: load stdlib symbols: %w", err)
	}

	var evalErr error
	s, err := r.ctrl.Trace(cfg, func() {
		errc := make(chan error, 1)
		go func() {
			prog, err := i.Compile(string(src))
			if err != nil {
				errc <- err
				return
			}
			r.ctrl.Enter("main", "main")
			_, err = i.Execute(prog)
			if err == nil {
				r.ctrl.Leave("main", "main")
			}
			errc <- err
		}()

		select {
		case err := <-errc:
			if err != nil {
				evalErr = fmt.Errorf("script: %s: %w", scriptPath, err)
			}
		case <-ctx.Done():
			// The run goroutine unwinds at its next instrumented call;
			// anything it emits after the session stops is counted as
			// dropped.
			evalErr = fmt.Errorf("script: %s: %w", scriptPath, ctx.Err())
		}
	})
	if err != nil {
		return nil, err
	}
	return s, evalErr
}

// checkImports parses the script's import clause and rejects anything the
// classifier does not recognize as standard library.
func (r *Runner) checkImports(scriptPath string, src []byte) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, scriptPath, src, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("script: parse %s: %w", scriptPath, err)
	}
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("script: %s: bad import %s", scriptPath, imp.Path.Value)
		}
		if r.idx.Class(p) != classify.ClassStdlib {
			return fmt.Errorf("script: %s imports %q: only standard-library imports can run in the interpreter", scriptPath, p)
		}
	}
	return nil
}

// instrumentedSymbols returns the yaegi stdlib table with every selected
// package-level function replaced by a recording wrapper. Types, constants
// and variables pass through untouched.
func (r *Runner) instrumentedSymbols(ctx context.Context) interp.Exports {
	out := make(interp.Exports, len(stdlib.Symbols))
	for key, symbols := range stdlib.Symbols {
		module := path.Dir(key)
		if !r.selected(module) {
			out[key] = symbols
			continue
		}
		wrapped := make(map[string]reflect.Value, len(symbols))
		for name, v := range symbols {
			if v.Kind() == reflect.Func && v.IsValid() && !v.IsZero() {
				wrapped[name] = r.wrap(ctx, module, name, v)
			} else {
				wrapped[name] = v
			}
		}
		out[key] = wrapped
	}
	return out
}

// selected reports whether a module is in the instrumentation set.
func (r *Runner) selected(module string) bool {
	if len(r.opts.Packages) == 0 {
		return true
	}
	for _, pkg := range r.opts.Packages {
		if module == pkg || strings.HasPrefix(module, pkg+"/") {
			return true
		}
	}
	return false
}

// wrap builds a same-signature function recording entry and exit around fn.
// When the callee panics the unwind skips the Leave, so no return event is
// recorded for it. Each instrumented call is also a cancellation point: once
// the run context expires the wrapper throws instead of calling through,
// unwinding the interpreter.
func (r *Runner) wrap(ctx context.Context, module, name string, fn reflect.Value) reflect.Value {
	t := fn.Type()
	return reflect.MakeFunc(t, func(args []reflect.Value) []reflect.Value {
		if ctx.Err() != nil {
			panic(errRunCancelled)
		}
		r.ctrl.Enter(module, name)
		var out []reflect.Value
		if t.IsVariadic() {
			out = fn.CallSlice(args)
		} else {
			out = fn.Call(args)
		}
		r.ctrl.Leave(module, name)
		return out
	})
}
