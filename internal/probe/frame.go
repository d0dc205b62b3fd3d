// Package probe resolves module and function identity from the Go runtime.
//
// Runtime-specific event representations (stack frames, function values)
// reduce to the narrow Frame capability: a module import path and a function
// name. Everything above this package works in those terms only.
package probe

import (
	"reflect"
	"runtime"
	"strings"
)

// Frame identifies one callable: the import path of its package and its
// name within that package.
type Frame struct {
	Module string
	Func   string
}

// Name returns the qualified "module.func" identifier.
func (f Frame) Name() string {
	if f.Module == "" {
		return f.Func
	}
	return f.Module + "." + f.Func
}

// Caller resolves the frame skip levels above the caller of Caller itself.
// skip 0 is the immediate caller. Returns ok=false when the stack cannot be
// resolved or the function name does not parse.
func Caller(skip int) (Frame, bool) {
	var pcs [1]uintptr
	// +2 skips runtime.Callers and Caller itself.
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return Frame{}, false
	}
	frames := runtime.CallersFrames(pcs[:])
	fr, _ := frames.Next()
	if fr.Function == "" {
		return Frame{}, false
	}
	return parseFunction(fr.Function)
}

// FuncOf resolves the frame of a function value. Returns ok=false when fn is
// not a function or its symbol cannot be resolved.
func FuncOf(fn any) (Frame, bool) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return Frame{}, false
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil || rf.Name() == "" {
		return Frame{}, false
	}
	return parseFunction(rf.Name())
}

// parseFunction splits a runtime symbol name into module and function.
// Symbol shapes: "pkg/path.Func", "pkg/path.(*Recv).Method", "main.main",
// "pkg/path.Func[...]" for generic instantiations. The import path never
// contains a dot after its last slash, so the first dot past the last slash
// separates module from function.
func parseFunction(symbol string) (Frame, bool) {
	name := symbol
	start := 0
	if i := strings.LastIndexByte(symbol, '/'); i >= 0 {
		start = i + 1
		name = symbol[start:]
	}
	dot := strings.IndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return Frame{}, false
	}
	return Frame{
		Module: symbol[:start+dot],
		Func:   name[dot+1:],
	}, true
}
