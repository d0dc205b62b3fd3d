package classify_test

import (
	"errors"
	"testing"

	"tracerlib/internal/classify"
)

func testIndex(t *testing.T, opts ...classify.Option) *classify.Index {
	t.Helper()
	opts = append([]classify.Option{classify.WithReferenceSet([]string{
		"fmt",
		"strings",
		"net",
		"net/http",
		"encoding/json",
		"runtime",
	})}, opts...)
	idx, err := classify.NewIndex(opts...)
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	return idx
}

func TestClassLookup(t *testing.T) {
	idx := testIndex(t)

	tests := []struct {
		name   string
		module string
		want   classify.Class
	}{
		{name: "exact stdlib", module: "fmt", want: classify.ClassStdlib},
		{name: "nested stdlib", module: "net/http", want: classify.ClassStdlib},
		{name: "submodule by prefix", module: "net/http/httptest", want: classify.ClassStdlib},
		{name: "submodule of single segment", module: "runtime/debug", want: classify.ClassStdlib},
		{name: "user domain path", module: "github.com/acme/widget", want: classify.ClassUser},
		{name: "user bare path", module: "main", want: classify.ClassUser},
		{name: "user near-stdlib name", module: "fmtx", want: classify.ClassUser},
		{name: "empty", module: "", want: classify.ClassUnknown},
		{name: "doubled slash", module: "net//http", want: classify.ClassUnknown},
		{name: "dot element", module: "./relative", want: classify.ClassUnknown},
		{name: "parent element", module: "../escape", want: classify.ClassUnknown},
		{name: "embedded space", module: "not a path", want: classify.ClassUnknown},
		{name: "trailing slash", module: "fmt/", want: classify.ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := idx.Class(tt.module); got != tt.want {
				t.Fatalf("Class(%q) = %s, want %s", tt.module, got, tt.want)
			}
		})
	}
}

func TestClassDeterminism(t *testing.T) {
	idx := testIndex(t)
	for _, module := range []string{"fmt", "github.com/acme/widget", "bogus path"} {
		first := idx.Class(module)
		second := idx.Class(module)
		if first != second {
			t.Fatalf("Class(%q) unstable: %s then %s", module, first, second)
		}
	}
}

func TestOverrides(t *testing.T) {
	idx := testIndex(t, classify.WithOverrides(map[string]classify.Class{
		"example.com/vendored": classify.ClassStdlib,
		"net/http":             classify.ClassUser,
	}))

	tests := []struct {
		module string
		want   classify.Class
	}{
		{module: "example.com/vendored", want: classify.ClassStdlib},
		{module: "example.com/vendored/sub/pkg", want: classify.ClassStdlib},
		{module: "example.com/other", want: classify.ClassUser},
		{module: "net/http", want: classify.ClassUser},
		{module: "net/http/httptest", want: classify.ClassUser},
		{module: "net", want: classify.ClassStdlib},
	}

	for _, tt := range tests {
		if got := idx.Class(tt.module); got != tt.want {
			t.Fatalf("Class(%q) = %s, want %s", tt.module, got, tt.want)
		}
	}
}

func TestOverrideValidation(t *testing.T) {
	_, err := classify.NewIndex(
		classify.WithReferenceSet([]string{"fmt"}),
		classify.WithOverrides(map[string]classify.Class{"x": classify.ClassUnknown}),
	)
	if err == nil {
		t.Fatal("expected error for ClassUnknown override")
	}

	_, err = classify.NewIndex(
		classify.WithReferenceSet([]string{"fmt"}),
		classify.WithOverrides(map[string]classify.Class{"bad path": classify.ClassUser}),
	)
	if err == nil {
		t.Fatal("expected error for invalid override key")
	}
}

func TestEmptySetFailsFast(t *testing.T) {
	_, err := classify.NewIndex(classify.WithReferenceSet([]string{}))
	if !errors.Is(err, classify.ErrEmptySet) {
		t.Fatalf("expected ErrEmptySet, got %v", err)
	}
}

func TestDefaultIndex(t *testing.T) {
	idx, err := classify.Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if idx.Size() == 0 {
		t.Fatal("default reference set is empty")
	}

	tests := []struct {
		module string
		want   classify.Class
	}{
		{module: "fmt", want: classify.ClassStdlib},
		{module: "encoding/json", want: classify.ClassStdlib},
		{module: "net/http/httputil", want: classify.ClassStdlib},
		{module: "github.com/traefik/yaegi/interp", want: classify.ClassUser},
		{module: "tracerlib/internal/classify", want: classify.ClassUser},
	}
	for _, tt := range tests {
		if got := idx.Class(tt.module); got != tt.want {
			t.Fatalf("Class(%q) = %s, want %s", tt.module, got, tt.want)
		}
	}

	again, err := classify.Default()
	if err != nil {
		t.Fatalf("second Default failed: %v", err)
	}
	if again != idx {
		t.Fatal("Default must return the same shared index")
	}
}

func TestParseClass(t *testing.T) {
	tests := []struct {
		in      string
		want    classify.Class
		wantErr bool
	}{
		{in: "user", want: classify.ClassUser},
		{in: "stdlib", want: classify.ClassStdlib},
		{in: "std", want: classify.ClassStdlib},
		{in: "unknown", want: classify.ClassUnknown},
		{in: "USER", want: classify.ClassUser},
		{in: "junk", wantErr: true},
	}
	for _, tt := range tests {
		got, err := classify.ParseClass(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseClass(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClass(%q) returned error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseClass(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
