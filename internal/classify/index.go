package classify

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/traefik/yaegi/stdlib"
)

// ErrEmptySet indicates that no standard-library reference set could be
// loaded. Construction fails fast instead of degrading every lookup to
// ClassUnknown.
var ErrEmptySet = errors.New("classify: empty standard library reference set")

// Index answers classification queries against a fixed standard-library
// reference set. The zero value is not usable; construct with NewIndex.
//
// All fields are written once during construction and never mutated, so an
// Index may be shared across goroutines without locking.
type Index struct {
	exact     map[string]struct{} // full stdlib import paths
	topLevel  map[string]struct{} // first path segments of stdlib paths
	overrides map[string]Class    // forced classes, keyed by module path
}

type options struct {
	paths     []string
	overrides map[string]Class
}

// Option configures Index construction.
type Option func(*options)

// WithOverrides forces the named modules (and their subpaths) to the given
// class regardless of the reference set. Forcing ClassUnknown is rejected.
func WithOverrides(ov map[string]Class) Option {
	return func(o *options) {
		if o.overrides == nil {
			o.overrides = make(map[string]Class, len(ov))
		}
		for k, v := range ov {
			o.overrides[k] = v
		}
	}
}

// WithReferenceSet replaces the default yaegi-derived reference set with an
// explicit list of import paths. Intended for tests.
func WithReferenceSet(paths []string) Option {
	return func(o *options) { o.paths = paths }
}

// NewIndex builds a classification index. The standard-library set comes
// from the yaegi symbol tables unless WithReferenceSet is given. Returns
// ErrEmptySet when the set comes up empty.
func NewIndex(opts ...Option) (*Index, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	paths := o.paths
	if paths == nil {
		paths = stdlibPaths()
	}
	if len(paths) == 0 {
		return nil, ErrEmptySet
	}

	idx := &Index{
		exact:    make(map[string]struct{}, len(paths)),
		topLevel: make(map[string]struct{}, 64),
	}
	for _, p := range paths {
		idx.exact[p] = struct{}{}
		idx.topLevel[firstSegment(p)] = struct{}{}
	}

	if len(o.overrides) > 0 {
		idx.overrides = make(map[string]Class, len(o.overrides))
		for mod, class := range o.overrides {
			if class != ClassUser && class != ClassStdlib {
				return nil, fmt.Errorf("classify: override for %q must be user or stdlib, got %s", mod, class)
			}
			if !ValidImportPath(mod) {
				return nil, fmt.Errorf("classify: override key %q is not a valid import path", mod)
			}
			idx.overrides[mod] = class
		}
	}

	return idx, nil
}

var defaultIndex = sync.OnceValues(func() (*Index, error) {
	return NewIndex()
})

// Default returns the process-wide index over the built-in reference set.
// It is constructed on first use and shared read-only afterwards.
func Default() (*Index, error) {
	return defaultIndex()
}

// WithOverridesApplied derives an index with the given override rules,
// sharing the already-loaded reference set with the receiver. The receiver
// is not modified.
func (idx *Index) WithOverridesApplied(ov map[string]Class) (*Index, error) {
	if len(ov) == 0 {
		return idx, nil
	}
	derived := &Index{
		exact:     idx.exact,
		topLevel:  idx.topLevel,
		overrides: make(map[string]Class, len(ov)+len(idx.overrides)),
	}
	for mod, class := range idx.overrides {
		derived.overrides[mod] = class
	}
	for mod, class := range ov {
		if class != ClassUser && class != ClassStdlib {
			return nil, fmt.Errorf("classify: override for %q must be user or stdlib, got %s", mod, class)
		}
		if !ValidImportPath(mod) {
			return nil, fmt.Errorf("classify: override key %q is not a valid import path", mod)
		}
		derived.overrides[mod] = class
	}
	return derived, nil
}

// Class classifies a module path. The result is a pure function of the path
// and the sets configured at construction time.
func (idx *Index) Class(module string) Class {
	if !ValidImportPath(module) {
		return ClassUnknown
	}
	if idx.overrides != nil {
		for probe := module; ; {
			if class, ok := idx.overrides[probe]; ok {
				return class
			}
			i := strings.LastIndexByte(probe, '/')
			if i < 0 {
				break
			}
			probe = probe[:i]
		}
	}
	if _, ok := idx.exact[module]; ok {
		return ClassStdlib
	}
	if _, ok := idx.topLevel[firstSegment(module)]; ok {
		return ClassStdlib
	}
	return ClassUser
}

// Size returns the number of import paths in the reference set.
func (idx *Index) Size() int {
	return len(idx.exact)
}

// stdlibPaths derives the standard-library import paths from the yaegi
// symbol tables. Table keys have the package name appended after the import
// path ("net/http/http"), so the last segment is stripped. Keys whose first
// segment is domain-qualified (yaegi's own self-registration) are skipped.
func stdlibPaths() []string {
	seen := make(map[string]struct{}, len(stdlib.Symbols))
	for key := range stdlib.Symbols {
		dir := path.Dir(key)
		if dir == "." || dir == "/" {
			continue
		}
		if strings.ContainsRune(firstSegment(dir), '.') {
			continue
		}
		seen[dir] = struct{}{}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func firstSegment(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// ValidImportPath reports whether s is plausible as a Go import path:
// non-empty, slash-separated non-empty elements, no "." or ".." elements,
// and no whitespace, control, or quoting characters.
func ValidImportPath(s string) bool {
	if s == "" || len(s) > 1024 {
		return false
	}
	for _, elem := range strings.Split(s, "/") {
		if elem == "" || elem == "." || elem == ".." {
			return false
		}
	}
	for _, r := range s {
		if r <= ' ' || r == 0x7f {
			return false
		}
		switch r {
		case '"', '\'', '`', '\\':
			return false
		}
	}
	return true
}
