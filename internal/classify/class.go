// Package classify decides whether a module path belongs to the Go standard
// library or to user code.
//
// The reference set of standard-library import paths is loaded once, at
// Index construction time, from the yaegi symbol tables. An Index is
// immutable after construction and safe for unsynchronized concurrent reads.
package classify

import "fmt"

// Class is the origin classification of a module.
type Class uint8

const (
	// ClassUnknown marks modules whose name cannot be resolved to an import path.
	ClassUnknown Class = iota
	// ClassUser marks modules outside the standard library.
	ClassUser
	// ClassStdlib marks standard-library modules, including their subpackages.
	ClassStdlib
)

// String returns the string representation of Class.
func (c Class) String() string {
	switch c {
	case ClassUnknown:
		return "unknown"
	case ClassUser:
		return "user"
	case ClassStdlib:
		return "stdlib"
	default:
		return "invalid"
	}
}

// ParseClass converts a string to a Class.
func ParseClass(s string) (Class, error) {
	switch s {
	case "unknown", "UNKNOWN":
		return ClassUnknown, nil
	case "user", "USER":
		return ClassUser, nil
	case "stdlib", "STDLIB", "std", "STD":
		return ClassStdlib, nil
	default:
		return ClassUnknown, fmt.Errorf("invalid class: %q (expected: user|stdlib|unknown)", s)
	}
}
