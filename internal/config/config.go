// Package config discovers and parses tracerlib.toml project files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"tracerlib/internal/classify"
	"tracerlib/internal/session"
	"tracerlib/internal/trace"
)

// FileName is the manifest file looked up by Discover.
const FileName = "tracerlib.toml"

// File is the parsed shape of tracerlib.toml. All sections are optional;
// command-line flags take precedence over file values.
type File struct {
	Trace struct {
		Depth     int    `toml:"depth"`
		Filter    string `toml:"filter"`
		Heartbeat string `toml:"heartbeat"`
	} `toml:"trace"`

	Classify struct {
		User []string `toml:"user"`
		Std  []string `toml:"std"`
	} `toml:"classify"`

	Output struct {
		Format string `toml:"format"`
		Stream string `toml:"stream"`
	} `toml:"output"`
}

// Find walks up from startDir to locate tracerlib.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load parses and validates one manifest file.
func Load(path string) (*File, error) {
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if err := f.validate(path); err != nil {
		return nil, err
	}
	return &f, nil
}

// Discover finds and loads the nearest manifest above startDir. Absence is
// not an error: it returns a zero-valued File.
func Discover(startDir string) (*File, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &File{}, nil
	}
	return Load(path)
}

func (f *File) validate(path string) error {
	if f.Trace.Depth < 0 {
		return fmt.Errorf("%s: trace.depth must be non-negative, got %d", path, f.Trace.Depth)
	}
	if _, err := session.ParseFilter(f.Trace.Filter); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := f.HeartbeatInterval(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if f.Output.Format != "" {
		if _, err := trace.ParseFormat(f.Output.Format); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	for _, mod := range append(append([]string{}, f.Classify.User...), f.Classify.Std...) {
		if !classify.ValidImportPath(mod) {
			return fmt.Errorf("%s: %q is not a valid import path", path, mod)
		}
	}
	return nil
}

// Filter returns the configured inclusion filter.
func (f *File) Filter() session.Filter {
	filter, _ := session.ParseFilter(f.Trace.Filter)
	return filter
}

// Format returns the configured output format, defaulting to text.
func (f *File) Format() trace.Format {
	if f.Output.Format == "" {
		return trace.FormatText
	}
	format, _ := trace.ParseFormat(f.Output.Format)
	return format
}

// HeartbeatInterval parses the configured heartbeat duration; empty means
// disabled.
func (f *File) HeartbeatInterval() (time.Duration, error) {
	if f.Trace.Heartbeat == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(f.Trace.Heartbeat)
	if err != nil {
		return 0, fmt.Errorf("invalid heartbeat interval %q: %w", f.Trace.Heartbeat, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("heartbeat interval must be non-negative, got %s", d)
	}
	return d, nil
}

// Overrides converts the [classify] lists to forced classification rules.
func (f *File) Overrides() map[string]classify.Class {
	if len(f.Classify.User) == 0 && len(f.Classify.Std) == 0 {
		return nil
	}
	ov := make(map[string]classify.Class, len(f.Classify.User)+len(f.Classify.Std))
	for _, mod := range f.Classify.User {
		ov[mod] = classify.ClassUser
	}
	for _, mod := range f.Classify.Std {
		ov[mod] = classify.ClassStdlib
	}
	return ov
}
