// Package store persists finalized trace sessions as msgpack files.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"tracerlib/internal/classify"
	"tracerlib/internal/session"
	"tracerlib/internal/trace"
)

// Current schema version - increment when filePayload format changes.
const schemaVersion uint16 = 1

// Ext is the conventional file extension for saved sessions.
const Ext = ".trace"

// filePayload is the on-disk shape of one session.
type filePayload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	ID        string
	StartedAt time.Time
	StoppedAt time.Time
	Panicked  bool

	// Recording configuration snapshot
	MaxDepth  int
	Filter    uint8
	Overrides map[string]uint8

	// Suppression counters (stream anomalies are recomputed on load)
	Dropped  uint64
	Filtered uint64

	Events []eventPayload
}

type eventPayload struct {
	Seq    uint64
	Time   time.Time
	Kind   uint8
	Module string
	Func   string
	Depth  int
	Gid    uint64
	Class  uint8
	Detail string
}

// Save writes a finalized session to path. The write goes through a temp
// file in the target directory followed by an atomic rename.
func Save(path string, s *session.Session) error {
	snap, err := s.Snapshot()
	if err != nil {
		return fmt.Errorf("store: snapshot %s: %w", path, err)
	}
	payload := toPayload(snap)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp in %s: %w", dir, err)
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(payload); err != nil {
		_ = f.Close()
		return fmt.Errorf("store: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: close temp for %s: %w", path, err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("store: rename into %s: %w", path, err)
	}
	return nil
}

// Load reads a session file and rebuilds its call forest. Files written
// under a different schema version are rejected.
func Load(path string) (*session.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var payload filePayload
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	if payload.Schema != schemaVersion {
		return nil, fmt.Errorf("store: %s has schema %d, this build reads %d", path, payload.Schema, schemaVersion)
	}

	return session.Restore(fromPayload(payload)), nil
}

func toPayload(snap session.Snapshot) filePayload {
	p := filePayload{
		Schema:    schemaVersion,
		ID:        snap.ID,
		StartedAt: snap.StartedAt,
		StoppedAt: snap.StoppedAt,
		Panicked:  snap.Panicked,
		MaxDepth:  snap.MaxDepth,
		Filter:    uint8(snap.Filter),
		Dropped:   snap.Dropped,
		Filtered:  snap.Filtered,
	}
	if len(snap.Overrides) > 0 {
		p.Overrides = make(map[string]uint8, len(snap.Overrides))
		for mod, class := range snap.Overrides {
			p.Overrides[mod] = uint8(class)
		}
	}
	p.Events = make([]eventPayload, len(snap.Events))
	for i, ev := range snap.Events {
		p.Events[i] = eventPayload{
			Seq:    ev.Seq,
			Time:   ev.Time,
			Kind:   uint8(ev.Kind),
			Module: ev.Module,
			Func:   ev.Func,
			Depth:  ev.Depth,
			Gid:    ev.Gid,
			Class:  uint8(ev.Class),
			Detail: ev.Detail,
		}
	}
	return p
}

func fromPayload(p filePayload) session.Snapshot {
	snap := session.Snapshot{
		ID:        p.ID,
		StartedAt: p.StartedAt,
		StoppedAt: p.StoppedAt,
		Panicked:  p.Panicked,
		MaxDepth:  p.MaxDepth,
		Filter:    session.Filter(p.Filter),
		Dropped:   p.Dropped,
		Filtered:  p.Filtered,
	}
	if len(p.Overrides) > 0 {
		snap.Overrides = make(map[string]classify.Class, len(p.Overrides))
		for mod, class := range p.Overrides {
			snap.Overrides[mod] = classify.Class(class)
		}
	}
	snap.Events = make([]trace.Event, len(p.Events))
	for i, ev := range p.Events {
		snap.Events[i] = trace.Event{
			Seq:    ev.Seq,
			Time:   ev.Time,
			Kind:   trace.Kind(ev.Kind),
			Module: ev.Module,
			Func:   ev.Func,
			Depth:  ev.Depth,
			Gid:    ev.Gid,
			Class:  classify.Class(ev.Class),
			Detail: ev.Detail,
		}
	}
	return snap
}
