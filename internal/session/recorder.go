package session

import (
	"tracerlib/internal/classify"
	"tracerlib/internal/trace"
)

// suppression reasons for frames withheld from the session.
type suppressReason uint8

const (
	suppressNone suppressReason = iota
	suppressDepth
	suppressFilter
)

// laneFrame mirrors one open call on a goroutine's observed stack. Frames
// suppressed by the depth cap or inclusion filter stay on the lane stack so
// their matching returns can be paired off and suppressed symmetrically.
type laneFrame struct {
	module string
	fn     string
	reason suppressReason
}

type lane struct {
	frames []laneFrame
}

// Recorder converts observed call/return notifications into session events.
// It is the only component that mutates its session. All methods serialize
// on the session lock and never panic or fail into the traced program.
type Recorder struct {
	sess *Session
	idx  *classify.Index
	memo map[string]classify.Class
	lanes map[uint64]*lane
}

func newRecorder(sess *Session, idx *classify.Index) *Recorder {
	return &Recorder{
		sess:  sess,
		idx:   idx,
		memo:  make(map[string]classify.Class),
		lanes: make(map[uint64]*lane),
	}
}

// classOf memoizes classification per distinct module for the session.
func (r *Recorder) classOf(module string) classify.Class {
	if class, ok := r.memo[module]; ok {
		return class
	}
	class := r.idx.Class(module)
	r.memo[module] = class
	return class
}

func (r *Recorder) lane(gid uint64) *lane {
	if ln, ok := r.lanes[gid]; ok {
		return ln
	}
	ln := &lane{}
	r.lanes[gid] = ln
	return ln
}

// Enter observes a call on goroutine gid.
func (r *Recorder) Enter(gid uint64, module, fn string) {
	s := r.sess
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}

	s.seq++
	class := r.classOf(module)
	ln := r.lane(gid)
	depth := len(ln.frames)

	reason := suppressNone
	switch {
	case s.cfg.MaxDepth > 0 && depth >= s.cfg.MaxDepth:
		reason = suppressDepth
		s.counters.Dropped++
	case s.cfg.Filter == KeepUser && class != classify.ClassUser:
		reason = suppressFilter
		s.counters.Filtered++
	}
	ln.frames = append(ln.frames, laneFrame{module: module, fn: fn, reason: reason})

	if reason != suppressNone {
		// The sequence number is consumed either way, so the gap stays
		// visible in the retained stream. Attribute the elision to the
		// nearest recorded ancestor.
		if top := s.demux.Lane(gid).Top(); top != nil {
			top.Elided++
		}
		return
	}

	r.record(gid, trace.KindCall, module, fn, depth, class, "")
}

// Leave observes a return on goroutine gid.
func (r *Recorder) Leave(gid uint64, module, fn string) {
	s := r.sess
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}

	s.seq++
	class := r.classOf(module)
	ln := r.lane(gid)

	match := -1
	for i := len(ln.frames) - 1; i >= 0; i-- {
		if ln.frames[i].module == module && ln.frames[i].fn == fn {
			match = i
			break
		}
	}

	if match < 0 {
		// Stray return: no open call observed for it. Suppressed classes
		// stay suppressed; otherwise the event is retained and the graph
		// builder records the anomaly.
		if s.cfg.Filter == KeepUser && class != classify.ClassUser {
			s.counters.Filtered++
			return
		}
		r.record(gid, trace.KindReturn, module, fn, len(ln.frames), class, "")
		return
	}

	// Frames above the match were unwound without observed returns; drop
	// them from the lane stack. Recorded ones realign in the graph builder
	// when the matched return feeds through.
	frame := ln.frames[match]
	ln.frames = ln.frames[:match]

	switch frame.reason {
	case suppressDepth:
		s.counters.Dropped++
		return
	case suppressFilter:
		s.counters.Filtered++
		return
	}

	r.record(gid, trace.KindReturn, module, fn, match, class, "")
}

// Mark observes an instant annotation on goroutine gid.
func (r *Recorder) Mark(gid uint64, name, detail string) {
	s := r.sess
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.seq++
	r.record(gid, trace.KindMark, "", name, len(r.lane(gid).frames), classify.ClassUnknown, detail)
}

// record appends a retained event under the session lock, already holding
// the current sequence number.
func (r *Recorder) record(gid uint64, kind trace.Kind, module, fn string, depth int, class classify.Class, detail string) {
	s := r.sess
	ev := trace.Event{
		Seq:    s.seq,
		Time:   s.cfg.Clock(),
		Kind:   kind,
		Module: module,
		Func:   fn,
		Depth:  depth,
		Gid:    gid,
		Class:  class,
		Detail: detail,
	}
	s.events = append(s.events, ev)
	s.demux.Feed(&ev)
	s.cfg.Sink.Emit(&ev)
}
