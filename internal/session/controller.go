package session

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"tracerlib/internal/callgraph"
	"tracerlib/internal/classify"
	"tracerlib/internal/probe"
)

// ErrAlreadyTracing is returned by Start while a session is active. The
// existing session is left untouched; nested tracing is unsupported.
var ErrAlreadyTracing = errors.New("session: tracing already active")

// Controller owns the interception point for call/return events. It is
// either idle or has exactly one active session. All methods are safe for
// concurrent use.
type Controller struct {
	mu     sync.Mutex
	active *Session
	rec    *Recorder
	hb     *heartbeat

	logger    Logger
	afterStop atomic.Uint64
	warned    atomic.Bool
}

// NewController creates an idle controller. A nil logger discards the
// controller's own diagnostics.
func NewController(logger Logger) *Controller {
	if logger == nil {
		logger = NopLogger
	}
	return &Controller{logger: logger}
}

var defaultController = sync.OnceValue(func() *Controller {
	return NewController(NopLogger)
})

// Default returns the process-wide controller.
func Default() *Controller {
	return defaultController()
}

// Start transitions the controller to active, creating a new session under
// cfg. While a session is active it returns ErrAlreadyTracing and leaves
// the existing session completely unaffected. Classifier construction
// failures surface immediately.
func (c *Controller) Start(cfg Config) (*Session, error) {
	cfg = cfg.normalized()

	base, err := classify.Default()
	if err != nil {
		return nil, err
	}
	idx, err := base.WithOverridesApplied(cfg.Overrides)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return nil, ErrAlreadyTracing
	}

	s := &Session{
		id:        uuid.NewString(),
		startedAt: cfg.Clock(),
		cfg:       cfg,
		demux:     callgraph.NewDemux(),
	}
	c.active = s
	c.rec = newRecorder(s, idx)
	// Re-arm the idle warning so each session's teardown gets its own.
	c.warned.Store(false)
	if cfg.Heartbeat > 0 {
		c.hb = startHeartbeat(c.rec, cfg.Heartbeat)
	}
	return s, nil
}

// Stop uninstalls the recorder, finalizes the active session and returns
// it. Stopping an idle controller is a no-op returning nil.
func (c *Controller) Stop() *Session {
	c.mu.Lock()
	s, hb := c.active, c.hb
	c.active, c.rec, c.hb = nil, nil, nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	hb.stop()
	s.finalize()
	if err := s.cfg.Sink.Flush(); err != nil {
		s.cfg.Logger.Logf("session %s: sink flush: %v", s.id, err)
	}
	return s
}

// Active returns the active session, or nil when idle.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// DroppedAfterStop returns the number of events observed with no active
// session.
func (c *Controller) DroppedAfterStop() uint64 {
	return c.afterStop.Load()
}

// recorder returns the active recorder, or nil after counting and (once)
// warning about an event observed while idle.
func (c *Controller) recorder() *Recorder {
	c.mu.Lock()
	rec := c.rec
	c.mu.Unlock()
	if rec == nil {
		c.afterStop.Add(1)
		if c.warned.CompareAndSwap(false, true) {
			c.logger.Logf("session: event observed with no active session; dropping")
		}
	}
	return rec
}

// Enter observes a call on the current goroutine.
func (c *Controller) Enter(module, fn string) {
	if rec := c.recorder(); rec != nil {
		rec.Enter(probe.GID(), module, fn)
	}
}

// Leave observes a return on the current goroutine.
func (c *Controller) Leave(module, fn string) {
	if rec := c.recorder(); rec != nil {
		rec.Leave(probe.GID(), module, fn)
	}
}

// Mark records an instant annotation on the current goroutine.
func (c *Controller) Mark(name, detail string) {
	if rec := c.recorder(); rec != nil {
		rec.Mark(probe.GID(), name, detail)
	}
}

// Call records entry into the calling function and returns the matching
// leave probe. Intended use:
//
//	defer ctrl.Call()()
func (c *Controller) Call() func() {
	return c.callProbe(2)
}

// callProbe resolves the frame skip levels above callProbe itself and
// brackets it with Enter/Leave.
func (c *Controller) callProbe(skip int) func() {
	fr, ok := probe.Caller(skip)
	if !ok {
		fr = probe.Frame{Func: "unknown"}
	}
	c.Enter(fr.Module, fr.Func)
	return func() {
		c.Leave(fr.Module, fr.Func)
	}
}

// Trace records fn as a bounded region on the default configuration rules:
// the session is started before fn runs and is guaranteed to be stopped on
// every exit path. A panic inside fn finalizes the session with the panic
// noted, then propagates unchanged.
func (c *Controller) Trace(cfg Config, fn func()) (*Session, error) {
	s, err := c.Start(cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			s.setPanicked()
			c.Stop()
			panic(r)
		}
		c.Stop()
	}()
	fn()
	return s, nil
}

// Package-level wrappers over the default controller.

// Start starts tracing on the default controller.
func Start(cfg Config) (*Session, error) {
	return Default().Start(cfg)
}

// Stop stops tracing on the default controller.
func Stop() *Session {
	return Default().Stop()
}

// Trace traces fn on the default controller.
func Trace(cfg Config, fn func()) (*Session, error) {
	return Default().Trace(cfg, fn)
}

// Enter observes a call on the default controller.
func Enter(module, fn string) {
	Default().Enter(module, fn)
}

// Leave observes a return on the default controller.
func Leave(module, fn string) {
	Default().Leave(module, fn)
}

// Mark records an instant annotation on the default controller.
func Mark(name, detail string) {
	Default().Mark(name, detail)
}

// Call records entry into the calling function on the default controller.
func Call() func() {
	return Default().callProbe(2)
}
