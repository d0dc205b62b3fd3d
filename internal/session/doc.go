// Package session records call/return streams into finalized trace sessions.
//
// A Controller owns the process-wide interception point: Start installs a
// Recorder as the active event sink and creates a Session; Stop uninstalls
// it and finalizes the Session. Only one session is active per controller at
// a time. The Recorder is the only component that mutates a session; once
// finalized, a session is read-only.
//
// The tracer observes the traced program, it never participates in it:
// anomalies degrade to annotated trace data, and no intake path panics or
// returns errors into traced code.
package session
