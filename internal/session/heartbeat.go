package session

import (
	"fmt"
	"sync"
	"time"

	"tracerlib/internal/probe"
)

// heartbeat periodically records a liveness mark so a hung traced region is
// distinguishable from a quiet one when streaming output.
type heartbeat struct {
	rec      *Recorder
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func startHeartbeat(rec *Recorder, interval time.Duration) *heartbeat {
	if rec == nil || interval <= 0 {
		return nil
	}
	h := &heartbeat{
		rec:      rec,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *heartbeat) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ticker.C:
			n++
			h.rec.Mark(probe.GID(), "heartbeat", fmt.Sprintf("#%d", n))
		case <-h.stopCh:
			return
		}
	}
}

// stop terminates the heartbeat goroutine and waits for it to exit. Safe on
// a nil receiver. The controller calls it exactly once per heartbeat.
func (h *heartbeat) stop() {
	if h == nil {
		return
	}
	close(h.stopCh)
	h.wg.Wait()
}
