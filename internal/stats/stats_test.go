package stats_test

import (
	"strings"
	"testing"
	"time"

	"tracerlib/internal/classify"
	"tracerlib/internal/session"
	"tracerlib/internal/stats"
)

func fixedClock() func() time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
}

func record(t *testing.T, fn func(ctrl *session.Controller)) *session.Session {
	t.Helper()
	ctrl := session.NewController(nil)
	s, err := ctrl.Start(session.Config{Clock: fixedClock()})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	fn(ctrl)
	ctrl.Stop()
	return s
}

func TestCollect(t *testing.T) {
	s := record(t, func(ctrl *session.Controller) {
		ctrl.Enter("main", "f")
		ctrl.Enter("strings", "ToUpper")
		ctrl.Leave("strings", "ToUpper")
		ctrl.Enter("strings", "ToUpper")
		ctrl.Leave("strings", "ToUpper")
		ctrl.Leave("main", "f")
	})

	r := stats.Collect(s)
	if r.Sessions != 1 || r.Events != 6 || r.Calls != 3 {
		t.Errorf("sessions/events/calls = %d/%d/%d, want 1/6/3", r.Sessions, r.Events, r.Calls)
	}
	if r.ByClass[classify.ClassUser] != 1 || r.ByClass[classify.ClassStdlib] != 2 {
		t.Errorf("ByClass = %v, want user 1, stdlib 2", r.ByClass)
	}
	if r.MaxDepth != 1 {
		t.Errorf("MaxDepth = %d, want 1", r.MaxDepth)
	}
	if r.Wall <= 0 {
		t.Errorf("Wall = %v, want positive", r.Wall)
	}

	if len(r.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(r.Rows))
	}
	// f's cumulative time spans the whole region, so it sorts first.
	f, toUpper := r.Rows[0], r.Rows[1]
	if f.Func != "f" || toUpper.Func != "ToUpper" {
		t.Fatalf("row order = %s, %s, want f, ToUpper", f.Func, toUpper.Func)
	}
	if toUpper.Calls != 2 {
		t.Errorf("ToUpper calls = %d, want 2", toUpper.Calls)
	}
	if f.Cum <= toUpper.Cum {
		t.Errorf("f cum %v not above callee cum %v", f.Cum, toUpper.Cum)
	}
	if f.Self != f.Cum-toUpper.Cum {
		t.Errorf("f self = %v, want cum minus callee time %v", f.Self, f.Cum-toUpper.Cum)
	}
}

func TestCollectOpenNodesContributeCallsOnly(t *testing.T) {
	s := record(t, func(ctrl *session.Controller) {
		ctrl.Enter("main", "f") // never returns
	})

	r := stats.Collect(s)
	if r.Calls != 1 {
		t.Fatalf("Calls = %d, want 1", r.Calls)
	}
	if r.Rows[0].Cum != 0 || r.Rows[0].Self != 0 {
		t.Errorf("open node timing = cum %v self %v, want zero", r.Rows[0].Cum, r.Rows[0].Self)
	}
}

func TestMerge(t *testing.T) {
	s1 := record(t, func(ctrl *session.Controller) {
		ctrl.Enter("main", "f")
		ctrl.Leave("main", "f")
	})
	s2 := record(t, func(ctrl *session.Controller) {
		ctrl.Enter("main", "f")
		ctrl.Leave("main", "f")
		ctrl.Enter("main", "g")
		ctrl.Leave("main", "g")
	})

	merged := stats.Merge(stats.Collect(s1), stats.Collect(s2))
	if merged.Sessions != 2 || merged.Calls != 3 {
		t.Errorf("sessions/calls = %d/%d, want 2/3", merged.Sessions, merged.Calls)
	}
	if len(merged.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(merged.Rows))
	}
	var fRow *stats.Row
	for i := range merged.Rows {
		if merged.Rows[i].Func == "f" {
			fRow = &merged.Rows[i]
		}
	}
	if fRow == nil || fRow.Calls != 2 {
		t.Fatalf("merged f row = %+v, want 2 calls", fRow)
	}
}

func TestRender(t *testing.T) {
	s := record(t, func(ctrl *session.Controller) {
		ctrl.Enter("main", "f")
		ctrl.Enter("strings", "ToUpper")
		ctrl.Leave("strings", "ToUpper")
		ctrl.Leave("main", "f")
	})

	var sb strings.Builder
	if err := stats.Render(&sb, stats.Collect(s), 0); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := sb.String()
	for _, want := range []string{"sessions 1", "main.f", "strings.ToUpper", "calls"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderRowLimit(t *testing.T) {
	s := record(t, func(ctrl *session.Controller) {
		for _, fn := range []string{"a", "b", "c"} {
			ctrl.Enter("main", fn)
			ctrl.Leave("main", fn)
		}
	})

	var sb strings.Builder
	if err := stats.Render(&sb, stats.Collect(s), 2); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(sb.String(), "1 more rows") {
		t.Errorf("output missing truncation note:\n%s", sb.String())
	}
}
