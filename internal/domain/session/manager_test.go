package session

import (
	"sync"
	"testing"
	"time"

	"github.com/0xReLogic/Tunly/internal/domain/frame"
)

type counterGauge struct {
	mu    sync.Mutex
	value int
}

func (g *counterGauge) Inc() {
	g.mu.Lock()
	g.value++
	g.mu.Unlock()
}

func (g *counterGauge) Dec() {
	g.mu.Lock()
	g.value--
	g.mu.Unlock()
}

func (g *counterGauge) Value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

func TestManagerCreateGetRemove(t *testing.T) {
	gauge := &counterGauge{}
	m := NewManager(gauge)

	sess := m.Create("sid-1")
	if gauge.Value() != 1 {
		t.Fatalf("active gauge = %d, want 1", gauge.Value())
	}

	got, err := m.Get("sid-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != sess {
		t.Fatalf("Get() returned a different session handle")
	}

	m.Remove(sess)
	if gauge.Value() != 0 {
		t.Fatalf("active gauge = %d, want 0 after Remove", gauge.Value())
	}
	if _, err := m.Get("sid-1"); err != ErrNotFound {
		t.Fatalf("Get() after Remove error = %v, want ErrNotFound", err)
	}
}

func TestManagerCreateReplacesPriorSession(t *testing.T) {
	gauge := &counterGauge{}
	m := NewManager(gauge)

	first := m.Create("sid-1")
	ch := first.AddPending(1)

	second := m.Create("sid-1")
	if gauge.Value() != 1 {
		t.Fatalf("active gauge = %d, want 1 (replace, not double-increment)", gauge.Value())
	}

	// The superseded session's pending slots must be drained (closed),
	// surfacing "tunnel closed" to any awaiter.
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel, got a value")
		}
	case <-time.After(time.Second):
		t.Fatalf("superseded session's pending slot was never drained")
	}

	got, err := m.Get("sid-1")
	if err != nil || got != second {
		t.Fatalf("Get() = %v, %v; want second session, nil", got, err)
	}
}

func TestRemoveIsIdempotentAgainstSupersededSession(t *testing.T) {
	gauge := &counterGauge{}
	m := NewManager(gauge)

	first := m.Create("sid-1")
	m.Create("sid-1") // supersedes first, gauge back to 1

	// Removing the superseded handle must not touch the table or double-decrement.
	m.Remove(first)
	if gauge.Value() != 1 {
		t.Fatalf("active gauge = %d, want 1 (no-op remove of stale handle)", gauge.Value())
	}
	if _, err := m.Get("sid-1"); err != nil {
		t.Fatalf("Get() error = %v, want nil (current session still installed)", err)
	}
}

func TestCompletePendingExactlyOnce(t *testing.T) {
	sess := New("sid-1")
	ch := sess.AddPending(42)

	ok := sess.CompletePending(frame.ResponseEnvelope{ID: 42, Status: 204})
	if !ok {
		t.Fatalf("CompletePending() = false, want true")
	}

	select {
	case resp := <-ch:
		if resp.Status != 204 {
			t.Fatalf("resp.Status = %d, want 204", resp.Status)
		}
	default:
		t.Fatalf("expected a delivered response")
	}

	// A second completion for the same, now-removed id must fail.
	ok = sess.CompletePending(frame.ResponseEnvelope{ID: 42, Status: 500})
	if ok {
		t.Fatalf("CompletePending() on removed id = true, want false")
	}
}

func TestRemovePendingThenTimeoutDropsLateResponse(t *testing.T) {
	sess := New("sid-1")
	sess.AddPending(7)
	sess.RemovePending(7) // simulate the 30s timeout path

	if sess.CompletePending(frame.ResponseEnvelope{ID: 7}) {
		t.Fatalf("late response must not find a pending slot after RemovePending")
	}
}

func TestDrainPendingClosesAllSlots(t *testing.T) {
	sess := New("sid-1")
	a := sess.AddPending(1)
	b := sess.AddPending(2)

	sess.DrainPending()

	for _, ch := range []<-chan frame.ResponseEnvelope{a, b} {
		select {
		case _, ok := <-ch:
			if ok {
				t.Fatalf("expected closed channel")
			}
		default:
			t.Fatalf("expected channel to be closed, not empty-and-open")
		}
	}
}

func TestAccessLogRingBufferEviction(t *testing.T) {
	sess := New("sid-1")
	for i := 0; i < AccessLogLimit+10; i++ {
		sess.AppendAccessLog(AccessLogEntry{Path: "/x", Status: 200})
	}
	log := sess.AccessLog()
	if len(log) != AccessLogLimit {
		t.Fatalf("len(AccessLog()) = %d, want %d", len(log), AccessLogLimit)
	}
}

func TestSweepIdleRemovesOnlyStaleSessions(t *testing.T) {
	gauge := &counterGauge{}
	m := NewManager(gauge)

	fresh := m.Create("fresh")
	stale := m.Create("stale")
	_ = fresh

	// Force "stale" to look idle without sleeping in the test.
	stale.mu.Lock()
	stale.lastAccess = time.Now().Add(-IdleTTL - time.Second)
	stale.mu.Unlock()

	removed := m.SweepIdle(time.Now())
	if removed != 1 {
		t.Fatalf("SweepIdle() removed = %d, want 1", removed)
	}
	if _, err := m.Get("stale"); err != ErrNotFound {
		t.Fatalf("stale session should have been swept")
	}
	if _, err := m.Get("fresh"); err != nil {
		t.Fatalf("fresh session should survive the sweep, got %v", err)
	}
}
