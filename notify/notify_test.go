package notify

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]Notice
}

func (r *recorder) listen(active []Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, active)
}

func (r *recorder) last() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestPublishSubscribe(t *testing.T) {
	hub := NewHub(0)
	defer hub.Close()

	rec := &recorder{}
	unsubscribe := hub.Subscribe("pres-1", rec.listen)
	if rec.count() != 1 || len(rec.last()) != 0 {
		t.Fatalf("Subscribe should deliver the empty active list at once, got %v", rec.calls)
	}

	n := hub.Publish("pres-1", Error, "Error saving slide", "network down")
	active := rec.last()
	if len(active) != 1 || active[0].ID != n.ID || active[0].Kind != Error {
		t.Fatalf("listener got %+v, want the published notice", active)
	}

	hub.Publish("pres-2", Info, "other topic", "")
	if rec.count() != 2 {
		t.Errorf("listener should not see other topics, calls=%d", rec.count())
	}

	hub.Dismiss(n.ID)
	if len(rec.last()) != 0 {
		t.Errorf("after Dismiss active = %+v, want empty", rec.last())
	}

	unsubscribe()
	unsubscribe()
	hub.Publish("pres-1", Success, "Saved", "")
	if rec.count() != 3 {
		t.Errorf("unsubscribed listener was called, calls=%d", rec.count())
	}
	if got := hub.Active("pres-1"); len(got) != 1 {
		t.Errorf("Active() = %d notices, want 1", len(got))
	}
}

func TestDismissIn(t *testing.T) {
	hub := NewHub(0)
	defer hub.Close()

	n := hub.Publish("pres-1", Error, "Error saving slide", "")
	if hub.DismissIn("pres-2", n.ID) {
		t.Error("DismissIn(other topic) should not remove the notice")
	}
	if got := hub.Active("pres-1"); len(got) != 1 {
		t.Fatalf("Active() = %+v, want the notice kept", got)
	}
	if hub.DismissIn("pres-1", "unknown") {
		t.Error("DismissIn(unknown id) reported a removal")
	}
	if !hub.DismissIn("pres-1", n.ID) {
		t.Error("DismissIn(own topic) should remove the notice")
	}
	if got := hub.Active("pres-1"); len(got) != 0 {
		t.Errorf("Active() = %+v after DismissIn, want empty", got)
	}
}

func TestNoticesExpire(t *testing.T) {
	hub := NewHub(20 * time.Millisecond)
	defer hub.Close()

	hub.Publish("pres-1", Warning, "Cannot delete the last slide", "")
	if len(hub.Active("pres-1")) != 1 {
		t.Fatal("notice should be active right after publish")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(hub.Active("pres-1")) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("notice did not expire")
}

func TestClose(t *testing.T) {
	hub := NewHub(time.Hour)
	rec := &recorder{}
	hub.Subscribe("t", rec.listen)
	hub.Publish("t", Info, "one", "")
	hub.Close()

	hub.Publish("t", Info, "two", "")
	if rec.count() != 2 {
		t.Errorf("publish after Close reached subscribers, calls=%d", rec.count())
	}
	if len(hub.Active("t")) != 0 {
		t.Error("Close should drop active notices")
	}
}
