// Package notify is a publish/subscribe hub for short-lived user notices
// (the editor's toasts). A Hub is created once by the server, injected into
// the components that publish, and subscribed to per connected view.
package notify

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
	Warning Kind = "warning"
)

// DefaultTTL is how long a notice stays active before it is dismissed.
const DefaultTTL = 5 * time.Second

type Notice struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	Kind        Kind      `json:"type"`
	Message     string    `json:"message"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Listener receives the full list of active notices of a topic whenever it changes.
type Listener func(active []Notice)

type subscription struct {
	topic string
	fn    Listener
}

type Hub struct {
	mu      sync.Mutex
	ttl     time.Duration
	active  map[string][]Notice
	subs    map[int]*subscription
	nextSub int
	timers  map[string]*time.Timer
	closed  bool
}

// NewHub returns a hub whose notices expire after ttl. A zero ttl keeps
// notices until dismissed.
func NewHub(ttl time.Duration) *Hub {
	return &Hub{
		ttl:    ttl,
		active: make(map[string][]Notice),
		subs:   make(map[int]*subscription),
		timers: make(map[string]*time.Timer),
	}
}

// Publish adds a notice to topic and notifies its subscribers.
func (h *Hub) Publish(topic string, kind Kind, message, description string) Notice {
	n := Notice{
		ID:          ulid.Make().String(),
		Topic:       topic,
		Kind:        kind,
		Message:     message,
		Description: description,
		CreatedAt:   time.Now(),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return n
	}
	h.active[topic] = append(h.active[topic], n)
	if h.ttl > 0 {
		h.timers[n.ID] = time.AfterFunc(h.ttl, func() { h.Dismiss(n.ID) })
	}
	listeners, active := h.snapshotLocked(topic)
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"topic": topic,
		"kind":  kind,
	}).Debug(message)
	notifyAll(listeners, active)
	return n
}

// Dismiss removes a notice before it expires. Unknown ids are ignored.
func (h *Hub) Dismiss(id string) {
	h.mu.Lock()
	for topic, notices := range h.active {
		for _, n := range notices {
			if n.ID == id {
				h.removeAndNotify(topic, id)
				return
			}
		}
	}
	h.mu.Unlock()
}

// DismissIn removes a notice only if it belongs to topic, and reports
// whether it did.
func (h *Hub) DismissIn(topic, id string) bool {
	h.mu.Lock()
	for _, n := range h.active[topic] {
		if n.ID == id {
			h.removeAndNotify(topic, id)
			return true
		}
	}
	h.mu.Unlock()
	return false
}

// removeAndNotify must be called with h.mu held; it unlocks before
// calling the listeners.
func (h *Hub) removeAndNotify(topic, id string) {
	if t, ok := h.timers[id]; ok {
		t.Stop()
		delete(h.timers, id)
	}
	notices := h.active[topic]
	for i, n := range notices {
		if n.ID == id {
			h.active[topic] = append(notices[:i:i], notices[i+1:]...)
			break
		}
	}
	if len(h.active[topic]) == 0 {
		delete(h.active, topic)
	}
	listeners, active := h.snapshotLocked(topic)
	h.mu.Unlock()

	notifyAll(listeners, active)
}

// Subscribe registers fn for topic. fn is called at once with the current
// notices, then on every change. The returned func unsubscribes.
func (h *Hub) Subscribe(topic string, fn Listener) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = &subscription{topic: topic, fn: fn}
	active := append([]Notice(nil), h.active[topic]...)
	h.mu.Unlock()

	fn(active)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Active returns the notices currently shown for topic.
func (h *Hub) Active(topic string) []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Notice(nil), h.active[topic]...)
}

// Close stops all expiry timers and drops subscribers. Publishing after
// Close is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, t := range h.timers {
		t.Stop()
		delete(h.timers, id)
	}
	h.subs = make(map[int]*subscription)
	h.active = make(map[string][]Notice)
	h.closed = true
}

func (h *Hub) snapshotLocked(topic string) ([]Listener, []Notice) {
	var listeners []Listener
	for _, s := range h.subs {
		if s.topic == topic {
			listeners = append(listeners, s.fn)
		}
	}
	return listeners, append([]Notice(nil), h.active[topic]...)
}

func notifyAll(listeners []Listener, active []Notice) {
	for _, fn := range listeners {
		fn(append([]Notice(nil), active...))
	}
}
