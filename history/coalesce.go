package history

import "time"

// Coalescer groups consecutive edits of the same key into one undo step.
//
// The owner applies an edit, then calls Mark with its key. Before applying
// the next edit it asks Continues: when that reports false while an edit is
// Pending, the owner pushes its current state (closing the previous step)
// and calls Clear. Any mutation that is not a keyed edit should flush the
// same way first.
type Coalescer struct {
	window time.Duration
	now    func() time.Time

	pending bool
	key     string
	last    time.Time
}

// NewCoalescer returns a coalescer merging edits that arrive within window
// of each other. A zero window disables merging. now may be nil.
func NewCoalescer(window time.Duration, now func() time.Time) *Coalescer {
	if now == nil {
		now = time.Now
	}
	return &Coalescer{window: window, now: now}
}

// Enabled reports whether edits are merged at all.
func (c *Coalescer) Enabled() bool {
	return c.window > 0
}

// Pending reports whether an edit has been applied but not pushed.
func (c *Coalescer) Pending() bool {
	return c.pending
}

// Continues reports whether an edit keyed by key extends the pending step.
func (c *Coalescer) Continues(key string) bool {
	if !c.Enabled() || !c.pending || c.key != key {
		return false
	}
	return c.now().Sub(c.last) <= c.window
}

// Mark records that an edit keyed by key was applied.
func (c *Coalescer) Mark(key string) {
	c.pending = true
	c.key = key
	c.last = c.now()
}

// Clear forgets the pending edit, after the owner pushed it.
func (c *Coalescer) Clear() {
	c.pending = false
	c.key = ""
}
