// Package history implements a linear undo/redo timeline over snapshots.
//
// A History never branches: pushing after an undo discards every state that
// was reachable with redo. It is not safe for concurrent use; callers own it
// together with the state it tracks.
package history

// History is a linear timeline of snapshots with a cursor.
type History[T any] struct {
	entries []T
	index   int
}

// New returns a timeline holding only initial.
func New[T any](initial T) *History[T] {
	return &History[T]{entries: []T{initial}}
}

// Push truncates the timeline after the current entry and appends state,
// which becomes current.
func (h *History[T]) Push(state T) {
	h.entries = append(h.entries[:h.index+1], state)
	h.index = len(h.entries) - 1
}

// Undo steps back one entry and returns the new current snapshot.
// At the start of the timeline it does nothing.
func (h *History[T]) Undo() T {
	if h.CanUndo() {
		h.index--
	}
	return h.entries[h.index]
}

// Redo steps forward one entry and returns the new current snapshot.
// At the end of the timeline it does nothing.
func (h *History[T]) Redo() T {
	if h.CanRedo() {
		h.index++
	}
	return h.entries[h.index]
}

// Reset discards the whole timeline and starts over from initial.
func (h *History[T]) Reset(initial T) {
	h.entries = []T{initial}
	h.index = 0
}

func (h *History[T]) Current() T {
	return h.entries[h.index]
}

func (h *History[T]) CanUndo() bool {
	return h.index > 0
}

func (h *History[T]) CanRedo() bool {
	return h.index < len(h.entries)-1
}

// Len is the number of snapshots on the timeline.
func (h *History[T]) Len() int {
	return len(h.entries)
}

// Index is the position of the current snapshot.
func (h *History[T]) Index() int {
	return h.index
}
