// Package editor holds the in-memory slide list of an open presentation.
//
// A Session applies every edit locally first, records an undo step and then
// hands the matching remote writes to its Mirror. Remote failures never roll
// back local state.
package editor

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/history"
	"github.com/Dannidrenovci/myriad-slides/layouts"
	"github.com/Dannidrenovci/myriad-slides/notify"
	"github.com/Dannidrenovci/myriad-slides/outbox"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Mirror receives the remote writes of a session, in order.
type Mirror interface {
	Enqueue(ms ...outbox.Mutation) error
}

// Publisher shows user notices.
type Publisher interface {
	Publish(topic string, kind notify.Kind, message, description string) notify.Notice
}

type Options struct {
	// CoalesceWindow merges consecutive edits of one field into a single
	// undo step. Zero records every edit.
	CoalesceWindow time.Duration

	// OnChange is called after every operation that changed the state,
	// outside the session lock.
	OnChange func(State)

	Now   func() time.Time
	NewID func() string
}

// State is a copy of what the editor view shows.
type State struct {
	PresentationID string       `json:"presentationId"`
	Slides         []core.Slide `json:"slides"`
	Cursor         int          `json:"cursor"`
	CanUndo        bool         `json:"canUndo"`
	CanRedo        bool         `json:"canRedo"`
	Dirty          bool         `json:"dirty"`
}

type Session struct {
	mu             sync.Mutex
	presentationID string
	slides         []core.Slide
	cursor         int
	history        *history.History[[]core.Slide]
	coalesce       *history.Coalescer
	mirror         Mirror
	notices        Publisher
	onChange       func(State)
	newID          func() string
	dirty          bool
}

// NewSession starts a session over slides, which are sorted by OrderIndex
// and renumbered 0..n-1. notices may be nil.
func NewSession(presentationID string, slides []core.Slide, mirror Mirror, notices Publisher, opts Options) *Session {
	s := &Session{
		presentationID: presentationID,
		mirror:         mirror,
		notices:        notices,
		onChange:       opts.OnChange,
		newID:          opts.NewID,
		coalesce:       history.NewCoalescer(opts.CoalesceWindow, opts.Now),
	}
	if s.newID == nil {
		s.newID = func() string { return ulid.Make().String() }
	}
	s.slides = normalize(slides)
	s.history = history.New(core.CloneSlides(s.slides))
	return s
}

func normalize(slides []core.Slide) []core.Slide {
	out := core.CloneSlides(slides)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	for i := range out {
		out[i].OrderIndex = i
	}
	return out
}

func (s *Session) PresentationID() string {
	return s.presentationID
}

// SetContent replaces the content of the current slide.
func (s *Session) SetContent(content core.Content) error {
	return s.update(func() error {
		return s.setContentLocked(content)
	})
}

// SetContentAt moves the cursor to slide i and replaces its content in one
// step, so repeated edits of the same field still coalesce.
func (s *Session) SetContentAt(i int, content core.Content) error {
	return s.update(func() error {
		if err := s.moveCursorLocked(i); err != nil {
			return err
		}
		return s.setContentLocked(content)
	})
}

func (s *Session) setContentLocked(content core.Content) error {
	if len(s.slides) == 0 {
		return ErrNoSlides
	}
	cur := &s.slides[s.cursor]
	content = content.Clone()
	if content == nil {
		content = core.Content{}
	}

	key := ""
	if changed := cur.Content.ChangedFields(content); len(changed) == 1 {
		key = cur.ID + "/" + changed[0]
	}
	if s.coalesce.Pending() && (key == "" || !s.coalesce.Continues(key)) {
		s.flushLocked()
	}

	cur.Content = content
	if key != "" && s.coalesce.Enabled() {
		s.coalesce.Mark(key)
	} else {
		s.pushLocked()
	}
	s.enqueueLocked(outbox.Update(s.presentationID, cur.ID, core.SlidePatch{Content: content.Clone()}))
	return nil
}

// SetLayout changes the layout of the current slide. Content is kept as is.
func (s *Session) SetLayout(layoutID string) error {
	return s.update(func() error {
		return s.setLayoutLocked(layoutID)
	})
}

// SetLayoutAt moves the cursor to slide i and changes its layout.
func (s *Session) SetLayoutAt(i int, layoutID string) error {
	return s.update(func() error {
		if err := s.moveCursorLocked(i); err != nil {
			return err
		}
		return s.setLayoutLocked(layoutID)
	})
}

func (s *Session) setLayoutLocked(layoutID string) error {
	if len(s.slides) == 0 {
		return ErrNoSlides
	}
	s.flushLocked()
	cur := &s.slides[s.cursor]
	cur.LayoutID = layoutID
	s.pushLocked()
	s.enqueueLocked(outbox.Update(s.presentationID, cur.ID, core.SlidePatch{LayoutID: core.Ptr(layoutID)}))
	return nil
}

// Reorder puts the slides in the order of ids, which must name every
// slide exactly once. Only slides whose position changed are written.
func (s *Session) Reorder(ids []string) error {
	return s.update(func() error {
		if len(ids) != len(s.slides) {
			return ErrInvalidOrder
		}
		byID := make(map[string]core.Slide, len(s.slides))
		for _, sl := range s.slides {
			byID[sl.ID] = sl
		}
		reordered := make([]core.Slide, 0, len(ids))
		for _, id := range ids {
			sl, ok := byID[id]
			if !ok {
				return ErrInvalidOrder
			}
			delete(byID, id)
			reordered = append(reordered, sl)
		}

		s.flushLocked()
		var ms []outbox.Mutation
		for i := range reordered {
			if reordered[i].OrderIndex != i {
				reordered[i].OrderIndex = i
				ms = append(ms, outbox.Update(s.presentationID, reordered[i].ID, core.SlidePatch{OrderIndex: core.Ptr(i)}))
			}
		}
		s.slides = reordered
		s.pushLocked()
		s.enqueueLocked(ms...)
		return nil
	})
}

// Add appends a TitleAndBody slide and selects it.
func (s *Session) Add() (core.Slide, error) {
	var added core.Slide
	err := s.update(func() error {
		s.flushLocked()
		added = s.insertLocked(len(s.slides), s.blankSlide())
		s.cursor = added.OrderIndex
		return nil
	})
	return added, err
}

// Insert places a new TitleAndBody slide at position at, shifting the
// following slides, and selects it.
func (s *Session) Insert(at int) (core.Slide, error) {
	var added core.Slide
	err := s.update(func() error {
		if at < 0 || at > len(s.slides) {
			return ErrIndexOutOfRange
		}
		s.flushLocked()
		added = s.insertLocked(at, s.blankSlide())
		s.cursor = at
		return nil
	})
	return added, err
}

// Duplicate copies the slide at position at to at+1.
func (s *Session) Duplicate(at int) (core.Slide, error) {
	var added core.Slide
	err := s.update(func() error {
		if at < 0 || at >= len(s.slides) {
			return ErrIndexOutOfRange
		}
		s.flushLocked()
		src := s.slides[at]
		added = s.insertLocked(at+1, core.Slide{
			ID:             s.newID(),
			PresentationID: s.presentationID,
			LayoutID:       src.LayoutID,
			Content:        src.Content.Clone(),
		})
		return nil
	})
	return added, err
}

// Delete removes the slide at position at. The last remaining slide
// cannot be deleted.
func (s *Session) Delete(at int) error {
	return s.update(func() error {
		if at < 0 || at >= len(s.slides) {
			return ErrIndexOutOfRange
		}
		if len(s.slides) == 1 {
			if s.notices != nil {
				s.notices.Publish(s.presentationID, notify.Warning, "Cannot delete the last slide", "")
			}
			return ErrLastSlide
		}
		s.flushLocked()

		removed := s.slides[at]
		s.slides = slices.Delete(s.slides, at, at+1)
		ms := []outbox.Mutation{outbox.Delete(s.presentationID, removed.ID)}
		ms = append(ms, s.reindexLocked(at)...)
		if s.cursor >= len(s.slides) {
			s.cursor = len(s.slides) - 1
		}
		s.pushLocked()
		s.enqueueLocked(ms...)
		return nil
	})
}

// Select moves the cursor. Moving to another slide closes a pending edit;
// no undo step of its own is recorded.
func (s *Session) Select(i int) error {
	return s.update(func() error {
		return s.moveCursorLocked(i)
	})
}

// moveCursorLocked points the cursor at slide i. A pending edit is closed
// only when the cursor actually moves.
func (s *Session) moveCursorLocked(i int) error {
	if i < 0 || i >= len(s.slides) {
		return ErrIndexOutOfRange
	}
	if i != s.cursor {
		s.flushLocked()
		s.cursor = i
	}
	return nil
}

func (s *Session) Undo() error {
	return s.update(func() error {
		s.flushLocked()
		if !s.history.CanUndo() {
			return nil
		}
		s.restoreLocked(s.history.Undo())
		return nil
	})
}

func (s *Session) Redo() error {
	return s.update(func() error {
		s.flushLocked()
		if !s.history.CanRedo() {
			return nil
		}
		s.restoreLocked(s.history.Redo())
		return nil
	})
}

// Commit closes a pending coalesced edit, as when the field loses focus.
func (s *Session) Commit() {
	s.update(func() error {
		s.flushLocked()
		return nil
	})
}

// SaveAll writes the whole slide list to the store.
func (s *Session) SaveAll() error {
	return s.update(func() error {
		s.flushLocked()
		s.dirty = false
		s.enqueueLocked(outbox.Reconcile(s.presentationID, core.CloneSlides(s.slides)))
		return nil
	})
}

// HandleDrop is called by the mirror when a write was given up. The session
// is marked dirty until the next SaveAll.
func (s *Session) HandleDrop(m outbox.Mutation, err error) {
	if s.notices != nil {
		s.notices.Publish(s.presentationID, notify.Error, "Error saving slide", err.Error())
	}
	s.update(func() error {
		s.dirty = true
		return nil
	})
}

func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Slides returns a copy of the current slide list.
func (s *Session) Slides() []core.Slide {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CloneSlides(s.slides)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		PresentationID: s.presentationID,
		Slides:         core.CloneSlides(s.slides),
		Cursor:         s.cursor,
		CanUndo:        s.history.CanUndo() || s.coalesce.Pending(),
		CanRedo:        s.history.CanRedo() && !s.coalesce.Pending(),
		Dirty:          s.dirty,
	}
}

// update runs fn under the lock and reports the new state to OnChange
// when fn succeeded.
func (s *Session) update(fn func() error) error {
	s.mu.Lock()
	err := fn()
	var st State
	if err == nil && s.onChange != nil {
		st = s.stateLocked()
	}
	s.mu.Unlock()

	if err == nil && s.onChange != nil {
		s.onChange(st)
	}
	return err
}

func (s *Session) blankSlide() core.Slide {
	return core.Slide{
		ID:             s.newID(),
		PresentationID: s.presentationID,
		LayoutID:       layouts.Default.String(),
		Content:        layouts.NewSlideContent(),
	}
}

// insertLocked places sl at position at, renumbers the following slides,
// records the undo step and mirrors the insert plus the shifted indices.
func (s *Session) insertLocked(at int, sl core.Slide) core.Slide {
	sl.OrderIndex = at
	s.slides = slices.Insert(s.slides, at, sl)
	ms := []outbox.Mutation{outbox.Insert(sl)}
	ms = append(ms, s.reindexLocked(at+1)...)
	s.pushLocked()
	s.enqueueLocked(ms...)
	return sl
}

// reindexLocked renumbers slides from position from and returns an update
// for every slide whose index changed.
func (s *Session) reindexLocked(from int) []outbox.Mutation {
	var ms []outbox.Mutation
	for i := from; i < len(s.slides); i++ {
		if s.slides[i].OrderIndex != i {
			s.slides[i].OrderIndex = i
			ms = append(ms, outbox.Update(s.presentationID, s.slides[i].ID, core.SlidePatch{OrderIndex: core.Ptr(i)}))
		}
	}
	return ms
}

func (s *Session) restoreLocked(snapshot []core.Slide) {
	s.slides = core.CloneSlides(snapshot)
	if s.cursor >= len(s.slides) {
		s.cursor = max(len(s.slides)-1, 0)
	}
	s.enqueueLocked(outbox.Reconcile(s.presentationID, core.CloneSlides(s.slides)))
}

func (s *Session) pushLocked() {
	s.history.Push(core.CloneSlides(s.slides))
}

// flushLocked records a pending coalesced edit as its own undo step.
func (s *Session) flushLocked() {
	if !s.coalesce.Pending() {
		return
	}
	s.pushLocked()
	s.coalesce.Clear()
}

func (s *Session) enqueueLocked(ms ...outbox.Mutation) {
	if len(ms) == 0 || s.mirror == nil {
		return
	}
	if err := s.mirror.Enqueue(ms...); err != nil {
		logrus.WithError(err).WithField("presentation_id", s.presentationID).Error("Failed to queue slide writes")
		s.dirty = true
	}
}
