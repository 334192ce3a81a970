package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/notify"
	"github.com/Dannidrenovci/myriad-slides/outbox"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type RegistryOptions struct {
	CoalesceWindow time.Duration
	Retry          outbox.RetryPolicy

	// OnChange receives the state of any session after it changed.
	OnChange func(State)
}

type entry struct {
	session *Session
	outbox  *outbox.Outbox
}

// Registry keeps one Session per open presentation.
type Registry struct {
	presentations core.PresentationStore
	slides        core.SlideRowStore
	notices       *notify.Hub
	opts          RegistryOptions

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewRegistry(presentations core.PresentationStore, slides core.SlideRowStore, notices *notify.Hub, opts RegistryOptions) *Registry {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = outbox.DefaultRetryPolicy
	}
	return &Registry{
		presentations: presentations,
		slides:        slides,
		notices:       notices,
		opts:          opts,
		sessions:      make(map[string]*entry),
	}
}

// Open returns the session of a presentation owned by userID, loading it
// from the store on first use. Re-opening a session whose writes were
// dropped writes its full state again.
func (r *Registry) Open(ctx context.Context, userID, presentationID string) (*Session, error) {
	p, err := r.presentations.GetPresentation(ctx, userID, presentationID)
	if err != nil {
		return nil, err
	}
	if p.Status == core.StatusProcessing {
		return nil, ErrProcessing
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[presentationID]; ok {
		if e.session.Dirty() {
			logrus.WithField("presentation_id", presentationID).Info("Reconciling slides after dropped writes")
			if err := e.session.SaveAll(); err != nil {
				return nil, err
			}
		}
		return e.session, nil
	}

	rows, err := r.slides.ListSlides(ctx, presentationID)
	if err != nil {
		return nil, fmt.Errorf("load slides: %w", err)
	}

	ob := outbox.New(r.slides, r.opts.Retry)
	var notices Publisher
	if r.notices != nil {
		notices = r.notices
	}
	s := NewSession(presentationID, rows, ob, notices, Options{
		CoalesceWindow: r.opts.CoalesceWindow,
		OnChange:       r.opts.OnChange,
	})
	ob.OnDrop = s.HandleDrop
	ob.Start()

	r.sessions[presentationID] = &entry{session: s, outbox: ob}
	logrus.WithFields(logrus.Fields{
		"presentation_id": presentationID,
		"slides":          len(rows),
	}).Info("Opened editing session")
	return s, nil
}

// Get returns an already open session.
func (r *Registry) Get(presentationID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[presentationID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Close commits pending edits and waits for the session's writes, bounded by ctx.
func (r *Registry) Close(ctx context.Context, presentationID string) error {
	r.mu.Lock()
	e, ok := r.sessions[presentationID]
	delete(r.sessions, presentationID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return closeEntry(ctx, presentationID, e)
}

// Shutdown closes every session.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	var g errgroup.Group
	for id, e := range sessions {
		g.Go(func() error {
			return closeEntry(ctx, id, e)
		})
	}
	return g.Wait()
}

func closeEntry(ctx context.Context, presentationID string, e *entry) error {
	e.session.Commit()
	if err := e.outbox.Close(ctx); err != nil {
		logrus.WithError(err).WithField("presentation_id", presentationID).Warn("Closed session with unsaved writes")
		return fmt.Errorf("close session %s: %w", presentationID, err)
	}
	logrus.WithField("presentation_id", presentationID).Debug("Closed editing session")
	return nil
}

// Discard forgets a session without storing its pending edits or reporting
// them as failed. Once it returns the session writes nothing more; used
// before the presentation itself is deleted.
func (r *Registry) Discard(presentationID string) {
	r.mu.Lock()
	e, ok := r.sessions[presentationID]
	delete(r.sessions, presentationID)
	r.mu.Unlock()
	if !ok {
		return
	}

	e.outbox.Discard()
	logrus.WithField("presentation_id", presentationID).Debug("Discarded editing session")
}
