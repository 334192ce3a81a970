// Package outbox mirrors local slide mutations to the row store.
//
// Each editing session owns one Outbox. Mutations are applied by a single
// worker in the order they were enqueued, so the last edit is the one that
// lands. A failed mutation is retried with exponential backoff; after the
// last attempt it is dropped and reported through OnDrop, and the owner is
// expected to enqueue a Reconcile once the store is reachable again.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/sirupsen/logrus"
)

// ErrClosed is returned when enqueueing on a closed outbox.
var ErrClosed = errors.New("outbox is closed")

type Op string

const (
	OpInsert    Op = "insert"
	OpUpdate    Op = "update"
	OpDelete    Op = "delete"
	OpReconcile Op = "reconcile"
)

// Mutation is one remote write.
type Mutation struct {
	Op             Op
	PresentationID string
	Slide          core.Slide      // OpInsert
	SlideID        string          // OpUpdate, OpDelete
	Patch          core.SlidePatch // OpUpdate
	Slides         []core.Slide    // OpReconcile: the full desired state
}

func Insert(slide core.Slide) Mutation {
	return Mutation{Op: OpInsert, PresentationID: slide.PresentationID, Slide: slide}
}

func Update(presentationID, slideID string, patch core.SlidePatch) Mutation {
	return Mutation{Op: OpUpdate, PresentationID: presentationID, SlideID: slideID, Patch: patch}
}

func Delete(presentationID, slideID string) Mutation {
	return Mutation{Op: OpDelete, PresentationID: presentationID, SlideID: slideID}
}

// Reconcile makes the stored slides of a presentation equal to slides.
func Reconcile(presentationID string, slides []core.Slide) Mutation {
	return Mutation{Op: OpReconcile, PresentationID: presentationID, Slides: slides}
}

func (m Mutation) String() string {
	switch m.Op {
	case OpInsert:
		return fmt.Sprintf("insert slide %s", m.Slide.ID)
	case OpReconcile:
		return fmt.Sprintf("reconcile %d slides of %s", len(m.Slides), m.PresentationID)
	default:
		return fmt.Sprintf("%s slide %s", m.Op, m.SlideID)
	}
}

// RetryPolicy bounds how long a mutation is retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries five times, 200ms doubling up to 5s.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}

// delay is the wait after the given failed attempt. A zero BaseDelay
// retries immediately; MaxDelay caps the wait only when positive.
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 1 {
		return 0
	}
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || d>>(attempt-1) != p.BaseDelay {
		// overflow
		d = time.Duration(math.MaxInt64)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

type Outbox struct {
	store  core.SlideRowStore
	policy RetryPolicy

	// OnDrop is called from the worker when a mutation exhausted its retries.
	OnDrop func(m Mutation, err error)
	// OnApplied is called from the worker after a mutation was stored.
	OnApplied func(m Mutation)

	mu        sync.Mutex
	queue     []Mutation
	inflight  bool
	idle      chan struct{}
	closed    bool
	discarded bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// New returns an outbox writing to store. Call Start to run the worker.
func New(store core.SlideRowStore, policy RetryPolicy) *Outbox {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	idle := make(chan struct{})
	close(idle)
	return &Outbox{
		store:  store,
		policy: policy,
		idle:   idle,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the worker until Close.
func (o *Outbox) Start() {
	go o.run()
}

// Enqueue appends mutations; it never blocks on the store.
func (o *Outbox) Enqueue(ms ...Mutation) error {
	if len(ms) == 0 {
		return nil
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if len(o.queue) == 0 && !o.inflight {
		o.idle = make(chan struct{})
	}
	o.queue = append(o.queue, ms...)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending is the number of mutations not yet applied or dropped.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.queue)
	if o.inflight {
		n++
	}
	return n
}

// Flush waits until every enqueued mutation was applied or dropped.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	idle := o.idle
	o.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue (bounded by ctx) and stops the worker. Mutations
// still queued when ctx expires are dropped.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		<-o.done
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	err := o.Flush(ctx)
	close(o.stop)
	<-o.done
	return err
}

// Discard stops the worker and throws the queue away without reporting
// the mutations through OnDrop. A write in flight is cancelled. When
// Discard returns no further write reaches the store.
func (o *Outbox) Discard() {
	o.mu.Lock()
	o.discarded = true
	o.queue = nil
	if !o.inflight {
		o.markIdleLocked()
	}
	stopping := o.closed
	o.closed = true
	o.mu.Unlock()

	if !stopping {
		close(o.stop)
	}
	<-o.done
}

func (o *Outbox) reportDrop(m Mutation, err error) {
	o.mu.Lock()
	discarded := o.discarded
	o.mu.Unlock()
	if !discarded && o.OnDrop != nil {
		o.OnDrop(m, err)
	}
}

func (o *Outbox) run() {
	defer close(o.done)
	for {
		select {
		case <-o.stop:
			o.dropRemaining()
			return
		default:
		}

		m, ok := o.next()
		if !ok {
			select {
			case <-o.wake:
				continue
			case <-o.stop:
				continue
			}
		}
		o.deliver(m)

		o.mu.Lock()
		o.inflight = false
		if len(o.queue) == 0 {
			o.markIdleLocked()
		}
		o.mu.Unlock()
	}
}

func (o *Outbox) dropRemaining() {
	o.mu.Lock()
	rest := o.queue
	o.queue = nil
	o.markIdleLocked()
	o.mu.Unlock()

	for _, m := range rest {
		logrus.WithFields(logrus.Fields{
			"presentation_id": m.PresentationID,
			"mutation":        m.String(),
		}).Error("Dropping mutation, outbox closed")
		o.reportDrop(m, ErrClosed)
	}
}

func (o *Outbox) markIdleLocked() {
	select {
	case <-o.idle:
	default:
		close(o.idle)
	}
}

func (o *Outbox) next() (Mutation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return Mutation{}, false
	}
	m := o.queue[0]
	o.queue = o.queue[1:]
	o.inflight = true
	return m, true
}

func (o *Outbox) deliver(m Mutation) {
	log := logrus.WithFields(logrus.Fields{
		"presentation_id": m.PresentationID,
		"mutation":        m.String(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-o.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	var err error
	for attempt := 1; attempt <= o.policy.MaxAttempts; attempt++ {
		if err = Apply(ctx, o.store, m); err == nil {
			log.Debug("Mutation stored")
			if o.OnApplied != nil {
				o.OnApplied(m)
			}
			return
		}
		log.WithError(err).WithField("attempt", attempt).Warn("Failed to store mutation")
		if attempt == o.policy.MaxAttempts {
			break
		}
		if serr := sleepCtx(ctx, o.policy.delay(attempt)); serr != nil {
			err = serr
			break
		}
	}

	log.WithError(err).Error("Dropping mutation")
	o.reportDrop(m, err)
}

// Apply performs m against store once.
func Apply(ctx context.Context, store core.SlideRowStore, m Mutation) error {
	switch m.Op {
	case OpInsert:
		return store.InsertSlides(ctx, m.Slide)
	case OpUpdate:
		return store.UpdateSlide(ctx, m.SlideID, m.Patch)
	case OpDelete:
		err := store.DeleteSlide(ctx, m.SlideID)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	case OpReconcile:
		return reconcile(ctx, store, m.PresentationID, m.Slides)
	default:
		return fmt.Errorf("unknown mutation op %q", m.Op)
	}
}

func reconcile(ctx context.Context, store core.SlideRowStore, presentationID string, slides []core.Slide) error {
	stored, err := store.ListSlides(ctx, presentationID)
	if err != nil {
		return fmt.Errorf("list slides: %w", err)
	}
	keep := make(map[string]bool, len(slides))
	for _, s := range slides {
		keep[s.ID] = true
		if err := store.SaveSlide(ctx, s); err != nil {
			return fmt.Errorf("save slide %s: %w", s.ID, err)
		}
	}
	for _, s := range stored {
		if keep[s.ID] {
			continue
		}
		if err := store.DeleteSlide(ctx, s.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("delete slide %s: %w", s.ID, err)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
