package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore keeps presentations, slides, users and blobs in process memory.
type memStore struct {
	mu            sync.RWMutex
	presentations map[string]*core.Presentation
	slides        map[string]core.Slide
	users         map[string]*core.User // keyed by lower-cased email
	blobs         map[string][]byte
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		presentations: make(map[string]*core.Presentation),
		slides:        make(map[string]core.Slide),
		users:         make(map[string]*core.User),
		blobs:         make(map[string][]byte),
	}
}

func (s *memStore) CreatePresentation(ctx context.Context, p *core.Presentation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Status == "" {
		p.Status = core.StatusProcessing
	}
	cp := *p
	s.presentations[p.ID] = &cp

	logrus.WithFields(logrus.Fields{"user_id": p.UserID, "presentation_id": p.ID}).Info("Presentation created successfully")
	return nil
}

func (s *memStore) GetPresentation(ctx context.Context, userID, id string) (*core.Presentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.presentations[id]
	if !ok || (userID != "" && p.UserID != userID) {
		logrus.WithFields(logrus.Fields{"user_id": userID, "presentation_id": id}).Warn("Presentation not found for user")
		return nil, core.ErrNotFound
	}
	cp := *p
	cp.SlideCount = s.countLocked(id)
	return &cp, nil
}

func (s *memStore) ListPresentations(ctx context.Context, userID string) ([]*core.Presentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*core.Presentation, 0)
	for _, p := range s.presentations {
		if p.UserID == userID {
			cp := *p
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })

	logrus.WithField("user_id", userID).Infof("Listed %d presentations", len(list))
	return list, nil
}

func (s *memStore) SetPresentationStatus(ctx context.Context, id string, status core.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presentations[id]
	if !ok {
		return core.ErrNotFound
	}
	p.Status = status
	logrus.WithFields(logrus.Fields{"presentation_id": id, "status": status}).Info("Presentation status updated")
	return nil
}

func (s *memStore) DeletePresentation(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presentations[id]
	if !ok || p.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.presentations, id)
	for sid, sl := range s.slides {
		if sl.PresentationID == id {
			delete(s.slides, sid)
		}
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "presentation_id": id}).Info("Presentation deleted successfully")
	return nil
}

func (s *memStore) ListSlides(ctx context.Context, presentationID string) ([]core.Slide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []core.Slide
	for _, sl := range s.slides {
		if sl.PresentationID == presentationID {
			list = append(list, sl)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].OrderIndex < list[j].OrderIndex })
	return core.CloneSlides(list), nil
}

func (s *memStore) CountSlides(ctx context.Context, presentationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(presentationID), nil
}

func (s *memStore) countLocked(presentationID string) int {
	n := 0
	for _, sl := range s.slides {
		if sl.PresentationID == presentationID {
			n++
		}
	}
	return n
}

func (s *memStore) InsertSlides(ctx context.Context, slides ...core.Slide) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sl := range slides {
		if _, exists := s.slides[sl.ID]; sl.ID != "" && exists {
			return fmt.Errorf("slide %s already exists", sl.ID)
		}
	}
	for _, sl := range core.CloneSlides(slides) {
		if sl.ID == "" {
			sl.ID = ulid.Make().String()
		}
		s.slides[sl.ID] = sl
	}
	return nil
}

func (s *memStore) SaveSlide(ctx context.Context, slide core.Slide) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slide.ID == "" {
		return fmt.Errorf("slide ID cannot be empty for save operation")
	}
	slide.Content = slide.Content.Clone()
	s.slides[slide.ID] = slide
	return nil
}

func (s *memStore) UpdateSlide(ctx context.Context, id string, patch core.SlidePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slides[id]
	if !ok {
		return core.ErrNotFound
	}
	if patch.LayoutID != nil {
		sl.LayoutID = *patch.LayoutID
	}
	if patch.Content != nil {
		sl.Content = patch.Content.Clone()
	}
	if patch.OrderIndex != nil {
		sl.OrderIndex = *patch.OrderIndex
	}
	s.slides[id] = sl
	return nil
}

func (s *memStore) DeleteSlide(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slides[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.slides, id)
	return nil
}

func (s *memStore) CreateUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := s.users[key]; exists {
		return fmt.Errorf("user with email %s already exists", user.Email)
	}
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	cp := *user
	s.users[key] = &cp
	return nil
}

func (s *memStore) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) PutBlob(ctx context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read blob: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	logrus.WithFields(logrus.Fields{"key": key, "data_length": len(data)}).Info("Blob stored successfully")
	return nil
}

func (s *memStore) GetBlob(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) DeleteBlob(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}
