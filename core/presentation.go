package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by stores when a row or blob does not exist
// (or is not visible to the requesting user).
var ErrNotFound = errors.New("not found")

type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
)

type (
	// Presentation is the metadata row of an uploaded deck.
	Presentation struct {
		ID         string    `json:"id"`
		UserID     string    `json:"-"` // Not exposed in JSON responses, used internally.
		Title      string    `json:"title"`
		Status     Status    `json:"status"`
		FilePath   string    `json:"filePath,omitempty"`
		SlideCount int       `json:"slideCount"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	// Slide is one row of the slides table.
	Slide struct {
		ID             string  `json:"id"`
		PresentationID string  `json:"presentationId"`
		LayoutID       string  `json:"layoutId"`
		Content        Content `json:"content"`
		OrderIndex     int     `json:"orderIndex"`
	}

	// SlidePatch names the columns of a slide update. Nil fields are left as-is.
	SlidePatch struct {
		LayoutID   *string `json:"layoutId,omitempty"`
		Content    Content `json:"content,omitempty"`
		OrderIndex *int    `json:"orderIndex,omitempty"`
	}

	// PresentationStore persists presentation rows. Reads are scoped to a user.
	PresentationStore interface {
		CreatePresentation(ctx context.Context, p *Presentation) error

		// GetPresentation returns the presentation if it belongs to userID.
		// An empty userID skips the ownership check (server-side jobs).
		GetPresentation(ctx context.Context, userID, id string) (*Presentation, error)

		// ListPresentations returns the user's presentations, newest first.
		ListPresentations(ctx context.Context, userID string) ([]*Presentation, error)

		SetPresentationStatus(ctx context.Context, id string, status Status) error

		// DeletePresentation removes the presentation and all of its slides.
		DeletePresentation(ctx context.Context, userID, id string) error
	}

	// SlideRowStore persists slide rows.
	SlideRowStore interface {
		// ListSlides returns the slides of a presentation ordered by OrderIndex.
		ListSlides(ctx context.Context, presentationID string) ([]Slide, error)
		CountSlides(ctx context.Context, presentationID string) (int, error)
		InsertSlides(ctx context.Context, slides ...Slide) error

		// SaveSlide creates or replaces a slide row.
		SaveSlide(ctx context.Context, slide Slide) error
		UpdateSlide(ctx context.Context, id string, patch SlidePatch) error
		DeleteSlide(ctx context.Context, id string) error
	}

	// BlobStore holds uploaded files keyed by an opaque path.
	BlobStore interface {
		PutBlob(ctx context.Context, key string, r io.Reader) error
		GetBlob(ctx context.Context, key string) (io.ReadCloser, error)
		DeleteBlob(ctx context.Context, key string) error
	}
)

// Ptr returns a pointer to v, for building SlidePatch values.
func Ptr[T any](v T) *T {
	return &v
}

// CloneSlides deep-copies a slide list so the result shares no content
// maps or lists with the input.
func CloneSlides(slides []Slide) []Slide {
	out := make([]Slide, len(slides))
	for i, s := range slides {
		out[i] = s
		out[i].Content = s.Content.Clone()
	}
	return out
}
