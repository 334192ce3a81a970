// Package ingest turns an uploaded PowerPoint file into slide rows.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"time"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/layouts"
	"github.com/Dannidrenovci/myriad-slides/llm"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// MaxFileSize bounds the uploaded deck read into memory.
const MaxFileSize = 100 << 20

// ErrMalformedResponse is returned when the model's answer is not the
// expected {"slides": [...]} document or holds no slides.
var ErrMalformedResponse = errors.New("malformed model response")

type Pipeline struct {
	Presentations core.PresentationStore
	Slides        core.SlideRowStore
	Blobs         core.BlobStore
	Model         llm.Completer

	policy *bluemonday.Policy
}

func New(presentations core.PresentationStore, slides core.SlideRowStore, blobs core.BlobStore, model llm.Completer) *Pipeline {
	return &Pipeline{
		Presentations: presentations,
		Slides:        slides,
		Blobs:         blobs,
		Model:         model,
		policy:        bluemonday.StrictPolicy(),
	}
}

type generated struct {
	Slides []struct {
		LayoutID string       `json:"layoutId"`
		Content  core.Content `json:"content"`
	} `json:"slides"`
}

// Run downloads filePath, asks the model for a slide structure, stores the
// slides of presentationID and marks it ready. On error the presentation
// keeps its processing status. Slides left by an earlier failed run are
// replaced.
func (p *Pipeline) Run(ctx context.Context, presentationID, filePath string) error {
	log := logrus.WithFields(logrus.Fields{
		"presentation_id": presentationID,
		"file_path":       filePath,
	})
	start := time.Now()

	text, err := p.extract(ctx, filePath)
	if err != nil {
		log.WithError(err).Error("Failed to extract presentation text")
		return err
	}
	log.WithField("text_length", len(text)).Debug("Extracted text from PPTX")

	answer, err := p.Model.CompleteJSON(ctx, SystemPrompt(), text)
	if err != nil {
		log.WithError(err).Error("Failed to structure slides")
		return fmt.Errorf("structure slides: %w", err)
	}
	slides, err := p.parse(presentationID, answer)
	if err != nil {
		log.WithError(err).Error("Failed to parse model response")
		return err
	}

	if err := p.replaceSlides(ctx, presentationID, slides); err != nil {
		log.WithError(err).Error("Failed to save slides")
		return err
	}
	if err := p.Presentations.SetPresentationStatus(ctx, presentationID, core.StatusReady); err != nil {
		log.WithError(err).Error("Failed to update presentation status")
		return fmt.Errorf("update status: %w", err)
	}

	log.WithFields(logrus.Fields{
		"slides":   len(slides),
		"duration": time.Since(start).String(),
	}).Info("Presentation processed")
	return nil
}

func (p *Pipeline) extract(ctx context.Context, filePath string) (string, error) {
	rc, err := p.Blobs.GetBlob(ctx, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	if len(data) > MaxFileSize {
		return "", fmt.Errorf("file is larger than %d bytes", MaxFileSize)
	}

	deck, err := ExtractPPTX(data)
	if err != nil {
		return "", err
	}
	return Text(deck)
}

func (p *Pipeline) parse(presentationID, answer string) ([]core.Slide, error) {
	var out generated
	if err := json.Unmarshal([]byte(answer), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(out.Slides) == 0 {
		return nil, fmt.Errorf("%w: no slides", ErrMalformedResponse)
	}

	slides := make([]core.Slide, 0, len(out.Slides))
	for i, s := range out.Slides {
		layoutID := s.LayoutID
		if layoutID == "" {
			layoutID = layouts.Default.String()
		}
		slides = append(slides, core.Slide{
			ID:             ulid.Make().String(),
			PresentationID: presentationID,
			LayoutID:       p.clean(layoutID),
			Content:        p.cleanContent(s.Content),
			OrderIndex:     i,
		})
	}
	return slides, nil
}

func (p *Pipeline) replaceSlides(ctx context.Context, presentationID string, slides []core.Slide) error {
	stale, err := p.Slides.ListSlides(ctx, presentationID)
	if err != nil {
		return fmt.Errorf("list slides: %w", err)
	}
	for _, s := range stale {
		if err := p.Slides.DeleteSlide(ctx, s.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("delete stale slide %s: %w", s.ID, err)
		}
	}
	if len(slides) == 0 {
		return nil
	}
	if err := p.Slides.InsertSlides(ctx, slides...); err != nil {
		return fmt.Errorf("insert slides: %w", err)
	}
	return nil
}

// clean strips markup from model output; the editor shows plain text.
func (p *Pipeline) clean(s string) string {
	return html.UnescapeString(p.policy.Sanitize(s))
}

func (p *Pipeline) cleanContent(c core.Content) core.Content {
	out := make(core.Content, len(c))
	for k, v := range c {
		switch val := v.(type) {
		case string:
			out[k] = p.clean(val)
		case []any:
			items := make([]string, 0, len(val))
			for _, item := range (core.Content{k: val}).List(k) {
				items = append(items, p.clean(item))
			}
			out[k] = items
		case nil:
		default:
			out[k] = p.clean(fmt.Sprint(val))
		}
	}
	return out
}
