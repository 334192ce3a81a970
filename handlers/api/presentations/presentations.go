package presentations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/ingest"
	"github.com/Dannidrenovci/myriad-slides/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ProcessTimeout bounds one background ingestion run.
const ProcessTimeout = 10 * time.Minute

// Processor turns an uploaded file into slides.
type Processor interface {
	Run(ctx context.Context, presentationID, filePath string) error
}

// SessionDiscarder drops the editing session of a deleted presentation.
type SessionDiscarder interface {
	Discard(presentationID string)
}

type uploadResponse struct {
	Presentation *core.Presentation `json:"presentation"`
	Redirect     string             `json:"redirect"`
}

type presentationResponse struct {
	Presentation *core.Presentation `json:"presentation"`
	Slides       []core.Slide       `json:"slides"`
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// HandleList returns the user's presentations, newest first, with slide
// counts. ?q= filters by title.
func HandleList(store core.PresentationStore, slides core.SlideRowStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			renderError(w, r, http.StatusUnauthorized, "User claims not found")
			return
		}

		list, err := store.ListPresentations(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list presentations")
			renderError(w, r, http.StatusInternalServerError, "Failed to list presentations")
			return
		}

		out := []*core.Presentation{}
		q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
		for _, p := range list {
			if q == "" || strings.Contains(strings.ToLower(p.Title), q) {
				out = append(out, p)
			}
		}

		g, ctx := errgroup.WithContext(r.Context())
		g.SetLimit(8)
		for _, p := range out {
			g.Go(func() error {
				n, err := slides.CountSlides(ctx, p.ID)
				if err != nil {
					return fmt.Errorf("count slides of %s: %w", p.ID, err)
				}
				p.SlideCount = n
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			logrus.WithError(err).WithField("userID", claims.Subject).Error("Failed to count slides")
			renderError(w, r, http.StatusInternalServerError, "Failed to list presentations")
			return
		}
		render.JSON(w, r, out)
	}
}

// HandleUpload stores a .pptx upload, creates its presentation in the
// processing state and starts ingestion in the background.
func HandleUpload(store core.PresentationStore, blobs core.BlobStore, proc Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			renderError(w, r, http.StatusUnauthorized, "User claims not found")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, ingest.MaxFileSize+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			renderError(w, r, http.StatusBadRequest, "Invalid upload")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			renderError(w, r, http.StatusBadRequest, "A .pptx file is required")
			return
		}
		defer file.Close()

		ext := filepath.Ext(header.Filename)
		if !strings.EqualFold(ext, ".pptx") {
			renderError(w, r, http.StatusBadRequest, "Only .pptx files are supported")
			return
		}
		if header.Size > ingest.MaxFileSize {
			renderError(w, r, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}

		title := strings.TrimSpace(r.FormValue("title"))
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(header.Filename), ext)
		}
		key := fmt.Sprintf("%s/%s.pptx", blobPrefix(claims.Subject), uuid.NewString())
		log := logrus.WithFields(logrus.Fields{
			"userID":    claims.Subject,
			"file_path": key,
		})

		if err := blobs.PutBlob(r.Context(), key, file); err != nil {
			log.WithError(err).Error("Failed to store upload")
			renderError(w, r, http.StatusInternalServerError, "Failed to store upload")
			return
		}

		p := &core.Presentation{
			UserID:   claims.Subject,
			Title:    title,
			Status:   core.StatusProcessing,
			FilePath: key,
		}
		if err := store.CreatePresentation(r.Context(), p); err != nil {
			log.WithError(err).Error("Failed to create presentation")
			if derr := blobs.DeleteBlob(context.WithoutCancel(r.Context()), key); derr != nil {
				log.WithError(derr).Warn("Failed to remove orphaned upload")
			}
			renderError(w, r, http.StatusInternalServerError, "Failed to create presentation")
			return
		}
		log.WithField("presentation_id", p.ID).Info("Presentation uploaded")

		go func(id, path string) {
			ctx, cancel := context.WithTimeout(context.Background(), ProcessTimeout)
			defer cancel()
			if err := proc.Run(ctx, id, path); err != nil {
				logrus.WithError(err).WithField("presentation_id", id).Error("Background processing failed")
			}
		}(p.ID, key)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, uploadResponse{Presentation: p, Redirect: "/dashboard"})
	}
}

// blobPrefix keeps user subjects like "github:42" usable as a key segment.
func blobPrefix(subject string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, subject)
}

func HandleGet(store core.PresentationStore, slides core.SlideRowStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			renderError(w, r, http.StatusUnauthorized, "User claims not found")
			return
		}
		id := chi.URLParam(r, "id")

		p, err := store.GetPresentation(r.Context(), claims.Subject, id)
		if errors.Is(err, core.ErrNotFound) {
			renderError(w, r, http.StatusNotFound, "Presentation not found")
			return
		}
		if err != nil {
			logrus.WithError(err).WithField("presentation_id", id).Error("Failed to get presentation")
			renderError(w, r, http.StatusInternalServerError, "Failed to get presentation")
			return
		}

		rows, err := slides.ListSlides(r.Context(), id)
		if err != nil {
			logrus.WithError(err).WithField("presentation_id", id).Error("Failed to list slides")
			renderError(w, r, http.StatusInternalServerError, "Failed to get presentation")
			return
		}
		if rows == nil {
			rows = []core.Slide{}
		}
		p.SlideCount = len(rows)
		render.JSON(w, r, presentationResponse{Presentation: p, Slides: rows})
	}
}

// HandleDelete removes the presentation, its slides and its uploaded file.
func HandleDelete(store core.PresentationStore, blobs core.BlobStore, sessions SessionDiscarder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			renderError(w, r, http.StatusUnauthorized, "User claims not found")
			return
		}
		id := chi.URLParam(r, "id")
		log := logrus.WithFields(logrus.Fields{
			"userID":          claims.Subject,
			"presentation_id": id,
		})

		p, err := store.GetPresentation(r.Context(), claims.Subject, id)
		if errors.Is(err, core.ErrNotFound) {
			renderError(w, r, http.StatusNotFound, "Presentation not found")
			return
		}
		if err != nil {
			log.WithError(err).Error("Failed to get presentation")
			renderError(w, r, http.StatusInternalServerError, "Failed to delete presentation")
			return
		}

		// The open session must stop writing before its rows go away.
		if sessions != nil {
			sessions.Discard(id)
		}
		if err := store.DeletePresentation(r.Context(), claims.Subject, id); err != nil {
			log.WithError(err).Error("Failed to delete presentation")
			renderError(w, r, http.StatusInternalServerError, "Failed to delete presentation")
			return
		}
		if p.FilePath != "" {
			if err := blobs.DeleteBlob(r.Context(), p.FilePath); err != nil && !errors.Is(err, core.ErrNotFound) {
				log.WithError(err).Warn("Failed to delete uploaded file")
			}
		}

		log.Info("Presentation deleted")
		render.JSON(w, r, map[string]bool{"success": true})
	}
}
