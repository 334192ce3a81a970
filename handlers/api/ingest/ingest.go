package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/middleware"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Processor turns an uploaded file into slides.
type Processor interface {
	Run(ctx context.Context, presentationID, filePath string) error
}

type ProcessRequest struct {
	PresentationID string `json:"presentationId"`
	FilePath       string `json:"filePath"`
}

// HandleProcess runs ingestion for one of the caller's presentations and
// waits for it to finish.
func HandleProcess(store core.PresentationStore, proc Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var req ProcessRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil ||
			req.PresentationID == "" || req.FilePath == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Missing required fields"})
			return
		}
		log := logrus.WithFields(logrus.Fields{
			"userID":          claims.Subject,
			"presentation_id": req.PresentationID,
			"file_path":       req.FilePath,
		})

		p, err := store.GetPresentation(r.Context(), claims.Subject, req.PresentationID)
		if errors.Is(err, core.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Presentation not found"})
			return
		}
		if err != nil {
			log.WithError(err).Error("Failed to get presentation")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		if p.FilePath != "" && p.FilePath != req.FilePath {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "File does not belong to this presentation"})
			return
		}

		log.Info("Processing PPTX")
		if err := proc.Run(r.Context(), req.PresentationID, req.FilePath); err != nil {
			log.WithError(err).Error("Error processing PPTX")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		render.JSON(w, r, map[string]bool{"success": true})
	}
}
