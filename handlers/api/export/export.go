package export

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/editor"
	slideexport "github.com/Dannidrenovci/myriad-slides/export"
	"github.com/Dannidrenovci/myriad-slides/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// PDFWriter renders slides into a PDF.
type PDFWriter interface {
	WritePDF(w io.Writer, slides []core.Slide) error
}

// OpenSessions finds the editing session of a presentation, if one is open.
type OpenSessions interface {
	Get(presentationID string) (*editor.Session, bool)
}

// HandleExportPDF renders the presentation as shown in the editor, or as
// stored when no session is open, and sends it as a PDF download.
func HandleExportPDF(store core.PresentationStore, slides core.SlideRowStore, sessions OpenSessions, pdf PDFWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}
		id := chi.URLParam(r, "id")
		log := logrus.WithFields(logrus.Fields{
			"userID":          claims.Subject,
			"presentation_id": id,
		})

		p, err := store.GetPresentation(r.Context(), claims.Subject, id)
		if errors.Is(err, core.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Presentation not found"})
			return
		}
		if err != nil {
			log.WithError(err).Error("Failed to get presentation")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to export presentation"})
			return
		}

		var list []core.Slide
		if s, ok := sessions.Get(id); ok {
			list = s.Slides()
		} else if list, err = slides.ListSlides(r.Context(), id); err != nil {
			log.WithError(err).Error("Failed to list slides")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to export presentation"})
			return
		}
		if len(list) == 0 {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, map[string]string{"error": "Presentation has no slides"})
			return
		}

		var buf bytes.Buffer
		if err := pdf.WritePDF(&buf, list); err != nil {
			log.WithError(err).Error("Failed to render PDF")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to export presentation"})
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": slideexport.FileName(p.Title),
		}))
		if _, err := buf.WriteTo(w); err != nil {
			log.WithError(err).Warn("Failed to send PDF")
			return
		}
		log.WithField("slides", len(list)).Info("Presentation exported")
	}
}
