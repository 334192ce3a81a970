// Package sessions exposes the editing session of a presentation over HTTP.
// Every mutating route answers with the resulting session state.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/editor"
	"github.com/Dannidrenovci/myriad-slides/layouts"
	"github.com/Dannidrenovci/myriad-slides/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Registry opens and closes editing sessions for a user.
type Registry interface {
	Open(ctx context.Context, userID, presentationID string) (*editor.Session, error)
	Close(ctx context.Context, presentationID string) error
}

type (
	contentRequest struct {
		Index   *int         `json:"index,omitempty"`
		Content core.Content `json:"content"`
	}
	layoutRequest struct {
		Index    *int   `json:"index,omitempty"`
		LayoutID string `json:"layoutId"`
	}
	reorderRequest struct {
		IDs []string `json:"ids"`
	}
	indexRequest struct {
		Index *int `json:"index"`
	}

	layoutInfo struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Fields      []layouts.Field `json:"fields"`
	}
)

// Routes mounts the session routes; the caller provides the {id} parameter
// and authentication.
func Routes(r chi.Router, sessions Registry) {
	r.Get("/", HandleState(sessions))
	r.Put("/content", HandleSetContent(sessions))
	r.Put("/layout", HandleSetLayout(sessions))
	r.Post("/reorder", HandleReorder(sessions))
	r.Post("/slides", HandleAdd(sessions))
	r.Post("/slides/insert", HandleInsert(sessions))
	r.Post("/slides/{index}/duplicate", HandleDuplicate(sessions))
	r.Delete("/slides/{index}", HandleDelete(sessions))
	r.Post("/select", HandleSelect(sessions))
	r.Post("/undo", HandleUndo(sessions))
	r.Post("/redo", HandleRedo(sessions))
	r.Post("/commit", HandleCommit(sessions))
	r.Post("/save", HandleSave(sessions))
	r.Post("/close", HandleClose(sessions))
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// statusFor maps session and store errors to HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "Presentation not found"
	case errors.Is(err, editor.ErrProcessing):
		return http.StatusConflict, "Presentation is still processing"
	case errors.Is(err, editor.ErrLastSlide):
		return http.StatusUnprocessableEntity, "Cannot delete the last slide"
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, "Invalid request body"
	case errors.Is(err, editor.ErrIndexOutOfRange),
		errors.Is(err, editor.ErrInvalidOrder),
		errors.Is(err, editor.ErrNoSlides):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Failed to update presentation"
	}
}

func renderFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("presentation_id", chi.URLParam(r, "id")).Error("Editor operation failed")
	}
	renderError(w, r, status, msg)
}

// withSession resolves the caller's session and runs op on it.
func withSession(sessions Registry, op func(w http.ResponseWriter, r *http.Request, s *editor.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			renderError(w, r, http.StatusUnauthorized, "User claims not found")
			return
		}
		s, err := sessions.Open(r.Context(), claims.Subject, chi.URLParam(r, "id"))
		if err != nil {
			renderFailure(w, r, err)
			return
		}
		if err := op(w, r, s); err != nil {
			renderFailure(w, r, err)
			return
		}
		render.JSON(w, r, s.State())
	}
}

var errBadBody = errors.New("invalid request body")

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<20)).Decode(v); err != nil {
		return errBadBody
	}
	return nil
}

func HandleState(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		return nil
	})
}

func HandleSetContent(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		var req contentRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		if req.Index != nil {
			return s.SetContentAt(*req.Index, req.Content)
		}
		return s.SetContent(req.Content)
	})
}

func HandleSetLayout(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		var req layoutRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		if req.Index != nil {
			return s.SetLayoutAt(*req.Index, req.LayoutID)
		}
		return s.SetLayout(req.LayoutID)
	})
}

func HandleReorder(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		var req reorderRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		return s.Reorder(req.IDs)
	})
}

func HandleAdd(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		_, err := s.Add()
		return err
	})
}

func HandleInsert(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		var req indexRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		if req.Index == nil {
			return editor.ErrIndexOutOfRange
		}
		_, err := s.Insert(*req.Index)
		return err
	})
}

func pathIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, editor.ErrIndexOutOfRange
	}
	return i, nil
}

func HandleDuplicate(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		i, err := pathIndex(r)
		if err != nil {
			return err
		}
		_, err = s.Duplicate(i)
		return err
	})
}

func HandleDelete(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		i, err := pathIndex(r)
		if err != nil {
			return err
		}
		return s.Delete(i)
	})
}

func HandleSelect(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		var req indexRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		if req.Index == nil {
			return editor.ErrIndexOutOfRange
		}
		return s.Select(*req.Index)
	})
}

func HandleUndo(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		return s.Undo()
	})
}

func HandleRedo(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		return s.Redo()
	})
}

func HandleCommit(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		s.Commit()
		return nil
	})
}

// HandleSave writes the whole slide list again, as Ctrl+S does.
func HandleSave(sessions Registry) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *editor.Session) error {
		return s.SaveAll()
	})
}

// HandleClose commits pending edits and waits for the session's writes.
func HandleClose(sessions Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			renderError(w, r, http.StatusUnauthorized, "User claims not found")
			return
		}
		id := chi.URLParam(r, "id")
		if _, err := sessions.Open(r.Context(), claims.Subject, id); err != nil {
			renderFailure(w, r, err)
			return
		}
		if err := sessions.Close(r.Context(), id); err != nil {
			logrus.WithError(err).WithField("presentation_id", id).Warn("Closed session with unsaved writes")
			renderError(w, r, http.StatusServiceUnavailable, "Some changes could not be saved")
			return
		}
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

// HandleLayouts lists the layout catalogue with each layout's fields.
func HandleLayouts() http.HandlerFunc {
	all := layouts.All()
	out := make([]layoutInfo, 0, len(all))
	for _, l := range all {
		out = append(out, layoutInfo{
			ID:          l.ID(),
			Name:        l.Name(),
			Description: l.Description(),
			Fields:      l.Fields(),
		})
	}
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, out)
	}
}
