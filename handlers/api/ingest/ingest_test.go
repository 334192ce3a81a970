package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/handlers/auth"
	"github.com/Dannidrenovci/myriad-slides/middleware"
	"github.com/Dannidrenovci/myriad-slides/stores/memory"
	"github.com/golang-jwt/jwt/v5"
)

type mockProcessor struct {
	err   error
	calls []ProcessRequest
}

func (m *mockProcessor) Run(ctx context.Context, presentationID, filePath string) error {
	m.calls = append(m.calls, ProcessRequest{PresentationID: presentationID, FilePath: filePath})
	return m.err
}

func request(body, user string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/process-pptx", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		claims := &auth.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: user}}
		req = req.WithContext(context.WithValue(req.Context(), middleware.ClaimsContextKey, claims))
	}
	return req
}

func TestHandleProcess(t *testing.T) {
	store := memory.NewStore()
	p := &core.Presentation{UserID: "alice", Title: "Deck", FilePath: "alice/deck.pptx"}
	if err := store.CreatePresentation(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	valid := `{"presentationId":"` + p.ID + `","filePath":"alice/deck.pptx"}`

	tests := []struct {
		name       string
		body       string
		user       string
		procErr    error
		wantStatus int
		wantBody   string
		wantCalls  int
	}{
		{"success", valid, "alice", nil, http.StatusOK, `"success":true`, 1},
		{"missing file path", `{"presentationId":"` + p.ID + `"}`, "alice", nil, http.StatusBadRequest, "Missing required fields", 0},
		{"missing everything", `{}`, "alice", nil, http.StatusBadRequest, "Missing required fields", 0},
		{"not json", `nope`, "alice", nil, http.StatusBadRequest, "Missing required fields", 0},
		{"other user", valid, "bob", nil, http.StatusNotFound, "not found", 0},
		{"foreign file", `{"presentationId":"` + p.ID + `","filePath":"bob/x.pptx"}`, "alice", nil, http.StatusBadRequest, "does not belong", 0},
		{"pipeline failure", valid, "alice", errors.New("model unavailable"), http.StatusInternalServerError, "model unavailable", 1},
		{"anonymous", valid, "", nil, http.StatusUnauthorized, "claims", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &mockProcessor{err: tt.procErr}
			rec := httptest.NewRecorder()
			HandleProcess(store, proc)(rec, request(tt.body, tt.user))

			if rec.Code != tt.wantStatus {
				t.Errorf("Status code mismatch: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %q", rec.Body, tt.wantBody)
			}
			if len(proc.calls) != tt.wantCalls {
				t.Errorf("processor called %d times, want %d", len(proc.calls), tt.wantCalls)
			}
		})
	}
}
