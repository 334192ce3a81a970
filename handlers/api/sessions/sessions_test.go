package sessions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/editor"
	"github.com/Dannidrenovci/myriad-slides/handlers/auth"
	"github.com/Dannidrenovci/myriad-slides/middleware"
	"github.com/Dannidrenovci/myriad-slides/stores/memory"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
)

type fixture struct {
	router   *chi.Mux
	store    interface{ core.SlideRowStore }
	registry *editor.Registry
	id       string
}

// asUser injects claims for the subject named in the X-Test-User header.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := &auth.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: r.Header.Get("X-Test-User")}}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), middleware.ClaimsContextKey, claims)))
	})
}

func setup(t *testing.T, status core.Status, ids ...string) *fixture {
	t.Helper()
	return setupWith(t, editor.RegistryOptions{}, status, ids...)
}

func setupWith(t *testing.T, opts editor.RegistryOptions, status core.Status, ids ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	p := &core.Presentation{UserID: "alice", Title: "Deck", Status: status}
	if err := store.CreatePresentation(ctx, p); err != nil {
		t.Fatal(err)
	}
	for i, id := range ids {
		s := core.Slide{ID: id, PresentationID: p.ID, LayoutID: "TitleAndBody", OrderIndex: i, Content: core.Content{"title": id}}
		if err := store.InsertSlides(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	reg := editor.NewRegistry(store, store, nil, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		reg.Shutdown(ctx)
	})

	r := chi.NewRouter()
	r.Use(asUser)
	r.Get("/api/layouts", HandleLayouts())
	r.Route("/api/presentations/{id}/editor", func(r chi.Router) {
		Routes(r, reg)
	})
	return &fixture{router: r, store: store, registry: reg, id: p.ID}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, editor.State) {
	t.Helper()
	return f.doAs(t, "alice", method, path, body)
}

func (f *fixture) doAs(t *testing.T, user, method, path, body string) (*httptest.ResponseRecorder, editor.State) {
	t.Helper()
	req := httptest.NewRequest(method, "/api/presentations/"+f.id+"/editor"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var state editor.State
	if rec.Code == http.StatusOK {
		json.Unmarshal(rec.Body.Bytes(), &state)
	}
	return rec, state
}

func ids(state editor.State) []string {
	out := make([]string, len(state.Slides))
	for i, s := range state.Slides {
		out[i] = s.ID
	}
	return out
}

func TestState(t *testing.T) {
	f := setup(t, core.StatusReady, "A", "B")
	rec, state := f.do(t, "GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if diff := cmp.Diff([]string{"A", "B"}, ids(state)); diff != "" {
		t.Errorf("slides mismatch (-want +got):\n%s", diff)
	}
	if state.CanUndo || state.CanRedo || state.Cursor != 0 {
		t.Errorf("fresh state = %+v", state)
	}
}

func TestOpenErrors(t *testing.T) {
	f := setup(t, core.StatusReady, "A")
	if rec, _ := f.doAs(t, "mallory", "GET", "/", ""); rec.Code != http.StatusNotFound {
		t.Errorf("other user status = %d, want 404", rec.Code)
	}

	p := setup(t, core.StatusProcessing, "A")
	if rec, _ := p.do(t, "GET", "/", ""); rec.Code != http.StatusConflict {
		t.Errorf("processing status = %d, want 409", rec.Code)
	}
}

func TestReorderUndoRedo(t *testing.T) {
	f := setup(t, core.StatusReady, "A", "B")

	rec, state := f.do(t, "POST", "/reorder", `{"ids":["B","A"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder status = %d, body %s", rec.Code, rec.Body)
	}
	if diff := cmp.Diff([]string{"B", "A"}, ids(state)); diff != "" {
		t.Errorf("reorder mismatch (-want +got):\n%s", diff)
	}
	if !state.CanUndo || state.Slides[0].OrderIndex != 0 || state.Slides[1].OrderIndex != 1 {
		t.Errorf("state after reorder = %+v", state)
	}

	_, state = f.do(t, "POST", "/undo", "")
	if diff := cmp.Diff([]string{"A", "B"}, ids(state)); diff != "" || !state.CanRedo {
		t.Errorf("undo: %s canRedo=%v", diff, state.CanRedo)
	}
	_, state = f.do(t, "POST", "/redo", "")
	if diff := cmp.Diff([]string{"B", "A"}, ids(state)); diff != "" {
		t.Errorf("redo mismatch (-want +got):\n%s", diff)
	}

	if rec, _ := f.do(t, "POST", "/close", ""); rec.Code != http.StatusOK {
		t.Fatalf("close status = %d", rec.Code)
	}
	rows, _ := f.store.ListSlides(context.Background(), f.id)
	if len(rows) != 2 || rows[0].ID != "B" || rows[0].OrderIndex != 0 || rows[1].ID != "A" {
		t.Errorf("stored rows = %+v", rows)
	}
}

func TestSetContent_IndexedEditsCoalesce(t *testing.T) {
	f := setupWith(t, editor.RegistryOptions{CoalesceWindow: time.Minute}, core.StatusReady, "A", "B")

	for _, text := range []string{"xa", "xab", "xabc"} {
		body := `{"index":0,"content":{"title":"` + text + `"}}`
		if rec, _ := f.do(t, "PUT", "/content", body); rec.Code != http.StatusOK {
			t.Fatalf("PUT /content status = %d, body %s", rec.Code, rec.Body)
		}
	}

	_, state := f.do(t, "POST", "/undo", "")
	if got := state.Slides[0].Content.Text("title"); got != "A" || state.CanUndo {
		t.Errorf("after one undo title = %q canUndo = %v, want %q and false", got, state.CanUndo, "A")
	}
}

func TestValidationErrors(t *testing.T) {
	f := setup(t, core.StatusReady, "A", "B")
	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"reorder missing id", "POST", "/reorder", `{"ids":["A"]}`, http.StatusBadRequest},
		{"reorder unknown id", "POST", "/reorder", `{"ids":["A","Z"]}`, http.StatusBadRequest},
		{"broken body", "PUT", "/content", `{"content":`, http.StatusBadRequest},
		{"select out of range", "POST", "/select", `{"index":5}`, http.StatusBadRequest},
		{"select without index", "POST", "/select", `{}`, http.StatusBadRequest},
		{"duplicate bad index", "POST", "/slides/x/duplicate", "", http.StatusBadRequest},
		{"delete out of range", "DELETE", "/slides/9", "", http.StatusBadRequest},
		{"insert out of range", "POST", "/slides/insert", `{"index":3}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec, _ := f.do(t, tt.method, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}

	_, state := f.do(t, "GET", "/", "")
	if state.CanUndo {
		t.Error("rejected requests recorded an undo step")
	}
}

func TestSlideLifecycle(t *testing.T) {
	f := setup(t, core.StatusReady, "A")

	rec, _ := f.do(t, "DELETE", "/slides/0", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("delete last slide status = %d, want 422", rec.Code)
	}

	_, state := f.do(t, "POST", "/slides/0/duplicate", "")
	if len(state.Slides) != 2 || state.Slides[1].Content.Text("title") != "A" || state.Cursor != 0 {
		t.Fatalf("after duplicate = %+v", state)
	}

	_, state = f.do(t, "POST", "/slides", "")
	if len(state.Slides) != 3 || state.Cursor != 2 || state.Slides[2].LayoutID != "TitleAndBody" {
		t.Fatalf("after add = %+v", state)
	}

	_, state = f.do(t, "PUT", "/content", `{"index":1,"content":{"title":"Copy"}}`)
	if state.Cursor != 1 || state.Slides[1].Content.Text("title") != "Copy" {
		t.Errorf("after set content = %+v", state)
	}
	_, state = f.do(t, "PUT", "/layout", `{"layoutId":"Quote"}`)
	if state.Slides[1].LayoutID != "Quote" || state.Slides[1].Content.Text("title") != "Copy" {
		t.Errorf("after set layout = %+v", state)
	}

	_, state = f.do(t, "DELETE", "/slides/2", "")
	if len(state.Slides) != 2 || state.Cursor != 1 {
		t.Errorf("after delete = %+v", state)
	}

	if rec, state := f.do(t, "POST", "/save", ""); rec.Code != http.StatusOK || state.Dirty {
		t.Errorf("save = %d dirty=%v", rec.Code, state.Dirty)
	}
}

func TestLayouts(t *testing.T) {
	f := setup(t, core.StatusReady)
	req := httptest.NewRequest("GET", "/api/layouts", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var got []layoutInfo
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	want := []string{"TitleSlide", "TitleAndBody", "BulletedList", "SectionHeader", "TwoColumn", "Quote"}
	var gotIDs []string
	for _, l := range got {
		gotIDs = append(gotIDs, l.ID)
		if len(l.Fields) == 0 {
			t.Errorf("layout %s has no fields", l.ID)
		}
	}
	if diff := cmp.Diff(want, gotIDs); diff != "" {
		t.Errorf("layouts mismatch (-want +got):\n%s", diff)
	}
}
