// Package storetest holds behaviour tests shared by every store implementation.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/google/go-cmp/cmp"
)

// RowStore is what a row store implements.
type RowStore interface {
	core.PresentationStore
	core.SlideRowStore
	core.UserStore
}

// TestRowStore runs the row store contract against a fresh store from newStore.
func TestRowStore(t *testing.T, newStore func(t *testing.T) RowStore) {
	t.Run("Presentations", func(t *testing.T) { testPresentations(t, newStore(t)) })
	t.Run("Slides", func(t *testing.T) { testSlides(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

func testPresentations(t *testing.T, store RowStore) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	older := &core.Presentation{UserID: "alice", Title: "Q1 Review", CreatedAt: base}
	newer := &core.Presentation{UserID: "alice", Title: "Roadmap", CreatedAt: base.Add(time.Minute), FilePath: "alice/x.pptx"}
	foreign := &core.Presentation{UserID: "bob", Title: "Secret", CreatedAt: base}
	for _, p := range []*core.Presentation{older, newer, foreign} {
		if err := store.CreatePresentation(ctx, p); err != nil {
			t.Fatalf("CreatePresentation() failed: %v", err)
		}
		if p.ID == "" {
			t.Fatal("CreatePresentation() did not assign an ID")
		}
	}
	if newer.Status != core.StatusProcessing {
		t.Errorf("new presentation status = %q, want processing", newer.Status)
	}

	list, err := store.ListPresentations(ctx, "alice")
	if err != nil {
		t.Fatalf("ListPresentations() failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("ListPresentations() = %+v, want newest first and only alice's", list)
	}

	got, err := store.GetPresentation(ctx, "alice", newer.ID)
	if err != nil {
		t.Fatalf("GetPresentation() failed: %v", err)
	}
	if got.Title != "Roadmap" || got.FilePath != "alice/x.pptx" || got.UserID != "alice" {
		t.Errorf("GetPresentation() = %+v", got)
	}
	if _, err := store.GetPresentation(ctx, "alice", foreign.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetPresentation(other user) error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetPresentation(ctx, "", foreign.ID); err != nil {
		t.Errorf("GetPresentation(no user) error = %v, want nil", err)
	}

	if err := store.SetPresentationStatus(ctx, newer.ID, core.StatusReady); err != nil {
		t.Fatalf("SetPresentationStatus() failed: %v", err)
	}
	got, _ = store.GetPresentation(ctx, "alice", newer.ID)
	if got.Status != core.StatusReady {
		t.Errorf("status = %q, want ready", got.Status)
	}
	if err := store.SetPresentationStatus(ctx, "missing", core.StatusReady); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("SetPresentationStatus(missing) error = %v, want ErrNotFound", err)
	}

	if err := store.InsertSlides(ctx, core.Slide{ID: "s1", PresentationID: newer.ID, LayoutID: "Quote", Content: core.Content{}}); err != nil {
		t.Fatalf("InsertSlides() failed: %v", err)
	}
	got, _ = store.GetPresentation(ctx, "alice", newer.ID)
	if got.SlideCount != 1 {
		t.Errorf("SlideCount = %d, want 1", got.SlideCount)
	}

	if err := store.DeletePresentation(ctx, "bob", newer.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeletePresentation(other user) error = %v, want ErrNotFound", err)
	}
	if err := store.DeletePresentation(ctx, "alice", newer.ID); err != nil {
		t.Fatalf("DeletePresentation() failed: %v", err)
	}
	if n, _ := store.CountSlides(ctx, newer.ID); n != 0 {
		t.Errorf("DeletePresentation() left %d slides", n)
	}
}

func testSlides(t *testing.T, store RowStore) {
	ctx := context.Background()
	slides := []core.Slide{
		{ID: "b", PresentationID: "p", LayoutID: "BulletedList", OrderIndex: 1,
			Content: core.Content{"title": "Agenda", "items": []any{"one", "two"}}},
		{ID: "a", PresentationID: "p", LayoutID: "TitleSlide", OrderIndex: 0,
			Content: core.Content{"title": "Hello", "subtitle": "World"}},
		{ID: "x", PresentationID: "other", LayoutID: "Quote", OrderIndex: 0, Content: core.Content{}},
	}
	if err := store.InsertSlides(ctx, slides...); err != nil {
		t.Fatalf("InsertSlides() failed: %v", err)
	}

	got, err := store.ListSlides(ctx, "p")
	if err != nil {
		t.Fatalf("ListSlides() failed: %v", err)
	}
	if diff := cmp.Diff([]core.Slide{slides[1], slides[0]}, got); diff != "" {
		t.Errorf("ListSlides() mismatch (-want +got):\n%s", diff)
	}
	if n, _ := store.CountSlides(ctx, "p"); n != 2 {
		t.Errorf("CountSlides() = %d, want 2", n)
	}

	err = store.UpdateSlide(ctx, "a", core.SlidePatch{OrderIndex: core.Ptr(1), LayoutID: core.Ptr("SectionHeader")})
	if err != nil {
		t.Fatalf("UpdateSlide() failed: %v", err)
	}
	err = store.UpdateSlide(ctx, "b", core.SlidePatch{OrderIndex: core.Ptr(0), Content: core.Content{"title": "Plan"}})
	if err != nil {
		t.Fatalf("UpdateSlide() failed: %v", err)
	}
	got, _ = store.ListSlides(ctx, "p")
	if got[0].ID != "b" || got[0].Content.Text("title") != "Plan" || got[0].LayoutID != "BulletedList" {
		t.Errorf("after update slide 0 = %+v", got[0])
	}
	if got[1].LayoutID != "SectionHeader" || got[1].Content.Text("subtitle") != "World" {
		t.Errorf("layout update should keep content, slide 1 = %+v", got[1])
	}
	if err := store.UpdateSlide(ctx, "missing", core.SlidePatch{OrderIndex: core.Ptr(0)}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateSlide(missing) error = %v, want ErrNotFound", err)
	}

	saved := core.Slide{ID: "c", PresentationID: "p", LayoutID: "Quote", OrderIndex: 2, Content: core.Content{"quote": "q"}}
	if err := store.SaveSlide(ctx, saved); err != nil {
		t.Fatalf("SaveSlide(new) failed: %v", err)
	}
	saved.Content = core.Content{"quote": "q2"}
	if err := store.SaveSlide(ctx, saved); err != nil {
		t.Fatalf("SaveSlide(existing) failed: %v", err)
	}
	got, _ = store.ListSlides(ctx, "p")
	if len(got) != 3 || got[2].Content.Text("quote") != "q2" {
		t.Errorf("after SaveSlide slides = %+v", got)
	}

	if err := store.DeleteSlide(ctx, "c"); err != nil {
		t.Fatalf("DeleteSlide() failed: %v", err)
	}
	if err := store.DeleteSlide(ctx, "c"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteSlide(twice) error = %v, want ErrNotFound", err)
	}
}

func testUsers(t *testing.T, store RowStore) {
	ctx := context.Background()
	u := &core.User{Email: "Ada@Example.com", Name: "Ada", PasswordHash: []byte("hash")}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if u.ID == "" {
		t.Error("CreateUser() did not assign an ID")
	}
	if err := store.CreateUser(ctx, &core.User{Email: "ada@example.com"}); err == nil {
		t.Error("CreateUser() with a taken email should fail")
	}

	got, err := store.FindUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail() failed: %v", err)
	}
	if got.ID != u.ID || string(got.PasswordHash) != "hash" || got.Name != "Ada" {
		t.Errorf("FindUserByEmail() = %+v", got)
	}
	if _, err := store.FindUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindUserByEmail(missing) error = %v, want ErrNotFound", err)
	}
}

// TestBlobStore runs the blob store contract against store.
func TestBlobStore(t *testing.T, store core.BlobStore) {
	ctx := context.Background()
	key := "alice/deck.pptx"

	if err := store.PutBlob(ctx, key, bytes.NewReader([]byte("PK\x03\x04"))); err != nil {
		t.Fatalf("PutBlob() failed: %v", err)
	}
	rc, err := store.GetBlob(ctx, key)
	if err != nil {
		t.Fatalf("GetBlob() failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "PK\x03\x04" {
		t.Errorf("GetBlob() = %q", data)
	}

	if err := store.DeleteBlob(ctx, key); err != nil {
		t.Fatalf("DeleteBlob() failed: %v", err)
	}
	if _, err := store.GetBlob(ctx, key); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetBlob(deleted) error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteBlob(ctx, key); err != nil {
		t.Errorf("DeleteBlob(missing) error = %v, want nil", err)
	}
}
