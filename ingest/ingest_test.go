package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/stores/memory"
	"github.com/google/go-cmp/cmp"
)

const slideXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree><p:sp><p:txBody>%s</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`

func paragraph(runs ...string) string {
	var b strings.Builder
	b.WriteString("<a:p>")
	for _, r := range runs {
		fmt.Fprintf(&b, "<a:r><a:rPr lang=\"en-US\"/><a:t>%s</a:t></a:r>", r)
	}
	b.WriteString("</a:p>")
	return b.String()
}

// buildPPTX zips the given files; slides maps a slide number to its paragraphs.
func buildPPTX(t *testing.T, slides map[int]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml":     `<Types/>`,
		"ppt/presentation.xml":    `<p:presentation/>`,
		"ppt/slides/_rels/x.rels": `<Relationships/>`,
		"ppt/slideLayouts/a.xml":  `<p:sldLayout><a:t>Layout text</a:t></p:sldLayout>`,
	}
	for n, body := range slides {
		files[fmt.Sprintf("ppt/slides/slide%d.xml", n)] = fmt.Sprintf(slideXML, body)
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractPPTX(t *testing.T) {
	data := buildPPTX(t, map[int]string{
		10: paragraph("Closing"),
		2:  paragraph("Agenda") + paragraph("First ", "point") + paragraph("  "),
		1:  paragraph("Welcome") + paragraph("Q3 &amp; Q4"),
	})

	got, err := ExtractPPTX(data)
	if err != nil {
		t.Fatalf("ExtractPPTX() error = %v", err)
	}
	want := []SlideText{
		{Number: 1, Paragraphs: []string{"Welcome", "Q3 & Q4"}},
		{Number: 2, Paragraphs: []string{"Agenda", "First point"}},
		{Number: 10, Paragraphs: []string{"Closing"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExtractPPTX() mismatch (-want +got):\n%s", diff)
	}

	text, err := Text(got)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text, "--- Slide 1 ---\nWelcome\n") || !strings.HasSuffix(text, "--- Slide 10 ---\nClosing") {
		t.Errorf("Text() = %q", text)
	}
}

func TestExtractPPTX_Invalid(t *testing.T) {
	if _, err := ExtractPPTX([]byte("not a zip")); err == nil {
		t.Error("ExtractPPTX(garbage) should fail")
	}
	if _, err := ExtractPPTX(buildPPTX(t, nil)); err == nil {
		t.Error("ExtractPPTX(no slides) should fail")
	}
	deck, err := ExtractPPTX(buildPPTX(t, map[int]string{1: paragraph(" ")}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Text(deck); !errors.Is(err, ErrNoText) {
		t.Errorf("Text(empty deck) error = %v, want ErrNoText", err)
	}
}

func TestSystemPrompt_ListsEveryLayout(t *testing.T) {
	prompt := SystemPrompt()
	for _, want := range []string{
		"TitleSlide:", "TitleAndBody:", "BulletedList:", "SectionHeader:", "TwoColumn:", "Quote:",
		"items - array of strings", "fields: quote, author", `"slides"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt lacks %q", want)
		}
	}
}

type fakeModel struct {
	answer string
	err    error
	prompt string
}

func (m *fakeModel) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	m.prompt = prompt
	return m.answer, m.err
}

func setupPipeline(t *testing.T, model *fakeModel) (*Pipeline, *core.Presentation, interface {
	core.PresentationStore
	core.SlideRowStore
}) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	blobs := memory.NewStore()

	p := &core.Presentation{UserID: "alice", Title: "Deck", FilePath: "alice/deck.pptx"}
	if err := store.CreatePresentation(ctx, p); err != nil {
		t.Fatal(err)
	}
	data := buildPPTX(t, map[int]string{1: paragraph("Welcome"), 2: paragraph("Agenda")})
	if err := blobs.PutBlob(ctx, p.FilePath, bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	return New(store, store, blobs, model), p, store
}

func TestPipeline_Run(t *testing.T) {
	model := &fakeModel{answer: `{"slides":[
		{"layoutId":"TitleSlide","content":{"title":"Welcome <b>all</b>","subtitle":"R&D"}},
		{"layoutId":"BulletedList","content":{"title":"Agenda","items":["One","<script>x</script>Two"]}},
		{"layoutId":"","content":{"title":"Untyped","count":3}}
	]}`}
	pipe, p, store := setupPipeline(t, model)
	ctx := context.Background()

	if err := pipe.Run(ctx, p.ID, p.FilePath); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(model.prompt, "Welcome") || !strings.Contains(model.prompt, "Agenda") {
		t.Errorf("model prompt = %q", model.prompt)
	}

	slides, _ := store.ListSlides(ctx, p.ID)
	if len(slides) != 3 {
		t.Fatalf("stored %d slides, want 3", len(slides))
	}
	for i, s := range slides {
		if s.OrderIndex != i || s.ID == "" {
			t.Errorf("slide %d = %+v", i, s)
		}
	}
	if got := slides[0].Content.Text("title"); got != "Welcome all" {
		t.Errorf("title = %q, markup should be stripped", got)
	}
	if got := slides[0].Content.Text("subtitle"); got != "R&D" {
		t.Errorf("subtitle = %q", got)
	}
	if diff := cmp.Diff([]string{"One", "Two"}, slides[1].Content.List("items")); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if slides[2].LayoutID != "TitleAndBody" || slides[2].Content.Text("count") != "3" {
		t.Errorf("slide 2 = %+v", slides[2])
	}

	got, _ := store.GetPresentation(ctx, "", p.ID)
	if got.Status != core.StatusReady {
		t.Errorf("status = %q, want ready", got.Status)
	}

	// A second run replaces the slides instead of appending.
	if err := pipe.Run(ctx, p.ID, p.FilePath); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountSlides(ctx, p.ID); n != 3 {
		t.Errorf("after re-run CountSlides() = %d, want 3", n)
	}
}

func TestPipeline_Failures(t *testing.T) {
	tests := []struct {
		name     string
		model    *fakeModel
		filePath string
		wantErr  error
	}{
		{"missing file", &fakeModel{answer: `{"slides":[]}`}, "alice/missing.pptx", core.ErrNotFound},
		{"model error", &fakeModel{err: errors.New("quota exceeded")}, "", nil},
		{"malformed json", &fakeModel{answer: `{"slides": [`}, "", ErrMalformedResponse},
		{"no slides", &fakeModel{answer: `{"slides":[]}`}, "", ErrMalformedResponse},
		{"slides key missing", &fakeModel{answer: `{"title":"Deck"}`}, "", ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipe, p, store := setupPipeline(t, tt.model)
			filePath := tt.filePath
			if filePath == "" {
				filePath = p.FilePath
			}

			err := pipe.Run(context.Background(), p.ID, filePath)
			if err == nil {
				t.Fatal("Run() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
			got, _ := store.GetPresentation(context.Background(), "", p.ID)
			if got.Status != core.StatusProcessing {
				t.Errorf("status = %q, want processing after failure", got.Status)
			}
			if n, _ := store.CountSlides(context.Background(), p.ID); n != 0 {
				t.Errorf("failed run stored %d slides", n)
			}
		})
	}
}
