package layouts

import (
	"testing"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		id   string
		want Kind
	}{
		{"TitleSlide", TitleSlide},
		{"TitleAndBody", TitleAndBody},
		{"BulletedList", BulletedList},
		{"SectionHeader", SectionHeader},
		{"TwoColumn", TwoColumn},
		{"Quote", Quote},
		{"", Unknown},
		{"titleslide", Unknown},
		{"DoesNotExist", Unknown},
	}
	for _, tt := range tests {
		if got := Parse(tt.id); got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestResolve_UnknownFallsBackToTitleAndBody(t *testing.T) {
	want := Resolve("TitleAndBody")
	for _, id := range []string{"DoesNotExist", "", "ImageGrid"} {
		got := Resolve(id)
		if got != want {
			t.Errorf("Resolve(%q) = %s, want %s", id, got.ID(), want.ID())
		}
	}
}

func TestResolve_EveryKnownLayout(t *testing.T) {
	for _, l := range All() {
		got := Resolve(l.ID())
		if got.Kind() != l.Kind() {
			t.Errorf("Resolve(%q).Kind() = %v, want %v", l.ID(), got.Kind(), l.Kind())
		}
	}
	if len(All()) != 6 {
		t.Errorf("All() returned %d layouts, want 6", len(All()))
	}
}

func TestRender_Placeholders(t *testing.T) {
	got := Resolve("BulletedList").Render(core.Content{})
	want := []Block{
		{Field: "title", Text: "Title", Placeholder: true},
		{Field: "items", Items: []string{"Point 1", "Point 2", "Point 3"}, Placeholder: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_ContentAndAliases(t *testing.T) {
	content := core.Content{
		"title":      "Roadmap",
		"leftColumn": "Now",
		"right":      "Later",
		"unrelated":  "ignored",
		"items":      []any{"a", "b"},
		"subtitle":   "",
	}
	got := Resolve("TwoColumn").Render(content)
	want := []Block{
		{Field: "title", Text: "Roadmap"},
		{Field: "left", Text: "Now"},
		{Field: "right", Text: "Later"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}

	bullets := Resolve("BulletedList").Render(core.Content{"bullets": []string{"x"}})
	if diff := cmp.Diff([]string{"x"}, bullets[1].Items); diff != "" {
		t.Errorf("bullets alias mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_SwitchingLayoutKeepsContent(t *testing.T) {
	content := core.Content{"quote": "Stay hungry", "author": "S. Jobs"}
	blocks := Resolve("TitleSlide").Render(content)
	for _, b := range blocks {
		if !b.Placeholder {
			t.Errorf("field %q should be a placeholder on a mismatched layout", b.Field)
		}
	}
	if content.Text("quote") != "Stay hungry" {
		t.Error("Render must not modify content")
	}
}
