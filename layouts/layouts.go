// Package layouts maps slide layout ids to their editing and rendering
// strategy.
//
// The set of layouts is closed. Resolving an id that is missing or unknown
// yields TitleAndBody, because stored slides may carry ids from older
// ingestion prompts. Content is never validated against a layout: fields
// the layout does not read are ignored and fields it reads but cannot find
// render as placeholder text.
package layouts

import "github.com/Dannidrenovci/myriad-slides/core"

// Kind identifies one layout variant.
type Kind int

const (
	Unknown Kind = iota
	TitleSlide
	TitleAndBody
	BulletedList
	SectionHeader
	TwoColumn
	Quote
)

// Default is the layout used for new slides and for unknown ids.
const Default = TitleAndBody

var kindIDs = [...]string{
	Unknown:       "",
	TitleSlide:    "TitleSlide",
	TitleAndBody:  "TitleAndBody",
	BulletedList:  "BulletedList",
	SectionHeader: "SectionHeader",
	TwoColumn:     "TwoColumn",
	Quote:         "Quote",
}

// String returns the layout id as stored in slide rows.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindIDs) {
		return ""
	}
	return kindIDs[k]
}

// Parse returns the Kind named by id, or Unknown.
func Parse(id string) Kind {
	for k := TitleSlide; k <= Quote; k++ {
		if kindIDs[k] == id {
			return k
		}
	}
	return Unknown
}

// Field describes one content field read by a layout.
type Field struct {
	Name        string   `json:"name"`
	List        bool     `json:"list"`
	Placeholder string   `json:"placeholder,omitempty"`
	Items       []string `json:"placeholderItems,omitempty"`
	// Aliases are older field names accepted when Name is absent.
	Aliases []string `json:"aliases,omitempty"`
}

// Block is one resolved field, ready to display.
type Block struct {
	Field       string   `json:"field"`
	Text        string   `json:"text,omitempty"`
	Items       []string `json:"items,omitempty"`
	Placeholder bool     `json:"placeholder"`
}

// Layout is the strategy for one variant.
type Layout interface {
	Kind() Kind
	ID() string
	Name() string
	Description() string
	Fields() []Field
	// Render resolves every field of the layout against content.
	Render(content core.Content) []Block
}

// Resolve returns the strategy for id; unknown ids resolve to TitleAndBody.
func Resolve(id string) Layout {
	return ForKind(Parse(id))
}

// ForKind returns the strategy for k; Unknown resolves to TitleAndBody.
func ForKind(k Kind) Layout {
	switch k {
	case TitleSlide:
		return titleSlide
	case TitleAndBody:
		return titleAndBody
	case BulletedList:
		return bulletedList
	case SectionHeader:
		return sectionHeader
	case TwoColumn:
		return twoColumn
	case Quote:
		return quote
	case Unknown:
		return titleAndBody
	default:
		return titleAndBody
	}
}

// All returns the six layouts in catalogue order.
func All() []Layout {
	return []Layout{titleSlide, titleAndBody, bulletedList, sectionHeader, twoColumn, quote}
}

// NewSlideContent is the placeholder content given to slides added in the editor.
func NewSlideContent() core.Content {
	return core.Content{"title": "New Slide", "body": "Add your content here..."}
}
