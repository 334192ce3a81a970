package layouts

import "github.com/Dannidrenovci/myriad-slides/core"

// variant is the shared strategy implementation; each layout differs only
// in the fields it reads.
type variant struct {
	kind        Kind
	name        string
	description string
	fields      []Field
}

var (
	titleSlide = &variant{
		kind:        TitleSlide,
		name:        "Title Slide",
		description: "Large title with subtitle",
		fields: []Field{
			{Name: "title", Placeholder: "Title"},
			{Name: "subtitle", Placeholder: "Subtitle"},
		},
	}
	titleAndBody = &variant{
		kind:        TitleAndBody,
		name:        "Title & Body",
		description: "Title with body text",
		fields: []Field{
			{Name: "title", Placeholder: "Title"},
			{Name: "body", Placeholder: "Body text goes here..."},
		},
	}
	bulletedList = &variant{
		kind:        BulletedList,
		name:        "Bulleted List",
		description: "Title with bullet points",
		fields: []Field{
			{Name: "title", Placeholder: "Title"},
			{Name: "items", List: true, Items: []string{"Point 1", "Point 2", "Point 3"}, Aliases: []string{"bullets"}},
		},
	}
	sectionHeader = &variant{
		kind:        SectionHeader,
		name:        "Section Header",
		description: "Large centered title",
		fields: []Field{
			{Name: "title", Placeholder: "Section Title"},
		},
	}
	twoColumn = &variant{
		kind:        TwoColumn,
		name:        "Two Column",
		description: "Title with two columns",
		fields: []Field{
			{Name: "title", Placeholder: "Title"},
			{Name: "left", Placeholder: "Left column text...", Aliases: []string{"leftColumn"}},
			{Name: "right", Placeholder: "Right column text...", Aliases: []string{"rightColumn"}},
		},
	}
	quote = &variant{
		kind:        Quote,
		name:        "Quote",
		description: "Quote with attribution",
		fields: []Field{
			{Name: "quote", Placeholder: "Insert quote here"},
			{Name: "author", Placeholder: "Author"},
		},
	}
)

func (v *variant) Kind() Kind { return v.kind }
func (v *variant) ID() string { return v.kind.String() }
func (v *variant) Name() string { return v.name }
func (v *variant) Description() string { return v.description }

func (v *variant) Fields() []Field {
	out := make([]Field, len(v.fields))
	copy(out, v.fields)
	return out
}

func (v *variant) Render(content core.Content) []Block {
	blocks := make([]Block, 0, len(v.fields))
	for _, f := range v.fields {
		blocks = append(blocks, resolveField(f, content))
	}
	return blocks
}

func resolveField(f Field, content core.Content) Block {
	name := f.Name
	if !content.Has(name) {
		for _, alias := range f.Aliases {
			if content.Has(alias) {
				name = alias
				break
			}
		}
	}

	b := Block{Field: f.Name}
	switch {
	case f.List && content.Has(name):
		b.Items = content.List(name)
	case f.List:
		b.Items = append([]string(nil), f.Items...)
		b.Placeholder = true
	case content.Has(name):
		b.Text = content.Text(name)
		if b.Text == "" {
			b.Text = f.Placeholder
			b.Placeholder = true
		}
	default:
		b.Text = f.Placeholder
		b.Placeholder = true
	}
	return b
}
