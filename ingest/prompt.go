package ingest

import (
	"fmt"
	"strings"

	"github.com/Dannidrenovci/myriad-slides/layouts"
)

// SystemPrompt tells the model which layouts exist and what JSON to return.
func SystemPrompt() string {
	var b strings.Builder
	b.WriteString(`You are a presentation assistant. Analyze the following text extracted from a PowerPoint presentation and convert it into structured slides.

Your task:
1. Identify individual slides based on the content structure
2. For each slide, determine the best layout from these options:
`)
	for _, l := range layouts.All() {
		var fields []string
		for _, f := range l.Fields() {
			if f.List {
				fields = append(fields, f.Name+" - array of strings")
			} else {
				fields = append(fields, f.Name)
			}
		}
		fmt.Fprintf(&b, "   - %s: %s (fields: %s)\n", l.ID(), l.Description(), strings.Join(fields, ", "))
	}
	b.WriteString(`
3. Extract the ACTUAL text content from the presentation - do not create placeholders
4. Preserve the original wording as much as possible

Return a JSON object with this structure:
{
  "slides": [
    {
      "layoutId": "BulletedList",
      "content": {
        "title": "Actual slide title from the presentation",
        "items": ["First actual bullet point", "Second actual bullet point"]
      }
    }
  ]
}

IMPORTANT: Use the real text from the presentation, not generic placeholders like "Point 1", "Point 2".`)
	return b.String()
}
