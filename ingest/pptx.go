package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNoText is returned when a deck holds no slide text at all.
var ErrNoText = errors.New("no text found in presentation")

// SlideText is the text of one source slide, one paragraph per entry.
type SlideText struct {
	Number     int
	Paragraphs []string
}

// ExtractPPTX reads the text runs of every slide in a .pptx archive, in
// slide order.
func ExtractPPTX(data []byte) ([]SlideText, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}

	var slides []SlideText
	for _, f := range r.File {
		n, ok := slideNumber(f.Name)
		if !ok {
			continue
		}
		paragraphs, err := slideParagraphs(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		slides = append(slides, SlideText{Number: n, Paragraphs: paragraphs})
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("open pptx: no slides in archive")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].Number < slides[j].Number })
	return slides, nil
}

// slideNumber parses "ppt/slides/slide12.xml" into 12.
func slideNumber(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "ppt/slides/slide")
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, ".xml")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}

func slideParagraphs(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var paragraphs []string
	var current strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				current.Reset()
			case "t":
				inText = true
			case "br":
				current.WriteByte(' ')
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
			}
		}
	}
	return paragraphs, nil
}

// Text joins the slides into the plain text sent to the model.
func Text(slides []SlideText) (string, error) {
	var b strings.Builder
	for _, s := range slides {
		if len(s.Paragraphs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "--- Slide %d ---\n", s.Number)
		for _, p := range s.Paragraphs {
			b.WriteString(p)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return "", ErrNoText
	}
	return strings.TrimSpace(b.String()), nil
}
