package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"
)

func init() {
	// Keep pdfcpu from creating a config directory under $HOME.
	model.ConfigPath = "disable"
}

// WritePDF renders slides in order and writes them to w as a PDF with one
// full-bleed 1280x720 page per slide. An empty list yields an error.
func (r *Renderer) WritePDF(w io.Writer, slides []core.Slide) error {
	if len(slides) == 0 {
		return fmt.Errorf("export: no slides")
	}

	pages := make([]io.Reader, 0, len(slides))
	for _, s := range slides {
		var buf bytes.Buffer
		if err := r.WritePNG(&buf, s); err != nil {
			return fmt.Errorf("render slide %s: %w", s.ID, err)
		}
		pages = append(pages, &buf)
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.PageDim = &types.Dim{Width: Width, Height: Height}
	imp.UserDim = true
	imp.Pos = types.Full

	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, w, pages, imp, conf); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	logrus.WithField("pages", len(slides)).Debug("Exported presentation PDF")
	return nil
}

// FileName is the download name for a presentation's PDF.
func FileName(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "presentation"
	}
	title = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\r', '\n':
			return '_'
		}
		return r
	}, title)
	return title + ".pdf"
}
