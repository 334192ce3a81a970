// Package export rasterises slides and bundles them into a PDF, one
// 1280x720 page per slide.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"
	"sync"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/layouts"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 1280
	Height = 720

	margin = 80
)

var (
	background  = color.White
	ink         = color.RGBA{0x1f, 0x29, 0x37, 0xff}
	muted       = color.RGBA{0x6b, 0x72, 0x80, 0xff}
	placeholder = color.RGBA{0xc0, 0xc4, 0xcc, 0xff}
)

type style int

const (
	display style = iota // title slides and section headers
	heading
	body
	quoteText
	caption
)

// Renderer draws slides onto images. Font faces keep internal buffers, so
// one Renderer serialises its drawing.
type Renderer struct {
	mu    sync.Mutex
	faces map[style]font.Face
}

func NewRenderer() (*Renderer, error) {
	specs := []struct {
		style style
		ttf   []byte
		size  float64
	}{
		{display, gobold.TTF, 72},
		{heading, gobold.TTF, 48},
		{body, goregular.TTF, 30},
		{quoteText, goitalic.TTF, 44},
		{caption, goregular.TTF, 28},
	}

	r := &Renderer{faces: make(map[style]font.Face, len(specs))}
	for _, s := range specs {
		f, err := opentype.Parse(s.ttf)
		if err != nil {
			return nil, fmt.Errorf("parse font: %w", err)
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    s.size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("create font face: %w", err)
		}
		r.faces[s.style] = face
	}
	return r, nil
}

// Render draws one slide using the layout named by its layout id.
func (r *Renderer) Render(slide core.Slide) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	layout := layouts.Resolve(slide.LayoutID)
	blocks := map[string]layouts.Block{}
	for _, b := range layout.Render(slide.Content) {
		blocks[b.Field] = b
	}

	c := canvas{img: img, faces: r.faces}
	switch layout.Kind() {
	case layouts.TitleSlide:
		title := c.measure(display, blocks["title"].Text, Width-2*margin)
		sub := c.measure(caption, blocks["subtitle"].Text, Width-2*margin)
		y := (Height - title.height - 24 - sub.height) / 2
		y = c.centered(title, blocks["title"], ink, y) + 24
		c.centered(sub, blocks["subtitle"], muted, y)
	case layouts.SectionHeader:
		title := c.measure(display, blocks["title"].Text, Width-2*margin)
		c.centered(title, blocks["title"], ink, (Height-title.height)/2)
	case layouts.Quote:
		q := c.measure(quoteText, "“"+blocks["quote"].Text+"”", Width-4*margin)
		author := c.measure(caption, "- "+blocks["author"].Text, Width-4*margin)
		y := (Height - q.height - 32 - author.height) / 2
		y = c.centered(q, blocks["quote"], ink, y) + 32
		c.centered(author, blocks["author"], muted, y)
	case layouts.BulletedList:
		y := c.left(heading, blocks["title"], margin, margin, Width-2*margin)
		items := blocks["items"]
		for _, item := range items.Items {
			y = c.left(body, layouts.Block{Text: "•  " + item, Placeholder: items.Placeholder}, margin, y+12, Width-2*margin)
		}
	case layouts.TwoColumn:
		y := c.left(heading, blocks["title"], margin, margin, Width-2*margin) + 24
		col := (Width - 2*margin - 48) / 2
		c.left(body, blocks["left"], margin, y, col)
		c.left(body, blocks["right"], margin+col+48, y, col)
	default:
		y := c.left(heading, blocks["title"], margin, margin, Width-2*margin) + 24
		c.left(body, blocks["body"], margin, y, Width-2*margin)
	}
	return img
}

// WritePNG renders slide and encodes it as PNG.
func (r *Renderer) WritePNG(w io.Writer, slide core.Slide) error {
	return png.Encode(w, r.Render(slide))
}

type canvas struct {
	img   *image.RGBA
	faces map[style]font.Face
}

type paragraph struct {
	style  style
	lines  []string
	widths []int
	height int
}

func (c canvas) lineHeight(s style) int {
	m := c.faces[s].Metrics()
	return (m.Height * 6 / 5).Ceil()
}

func (c canvas) measure(s style, text string, maxWidth int) paragraph {
	face := c.faces[s]
	p := paragraph{style: s}
	for _, line := range wrap(face, text, maxWidth) {
		p.lines = append(p.lines, line)
		p.widths = append(p.widths, font.MeasureString(face, line).Ceil())
	}
	p.height = len(p.lines) * c.lineHeight(s)
	return p
}

// centered draws p horizontally centred from top y and returns the y below it.
func (c canvas) centered(p paragraph, b layouts.Block, col color.Color, y int) int {
	if b.Placeholder {
		col = placeholder
	}
	lh := c.lineHeight(p.style)
	for i, line := range p.lines {
		c.draw(p.style, line, (Width-p.widths[i])/2, y+i*lh, col)
	}
	return y + p.height
}

// left draws b's text or items left-aligned inside maxWidth and returns the
// y below it.
func (c canvas) left(s style, b layouts.Block, x, y, maxWidth int) int {
	col := color.Color(ink)
	if s == body {
		col = muted
	}
	if b.Placeholder {
		col = placeholder
	}
	text := b.Text
	if len(b.Items) > 0 {
		text = strings.Join(b.Items, "\n")
	}
	p := c.measure(s, text, maxWidth)
	lh := c.lineHeight(s)
	for i, line := range p.lines {
		c.draw(s, line, x, y+i*lh, col)
	}
	return y + p.height
}

func (c canvas) draw(s style, text string, x, top int, col color.Color) {
	face := c.faces[s]
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, top+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// wrap breaks text into lines no wider than maxWidth. Explicit newlines are
// kept; a single word wider than maxWidth gets a line of its own.
func wrap(face font.Face, text string, maxWidth int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if font.MeasureString(face, candidate).Ceil() > maxWidth {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return lines
}
