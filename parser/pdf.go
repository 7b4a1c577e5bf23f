package parser

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
)

// default A4 landscape, used when a page carries no usable MediaBox
const (
	defaultPageWidth  = 842.0
	defaultPageHeight = 595.0
)

type PDFLoader struct{}

func (l *PDFLoader) SupportedFormats() []string { return []string{"pdf"} }

func (l *PDFLoader) Open(path string) (Document, error) {
	return OpenPDF(path)
}

// PDFDocument decodes pages of a PDF file. Page decoding is serialized;
// the underlying reader is not safe for concurrent use.
type PDFDocument struct {
	mu     sync.Mutex
	f      *os.File
	reader *pdf.Reader
}

// OpenPDF opens the PDF file at path.
func OpenPDF(path string) (*PDFDocument, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	return &PDFDocument{f: f, reader: reader}, nil
}

func (d *PDFDocument) NumPage() int {
	return d.reader.NumPage()
}

// Page decodes page n. The PDF library panics on some malformed content
// streams; those panics are returned as errors.
func (d *PDFDocument) Page(n int) (page *Page, err error) {
	if n < 1 || n > d.reader.NumPage() {
		return nil, fmt.Errorf("page %d out of range [1,%d]", n, d.reader.NumPage())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			page = nil
			err = fmt.Errorf("decoding page %d: %v", n, r)
		}
	}()

	p := d.reader.Page(n)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d is null", n)
	}

	llx, lly, urx, ury := mediaBox(p.V)
	content := p.Content()
	// Content only reports "re" rectangles, untransformed; rulings are
	// taken from the stroked and filled paths instead.
	var boxes []box
	if contents := p.V.Key("Contents"); !contents.IsNull() {
		boxes = pathBoxes(contents)
	}

	page = &Page{
		Number: n,
		Width:  urx - llx,
		Height: ury - lly,
		Glyphs: make([]Glyph, 0, len(content.Text)),
		Rules:  make([]Rule, 0, len(boxes)),
	}
	for _, t := range content.Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		page.Glyphs = append(page.Glyphs, Glyph{
			Text: t.S,
			X:    t.X - llx,
			Y:    ury - t.Y,
			W:    t.W,
			Size: t.FontSize,
		})
	}
	for _, b := range boxes {
		page.Rules = append(page.Rules, Rule{
			Left:   b.x0 - llx,
			Top:    ury - b.y1,
			Right:  b.x1 - llx,
			Bottom: ury - b.y0,
		})
	}
	return page, nil
}

func (d *PDFDocument) Close() error {
	return d.f.Close()
}

// mediaBox walks the page tree upwards until it finds a MediaBox.
func mediaBox(v pdf.Value) (llx, lly, urx, ury float64) {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			llx, lly = box.Index(0).Float64(), box.Index(1).Float64()
			urx, ury = box.Index(2).Float64(), box.Index(3).Float64()
			if urx > llx && ury > lly {
				return llx, lly, urx, ury
			}
		}
		v = v.Key("Parent")
	}
	return 0, 0, defaultPageWidth, defaultPageHeight
}
