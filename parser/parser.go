package parser

import (
	"context"
	"fmt"

	"github.com/brunobiangulo/goschedule/table"
)

// Document is a paginated source whose pages can be decoded into glyphs
// and ruling rectangles.
type Document interface {
	NumPage() int
	Page(n int) (*Page, error) // n is 1-based
	Close() error
}

// Loader opens documents of specific formats.
type Loader interface {
	Open(path string) (Document, error)
	SupportedFormats() []string
}

// Page is the decoded content of one page. Coordinates are in points with
// the origin at the page's top-left corner, y growing downwards.
type Page struct {
	Number int
	Width  float64
	Height float64
	Glyphs []Glyph
	Rules  []Rule
}

// Glyph is a run of text drawn at one position. Y is the baseline.
type Glyph struct {
	Text string
	X    float64
	Y    float64
	W    float64
	Size float64
}

func (g Glyph) centerX() float64 { return g.X + g.W/2 }
func (g Glyph) centerY() float64 { return g.Y - g.height()/2 }

func (g Glyph) height() float64 {
	if g.Size <= 0 {
		return 1
	}
	return g.Size
}

// Rule is a painted rectangle or straight path segment. Thin rectangles
// and segments (zero width or height) are table rulings.
type Rule struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Region is a rectangular area of a page, in points from the top-left
// corner: the same (top, left, bottom, right) convention tabula uses.
type Region struct {
	Top    float64 `json:"top" yaml:"top"`
	Left   float64 `json:"left" yaml:"left"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
	Right  float64 `json:"right" yaml:"right"`
}

// Valid reports whether the region has a positive area.
func (r Region) Valid() bool {
	return r.Bottom > r.Top && r.Right > r.Left
}

// Contains reports whether (x, y) lies inside the region.
func (r Region) Contains(x, y float64) bool {
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

func (r Region) String() string {
	return fmt.Sprintf("(%.3f,%.3f,%.3f,%.3f)", r.Top, r.Left, r.Bottom, r.Right)
}

// Mode selects how a region is split into cells.
type Mode string

const (
	// ModeGrid uses the ruling lines drawn around cells.
	ModeGrid Mode = "grid"
	// ModeStream infers rows and columns from whitespace between text.
	ModeStream Mode = "stream"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeGrid || m == ModeStream
}

// PageSelector is either every page of a document or an explicit ordered
// list of 1-based page numbers.
type PageSelector struct {
	all   bool
	pages []int
}

// AllPages selects every page in document order.
func AllPages() PageSelector { return PageSelector{all: true} }

// Pages selects the given pages in the given order.
func Pages(n ...int) PageSelector {
	p := make([]int, len(n))
	copy(p, n)
	return PageSelector{pages: p}
}

// Resolve expands the selector against a page count.
func (s PageSelector) Resolve(numPages int) ([]int, error) {
	if s.all {
		out := make([]int, numPages)
		for i := range out {
			out[i] = i + 1
		}
		return out, nil
	}
	for _, n := range s.pages {
		if n < 1 || n > numPages {
			return nil, fmt.Errorf("page %d out of range [1,%d]", n, numPages)
		}
	}
	out := make([]int, len(s.pages))
	copy(out, s.pages)
	return out, nil
}

func (s PageSelector) String() string {
	if s.all {
		return "all"
	}
	return fmt.Sprint(s.pages)
}

// TableExtractor returns one cell matrix per table found in region on each
// selected page, in page order.
type TableExtractor interface {
	ExtractTables(ctx context.Context, doc Document, pages PageSelector, region Region, mode Mode) ([]table.Matrix, error)
}
