package parser

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// memDocument is an in-memory Document for extraction tests.
type memDocument struct {
	pages []*Page
	errs  map[int]error
}

func (d *memDocument) NumPage() int { return len(d.pages) }

func (d *memDocument) Page(n int) (*Page, error) {
	if err := d.errs[n]; err != nil {
		return nil, err
	}
	return d.pages[n-1], nil
}

func (d *memDocument) Close() error { return nil }

// word places a whole word as one glyph, 5pt per character at size 10.
func word(text string, x, y float64) Glyph {
	return Glyph{Text: text, X: x, Y: y, W: 5 * float64(len(text)), Size: 10}
}

func hline(y, x0, x1 float64) Rule { return Rule{Left: x0, Top: y - 0.25, Right: x1, Bottom: y + 0.25} }
func vline(x, y0, y1 float64) Rule { return Rule{Left: x - 0.25, Top: y0, Right: x + 0.25, Bottom: y1} }

func gridPage() *Page {
	return &Page{
		Number: 1, Width: 842, Height: 595,
		Glyphs: []Glyph{
			word("LUNES", 60, 115),
			word("G1", 160, 135),
			word("G2", 160, 125),
			word("far", 600, 500),
		},
		Rules: []Rule{
			hline(100, 50, 250), hline(120, 50, 250), hline(140, 50, 250),
			vline(50, 100, 140), vline(150, 100, 140), vline(250, 100, 140),
		},
	}
}

var gridRegion = Region{Top: 90, Left: 40, Bottom: 150, Right: 260}

func TestGridExtraction(t *testing.T) {
	e := NewRegionExtractor(Config{})
	m, ok := e.ExtractPage(gridPage(), gridRegion, ModeGrid)
	if !ok {
		t.Fatal("expected a table")
	}
	if m.Rows != 2 || m.Cols != 2 {
		t.Fatalf("dims = %dx%d, want 2x2", m.Rows, m.Cols)
	}
	if got := m.Text(0, 0); got != "LUNES" {
		t.Errorf("cell(0,0) = %q, want LUNES", got)
	}
	if got := m.Text(1, 1); got != "G2\nG1" {
		t.Errorf("cell(1,1) = %q, want %q", got, "G2\nG1")
	}
	if m.Cell(0, 1).Valid {
		t.Errorf("cell(0,1) should be absent, got %+v", m.Cell(0, 1))
	}
}

func TestGridIgnoresRulingsOutsideRegion(t *testing.T) {
	page := gridPage()
	page.Rules = append(page.Rules, vline(700, 100, 140), hline(400, 50, 250))

	m, ok := NewRegionExtractor(Config{}).ExtractPage(page, gridRegion, ModeGrid)
	if !ok {
		t.Fatal("expected a table")
	}
	if m.Rows != 2 || m.Cols != 2 {
		t.Errorf("dims = %dx%d, want 2x2", m.Rows, m.Cols)
	}
}

func TestGridBoxRules(t *testing.T) {
	page := &Page{
		Glyphs: []Glyph{word("A", 20, 25), word("B", 70, 25)},
		Rules: []Rule{
			{Left: 10, Top: 10, Right: 60, Bottom: 30},
			{Left: 60, Top: 10, Right: 110, Bottom: 30},
		},
	}
	m, ok := NewRegionExtractor(Config{}).ExtractPage(page, Region{Top: 0, Left: 0, Bottom: 50, Right: 200}, ModeGrid)
	if !ok {
		t.Fatal("expected a table")
	}
	if got := m.RowStrings(0); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("row 0 = %q, want [A B]", got)
	}
}

func TestGridWithoutRulings(t *testing.T) {
	page := &Page{Glyphs: []Glyph{word("LUNES", 60, 115)}}
	if _, ok := NewRegionExtractor(Config{}).ExtractPage(page, gridRegion, ModeGrid); ok {
		t.Error("expected no table without rulings")
	}
}

func streamPage() *Page {
	return &Page{
		Glyphs: []Glyph{
			// header
			word("CURSO", 10, 20), word("GRUPO", 100, 20), word("DOCENTES", 200, 20),
			// row 1: two glyph runs close together form one cell
			word("Calculo", 10, 40), word("G1", 100, 40), word("TEO", 112, 40),
			word("A.", 200, 40), word("Lopez", 212, 40), word("(Titular)", 240, 40),
			// row 2 with a slightly shifted baseline
			word("Fisica", 10, 61), word("G2", 100, 60.5), word("LAB", 112, 60.5),
		},
	}
}

func TestStreamExtraction(t *testing.T) {
	m, ok := NewRegionExtractor(Config{}).ExtractPage(streamPage(), Region{Top: 0, Left: 0, Bottom: 100, Right: 400}, ModeStream)
	if !ok {
		t.Fatal("expected a table")
	}
	if m.Rows != 3 || m.Cols != 3 {
		t.Fatalf("dims = %dx%d, want 3x3", m.Rows, m.Cols)
	}

	want := [][]string{
		{"CURSO", "GRUPO", "DOCENTES"},
		{"Calculo", "G1 TEO", "A. Lopez (Titular)"},
		{"Fisica", "G2 LAB", ""},
	}
	for i := range want {
		if got := m.RowStrings(i); !reflect.DeepEqual(got, want[i]) {
			t.Errorf("row %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestStreamEmptyRegion(t *testing.T) {
	_, ok := NewRegionExtractor(Config{}).ExtractPage(streamPage(), Region{Top: 300, Left: 0, Bottom: 400, Right: 400}, ModeStream)
	if ok {
		t.Error("expected no table in an empty region")
	}
}

func TestExtractTables(t *testing.T) {
	doc := &memDocument{pages: []*Page{gridPage(), {Number: 2}, gridPage()}}
	e := NewRegionExtractor(Config{})

	got, err := e.ExtractTables(context.Background(), doc, AllPages(), gridRegion, ModeGrid)
	if err != nil {
		t.Fatalf("ExtractTables: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tables, want 2 (page 2 has none)", len(got))
	}

	got, err = e.ExtractTables(context.Background(), doc, Pages(3), gridRegion, ModeGrid)
	if err != nil {
		t.Fatalf("ExtractTables(Pages(3)): %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d tables, want 1", len(got))
	}
}

func TestExtractTablesErrors(t *testing.T) {
	boom := errors.New("boom")
	doc := &memDocument{pages: []*Page{gridPage(), gridPage()}, errs: map[int]error{2: boom}}
	e := NewRegionExtractor(Config{})
	ctx := context.Background()

	if _, err := e.ExtractTables(ctx, doc, Pages(2), gridRegion, ModeGrid); !errors.Is(err, boom) {
		t.Errorf("page error = %v, want wrapping %v", err, boom)
	}
	if _, err := e.ExtractTables(ctx, doc, Pages(5), gridRegion, ModeGrid); err == nil {
		t.Error("expected error for out-of-range page")
	}
	if _, err := e.ExtractTables(ctx, doc, AllPages(), gridRegion, Mode("lattice")); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := e.ExtractTables(ctx, doc, AllPages(), Region{Top: 10, Bottom: 5, Right: 10}, ModeGrid); err == nil {
		t.Error("expected error for invalid region")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.ExtractTables(cancelled, doc, Pages(1), gridRegion, ModeGrid); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx error = %v", err)
	}
}

func TestClusterValues(t *testing.T) {
	got := clusterValues([]float64{10, 11, 12, 50, 51, 100}, 3)
	if len(got) != 3 {
		t.Fatalf("got %d clusters (%v), want 3", len(got), got)
	}
	if got[2] != 100 {
		t.Errorf("last cluster = %v, want 100", got[2])
	}
}

func TestMergeSpans(t *testing.T) {
	got := mergeSpans([]span{{100, 120}, {10, 40}, {30, 60}, {121, 130}}, 3)
	want := []span{{10, 60}, {100, 130}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mergeSpans = %v, want %v", got, want)
	}
}
