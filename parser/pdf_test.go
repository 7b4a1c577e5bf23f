package parser

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writePDF writes a one-page 400x300 PDF whose page inherits its MediaBox
// from the page tree, with a Courier font (600 units per glyph) as /F1.
func writePDF(t *testing.T, content string) string {
	t.Helper()
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 400 300] >>",
		"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding" +
			" /FirstChar 32 /LastChar 126 /Widths [" + strings.Repeat("600 ", 95) + "] >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	path := filepath.Join(t.TempDir(), "page.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// A 2x2 table spanning x 50..250 and y 200..260 in PDF space, i.e. top
// 40..100 once flipped.
const gridText = `BT /F1 10 Tf 60 240 Td (LUNES) Tj ET
BT /F1 10 Tf 160 240 Td (G1) Tj ET
BT /F1 10 Tf 60 210 Td (X) Tj ET
`

var pdfGridRegion = Region{Top: 30, Left: 40, Bottom: 110, Right: 260}

func openPage(t *testing.T, content string) *Page {
	t.Helper()
	doc, err := OpenPDF(writePDF(t, content))
	if err != nil {
		t.Fatalf("OpenPDF: %v", err)
	}
	t.Cleanup(func() { doc.Close() })
	if doc.NumPage() != 1 {
		t.Fatalf("NumPage = %d, want 1", doc.NumPage())
	}
	page, err := doc.Page(1)
	if err != nil {
		t.Fatalf("Page(1): %v", err)
	}
	return page
}

func TestPDFGridBorders(t *testing.T) {
	tests := []struct {
		name    string
		borders string
	}{
		{"stroked lines", `0.5 w
50 260 m 250 260 l S
50 230 m 250 230 l S
50 200 m 250 200 l S
50 200 m 50 260 l S
150 200 m 150 260 l S
250 200 m 250 260 l S
`},
		{"single stroked path", `50 260 m 250 260 l 250 200 l 50 200 l h
50 230 m 250 230 l
150 200 m 150 260 l S
`},
		{"thin filled rectangles", `50 259.75 200 0.5 re
50 229.75 200 0.5 re
50 199.75 200 0.5 re
49.75 200 0.5 60 re
149.75 200 0.5 60 re
249.75 200 0.5 60 re f
`},
		{"stroked rectangles", `50 230 100 30 re 150 230 100 30 re
50 200 100 30 re 150 200 100 30 re S
`},
		{"translated lines", `q 1 0 0 1 50 200 cm
0 60 m 200 60 l 0 30 m 200 30 l 0 0 m 200 0 l
0 0 m 0 60 l 100 0 m 100 60 l 200 0 m 200 60 l S Q
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := openPage(t, tt.borders+gridText)
			m, ok := NewRegionExtractor(DefaultConfig()).ExtractPage(page, pdfGridRegion, ModeGrid)
			if !ok {
				t.Fatalf("no grid found; rules = %v", page.Rules)
			}
			if m.Rows != 2 || m.Cols != 2 {
				t.Fatalf("dims = %dx%d, want 2x2", m.Rows, m.Cols)
			}
			want := [][]string{{"LUNES", "G1"}, {"X", ""}}
			for r := range want {
				for c := range want[r] {
					if got := m.Text(r, c); got != want[r][c] {
						t.Errorf("cell (%d,%d) = %q, want %q", r, c, got, want[r][c])
					}
				}
			}
		})
	}
}

func TestPDFClippingPathIgnored(t *testing.T) {
	page := openPage(t, "50 200 200 60 re W n\n"+gridText)
	if len(page.Rules) != 0 {
		t.Errorf("rules = %v, want none", page.Rules)
	}
	if _, ok := NewRegionExtractor(DefaultConfig()).ExtractPage(page, pdfGridRegion, ModeGrid); ok {
		t.Error("clipping path produced a grid")
	}
}

func TestPDFPageGeometry(t *testing.T) {
	page := openPage(t, "50 200 m 250 200 l S\n"+gridText)
	if page.Width != 400 || page.Height != 300 {
		t.Errorf("size = %vx%v, want 400x300 from the inherited MediaBox", page.Width, page.Height)
	}
	if len(page.Glyphs) == 0 {
		t.Fatal("no glyphs decoded")
	}
	g := page.Glyphs[0]
	if g.Text != "L" || g.X != 60 || g.Y != 60 || g.Size != 10 || g.W != 6 {
		t.Errorf("first glyph = %+v, want L at (60,60) size 10 width 6", g)
	}
	if len(page.Rules) != 1 {
		t.Fatalf("rules = %v, want 1", page.Rules)
	}
	if r := page.Rules[0]; r.Top != 100 || r.Bottom != 100 || r.Left != 50 || r.Right != 250 {
		t.Errorf("rule = %+v, want y=100 from x 50 to 250", r)
	}
}

func TestPDFPageErrors(t *testing.T) {
	doc, err := OpenPDF(writePDF(t, "BT /F1 10 Tf 1 Td ET\n"))
	if err != nil {
		t.Fatalf("OpenPDF: %v", err)
	}
	defer doc.Close()

	if _, err := doc.Page(2); err == nil {
		t.Error("Page(2): expected out-of-range error")
	}
	// A malformed operator panics inside the PDF library.
	if _, err := doc.Page(1); err == nil || !strings.Contains(err.Error(), "decoding page 1") {
		t.Errorf("Page(1): got %v, want a decoding error", err)
	}
}

func TestOpenPDFNotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pdf")
	if err := os.WriteFile(path, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenPDF(path); err == nil {
		t.Error("expected error for a non-PDF file")
	}
}
