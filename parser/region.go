package parser

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/brunobiangulo/goschedule/table"
)

// Config holds the geometric tolerances of region extraction.
type Config struct {
	// RowTolerance is the maximum baseline distance (points) between glyphs
	// of the same text line.
	RowTolerance float64 `json:"row_tolerance" yaml:"row_tolerance"`
	// SpaceGap is the gap, as a fraction of the font size, above which a
	// space is inserted between two glyphs.
	SpaceGap float64 `json:"space_gap" yaml:"space_gap"`
	// CellGap is the gap, as a fraction of the font size, above which two
	// runs of text on a line belong to different cells (stream mode).
	CellGap float64 `json:"cell_gap" yaml:"cell_gap"`
	// SnapTolerance merges ruling coordinates closer than this (points) and
	// is the maximum thickness of a rectangle read as a line.
	SnapTolerance float64 `json:"snap_tolerance" yaml:"snap_tolerance"`
	// MinRuleLength ignores rulings shorter than this (points).
	MinRuleLength float64 `json:"min_rule_length" yaml:"min_rule_length"`
}

func DefaultConfig() Config {
	return Config{
		RowTolerance:  2.0,
		SpaceGap:      0.15,
		CellGap:       1.0,
		SnapTolerance: 3.0,
		MinRuleLength: 5.0,
	}
}

// RegionExtractor extracts at most one table per page from a fixed region,
// the way tabula does with guessing disabled.
type RegionExtractor struct {
	cfg Config
}

// NewRegionExtractor returns an extractor; zero tolerances take defaults.
func NewRegionExtractor(cfg Config) *RegionExtractor {
	def := DefaultConfig()
	if cfg.RowTolerance <= 0 {
		cfg.RowTolerance = def.RowTolerance
	}
	if cfg.SpaceGap <= 0 {
		cfg.SpaceGap = def.SpaceGap
	}
	if cfg.CellGap <= 0 {
		cfg.CellGap = def.CellGap
	}
	if cfg.SnapTolerance <= 0 {
		cfg.SnapTolerance = def.SnapTolerance
	}
	if cfg.MinRuleLength <= 0 {
		cfg.MinRuleLength = def.MinRuleLength
	}
	return &RegionExtractor{cfg: cfg}
}

func (e *RegionExtractor) ExtractTables(ctx context.Context, doc Document, pages PageSelector, region Region, mode Mode) ([]table.Matrix, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown extraction mode %q", mode)
	}
	if !region.Valid() {
		return nil, fmt.Errorf("invalid region %s", region)
	}

	nums, err := pages.Resolve(doc.NumPage())
	if err != nil {
		return nil, err
	}

	var out []table.Matrix
	for _, n := range nums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := doc.Page(n)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d: %w", n, err)
		}
		if m, ok := e.ExtractPage(page, region, mode); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// ExtractPage returns the table inside region, or false when the region
// holds no table.
func (e *RegionExtractor) ExtractPage(page *Page, region Region, mode Mode) (table.Matrix, bool) {
	var glyphs []Glyph
	for _, g := range page.Glyphs {
		if region.Contains(g.centerX(), g.centerY()) {
			glyphs = append(glyphs, g)
		}
	}

	switch mode {
	case ModeGrid:
		return e.grid(glyphs, page.Rules, region)
	case ModeStream:
		return e.stream(glyphs)
	}
	return table.Matrix{}, false
}

// --- stream mode ---

func (e *RegionExtractor) stream(glyphs []Glyph) (table.Matrix, bool) {
	lines := e.groupLines(glyphs)
	if len(lines) == 0 {
		return table.Matrix{}, false
	}

	segsByLine := make([][]segment, len(lines))
	var spans []span
	for i, l := range lines {
		segs := e.segments(l)
		segsByLine[i] = segs
		for _, s := range segs {
			spans = append(spans, span{left: s.left, right: s.right})
		}
	}

	cols := mergeSpans(spans, e.cfg.SnapTolerance)
	m := table.New(len(lines), len(cols))
	for i, segs := range segsByLine {
		for _, s := range segs {
			j := spanIndex(cols, (s.left+s.right)/2)
			appendText(&m.Cells[i][j], s.text, " ")
		}
	}
	return m, true
}

type span struct {
	left, right float64
}

// mergeSpans unions overlapping horizontal spans; each result is a column.
func mergeSpans(spans []span, tolerance float64) []span {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].left < sorted[j].left })

	merged := []span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.left <= last.right+tolerance {
			last.right = math.Max(last.right, s.right)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func spanIndex(cols []span, x float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range cols {
		if x >= c.left && x <= c.right {
			return i
		}
		d := math.Min(math.Abs(x-c.left), math.Abs(x-c.right))
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// --- grid mode ---

func (e *RegionExtractor) grid(glyphs []Glyph, rules []Rule, region Region) (table.Matrix, bool) {
	xs, ys := e.rulings(rules, region)
	if len(xs) < 2 || len(ys) < 2 {
		return table.Matrix{}, false
	}

	m := table.New(len(ys)-1, len(xs)-1)
	byCell := make(map[[2]int][]Glyph)
	for _, g := range glyphs {
		i := interval(ys, g.centerY())
		j := interval(xs, g.centerX())
		if i < 0 || j < 0 {
			continue
		}
		byCell[[2]int{i, j}] = append(byCell[[2]int{i, j}], g)
	}
	for key, gs := range byCell {
		if text := e.cellText(gs); text != "" {
			m.Cells[key[0]][key[1]] = table.Text(text)
		}
	}
	return m, true
}

// rulings returns the clustered x positions of vertical rulings and the y
// positions of horizontal rulings that cross region.
func (e *RegionExtractor) rulings(rules []Rule, region Region) (xs, ys []float64) {
	tol := e.cfg.SnapTolerance
	minLen := e.cfg.MinRuleLength

	addH := func(y, x0, x1 float64) {
		if y < region.Top-tol || y > region.Bottom+tol {
			return
		}
		if math.Min(x1, region.Right)-math.Max(x0, region.Left) >= minLen {
			ys = append(ys, y)
		}
	}
	addV := func(x, y0, y1 float64) {
		if x < region.Left-tol || x > region.Right+tol {
			return
		}
		if math.Min(y1, region.Bottom)-math.Max(y0, region.Top) >= minLen {
			xs = append(xs, x)
		}
	}

	for _, r := range rules {
		w, h := r.Right-r.Left, r.Bottom-r.Top
		switch {
		case h <= tol && w > tol:
			addH((r.Top+r.Bottom)/2, r.Left, r.Right)
		case w <= tol && h > tol:
			addV((r.Left+r.Right)/2, r.Top, r.Bottom)
		case w > tol && h > tol:
			addH(r.Top, r.Left, r.Right)
			addH(r.Bottom, r.Left, r.Right)
			addV(r.Left, r.Top, r.Bottom)
			addV(r.Right, r.Top, r.Bottom)
		}
	}

	sort.Float64s(xs)
	sort.Float64s(ys)
	return clusterValues(xs, tol), clusterValues(ys, tol)
}

// clusterValues clusters sorted values within tolerance, averaging values
// that fall within the tolerance of the cluster center.
func clusterValues(values []float64, tolerance float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	clustered := []float64{values[0]}
	for i := 1; i < len(values); i++ {
		diff := values[i] - clustered[len(clustered)-1]
		if diff > tolerance {
			clustered = append(clustered, values[i])
		} else {
			clustered[len(clustered)-1] = (clustered[len(clustered)-1] + values[i]) / 2
		}
	}
	return clustered
}

func interval(bounds []float64, v float64) int {
	for k := 0; k+1 < len(bounds); k++ {
		if v >= bounds[k] && v < bounds[k+1] {
			return k
		}
	}
	return -1
}

func (e *RegionExtractor) cellText(glyphs []Glyph) string {
	lines := e.groupLines(glyphs)
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		segs := e.segments(l)
		texts := make([]string, len(segs))
		for i, s := range segs {
			texts[i] = s.text
		}
		if t := strings.TrimSpace(strings.Join(texts, " ")); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// --- lines and segments ---

type textLine struct {
	baseline float64
	glyphs   []Glyph
}

// groupLines buckets glyphs by baseline, top to bottom, each line sorted
// left to right.
func (e *RegionExtractor) groupLines(glyphs []Glyph) []textLine {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := make([]Glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })

	var lines []textLine
	for _, g := range sorted {
		if n := len(lines); n > 0 && math.Abs(g.Y-lines[n-1].baseline) <= e.cfg.RowTolerance {
			lines[n-1].glyphs = append(lines[n-1].glyphs, g)
			continue
		}
		lines = append(lines, textLine{baseline: g.Y, glyphs: []Glyph{g}})
	}
	for i := range lines {
		gs := lines[i].glyphs
		sort.SliceStable(gs, func(a, b int) bool { return gs[a].X < gs[b].X })
	}
	return lines
}

type segment struct {
	text        string
	left, right float64
	size        float64
}

// segments merges the glyphs of a line into runs of text separated by
// gaps wider than CellGap.
func (e *RegionExtractor) segments(l textLine) []segment {
	var out []segment
	var cur *segment
	for _, g := range l.glyphs {
		if cur == nil {
			cur = &segment{text: g.Text, left: g.X, right: g.X + g.W, size: g.Size}
			continue
		}
		size := math.Max(math.Max(cur.size, g.Size), 1)
		gap := g.X - cur.right
		switch {
		case gap > e.cfg.CellGap*size:
			out = append(out, *cur)
			cur = &segment{text: g.Text, left: g.X, right: g.X + g.W, size: g.Size}
			continue
		case gap > e.cfg.SpaceGap*size:
			cur.text += " " + g.Text
		default:
			cur.text += g.Text
		}
		cur.right = math.Max(cur.right, g.X+g.W)
		cur.size = math.Max(cur.size, g.Size)
	}
	if cur != nil {
		out = append(out, *cur)
	}
	for i := range out {
		out[i].text = strings.TrimSpace(out[i].text)
	}
	return out
}

func appendText(c *table.Cell, s, sep string) {
	if s == "" {
		return
	}
	if c.Valid && c.Text != "" {
		c.Text += sep + s
		return
	}
	*c = table.Text(s)
}
