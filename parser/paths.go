package parser

import (
	"math"

	"github.com/ledongthuc/pdf"
)

// axisTolerance is how far, in points, a segment may lean and still count
// as a horizontal or vertical ruling.
const axisTolerance = 0.5

type point struct{ x, y float64 }

// affine is a PDF transformation matrix [a b c d e f].
type affine [6]float64

var identity = affine{1, 0, 0, 1, 0, 0}

func (m affine) apply(x, y float64) point {
	return point{m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]}
}

// then returns the transform that applies m first and n second.
func (m affine) then(n affine) affine {
	return affine{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// box is an axis-aligned rectangle in PDF space (origin bottom-left).
type box struct{ x0, y0, x1, y1 float64 }

func boxOf(a, b point) box {
	return box{math.Min(a.x, b.x), math.Min(a.y, b.y), math.Max(a.x, b.x), math.Max(a.y, b.y)}
}

// pathCollector follows the path construction and painting operators of a
// content stream and keeps the painted rectangles and axis-aligned line
// segments. Curves move the current point but are never kept, and paths
// ended with "n" (clipping paths) are discarded.
type pathCollector struct {
	ctm     affine
	saved   []affine
	cur     point
	start   point
	open    bool
	pending []box
	painted []box
}

func newPathCollector() *pathCollector {
	return &pathCollector{ctm: identity}
}

func (c *pathCollector) segment(to point) {
	if c.open {
		a, b := c.cur, to
		if math.Abs(a.x-b.x) <= axisTolerance || math.Abs(a.y-b.y) <= axisTolerance {
			c.pending = append(c.pending, boxOf(a, b))
		}
	}
	c.cur = to
	c.open = true
}

func (c *pathCollector) closePath() {
	if c.open {
		c.segment(c.start)
	}
}

func (c *pathCollector) paint() {
	c.painted = append(c.painted, c.pending...)
	c.pending = c.pending[:0]
	c.open = false
}

// op applies one operator with its numeric operands.
func (c *pathCollector) op(name string, args []float64) {
	switch name {
	case "q":
		c.saved = append(c.saved, c.ctm)
	case "Q":
		if n := len(c.saved); n > 0 {
			c.ctm = c.saved[n-1]
			c.saved = c.saved[:n-1]
		}
	case "cm":
		if len(args) == 6 {
			c.ctm = affine{args[0], args[1], args[2], args[3], args[4], args[5]}.then(c.ctm)
		}
	case "m":
		if len(args) == 2 {
			c.cur = c.ctm.apply(args[0], args[1])
			c.start = c.cur
			c.open = true
		}
	case "l":
		if len(args) == 2 {
			c.segment(c.ctm.apply(args[0], args[1]))
		}
	case "c":
		if len(args) == 6 {
			c.cur = c.ctm.apply(args[4], args[5])
			c.open = true
		}
	case "v", "y":
		if len(args) == 4 {
			c.cur = c.ctm.apply(args[2], args[3])
			c.open = true
		}
	case "h":
		c.closePath()
	case "re":
		if len(args) == 4 {
			x, y, w, h := args[0], args[1], args[2], args[3]
			p0 := c.ctm.apply(x, y)
			p1 := c.ctm.apply(x+w, y)
			p2 := c.ctm.apply(x+w, y+h)
			p3 := c.ctm.apply(x, y+h)
			if math.Abs(p0.x-p1.x) > axisTolerance && math.Abs(p0.y-p1.y) > axisTolerance {
				// Rotated rectangle: keep no ruling from it.
				c.cur, c.start, c.open = p0, p0, true
				return
			}
			c.pending = append(c.pending, box{
				math.Min(math.Min(p0.x, p1.x), math.Min(p2.x, p3.x)),
				math.Min(math.Min(p0.y, p1.y), math.Min(p2.y, p3.y)),
				math.Max(math.Max(p0.x, p1.x), math.Max(p2.x, p3.x)),
				math.Max(math.Max(p0.y, p1.y), math.Max(p2.y, p3.y)),
			})
			c.cur, c.start, c.open = p0, p0, true
		}
	case "S", "f", "F", "f*", "B", "B*":
		c.paint()
	case "s", "b", "b*":
		c.closePath()
		c.paint()
	case "n":
		c.pending = c.pending[:0]
		c.open = false
	}
}

// pathBoxes interprets a page's content stream and returns every painted
// rectangle and straight axis-aligned segment, in PDF space with the
// current transformation applied. Segments come back as zero-width or
// zero-height boxes.
func pathBoxes(contents pdf.Value) []box {
	c := newPathCollector()
	var args []float64
	pdf.Interpret(contents, func(stk *pdf.Stack, op string) {
		args = args[:0]
		n := stk.Len()
		for i := 0; i < n; i++ {
			args = append(args, 0)
		}
		for i := n - 1; i >= 0; i-- {
			v := stk.Pop()
			if k := v.Kind(); k == pdf.Integer || k == pdf.Real {
				args[i] = v.Float64()
			}
		}
		c.op(op, args)
	})
	return c.painted
}
