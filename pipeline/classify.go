package pipeline

import "github.com/brunobiangulo/goschedule/table"

// Classifier decides whether a schedule-area matrix is a schedule grid.
type Classifier struct {
	sentinel string
}

func NewClassifier(sentinel string) Classifier {
	return Classifier{sentinel: sentinel}
}

// Classify returns true iff the matrix is non-empty and its first cell is
// the sentinel. Bordered cells often pad the label or end it with a line
// break, so surrounding whitespace is trimmed; case and inner spacing must
// match exactly.
func (c Classifier) Classify(m table.Matrix) bool {
	if m.IsEmpty() || !m.Cell(0, 0).Valid {
		return false
	}
	return m.Text(0, 0) == c.sentinel
}
