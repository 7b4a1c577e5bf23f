// Package table holds the rectangular cell matrix produced by region
// extraction, along with the pure transforms used to normalize it.
//
// A Matrix is never modified in place: every transform returns a new value
// and leaves its receiver untouched, so normalization steps can be chained
// without ordering hazards.
package table

import "strings"

// Cell is an optional text value. Valid is false when the extractor found
// no text for the cell.
type Cell struct {
	Text  string `json:"text,omitempty"`
	Valid bool   `json:"valid"`
}

// Text returns a present cell holding s.
func Text(s string) Cell {
	return Cell{Text: s, Valid: true}
}

// Empty reports whether the cell is absent or holds only whitespace.
func (c Cell) Empty() bool {
	return !c.Valid || strings.TrimSpace(c.Text) == ""
}

// String returns the cell text, or "" for an absent cell.
func (c Cell) String() string {
	if !c.Valid {
		return ""
	}
	return c.Text
}

// Matrix is an ordered sequence of rows of optional strings. Rows and Cols
// are first-class fields; every row has exactly Cols cells.
type Matrix struct {
	Rows  int      `json:"rows"`
	Cols  int      `json:"cols"`
	Cells [][]Cell `json:"cells"`
}

// New returns a rows x cols matrix of absent cells.
func New(rows, cols int) Matrix {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	cells := make([][]Cell, rows)
	for i := range cells {
		cells[i] = make([]Cell, cols)
	}
	return Matrix{Rows: rows, Cols: cols, Cells: cells}
}

// FromStrings builds a matrix from string rows. Short rows are padded with
// absent cells; empty strings become absent cells.
func FromStrings(rows [][]string) Matrix {
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	m := New(len(rows), cols)
	for i, r := range rows {
		for j, s := range r {
			if s != "" {
				m.Cells[i][j] = Text(s)
			}
		}
	}
	return m
}

// IsEmpty reports whether the matrix has no cells.
func (m Matrix) IsEmpty() bool {
	return m.Rows == 0 || m.Cols == 0
}

// Cell returns the cell at (row, col), or an absent cell when the
// coordinates fall outside the matrix.
func (m Matrix) Cell(row, col int) Cell {
	if row < 0 || row >= m.Rows || col < 0 || col >= m.Cols {
		return Cell{}
	}
	return m.Cells[row][col]
}

// Text returns the trimmed text at (row, col).
func (m Matrix) Text(row, col int) string {
	return strings.TrimSpace(m.Cell(row, col).String())
}

// Row returns a copy of one row.
func (m Matrix) Row(row int) []Cell {
	if row < 0 || row >= m.Rows {
		return nil
	}
	out := make([]Cell, m.Cols)
	copy(out, m.Cells[row])
	return out
}

// RowStrings returns one row as plain strings.
func (m Matrix) RowStrings(row int) []string {
	cells := m.Row(row)
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.String()
	}
	return out
}

// RowEmpty reports whether every cell of the row is empty.
func (m Matrix) RowEmpty(row int) bool {
	for col := 0; col < m.Cols; col++ {
		if !m.Cell(row, col).Empty() {
			return false
		}
	}
	return true
}

// ColumnEmpty reports whether every cell of the column is empty.
func (m Matrix) ColumnEmpty(col int) bool {
	for row := 0; row < m.Rows; row++ {
		if !m.Cell(row, col).Empty() {
			return false
		}
	}
	return true
}

// DropRows returns a copy without the given row indexes. Indexes refer to
// the receiver's coordinates; out-of-range indexes are ignored.
func (m Matrix) DropRows(rows ...int) Matrix {
	drop := indexSet(rows)
	out := Matrix{Cols: m.Cols}
	for i := 0; i < m.Rows; i++ {
		if drop[i] {
			continue
		}
		out.Cells = append(out.Cells, m.Row(i))
	}
	out.Rows = len(out.Cells)
	if out.Rows == 0 {
		out.Cells = [][]Cell{}
	}
	return out
}

// DropColumns returns a copy without the given column indexes. Indexes
// refer to the receiver's coordinates; out-of-range indexes are ignored.
func (m Matrix) DropColumns(cols ...int) Matrix {
	drop := indexSet(cols)
	keep := make([]int, 0, m.Cols)
	for j := 0; j < m.Cols; j++ {
		if !drop[j] {
			keep = append(keep, j)
		}
	}
	return m.selectColumns(keep)
}

// DropEmptyColumns returns a copy without the columns that are empty in
// every row.
func (m Matrix) DropEmptyColumns() Matrix {
	keep := make([]int, 0, m.Cols)
	for j := 0; j < m.Cols; j++ {
		if !m.ColumnEmpty(j) {
			keep = append(keep, j)
		}
	}
	return m.selectColumns(keep)
}

func (m Matrix) selectColumns(keep []int) Matrix {
	out := New(m.Rows, len(keep))
	for i := 0; i < m.Rows; i++ {
		for k, j := range keep {
			out.Cells[i][k] = m.Cells[i][j]
		}
	}
	return out
}

func indexSet(idx []int) map[int]bool {
	set := make(map[int]bool, len(idx))
	for _, i := range idx {
		set[i] = true
	}
	return set
}
