package table

import (
	"reflect"
	"testing"
)

func sample() Matrix {
	return FromStrings([][]string{
		{"a", "", "b", "c"},
		{"d", "", "", "e"},
		{"f", "", "g", ""},
	})
}

func TestFromStrings(t *testing.T) {
	m := FromStrings([][]string{{"a", "b"}, {"c"}})
	if m.Rows != 2 || m.Cols != 2 {
		t.Fatalf("dims = %dx%d, want 2x2", m.Rows, m.Cols)
	}
	if m.Cell(1, 1).Valid {
		t.Error("padded cell should be absent")
	}
	if got := m.Text(1, 0); got != "c" {
		t.Errorf("Text(1,0) = %q, want %q", got, "c")
	}
}

func TestCellOutOfRange(t *testing.T) {
	m := sample()
	for _, rc := range [][2]int{{-1, 0}, {0, -1}, {3, 0}, {0, 4}} {
		if c := m.Cell(rc[0], rc[1]); c.Valid {
			t.Errorf("Cell(%d,%d) should be absent, got %+v", rc[0], rc[1], c)
		}
	}
}

func TestDropRows(t *testing.T) {
	m := sample()
	out := m.DropRows(0, 7)

	if out.Rows != 2 || out.Cols != 4 {
		t.Fatalf("dims = %dx%d, want 2x4", out.Rows, out.Cols)
	}
	if got := out.Text(0, 0); got != "d" {
		t.Errorf("first row starts with %q, want %q", got, "d")
	}
	if m.Rows != 3 {
		t.Error("DropRows mutated its receiver")
	}
}

func TestDropColumns(t *testing.T) {
	m := sample()
	out := m.DropColumns(1, 3)

	want := [][]string{{"a", "b"}, {"d", ""}, {"f", "g"}}
	for i := range want {
		if got := out.RowStrings(i); !reflect.DeepEqual(got, want[i]) {
			t.Errorf("row %d = %v, want %v", i, got, want[i])
		}
	}
	if m.Cols != 4 {
		t.Error("DropColumns mutated its receiver")
	}
}

func TestDropEmptyColumns(t *testing.T) {
	out := sample().DropEmptyColumns()
	if out.Cols != 3 {
		t.Fatalf("cols = %d, want 3", out.Cols)
	}
	if got := out.RowStrings(0); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("row 0 = %v", got)
	}
}

func TestDropEmptyColumnsWhitespaceOnly(t *testing.T) {
	m := FromStrings([][]string{{"x", "  "}, {"y", "\t"}})
	if got := m.DropEmptyColumns().Cols; got != 1 {
		t.Errorf("cols = %d, want 1", got)
	}
}

func TestDropAllRows(t *testing.T) {
	out := sample().DropRows(0, 1, 2)
	if !out.IsEmpty() {
		t.Errorf("expected empty matrix, got %dx%d", out.Rows, out.Cols)
	}
	if out.Cells == nil {
		t.Error("Cells should be non-nil")
	}
}

func TestRowCopy(t *testing.T) {
	m := sample()
	r := m.Row(0)
	r[0] = Text("changed")
	if m.Text(0, 0) != "a" {
		t.Error("Row returned an alias of the matrix storage")
	}
}
