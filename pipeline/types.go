// Package pipeline turns the schedule and metadata regions of a term
// document into reconciled (schedule, records) pairs.
//
// Stages run strictly forward: classification and schedule extraction,
// data-area resolution, metadata extraction, reconciliation. Every stage
// returns fresh values and never modifies its input.
package pipeline

import (
	"sort"
	"strings"

	"github.com/brunobiangulo/goschedule/table"
)

// Page is the schedule-area view of one document page.
type Page struct {
	Index         int          `json:"index"` // 1-based
	ScheduleCells table.Matrix `json:"schedule_cells"`
	Valid         bool         `json:"valid"`
	Err           string       `json:"error,omitempty"`
}

// ScheduleTable is the normalized weekly grid of one schedule page. Column
// 0 holds the row label; the remaining columns are time slots whose cells
// hold group codes.
type ScheduleTable struct {
	Page int          `json:"page"`
	Grid table.Matrix `json:"grid"`
}

// Slot is one group code placed in the grid.
type Slot struct {
	Row    int    `json:"row"`
	Label  string `json:"label"`
	Column int    `json:"column"`
	Group  string `json:"group"`
}

// Slots lists every group code in the grid, row by row. A cell may hold
// several whitespace-separated codes.
func (s ScheduleTable) Slots() []Slot {
	var out []Slot
	for r := 0; r < s.Grid.Rows; r++ {
		label := s.Grid.Text(r, 0)
		for c := 1; c < s.Grid.Cols; c++ {
			for _, code := range strings.Fields(s.Grid.Cell(r, c).String()) {
				out = append(out, Slot{Row: r, Label: label, Column: c, Group: code})
			}
		}
	}
	return out
}

// GroupCodes returns the distinct group codes in the grid, sorted.
func (s ScheduleTable) GroupCodes() []string {
	set := make(map[string]bool)
	for _, slot := range s.Slots() {
		set[slot.Group] = true
	}
	return sortedKeys(set)
}

// DataRecord is one metadata row of a schedule page.
type DataRecord struct {
	Page             int      `json:"page"` // page the row was read from
	Course           string   `json:"course,omitempty"`
	GroupCode        string   `json:"group_code"`
	CourseTypeCode   string   `json:"course_type_code"`
	TheoryTeachers   []string `json:"theory_teachers"`
	PracticeTeachers []string `json:"practice_teachers"`
	Columns          []string `json:"columns,omitempty"`
}

// Pair is a schedule with the metadata records describing its groups.
type Pair struct {
	Schedule ScheduleTable `json:"schedule"`
	Records  []DataRecord  `json:"records"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	PageCount  int              `json:"page_count"`
	Validity   []bool           `json:"validity"`
	Resolution Resolution       `json:"resolution"`
	Pairs      []Pair           `json:"pairs"`
	Mismatches []*MismatchError `json:"mismatches,omitempty"`
	Issues     []Issue          `json:"issues,omitempty"`
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
