// Package export renders pipeline results as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/goschedule/pipeline"
)

const (
	GroupsSheet = "Groups"
	IssuesSheet = "Issues"
)

// Sheet is one worksheet read back from a workbook.
type Sheet struct {
	Name string
	Rows [][]string
}

// SheetName returns the worksheet name used for a schedule page.
func SheetName(page int) string {
	return fmt.Sprintf("Page %d", page)
}

// Workbook builds a workbook with a Groups sheet, an Issues sheet and one
// sheet per schedule page holding its normalized grid. Pages that failed
// reconciliation are included and flagged in the Groups sheet.
func Workbook(res *pipeline.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", GroupsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(IssuesSheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	// Rows of a mismatched pair are "mismatch", or "unmatched" when their
	// own code is one of the unmatched ones.
	type entry struct {
		pair      pipeline.Pair
		status    string
		unmatched map[string]bool
	}
	var entries []entry
	for _, p := range res.Pairs {
		entries = append(entries, entry{pair: p, status: "ok"})
	}
	for _, m := range res.Mismatches {
		codes := make(map[string]bool)
		for _, c := range m.Codes() {
			codes[c] = true
		}
		entries = append(entries, entry{pair: m.Pair, status: "mismatch", unmatched: codes})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].pair.Schedule.Page < entries[j].pair.Schedule.Page
	})

	groups := [][]any{{"Schedule page", "Page", "Group", "Type", "Course", "Theory", "Practice", "Status"}}
	for _, e := range entries {
		for _, r := range e.pair.Records {
			status := e.status
			if e.unmatched[r.GroupCode] {
				status = "unmatched"
			}
			groups = append(groups, []any{
				e.pair.Schedule.Page, r.Page, r.GroupCode, r.CourseTypeCode, r.Course,
				strings.Join(r.TheoryTeachers, "; "), strings.Join(r.PracticeTeachers, "; "), status,
			})
		}
	}
	if err := writeRows(f, GroupsSheet, groups, bold); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(GroupsSheet, "E", "E", 32)
	_ = f.SetColWidth(GroupsSheet, "F", "G", 40)

	issues := [][]any{{"Page", "Kind", "Detail"}}
	for _, is := range res.Issues {
		issues = append(issues, []any{is.Page, string(is.Kind), is.Detail})
	}
	if err := writeRows(f, IssuesSheet, issues, bold); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(IssuesSheet, "B", "B", 24)
	_ = f.SetColWidth(IssuesSheet, "C", "C", 80)

	for _, e := range entries {
		name := SheetName(e.pair.Schedule.Page)
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
		grid := e.pair.Schedule.Grid
		rows := make([][]any, grid.Rows)
		for r := range rows {
			rows[r] = make([]any, grid.Cols)
			for c, s := range grid.RowStrings(r) {
				rows[r][c] = s
			}
		}
		if err := writeRows(f, name, rows, 0); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	slog.Debug("export: workbook built", "sheets", len(f.GetSheetList()), "groups", len(groups)-1)
	return f, nil
}

// Write renders res as XLSX to w.
func Write(w io.Writer, res *pipeline.Result) error {
	f, err := Workbook(res)
	if err != nil {
		return fmt.Errorf("building workbook: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// ReadSheets reads every non-empty worksheet of an XLSX stream.
func ReadSheets(r io.Reader) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) == 0 {
			continue
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}

// writeRows writes rows from A1. A non-zero headerStyle is applied to the
// first row.
func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	if headerStyle != 0 && len(rows) > 0 && len(rows[0]) > 0 {
		end, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", end, headerStyle); err != nil {
			return err
		}
	}
	return nil
}
