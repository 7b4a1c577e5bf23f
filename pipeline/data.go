package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brunobiangulo/goschedule/fields"
	"github.com/brunobiangulo/goschedule/parser"
	"github.com/brunobiangulo/goschedule/table"
)

// ExtractData reads the metadata blocks named by res and returns one record
// list per schedule page, parallel to res.SchedulePages. Blocks that fail to
// extract and rows that fail to parse are reported as issues.
func (p *Pipeline) ExtractData(ctx context.Context, doc parser.Document, res Resolution) ([][]DataRecord, []Issue, error) {
	var issues []Issue
	for _, page := range res.Orphans {
		slog.Warn("data: metadata page has no preceding schedule", "page", page)
		issues = append(issues, Issue{Page: page, Kind: IssueOrphanData,
			Detail: "metadata-only page precedes every schedule page"})
	}

	out := make([][]DataRecord, len(res.SchedulePages))
	for k, sources := range res.Sources {
		records := []DataRecord{}
		for _, src := range sources {
			m, err := p.extractBlock(ctx, doc, src)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, nil, ctxErr
				}
				slog.Warn("data: extraction failed", "page", src.Page, "area", src.Area, "error", err)
				issues = append(issues, Issue{Page: src.Page, Kind: IssueExtractionFailure,
					Detail: fmt.Sprintf("%s area: %v", src.Area, err)})
				continue
			}
			if m.IsEmpty() {
				issues = append(issues, Issue{Page: src.Page, Kind: IssueExtractionFailure,
					Detail: fmt.Sprintf("no table in %s data area", src.Area)})
				continue
			}
			recs, rowIssues := p.parseBlock(src.Page, m)
			records = append(records, recs...)
			issues = append(issues, rowIssues...)
		}
		out[k] = records
		slog.Debug("data: schedule page resolved",
			"page", res.SchedulePages[k], "blocks", len(sources), "records", len(records))
	}
	return out, issues, nil
}

func (p *Pipeline) extractBlock(ctx context.Context, doc parser.Document, src DataSource) (table.Matrix, error) {
	region := p.cfg.DataAreaPrimary
	if src.Area == AreaAlternate {
		region = p.cfg.DataAreaAlternate
	}
	ms, err := p.extractor.ExtractTables(ctx, doc, parser.Pages(src.Page), region, p.cfg.DataMode)
	if err != nil {
		return table.Matrix{}, err
	}
	if len(ms) == 0 {
		return table.Matrix{}, nil
	}
	return ms[0], nil
}

// NormalizeData drops the header rows, then every column empty in all
// remaining rows.
func (p *Pipeline) NormalizeData(m table.Matrix) table.Matrix {
	header := make([]int, p.cfg.HeaderRows)
	for i := range header {
		header[i] = i
	}
	return m.DropRows(header...).DropEmptyColumns()
}

// parseBlock turns one raw metadata matrix into records. Malformed rows
// yield records with empty fields.
func (p *Pipeline) parseBlock(page int, raw table.Matrix) ([]DataRecord, []Issue) {
	m := p.NormalizeData(raw)
	cols := p.cfg.Columns

	var (
		records []DataRecord
		issues  []Issue
	)
	degrade := func(row int, format string, args ...any) {
		detail := fmt.Sprintf("row %d: ", row) + fmt.Sprintf(format, args...)
		slog.Debug("data: field degraded", "page", page, "detail", detail)
		issues = append(issues, Issue{Page: page, Kind: IssueFieldDegrade, Detail: detail})
	}

	for r := 0; r < m.Rows; r++ {
		if m.RowEmpty(r) {
			continue
		}
		rec := DataRecord{
			Page:             page,
			Course:           m.Text(r, cols.Course),
			TheoryTeachers:   []string{},
			PracticeTeachers: []string{},
			Columns:          trimAll(m.RowStrings(r)),
		}

		if cols.GroupType >= m.Cols {
			degrade(r, "group column %d missing (%d columns)", cols.GroupType, m.Cols)
		} else if token := m.Text(r, cols.GroupType); token == "" {
			degrade(r, "empty group column")
		} else {
			rec.GroupCode, rec.CourseTypeCode = fields.SplitGroupType(token)
			if rec.CourseTypeCode == "" {
				degrade(r, "no course type in %q", token)
			}
		}

		if cols.Teachers >= m.Cols {
			degrade(r, "teacher column %d missing (%d columns)", cols.Teachers, m.Cols)
		} else if cell := m.Text(r, cols.Teachers); cell != "" {
			theory, practice := p.teachers.SplitTeachers(cell)
			if len(theory)+len(practice) == 0 {
				degrade(r, "no role markers in %q", cell)
			}
			rec.TheoryTeachers = append(rec.TheoryTeachers, theory...)
			rec.PracticeTeachers = append(rec.PracticeTeachers, practice...)
		}

		records = append(records, rec)
	}
	return records, issues
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
