package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/brunobiangulo/goschedule/parser"
)

// ScheduleSet is the output of schedule extraction. Tables holds one entry
// per valid page; Validity holds one entry per document page.
type ScheduleSet struct {
	Tables   []ScheduleTable
	Validity []bool
	Pages    []Page
	Issues   []Issue
}

// ExtractSchedules reads the schedule area of every page, classifies it and
// normalizes the valid grids. Extraction failures mark the page invalid.
func (p *Pipeline) ExtractSchedules(ctx context.Context, doc parser.Document) (*ScheduleSet, error) {
	n := doc.NumPage()
	pages := make([]Page, n)

	workers := p.cfg.Concurrency
	if workers < 1 {
		workers = 1
	}

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, workers)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				pages[i] = Page{Index: i + 1, Err: ctx.Err().Error()}
				return
			}
			pages[i] = p.schedulePage(ctx, doc, i+1)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := &ScheduleSet{
		Validity: make([]bool, n),
		Pages:    pages,
	}
	for i, page := range pages {
		if !page.Valid {
			detail := "first cell is not the sentinel"
			kind := IssueClassificationMiss
			if page.Err != "" {
				detail, kind = page.Err, IssueExtractionFailure
			} else if page.ScheduleCells.IsEmpty() {
				detail = "no table in schedule area"
			}
			slog.Debug("schedule: page has no schedule", "page", page.Index, "reason", detail)
			set.Issues = append(set.Issues, Issue{Page: page.Index, Kind: kind, Detail: detail})
			continue
		}
		set.Validity[i] = true
		set.Tables = append(set.Tables, p.normalizeSchedule(page))
	}

	slog.Info("schedule: extraction complete",
		"pages", n, "schedules", len(set.Tables))
	return set, nil
}

func (p *Pipeline) schedulePage(ctx context.Context, doc parser.Document, index int) Page {
	page := Page{Index: index}
	ms, err := p.extractor.ExtractTables(ctx, doc, parser.Pages(index), p.cfg.ScheduleArea, p.cfg.ScheduleMode)
	if err != nil {
		slog.Warn("schedule: extraction failed", "page", index, "error", err)
		page.Err = err.Error()
		return page
	}
	if len(ms) > 0 {
		page.ScheduleCells = ms[0]
	}
	page.Valid = p.classifier.Classify(page.ScheduleCells)
	return page
}

// normalizeSchedule removes the separator columns and the sentinel row.
func (p *Pipeline) normalizeSchedule(page Page) ScheduleTable {
	raw := page.ScheduleCells
	if want := expectedScheduleCols(p.cfg.SeparatorColumns); raw.Cols != want {
		slog.Debug("schedule: unexpected column count",
			"page", page.Index, "cols", raw.Cols, "want", want)
	}
	grid := raw.DropColumns(p.cfg.SeparatorColumns...).DropRows(0)
	return ScheduleTable{Page: page.Index, Grid: grid}
}

// expectedScheduleCols is the raw width implied by alternating separators:
// one past the last separator plus the trailing content column.
func expectedScheduleCols(separators []int) int {
	last := 0
	for _, c := range separators {
		if c > last {
			last = c
		}
	}
	return last + 2
}
