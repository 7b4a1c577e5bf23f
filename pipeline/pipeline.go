package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brunobiangulo/goschedule/fields"
	"github.com/brunobiangulo/goschedule/parser"
)

// Pipeline runs every stage against one document.
type Pipeline struct {
	cfg        Config
	extractor  parser.TableExtractor
	classifier Classifier
	teachers   *fields.Parser
}

// New validates cfg and returns a Pipeline using extractor for every table
// read.
func New(cfg Config, extractor parser.TableExtractor) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if extractor == nil {
		return nil, fmt.Errorf("pipeline: nil table extractor")
	}
	return &Pipeline{
		cfg:        cfg,
		extractor:  extractor,
		classifier: NewClassifier(cfg.Sentinel),
		teachers:   fields.NewParser(cfg.RoleRules, cfg.TeacherDelimiter),
	}, nil
}

// Run extracts, resolves and reconciles doc. Page-level problems are
// collected in the result; an error is returned only on cancellation or a
// structural violation.
func (p *Pipeline) Run(ctx context.Context, doc parser.Document) (*Result, error) {
	start := time.Now()

	set, err := p.ExtractSchedules(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extracting schedules: %w", err)
	}

	res := Resolve(set.Validity)
	slog.Debug("pipeline: data areas resolved",
		"data_sch_pages", res.DataSchPages, "only_data_pages", res.OnlyDataPages)

	dataSets, dataIssues, err := p.ExtractData(ctx, doc, res)
	if err != nil {
		return nil, fmt.Errorf("extracting data: %w", err)
	}

	pairs, mismatches, err := Reconcile(set.Tables, dataSets)
	if err != nil {
		return nil, err
	}

	result := &Result{
		PageCount:  len(set.Validity),
		Validity:   set.Validity,
		Resolution: res,
		Pairs:      pairs,
		Mismatches: mismatches,
	}
	result.Issues = append(result.Issues, set.Issues...)
	result.Issues = append(result.Issues, dataIssues...)
	for _, m := range mismatches {
		result.Issues = append(result.Issues, Issue{
			Page: m.Page, Kind: IssueReconciliationMismatch, Detail: m.Error(),
		})
	}

	slog.Info("pipeline: run complete",
		"pages", result.PageCount, "pairs", len(pairs),
		"mismatches", len(mismatches), "issues", len(result.Issues),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}
