// Package goschedule extracts weekly class schedules and their group
// metadata from term PDFs and keeps the reconciled results in a SQLite
// catalog.
package goschedule

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/goschedule/catalog"
	"github.com/brunobiangulo/goschedule/export"
	"github.com/brunobiangulo/goschedule/parser"
	"github.com/brunobiangulo/goschedule/pipeline"
)

// Engine is the main entry point for schedule extraction.
type Engine interface {
	// Extract runs the pipeline on a document without touching the catalog.
	Extract(ctx context.Context, path string) (*pipeline.Result, error)

	// Ingest extracts a document and replaces its catalog entry. Returns
	// the term ID. Skips extraction if the content hash is unchanged.
	Ingest(ctx context.Context, path string, opts ...IngestOption) (int64, error)

	// Update re-checks a term by hash. Re-ingests if changed.
	Update(ctx context.Context, path string) (bool, error)

	// UpdateAll checks all ingested terms for changes.
	UpdateAll(ctx context.Context) ([]UpdateResult, error)

	// ListTerms returns all ingested terms.
	ListTerms(ctx context.Context) ([]Term, error)

	// Groups returns the reconciled groups of a term.
	Groups(ctx context.Context, termID int64) ([]catalog.Group, error)

	// Slots returns the time slots of a term.
	Slots(ctx context.Context, termID int64) ([]catalog.Slot, error)

	// Issues returns the problems recorded while extracting a term.
	Issues(ctx context.Context, termID int64) ([]catalog.Issue, error)

	// TeacherGroups returns the codes of the groups a teacher is assigned
	// to in a term, mapped to the role held.
	TeacherGroups(ctx context.Context, termID int64, name string) (map[string]string, error)

	// Stats returns row counts across the catalog.
	Stats(ctx context.Context) (*catalog.Stats, error)

	// Delete removes a term and all associated data.
	Delete(ctx context.Context, termID int64) error

	// Export extracts a document and writes the result as XLSX to w.
	Export(ctx context.Context, path string, w io.Writer) error

	// Catalog returns the underlying store for diagnostic access.
	Catalog() *catalog.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// Term represents an ingested term document.
type Term struct {
	ID          int64             `json:"id"`
	Path        string            `json:"path"`
	Filename    string            `json:"filename"`
	ContentHash string            `json:"content_hash"`
	Status      string            `json:"status"`
	Pages       int               `json:"pages"`
	RunID       string            `json:"run_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// UpdateResult reports the outcome of a term update check.
type UpdateResult struct {
	TermID  int64  `json:"term_id"`
	Path    string `json:"path"`
	Changed bool   `json:"changed"`
	Error   error  `json:"error,omitempty"`
}

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	forceReparse bool
	metadata     map[string]string
	result       **pipeline.Result
}

// WithForceReparse forces re-extraction even if the hash hasn't changed.
func WithForceReparse() IngestOption {
	return func(o *ingestOptions) { o.forceReparse = true }
}

// WithMetadata attaches custom metadata to the ingested term.
func WithMetadata(metadata map[string]string) IngestOption {
	return func(o *ingestOptions) { o.metadata = metadata }
}

// WithResult stores the pipeline result of the ingestion in *dst. *dst is
// left nil when an unchanged term is skipped.
func WithResult(dst **pipeline.Result) IngestOption {
	return func(o *ingestOptions) { o.result = dst }
}

// Option configures engine construction.
type Option func(*Extractor)

// WithLoader registers an additional document loader for format.
func WithLoader(format string, l parser.Loader) Option {
	return func(x *Extractor) { x.registry.Register(format, l) }
}

// WithTableExtractor replaces the geometric table extractor.
func WithTableExtractor(t parser.TableExtractor) Option {
	return func(x *Extractor) { x.tables = t }
}

// Extractor opens documents and runs the pipeline on them. It holds no
// catalog and is safe for concurrent use.
type Extractor struct {
	registry *parser.Registry
	tables   parser.TableExtractor
	pipeline *pipeline.Pipeline
}

// NewExtractor validates cfg and builds an Extractor.
func NewExtractor(cfg Config, opts ...Option) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	x := &Extractor{
		registry: parser.NewRegistry(),
		tables:   parser.NewRegionExtractor(cfg.Parser),
	}
	for _, o := range opts {
		o(x)
	}
	p, err := pipeline.New(cfg.Layout, x.tables)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	x.pipeline = p
	return x, nil
}

// Extract opens path and runs the pipeline on it.
func (x *Extractor) Extract(ctx context.Context, path string) (*pipeline.Result, error) {
	format := parser.Format(path)
	loader, err := x.registry.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	doc, err := loader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	defer doc.Close()

	slog.Info("extract: running pipeline", "file", filepath.Base(path), "pages", doc.NumPage())
	res, err := x.pipeline.Run(ctx, doc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}
	if len(res.Resolution.SchedulePages) == 0 {
		return nil, fmt.Errorf("%w: %s (%d pages)", ErrNoSchedules, filepath.Base(path), res.PageCount)
	}
	return res, nil
}

// ExtractFile runs the pipeline on one document using cfg.
func ExtractFile(ctx context.Context, cfg Config, path string, opts ...Option) (*pipeline.Result, error) {
	x, err := NewExtractor(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return x.Extract(ctx, path)
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg     Config
	catalog *catalog.Store
	x       *Extractor

	mu     sync.RWMutex
	closed bool
}

// New creates an engine with the given configuration and opens its catalog.
func New(cfg Config, opts ...Option) (Engine, error) {
	x, err := NewExtractor(cfg, opts...)
	if err != nil {
		return nil, err
	}

	s, err := catalog.New(cfg.resolveDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	return &engine{cfg: cfg, catalog: s, x: x}, nil
}

func (e *engine) check() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrStoreClosed
	}
	return nil
}

// Extract runs the pipeline without persisting anything.
func (e *engine) Extract(ctx context.Context, path string) (*pipeline.Result, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.x.Extract(ctx, path)
}

// Ingest extracts a document and stores its reconciled data.
func (e *engine) Ingest(ctx context.Context, path string, opts ...IngestOption) (int64, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}
	format := parser.Format(absPath)
	if _, err := e.x.registry.Get(format); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return 0, fmt.Errorf("hashing file: %w", err)
	}

	if !options.forceReparse {
		existing, err := e.catalog.GetTermByPath(ctx, absPath)
		if err == nil && existing.ContentHash == hash && existing.Status == catalog.StatusReady {
			slog.Debug("ingest: unchanged, skipping", "file", existing.Filename, "term_id", existing.ID)
			return existing.ID, nil
		}
	}

	var metadataJSON string
	if options.metadata != nil {
		data, _ := json.Marshal(options.metadata)
		metadataJSON = string(data)
	}

	term := catalog.Term{
		Path:        absPath,
		Filename:    filepath.Base(absPath),
		ContentHash: hash,
		Status:      catalog.StatusProcessing,
		RunID:       uuid.NewString(),
		Metadata:    metadataJSON,
	}
	termID, err := e.catalog.UpsertTerm(ctx, term)
	if err != nil {
		return 0, fmt.Errorf("upserting term: %w", err)
	}

	slog.Info("ingest: extracting term", "file", term.Filename, "term_id", termID, "run_id", term.RunID)
	start := time.Now()

	res, err := e.x.Extract(ctx, absPath)
	if err != nil {
		e.catalog.UpdateTermStatus(context.WithoutCancel(ctx), termID, catalog.StatusError)
		return 0, err
	}

	if err := e.catalog.ReplaceTermData(ctx, termID, termData(res)); err != nil {
		e.catalog.UpdateTermStatus(context.WithoutCancel(ctx), termID, catalog.StatusError)
		return 0, fmt.Errorf("storing term data: %w", err)
	}

	term.Status = catalog.StatusReady
	term.Pages = res.PageCount
	if _, err := e.catalog.UpsertTerm(ctx, term); err != nil {
		return 0, fmt.Errorf("finalising term: %w", err)
	}

	if options.result != nil {
		*options.result = res
	}

	slog.Info("ingest: term ready",
		"file", term.Filename, "term_id", termID,
		"pairs", len(res.Pairs), "mismatches", len(res.Mismatches), "issues", len(res.Issues),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return termID, nil
}

// termData converts reconciled pairs into catalog rows. Records without a
// group code are not stored; their problem is already among the issues.
func termData(res *pipeline.Result) catalog.TermData {
	var data catalog.TermData
	for _, pair := range res.Pairs {
		sched := pair.Schedule
		for _, rec := range pair.Records {
			if rec.GroupCode == "" {
				continue
			}
			data.Groups = append(data.Groups, catalog.Group{
				Page:         rec.Page,
				SchedulePage: sched.Page,
				Code:         rec.GroupCode,
				CourseType:   rec.CourseTypeCode,
				Course:       rec.Course,
				Theory:       rec.TheoryTeachers,
				Practice:     rec.PracticeTeachers,
				Columns:      rec.Columns,
			})
		}
		for _, sl := range sched.Slots() {
			data.Slots = append(data.Slots, catalog.Slot{
				Page:      sched.Page,
				GroupCode: sl.Group,
				Row:       sl.Row,
				Label:     sl.Label,
				Column:    sl.Column,
			})
		}
	}
	for _, is := range res.Issues {
		data.Issues = append(data.Issues, catalog.Issue{
			Page:   is.Page,
			Kind:   string(is.Kind),
			Detail: is.Detail,
		})
	}
	return data
}

// Update checks if a term has changed and re-ingests if needed.
func (e *engine) Update(ctx context.Context, path string) (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolving path: %w", err)
	}

	term, err := e.catalog.GetTermByPath(ctx, absPath)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrTermNotFound, absPath)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return false, fmt.Errorf("hashing file: %w", err)
	}
	if hash == term.ContentHash && term.Status == catalog.StatusReady {
		return false, nil
	}

	if _, err := e.Ingest(ctx, absPath, WithForceReparse()); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateAll checks all terms for changes.
func (e *engine) UpdateAll(ctx context.Context) ([]UpdateResult, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	terms, err := e.catalog.ListTerms(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]UpdateResult, 0, len(terms))
	for _, t := range terms {
		changed, err := e.Update(ctx, t.Path)
		results = append(results, UpdateResult{
			TermID:  t.ID,
			Path:    t.Path,
			Changed: changed,
			Error:   err,
		})
	}
	return results, nil
}

// ListTerms returns all ingested terms.
func (e *engine) ListTerms(ctx context.Context) ([]Term, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	terms, err := e.catalog.ListTerms(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Term, len(terms))
	for i, t := range terms {
		result[i] = Term{
			ID:          t.ID,
			Path:        t.Path,
			Filename:    t.Filename,
			ContentHash: t.ContentHash,
			Status:      t.Status,
			Pages:       t.Pages,
			RunID:       t.RunID,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		}
		if t.Metadata != "" {
			_ = json.Unmarshal([]byte(t.Metadata), &result[i].Metadata)
		}
	}
	return result, nil
}

// Groups returns the stored groups of a term.
func (e *engine) Groups(ctx context.Context, termID int64) ([]catalog.Group, error) {
	if err := e.requireTerm(ctx, termID); err != nil {
		return nil, err
	}
	return e.catalog.ListGroups(ctx, termID)
}

// Slots returns the stored time slots of a term.
func (e *engine) Slots(ctx context.Context, termID int64) ([]catalog.Slot, error) {
	if err := e.requireTerm(ctx, termID); err != nil {
		return nil, err
	}
	return e.catalog.ListSlots(ctx, termID)
}

// Issues returns the stored issues of a term.
func (e *engine) Issues(ctx context.Context, termID int64) ([]catalog.Issue, error) {
	if err := e.requireTerm(ctx, termID); err != nil {
		return nil, err
	}
	return e.catalog.ListIssues(ctx, termID)
}

// TeacherGroups returns the groups a teacher holds in a term, by code.
func (e *engine) TeacherGroups(ctx context.Context, termID int64, name string) (map[string]string, error) {
	if err := e.requireTerm(ctx, termID); err != nil {
		return nil, err
	}
	return e.catalog.TeacherGroups(ctx, termID, name)
}

func (e *engine) Stats(ctx context.Context) (*catalog.Stats, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.catalog.Stats(ctx)
}

func (e *engine) requireTerm(ctx context.Context, termID int64) error {
	if err := e.check(); err != nil {
		return err
	}
	_, err := e.catalog.GetTerm(ctx, termID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrTermNotFound, termID)
	}
	return err
}

// Delete removes a term and all its associated data.
func (e *engine) Delete(ctx context.Context, termID int64) error {
	if err := e.check(); err != nil {
		return err
	}
	err := e.catalog.DeleteTerm(ctx, termID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrTermNotFound, termID)
	}
	return err
}

// Export extracts path and renders the result as XLSX.
func (e *engine) Export(ctx context.Context, path string, w io.Writer) error {
	res, err := e.Extract(ctx, path)
	if err != nil {
		return err
	}
	return export.Write(w, res)
}

// Catalog returns the underlying store for diagnostic access.
func (e *engine) Catalog() *catalog.Store {
	return e.catalog
}

// Close shuts down the engine. Further calls return ErrStoreClosed.
func (e *engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.catalog.Close()
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
