// Package catalog persists extracted term schedules in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Term status values.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// Teacher roles as stored in group_teachers.
const (
	RoleTheory   = "theory"
	RolePractice = "practice"
)

// Term represents a row in the terms table.
type Term struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	Pages       int    `json:"pages"`
	RunID       string `json:"run_id,omitempty"`
	Metadata    string `json:"metadata,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Group is one metadata row of a reconciled schedule page together with
// its teachers.
type Group struct {
	ID           int64    `json:"id"`
	TermID       int64    `json:"term_id"`
	Page         int      `json:"page"`          // page the row was read from
	SchedulePage int      `json:"schedule_page"` // page holding its grid
	Code         string   `json:"code"`
	CourseType   string   `json:"course_type"`
	Course       string   `json:"course,omitempty"`
	Theory       []string `json:"theory"`
	Practice     []string `json:"practice"`
	Columns      []string `json:"columns,omitempty"`
}

// Slot is a group code placed at one row and column of a schedule grid.
type Slot struct {
	ID        int64  `json:"id"`
	TermID    int64  `json:"term_id"`
	Page      int    `json:"page"`
	GroupCode string `json:"group_code"`
	Row       int    `json:"row"`
	Label     string `json:"label"`
	Column    int    `json:"column"`
}

// Issue represents a row in the issues table.
type Issue struct {
	ID     int64  `json:"id"`
	TermID int64  `json:"term_id"`
	Page   int    `json:"page"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// TermData is everything extracted from one term document.
type TermData struct {
	Groups []Group
	Slots  []Slot
	Issues []Issue
}

// Stats holds row counts across the catalog.
type Stats struct {
	Terms       int `json:"terms"`
	Groups      int `json:"groups"`
	Teachers    int `json:"teachers"`
	CourseTypes int `json:"course_types"`
	Slots       int `json:"slots"`
	Issues      int `json:"issues"`
}

// Store wraps the SQLite catalog database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the catalog at dbPath and brings its schema up to
// date.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Term operations ---

const termColumns = `id, path, filename, content_hash, status, pages, run_id, metadata, created_at, updated_at`

// UpsertTerm inserts or updates a term keyed by path and returns its ID.
func (s *Store) UpsertTerm(ctx context.Context, t Term) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO terms (path, filename, content_hash, status, pages, run_id, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			content_hash = excluded.content_hash,
			status = excluded.status,
			pages = excluded.pages,
			run_id = excluded.run_id,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`, t.Path, t.Filename, t.ContentHash, t.Status, t.Pages, nullString(t.RunID), nullString(t.Metadata))
	if err != nil {
		return 0, err
	}

	// LastInsertId is unreliable when the upsert took the UPDATE branch.
	var id int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT id FROM terms WHERE path = ?", t.Path).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetTerm retrieves a term by ID. It returns sql.ErrNoRows when absent.
func (s *Store) GetTerm(ctx context.Context, id int64) (*Term, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+termColumns+" FROM terms WHERE id = ?", id)
	return scanTerm(row)
}

// GetTermByPath retrieves a term by its source path.
func (s *Store) GetTermByPath(ctx context.Context, path string) (*Term, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+termColumns+" FROM terms WHERE path = ?", path)
	return scanTerm(row)
}

// ListTerms returns all terms, newest first.
func (s *Store) ListTerms(ctx context.Context) ([]Term, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+termColumns+" FROM terms ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terms []Term
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		terms = append(terms, *t)
	}
	return terms, rows.Err()
}

// UpdateTermStatus updates just the status field.
func (s *Store) UpdateTermStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE terms SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	return err
}

// DeleteTerm removes a term; groups, slots and issues cascade.
func (s *Store) DeleteTerm(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM terms WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceTermData swaps the groups, slots and issues of a term for data in
// one transaction.
func (s *Store) ReplaceTermData(ctx context.Context, termID int64, data TermData) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"class_groups", "time_slots", "issues"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE term_id = ?", termID); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		typeIDs := make(map[string]int64)
		teacherIDs := make(map[string]int64)
		for _, g := range data.Groups {
			var typeID sql.NullInt64
			if g.CourseType != "" {
				id, err := lookupOrInsert(ctx, tx, typeIDs, "course_types", "code", g.CourseType)
				if err != nil {
					return err
				}
				typeID = sql.NullInt64{Int64: id, Valid: true}
			}
			cols, err := json.Marshal(g.Columns)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO class_groups (term_id, page, schedule_page, code, course_type_id, course, columns)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, termID, g.Page, g.SchedulePage, g.Code, typeID, g.Course, string(cols))
			if err != nil {
				return fmt.Errorf("inserting group %s: %w", g.Code, err)
			}
			groupID, err := res.LastInsertId()
			if err != nil {
				return err
			}

			for role, names := range map[string][]string{RoleTheory: g.Theory, RolePractice: g.Practice} {
				for pos, name := range names {
					teacherID, err := lookupOrInsert(ctx, tx, teacherIDs, "teachers", "name", name)
					if err != nil {
						return err
					}
					if _, err := tx.ExecContext(ctx, `
						INSERT OR IGNORE INTO group_teachers (group_id, teacher_id, role, position)
						VALUES (?, ?, ?, ?)
					`, groupID, teacherID, role, pos); err != nil {
						return fmt.Errorf("linking teacher %q: %w", name, err)
					}
				}
			}
		}

		for _, sl := range data.Slots {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO time_slots (term_id, page, group_code, row_index, label, column_index)
				VALUES (?, ?, ?, ?, ?, ?)
			`, termID, sl.Page, sl.GroupCode, sl.Row, sl.Label, sl.Column); err != nil {
				return fmt.Errorf("inserting slot: %w", err)
			}
		}

		for _, is := range data.Issues {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO issues (term_id, page, kind, detail) VALUES (?, ?, ?, ?)",
				termID, is.Page, is.Kind, is.Detail); err != nil {
				return fmt.Errorf("inserting issue: %w", err)
			}
		}
		return nil
	})
}

// --- Group, slot and issue queries ---

// ListGroups returns the groups of a term ordered by schedule page, then in
// the order they were stored, each with its teachers in cell order.
func (s *Store) ListGroups(ctx context.Context, termID int64) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.term_id, g.page, g.schedule_page, g.code,
			COALESCE(ct.code, ''), COALESCE(g.course, ''), g.columns
		FROM class_groups g
		LEFT JOIN course_types ct ON ct.id = g.course_type_id
		WHERE g.term_id = ?
		ORDER BY g.schedule_page, g.id
	`, termID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	index := make(map[int64]int)
	for rows.Next() {
		var g Group
		var cols sql.NullString
		if err := rows.Scan(&g.ID, &g.TermID, &g.Page, &g.SchedulePage, &g.Code,
			&g.CourseType, &g.Course, &cols); err != nil {
			return nil, err
		}
		if cols.Valid && cols.String != "" {
			if err := json.Unmarshal([]byte(cols.String), &g.Columns); err != nil {
				return nil, fmt.Errorf("decoding columns of group %d: %w", g.ID, err)
			}
		}
		g.Theory, g.Practice = []string{}, []string{}
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	trows, err := s.db.QueryContext(ctx, `
		SELECT gt.group_id, t.name, gt.role
		FROM group_teachers gt
		JOIN teachers t ON t.id = gt.teacher_id
		JOIN class_groups g ON g.id = gt.group_id
		WHERE g.term_id = ?
		ORDER BY gt.group_id, gt.role, gt.position
	`, termID)
	if err != nil {
		return nil, err
	}
	defer trows.Close()

	for trows.Next() {
		var groupID int64
		var name, role string
		if err := trows.Scan(&groupID, &name, &role); err != nil {
			return nil, err
		}
		i, ok := index[groupID]
		if !ok {
			continue
		}
		if role == RoleTheory {
			groups[i].Theory = append(groups[i].Theory, name)
		} else {
			groups[i].Practice = append(groups[i].Practice, name)
		}
	}
	return groups, trows.Err()
}

// ListSlots returns the time slots of a term in grid order.
func (s *Store) ListSlots(ctx context.Context, termID int64) ([]Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, term_id, page, group_code, row_index, COALESCE(label, ''), column_index
		FROM time_slots WHERE term_id = ?
		ORDER BY page, row_index, column_index, id
	`, termID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var sl Slot
		if err := rows.Scan(&sl.ID, &sl.TermID, &sl.Page, &sl.GroupCode,
			&sl.Row, &sl.Label, &sl.Column); err != nil {
			return nil, err
		}
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}

// ListIssues returns the issues recorded for a term in page order.
func (s *Store) ListIssues(ctx context.Context, termID int64) ([]Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, term_id, page, kind, COALESCE(detail, '')
		FROM issues WHERE term_id = ? ORDER BY page, id
	`, termID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []Issue
	for rows.Next() {
		var is Issue
		if err := rows.Scan(&is.ID, &is.TermID, &is.Page, &is.Kind, &is.Detail); err != nil {
			return nil, err
		}
		issues = append(issues, is)
	}
	return issues, rows.Err()
}

// TeacherGroups returns the codes of the groups a teacher is assigned to in
// a term, with the role held in each.
func (s *Store) TeacherGroups(ctx context.Context, termID int64, name string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.code, gt.role
		FROM group_teachers gt
		JOIN teachers t ON t.id = gt.teacher_id
		JOIN class_groups g ON g.id = gt.group_id
		WHERE g.term_id = ? AND t.name = ?
		ORDER BY g.schedule_page, g.id
	`, termID, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var code, role string
		if err := rows.Scan(&code, &role); err != nil {
			return nil, err
		}
		out[code] = role
	}
	return out, rows.Err()
}

// Stats returns row counts for every catalog table.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM terms", &stats.Terms},
		{"SELECT COUNT(*) FROM class_groups", &stats.Groups},
		{"SELECT COUNT(*) FROM teachers", &stats.Teachers},
		{"SELECT COUNT(*) FROM course_types", &stats.CourseTypes},
		{"SELECT COUNT(*) FROM time_slots", &stats.Slots},
		{"SELECT COUNT(*) FROM issues", &stats.Issues},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTerm(row rowScanner) (*Term, error) {
	t := &Term{}
	var runID, metadata sql.NullString
	if err := row.Scan(&t.ID, &t.Path, &t.Filename, &t.ContentHash, &t.Status,
		&t.Pages, &runID, &metadata, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.RunID = runID.String
	t.Metadata = metadata.String
	return t, nil
}

// lookupOrInsert returns the ID of the row whose column equals value,
// inserting it if needed. cache is scoped to one transaction.
func lookupOrInsert(ctx context.Context, tx *sql.Tx, cache map[string]int64, table, column, value string) (int64, error) {
	if id, ok := cache[value]; ok {
		return id, nil
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+table+" ("+column+") VALUES (?) ON CONFLICT("+column+") DO NOTHING", value); err != nil {
		return 0, fmt.Errorf("inserting into %s: %w", table, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM "+table+" WHERE "+column+" = ?", value).Scan(&id); err != nil {
		return 0, fmt.Errorf("looking up %s: %w", table, err)
	}
	cache[value] = id
	return id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
