package catalog

// schemaSQL is the base DDL. Later columns are added by migrations.
const schemaSQL = `
-- One row per ingested term document, with hash-based change detection
CREATE TABLE IF NOT EXISTS terms (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    status TEXT DEFAULT 'pending',
    pages INTEGER DEFAULT 0,
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS course_types (
    id INTEGER PRIMARY KEY,
    code TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS teachers (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);

-- Metadata rows of reconciled schedule pages
CREATE TABLE IF NOT EXISTS class_groups (
    id INTEGER PRIMARY KEY,
    term_id INTEGER NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
    page INTEGER NOT NULL,
    schedule_page INTEGER NOT NULL,
    code TEXT NOT NULL,
    course_type_id INTEGER REFERENCES course_types(id),
    course TEXT,
    columns JSON
);

CREATE TABLE IF NOT EXISTS group_teachers (
    group_id INTEGER NOT NULL REFERENCES class_groups(id) ON DELETE CASCADE,
    teacher_id INTEGER NOT NULL REFERENCES teachers(id),
    role TEXT NOT NULL CHECK (role IN ('theory', 'practice')),
    position INTEGER NOT NULL,
    PRIMARY KEY (group_id, teacher_id, role)
);

-- Group codes placed in the weekly grid
CREATE TABLE IF NOT EXISTS time_slots (
    id INTEGER PRIMARY KEY,
    term_id INTEGER NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
    page INTEGER NOT NULL,
    group_code TEXT NOT NULL,
    row_index INTEGER NOT NULL,
    label TEXT,
    column_index INTEGER NOT NULL
);

-- Non-fatal problems recorded during extraction
CREATE TABLE IF NOT EXISTS issues (
    id INTEGER PRIMARY KEY,
    term_id INTEGER NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
    page INTEGER NOT NULL,
    kind TEXT NOT NULL,
    detail TEXT
);

CREATE INDEX IF NOT EXISTS idx_class_groups_term ON class_groups(term_id, schedule_page);
CREATE INDEX IF NOT EXISTS idx_time_slots_term ON time_slots(term_id, page, group_code);
CREATE INDEX IF NOT EXISTS idx_issues_term ON issues(term_id);
`
