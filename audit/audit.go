// Package audit records canvasd's operational trail in SQLite: one row
// per HTTP request and one row per canvas mutation event.
//
// This is observability plumbing, not canvas persistence — the canvas
// document itself never touches disk. Write failures are logged via slog
// and never propagate, so a broken audit store cannot fail a request.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/canvasd/idgen"
)

const schema = `
CREATE TABLE IF NOT EXISTS http_request_logs (
	request_id  TEXT PRIMARY KEY,
	method      TEXT NOT NULL,
	path        TEXT NOT NULL,
	status      INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_logs_created ON http_request_logs(created_at);

CREATE TABLE IF NOT EXISTS canvas_event_logs (
	event_id   TEXT PRIMARY KEY,
	action     TEXT NOT NULL,
	element_id TEXT,
	success    INTEGER NOT NULL,
	details    TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_logs_created ON canvas_event_logs(created_at);
`

// Open opens the audit database at path with the production pragmas
// (WAL, busy_timeout, NORMAL synchronous) applied via EXEC, creating
// parent directories as needed. The caller must blank-import
// modernc.org/sqlite.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("audit: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: %s: %w", pragma, err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}
	return db, nil
}

// Event is one canvas mutation to record.
type Event struct {
	Action    string // "draw", "update", "clear", "element_delete", "element_update"
	ElementID string // set for element-level operations
	Success   bool
	Details   string // optional JSON
}

// Logger writes audit rows. Safe for concurrent use (database/sql pools).
type Logger struct {
	db    *sql.DB
	newID idgen.Generator
	now   func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithIDGenerator sets a custom ID generator for audit row ids.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *Logger) { l.newID = gen }
}

// WithClock overrides the timestamp source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// NewLogger creates a Logger backed by db.
func NewLogger(db *sql.DB, opts ...Option) *Logger {
	l := &Logger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
		now:   time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Init creates the audit tables. Idempotent.
func (l *Logger) Init() error {
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// LogRequest records one HTTP request. Errors are logged, not returned.
func (l *Logger) LogRequest(ctx context.Context, requestID, method, path string, status int, duration time.Duration) {
	if requestID == "" {
		requestID = l.newID()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO http_request_logs (
			request_id, method, path, status, duration_ms, created_at
		) VALUES (?,?,?,?,?,?)`,
		requestID, method, path, status, duration.Milliseconds(), l.now().Unix())
	if err != nil {
		slog.Error("audit request log failed", "error", err, "path", path)
	}
}

// LogEvent records one canvas mutation. Errors are logged, not returned.
func (l *Logger) LogEvent(ctx context.Context, event Event) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO canvas_event_logs (
			event_id, action, element_id, success, details, created_at
		) VALUES (?,?,?,?,?,?)`,
		l.newID(), event.Action, event.ElementID, event.Success, event.Details, l.now().Unix())
	if err != nil {
		slog.Error("audit event log failed", "error", err, "action", event.Action)
	}
}

// RetentionConfig specifies per-table retention in days. Zero disables
// cleanup for that table.
type RetentionConfig struct {
	RequestLogsDays int
	EventLogsDays   int
	RunVacuumAfter  bool
}

// Cleanup deletes rows older than the retention thresholds.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()
	targets := []struct {
		table string
		days  int
	}{
		{"http_request_logs", cfg.RequestLogsDays},
		{"canvas_event_logs", cfg.EventLogsDays},
	}
	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		cutoff := now - int64(t.days)*86400
		q := fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", t.table)
		if _, err := db.ExecContext(ctx, q, cutoff); err != nil {
			return fmt.Errorf("audit: cleanup %s: %w", t.table, err)
		}
	}
	if cfg.RunVacuumAfter {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("audit: vacuum: %w", err)
		}
	}
	return nil
}
