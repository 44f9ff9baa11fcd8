// Package sqlite implements the repository interfaces on SQLite through
// database/sql and the pure-Go modernc.org/sqlite driver.
//
// Every multi-statement write goes through withTx so partial application
// is never visible. Foreign keys are enforced; template deletion removes
// children explicitly and in dependency order (see template.go).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/formbuilder/internal/apperror"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface in internal/repository.
type DB struct {
	conn *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx, so read helpers can
// run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens the database at dbPath, applies pragmas and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// Pragmas are per connection; a single writer connection keeps
	// foreign_keys on for every statement and avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Wrap uses an already-open pool without running migrations. Tests use
// it with go-sqlmock.
func Wrap(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Stats returns connection pool statistics for the metrics endpoint.
func (db *DB) Stats() sql.DBStats {
	return db.conn.Stats()
}

// withTx runs fn inside a transaction, rolling back on any error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate creates the schema. Statements are idempotent.
func (db *DB) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			is_admin      INTEGER NOT NULL DEFAULT 0,
			status        TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'blocked')),
			theme         TEXT NOT NULL DEFAULT 'light',
			language      TEXT NOT NULL DEFAULT 'en',
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS templates (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			topic       TEXT NOT NULL CHECK (topic IN ('Education', 'Quiz', 'Other')),
			image_url   TEXT NOT NULL DEFAULT '',
			is_public   INTEGER NOT NULL DEFAULT 0,
			created_by  TEXT NOT NULL REFERENCES users(id),
			created_at  DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_templates_created_at ON templates(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_templates_created_by ON templates(created_by)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id          TEXT PRIMARY KEY,
			template_id TEXT NOT NULL REFERENCES templates(id),
			type        TEXT NOT NULL CHECK (type IN ('single_line', 'multi_line', 'positive_integer', 'checkbox', 'fixed_user', 'fixed_date')),
			title       TEXT NOT NULL,
			position    INTEGER NOT NULL,
			fixed       INTEGER NOT NULL DEFAULT 0,
			required    INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_template ON questions(template_id, position)`,
		`CREATE TABLE IF NOT EXISTS tags (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS template_tags (
			template_id TEXT NOT NULL REFERENCES templates(id),
			tag_id      TEXT NOT NULL REFERENCES tags(id),
			PRIMARY KEY (template_id, tag_id)
		)`,
		`CREATE TABLE IF NOT EXISTS template_access (
			template_id TEXT NOT NULL REFERENCES templates(id),
			user_id     TEXT NOT NULL REFERENCES users(id),
			PRIMARY KEY (template_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS forms (
			id          TEXT PRIMARY KEY,
			template_id TEXT NOT NULL REFERENCES templates(id),
			user_id     TEXT NOT NULL REFERENCES users(id),
			created_at  DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forms_template ON forms(template_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_forms_user ON forms(user_id)`,
		`CREATE TABLE IF NOT EXISTS answers (
			id          TEXT PRIMARY KEY,
			form_id     TEXT NOT NULL REFERENCES forms(id),
			question_id TEXT NOT NULL REFERENCES questions(id),
			value       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_form ON answers(form_id)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id          TEXT PRIMARY KEY,
			template_id TEXT NOT NULL REFERENCES templates(id),
			user_id     TEXT NOT NULL REFERENCES users(id),
			content     TEXT NOT NULL,
			created_at  DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_template ON comments(template_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS likes (
			template_id TEXT NOT NULL REFERENCES templates(id),
			user_id     TEXT NOT NULL REFERENCES users(id),
			created_at  DATETIME NOT NULL,
			PRIMARY KEY (template_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			message    TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// isConstraint reports whether err is a SQLite constraint violation with
// one of the given extended result codes.
func isConstraint(err error, codes ...int) bool {
	var sqliteErr *sqlitedriver.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.Code() == code {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

func isForeignKeyViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY)
}

// checkAffected turns "no rows touched" into NotFound.
func checkAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
