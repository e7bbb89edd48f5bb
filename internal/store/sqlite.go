// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Opens the database file, creates the schema, and applies column migrations

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// dsn builds a modernc connection string. Pragmas are passed in the DSN so that
// every pooled connection gets them, not just the first one.
func dsn(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	return "file:" + filepath.Clean(path) + "?" + pragmas + "&_pragma=journal_mode(WAL)"
}

// NewSQLiteStore creates (or opens) a SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database on a single connection.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory database lives and dies with its connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// Path returns the database file path the store was opened with
func (s *SQLiteStore) Path() string {
	return s.path
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS companies (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			address    TEXT NOT NULL DEFAULT '',
			tax_id     TEXT NOT NULL DEFAULT '',
			icon_b64   TEXT NOT NULL DEFAULT '',
			email      TEXT,
			phone      TEXT,
			website    TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_companies_created ON companies(created_at DESC);

		CREATE TABLE IF NOT EXISTS company_defaults (
			company_id       INTEGER PRIMARY KEY REFERENCES companies(id) ON DELETE CASCADE,
			default_currency TEXT NOT NULL DEFAULT 'USD',
			default_tax_rate TEXT NOT NULL DEFAULT '0',
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS clients (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			company_id INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			address    TEXT NOT NULL DEFAULT '',
			tax_id     TEXT NOT NULL DEFAULT '',
			email      TEXT,
			phone      TEXT,
			website    TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_clients_company ON clients(company_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS invoices (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			company_id      INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
			client_id       INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			number          INTEGER NOT NULL,
			issue_date      TEXT NOT NULL DEFAULT '',
			due_date        TEXT NOT NULL DEFAULT '',
			fiscal_year     INTEGER NOT NULL DEFAULT 0,
			currency        TEXT NOT NULL DEFAULT '',
			subtotal        TEXT NOT NULL DEFAULT '0',
			tax_rate        TEXT NOT NULL DEFAULT '0',
			tax_amount      TEXT NOT NULL DEFAULT '0',
			discount_amount TEXT NOT NULL DEFAULT '0',
			total           TEXT NOT NULL DEFAULT '0',
			status          TEXT NOT NULL DEFAULT 'Draft',
			notes           TEXT,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_invoices_company ON invoices(company_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_invoices_company_year ON invoices(company_id, fiscal_year);
		CREATE INDEX IF NOT EXISTS idx_invoices_client ON invoices(client_id);

		CREATE TABLE IF NOT EXISTS invoice_items (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			invoice_id  INTEGER NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
			position    INTEGER NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			quantity    TEXT NOT NULL DEFAULT '0',
			unit_price  TEXT NOT NULL DEFAULT '0',
			total       TEXT NOT NULL DEFAULT '0',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items(invoice_id, position);

		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		-- API users (humans or scripts that call the HTTP API)
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT UNIQUE NOT NULL,
			display_name  TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id    TEXT PRIMARY KEY,
			actor       TEXT NOT NULL,
			action      TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id   TEXT NOT NULL,
			ts          TEXT NOT NULL,
			detail_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_log(target_type, target_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations adds columns introduced after the first schema version.
// Each migration checks pragma_table_info first so it is safe to re-run.
func (s *SQLiteStore) runMigrations() error {
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "invoices",
			column: "footer_text",
			apply:  `ALTER TABLE invoices ADD COLUMN footer_text TEXT NOT NULL DEFAULT ''`,
		},
		{
			table:  "company_defaults",
			column: "default_footer_text",
			apply:  `ALTER TABLE company_defaults ADD COLUMN default_footer_text TEXT NOT NULL DEFAULT ''`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(
			`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column,
		).Scan(&exists)
		if err == nil {
			// Column already exists, skip
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking %s.%s: %w", m.table, m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Ping checks that the database answers a trivial query
func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on success.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// formatTime renders a timestamp the way every table stores it.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}

// nullString converts an optional string to a nullable column value.
func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// stringPtr converts a nullable column back into an optional string.
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}
