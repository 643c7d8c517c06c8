package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/synthesishq/synthesis-agent/internal/errors"
	"github.com/synthesishq/synthesis-agent/internal/logging"
)

// SQLiteStore persists the session token slots and the capture journal in a
// single SQLite database with WAL mode. The agent is the only writer; the
// mutex serializes slot writes against journal reads from the CLI surface.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *logging.Logger
}

// NewSQLiteStore creates a new SQLite store with WAL mode enabled
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:     db,
		logger: logging.NewLogger(),
	}, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS token_slots (
					slot TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)
			`,
		},
		{
			version: 2,
			up: `
				CREATE TABLE IF NOT EXISTS captures (
					id TEXT PRIMARY KEY,
					source_app TEXT,
					source_url TEXT,
					uploaded_at DATETIME NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_captures_uploaded_at
					ON captures(uploaded_at DESC)
			`,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := db.Exec(m.up); err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
	}

	return nil
}

// Load returns the value of a token slot, or the empty string when unset.
func (s *SQLiteStore) Load(slot string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM token_slots WHERE slot = ?", slot).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", &errors.ErrDatabaseQuery{Operation: "load slot", Err: err}
	}
	return value, nil
}

// Save stores the value of a token slot, replacing any previous value.
func (s *SQLiteStore) Save(slot, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO token_slots (slot, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(slot) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, slot, value)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "save slot", Err: err}
	}
	return nil
}

// ClearAll removes every token slot.
func (s *SQLiteStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM token_slots"); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "clear slots", Err: err}
	}
	return nil
}

// RecordCapture inserts a completed upload into the journal.
func (s *SQLiteStore) RecordCapture(rec CaptureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	uploadedAt := rec.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO captures (id, source_app, source_url, uploaded_at)
		VALUES (?, ?, ?, ?)
	`, rec.ID, nullable(rec.SourceApp), nullable(rec.SourceURL), uploadedAt.UTC())
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "record capture", Err: err}
	}
	return nil
}

// RecentCaptures returns the newest journal entries, most recent first.
func (s *SQLiteStore) RecentCaptures(limit int) ([]CaptureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, source_app, source_url, uploaded_at
		FROM captures ORDER BY uploaded_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "recent captures", Err: err}
	}
	defer rows.Close()

	var records []CaptureRecord
	for rows.Next() {
		var rec CaptureRecord
		var app, url sql.NullString
		if err := rows.Scan(&rec.ID, &app, &url, &rec.UploadedAt); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan capture", Err: err}
		}
		if app.Valid {
			rec.SourceApp = &app.String
		}
		if url.Valid {
			rec.SourceURL = &url.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
