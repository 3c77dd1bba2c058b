package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore keeps cached results in a single SQLite database. It trades
// the file backend's one-file-per-result layout for a single results.db
// that is easier to ship between machines.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS results (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at TEXT NOT NULL
);
`

// NewSQLiteStore opens (or creates) results.db under dir.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}
	dbPath := filepath.Join(dir, "results.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening results database: %w", err)
	}
	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing results schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the stored value for key.
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM results WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put stores val under key, replacing any previous value.
func (s *SQLiteStore) Put(key string, val []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO results (key, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		key, val, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
