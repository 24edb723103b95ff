// SPDX-License-Identifier: MPL-2.0

package kvstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS data (key TEXT PRIMARY KEY, value TEXT NOT NULL)`

// SQLite is a Store persisted in a single database file per origin.
type SQLite struct {
	db    *sql.DB
	quota int
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the local storage database in dir.
func OpenSQLite(dir string) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "local_storage"))
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}
	// one writer keeps the quota accounting consistent
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init local storage: %w", err)
	}
	return &SQLite{db: db, quota: DefaultQuota}, nil
}

// Get returns the value for key and whether it was present.
func (s *SQLite) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM data WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key.
func (s *SQLite) Set(key, value string) error {
	var used int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM data WHERE key != ?`, key,
	).Scan(&used)
	if err != nil {
		return fmt.Errorf("measure storage: %w", err)
	}
	if used+len(key)+len(value) > s.quota {
		return ErrQuotaExceeded
	}

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO data (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key if present.
func (s *SQLite) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM data WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// Clear removes every entry.
func (s *SQLite) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM data`); err != nil {
		return fmt.Errorf("clear storage: %w", err)
	}
	return nil
}

// Keys returns the keys in ascending order.
func (s *SQLite) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM data ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Len returns the number of entries.
func (s *SQLite) Len() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM data`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
