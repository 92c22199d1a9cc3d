package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetEntry retrieves the entry stored under key.
// The boolean is false when no such key exists.
func (db *DB) GetEntry(key string) (*Entry, bool, error) {
	var entry Entry
	err := db.conn.QueryRow(
		"SELECT key, value, updated_at FROM storage WHERE key = ?",
		key,
	).Scan(&entry.Key, &entry.Value, &entry.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get entry %q: %w", key, err)
	}

	return &entry, true, nil
}

// SetEntry inserts or replaces the value stored under key
func (db *DB) SetEntry(key, value string) error {
	_, err := db.conn.Exec(
		`INSERT INTO storage (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set entry %q: %w", key, err)
	}
	return nil
}

// DeleteEntry removes key; deleting a missing key is not an error
func (db *DB) DeleteEntry(key string) error {
	_, err := db.conn.Exec("DELETE FROM storage WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete entry %q: %w", key, err)
	}
	return nil
}

// CountEntries returns the number of stored keys
func (db *DB) CountEntries() (int64, error) {
	var count int64
	err := db.conn.QueryRow("SELECT COUNT(*) FROM storage").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}
