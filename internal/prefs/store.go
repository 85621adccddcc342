// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sprout-labs/farmassist/internal/util"

	_ "modernc.org/sqlite"
)

// Well-known preference keys.
const (
	KeyUserID        = "userId"
	KeyFarmID        = "farmId"
	KeyFarmName      = "farmName"
	KeyNotifications = "notifications"
)

// KnownKeys lists the well-known keys in display order.
var KnownKeys = []string{KeyUserID, KeyFarmID, KeyFarmName, KeyNotifications}

// MaxValueLength bounds a stored value, in runes.
const MaxValueLength = 4096

var (
	// ErrInvalidKey is returned for blank or oversized keys.
	ErrInvalidKey = errors.New("invalid preference key")

	// ErrReservedKey is returned for keys that look like credentials.
	ErrReservedKey = errors.New("credentials cannot be stored as preferences")

	// ErrValueTooLong is returned when a value exceeds MaxValueLength.
	ErrValueTooLong = errors.New("preference value too long")
)

const schema = `
CREATE TABLE IF NOT EXISTS prefs (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Entry is one stored preference.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a preference database. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a throwaway store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create prefs directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prefs database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and avoids
	// SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create prefs schema: %w", err)
	}
	if path != ":memory:" {
		_ = os.Chmod(path, 0600)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NormalizeKey validates key and returns its canonical form.
func NormalizeKey(key string) (string, error) {
	k := util.NormalizeInput(key)
	if k == "" || len([]rune(k)) > 128 {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	lower := strings.ToLower(strings.NewReplacer("_", "", "-", "", ".", "").Replace(k))
	for _, reserved := range []string{"apikey", "token", "secret", "password"} {
		if strings.Contains(lower, reserved) {
			return "", fmt.Errorf("%w: %q", ErrReservedKey, key)
		}
	}
	return k, nil
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return "", false, err
	}
	var value string
	err = s.db.QueryRowContext(ctx, "SELECT value FROM prefs WHERE key = ?", k).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference %q: %w", k, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	k, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	if len([]rune(value)) > MaxValueLength {
		return fmt.Errorf("%w: %d runes (max %d)", ErrValueTooLong, len([]rune(value)), MaxValueLength)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		k, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write preference %q: %w", k, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	k, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM prefs WHERE key = ?", k); err != nil {
		return fmt.Errorf("failed to delete preference %q: %w", k, err)
	}
	return nil
}

// All returns every entry ordered by key.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value, updated_at FROM prefs ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated int64
		if err := rows.Scan(&e.Key, &e.Value, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		e.UpdatedAt = time.UnixMilli(updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
