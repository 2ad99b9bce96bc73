// Package prefs persists operator preferences in a local SQLite database:
// the display name used for set reservations and per-group collapse flags.
// A missing value means the default (anonymous, expanded).
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ramonehamilton/pickdesk/internal/view"
)

const (
	// OperatorNameKey stores the operator display name.
	OperatorNameKey = "picker_name"
	// Anonymous is the operator name used when none is stored.
	Anonymous = "anonymous"

	collapsedPrefix = "set_collapsed_"
)

// Config holds store settings.
type Config struct {
	// Path is the SQLite database file.
	Path string

	// BusyTimeout sets how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns a Config for path.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:        path,
		BusyTimeout: 5 * time.Second,
	}
}

// Store is the preference store.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open creates the database if needed, applies migrations and opens it.
func Open(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Path == "" {
		return nil, fmt.Errorf("preference database path is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	if err := migrateUp(config.Path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", config.Path, config.BusyTimeout.Milliseconds())
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to close database after ping error: %w (original error: %v)", closeErr, err)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{conn: conn, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Get returns the stored value for key and whether one exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	return nil
}

// OperatorName returns the stored display name, or Anonymous.
func (s *Store) OperatorName(ctx context.Context) (string, error) {
	name, ok, err := s.Get(ctx, OperatorNameKey)
	if err != nil {
		return Anonymous, err
	}
	if name = strings.TrimSpace(name); !ok || name == "" {
		return Anonymous, nil
	}
	return name, nil
}

// SetOperatorName stores the display name. Blank input stores Anonymous.
func (s *Store) SetOperatorName(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = Anonymous
	}
	return name, s.Set(ctx, OperatorNameKey, name)
}

// CollapseKey returns the preference key for a set group.
func CollapseKey(setCode string) string {
	return collapsedPrefix + view.GroupKey(setCode)
}

// Collapsed returns the stored collapse flag of a set group.
func (s *Store) Collapsed(ctx context.Context, setCode string) (bool, error) {
	v, _, err := s.Get(ctx, CollapseKey(setCode))
	return v == "1", err
}

// SetCollapsed stores the collapse flag of a set group.
func (s *Store) SetCollapsed(ctx context.Context, setCode string, collapsed bool) error {
	v := "0"
	if collapsed {
		v = "1"
	}
	return s.Set(ctx, CollapseKey(setCode), v)
}

// IsCollapsed reports the stored flag for a group key, treating read
// failures as expanded.
func (s *Store) IsCollapsed(key string) bool {
	collapsed, err := s.Collapsed(context.Background(), key)
	if err != nil {
		s.logger.Warn("Failed to read collapse state", "group", key, "error", err)
		return false
	}
	return collapsed
}
