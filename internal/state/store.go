package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"groupsched/internal/model"
)

// Keys in the kv table. They are global, not per group.
const (
	KeySelectedGroup = "selectedGroup"
	KeyViewMode      = "viewMode"
	KeyAnchorDate    = "anchorDate"
)

// Store is the durable key-value state of the viewer: the selected group,
// view mode, anchor date and the calendar day markers.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path. ":memory:" keeps
// everything in memory.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := initDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS day_marker (
		group_name TEXT NOT NULL,
		month TEXT NOT NULL,
		day INTEGER NOT NULL,
		PRIMARY KEY (group_name, month, day)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// LoadNavigation reads the saved group, view mode and anchor date. Missing
// or unreadable values come back as zero values.
func (s *Store) LoadNavigation(ctx context.Context) (model.NavigationState, error) {
	var st model.NavigationState

	group, _, err := s.Get(ctx, KeySelectedGroup)
	if err != nil {
		return st, err
	}
	st.Group = group

	mode, _, err := s.Get(ctx, KeyViewMode)
	if err != nil {
		return st, err
	}
	if m, perr := model.ParseViewMode(mode); perr == nil {
		st.Mode = m
	}

	anchor, ok, err := s.Get(ctx, KeyAnchorDate)
	if err != nil {
		return st, err
	}
	if ok {
		if d, perr := model.ParseDate(anchor); perr == nil {
			st.Anchor = d
		}
	}
	return st, nil
}

// SaveNavigation writes all three navigation keys in one transaction.
func (s *Store) SaveNavigation(ctx context.Context, st model.NavigationState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const upsert = "INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value"
	pairs := [][2]string{
		{KeySelectedGroup, st.Group},
		{KeyViewMode, string(st.Mode)},
		{KeyAnchorDate, st.Anchor.String()},
	}
	for _, p := range pairs {
		if _, err := tx.ExecContext(ctx, upsert, p[0], p[1]); err != nil {
			return fmt.Errorf("save %s: %w", p[0], err)
		}
	}
	return tx.Commit()
}

// Markers returns the marked days of month (any date inside it) for group,
// ascending.
func (s *Store) Markers(ctx context.Context, group string, month model.Date) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT day FROM day_marker WHERE group_name = ? AND month = ? ORDER BY day",
		group, month.MonthKey())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := make([]int, 0)
	for rows.Next() {
		var day int
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

// ToggleMarker marks day if it is unmarked and unmarks it otherwise, then
// returns the month's markers.
func (s *Store) ToggleMarker(ctx context.Context, group string, month model.Date, day int) ([]int, error) {
	if group == "" {
		return nil, errors.New("group is empty")
	}
	if day < 1 || day > month.LastOfMonth().Day() {
		return nil, fmt.Errorf("day %d is outside %s", day, month.MonthKey())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM day_marker WHERE group_name = ? AND month = ? AND day = ?",
		group, month.MonthKey(), day)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO day_marker (group_name, month, day) VALUES (?, ?, ?)",
			group, month.MonthKey(), day); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.Markers(ctx, group, month)
}
