package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// History archives every relayed event and lifecycle transition in
// SQLite so the API can answer "what happened recently" after the chat
// scrollback is gone.
type History struct {
	db *sql.DB
}

// Entry is one archived history row.
type Entry struct {
	ID     int64     `json:"id"`
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Player string    `json:"player,omitempty"`
	Body   string    `json:"body,omitempty"`
}

// OpenHistory opens (or creates) the history database in WAL mode.
func OpenHistory(path string) (*History, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(2)

	h := &History{db: db}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return h, nil
}

// Close closes the database connection.
func (h *History) Close() error { return h.db.Close() }

func (h *History) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id     INTEGER PRIMARY KEY AUTOINCREMENT,
		at     TEXT NOT NULL,
		kind   TEXT NOT NULL,
		player TEXT,
		body   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_history_at ON history(at);
	CREATE INDEX IF NOT EXISTS idx_history_kind ON history(kind);
	`
	_, err := h.db.Exec(schema)
	return err
}

// Record appends one history row.
func (h *History) Record(at time.Time, kind, player, body string) error {
	return retryBusy(func() error {
		_, err := h.db.Exec(
			`INSERT INTO history (at, kind, player, body) VALUES (?, ?, ?, ?)`,
			at.UTC().Format(time.RFC3339Nano), kind, player, body,
		)
		return err
	})
}

// Recent returns the newest limit entries, newest first.
func (h *History) Recent(limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := h.db.Query(
		`SELECT id, at, kind, COALESCE(player,''), COALESCE(body,'')
		 FROM history ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var atStr string
		if err := rows.Scan(&e.ID, &atStr, &e.Kind, &e.Player, &e.Body); err != nil {
			return nil, err
		}
		e.At, err = time.Parse(time.RFC3339Nano, atStr)
		if err != nil {
			return nil, fmt.Errorf("parse at for history row %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// retryBusy retries writes that hit transient SQLite contention. A
// single-process bridge rarely needs it, but the WebSocket hub and the
// bridge pump both record concurrently.
func retryBusy(fn func() error) error {
	var lastErr error
	delay := 50 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isBusy(lastErr) {
			return lastErr
		}
		time.Sleep(delay)
		delay *= 2
	}
	return lastErr
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "(5)")
}
