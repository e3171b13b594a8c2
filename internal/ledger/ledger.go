// Package ledger keeps an append-only SQLite record of publish outcomes for
// the published command. It is never consulted when publishing.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snapetech/streamresolvr/internal/publish"
)

const schema = `
CREATE TABLE IF NOT EXISTS publishes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	filename     TEXT NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	store        TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	published_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS publishes_filename ON publishes(filename);
`

// Entry is one recorded publish.
type Entry struct {
	Filename    string    `json:"filename"`
	URL         string    `json:"url"`
	Store       string    `json:"store"`
	Error       string    `json:"error,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Ledger is a publish.Recorder backed by SQLite.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger open %s: %w", path, err)
	}
	// SQLite takes one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// Record implements publish.Recorder.
func (l *Ledger) Record(ctx context.Context, o publish.Outcome) error {
	errText := ""
	if o.Err != nil {
		errText = o.Err.Error()
	}
	at := o.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO publishes (filename, url, store, error, published_at) VALUES (?, ?, ?, ?, ?)`,
		o.Filename, o.URL, o.Store, errText, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ledger record %s: %w", o.Filename, err)
	}
	return nil
}

// Recent returns the n most recent entries, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT filename, url, store, error, published_at FROM publishes ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("ledger query: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.Filename, &e.URL, &e.Store, &e.Error, &at); err != nil {
			return nil, err
		}
		e.PublishedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of recorded publishes per store.
func (l *Ledger) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT store, COUNT(*) FROM publishes GROUP BY store`)
	if err != nil {
		return nil, fmt.Errorf("ledger counts: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var store string
		var n int
		if err := rows.Scan(&store, &n); err != nil {
			return nil, err
		}
		out[store] = n
	}
	return out, rows.Err()
}
