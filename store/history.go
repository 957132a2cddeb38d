// Package store persists rotation history in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/thaleshodan/proxange/identity"
)

// Entry is one recorded rotation
type Entry struct {
	ID      string
	Trigger string
	Address string
	Proxy   string
	Country string
	City    string
	Latency time.Duration
	At      time.Time
}

// History implements identity.Recorder on SQLite
type History struct {
	db *sql.DB
}

// Open opens or creates the history database; ":memory:" gives a private in-memory store
func Open(path string) (*History, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database shared and serializes writers
	db.SetMaxOpenConns(1)

	h := &History{db: db}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return h, nil
}

func (h *History) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rotations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		cause TEXT NOT NULL,
		address TEXT NOT NULL,
		proxy TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		latency_ns INTEGER NOT NULL DEFAULT 0,
		at_unix_ns INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rotations_at ON rotations(at_unix_ns);
	CREATE INDEX IF NOT EXISTS idx_rotations_address ON rotations(address);
	`

	_, err := h.db.Exec(schema)
	return err
}

// Record stores one rotation
func (h *History) Record(ctx context.Context, id identity.Identity, trigger string) error {
	at := id.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO rotations (id, cause, address, proxy, country, city, latency_ns, at_unix_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id.ID.String(), trigger, id.Address, id.Proxy, id.Location.Country, id.Location.City,
		int64(id.Latency), at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert rotation: %w", err)
	}
	return nil
}

// Recent returns up to limit rotations, newest first
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, cause, address, proxy, country, city, latency_ns, at_unix_ns
		FROM rotations
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rotations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			latencyNs int64
			atNs      int64
		)
		if err := rows.Scan(&e.ID, &e.Trigger, &e.Address, &e.Proxy, &e.Country, &e.City, &latencyNs, &atNs); err != nil {
			return nil, fmt.Errorf("failed to scan rotation: %w", err)
		}
		e.Latency = time.Duration(latencyNs)
		e.At = time.Unix(0, atNs)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of recorded rotations
func (h *History) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rotations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rotations: %w", err)
	}
	return n, nil
}

// DistinctAddresses returns how many different exit addresses were seen
func (h *History) DistinctAddresses(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT address) FROM rotations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count addresses: %w", err)
	}
	return n, nil
}

// Purge deletes every recorded rotation and returns how many were removed
func (h *History) Purge(ctx context.Context) (int, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM rotations`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rotations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge rotations: %w", err)
	}
	return int(n), nil
}

// Close closes the database
func (h *History) Close() error {
	return h.db.Close()
}
