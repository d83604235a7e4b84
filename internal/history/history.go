package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilnhq/kilnd/internal/paths"
)

// Default number of records returned by Recent when the caller passes a
// non-positive limit.
const DefaultLimit = 20

const schema = `
CREATE TABLE IF NOT EXISTS bakes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	output TEXT NOT NULL,
	platforms TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	baked_at DATETIME NOT NULL
)`

// A single bake ledger entry.
type Record struct {
	ID        int64         // Assigned by the ledger on append.
	Name      string        // Recipe name.
	Output    string        // Output directory of the baked image.
	Platforms string        // Comma-joined target platforms.
	Duration  time.Duration // Wall-clock bake duration.
	Error     string        // Error message; empty for a successful bake.
	BakedAt   time.Time     // When the bake started.
}

// The bake ledger backed by a SQLite database file.
type Ledger struct {
	db *sql.DB
}

// Opens the ledger at the given path, creating the database file and
// schema if they do not exist. The parent directory is created as needed.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHistory, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistory, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrHistory, err)
	}

	return &Ledger{db: db}, nil
}

// Closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Appends a record to the ledger and returns its assigned ID.
func (l *Ledger) Append(rec Record) (int64, error) {
	res, err := l.db.Exec(`
		INSERT INTO bakes (name, output, platforms, duration_ms, error, baked_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Name, rec.Output, rec.Platforms, rec.Duration.Milliseconds(), rec.Error, rec.BakedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHistory, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHistory, err)
	}

	return id, nil
}

// Returns the most recent records, newest first.
//
// A non-positive limit returns at most [DefaultLimit] records.
func (l *Ledger) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := l.db.Query(`
		SELECT id, name, output, platforms, duration_ms, error, baked_at
		FROM bakes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistory, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Output, &rec.Platforms, &durationMS, &rec.Error, &rec.BakedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHistory, err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistory, err)
	}

	return records, nil
}
