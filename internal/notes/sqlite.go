package notes

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the latest SQLite schema version.
const SchemaVersion = 1

// SQLite stores notes in a local database file.
type SQLite struct {
	db    *sql.DB
	owner string
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path, owner string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create notes directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(path, 0o600)

	return &SQLite{db: db, owner: owner}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to get user_version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS notes (
		  id             TEXT PRIMARY KEY,
		  owner          TEXT NOT NULL,
		  title          TEXT NOT NULL,
		  extracted_text TEXT NOT NULL,
		  created_at     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_notes_owner_created
		ON notes(owner, created_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", 1)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}
	return nil
}

// Create inserts a note owned by the store's owner.
func (s *SQLite) Create(ctx context.Context, title, text string) (Note, error) {
	// created_at is stored in milliseconds.
	now := time.UnixMilli(time.Now().UnixMilli())
	id, err := newID(now)
	if err != nil {
		return Note{}, fmt.Errorf("failed to generate id: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (id, owner, title, extracted_text, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, s.owner, title, text, now.UnixMilli())
	if err != nil {
		return Note{}, fmt.Errorf("failed to insert note: %w", err)
	}
	return Note{ID: id, Title: title, Owner: s.owner, CreatedAt: now, Text: text}, nil
}

// Delete removes one of the owner's notes.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND owner = ?`, id, s.owner); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// List returns the owner's notes, newest first.
func (s *SQLite) List(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, title, extracted_text, created_at FROM notes WHERE owner = ? ORDER BY id DESC`,
		s.owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	out := []Note{}
	for rows.Next() {
		var n Note
		var created int64
		if err := rows.Scan(&n.ID, &n.Owner, &n.Title, &n.Text, &created); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.CreatedAt = time.UnixMilli(created)
		out = append(out, n)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
