package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS notes (
  id             TEXT PRIMARY KEY,
  owner          TEXT NOT NULL,
  title          TEXT NOT NULL,
  extracted_text TEXT NOT NULL,
  created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_owner_created ON notes(owner, created_at DESC);
`

// Postgres stores notes in a shared PostgreSQL database.
type Postgres struct {
	pool  *pgxpool.Pool
	owner string
}

// OpenPostgres connects, verifies the connection and ensures the schema.
func OpenPostgres(ctx context.Context, dsn, owner string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Postgres{pool: pool, owner: owner}, nil
}

// Create inserts a note owned by the store's owner.
func (p *Postgres) Create(ctx context.Context, title, text string) (Note, error) {
	n := Note{Title: title, Owner: p.owner, Text: text}
	id, err := newID(time.Now())
	if err != nil {
		return Note{}, fmt.Errorf("failed to generate id: %w", err)
	}
	err = p.pool.QueryRow(ctx,
		`INSERT INTO notes (id, owner, title, extracted_text, created_at) VALUES ($1, $2, $3, $4, now()) RETURNING id, created_at`,
		id, p.owner, title, text).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("failed to insert note: %w", err)
	}
	return n, nil
}

// Delete removes one of the owner's notes.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND owner = $2`, id, p.owner); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// List returns the owner's notes, newest first.
func (p *Postgres) List(ctx context.Context) ([]Note, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, owner, title, extracted_text, created_at FROM notes WHERE owner = $1 ORDER BY id DESC`,
		p.owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	out := []Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Owner, &n.Title, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
