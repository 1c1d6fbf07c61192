// Package notes persists saved captures as user-owned notes.
package notes

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Note is an immutable saved capture.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	Text      string    `json:"extracted_text"`
}

// Sink is what the capture side needs from note storage.
type Sink interface {
	// Create stores a note and returns it as recorded.
	Create(ctx context.Context, title, text string) (Note, error)
	// Delete removes a note. Deleting a missing note is not an error.
	Delete(ctx context.Context, id string) error
	// List returns the owner's notes, newest first.
	List(ctx context.Context) ([]Note, error)
}

// Store is a Sink backed by a database connection.
type Store interface {
	Sink
	Close() error
}

// DefaultTitle is used when the user saves without a title.
func DefaultTitle(now time.Time) string {
	return "Note " + now.Format("1/2/2006, 3:04:05 PM")
}

// Open picks a backend from the DSN: PostgreSQL for postgres:// URLs,
// otherwise a SQLite file path.
func Open(ctx context.Context, dsn, owner string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return OpenPostgres(ctx, dsn, owner)
	}
	return OpenSQLite(dsn, owner)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newID returns a ULID; ids sort by creation time.
func newID(now time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
