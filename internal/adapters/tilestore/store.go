// Package tilestore persists tile images in a local single-file SQLite
// database, keyed by the canonical "{z}/{x}/{y}" string.
package tilestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/amchercashin/VeloTrek/internal/core/ports"
)

// Single schema version: created on open, never migrated.
const schema = `
CREATE TABLE IF NOT EXISTS tiles (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS route_tiles (
	route_id TEXT NOT NULL,
	key      TEXT NOT NULL,
	PRIMARY KEY (route_id, key)
);
`

// Store implements ports.TileStore on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the tile database at path.
// Pass ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open tile store: %w", err)
	}

	// Writers are serialized through a single connection; SQLite handles
	// concurrent same-key puts as last-write-wins via the upsert below.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tile schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the stored blob for key, or ports.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM tiles WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tile get %s: %w", key, err)
	}
	return blob, nil
}

// Put stores the blob under key, overwriting any previous value wholesale.
func (s *Store) Put(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tiles (key, data) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET data = excluded.data, created_at = CURRENT_TIMESTAMP
	`, key, blob)
	if err != nil {
		return fmt.Errorf("tile put %s: %w", key, err)
	}
	return nil
}

// Count returns the number of stored tiles.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM tiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("tile count: %w", err)
	}
	return n, nil
}

// Clear removes every tile and every route association.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tiles`); err != nil {
		return fmt.Errorf("tile clear: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM route_tiles`); err != nil {
		return fmt.Errorf("tile clear associations: %w", err)
	}
	return nil
}

// Associate records that key belongs to routeID's offline set.
func (s *Store) Associate(ctx context.Context, routeID, key string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO route_tiles (route_id, key) VALUES (?, ?)
		ON CONFLICT (route_id, key) DO NOTHING
	`, routeID, key)
	if err != nil {
		return fmt.Errorf("tile associate %s: %w", key, err)
	}
	return nil
}

// DeleteRoute removes the tiles associated with routeID, except those a
// second route still references, and returns how many were deleted.
func (s *Store) DeleteRoute(ctx context.Context, routeID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tiles WHERE key IN (
			SELECT key FROM route_tiles WHERE route_id = ?
			EXCEPT
			SELECT key FROM route_tiles WHERE route_id != ?
		)
	`, routeID, routeID)
	if err != nil {
		return 0, fmt.Errorf("tile delete route %s: %w", routeID, err)
	}
	n, _ := res.RowsAffected()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM route_tiles WHERE route_id = ?`, routeID); err != nil {
		return int(n), fmt.Errorf("tile delete route associations: %w", err)
	}
	return int(n), nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
