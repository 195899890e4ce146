// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite — no CGo, no C
// compiler, works everywhere Go works. WAL mode lets concurrent requests
// read while a write is in flight, which matters for a web server.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces. The server owns it and closes it on shutdown.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath (":memory:" for tests), applies pragmas,
// and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Surface a bad path or permissions problem now, not on first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this safe to
// run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                       TEXT PRIMARY KEY,
			spotify_id               TEXT NOT NULL UNIQUE,
			email                    TEXT NOT NULL DEFAULT '',
			display_name             TEXT NOT NULL DEFAULT '',
			avatar_url               TEXT NOT NULL DEFAULT '',
			spotify_access_token     TEXT NOT NULL DEFAULT '',
			spotify_refresh_token    TEXT NOT NULL DEFAULT '',
			spotify_token_expires_at DATETIME NOT NULL,
			credits_remaining        INTEGER NOT NULL DEFAULT 0 CHECK (credits_remaining >= 0),
			created_at               DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at               DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// tracks and input_image_urls hold JSON arrays; SQLite stores them as
	// TEXT and the repo (de)serializes at the boundary.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS playlists (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT NOT NULL REFERENCES users(id),
			spotify_playlist_id  TEXT NOT NULL DEFAULT '',
			spotify_playlist_url TEXT NOT NULL DEFAULT '',
			name                 TEXT NOT NULL,
			input_type           TEXT NOT NULL,
			input_text           TEXT NOT NULL DEFAULT '',
			input_image_urls     TEXT NOT NULL DEFAULT '[]',
			track_count          INTEGER NOT NULL,
			tracks               TEXT NOT NULL DEFAULT '[]',
			is_public            INTEGER NOT NULL DEFAULT 0,
			regeneration_used    INTEGER NOT NULL DEFAULT 0,
			credits_charged      INTEGER NOT NULL DEFAULT 0,
			status               TEXT NOT NULL,
			created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_playlists_user_id ON playlists(user_id);
		CREATE INDEX IF NOT EXISTS idx_playlists_created_at ON playlists(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating playlists table: %w", err)
	}

	return nil
}
