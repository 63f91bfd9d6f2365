package store

import (
	"database/sql"

	"github.com/cockroachdb/errors"
)

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS player_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_index INTEGER NOT NULL DEFAULT -1,
			previous_index INTEGER NOT NULL DEFAULT -1,
			shuffle INTEGER NOT NULL DEFAULT 0,
			repeat_mode TEXT NOT NULL DEFAULT 'off',
			volume INTEGER NOT NULL DEFAULT 100,
			standard_order TEXT NOT NULL DEFAULT '[]',
			shuffle_order TEXT NOT NULL DEFAULT '[]',
			last_played TEXT,
			next_seq INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS queue_entries (
			position INTEGER NOT NULL UNIQUE,
			seq INTEGER NOT NULL,
			origin TEXT NOT NULL,
			track_id TEXT NOT NULL,
			name TEXT NOT NULL,
			artists TEXT NOT NULL DEFAULT '[]',
			album_id TEXT,
			album_name TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			genres TEXT NOT NULL DEFAULT '[]',
			year INTEGER,
			grouping TEXT,
			stream_url TEXT,
			added_at INTEGER NOT NULL DEFAULT 0
		);
	`)
	return errors.Wrap(err, "failed to create schema")
}
