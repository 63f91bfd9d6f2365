// Package store persists player state in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/osn942/spindle/internal/app/queue"
	"github.com/osn942/spindle/internal/domain/track"
)

// Store persists the queue and playback modes across restarts.
type Store struct {
	db *sql.DB
}

// Open opens the database at path, creating the file and schema when
// missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create store directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to apply %s", pragma)
		}
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveState replaces the persisted state inside one transaction.
func (s *Store) SaveState(ctx context.Context, snap queue.Snapshot, volume int) error {
	stdOrder, err := json.Marshal(snap.StandardOrder)
	if err != nil {
		return errors.Wrap(err, "failed to encode standard order")
	}
	shufOrder, err := json.Marshal(snap.ShuffleOrder)
	if err != nil {
		return errors.Wrap(err, "failed to encode shuffle order")
	}
	var lastPlayed sql.NullString
	if snap.LastPlayed != nil {
		b, err := json.Marshal(snap.LastPlayed)
		if err != nil {
			return errors.Wrap(err, "failed to encode last played")
		}
		lastPlayed = sql.NullString{String: string(b), Valid: true}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO player_state (
				id, current_index, previous_index, shuffle, repeat_mode,
				volume, standard_order, shuffle_order, last_played,
				next_seq, updated_at
			) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				current_index = excluded.current_index,
				previous_index = excluded.previous_index,
				shuffle = excluded.shuffle,
				repeat_mode = excluded.repeat_mode,
				volume = excluded.volume,
				standard_order = excluded.standard_order,
				shuffle_order = excluded.shuffle_order,
				last_played = excluded.last_played,
				next_seq = excluded.next_seq,
				updated_at = excluded.updated_at
		`, snap.CurrentIndex, snap.PreviousIndex, snap.Shuffle,
			string(snap.Repeat), volume, string(stdOrder), string(shufOrder),
			lastPlayed, snap.NextSeq, time.Now().Unix(),
		); err != nil {
			return errors.Wrap(err, "failed to save player state")
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_entries`); err != nil {
			return errors.Wrap(err, "failed to clear queue entries")
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO queue_entries (
				position, seq, origin, track_id, name, artists, album_id,
				album_name, duration_ms, genres, year, grouping,
				stream_url, added_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return errors.Wrap(err, "failed to prepare entry insert")
		}
		defer stmt.Close()

		for i, en := range snap.Entries {
			artists, err := json.Marshal(en.Track.Artists)
			if err != nil {
				return errors.Wrapf(err, "failed to encode artists for %s", en.Track.ID)
			}
			genres, err := json.Marshal(en.Track.Genres)
			if err != nil {
				return errors.Wrapf(err, "failed to encode genres for %s", en.Track.ID)
			}
			if _, err := stmt.ExecContext(ctx,
				i, en.Seq, string(en.Origin), en.Track.ID, en.Track.Name,
				string(artists), en.Track.Album.ID, en.Track.Album.Name,
				en.Track.Duration.Milliseconds(), string(genres),
				en.Track.Year, en.Track.Grouping, en.Track.StreamURL,
				en.AddedAt.Unix(),
			); err != nil {
				return errors.Wrapf(err, "failed to save entry %d", i)
			}
		}
		return nil
	})
}

// LoadState reads the persisted state. ok is false on a fresh
// database.
func (s *Store) LoadState(ctx context.Context) (queue.Snapshot, int, bool, error) {
	var (
		snap       queue.Snapshot
		repeat     string
		volume     int
		stdOrder   string
		shufOrder  string
		lastPlayed sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT current_index, previous_index, shuffle, repeat_mode,
			volume, standard_order, shuffle_order, last_played, next_seq
		FROM player_state WHERE id = 1
	`).Scan(&snap.CurrentIndex, &snap.PreviousIndex, &snap.Shuffle, &repeat,
		&volume, &stdOrder, &shufOrder, &lastPlayed, &snap.NextSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Snapshot{}, 0, false, nil
	}
	if err != nil {
		return queue.Snapshot{}, 0, false, errors.Wrap(err, "failed to load player state")
	}

	snap.Repeat = queue.RepeatMode(repeat)
	if err := json.Unmarshal([]byte(stdOrder), &snap.StandardOrder); err != nil {
		return queue.Snapshot{}, 0, false, errors.Wrap(err, "failed to decode standard order")
	}
	if err := json.Unmarshal([]byte(shufOrder), &snap.ShuffleOrder); err != nil {
		return queue.Snapshot{}, 0, false, errors.Wrap(err, "failed to decode shuffle order")
	}
	if lastPlayed.Valid {
		var t track.Track
		if err := json.Unmarshal([]byte(lastPlayed.String), &t); err != nil {
			return queue.Snapshot{}, 0, false, errors.Wrap(err, "failed to decode last played")
		}
		snap.LastPlayed = &t
	}

	entries, err := s.loadEntries(ctx)
	if err != nil {
		return queue.Snapshot{}, 0, false, err
	}
	snap.Entries = entries
	return snap, volume, true, nil
}

func (s *Store) loadEntries(ctx context.Context) ([]track.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, origin, track_id, name, artists, album_id, album_name,
			duration_ms, genres, year, grouping, stream_url, added_at
		FROM queue_entries ORDER BY position
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load queue entries")
	}
	defer rows.Close()

	var entries []track.Entry
	for rows.Next() {
		var (
			en         track.Entry
			origin     string
			artists    string
			genres     string
			durationMS int64
			addedAt    int64
			albumID    sql.NullString
			albumName  sql.NullString
			year       sql.NullInt64
			grouping   sql.NullString
			streamURL  sql.NullString
		)
		if err := rows.Scan(&en.Seq, &origin, &en.Track.ID, &en.Track.Name,
			&artists, &albumID, &albumName, &durationMS, &genres,
			&year, &grouping, &streamURL, &addedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan queue entry")
		}
		en.Origin = track.Origin(origin)
		if err := json.Unmarshal([]byte(artists), &en.Track.Artists); err != nil {
			return nil, errors.Wrapf(err, "failed to decode artists for %s", en.Track.ID)
		}
		if err := json.Unmarshal([]byte(genres), &en.Track.Genres); err != nil {
			return nil, errors.Wrapf(err, "failed to decode genres for %s", en.Track.ID)
		}
		en.Track.Album = track.Album{ID: albumID.String, Name: albumName.String}
		en.Track.Duration = time.Duration(durationMS) * time.Millisecond
		en.Track.Year = int(year.Int64)
		en.Track.Grouping = grouping.String
		en.Track.StreamURL = streamURL.String
		en.AddedAt = time.Unix(addedAt, 0)
		entries = append(entries, en)
	}
	return entries, errors.Wrap(rows.Err(), "failed to iterate queue entries")
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}
