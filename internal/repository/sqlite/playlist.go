package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/vibelist/internal/apperror"
	"github.com/sakif/vibelist/internal/model"
	"github.com/sakif/vibelist/internal/repository"
)

// compile-time check that *DB implements repository.PlaylistRepository
var _ repository.PlaylistRepository = (*DB)(nil)

const playlistColumns = `id, user_id, spotify_playlist_id, spotify_playlist_url,
	name, input_type, input_text, input_image_urls, track_count, tracks,
	is_public, regeneration_used, credits_charged, status, created_at, updated_at`

// Create inserts a new playlist row. The caller sets the lifecycle fields
// (status, input payload); Create fills in ID and timestamps.
func (db *DB) Create(ctx context.Context, p *model.Playlist) error {
	now := time.Now()
	p.ID = xid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now

	tracksJSON, err := marshalTracks(p.Tracks)
	if err != nil {
		return err
	}
	imagesJSON, err := marshalStrings(p.InputImageURLs)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO playlists (id, user_id, spotify_playlist_id, spotify_playlist_url,
		        name, input_type, input_text, input_image_urls, track_count, tracks,
		        is_public, regeneration_used, credits_charged, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.UserID,
		p.SpotifyPlaylistID,
		p.SpotifyPlaylistURL,
		p.Name,
		string(p.InputType),
		p.InputText,
		imagesJSON,
		p.TrackCount,
		tracksJSON,
		p.IsPublic,
		p.RegenerationUsed,
		p.CreditsCharged,
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting playlist for user %s: %w", p.UserID, err)
	}

	return nil
}

// GetByIDForUser fetches a playlist the given user owns. The owner filter is
// part of the query, so a foreign playlist is indistinguishable from a
// missing one.
func (db *DB) GetByIDForUser(ctx context.Context, id, userID string) (*model.Playlist, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE id = ? AND user_id = ?`,
		id, userID,
	)

	p, err := scanPlaylist(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("playlist", id)
		}
		return nil, fmt.Errorf("sqlite: getting playlist %s: %w", id, err)
	}

	return p, nil
}

// ListByUser returns the user's playlists, newest first.
func (db *DB) ListByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Playlist, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+playlistColumns+` FROM playlists
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing playlists for user %s: %w", userID, err)
	}
	defer rows.Close()

	playlists := []model.Playlist{}
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning playlist row: %w", err)
		}
		playlists = append(playlists, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating playlist rows: %w", err)
	}

	return playlists, nil
}

// Update persists the mutable playlist fields by id.
func (db *DB) Update(ctx context.Context, p *model.Playlist) error {
	tracksJSON, err := marshalTracks(p.Tracks)
	if err != nil {
		return err
	}

	p.UpdatedAt = time.Now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE playlists SET spotify_playlist_id = ?, spotify_playlist_url = ?,
		        name = ?, track_count = ?, tracks = ?, is_public = ?,
		        regeneration_used = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		p.SpotifyPlaylistID,
		p.SpotifyPlaylistURL,
		p.Name,
		p.TrackCount,
		tracksJSON,
		p.IsPublic,
		p.RegenerationUsed,
		string(p.Status),
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating playlist %s: %w", p.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating playlist %s: %w", p.ID, err)
	}
	if n == 0 {
		return apperror.NotFound("playlist", p.ID)
	}

	return nil
}

// SetStatus records a bare state transition (generating → failed).
func (db *DB) SetStatus(ctx context.Context, id string, status model.Status) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE playlists SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting playlist %s status: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: setting playlist %s status: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("playlist", id)
	}

	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(s scanner) (*model.Playlist, error) {
	var (
		p          model.Playlist
		inputType  string
		status     string
		tracksJSON string
		imagesJSON string
	)

	err := s.Scan(
		&p.ID,
		&p.UserID,
		&p.SpotifyPlaylistID,
		&p.SpotifyPlaylistURL,
		&p.Name,
		&inputType,
		&p.InputText,
		&imagesJSON,
		&p.TrackCount,
		&tracksJSON,
		&p.IsPublic,
		&p.RegenerationUsed,
		&p.CreditsCharged,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.InputType = model.InputType(inputType)
	p.Status = model.Status(status)

	if err := json.Unmarshal([]byte(tracksJSON), &p.Tracks); err != nil {
		return nil, fmt.Errorf("decoding tracks for playlist %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(imagesJSON), &p.InputImageURLs); err != nil {
		return nil, fmt.Errorf("decoding image urls for playlist %s: %w", p.ID, err)
	}

	return &p, nil
}

func marshalTracks(tracks []model.Track) (string, error) {
	if tracks == nil {
		tracks = []model.Track{}
	}
	b, err := json.Marshal(tracks)
	if err != nil {
		return "", fmt.Errorf("encoding tracks: %w", err)
	}
	return string(b), nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encoding string list: %w", err)
	}
	return string(b), nil
}
