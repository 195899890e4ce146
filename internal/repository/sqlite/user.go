package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/vibelist/internal/apperror"
	"github.com/sakif/vibelist/internal/model"
	"github.com/sakif/vibelist/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Upsert inserts or updates a user keyed by spotify_id.
//
// First login inserts the row with the initial credit balance; subsequent
// logins refresh the profile fields and token triple while keeping the
// existing internal ID and the existing balance. Credits are only ever
// changed through DeductCredits.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE spotify_id = ?`, user.SpotifyID,
	).Scan(&existingID)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up user by spotify_id %s: %w", user.SpotifyID, err)
	}

	if existingID != "" {
		user.ID = existingID
		user.UpdatedAt = time.Now()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET email = ?, display_name = ?, avatar_url = ?,
			        spotify_access_token = ?, spotify_refresh_token = ?,
			        spotify_token_expires_at = ?, updated_at = ?
			 WHERE id = ?`,
			user.Email,
			user.DisplayName,
			user.AvatarURL,
			user.AccessToken,
			user.RefreshToken,
			user.TokenExpiresAt,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}

		// Report the stored balance back to the caller.
		err = db.conn.QueryRowContext(ctx,
			`SELECT credits_remaining FROM users WHERE id = ?`, user.ID,
		).Scan(&user.CreditsRemaining)
		if err != nil {
			return fmt.Errorf("sqlite: reading balance for user %s: %w", user.ID, err)
		}
	} else {
		now := time.Now()
		user.ID = xid.New().String()
		user.CreditsRemaining = model.InitialCredits
		user.CreatedAt = now
		user.UpdatedAt = now

		_, err = db.conn.ExecContext(ctx,
			`INSERT INTO users (id, spotify_id, email, display_name, avatar_url,
			        spotify_access_token, spotify_refresh_token,
			        spotify_token_expires_at, credits_remaining, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID,
			user.SpotifyID,
			user.Email,
			user.DisplayName,
			user.AvatarURL,
			user.AccessToken,
			user.RefreshToken,
			user.TokenExpiresAt,
			user.CreditsRemaining,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting user (spotifyID=%s): %w", user.SpotifyID, err)
		}
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, spotify_id, email, display_name, avatar_url,
		        spotify_access_token, spotify_refresh_token,
		        spotify_token_expires_at, credits_remaining, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(
		&u.ID,
		&u.SpotifyID,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&u.AccessToken,
		&u.RefreshToken,
		&u.TokenExpiresAt,
		&u.CreditsRemaining,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return &u, nil
}

// UpdateTokens persists a refreshed credential. No transaction: token
// issuance is idempotent from the provider's perspective, so concurrent
// refreshes resolve as last-writer-wins.
func (db *DB) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET spotify_access_token = ?, spotify_refresh_token = ?,
		        spotify_token_expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		accessToken, refreshToken, expiresAt, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating tokens for user %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating tokens for user %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}

// DeductCredits is the store-side atomic check-and-deduct.
//
// The guard lives in the WHERE clause, so two concurrent requests can never
// both pass a separate balance check and collectively overdraw: exactly one
// UPDATE wins, the other affects zero rows and reports insufficiency with
// the -1 sentinel.
func (db *DB) DeductCredits(ctx context.Context, id string, cost int) (int, error) {
	if cost <= 0 {
		return 0, fmt.Errorf("sqlite: deduction cost must be positive, got %d", cost)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning deduction tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET credits_remaining = credits_remaining - ?, updated_at = ?
		 WHERE id = ? AND credits_remaining >= ?`,
		cost, time.Now(), id, cost,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deducting %d credits from user %s: %w", cost, id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: deducting credits from user %s: %w", id, err)
	}

	if n == 0 {
		// Either the user doesn't exist or the balance was short.
		var balance int
		err := tx.QueryRowContext(ctx,
			`SELECT credits_remaining FROM users WHERE id = ?`, id,
		).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("user", id)
		}
		if err != nil {
			return 0, fmt.Errorf("sqlite: checking balance for user %s: %w", id, err)
		}
		return -1, tx.Commit()
	}

	var newBalance int
	err = tx.QueryRowContext(ctx,
		`SELECT credits_remaining FROM users WHERE id = ?`, id,
	).Scan(&newBalance)
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading new balance for user %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing deduction for user %s: %w", id, err)
	}

	return newBalance, nil
}
