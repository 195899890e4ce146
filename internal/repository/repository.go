// Package repository defines the persistence interfaces consumed by the
// service layer. The sqlite subpackage implements them; tests use in-memory
// mocks.
package repository

import (
	"context"
	"time"

	"github.com/sakif/vibelist/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	// Upsert inserts or updates a user keyed by their Spotify ID. New users
	// are seeded with the initial credit balance; updates never touch
	// credits_remaining (only the ledger's atomic deduction does).
	Upsert(ctx context.Context, user *model.User) error

	GetByID(ctx context.Context, id string) (*model.User, error)

	// UpdateTokens persists a refreshed credential. Last writer wins —
	// concurrent refreshes both produce valid tokens so no locking is used.
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error

	// DeductCredits atomically checks and deducts cost from the user's
	// balance in a single conditional statement. Returns the new balance,
	// or -1 when the balance is insufficient (the balance is never driven
	// negative). cost must be positive.
	DeductCredits(ctx context.Context, id string, cost int) (int, error)
}

type PlaylistRepository interface {
	Create(ctx context.Context, playlist *model.Playlist) error

	// GetByIDForUser fetches a playlist only if it is owned by userID.
	// A playlist owned by someone else yields the same NotFound as a
	// missing row.
	GetByIDForUser(ctx context.Context, id, userID string) (*model.Playlist, error)

	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Playlist, error)

	// Update persists the mutable playlist fields by id.
	Update(ctx context.Context, playlist *model.Playlist) error

	// SetStatus records a bare state transition, used for the
	// generating → failed path.
	SetStatus(ctx context.Context, id string, status model.Status) error
}
