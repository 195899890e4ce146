// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Identity is fully delegated to Spotify: the primary external identifier is
// the Spotify user ID. We still generate our own internal string ID (xid)
// for consistency with Playlist and to avoid tying our primary keys to a
// third-party's numbering scheme.
//
// The token triple (access, refresh, expiry) is the delegated-access
// credential for calling the platform on the user's behalf. It is mutated by
// the token lifecycle manager; CreditsRemaining is mutated only by the
// credit ledger's atomic deduction.
type User struct {
	ID               string    `json:"id"          db:"id"`
	SpotifyID        string    `json:"spotifyId"   db:"spotify_id"`
	Email            string    `json:"email"       db:"email"`       // may be empty if hidden on Spotify
	DisplayName      string    `json:"displayName" db:"display_name"`
	AvatarURL        string    `json:"avatarUrl"   db:"avatar_url"`
	AccessToken      string    `json:"-"           db:"spotify_access_token"`
	RefreshToken     string    `json:"-"           db:"spotify_refresh_token"`
	TokenExpiresAt   time.Time `json:"-"           db:"spotify_token_expires_at"`
	CreditsRemaining int       `json:"creditsRemaining" db:"credits_remaining"`
	CreatedAt        time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt"   db:"updated_at"`
}

// Credit cost schedule. A playlist's first regeneration is free regardless
// of input kind; after that the input-kind cost applies again.
const (
	TextCost       = 1
	ImageCost      = 2
	InitialCredits = 5
	MaxCredits     = 5
)
