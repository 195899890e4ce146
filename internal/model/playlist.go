package model

import "time"

// InputType is the kind of mood input a playlist was generated from.
type InputType string

const (
	InputText  InputType = "text"
	InputImage InputType = "image"
)

// Status is the playlist lifecycle state.
//
//	generating → song_list → created
//	generating → failed
//
// song_list is the only state a user-initiated regeneration or publish may
// proceed from; regeneration leaves the state at song_list. created and
// failed are terminal.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusSongList   Status = "song_list"
	StatusCreated    Status = "created"
	StatusFailed     Status = "failed"
)

// Track is a catalog-resolved song. It is always the result of a successful
// search — unmatched candidates are dropped, never stubbed, so
// SpotifyTrackID is never empty.
type Track struct {
	Title          string `json:"title"`
	Artist         string `json:"artist"`
	SpotifyTrackID string `json:"spotify_track_id"`
}

// Playlist represents one generated playlist owned by exactly one user.
// Tracks preserves insertion order, which is presentation order.
type Playlist struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	SpotifyPlaylistID  string    `json:"spotifyPlaylistId,omitempty"` // empty until published
	SpotifyPlaylistURL string    `json:"spotifyPlaylistUrl,omitempty"`
	Name               string    `json:"name"`
	InputType          InputType `json:"inputType"`
	InputText          string    `json:"inputText,omitempty"`
	InputImageURLs     []string  `json:"inputImageUrls,omitempty"`
	TrackCount         int       `json:"trackCount"`
	Tracks             []Track   `json:"tracks"`
	IsPublic           bool      `json:"isPublic"`
	RegenerationUsed   bool      `json:"regenerationUsed"`
	CreditsCharged     int       `json:"creditsCharged"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Input validation limits.
const (
	MinTrackCount     = 5
	MaxTrackCount     = 20
	DefaultTrackCount = 10

	TextMinLength = 10
	TextMaxLength = 500

	MaxImages     = 3
	ImageMaxBytes = 10 << 20 // 10 MB
)

// AcceptedImageTypes lists the content types the generate endpoint accepts.
var AcceptedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}
