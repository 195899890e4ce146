package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sakif/vibelist/internal/apperror"
	"github.com/sakif/vibelist/internal/generator"
	"github.com/sakif/vibelist/internal/model"
	"github.com/sakif/vibelist/internal/repository"
	"github.com/sakif/vibelist/internal/spotify"
)

// CandidateGenerator produces song candidates for a vibe.
type CandidateGenerator interface {
	Generate(ctx context.Context, req generator.Request) (*generator.Result, error)
}

// TrackResolver matches candidates against the catalog.
type TrackResolver interface {
	Resolve(ctx context.Context, token string, candidates []model.Track, targetCount int) ([]model.Track, error)
}

// Catalog is the platform surface used for publishing.
type Catalog interface {
	CreatePlaylist(ctx context.Context, token, name string, isPublic bool) (*spotify.Playlist, error)
	AddTracks(ctx context.Context, token, playlistID string, trackIDs []string) error
	SetVisibility(ctx context.Context, token, playlistID string, isPublic bool) error
}

// TokenSource provides usable platform tokens for a user.
type TokenSource interface {
	AccessToken(ctx context.Context, user *model.User) (string, error)
	ValidateAccess(ctx context.Context, token string) error
}

// ImageStore persists uploaded vibe images and returns their public URLs.
type ImageStore interface {
	Save(ctx context.Context, userID, filename, contentType string, data []byte) (string, error)
}

// ImageUpload is one image from the generate form.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// GenerateInput is the parsed generate request.
type GenerateInput struct {
	Text       string
	Images     []ImageUpload
	TrackCount int
}

// GenerateOutput is returned by Generate and Regenerate.
type GenerateOutput struct {
	Playlist         *model.Playlist `json:"playlist"`
	CreditsRemaining int             `json:"credits_remaining"`
	WasFree          bool            `json:"was_free,omitempty"`
}

// PublishOutput is returned by Publish.
type PublishOutput struct {
	SpotifyPlaylistID  string `json:"spotify_playlist_id"`
	SpotifyPlaylistURL string `json:"spotify_playlist_url"`
}

// PlaylistService orchestrates the generation pipeline and the playlist
// lifecycle.
type PlaylistService struct {
	playlists repository.PlaylistRepository
	users     repository.UserRepository
	credits   *CreditService
	tokens    TokenSource
	gen       CandidateGenerator
	resolver  TrackResolver
	catalog   Catalog
	images    ImageStore
	logger    *slog.Logger
}

func NewPlaylistService(
	playlists repository.PlaylistRepository,
	users repository.UserRepository,
	credits *CreditService,
	tokens TokenSource,
	gen CandidateGenerator,
	resolver TrackResolver,
	catalog Catalog,
	images ImageStore,
	logger *slog.Logger,
) *PlaylistService {
	return &PlaylistService{
		playlists: playlists,
		users:     users,
		credits:   credits,
		tokens:    tokens,
		gen:       gen,
		resolver:  resolver,
		catalog:   catalog,
		images:    images,
		logger:    logger,
	}
}

// placeholderName is shown while a playlist is still generating.
const placeholderName = "Generating..."

// Generate runs the full pipeline: validate, check affordability, confirm
// platform access, store images, record the playlist, generate candidates,
// resolve them against the catalog, charge, and save the song list.
//
// Credits are charged only after resolution succeeds, so a failed run never
// costs the user anything. Affordability is still checked up front to reject
// obviously doomed requests before any expensive work.
func (s *PlaylistService) Generate(ctx context.Context, userID string, input GenerateInput) (*GenerateOutput, error) {
	if err := validateGenerateInput(input); err != nil {
		return nil, err
	}

	inputType := model.InputText
	if len(input.Images) > 0 {
		inputType = model.InputImage
	}
	cost := CostFor(inputType)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.CreditsRemaining < cost {
		return nil, apperror.InsufficientCredits(cost)
	}

	token, err := s.tokens.AccessToken(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.ValidateAccess(ctx, token); err != nil {
		return nil, err
	}

	imageURLs := make([]string, 0, len(input.Images))
	for _, img := range input.Images {
		url, err := s.images.Save(ctx, userID, img.Filename, img.ContentType, img.Data)
		if err != nil {
			return nil, fmt.Errorf("storing vibe image: %w", err)
		}
		imageURLs = append(imageURLs, url)
	}

	playlist := &model.Playlist{
		UserID:         userID,
		Name:           placeholderName,
		InputType:      inputType,
		InputText:      strings.TrimSpace(input.Text),
		InputImageURLs: imageURLs,
		TrackCount:     input.TrackCount,
		Tracks:         []model.Track{},
		CreditsCharged: cost,
		Status:         model.StatusGenerating,
	}
	if err := s.playlists.Create(ctx, playlist); err != nil {
		return nil, err
	}

	result, err := s.gen.Generate(ctx, generator.Request{
		Text:       playlist.InputText,
		ImageURLs:  imageURLs,
		TrackCount: input.TrackCount,
	})
	if err != nil {
		s.markFailed(ctx, playlist.ID)
		return nil, err
	}

	found, err := s.resolver.Resolve(ctx, token, result.Songs, input.TrackCount)
	if err != nil {
		s.markFailed(ctx, playlist.ID)
		return nil, err
	}

	balance, err := s.credits.Charge(ctx, userID, cost)
	if err != nil {
		s.markFailed(ctx, playlist.ID)
		return nil, err
	}

	playlist.Name = result.PlaylistName
	playlist.Tracks = found
	playlist.TrackCount = len(found)
	playlist.Status = model.StatusSongList
	if err := s.playlists.Update(ctx, playlist); err != nil {
		return nil, err
	}

	s.logger.Info("playlist generated",
		"playlist_id", playlist.ID, "user_id", userID,
		"input_type", inputType, "tracks", len(found))

	return &GenerateOutput{Playlist: playlist, CreditsRemaining: balance}, nil
}

// Regenerate reruns generation for an unpublished playlist with the current
// tracks excluded. The first regeneration is free; later ones cost the same
// as the original generation. Failures leave the existing song list intact.
func (s *PlaylistService) Regenerate(ctx context.Context, userID, playlistID string, excludeTracks []model.Track) (*GenerateOutput, error) {
	playlist, err := s.playlists.GetByIDForUser(ctx, playlistID, userID)
	if err != nil {
		return nil, err
	}
	if playlist.Status != model.StatusSongList {
		return nil, apperror.ValidationFailed("status", "playlist cannot be regenerated in its current state")
	}

	wasFree := !playlist.RegenerationUsed
	cost := 0
	if !wasFree {
		cost = CostFor(playlist.InputType)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.CreditsRemaining < cost {
		return nil, apperror.InsufficientCredits(cost)
	}

	token, err := s.tokens.AccessToken(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.ValidateAccess(ctx, token); err != nil {
		return nil, err
	}

	result, err := s.gen.Generate(ctx, generator.Request{
		Text:          playlist.InputText,
		ImageURLs:     playlist.InputImageURLs,
		TrackCount:    playlist.TrackCount,
		ExcludeTracks: excludeTracks,
	})
	if err != nil {
		return nil, err
	}

	found, err := s.resolver.Resolve(ctx, token, result.Songs, playlist.TrackCount)
	if err != nil {
		return nil, err
	}

	balance, err := s.credits.Charge(ctx, userID, cost)
	if err != nil {
		return nil, err
	}

	playlist.Name = result.PlaylistName
	playlist.Tracks = found
	playlist.TrackCount = len(found)
	playlist.RegenerationUsed = true
	if err := s.playlists.Update(ctx, playlist); err != nil {
		return nil, err
	}

	s.logger.Info("playlist regenerated",
		"playlist_id", playlist.ID, "user_id", userID,
		"was_free", wasFree, "tracks", len(found))

	return &GenerateOutput{Playlist: playlist, CreditsRemaining: balance, WasFree: wasFree}, nil
}

// Publish creates the playlist on the platform, adds its tracks, and moves
// it to the created state. isPublic overrides the stored visibility when
// non-nil.
func (s *PlaylistService) Publish(ctx context.Context, userID, playlistID string, isPublic *bool) (*PublishOutput, error) {
	playlist, err := s.playlists.GetByIDForUser(ctx, playlistID, userID)
	if err != nil {
		return nil, err
	}
	if playlist.Status != model.StatusSongList {
		return nil, apperror.ValidationFailed("status", "playlist is not ready to be saved")
	}

	public := playlist.IsPublic
	if isPublic != nil {
		public = *isPublic
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.AccessToken(ctx, user)
	if err != nil {
		return nil, err
	}

	created, err := s.catalog.CreatePlaylist(ctx, token, playlist.Name, public)
	if err != nil {
		return nil, err
	}

	trackIDs := make([]string, 0, len(playlist.Tracks))
	for _, t := range playlist.Tracks {
		if t.SpotifyTrackID != "" {
			trackIDs = append(trackIDs, t.SpotifyTrackID)
		}
	}
	if len(trackIDs) > 0 {
		if err := s.catalog.AddTracks(ctx, token, created.ID, trackIDs); err != nil {
			return nil, err
		}
	}

	playlist.SpotifyPlaylistID = created.ID
	playlist.SpotifyPlaylistURL = created.URL
	playlist.IsPublic = public
	playlist.Status = model.StatusCreated
	if err := s.playlists.Update(ctx, playlist); err != nil {
		return nil, err
	}

	s.logger.Info("playlist published",
		"playlist_id", playlist.ID, "spotify_playlist_id", created.ID, "public", public)

	return &PublishOutput{SpotifyPlaylistID: created.ID, SpotifyPlaylistURL: created.URL}, nil
}

// SetVisibility updates the stored visibility flag and, if the playlist is
// already on the platform, mirrors the change there. The platform update is
// best effort: the stored flag is the source of truth and a platform failure
// does not fail the request.
func (s *PlaylistService) SetVisibility(ctx context.Context, userID, playlistID string, isPublic bool) (*model.Playlist, error) {
	playlist, err := s.playlists.GetByIDForUser(ctx, playlistID, userID)
	if err != nil {
		return nil, err
	}

	playlist.IsPublic = isPublic
	if err := s.playlists.Update(ctx, playlist); err != nil {
		return nil, err
	}

	if playlist.SpotifyPlaylistID != "" {
		if err := s.mirrorVisibility(ctx, userID, playlist.SpotifyPlaylistID, isPublic); err != nil {
			s.logger.Warn("platform visibility update failed",
				"playlist_id", playlist.ID, "error", err)
		}
	}
	return playlist, nil
}

func (s *PlaylistService) mirrorVisibility(ctx context.Context, userID, spotifyPlaylistID string, isPublic bool) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	token, err := s.tokens.AccessToken(ctx, user)
	if err != nil {
		return err
	}
	return s.catalog.SetVisibility(ctx, token, spotifyPlaylistID, isPublic)
}

// Get returns a playlist owned by userID.
func (s *PlaylistService) Get(ctx context.Context, userID, playlistID string) (*model.Playlist, error) {
	return s.playlists.GetByIDForUser(ctx, playlistID, userID)
}

// List returns the user's playlists, newest first.
func (s *PlaylistService) List(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Playlist, error) {
	return s.playlists.ListByUser(ctx, userID, opts)
}

func (s *PlaylistService) markFailed(ctx context.Context, playlistID string) {
	if err := s.playlists.SetStatus(ctx, playlistID, model.StatusFailed); err != nil {
		s.logger.Error("marking playlist failed", "playlist_id", playlistID, "error", err)
	}
}

func validateGenerateInput(input GenerateInput) error {
	if input.TrackCount < model.MinTrackCount || input.TrackCount > model.MaxTrackCount {
		return apperror.ValidationFailed("track_count",
			fmt.Sprintf("track count must be between %d and %d", model.MinTrackCount, model.MaxTrackCount))
	}

	text := strings.TrimSpace(input.Text)
	if text == "" && len(input.Images) == 0 {
		return apperror.ValidationFailed("input", "provide a vibe description or at least one image")
	}

	// Text length limits apply only to text-only vibes. A caption next to
	// images can be any length that fits the form.
	if len(input.Images) == 0 {
		if n := len(text); n < model.TextMinLength || n > model.TextMaxLength {
			return apperror.ValidationFailed("input_text",
				fmt.Sprintf("description must be between %d and %d characters", model.TextMinLength, model.TextMaxLength))
		}
	}

	if len(input.Images) > model.MaxImages {
		return apperror.ValidationFailed("images",
			fmt.Sprintf("at most %d images allowed", model.MaxImages))
	}
	for _, img := range input.Images {
		if img.Size > model.ImageMaxBytes {
			return apperror.ValidationFailed("images", "image too large")
		}
		if !slices.Contains(model.AcceptedImageTypes, img.ContentType) {
			return apperror.ValidationFailed("images", "unsupported image type")
		}
	}
	return nil
}
