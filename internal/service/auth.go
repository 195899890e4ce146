// Package service holds the business logic layer. It sits between the HTTP
// handlers and the repositories and platform clients:
//
//	handlers (HTTP) → services (rules) → repositories (DB) / platform clients
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/vibelist/internal/auth"
	"github.com/sakif/vibelist/internal/model"
	"github.com/sakif/vibelist/internal/repository"
)

// OAuthProvider is the Spotify authorization-code flow surface the auth
// service needs.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.TokenSet, error)
	FetchProfile(ctx context.Context, accessToken string) (*auth.Profile, error)
}

// AuthService orchestrates login: exchange the authorization code, fetch the
// profile, upsert the user, issue a session JWT.
type AuthService struct {
	users    repository.UserRepository
	provider OAuthProvider
	sessions *auth.TokenService
	logger   *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	provider OAuthProvider,
	sessions *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		provider: provider,
		sessions: sessions,
		logger:   logger,
	}
}

// AuthResult bundles the user record and the issued session token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// AuthURL returns the provider consent URL for the given state.
func (s *AuthService) AuthURL(state string) string {
	return s.provider.AuthURL(state)
}

// HandleCallback completes the authorization-code flow. The Spotify ID is
// stable, so the upsert creates the user on first login and refreshes
// profile and credential fields on every later one. Credits are seeded only
// on creation.
func (s *AuthService) HandleCallback(ctx context.Context, code string) (*AuthResult, error) {
	tokens, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	profile, err := s.provider.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	user := &model.User{
		SpotifyID:      profile.ID,
		Email:          profile.Email,
		DisplayName:    profile.DisplayName,
		AvatarURL:      profile.AvatarURL(),
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: tokens.Expiry,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("upserting user %s: %w", profile.ID, err)
	}

	s.logger.Info("user authenticated",
		slog.String("user_id", user.ID),
		slog.String("spotify_id", user.SpotifyID),
	)

	session, err := s.sessions.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating session for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: session}, nil
}

// GetUserByID returns the user for the given internal ID. Used by /api/me
// after the middleware validates the session.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("user ID must not be empty")
	}
	return s.users.GetByID(ctx, id)
}

// ValidateToken validates a session JWT and returns the userID it encodes.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	return s.sessions.Validate(tokenStr)
}
