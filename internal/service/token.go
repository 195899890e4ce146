package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/vibelist/internal/apperror"
	"github.com/sakif/vibelist/internal/auth"
	"github.com/sakif/vibelist/internal/model"
	"github.com/sakif/vibelist/internal/repository"
	"github.com/sakif/vibelist/internal/spotify"
)

// expiryBuffer refreshes tokens this long before they actually expire, so a
// token handed to a multi-minute pipeline run does not die mid-flight.
const expiryBuffer = 5 * time.Minute

// TokenRefresher refreshes a platform credential.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenSet, error)
}

// AccessProber performs a cheap authenticated call to test a token.
type AccessProber interface {
	Me(ctx context.Context, token string) error
}

// TokenManager hands out usable platform access tokens, refreshing and
// persisting them when they are near expiry.
type TokenManager struct {
	users     repository.UserRepository
	refresher TokenRefresher
	prober    AccessProber
	logger    *slog.Logger
	now       func() time.Time
}

func NewTokenManager(users repository.UserRepository, refresher TokenRefresher, prober AccessProber, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		users:     users,
		refresher: refresher,
		prober:    prober,
		logger:    logger,
		now:       time.Now,
	}
}

// AccessToken returns a token valid for at least the expiry buffer,
// refreshing it first if needed. A refresh rejected by the platform means
// the user revoked the app's access.
func (m *TokenManager) AccessToken(ctx context.Context, user *model.User) (string, error) {
	if user.TokenExpiresAt.After(m.now().Add(expiryBuffer)) {
		return user.AccessToken, nil
	}
	return m.refresh(ctx, user)
}

// ForceRefresh refreshes regardless of remaining lifetime.
func (m *TokenManager) ForceRefresh(ctx context.Context, user *model.User) (string, error) {
	return m.refresh(ctx, user)
}

func (m *TokenManager) refresh(ctx context.Context, user *model.User) (string, error) {
	set, err := m.refresher.Refresh(ctx, user.RefreshToken)
	if err != nil {
		m.logger.Warn("token refresh rejected", "user_id", user.ID, "error", err)
		return "", apperror.AccessRevoked(401)
	}

	if err := m.users.UpdateTokens(ctx, user.ID, set.AccessToken, set.RefreshToken, set.Expiry); err != nil {
		return "", err
	}

	user.AccessToken = set.AccessToken
	user.RefreshToken = set.RefreshToken
	user.TokenExpiresAt = set.Expiry
	return set.AccessToken, nil
}

// ValidateAccess confirms the token still works with a profile probe. The
// platform answering 401 or 403 means the grant was revoked; any other
// failure is the platform's problem, not the user's.
func (m *TokenManager) ValidateAccess(ctx context.Context, token string) error {
	err := m.prober.Me(ctx, token)
	if err == nil {
		return nil
	}

	var apiErr *spotify.APIError
	if errors.As(err, &apiErr) && (apiErr.Status == 401 || apiErr.Status == 403) {
		return apperror.AccessRevoked(apiErr.Status)
	}
	return err
}
