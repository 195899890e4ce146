package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL    = "https://accounts.spotify.com/authorize"
	spotifyTokenURL   = "https://accounts.spotify.com/api/token"
	spotifyProfileURL = "https://api.spotify.com/v1/me"
)

// spotifyScopes is what the app needs: identify the user and create/modify
// playlists on their behalf.
var spotifyScopes = []string{
	"user-read-email",
	"user-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
}

// TokenSet is the delegated-access credential issued by the identity
// provider. RefreshToken may equal the previous one — Spotify does not
// always rotate refresh tokens on refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Profile is the portion of Spotify's /me response we care about.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"` // empty if hidden
	DisplayName string `json:"display_name"`
	Images      []struct {
		URL    string `json:"url"`
		Height int    `json:"height"`
		Width  int    `json:"width"`
	} `json:"images"`
}

// AvatarURL returns the last (smallest) profile image, or "".
func (p *Profile) AvatarURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[len(p.Images)-1].URL
}

// SpotifyProvider wraps golang.org/x/oauth2 for Spotify's Authorization
// Code flow: the login redirect, the code-for-token exchange on callback,
// and the refresh_token grant used by the token lifecycle manager.
type SpotifyProvider struct {
	config *oauth2.Config
	client *http.Client // profile fetches; swappable in tests
}

// NewSpotifyProvider creates a provider with the given app credentials.
// redirectURL must exactly match the callback URL registered with Spotify.
func NewSpotifyProvider(clientID, clientSecret, redirectURL string) (*SpotifyProvider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("auth: Spotify client ID and secret are required")
	}

	return &SpotifyProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       spotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
		client: http.DefaultClient,
	}, nil
}

// AuthURL returns the authorization URL to redirect the user to.
//
// The state is a random nonce stored in a cookie before redirecting; the
// callback verifies it to block CSRF. show_dialog forces Spotify to show
// the approval screen even for previously approved users, so switching
// accounts works.
func (p *SpotifyProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("show_dialog", "true"),
	)
}

// Exchange trades the authorization code for the token set.
func (p *SpotifyProvider) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("auth: provider issued no refresh token")
	}

	return &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}

// Refresh performs a refresh_token grant for the stored refresh token.
//
// The oauth2 package carries the old refresh token forward when the
// provider omits rotation, so TokenSet.RefreshToken is always usable for
// the next refresh.
func (p *SpotifyProvider) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("auth: refreshing access token: %w", err)
	}

	return &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}

// FetchProfile calls Spotify's /me endpoint with the given access token.
func (p *SpotifyProvider) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotifyProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: creating profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching Spotify profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Spotify profile endpoint returned status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("auth: decoding Spotify profile: %w", err)
	}

	if profile.ID == "" {
		return nil, fmt.Errorf("auth: Spotify returned an invalid profile (empty id)")
	}

	return &profile, nil
}
