// Package spotify is the client for the external music catalog/platform.
//
// It owns the wire-level concerns of spec'd platform behavior: bearer
// authorization, client-side request pacing, 429 Retry-After backoff with a
// bounded attempt count, and the 100-item ceiling on playlist writes.
// Callers (the resolution engine and the orchestrator) deal in clean Go
// values and classified errors.
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/vibelist/internal/apperror"
)

const (
	defaultBaseURL = "https://api.spotify.com/v1"

	// maxAttempts bounds the 429 retry loop. The platform's Retry-After
	// hint is honoured between attempts (2s when absent); past the bound
	// the call fails as RateLimited instead of retrying forever.
	maxAttempts       = 5
	defaultRetryAfter = 2 * time.Second

	// The platform accepts at most 100 track URIs per playlist write.
	maxTracksPerBatch = 100
)

// playlistDescription is attached to every playlist the app creates.
const playlistDescription = "Created with VibeList. Describe a vibe in words or images and get an AI-curated playlist saved straight to your Spotify."

// APIError is a non-2xx platform response. Status lets the caller classify
// (401/403 → access revoked); Body carries the platform's error text.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify: API returned status %d: %s", e.Status, e.Body)
}

// Track is the slice of the platform's track object the pipeline needs.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []Artist `json:"artists"`
}

type Artist struct {
	Name string `json:"name"`
}

// ArtistName returns the primary artist, or "" when the platform omits it.
func (t *Track) ArtistName() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// Playlist is a playlist created on the platform.
type Playlist struct {
	ID  string
	URL string
}

// Client talks to the music platform's web API. One Client is shared across
// requests; it is constructed once in the composition root and injected, so
// there is no hidden global instance.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root. Tests use this
// with httptest servers.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient swaps the underlying transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit overrides the client-side pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewClient creates a platform client. The default limiter paces outgoing
// calls at 10/s so a burst of tier searches doesn't trip the platform's
// limiter in the first place; 429 handling remains as the backstop.
func NewClient(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 5),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs one authenticated API call, retrying on 429 up to maxAttempts
// with the platform's Retry-After hint between attempts. The sleep blocks
// only this request's goroutine; other requests proceed.
func (c *Client) do(ctx context.Context, token, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("spotify: encoding request body: %w", err)
		}
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("spotify: waiting for rate limiter: %w", err)
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return fmt.Errorf("spotify: creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("spotify: %s %s: %w", method, path, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			c.logger.Warn("spotify rate limited",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Duration("retryAfter", wait),
			)

			if attempt == maxAttempts {
				return apperror.RateLimited("music platform is rate limiting requests, try again shortly")
			}
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			continue
		}

		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &APIError{Status: resp.StatusCode, Body: string(b)}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("spotify: decoding %s response: %w", path, err)
			}
		}
		return nil
	}

	return apperror.RateLimited("music platform is rate limiting requests, try again shortly")
}

// retryAfter reads the Retry-After hint in seconds, defaulting to 2s.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SearchTrack runs one search query and returns the single best match, or
// nil when the catalog has none. The resolution engine composes its tiered
// queries on top of this.
func (c *Client) SearchTrack(ctx context.Context, token, query string) (*Track, error) {
	path := "/search?q=" + url.QueryEscape(query) + "&type=track&limit=1"

	var result struct {
		Tracks struct {
			Items []Track `json:"items"`
		} `json:"tracks"`
	}
	if err := c.do(ctx, token, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	if len(result.Tracks.Items) == 0 {
		return nil, nil
	}
	return &result.Tracks.Items[0], nil
}

// Me is the lightweight authenticated probe used by access validation. A
// 401/403 here means the user's grant was revoked.
func (c *Client) Me(ctx context.Context, token string) error {
	return c.do(ctx, token, http.MethodGet, "/me", nil, nil)
}

// CreatePlaylist creates an empty playlist on the platform.
func (c *Client) CreatePlaylist(ctx context.Context, token, name string, isPublic bool) (*Playlist, error) {
	body := map[string]any{
		"name":        name,
		"description": playlistDescription,
		"public":      isPublic,
	}

	var result struct {
		ID           string `json:"id"`
		ExternalURLs struct {
			Spotify string `json:"spotify"`
		} `json:"external_urls"`
	}
	if err := c.do(ctx, token, http.MethodPost, "/me/playlists", body, &result); err != nil {
		return nil, err
	}

	playlistURL := result.ExternalURLs.Spotify
	if playlistURL == "" {
		playlistURL = "https://open.spotify.com/playlist/" + result.ID
	}

	return &Playlist{ID: result.ID, URL: playlistURL}, nil
}

// AddTracks writes track IDs into a platform playlist in batches of at most
// 100, submitted sequentially. A failed batch aborts the remainder and
// surfaces the platform's error.
func (c *Client) AddTracks(ctx context.Context, token, playlistID string, trackIDs []string) error {
	uris := make([]string, len(trackIDs))
	for i, id := range trackIDs {
		uris[i] = "spotify:track:" + id
	}

	for start := 0; start < len(uris); start += maxTracksPerBatch {
		end := start + maxTracksPerBatch
		if end > len(uris) {
			end = len(uris)
		}

		body := map[string]any{"uris": uris[start:end]}
		if err := c.do(ctx, token, http.MethodPost, "/playlists/"+playlistID+"/items", body, nil); err != nil {
			return fmt.Errorf("adding tracks %d-%d: %w", start, end-1, err)
		}
	}

	return nil
}

// SetVisibility flips a platform playlist between public and private.
func (c *Client) SetVisibility(ctx context.Context, token, playlistID string, isPublic bool) error {
	body := map[string]any{"public": isPublic}
	return c.do(ctx, token, http.MethodPut, "/playlists/"+playlistID, body, nil)
}
