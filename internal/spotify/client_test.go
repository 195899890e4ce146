package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vibelist/internal/apperror"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(testLogger(),
		WithBaseURL(srv.URL),
		WithRateLimit(1000, 1000), // don't pace in tests
	)
}

func TestSearchTrack_ReturnsBestMatch(t *testing.T) {
	var gotQuery, gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"tracks": map[string]any{
				"items": []map[string]any{
					{"id": "track1", "name": "Holocene", "artists": []map[string]any{{"name": "Bon Iver"}}},
				},
			},
		})
	}))

	track, err := client.SearchTrack(context.Background(), "tok", "track:Holocene artist:Bon Iver")
	require.NoError(t, err)
	require.NotNil(t, track)

	assert.Equal(t, "track1", track.ID)
	assert.Equal(t, "Bon Iver", track.ArtistName())
	assert.Equal(t, "track:Holocene artist:Bon Iver", gotQuery)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestSearchTrack_NoMatchReturnsNil(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tracks": map[string]any{"items": []any{}},
		})
	}))

	track, err := client.SearchTrack(context.Background(), "tok", "track:Nothing artist:Nobody")
	require.NoError(t, err)
	assert.Nil(t, track)
}

// TestSearchTrack_RetriesAfterRateLimit covers the 429 → Retry-After → retry
// path: one rate-limited response with a 1-second hint, then success, for a
// total of exactly two calls.
func TestSearchTrack_RetriesAfterRateLimit(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tracks": map[string]any{
				"items": []map[string]any{{"id": "track1", "name": "Song"}},
			},
		})
	}))

	start := time.Now()
	track, err := client.SearchTrack(context.Background(), "tok", "song")
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond, "should have slept ~1s")
}

func TestDo_RateLimitExhaustionIsClassified(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.SearchTrack(context.Background(), "tok", "song")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrRateLimited), "got %v", err)
	assert.Equal(t, maxAttempts, calls)
}

func TestMe_RevokedAccessSurfacesStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	err := client.Me(context.Background(), "tok")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestCreatePlaylist(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/me/playlists", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Slow Rain Ceremony", body["name"])
		assert.Equal(t, true, body["public"])
		assert.NotEmpty(t, body["description"])

		json.NewEncoder(w).Encode(map[string]any{
			"id":            "pl123",
			"external_urls": map[string]string{"spotify": "https://open.spotify.com/playlist/pl123"},
		})
	}))

	pl, err := client.CreatePlaylist(context.Background(), "tok", "Slow Rain Ceremony", true)
	require.NoError(t, err)
	assert.Equal(t, "pl123", pl.ID)
	assert.Equal(t, "https://open.spotify.com/playlist/pl123", pl.URL)
}

func TestCreatePlaylist_FallbackURL(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "pl123"})
	}))

	pl, err := client.CreatePlaylist(context.Background(), "tok", "Name", false)
	require.NoError(t, err)
	assert.Equal(t, "https://open.spotify.com/playlist/pl123", pl.URL)
}

// TestAddTracks_Batches verifies the 100-item ceiling: 150 IDs go out as a
// batch of 100 followed by a batch of 50, in order.
func TestAddTracks_Batches(t *testing.T) {
	var batches [][]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URIs []string `json:"uris"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		batches = append(batches, body.URIs)
		w.WriteHeader(http.StatusCreated)
	}))

	ids := make([]string, 150)
	for i := range ids {
		ids[i] = "id"
	}

	require.NoError(t, client.AddTracks(context.Background(), "tok", "pl123", ids))

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 50)
	assert.Equal(t, "spotify:track:id", batches[0][0])
}

// TestAddTracks_AbortsOnBatchFailure verifies that a failed batch stops the
// remaining batches and surfaces the platform's error body.
func TestAddTracks_AbortsOnBatchFailure(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream exploded"}`))
	}))

	ids := make([]string, 250)
	for i := range ids {
		ids[i] = "id"
	}

	err := client.AddTracks(context.Background(), "tok", "pl123", ids)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "remaining batches should not be submitted")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Body, "upstream exploded")
}

func TestSetVisibility(t *testing.T) {
	var gotPublic *bool
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/playlists/pl123", r.URL.Path)
		var body struct {
			Public bool `json:"public"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotPublic = &body.Public
	}))

	require.NoError(t, client.SetVisibility(context.Background(), "tok", "pl123", true))
	require.NotNil(t, gotPublic)
	assert.True(t, *gotPublic)
}
