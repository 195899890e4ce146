package resolver

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vibelist/internal/apperror"
	"github.com/sakif/vibelist/internal/model"
	"github.com/sakif/vibelist/internal/spotify"
)

// stubSearcher answers queries from a fixed map and records every query it
// receives, in order.
type stubSearcher struct {
	results map[string]*spotify.Track
	errs    map[string]error
	queries []string
}

func (s *stubSearcher) SearchTrack(_ context.Context, _, query string) (*spotify.Track, error) {
	s.queries = append(s.queries, query)
	if err, ok := s.errs[query]; ok {
		return nil, err
	}
	return s.results[query], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func catalogTrack(id, name, artist string) *spotify.Track {
	return &spotify.Track{ID: id, Name: name, Artists: []spotify.Artist{{Name: artist}}}
}

func TestResolve_FieldedQueryWinsFirst(t *testing.T) {
	search := &stubSearcher{results: map[string]*spotify.Track{
		"track:Holocene artist:Bon Iver": catalogTrack("t1", "Holocene", "Bon Iver"),
	}}
	r := New(search, testLogger())

	got, err := r.Resolve(context.Background(), "tok",
		[]model.Track{{Title: "Holocene", Artist: "Bon Iver"}}, 1)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].SpotifyTrackID)
	assert.Equal(t, "Holocene", got[0].Title)
	assert.Equal(t, "Bon Iver", got[0].Artist)
	assert.Equal(t, []string{"track:Holocene artist:Bon Iver"}, search.queries,
		"looser tiers should not run after a hit")
}

func TestResolve_FallsThroughTiers(t *testing.T) {
	search := &stubSearcher{results: map[string]*spotify.Track{
		"Holocene": catalogTrack("t1", "Holocene", "Bon Iver"),
	}}
	r := New(search, testLogger())

	got, err := r.Resolve(context.Background(), "tok",
		[]model.Track{{Title: "Holocene", Artist: "Bon Iver"}}, 1)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, []string{
		"track:Holocene artist:Bon Iver",
		"Holocene Bon Iver",
		"Holocene",
	}, search.queries)
}

func TestResolve_SkipsUnresolvableCandidates(t *testing.T) {
	search := &stubSearcher{results: map[string]*spotify.Track{
		"track:Real Song artist:Real Artist": catalogTrack("t1", "Real Song", "Real Artist"),
	}}
	r := New(search, testLogger())

	got, err := r.Resolve(context.Background(), "tok", []model.Track{
		{Title: "Hallucinated Song", Artist: "Nobody"},
		{Title: "Real Song", Artist: "Real Artist"},
	}, 2)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].SpotifyTrackID)
}

func TestResolve_DeduplicatesByCatalogID(t *testing.T) {
	// Two differently-spelled candidates land on the same catalog track.
	search := &stubSearcher{results: map[string]*spotify.Track{
		"track:Skinny Love artist:Bon Iver":        catalogTrack("t1", "Skinny Love", "Bon Iver"),
		"track:Skinny Love (Live) artist:Bon Iver": catalogTrack("t1", "Skinny Love", "Bon Iver"),
		"track:Michicant artist:Bon Iver":          catalogTrack("t2", "Michicant", "Bon Iver"),
	}}
	r := New(search, testLogger())

	got, err := r.Resolve(context.Background(), "tok", []model.Track{
		{Title: "Skinny Love", Artist: "Bon Iver"},
		{Title: "Skinny Love (Live)", Artist: "Bon Iver"},
		{Title: "Michicant", Artist: "Bon Iver"},
	}, 3)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].SpotifyTrackID)
	assert.Equal(t, "t2", got[1].SpotifyTrackID)
}

func TestResolve_StopsAtTargetCount(t *testing.T) {
	search := &stubSearcher{results: map[string]*spotify.Track{
		"track:A artist:X": catalogTrack("t1", "A", "X"),
		"track:B artist:X": catalogTrack("t2", "B", "X"),
		"track:C artist:X": catalogTrack("t3", "C", "X"),
	}}
	r := New(search, testLogger())

	got, err := r.Resolve(context.Background(), "tok", []model.Track{
		{Title: "A", Artist: "X"},
		{Title: "B", Artist: "X"},
		{Title: "C", Artist: "X"},
	}, 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.NotContains(t, search.queries, "track:C artist:X",
		"surplus candidates should not be searched")
}

func TestResolve_SearchErrorSkipsCandidate(t *testing.T) {
	search := &stubSearcher{
		results: map[string]*spotify.Track{
			"track:B artist:X": catalogTrack("t2", "B", "X"),
		},
		errs: map[string]error{
			"track:A artist:X": &spotify.APIError{Status: 500, Body: "boom"},
		},
	}
	r := New(search, testLogger())

	got, err := r.Resolve(context.Background(), "tok", []model.Track{
		{Title: "A", Artist: "X"},
		{Title: "B", Artist: "X"},
	}, 2)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "t2", got[0].SpotifyTrackID)
}

func TestResolve_RateLimitAborts(t *testing.T) {
	search := &stubSearcher{errs: map[string]error{
		"track:A artist:X": apperror.RateLimited("slow down"),
	}}
	r := New(search, testLogger())

	got, err := r.Resolve(context.Background(), "tok", []model.Track{
		{Title: "A", Artist: "X"},
		{Title: "B", Artist: "X"},
	}, 2)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrRateLimited))
	assert.Nil(t, got)
	assert.Len(t, search.queries, 1, "remaining candidates should not be searched")
}

func TestResolve_MissingArtistSearchesTitleOnly(t *testing.T) {
	search := &stubSearcher{results: map[string]*spotify.Track{
		"Intro": catalogTrack("t1", "Intro", "The xx"),
	}}
	r := New(search, testLogger())

	got, err := r.Resolve(context.Background(), "tok",
		[]model.Track{{Title: "Intro"}}, 1)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, []string{"Intro"}, search.queries)
}
